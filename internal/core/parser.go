package core

// parser.go turns a CSV byte stream into candidate records.
//
// Header cells are matched against each column's canonical name and
// aliases after cleaning and case folding, so "Stock Quantity", "stock_qty"
// style variations resolve to the same field. Rows are read lazily, one
// record in memory at a time. A parser cannot be restarted.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// RawRecord is one data row keyed by canonical column name.
type RawRecord struct {
	Line   int
	Fields map[string]string
}

// RowParser reads candidate records from a CSV stream.
type RowParser struct {
	r        *csv.Reader
	cols     []ColumnSpec
	index    map[string]int // canonical name -> header position
	identity []string       // identity columns present in the header
	unknown  []string       // header cells that matched no column
}

// NewRowParser reads the header row and resolves it against cols.
// It fails with ErrEmptyFile when there is no header and with
// ErrMissingColumns when no identity column can be resolved.
func NewRowParser(src io.Reader, cols []ColumnSpec) (*RowParser, error) {
	r := csv.NewReader(WrapForStreaming(src))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyFile
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	p := &RowParser{
		r:     r,
		cols:  cols,
		index: make(map[string]int, len(cols)),
	}
	p.resolve(header)

	if len(p.identity) == 0 {
		return nil, fmt.Errorf("%w: file needs one of %s", ErrMissingColumns, identityNames(cols))
	}
	return p, nil
}

func (p *RowParser) resolve(header []string) {
	lookup := make(map[string]string)
	for _, col := range p.cols {
		for _, name := range append([]string{col.Name}, col.Aliases...) {
			key := normalizeHeader(name)
			if _, taken := lookup[key]; !taken {
				lookup[key] = col.Name
			}
		}
	}

	for pos, cell := range header {
		name, ok := lookup[normalizeHeader(cell)]
		if !ok {
			if cell = CleanCell(cell); cell != "" {
				p.unknown = append(p.unknown, cell)
			}
			continue
		}
		// First matching header cell wins.
		if _, dup := p.index[name]; !dup {
			p.index[name] = pos
		}
	}

	for _, col := range p.cols {
		if _, ok := p.index[col.Name]; ok && col.Identity {
			p.identity = append(p.identity, col.Name)
		}
	}
}

// UnknownHeaders returns header cells that did not match any column.
func (p *RowParser) UnknownHeaders() []string {
	return p.unknown
}

// Next returns the next record. It returns *RowParseError for a row that
// cannot be mapped; the caller records it and keeps reading. io.EOF marks
// the end of input. Any other error is fatal for the stream.
func (p *RowParser) Next() (RawRecord, error) {
	for {
		rec, err := p.r.Read()
		if errors.Is(err, io.EOF) {
			return RawRecord{}, io.EOF
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			return RawRecord{}, &RowParseError{Line: pe.StartLine, Reason: "invalid csv: " + pe.Err.Error()}
		}
		if err != nil {
			return RawRecord{}, err
		}

		line, _ := p.r.FieldPos(0)
		if isBlank(rec) {
			continue
		}

		fields := make(map[string]string, len(p.index))
		for _, col := range p.cols {
			pos, ok := p.index[col.Name]
			if !ok || pos >= len(rec) {
				continue
			}
			v := CleanCell(rec[pos])
			if v != "" && col.Normalizer != nil {
				v = col.Normalizer(v)
			}
			fields[col.Name] = v
		}

		if !hasIdentity(fields, p.identity) {
			return RawRecord{}, &RowParseError{
				Line:   line,
				Reason: "missing " + strings.Join(p.identity, " or "),
			}
		}
		return RawRecord{Line: line, Fields: fields}, nil
	}
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if CleanCell(cell) != "" {
			return false
		}
	}
	return true
}

func hasIdentity(fields map[string]string, identity []string) bool {
	for _, name := range identity {
		if fields[name] != "" {
			return true
		}
	}
	return false
}

func identityNames(cols []ColumnSpec) string {
	var names []string
	for _, col := range cols {
		if col.Identity {
			names = append(names, fmt.Sprintf("%q", col.Name))
		}
	}
	return strings.Join(names, ", ")
}
