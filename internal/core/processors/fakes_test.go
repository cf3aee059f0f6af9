package processors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/merchant-import/internal/core"
)

// fakeDB understands the two statement shapes the processors send: the
// multi-row upsert and the ANY($2) existence lookup. Rows are stored per
// table under "merchant|key".
type fakeDB struct {
	mu      sync.Mutex
	tables  map[string]map[string]map[string]any
	queries []string
	failOn  string
	failErr error
}

func newFakeDB() *fakeDB {
	return &fakeDB{tables: make(map[string]map[string]map[string]any)}
}

func (db *fakeDB) table(name string) map[string]map[string]any {
	t, ok := db.tables[name]
	if !ok {
		t = make(map[string]map[string]any)
		db.tables[name] = t
	}
	return t
}

func (db *fakeDB) seed(table, merchantID, key string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.table(table)[merchantID+"|"+key] = map[string]any{}
}

func (db *fakeDB) row(table, merchantID, key string) map[string]any {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.table(table)[merchantID+"|"+key]
}

func (db *fakeDB) count(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.table(table))
}

func (db *fakeDB) Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}

func (db *fakeDB) QueryRow(context.Context, string, ...interface{}) pgx.Row {
	return nil
}

func (db *fakeDB) Query(_ context.Context, sql string, args ...interface{}) (pgx.Rows, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.queries = append(db.queries, sql)
	if db.failOn != "" && strings.Contains(sql, db.failOn) {
		return nil, db.failErr
	}

	switch {
	case strings.HasPrefix(sql, "INSERT INTO "):
		return db.upsert(sql, args)
	case strings.HasPrefix(sql, "SELECT "):
		return db.lookup(sql, args)
	}
	return nil, fmt.Errorf("unexpected query %q", sql)
}

func (db *fakeDB) upsert(sql string, args []any) (pgx.Rows, error) {
	table := strings.Fields(sql)[2]
	cols := strings.Split(sql[strings.Index(sql, "(")+1:strings.Index(sql, ")")], ", ")
	if len(args)%len(cols) != 0 {
		return nil, fmt.Errorf("%d args for %d columns", len(args), len(cols))
	}

	t := db.table(table)
	seen := make(map[string]bool)
	out := &fakeRows{}
	for start := 0; start < len(args); start += len(cols) {
		vals := args[start : start+len(cols)]
		key := vals[1].(string)
		id := vals[0].(string) + "|" + key
		if seen[id] {
			return nil, errors.New("ON CONFLICT DO UPDATE command cannot affect row a second time")
		}
		seen[id] = true

		_, existed := t[id]
		rec := make(map[string]any, len(cols))
		for i, c := range cols {
			rec[c] = vals[i]
		}
		t[id] = rec
		out.data = append(out.data, []any{key, !existed})
	}
	return out, nil
}

func (db *fakeDB) lookup(sql string, args []any) (pgx.Rows, error) {
	table := strings.Fields(sql)[3]
	merchantID := args[0].(string)
	keys := args[1].([]string)

	t := db.table(table)
	out := &fakeRows{}
	for _, k := range keys {
		if _, ok := t[merchantID+"|"+k]; ok {
			out.data = append(out.data, []any{k})
		}
	}
	return out, nil
}

// fakeRows serves fixed values to Scan.
type fakeRows struct {
	data [][]any
	pos  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Values() ([]any, error) {
	return r.data[r.pos-1], nil
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = row[i].(string)
		case *bool:
			*p = row[i].(bool)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// fakeStore runs a whole job against one fakeDB.
type fakeStore struct{ db *fakeDB }

func (s fakeStore) Acquire(context.Context) (core.Session, error) { return s, nil }
func (s fakeStore) Begin(context.Context) (core.Tx, error)         { return fakeTx{s.db}, nil }
func (s fakeStore) Release()                                        {}

type fakeTx struct{ *fakeDB }

func (fakeTx) Commit(context.Context) error   { return nil }
func (fakeTx) Rollback(context.Context) error { return nil }

func candidate(line int, fields map[string]string) core.CandidateItem {
	return core.CandidateItem{Line: line, Fields: fields, Valid: true}
}

func job(merchantID string) core.UploadJob {
	return core.UploadJob{UploadID: "u1", Scope: core.Scope{MerchantID: merchantID}}
}

// minor reads a stored numeric back as hundredths.
func minor(v any) int64 {
	n, ok := v.(pgtype.Numeric)
	if !ok || !n.Valid {
		return -1
	}
	m, _ := core.NumericToMinor(n)
	return m
}
