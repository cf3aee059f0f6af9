package core

// streaming.go provides constant-memory readers for CSV input.
//
//   - skipBOM drops a leading UTF-8 byte order mark written by spreadsheet tools
//   - utf8Sanitizer replaces invalid UTF-8 bytes with '?'
//
// Use WrapForStreaming to apply both in the correct order.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// skipBOM returns a reader positioned after the BOM, if one is present.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// utf8Sanitizer copies bytes from src, replacing each invalid UTF-8 byte
// with '?'. A multi-byte rune split across reads is carried over to the
// next read instead of being treated as invalid.
type utf8Sanitizer struct {
	src     io.Reader
	buf     []byte // raw bytes not yet emitted
	out     []byte // sanitized bytes not yet returned
	srcErr  error
	scratch []byte
}

func newUTF8Sanitizer(r io.Reader) *utf8Sanitizer {
	return &utf8Sanitizer{src: r, scratch: make([]byte, 32*1024)}
}

// Read implements io.Reader.
func (s *utf8Sanitizer) Read(p []byte) (int, error) {
	for len(s.out) == 0 {
		if s.srcErr != nil {
			s.flush(true)
			if len(s.out) == 0 {
				return 0, s.srcErr
			}
			break
		}

		n, err := s.src.Read(s.scratch)
		s.buf = append(s.buf, s.scratch[:n]...)
		s.srcErr = err
		s.flush(err != nil)
	}

	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// flush moves every complete rune from buf to out. An incomplete trailing
// sequence stays in buf unless atEOF, in which case it is invalid.
func (s *utf8Sanitizer) flush(atEOF bool) {
	i := 0
	for i < len(s.buf) {
		c := s.buf[i]
		if c < utf8.RuneSelf {
			s.out = append(s.out, c)
			i++
			continue
		}
		if !atEOF && !utf8.FullRune(s.buf[i:]) {
			break
		}
		r, size := utf8.DecodeRune(s.buf[i:])
		if r == utf8.RuneError && size <= 1 {
			s.out = append(s.out, '?')
			i++
			continue
		}
		s.out = append(s.out, s.buf[i:i+size]...)
		i += size
	}
	s.buf = append(s.buf[:0], s.buf[i:]...)
}

// WrapForStreaming wraps a reader with BOM skipping and UTF-8 sanitization.
// The BOM must be stripped before sanitizing.
func WrapForStreaming(r io.Reader) io.Reader {
	return newUTF8Sanitizer(skipBOM(r))
}
