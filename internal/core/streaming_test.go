package core

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapForStreaming_BOM(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("name,sku")...),
			expected: "name,sku",
		},
		{
			name:     "file without BOM",
			input:    []byte("name,sku"),
			expected: "name,sku",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(WrapForStreaming(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestWrapForStreaming_Sanitizes(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "valid ascii",
			input:    []byte("Widget,10"),
			expected: "Widget,10",
		},
		{
			name:     "valid multibyte",
			input:    []byte("Café,₹100"),
			expected: "Café,₹100",
		},
		{
			name:     "invalid byte in middle",
			input:    []byte{'a', 0xFF, 'b'},
			expected: "a?b",
		},
		{
			name:     "truncated sequence at end",
			input:    []byte{'a', 0xE2, 0x82},
			expected: "a??",
		},
		{
			name:     "partial BOM is not stripped",
			input:    []byte{0xEF, 0xBB, 'a'},
			expected: "??a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := io.ReadAll(WrapForStreaming(bytes.NewReader(tt.input)))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(got))
		})
	}
}

func TestWrapForStreaming_RuneSplitAcrossReads(t *testing.T) {
	input := []byte("x,₹,Café")

	// OneByteReader forces every multi-byte rune to arrive in pieces.
	got, err := io.ReadAll(WrapForStreaming(iotest.OneByteReader(bytes.NewReader(input))))
	require.NoError(t, err)
	assert.Equal(t, string(input), string(got))
}

func TestWrapForStreaming_PropagatesReadError(t *testing.T) {
	_, err := io.ReadAll(WrapForStreaming(iotest.ErrReader(io.ErrClosedPipe)))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
}
