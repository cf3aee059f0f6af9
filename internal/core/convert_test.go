package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToPgNumeric(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantMinor int64 // value in hundredths
	}{
		{name: "positive integer", input: "123", wantValid: true, wantMinor: 12300},
		{name: "zero", input: "0", wantValid: true, wantMinor: 0},
		{name: "negative integer", input: "-456", wantValid: true, wantMinor: -45600},
		{name: "decimal number", input: "123.45", wantValid: true, wantMinor: 12345},
		{name: "leading decimal point", input: ".99", wantValid: true, wantMinor: 99},
		{name: "dollar sign", input: "$1,234.56", wantValid: true, wantMinor: 123456},
		{name: "rupee sign", input: "₹1,499.00", wantValid: true, wantMinor: 149900},
		{name: "rs prefix", input: "Rs. 250", wantValid: true, wantMinor: 25000},
		{name: "percent sign", input: "18%", wantValid: true, wantMinor: 1800},
		{name: "accounting negative", input: "($1,234.56)", wantValid: true, wantMinor: -123456},
		{name: "surrounded by whitespace", input: "  123.45  ", wantValid: true, wantMinor: 12345},
		{name: "explicit positive sign", input: "+123", wantValid: true, wantMinor: 12300},

		{name: "empty string", input: "", wantValid: false},
		{name: "only whitespace", input: "   ", wantValid: false},
		{name: "alphabetic string", input: "abc", wantValid: false},
		{name: "mixed alphanumeric", input: "12abc34", wantValid: false},
		{name: "only currency symbol", input: "$", wantValid: false},
		{name: "multiple decimal points", input: "12.34.56", wantValid: false},
		{name: "double negative", input: "--123", wantValid: false},
		{name: "NaN", input: "NaN", wantValid: false},
		{name: "Infinity", input: "Infinity", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgNumeric(tt.input)
			require.Equal(t, tt.wantValid, result.Valid, "ToPgNumeric(%q).Valid", tt.input)
			if !tt.wantValid {
				return
			}

			minor, ok := NumericToMinor(result)
			require.True(t, ok)
			assert.Equal(t, tt.wantMinor, minor)
		})
	}
}

func TestNumericToMinor_Rounding(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"10.004", 1000},
		{"10.005", 1001},
		{"-10.005", -1001},
		{"0.125", 13},
		{"7", 700},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NumericToMinor(ToPgNumeric(tt.input))
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMinorToNumeric_RoundTrip(t *testing.T) {
	n := MinorToNumeric(123456)
	require.True(t, n.Valid)

	got, ok := NumericToMinor(n)
	require.True(t, ok)
	assert.Equal(t, int64(123456), got)
}

func TestParseWholeNumber(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    int64
		wantErr bool
	}{
		{name: "plain", input: "42", want: 42},
		{name: "thousands separator", input: "1,200", want: 1200},
		{name: "zero fraction", input: "15.00", want: 15},
		{name: "negative", input: "-3", want: -3},
		{name: "fraction", input: "2.5", wantErr: true},
		{name: "text", input: "ten", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseWholeNumber(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestToPgInt8(t *testing.T) {
	assert.Equal(t, int64(250), ToPgInt8("250").Int64)
	assert.True(t, ToPgInt8("250").Valid)
	assert.False(t, ToPgInt8("2.5").Valid)
	assert.False(t, ToPgInt8("").Valid)
}

func TestIsNegative(t *testing.T) {
	assert.True(t, IsNegative(ToPgNumeric("-1")))
	assert.True(t, IsNegative(ToPgNumeric("(5.00)")))
	assert.False(t, IsNegative(ToPgNumeric("0")))
	assert.False(t, IsNegative(ToPgNumeric("")))
}

func TestToPgDate(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		want      time.Time
	}{
		{name: "ISO format", input: "2024-01-15", wantValid: true, want: date(2024, time.January, 15)},
		{name: "ISO leap day", input: "2024-02-29", wantValid: true, want: date(2024, time.February, 29)},
		{name: "US slashes", input: "01/15/2024", wantValid: true, want: date(2024, time.January, 15)},
		{name: "US single digits", input: "1/5/2024", wantValid: true, want: date(2024, time.January, 5)},
		{name: "year first slash", input: "2024/01/15", wantValid: true, want: date(2024, time.January, 15)},
		{name: "text month", input: "Jan 15, 2024", wantValid: true, want: date(2024, time.January, 15)},
		{name: "day month year", input: "15 Jan 2024", wantValid: true, want: date(2024, time.January, 15)},
		{name: "day-mon-year", input: "15-Jan-2024", wantValid: true, want: date(2024, time.January, 15)},
		{name: "timestamp truncated", input: "2024-01-15T23:10:00+05:30", wantValid: true, want: date(2024, time.January, 15)},
		{name: "compact", input: "20240115", wantValid: true, want: date(2024, time.January, 15)},
		{name: "whitespace", input: "  2024-01-15  ", wantValid: true, want: date(2024, time.January, 15)},

		{name: "empty", input: "", wantValid: false},
		{name: "text", input: "not-a-date", wantValid: false},
		{name: "month 13", input: "2024-13-01", wantValid: false},
		{name: "non leap Feb 29", input: "2023-02-29", wantValid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ToPgDate(tt.input)
			require.Equal(t, tt.wantValid, result.Valid, "ToPgDate(%q).Valid", tt.input)
			if tt.wantValid {
				assert.True(t, tt.want.Equal(result.Time), "got %s, want %s", result.Time, tt.want)
			}
		})
	}
}

func TestToPgDate_TwoDigitYear(t *testing.T) {
	originalPivot := TwoDigitYearPivot
	defer func() { TwoDigitYearPivot = originalPivot }()
	TwoDigitYearPivot = 20

	tests := []struct {
		input    string
		wantYear int
	}{
		{"01/15/25", 2025},
		{"01/15/99", 1999},
		{"1-15-85", 1985},
		{"01.15.99", 1999},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := ToPgDate(tt.input)
			require.True(t, result.Valid)
			assert.Equal(t, tt.wantYear, result.Time.Year())
		})
	}
}

func TestToPgText(t *testing.T) {
	assert.Equal(t, "hello world", ToPgText("  hello world  ").String)
	assert.True(t, ToPgText("café").Valid)
	assert.False(t, ToPgText("").Valid)
	assert.False(t, ToPgText("\t\n").Valid)
}

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "simple string unchanged", input: "hello", want: "hello"},
		{name: "surrounded by whitespace", input: "  hello  ", want: "hello"},
		{name: "Excel formula with quotes", input: `="12345"`, want: "12345"},
		{name: "bare equals sign", input: "=SUM(A1)", want: "SUM(A1)"},
		{name: "double quotes removed", input: `"hello"`, want: "hello"},
		{name: "leading single quote", input: "'00042", want: "00042"},
		{name: "whitespace inside quotes", input: `" SKU-1 "`, want: "SKU-1"},
		{name: "only quotes", input: `""`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanCell(tt.input))
		})
	}
}

func TestNormalizeHeader(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Stock Quantity", "stock quantity"},
		{"stock_quantity", "stock quantity"},
		{"STOCK-QUANTITY", "stock quantity"},
		{"  Stock   Quantity ", "stock quantity"},
		{`"Product Name"`, "product name"},
		{"SKU", "sku"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeHeader(tt.input))
		})
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
