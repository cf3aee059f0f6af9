package core

// convert.go provides type conversion functions for CSV data to PostgreSQL types.
//
// These functions handle the messy reality of merchant spreadsheets:
//   - Multiple date formats (US, EU, ISO, etc.)
//   - Currency symbols and thousand separators in numbers
//   - Excel formula prefixes (="value")
//
// All ToPg* functions return pgtype values with Valid=false for empty/invalid input,
// allowing the database to handle NULLs appropriately.

import (
	"errors"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// numericRegex validates that a string is a valid numeric format after cleanup.
// Matches integers, decimals, and scientific notation.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "2 Jan 2006", "02-Jan-2006",
		"2006-01-02T15:04:05Z07:00", "2006-01-02 15:04:05",
		"20060102",
	}
)

var errNotWholeNumber = errors.New("not a whole number")

// numericNoise strips currency symbols, percent signs and thousands separators.
var numericNoise = strings.NewReplacer(
	"$", "",
	"€", "", // Euro
	"£", "", // Pound
	"₹", "", // Rupee
	"Rs.", "",
	"%", "",
	",", "",
)

var headerSeparators = strings.NewReplacer("_", " ", "-", " ")

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a string to pgtype.Date.
// Supports multiple date formats and handles 2-digit years with pivot.
func ToPgDate(s string) pgtype.Date {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Date{Valid: false}
	}

	for _, layout := range fourDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return pgtype.Date{Time: truncateDay(t), Valid: true}
		}
	}

	currentYear := time.Now().Year()
	pivotYear := currentYear + TwoDigitYearPivot

	for _, layout := range twoDigitYearLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return pgtype.Date{Time: t, Valid: true}
		}
	}

	return pgtype.Date{Valid: false}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ToPgNumeric converts a string to pgtype.Numeric.
// Handles currency symbols, thousands separators, percent signs and
// accounting format (parentheses for negative).
func ToPgNumeric(s string) pgtype.Numeric {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Numeric{Valid: false}
	}

	isNegative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		isNegative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = strings.TrimSpace(numericNoise.Replace(s))

	if isNegative {
		s = "-" + s
	}

	if !numericRegex.MatchString(s) {
		return pgtype.Numeric{Valid: false}
	}

	var n pgtype.Numeric
	if err := n.Scan(s); err != nil {
		return pgtype.Numeric{Valid: false}
	}

	return n
}

// ToPgInt8 converts a whole-number string to pgtype.Int8.
func ToPgInt8(s string) pgtype.Int8 {
	v, err := ParseWholeNumber(s)
	if err != nil {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: v, Valid: true}
}

// ParseWholeNumber parses quantities such as "1,200" or "15.00".
// Values with a non-zero fractional part are rejected.
func ParseWholeNumber(s string) (int64, error) {
	n := ToPgNumeric(s)
	if !n.Valid {
		return 0, errors.New("invalid number")
	}
	v, exact, ok := scaleNumeric(n, 0)
	if !ok {
		return 0, errors.New("number out of range")
	}
	if !exact {
		return 0, errNotWholeNumber
	}
	return v, nil
}

// NumericToMinor converts a numeric amount to hundredths (paise, cents),
// rounding half away from zero. It is also used for percentage rates,
// where hundredths of a percent are basis points.
func NumericToMinor(n pgtype.Numeric) (int64, bool) {
	v, _, ok := scaleNumeric(n, 2)
	return v, ok
}

// MinorToNumeric converts hundredths back to a two-decimal numeric.
func MinorToNumeric(minor int64) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(minor), Exp: -2, Valid: true}
}

// IsNegative reports whether a valid numeric is below zero.
func IsNegative(n pgtype.Numeric) bool {
	return n.Valid && n.Int != nil && n.Int.Sign() < 0
}

// scaleNumeric returns n * 10^places as an integer, rounding half away
// from zero. exact is false when rounding discarded a non-zero remainder.
func scaleNumeric(n pgtype.Numeric, places int32) (v int64, exact bool, ok bool) {
	if !n.Valid || n.NaN || n.InfinityModifier != pgtype.Finite {
		return 0, false, false
	}

	i := new(big.Int)
	if n.Int != nil {
		i.Set(n.Int)
	}

	exact = true
	shift := n.Exp + places
	if shift >= 0 {
		i.Mul(i, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(shift)), nil))
	} else {
		div := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(-shift)), nil)
		rem := new(big.Int)
		i.QuoRem(i, div, rem)
		if rem.Sign() != 0 {
			exact = false
			rem.Abs(rem).Lsh(rem, 1)
			if rem.Cmp(div) >= 0 {
				if n.Int.Sign() < 0 {
					i.Sub(i, big.NewInt(1))
				} else {
					i.Add(i, big.NewInt(1))
				}
			}
		}
	}

	if !i.IsInt64() {
		return 0, false, false
	}
	return i.Int64(), exact, true
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}

// normalizeHeader folds a header cell for alias lookup: "Stock_Quantity",
// "stock-quantity" and " STOCK  QUANTITY " all become "stock quantity".
func normalizeHeader(s string) string {
	s = strings.ToLower(CleanCell(s))
	s = headerSeparators.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
