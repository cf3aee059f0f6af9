// Package tax splits Indian GST on an invoice line into its central,
// state and integrated components.
//
// All amounts are in minor units (paise). Rates are in basis points, so
// 18% is 1800.
package tax

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNegativeAmount is returned for a taxable amount below zero.
	ErrNegativeAmount = errors.New("taxable amount must not be negative")

	// ErrInvalidRate is returned for a rate outside the configured slabs.
	ErrInvalidRate = errors.New("invalid gst rate")
)

// DefaultSlabs are the GST rates accepted by Calculator, in basis points.
var DefaultSlabs = []int64{0, 25, 300, 500, 1200, 1800, 2800}

// Input is one taxable amount and where the supply happens.
type Input struct {
	TaxableMinor    int64
	RateBasisPoints int64
	SupplierState   string
	PlaceOfSupply   string
}

// Breakdown is the computed tax. Either CGST and SGST or IGST is set.
type Breakdown struct {
	CGST  int64
	SGST  int64
	IGST  int64
	Total int64 // taxable amount plus all tax
}

// Tax returns the sum of all components.
func (b Breakdown) Tax() int64 {
	return b.CGST + b.SGST + b.IGST
}

// Splitter computes a Breakdown.
type Splitter interface {
	Split(in Input) (Breakdown, error)
}

// Calculator is the default Splitter.
//
// Supply inside one state is charged half as CGST and half as SGST.
// Supply across states, or when either state is unknown, is charged as
// IGST. Each component is rounded half up to the nearest paisa.
type Calculator struct {
	// Slabs restricts accepted rates. Nil uses DefaultSlabs; an empty
	// non-nil slice accepts any rate from 0 to 100%.
	Slabs []int64
}

// Split implements Splitter.
func (c Calculator) Split(in Input) (Breakdown, error) {
	if in.TaxableMinor < 0 {
		return Breakdown{}, ErrNegativeAmount
	}
	if err := c.checkRate(in.RateBasisPoints); err != nil {
		return Breakdown{}, err
	}

	var b Breakdown
	if IntraState(in.SupplierState, in.PlaceOfSupply) {
		half := percentOf(in.TaxableMinor, in.RateBasisPoints, 2)
		b.CGST, b.SGST = half, half
	} else {
		b.IGST = percentOf(in.TaxableMinor, in.RateBasisPoints, 1)
	}
	b.Total = in.TaxableMinor + b.Tax()
	return b, nil
}

func (c Calculator) checkRate(bp int64) error {
	if bp < 0 || bp > 10000 {
		return fmt.Errorf("%w: %s", ErrInvalidRate, FormatRate(bp))
	}
	slabs := c.Slabs
	if slabs == nil {
		slabs = DefaultSlabs
	}
	if len(slabs) == 0 {
		return nil
	}
	for _, s := range slabs {
		if s == bp {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidRate, FormatRate(bp))
}

// percentOf returns amount * bp / 10000 / div, rounded half up.
// amount and bp are non-negative.
func percentOf(amount, bp, div int64) int64 {
	den := 10000 * div
	return (amount*bp + den/2) / den
}

// IntraState reports whether supplier and place of supply are the same
// known state. State values are compared case-insensitively.
func IntraState(supplier, place string) bool {
	supplier = strings.TrimSpace(supplier)
	place = strings.TrimSpace(place)
	if supplier == "" || place == "" {
		return false
	}
	return strings.EqualFold(supplier, place)
}

// FormatRate renders basis points as a percentage, e.g. 1800 -> "18%".
func FormatRate(bp int64) string {
	if bp%100 == 0 {
		return fmt.Sprintf("%d%%", bp/100)
	}
	return strings.TrimRight(fmt.Sprintf("%.2f", float64(bp)/100), "0") + "%"
}
