// Package pricing computes cart totals. It is pure: no storage, no clock,
// no side effects, so the same cart always prices the same way.
package pricing

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidDiscount = errors.New("invalid discount")

const (
	DiscountNone    = ""
	DiscountValue   = "VALUE"
	DiscountPercent = "PERCENT"
)

// Line is one priced cart line. Unit values are snapshots taken by the
// caller at pricing time.
type Line struct {
	ProductID      string
	Qty            int
	UnitPriceCents int64
	UnitCostCents  int64
	DiscountCents  int64
}

type Totals struct {
	SubtotalCents       int64
	DiscountAmountCents int64
	TotalCents          int64
	TotalCostCents      int64
	GrossProfitCents    int64
	LineTotals          []int64
}

// LineTotal is unitPrice*qty minus the per-line discount, never negative.
func LineTotal(l Line) (int64, error) {
	if l.Qty <= 0 {
		return 0, fmt.Errorf("line %s: qty must be positive", l.ProductID)
	}
	gross := l.UnitPriceCents * int64(l.Qty)
	if l.DiscountCents < 0 || l.DiscountCents > gross {
		return 0, fmt.Errorf("%w: line %s discount %d out of range [0, %d]", ErrInvalidDiscount, l.ProductID, l.DiscountCents, gross)
	}
	return gross - l.DiscountCents, nil
}

// Price computes cart totals. discountType selects how the order-level
// discount applies: VALUE is a flat cents amount, PERCENT is a rate in
// [0, 100] applied to the subtotal and rounded half away from zero.
// Order discounts never push the total below zero.
func Price(lines []Line, discountType string, discountValueCents int64, discountPercent float64) (Totals, error) {
	t := Totals{LineTotals: make([]int64, len(lines))}
	for i, l := range lines {
		lt, err := LineTotal(l)
		if err != nil {
			return Totals{}, err
		}
		t.LineTotals[i] = lt
		t.SubtotalCents += lt
		t.TotalCostCents += l.UnitCostCents * int64(l.Qty)
	}

	switch discountType {
	case DiscountNone:
		if discountValueCents != 0 || discountPercent != 0 {
			return Totals{}, fmt.Errorf("%w: discount given without a discount type", ErrInvalidDiscount)
		}
	case DiscountValue:
		if discountValueCents < 0 || discountValueCents > t.SubtotalCents {
			return Totals{}, fmt.Errorf("%w: value discount %d out of range [0, %d]", ErrInvalidDiscount, discountValueCents, t.SubtotalCents)
		}
		t.DiscountAmountCents = discountValueCents
	case DiscountPercent:
		if discountPercent < 0 || discountPercent > 100 {
			return Totals{}, fmt.Errorf("%w: percent discount %.2f out of range [0, 100]", ErrInvalidDiscount, discountPercent)
		}
		t.DiscountAmountCents = int64(math.Round(float64(t.SubtotalCents) * discountPercent / 100))
	default:
		return Totals{}, fmt.Errorf("%w: unknown discount type %q", ErrInvalidDiscount, discountType)
	}

	t.TotalCents = t.SubtotalCents - t.DiscountAmountCents
	t.GrossProfitCents = t.TotalCents - t.TotalCostCents
	return t, nil
}
