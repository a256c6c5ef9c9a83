package pricing

import (
	"errors"
	"testing"
)

func TestPriceNoDiscount(t *testing.T) {
	totals, err := Price([]Line{
		{ProductID: "p1", Qty: 2, UnitPriceCents: 2790, UnitCostCents: 1850},
		{ProductID: "p2", Qty: 3, UnitPriceCents: 599, UnitCostCents: 390},
	}, DiscountNone, 0, 0)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if totals.SubtotalCents != 7377 {
		t.Fatalf("expected subtotal 7377, got %d", totals.SubtotalCents)
	}
	if totals.TotalCents != 7377 {
		t.Fatalf("expected total 7377, got %d", totals.TotalCents)
	}
	if totals.TotalCostCents != 4870 {
		t.Fatalf("expected cost 4870, got %d", totals.TotalCostCents)
	}
	if totals.GrossProfitCents != 2507 {
		t.Fatalf("expected gross profit 2507, got %d", totals.GrossProfitCents)
	}
	if len(totals.LineTotals) != 2 || totals.LineTotals[0] != 5580 || totals.LineTotals[1] != 1797 {
		t.Fatalf("unexpected line totals %v", totals.LineTotals)
	}
}

func TestPriceLineDiscount(t *testing.T) {
	totals, err := Price([]Line{
		{ProductID: "p1", Qty: 2, UnitPriceCents: 1000, UnitCostCents: 600, DiscountCents: 150},
	}, DiscountNone, 0, 0)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if totals.SubtotalCents != 1850 {
		t.Fatalf("expected subtotal 1850, got %d", totals.SubtotalCents)
	}
}

func TestPriceValueDiscount(t *testing.T) {
	totals, err := Price([]Line{
		{ProductID: "p1", Qty: 1, UnitPriceCents: 5000, UnitCostCents: 3000},
	}, DiscountValue, 500, 0)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if totals.DiscountAmountCents != 500 {
		t.Fatalf("expected discount 500, got %d", totals.DiscountAmountCents)
	}
	if totals.TotalCents != 4500 {
		t.Fatalf("expected total 4500, got %d", totals.TotalCents)
	}
	if totals.GrossProfitCents != 1500 {
		t.Fatalf("expected gross profit 1500, got %d", totals.GrossProfitCents)
	}
}

func TestPricePercentDiscountRounds(t *testing.T) {
	// 10% of 1015 is 101.5, rounded half away from zero to 102.
	totals, err := Price([]Line{
		{ProductID: "p1", Qty: 1, UnitPriceCents: 1015},
	}, DiscountPercent, 0, 10)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if totals.DiscountAmountCents != 102 {
		t.Fatalf("expected discount 102, got %d", totals.DiscountAmountCents)
	}
	if totals.TotalCents != 913 {
		t.Fatalf("expected total 913, got %d", totals.TotalCents)
	}
}

func TestPriceFullPercentDiscount(t *testing.T) {
	totals, err := Price([]Line{
		{ProductID: "p1", Qty: 1, UnitPriceCents: 700},
	}, DiscountPercent, 0, 100)
	if err != nil {
		t.Fatalf("price failed: %v", err)
	}
	if totals.TotalCents != 0 {
		t.Fatalf("expected total 0 at 100%%, got %d", totals.TotalCents)
	}
}

func TestPriceRejectsBadDiscounts(t *testing.T) {
	lines := []Line{{ProductID: "p1", Qty: 1, UnitPriceCents: 1000}}

	cases := []struct {
		name  string
		dtype string
		value int64
		pct   float64
	}{
		{"value above subtotal", DiscountValue, 1001, 0},
		{"negative value", DiscountValue, -1, 0},
		{"percent above 100", DiscountPercent, 0, 100.5},
		{"negative percent", DiscountPercent, 0, -5},
		{"value without type", DiscountNone, 200, 0},
		{"percent without type", DiscountNone, 0, 10},
		{"unknown type", "COUPON", 0, 0},
	}
	for _, tc := range cases {
		_, err := Price(lines, tc.dtype, tc.value, tc.pct)
		if !errors.Is(err, ErrInvalidDiscount) {
			t.Fatalf("%s: expected ErrInvalidDiscount, got %v", tc.name, err)
		}
	}
}

func TestLineTotalRejectsBadLines(t *testing.T) {
	if _, err := LineTotal(Line{ProductID: "p1", Qty: 0, UnitPriceCents: 100}); err == nil {
		t.Fatalf("expected zero qty to fail")
	}
	if _, err := LineTotal(Line{ProductID: "p1", Qty: 1, UnitPriceCents: 100, DiscountCents: 101}); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected line discount above gross to fail")
	}
	if _, err := LineTotal(Line{ProductID: "p1", Qty: 1, UnitPriceCents: 100, DiscountCents: -1}); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("expected negative line discount to fail")
	}
}
