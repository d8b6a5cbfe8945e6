package documents

import (
	"fmt"
	"math"
)

// ComputeTotals fills the derived amounts on every line and returns the
// document aggregates. Raw per-line values are summed before any rounding so
// the aggregates never drift from the line roll-up; the stored line amounts
// are rounded for presentation only.
//
// An empty slice is a valid draft state and yields zero totals.
func ComputeTotals(items []LineItem) ([]LineItem, Totals, error) {
	var rawSubtotal, rawDiscount, rawTax float64

	out := make([]LineItem, len(items))
	for i, item := range items {
		if err := validateLine(i, item); err != nil {
			return nil, Totals{}, err
		}

		gross := item.Quantity * item.UnitPrice
		discount := gross * item.DiscountPercent / 100
		taxable := gross - discount
		tax := taxable * item.TaxPercent / 100

		rawSubtotal += gross
		rawDiscount += discount
		rawTax += tax

		item.DiscountAmount = Round2(discount)
		item.TaxAmount = Round2(tax)
		item.LineTotal = Round2(taxable + tax)
		if item.LineOrder == 0 {
			item.LineOrder = i + 1
		}
		out[i] = item
	}

	totals := Totals{
		Subtotal:      Round2(rawSubtotal),
		TotalDiscount: Round2(rawDiscount),
		TotalTax:      Round2(rawTax),
	}
	// Derived from the rounded aggregates so the consistency invariant
	// totalAmount == subtotal - totalDiscount + totalTax holds exactly.
	totals.TotalAmount = Round2(totals.Subtotal - totals.TotalDiscount + totals.TotalTax)

	return out, totals, nil
}

func validateLine(i int, item LineItem) error {
	field := func(name string) string { return fmt.Sprintf("line_items[%d].%s", i, name) }

	if item.Quantity < 1 {
		return &ValidationError{Field: field("quantity"), Reason: "must be at least 1"}
	}
	if item.UnitPrice < 0 {
		return &ValidationError{Field: field("unit_price"), Reason: "must not be negative"}
	}
	if item.DiscountPercent < 0 || item.DiscountPercent > 100 {
		return &ValidationError{Field: field("discount_percent"), Reason: "must be between 0 and 100"}
	}
	if item.TaxPercent < 0 || item.TaxPercent > 100 {
		return &ValidationError{Field: field("tax_percent"), Reason: "must be between 0 and 100"}
	}
	return nil
}

// Round2 rounds a monetary amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
