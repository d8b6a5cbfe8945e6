package documents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestComputeTotalsSingleLine(t *testing.T) {
	lines, totals, err := ComputeTotals([]LineItem{
		{Description: "Consulting", Quantity: 2, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 18},
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	require.InDelta(t, 20.0, lines[0].DiscountAmount, 0.001)
	require.InDelta(t, 32.4, lines[0].TaxAmount, 0.001)
	require.InDelta(t, 212.4, lines[0].LineTotal, 0.001)
	require.Equal(t, 1, lines[0].LineOrder)

	require.InDelta(t, 200.0, totals.Subtotal, 0.001)
	require.InDelta(t, 20.0, totals.TotalDiscount, 0.001)
	require.InDelta(t, 32.4, totals.TotalTax, 0.001)
	require.InDelta(t, 212.4, totals.TotalAmount, 0.001)
}

func TestComputeTotalsEmptyIsValid(t *testing.T) {
	lines, totals, err := ComputeTotals(nil)
	require.NoError(t, err)
	require.Empty(t, lines)
	require.Zero(t, totals.Subtotal)
	require.Zero(t, totals.TotalDiscount)
	require.Zero(t, totals.TotalTax)
	require.Zero(t, totals.TotalAmount)
}

func TestComputeTotalsAggregatesAreConsistent(t *testing.T) {
	lines := []LineItem{
		{Quantity: 3, UnitPrice: 19.99, DiscountPercent: 7.5, TaxPercent: 18},
		{Quantity: 1, UnitPrice: 0.07, TaxPercent: 5},
		{Quantity: 12, UnitPrice: 3.33, DiscountPercent: 33.33, TaxPercent: 12.5},
		{Quantity: 2, UnitPrice: 250},
	}
	_, totals, err := ComputeTotals(lines)
	require.NoError(t, err)
	require.InDelta(t, totals.Subtotal-totals.TotalDiscount+totals.TotalTax, totals.TotalAmount, 0.0001)
}

func TestComputeTotalsRejectsBadLines(t *testing.T) {
	cases := []struct {
		name string
		item LineItem
	}{
		{"zero quantity", LineItem{Quantity: 0, UnitPrice: 10}},
		{"fractional quantity below one", LineItem{Quantity: 0.5, UnitPrice: 10}},
		{"negative price", LineItem{Quantity: 1, UnitPrice: -1}},
		{"discount above 100", LineItem{Quantity: 1, UnitPrice: 10, DiscountPercent: 101}},
		{"negative discount", LineItem{Quantity: 1, UnitPrice: 10, DiscountPercent: -5}},
		{"negative tax", LineItem{Quantity: 1, UnitPrice: 10, TaxPercent: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ComputeTotals([]LineItem{tc.item})
			require.ErrorIs(t, err, ErrValidation)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			require.NotEmpty(t, verr.Field)
		})
	}
}

func TestCustomerRefValidate(t *testing.T) {
	require.NoError(t, CustomerRef{Kind: CustomerKindLead, ID: 1}.Validate())
	require.NoError(t, CustomerRef{Kind: CustomerKindAccount, ID: 42}.Validate())
	require.ErrorIs(t, CustomerRef{Kind: "PROSPECT", ID: 1}.Validate(), ErrValidation)
	require.ErrorIs(t, CustomerRef{Kind: CustomerKindContact}.Validate(), ErrValidation)
}
