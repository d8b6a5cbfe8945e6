package invoice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name       string
		current    Status
		totalPaid  float64
		balanceDue float64
		want       Status
	}{
		{"no payments leaves draft", StatusDraft, 0, 212.4, StatusDraft},
		{"no payments leaves sent", StatusSent, 0, 212.4, StatusSent},
		{"partial payment", StatusSent, 100, 112.4, StatusPartiallyPaid},
		{"exact payment settles", StatusSent, 212.4, 0, StatusPaid},
		{"overpayment settles", StatusSent, 300, -87.6, StatusPaid},
		{"overdue settles on full payment", StatusOverdue, 212.4, 0, StatusPaid},
		{"overdue goes partial", StatusOverdue, 50, 162.4, StatusPartiallyPaid},
		{"zero total with no payments stays draft", StatusDraft, 0, 0, StatusDraft},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DeriveStatus(tt.current, tt.totalPaid, tt.balanceDue))
		})
	}
}

func TestDeriveStatusIdempotent(t *testing.T) {
	got := DeriveStatus(StatusSent, 100, 112.4)
	// Re-deriving from the derived status with the same totals changes
	// nothing.
	require.Equal(t, got, DeriveStatus(got, 100, 112.4))
}

func TestSumPayments(t *testing.T) {
	payments := []Payment{
		{Amount: 0.1}, {Amount: 0.2}, {Amount: 0.3},
	}
	require.Equal(t, 0.6, SumPayments(payments))
	require.Equal(t, 0.0, SumPayments(nil))
}
