package invoice

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// Payment is one append-only ledger entry against an invoice. Entries are
// never edited or removed; corrections are new entries.
type Payment struct {
	ID         int64     `json:"id"`
	InvoiceID  int64     `json:"invoice_id"`
	Amount     float64   `json:"amount"`
	Method     string    `json:"method"`
	Reference  string    `json:"reference"`
	RecordedBy int64     `json:"recorded_by"`
	RecordedAt time.Time `json:"recorded_at"`
}

// SumPayments totals the ledger, rounded to cents.
func SumPayments(payments []Payment) float64 {
	var sum float64
	for _, p := range payments {
		sum += p.Amount
	}
	return documents.Round2(sum)
}

// DeriveStatus computes the payment-derived status from the ledger totals.
// It is a pure function and must be applied after every recomputation,
// whether triggered by a payment or a line-item edit.
//
// A positive ledger that covers the full amount yields PAID even when the
// invoice was previously SENT or OVERDUE. Overpayment is accepted; the
// balance simply goes negative. An empty ledger never changes the status,
// so a zero-total draft stays a draft.
func DeriveStatus(current Status, totalPaid, balanceDue float64) Status {
	switch {
	case totalPaid > 0 && balanceDue <= 0:
		return StatusPaid
	case totalPaid > 0 && balanceDue > 0:
		return StatusPartiallyPaid
	default:
		return current
	}
}
