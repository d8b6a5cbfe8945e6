package invoice

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// Status enumerates invoice statuses. PARTIALLY_PAID and PAID are derived
// from the payment ledger; the rest are set by explicit transitions.
type Status string

const (
	StatusDraft         Status = "DRAFT"
	StatusSent          Status = "SENT"
	StatusPartiallyPaid Status = "PARTIALLY_PAID"
	StatusPaid          Status = "PAID"
	StatusOverdue       Status = "OVERDUE"
	StatusCancelled     Status = "CANCELLED"
)

// Invoice is the terminal commercial document. It accrues payments and its
// paid statuses derive from the ledger rather than explicit transitions.
type Invoice struct {
	ID       int64                 `json:"id"`
	TenantID int64                 `json:"tenant_id"`
	Number   string                `json:"number"`
	Status   Status                `json:"status"`
	Customer documents.CustomerRef `json:"customer"`

	Lines []documents.LineItem `json:"lines"`
	documents.Totals

	TotalPaid  float64 `json:"total_paid"`
	BalanceDue float64 `json:"balance_due"`

	Payments []Payment `json:"payments,omitempty"`

	DueDate *time.Time `json:"due_date,omitempty"`
	Notes   *string    `json:"notes,omitempty"`
	Terms   *string    `json:"terms,omitempty"`

	// Backlinks to the source document this invoice was converted from.
	QuotationID     *int64 `json:"quotation_id,omitempty"`
	PurchaseOrderID *int64 `json:"purchase_order_id,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Editable reports whether line items and commercial terms may still change.
// Settled and cancelled invoices are frozen.
func (i *Invoice) Editable() bool {
	return i.Status != StatusPaid && i.Status != StatusCancelled
}
