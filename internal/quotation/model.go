package quotation

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// Status enumerates quotation statuses.
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusSent     Status = "SENT"
	StatusViewed   Status = "VIEWED"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
	StatusExpired  Status = "EXPIRED"
)

// Quotation is a priced offer produced for a customer, optionally seeded
// from an RFI and convertible once into an invoice.
type Quotation struct {
	ID       int64                 `json:"id"`
	TenantID int64                 `json:"tenant_id"`
	Number   string                `json:"number"`
	Status   Status                `json:"status"`
	Customer documents.CustomerRef `json:"customer"`

	Lines []documents.LineItem `json:"lines"`
	documents.Totals

	ValidUntil *time.Time `json:"valid_until,omitempty"`
	Notes      *string    `json:"notes,omitempty"`
	Terms      *string    `json:"terms,omitempty"`

	// Conversion gate. Once flipped the quotation is immutable and the
	// invoice reference never changes.
	ConvertedToInvoice bool   `json:"converted_to_invoice"`
	InvoiceID          *int64 `json:"invoice_id,omitempty"`

	// RFIID backlinks to the RFI this quotation was converted from.
	RFIID *int64 `json:"rfi_id,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Editable reports whether the quotation may still be mutated.
func (q *Quotation) Editable() bool {
	return !q.ConvertedToInvoice
}
