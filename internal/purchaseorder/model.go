package purchaseorder

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// Status enumerates purchase order statuses.
type Status string

const (
	StatusDraft      Status = "DRAFT"
	StatusReceived   Status = "RECEIVED"
	StatusApproved   Status = "APPROVED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

// PurchaseOrder is a confirmed customer order, optionally seeded from an
// accepted quotation and convertible once into an invoice after approval.
type PurchaseOrder struct {
	ID       int64                 `json:"id"`
	TenantID int64                 `json:"tenant_id"`
	Number   string                `json:"number"`
	Status   Status                `json:"status"`
	Customer documents.CustomerRef `json:"customer"`

	Lines []documents.LineItem `json:"lines"`
	documents.Totals

	ExpectedDelivery *time.Time `json:"expected_delivery,omitempty"`
	Notes            *string    `json:"notes,omitempty"`
	Terms            *string    `json:"terms,omitempty"`

	// Conversion gate. Conversion additionally requires APPROVED status.
	ConvertedToInvoice bool   `json:"converted_to_invoice"`
	InvoiceID          *int64 `json:"invoice_id,omitempty"`

	// QuotationID backlinks to the quotation this order was placed against.
	QuotationID *int64 `json:"quotation_id,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Editable reports whether the purchase order may still be mutated.
func (p *PurchaseOrder) Editable() bool {
	return !p.ConvertedToInvoice
}
