package rfi

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// Status enumerates RFI statuses.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSent      Status = "SENT"
	StatusResponded Status = "RESPONDED"
	StatusConverted Status = "CONVERTED"
	StatusClosed    Status = "CLOSED"
)

// RFI is a request for information opened against a customer. Its line
// items capture the requested goods or services; pricing fields are carried
// so the downstream quotation can be seeded from the snapshot.
type RFI struct {
	ID       int64                 `json:"id"`
	TenantID int64                 `json:"tenant_id"`
	Number   string                `json:"number"`
	Status   Status                `json:"status"`
	Customer documents.CustomerRef `json:"customer"`

	Subject string `json:"subject"`

	Lines []documents.LineItem `json:"lines"`
	documents.Totals

	ResponseDue *time.Time `json:"response_due,omitempty"`
	Notes       *string    `json:"notes,omitempty"`

	// Conversion gate. Once flipped the RFI is immutable and the quotation
	// reference never changes.
	ConvertedToQuotation bool   `json:"converted_to_quotation"`
	QuotationID          *int64 `json:"quotation_id,omitempty"`

	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Editable reports whether the RFI may still be mutated.
func (r *RFI) Editable() bool {
	return !r.ConvertedToQuotation
}
