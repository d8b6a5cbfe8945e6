package documents

// DocType identifies one of the four commercial document types. The value
// doubles as the number prefix.
type DocType string

const (
	DocTypeRFI           DocType = "RFI"
	DocTypeQuotation     DocType = "QT"
	DocTypePurchaseOrder DocType = "PO"
	DocTypeInvoice       DocType = "INV"
)

// Prefix returns the human-readable number prefix for the type.
func (t DocType) Prefix() string { return string(t) }

// CustomerKind tags which sales entity a document references.
type CustomerKind string

const (
	CustomerKindLead    CustomerKind = "LEAD"
	CustomerKindContact CustomerKind = "CONTACT"
	CustomerKindAccount CustomerKind = "ACCOUNT"
)

// CustomerRef is a tagged reference to a lead, contact or account. Keeping
// the kind as a closed enum lets resolvers switch exhaustively instead of
// matching on a free-form type string.
type CustomerRef struct {
	Kind CustomerKind `json:"kind"`
	ID   int64        `json:"id"`
}

// Validate rejects unknown kinds and zero IDs.
func (r CustomerRef) Validate() error {
	switch r.Kind {
	case CustomerKindLead, CustomerKindContact, CustomerKindAccount:
	default:
		return &ValidationError{Field: "customer.kind", Reason: "must be LEAD, CONTACT or ACCOUNT"}
	}
	if r.ID <= 0 {
		return &ValidationError{Field: "customer.id", Reason: "must be positive"}
	}
	return nil
}

// LineItem is one priced row on a document. The amount fields are always
// derived by ComputeTotals; client-supplied values are discarded.
type LineItem struct {
	ID              int64   `json:"id,omitempty"`
	Description     string  `json:"description"`
	Quantity        float64 `json:"quantity"`
	UnitPrice       float64 `json:"unit_price"`
	DiscountPercent float64 `json:"discount_percent"`
	TaxPercent      float64 `json:"tax_percent"`
	DiscountAmount  float64 `json:"discount_amount"`
	TaxAmount       float64 `json:"tax_amount"`
	LineTotal       float64 `json:"line_total"`
	LineOrder       int     `json:"line_order"`
}

// ConversionResult describes the target document created by a conversion.
type ConversionResult struct {
	TargetType   DocType `json:"target_type"`
	TargetID     int64   `json:"target_id"`
	TargetNumber string  `json:"target_number"`
}

// Totals holds the document-level financial aggregates.
type Totals struct {
	Subtotal      float64 `json:"subtotal"`
	TotalDiscount float64 `json:"total_discount"`
	TotalTax      float64 `json:"total_tax"`
	TotalAmount   float64 `json:"total_amount"`
}
