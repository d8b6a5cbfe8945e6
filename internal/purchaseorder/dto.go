package purchaseorder

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

type LineItemRequest struct {
	Description     string  `json:"description" validate:"required,max=500"`
	Quantity        float64 `json:"quantity" validate:"required,gte=1"`
	UnitPrice       float64 `json:"unit_price" validate:"gte=0"`
	DiscountPercent float64 `json:"discount_percent" validate:"gte=0,lte=100"`
	TaxPercent      float64 `json:"tax_percent" validate:"gte=0,lte=100"`
	LineOrder       int     `json:"line_order" validate:"gte=0"`
}

type CreatePurchaseOrderRequest struct {
	CustomerKind     string            `json:"customer_kind" validate:"required,oneof=LEAD CONTACT ACCOUNT"`
	CustomerID       int64             `json:"customer_id" validate:"required,gt=0"`
	QuotationID      *int64            `json:"quotation_id,omitempty" validate:"omitempty,gt=0"`
	ExpectedDelivery *time.Time        `json:"expected_delivery,omitempty"`
	Notes            *string           `json:"notes,omitempty"`
	Terms            *string           `json:"terms,omitempty"`
	Lines            []LineItemRequest `json:"lines" validate:"dive"`
}

type UpdatePurchaseOrderRequest struct {
	CustomerKind     *string            `json:"customer_kind,omitempty" validate:"omitempty,oneof=LEAD CONTACT ACCOUNT"`
	CustomerID       *int64             `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	ExpectedDelivery *time.Time         `json:"expected_delivery,omitempty"`
	Notes            *string            `json:"notes,omitempty"`
	Terms            *string            `json:"terms,omitempty"`
	Lines            *[]LineItemRequest `json:"lines,omitempty" validate:"omitempty,dive"`
}

type ListPurchaseOrdersRequest struct {
	TenantID   int64
	Status     *Status
	CustomerID *int64
	Limit      int
	Offset     int
}

func linesFromRequests(reqs []LineItemRequest) []documents.LineItem {
	lines := make([]documents.LineItem, len(reqs))
	for i, r := range reqs {
		lines[i] = documents.LineItem{
			Description:     r.Description,
			Quantity:        r.Quantity,
			UnitPrice:       r.UnitPrice,
			DiscountPercent: r.DiscountPercent,
			TaxPercent:      r.TaxPercent,
			LineOrder:       r.LineOrder,
		}
	}
	return lines
}
