package lifecycle

import (
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/purchaseorder"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/rfi"
)

// The mapping functions below copy the commercial snapshot across a
// conversion boundary, one explicit function per (source, target) pair.
// Field-by-field copying is deliberate: a new source field never leaks into
// the target unless a mapper is taught about it.

func copyLines(lines []documents.LineItem) []documents.LineItem {
	out := make([]documents.LineItem, len(lines))
	for i, line := range lines {
		line.ID = 0
		out[i] = line
	}
	return out
}

func quotationFromRFI(src *rfi.RFI) quotation.Quotation {
	srcID := src.ID
	return quotation.Quotation{
		TenantID:  src.TenantID,
		Status:    quotation.StatusDraft,
		Customer:  src.Customer,
		Lines:     copyLines(src.Lines),
		Totals:    src.Totals,
		Notes:     src.Notes,
		RFIID:     &srcID,
		CreatedBy: src.CreatedBy,
	}
}

func invoiceFromQuotation(src *quotation.Quotation, now time.Time) invoice.Invoice {
	srcID := src.ID
	due := now.AddDate(0, 0, invoice.DefaultPaymentTermDays)
	return invoice.Invoice{
		TenantID:    src.TenantID,
		Status:      invoice.StatusDraft,
		Customer:    src.Customer,
		Lines:       copyLines(src.Lines),
		Totals:      src.Totals,
		BalanceDue:  src.TotalAmount,
		DueDate:     &due,
		Notes:       src.Notes,
		Terms:       src.Terms,
		QuotationID: &srcID,
		CreatedBy:   src.CreatedBy,
	}
}

func invoiceFromPurchaseOrder(src *purchaseorder.PurchaseOrder, now time.Time) invoice.Invoice {
	srcID := src.ID
	due := now.AddDate(0, 0, invoice.DefaultPaymentTermDays)
	return invoice.Invoice{
		TenantID:        src.TenantID,
		Status:          invoice.StatusDraft,
		Customer:        src.Customer,
		Lines:           copyLines(src.Lines),
		Totals:          src.Totals,
		BalanceDue:      src.TotalAmount,
		DueDate:         &due,
		Notes:           src.Notes,
		Terms:           src.Terms,
		PurchaseOrderID: &srcID,
		CreatedBy:       src.CreatedBy,
	}
}
