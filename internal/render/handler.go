package render

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/httpx"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// QuotationGetter loads a quotation for rendering.
type QuotationGetter interface {
	Get(ctx context.Context, tenantID, id int64) (*quotation.Quotation, error)
}

// InvoiceGetter loads an invoice for rendering.
type InvoiceGetter interface {
	Get(ctx context.Context, tenantID, id int64) (*invoice.Invoice, error)
}

// Handler exposes PDF downloads for printable documents.
type Handler struct {
	logger     *slog.Logger
	quotations QuotationGetter
	invoices   InvoiceGetter
	pdf        *Gotenberg
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, quotations QuotationGetter, invoices InvoiceGetter, pdf *Gotenberg) *Handler {
	return &Handler{logger: logger, quotations: quotations, invoices: invoices, pdf: pdf}
}

func (h *Handler) quotationPDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	q, err := h.quotations.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, QuotationView(q), q.Number)
}

func (h *Handler) invoicePDF(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.invoices.Get(r.Context(), shared.TenantFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, InvoiceView(inv), inv.Number)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, view DocumentView, number string) {
	html, err := HTML(view)
	if err != nil {
		h.logger.Error("render html", slog.String("number", number), slog.Any("error", err))
		httpx.Problem(w, http.StatusInternalServerError, "Render Failed", "")
		return
	}

	// Without a converter the raw HTML is served, which keeps local
	// setups usable.
	if !h.pdf.Enabled() {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(html)
		return
	}

	pdf, err := h.pdf.ConvertHTML(r.Context(), html)
	if err != nil {
		h.logger.Error("render pdf", slog.String("number", number), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Render Failed", "pdf conversion unavailable")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+Filename(number)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "document id must be a positive integer")
		return 0, false
	}
	return id, true
}

// MountRoutes attaches the PDF endpoints alongside the document routes.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/quotations/{id}/pdf", h.quotationPDF)
	r.Get("/invoices/{id}/pdf", h.invoicePDF)
}
