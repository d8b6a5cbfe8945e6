package render

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
)

var amounts = message.NewPrinter(language.English)

// FormatAmount renders a money value with thousands separators.
func FormatAmount(v float64) string {
	return amounts.Sprintf("%.2f", v)
}

// DocumentView is the template model shared by all printable documents.
type DocumentView struct {
	Title    string
	Number   string
	Status   string
	Customer string
	Date     string
	DueDate  string

	Lines []LineView

	Subtotal      string
	TotalDiscount string
	TotalTax      string
	TotalAmount   string
	TotalPaid     string
	BalanceDue    string

	Notes string
	Terms string
}

// LineView is one table row.
type LineView struct {
	Description string
	Quantity    string
	UnitPrice   string
	Discount    string
	Tax         string
	LineTotal   string
}

// QuotationView builds the template model for a quotation.
func QuotationView(q *quotation.Quotation) DocumentView {
	view := DocumentView{
		Title:         "Quotation",
		Number:        q.Number,
		Status:        string(q.Status),
		Customer:      customerLabel(q.Customer),
		Date:          q.CreatedAt.Format("2 January 2006"),
		Lines:         lineViews(q.Lines),
		Subtotal:      FormatAmount(q.Subtotal),
		TotalDiscount: FormatAmount(q.TotalDiscount),
		TotalTax:      FormatAmount(q.TotalTax),
		TotalAmount:   FormatAmount(q.TotalAmount),
	}
	if q.ValidUntil != nil {
		view.DueDate = "Valid until " + q.ValidUntil.Format("2 January 2006")
	}
	if q.Notes != nil {
		view.Notes = *q.Notes
	}
	if q.Terms != nil {
		view.Terms = *q.Terms
	}
	return view
}

// InvoiceView builds the template model for an invoice, including the
// ledger aggregates.
func InvoiceView(inv *invoice.Invoice) DocumentView {
	view := DocumentView{
		Title:         "Invoice",
		Number:        inv.Number,
		Status:        string(inv.Status),
		Customer:      customerLabel(inv.Customer),
		Date:          inv.CreatedAt.Format("2 January 2006"),
		Lines:         lineViews(inv.Lines),
		Subtotal:      FormatAmount(inv.Subtotal),
		TotalDiscount: FormatAmount(inv.TotalDiscount),
		TotalTax:      FormatAmount(inv.TotalTax),
		TotalAmount:   FormatAmount(inv.TotalAmount),
		TotalPaid:     FormatAmount(inv.TotalPaid),
		BalanceDue:    FormatAmount(inv.BalanceDue),
	}
	if inv.DueDate != nil {
		view.DueDate = "Due " + inv.DueDate.Format("2 January 2006")
	}
	if inv.Notes != nil {
		view.Notes = *inv.Notes
	}
	if inv.Terms != nil {
		view.Terms = *inv.Terms
	}
	return view
}

func customerLabel(ref documents.CustomerRef) string {
	return fmt.Sprintf("%s #%d", ref.Kind, ref.ID)
}

func lineViews(lines []documents.LineItem) []LineView {
	out := make([]LineView, len(lines))
	for i, line := range lines {
		out[i] = LineView{
			Description: line.Description,
			Quantity:    amounts.Sprintf("%v", line.Quantity),
			UnitPrice:   FormatAmount(line.UnitPrice),
			Discount:    amounts.Sprintf("%v%%", line.DiscountPercent),
			Tax:         amounts.Sprintf("%v%%", line.TaxPercent),
			LineTotal:   FormatAmount(line.LineTotal),
		}
	}
	return out
}

var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}} {{.Number}}</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; color: #1a1a1a; margin: 40px; }
h1 { font-size: 22px; margin-bottom: 0; }
.meta { color: #666; margin-bottom: 24px; }
table { width: 100%; border-collapse: collapse; margin-top: 16px; }
th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid #ddd; font-size: 13px; }
th { background: #f5f5f5; }
td.num, th.num { text-align: right; }
.totals { margin-top: 16px; width: 320px; margin-left: auto; }
.totals td { border: none; }
.grand { font-weight: bold; border-top: 2px solid #1a1a1a; }
.notes { margin-top: 24px; font-size: 12px; color: #444; }
</style>
</head>
<body>
<h1>{{.Title}} {{.Number}}</h1>
<div class="meta">
	<div>{{.Customer}}</div>
	<div>{{.Date}}{{if .DueDate}} &middot; {{.DueDate}}{{end}} &middot; {{.Status}}</div>
</div>
<table>
<thead>
<tr><th>Description</th><th class="num">Qty</th><th class="num">Unit price</th><th class="num">Discount</th><th class="num">Tax</th><th class="num">Total</th></tr>
</thead>
<tbody>
{{range .Lines}}<tr><td>{{.Description}}</td><td class="num">{{.Quantity}}</td><td class="num">{{.UnitPrice}}</td><td class="num">{{.Discount}}</td><td class="num">{{.Tax}}</td><td class="num">{{.LineTotal}}</td></tr>
{{end}}</tbody>
</table>
<table class="totals">
<tr><td>Subtotal</td><td class="num">{{.Subtotal}}</td></tr>
<tr><td>Discount</td><td class="num">-{{.TotalDiscount}}</td></tr>
<tr><td>Tax</td><td class="num">{{.TotalTax}}</td></tr>
<tr class="grand"><td>Total</td><td class="num">{{.TotalAmount}}</td></tr>
{{if .TotalPaid}}<tr><td>Paid</td><td class="num">{{.TotalPaid}}</td></tr>
<tr><td>Balance due</td><td class="num">{{.BalanceDue}}</td></tr>{{end}}
</table>
{{if .Notes}}<div class="notes">{{.Notes}}</div>{{end}}
{{if .Terms}}<div class="notes">{{.Terms}}</div>{{end}}
</body>
</html>`))

// HTML renders the view into a standalone HTML page.
func HTML(view DocumentView) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("render: execute template: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename suggests a download name for the artifact.
func Filename(number string) string {
	return fmt.Sprintf("%s-%s.pdf", number, time.Now().Format("20060102"))
}
