package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
)

func TestFormatAmount(t *testing.T) {
	require.Equal(t, "1,234.50", FormatAmount(1234.5))
	require.Equal(t, "0.00", FormatAmount(0))
	require.Equal(t, "212.40", FormatAmount(212.4))
}

func TestInvoiceHTML(t *testing.T) {
	lines, totals, err := documents.ComputeTotals([]documents.LineItem{
		{Description: "License", Quantity: 2, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 18},
	})
	require.NoError(t, err)

	due := time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC)
	inv := &invoice.Invoice{
		Number:     "INV-2026-00042",
		Status:     invoice.StatusSent,
		Customer:   documents.CustomerRef{Kind: documents.CustomerKindAccount, ID: 17},
		Lines:      lines,
		Totals:     totals,
		TotalPaid:  100,
		BalanceDue: 112.4,
		DueDate:    &due,
		CreatedAt:  time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC),
	}

	html, err := HTML(InvoiceView(inv))
	require.NoError(t, err)

	out := string(html)
	require.Contains(t, out, "INV-2026-00042")
	require.Contains(t, out, "License")
	require.Contains(t, out, "212.40")
	require.Contains(t, out, "112.40")
	require.Contains(t, out, "Due 30 September 2026")
	require.Contains(t, out, "ACCOUNT #17")
}

func TestGotenbergConvertHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/forms/chromium/convert/html", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1 << 20))
		_, header, err := r.FormFile("files")
		require.NoError(t, err)
		require.Equal(t, "index.html", header.Filename)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))
	defer srv.Close()

	g := NewGotenberg(srv.URL)
	pdf, err := g.ConvertHTML(context.Background(), []byte("<html></html>"))
	require.NoError(t, err)
	require.Contains(t, string(pdf), "%PDF")
}

func TestGotenbergDisabled(t *testing.T) {
	g := NewGotenberg("")
	require.False(t, g.Enabled())
	_, err := g.ConvertHTML(context.Background(), []byte("x"))
	require.Error(t, err)
}

func TestGotenbergErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewGotenberg(srv.URL)
	_, err := g.ConvertHTML(context.Background(), []byte("<html></html>"))
	require.ErrorContains(t, err, "500")
}
