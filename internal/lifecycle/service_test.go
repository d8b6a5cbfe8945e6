package lifecycle

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/purchaseorder"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/rfi"
)

type seqStore struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (m *seqStore) NextSeq(_ context.Context, tenantID int64, docType documents.DocType, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	key := fmt.Sprintf("%d/%s/%d", tenantID, docType, year)
	m.seqs[key]++
	return m.seqs[key], nil
}

// memStore keeps all four document types in memory and mirrors the
// transactional claim semantics of the SQL store: the target insert and
// the source flag flip happen under one lock, and a lost claim inserts
// nothing.
type memStore struct {
	mu       sync.Mutex
	nextID   int64
	rfis     map[int64]*rfi.RFI
	quotes   map[int64]*quotation.Quotation
	orders   map[int64]*purchaseorder.PurchaseOrder
	invoices map[int64]*invoice.Invoice
}

func newMemStore() *memStore {
	return &memStore{
		rfis:     make(map[int64]*rfi.RFI),
		quotes:   make(map[int64]*quotation.Quotation),
		orders:   make(map[int64]*purchaseorder.PurchaseOrder),
		invoices: make(map[int64]*invoice.Invoice),
	}
}

func (s *memStore) GetRFI(_ context.Context, tenantID, id int64) (*rfi.RFI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.rfis[id]
	if !ok || src.TenantID != tenantID {
		return nil, documents.ErrNotFound
	}
	out := *src
	return &out, nil
}

func (s *memStore) CreateQuotationFromRFI(_ context.Context, rfiID int64, q quotation.Quotation) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.rfis[rfiID]
	if !ok || src.TenantID != q.TenantID {
		return 0, documents.ErrNotFound
	}
	if src.ConvertedToQuotation || src.Status == rfi.StatusClosed {
		return 0, errClaimLost
	}
	s.nextID++
	q.ID = s.nextID
	s.quotes[q.ID] = &q
	src.ConvertedToQuotation = true
	src.Status = rfi.StatusConverted
	src.QuotationID = &q.ID
	return q.ID, nil
}

func (s *memStore) GetQuotation(_ context.Context, tenantID, id int64) (*quotation.Quotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.quotes[id]
	if !ok || src.TenantID != tenantID {
		return nil, documents.ErrNotFound
	}
	out := *src
	return &out, nil
}

func (s *memStore) CreateInvoiceFromQuotation(_ context.Context, quotationID int64, inv invoice.Invoice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.quotes[quotationID]
	if !ok || src.TenantID != inv.TenantID {
		return 0, documents.ErrNotFound
	}
	if src.ConvertedToInvoice {
		return 0, errClaimLost
	}
	s.nextID++
	inv.ID = s.nextID
	s.invoices[inv.ID] = &inv
	src.ConvertedToInvoice = true
	src.Status = quotation.StatusAccepted
	src.InvoiceID = &inv.ID
	return inv.ID, nil
}

func (s *memStore) GetPurchaseOrder(_ context.Context, tenantID, id int64) (*purchaseorder.PurchaseOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.orders[id]
	if !ok || src.TenantID != tenantID {
		return nil, documents.ErrNotFound
	}
	out := *src
	return &out, nil
}

func (s *memStore) CreateInvoiceFromPurchaseOrder(_ context.Context, orderID int64, inv invoice.Invoice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.orders[orderID]
	if !ok || src.TenantID != inv.TenantID {
		return 0, documents.ErrNotFound
	}
	if src.ConvertedToInvoice || src.Status != purchaseorder.StatusApproved {
		return 0, errClaimLost
	}
	s.nextID++
	inv.ID = s.nextID
	s.invoices[inv.ID] = &inv
	src.ConvertedToInvoice = true
	src.InvoiceID = &inv.ID
	return inv.ID, nil
}

func (s *memStore) addRFI(r rfi.RFI) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r.ID = s.nextID
	s.rfis[r.ID] = &r
	return r.ID
}

func (s *memStore) addQuotation(q quotation.Quotation) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	q.ID = s.nextID
	s.quotes[q.ID] = &q
	return q.ID
}

func (s *memStore) addOrder(p purchaseorder.PurchaseOrder) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	p.ID = s.nextID
	s.orders[p.ID] = &p
	return p.ID
}

func (s *memStore) invoiceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.invoices)
}

func newTestService(store *memStore) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, docnum.New(&seqStore{}), nil, nil, logger)
}

func sampleLines() []documents.LineItem {
	lines, _, err := documents.ComputeTotals([]documents.LineItem{
		{Description: "License", Quantity: 2, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 18},
	})
	if err != nil {
		panic(err)
	}
	return lines
}

func sampleTotals() documents.Totals {
	_, totals, err := documents.ComputeTotals([]documents.LineItem{
		{Description: "License", Quantity: 2, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 18},
	})
	if err != nil {
		panic(err)
	}
	return totals
}

func TestConvertRFIToQuotation(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	id := store.addRFI(rfi.RFI{
		TenantID: 1, Number: "RFI-2026-00001", Status: rfi.StatusResponded,
		Customer: documents.CustomerRef{Kind: documents.CustomerKindLead, ID: 8},
		Lines:    sampleLines(), Totals: sampleTotals(), CreatedBy: 3,
	})

	result, err := svc.ConvertRFIToQuotation(ctx, 1, id, 3)
	require.NoError(t, err)
	require.Equal(t, documents.DocTypeQuotation, result.TargetType)
	require.Contains(t, result.TargetNumber, "QT-")

	src, err := store.GetRFI(ctx, 1, id)
	require.NoError(t, err)
	require.True(t, src.ConvertedToQuotation)
	require.Equal(t, rfi.StatusConverted, src.Status)
	require.NotNil(t, src.QuotationID)
	require.Equal(t, result.TargetID, *src.QuotationID)

	target, err := store.GetQuotation(ctx, 1, result.TargetID)
	require.NoError(t, err)
	require.Equal(t, quotation.StatusDraft, target.Status)
	require.Equal(t, src.Customer, target.Customer)
	require.InDelta(t, src.TotalAmount, target.TotalAmount, 1e-9)
	require.NotNil(t, target.RFIID)

	// Second conversion is refused.
	_, err = svc.ConvertRFIToQuotation(ctx, 1, id, 3)
	require.ErrorIs(t, err, documents.ErrAlreadyConverted)
}

func TestConvertRFIRefusesClosed(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	id := store.addRFI(rfi.RFI{
		TenantID: 1, Number: "RFI-2026-00002", Status: rfi.StatusClosed,
		Customer: documents.CustomerRef{Kind: documents.CustomerKindLead, ID: 8},
	})

	_, err := svc.ConvertRFIToQuotation(context.Background(), 1, id, 3)
	require.ErrorIs(t, err, documents.ErrInvalidState)
}

func TestConvertQuotationToInvoice(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	id := store.addQuotation(quotation.Quotation{
		TenantID: 1, Number: "QT-2026-00001", Status: quotation.StatusDraft,
		Customer: documents.CustomerRef{Kind: documents.CustomerKindAccount, ID: 41},
		Lines:    sampleLines(), Totals: sampleTotals(), CreatedBy: 7,
	})

	// Not status-gated: even a draft converts, and the source is forced to
	// ACCEPTED.
	result, err := svc.ConvertQuotationToInvoice(ctx, 1, id, 7)
	require.NoError(t, err)
	require.Equal(t, documents.DocTypeInvoice, result.TargetType)

	src, err := store.GetQuotation(ctx, 1, id)
	require.NoError(t, err)
	require.True(t, src.ConvertedToInvoice)
	require.Equal(t, quotation.StatusAccepted, src.Status)

	store.mu.Lock()
	target := store.invoices[result.TargetID]
	store.mu.Unlock()
	require.Equal(t, invoice.StatusDraft, target.Status)
	require.InDelta(t, 212.4, target.TotalAmount, 1e-9)
	require.InDelta(t, 212.4, target.BalanceDue, 1e-9)
	require.NotNil(t, target.DueDate)
	require.NotNil(t, target.QuotationID)
}

func TestConvertPurchaseOrderRequiresApproval(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	id := store.addOrder(purchaseorder.PurchaseOrder{
		TenantID: 1, Number: "PO-2026-00001", Status: purchaseorder.StatusReceived,
		Customer: documents.CustomerRef{Kind: documents.CustomerKindAccount, ID: 5},
		Lines:    sampleLines(), Totals: sampleTotals(), CreatedBy: 9,
	})

	_, err := svc.ConvertPurchaseOrderToInvoice(ctx, 1, id, 9)
	require.ErrorIs(t, err, documents.ErrInvalidState)

	store.mu.Lock()
	store.orders[id].Status = purchaseorder.StatusApproved
	store.mu.Unlock()

	result, err := svc.ConvertPurchaseOrderToInvoice(ctx, 1, id, 9)
	require.NoError(t, err)

	src, err := store.GetPurchaseOrder(ctx, 1, id)
	require.NoError(t, err)
	require.True(t, src.ConvertedToInvoice)
	// Order status is untouched by conversion.
	require.Equal(t, purchaseorder.StatusApproved, src.Status)
	require.Equal(t, result.TargetID, *src.InvoiceID)

	_, err = svc.ConvertPurchaseOrderToInvoice(ctx, 1, id, 9)
	require.ErrorIs(t, err, documents.ErrAlreadyConverted)
}

func TestConvertQuotationConcurrentOneShot(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	id := store.addQuotation(quotation.Quotation{
		TenantID: 1, Number: "QT-2026-00009", Status: quotation.StatusSent,
		Customer: documents.CustomerRef{Kind: documents.CustomerKindAccount, ID: 41},
		Lines:    sampleLines(), Totals: sampleTotals(), CreatedBy: 7,
	})

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ConvertQuotationToInvoice(ctx, 1, id, 7)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			require.ErrorIs(t, err, documents.ErrAlreadyConverted)
		}
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 1, store.invoiceCount())
}

func TestQuotationToPaidInvoiceScenario(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)
	ctx := context.Background()

	lines, totals, err := documents.ComputeTotals([]documents.LineItem{
		{Description: "License", Quantity: 2, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 18},
	})
	require.NoError(t, err)
	require.InDelta(t, 200.0, totals.Subtotal, 1e-9)
	require.InDelta(t, 20.0, totals.TotalDiscount, 1e-9)
	require.InDelta(t, 32.4, totals.TotalTax, 1e-9)
	require.InDelta(t, 212.4, totals.TotalAmount, 1e-9)
	require.InDelta(t, 212.4, lines[0].LineTotal, 1e-9)

	id := store.addQuotation(quotation.Quotation{
		TenantID: 1, Number: "QT-2026-00002", Status: quotation.StatusSent,
		Customer: documents.CustomerRef{Kind: documents.CustomerKindAccount, ID: 41},
		Lines:    lines, Totals: totals, CreatedBy: 7,
	})

	result, err := svc.ConvertQuotationToInvoice(ctx, 1, id, 7)
	require.NoError(t, err)

	store.mu.Lock()
	target := *store.invoices[result.TargetID]
	store.mu.Unlock()
	require.Equal(t, invoice.StatusDraft, target.Status)
	require.Equal(t, totals, target.Totals)

	// Paying the full amount settles the invoice.
	paid := invoice.SumPayments([]invoice.Payment{{Amount: 212.4, RecordedAt: time.Now()}})
	balance := documents.Round2(target.TotalAmount - paid)
	require.InDelta(t, 0.0, balance, 1e-9)
	require.Equal(t, invoice.StatusPaid, invoice.DeriveStatus(target.Status, paid, balance))

	// The original quotation refuses a second conversion.
	_, err = svc.ConvertQuotationToInvoice(ctx, 1, id, 7)
	require.ErrorIs(t, err, documents.ErrAlreadyConverted)
}
