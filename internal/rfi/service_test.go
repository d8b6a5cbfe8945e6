package rfi

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
)

type memStore struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func (m *memStore) NextSeq(_ context.Context, tenantID int64, docType documents.DocType, year int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seqs == nil {
		m.seqs = make(map[string]int64)
	}
	key := fmt.Sprintf("%d/%s/%d", tenantID, docType, year)
	m.seqs[key]++
	return m.seqs[key], nil
}

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]RFI
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int64]RFI)}
}

func (r *memRepo) Create(_ context.Context, doc RFI) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	doc.ID = r.nextID
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	r.items[doc.ID] = doc
	return doc.ID, nil
}

func (r *memRepo) Get(_ context.Context, tenantID, id int64) (*RFI, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[id]
	if !ok || doc.TenantID != tenantID {
		return nil, documents.ErrNotFound
	}
	out := doc
	return &out, nil
}

func (r *memRepo) List(_ context.Context, req ListRFIsRequest) ([]RFI, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RFI
	for _, doc := range r.items {
		if doc.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && doc.Status != *req.Status {
			continue
		}
		out = append(out, doc)
	}
	return out, len(out), nil
}

func (r *memRepo) Update(_ context.Context, doc RFI) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[doc.ID]
	if !ok || existing.TenantID != doc.TenantID {
		return documents.ErrNotFound
	}
	r.items[doc.ID] = doc
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, tenantID, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[id]
	if !ok || doc.TenantID != tenantID {
		return documents.ErrNotFound
	}
	doc.Status = status
	r.items[id] = doc
	return nil
}

func (r *memRepo) Delete(_ context.Context, tenantID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.items[id]
	if !ok || doc.TenantID != tenantID {
		return documents.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) markConverted(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc := r.items[id]
	doc.ConvertedToQuotation = true
	qid := int64(400)
	doc.QuotationID = &qid
	doc.Status = StatusConverted
	r.items[id] = doc
}

func newTestService(repo *memRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, docnum.New(&memStore{}), nil, nil, nil, logger)
}

func validCreateRequest() CreateRFIRequest {
	return CreateRFIRequest{
		CustomerKind: "LEAD",
		CustomerID:   11,
		Subject:      "Warehouse shelving",
		Lines: []LineItemRequest{
			{Description: "Steel rack", Quantity: 4, UnitPrice: 250, TaxPercent: 18},
		},
	}
}

func TestServiceCreate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	doc, err := svc.Create(context.Background(), 1, validCreateRequest(), 3)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, doc.Status)
	require.Equal(t, fmt.Sprintf("RFI-%d-00001", time.Now().Year()), doc.Number)
	require.InDelta(t, 1000.0, doc.Subtotal, 1e-9)
	require.InDelta(t, 1180.0, doc.TotalAmount, 1e-9)
}

func TestServiceCreateRejectsBadCustomerKind(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.CustomerKind = "VENDOR"
	_, err := svc.Create(context.Background(), 1, req, 3)
	require.ErrorIs(t, err, documents.ErrValidation)
}

func TestServiceLifecycle(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, validCreateRequest(), 3)
	require.NoError(t, err)

	// Responded before send is out of order.
	_, err = svc.MarkResponded(ctx, 1, doc.ID, 3)
	require.ErrorIs(t, err, documents.ErrInvalidState)

	sent, err := svc.Send(ctx, 1, doc.ID, []string{"vendor@example.com"}, 3)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)

	responded, err := svc.MarkResponded(ctx, 1, doc.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusResponded, responded.Status)

	closed, err := svc.Close(ctx, 1, doc.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)

	// Closed is terminal.
	_, err = svc.Close(ctx, 1, doc.ID, 3)
	require.ErrorIs(t, err, documents.ErrInvalidState)
}

func TestServiceUpdateRefusesConverted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	doc, err := svc.Create(ctx, 1, validCreateRequest(), 3)
	require.NoError(t, err)
	repo.markConverted(doc.ID)

	subject := "revised scope"
	_, err = svc.Update(ctx, 1, doc.ID, UpdateRFIRequest{Subject: &subject}, 3)
	require.ErrorIs(t, err, documents.ErrImmutable)

	err = svc.Delete(ctx, 1, doc.ID, 3)
	require.ErrorIs(t, err, documents.ErrImmutable)
}
