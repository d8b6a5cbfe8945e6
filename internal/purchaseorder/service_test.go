package purchaseorder

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
	items  map[int64]PurchaseOrder
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int64]PurchaseOrder)}
}

func (r *memRepo) Create(_ context.Context, p PurchaseOrder) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	r.items[p.ID] = p
	return p.ID, nil
}

func (r *memRepo) Get(_ context.Context, tenantID, id int64) (*PurchaseOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.TenantID != tenantID {
		return nil, documents.ErrNotFound
	}
	out := p
	return &out, nil
}

func (r *memRepo) List(_ context.Context, req ListPurchaseOrdersRequest) ([]PurchaseOrder, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []PurchaseOrder
	for _, p := range r.items {
		if p.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && p.Status != *req.Status {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (r *memRepo) Update(_ context.Context, p PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[p.ID]
	if !ok || existing.TenantID != p.TenantID {
		return documents.ErrNotFound
	}
	r.items[p.ID] = p
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, tenantID, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.TenantID != tenantID {
		return documents.ErrNotFound
	}
	p.Status = status
	r.items[id] = p
	return nil
}

func (r *memRepo) Delete(_ context.Context, tenantID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok || p.TenantID != tenantID {
		return documents.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) markConverted(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.items[id]
	p.ConvertedToInvoice = true
	inv := int64(700)
	p.InvoiceID = &inv
	r.items[id] = p
}

func newTestService(repo *memRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, docnum.New(&memStore{}), nil, nil, logger)
}

func validCreateRequest() CreatePurchaseOrderRequest {
	return CreatePurchaseOrderRequest{
		CustomerKind: "ACCOUNT",
		CustomerID:   5,
		Lines: []LineItemRequest{
			{Description: "Installation", Quantity: 1, UnitPrice: 1200, DiscountPercent: 5},
		},
	}
}

func TestServiceCreate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	p, err := svc.Create(context.Background(), 1, validCreateRequest(), 9)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, p.Status)
	require.Equal(t, fmt.Sprintf("PO-%d-00001", time.Now().Year()), p.Number)
	require.InDelta(t, 1200.0, p.Subtotal, 1e-9)
	require.InDelta(t, 1140.0, p.TotalAmount, 1e-9)
}

func TestServiceApprovalChain(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, validCreateRequest(), 9)
	require.NoError(t, err)

	// Approval requires the order to be received first.
	_, err = svc.Approve(ctx, 1, p.ID, 9)
	require.ErrorIs(t, err, documents.ErrInvalidState)

	received, err := svc.Receive(ctx, 1, p.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusReceived, received.Status)

	approved, err := svc.Approve(ctx, 1, p.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	started, err := svc.Start(ctx, 1, p.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, started.Status)

	completed, err := svc.Complete(ctx, 1, p.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, completed.Status)

	// Completed orders cannot be cancelled.
	_, err = svc.Cancel(ctx, 1, p.ID, 9)
	require.ErrorIs(t, err, documents.ErrInvalidState)
}

func TestServiceCancel(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, validCreateRequest(), 9)
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, 1, p.ID, 9)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
}

func TestServiceCancelRefusesConverted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, validCreateRequest(), 9)
	require.NoError(t, err)
	repo.markConverted(p.ID)

	_, err = svc.Cancel(ctx, 1, p.ID, 9)
	require.ErrorIs(t, err, documents.ErrAlreadyConverted)
}

func TestServiceUpdateRefusesConverted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	p, err := svc.Create(ctx, 1, validCreateRequest(), 9)
	require.NoError(t, err)
	repo.markConverted(p.ID)

	notes := "amended"
	_, err = svc.Update(ctx, 1, p.ID, UpdatePurchaseOrderRequest{Notes: &notes}, 9)
	require.ErrorIs(t, err, documents.ErrImmutable)

	err = svc.Delete(ctx, 1, p.ID, 9)
	require.ErrorIs(t, err, documents.ErrImmutable)
}
