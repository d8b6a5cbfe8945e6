package quotation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
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
	mu      sync.Mutex
	nextID  int64
	items   map[int64]Quotation
	failing int // number of Create calls to fail with a unique violation
}

func newMemRepo() *memRepo {
	return &memRepo{items: make(map[int64]Quotation)}
}

func (r *memRepo) Create(_ context.Context, q Quotation) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing > 0 {
		r.failing--
		return 0, &pgconn.PgError{Code: "23505"}
	}
	for _, existing := range r.items {
		if existing.TenantID == q.TenantID && existing.Number == q.Number {
			return 0, &pgconn.PgError{Code: "23505"}
		}
	}
	r.nextID++
	q.ID = r.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	r.items[q.ID] = q
	return q.ID, nil
}

func (r *memRepo) Get(_ context.Context, tenantID, id int64) (*Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.items[id]
	if !ok || q.TenantID != tenantID {
		return nil, documents.ErrNotFound
	}
	out := q
	return &out, nil
}

func (r *memRepo) List(_ context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Quotation
	for _, q := range r.items {
		if q.TenantID != req.TenantID {
			continue
		}
		if req.Status != nil && q.Status != *req.Status {
			continue
		}
		out = append(out, q)
	}
	return out, len(out), nil
}

func (r *memRepo) Update(_ context.Context, q Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.items[q.ID]
	if !ok || existing.TenantID != q.TenantID {
		return documents.ErrNotFound
	}
	q.UpdatedAt = time.Now()
	r.items[q.ID] = q
	return nil
}

func (r *memRepo) UpdateStatus(_ context.Context, tenantID, id int64, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.items[id]
	if !ok || q.TenantID != tenantID {
		return documents.ErrNotFound
	}
	q.Status = status
	r.items[id] = q
	return nil
}

func (r *memRepo) Delete(_ context.Context, tenantID, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.items[id]
	if !ok || q.TenantID != tenantID {
		return documents.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *memRepo) markConverted(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q := r.items[id]
	q.ConvertedToInvoice = true
	inv := int64(900)
	q.InvoiceID = &inv
	q.Status = StatusAccepted
	r.items[id] = q
}

func newTestService(repo *memRepo) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, docnum.New(&memStore{}), nil, nil, nil, logger)
}

func validCreateRequest() CreateQuotationRequest {
	return CreateQuotationRequest{
		CustomerKind: "ACCOUNT",
		CustomerID:   41,
		Lines: []LineItemRequest{
			{Description: "License", Quantity: 2, UnitPrice: 100, DiscountPercent: 10, TaxPercent: 18},
		},
	}
}

func TestServiceCreate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, q.Status)
	require.Equal(t, fmt.Sprintf("QT-%d-00001", time.Now().Year()), q.Number)
	require.InDelta(t, 200.0, q.Subtotal, 1e-9)
	require.InDelta(t, 212.4, q.TotalAmount, 1e-9)
	require.Equal(t, int64(7), q.CreatedBy)

	second, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)
	require.Equal(t, fmt.Sprintf("QT-%d-00002", time.Now().Year()), second.Number)
}

func TestServiceCreateRetriesNumberCollision(t *testing.T) {
	repo := newMemRepo()
	repo.failing = 2
	svc := newTestService(repo)

	q, err := svc.Create(context.Background(), 1, validCreateRequest(), 7)
	require.NoError(t, err)
	// Two collisions burned two sequence values before the third stuck.
	require.Equal(t, fmt.Sprintf("QT-%d-00003", time.Now().Year()), q.Number)
}

func TestServiceCreateGivesUpAfterBoundedRetries(t *testing.T) {
	repo := newMemRepo()
	repo.failing = docnum.MaxAllocationAttempts
	svc := newTestService(repo)

	_, err := svc.Create(context.Background(), 1, validCreateRequest(), 7)
	require.ErrorIs(t, err, documents.ErrNumberAllocation)
}

func TestServiceCreateRejectsBadLine(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	req := validCreateRequest()
	req.Lines[0].Quantity = 0
	_, err := svc.Create(context.Background(), 1, req, 7)
	require.ErrorIs(t, err, documents.ErrValidation)
}

func TestServiceUpdateRecomputesTotals(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)

	lines := []LineItemRequest{{Description: "License", Quantity: 3, UnitPrice: 50}}
	updated, err := svc.Update(ctx, 1, q.ID, UpdateQuotationRequest{Lines: &lines}, 7)
	require.NoError(t, err)
	require.InDelta(t, 150.0, updated.Subtotal, 1e-9)
	require.InDelta(t, 150.0, updated.TotalAmount, 1e-9)
	require.Len(t, updated.Lines, 1)
}

func TestServiceUpdateRefusesConverted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)
	repo.markConverted(q.ID)

	notes := "late edit"
	_, err = svc.Update(ctx, 1, q.ID, UpdateQuotationRequest{Notes: &notes}, 7)
	require.ErrorIs(t, err, documents.ErrImmutable)
}

func TestServiceSendAndTransitions(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)

	// Accepting a draft is out of order.
	_, err = svc.Accept(ctx, 1, q.ID, 7)
	require.ErrorIs(t, err, documents.ErrInvalidState)
	var stateErr *documents.InvalidStateError
	require.ErrorAs(t, err, &stateErr)
	require.Equal(t, string(StatusDraft), stateErr.Status)

	sent, err := svc.Send(ctx, 1, q.ID, []string{"buyer@example.com"}, 7)
	require.NoError(t, err)
	require.Equal(t, StatusSent, sent.Status)

	// Double send is refused.
	_, err = svc.Send(ctx, 1, q.ID, nil, 7)
	require.ErrorIs(t, err, documents.ErrInvalidState)

	viewed, err := svc.MarkViewed(ctx, 1, q.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusViewed, viewed.Status)

	accepted, err := svc.Accept(ctx, 1, q.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusAccepted, accepted.Status)
}

func TestServiceDelete(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, 1, q.ID, 7))
	_, err = svc.Get(ctx, 1, q.ID)
	require.ErrorIs(t, err, documents.ErrNotFound)
}

func TestServiceDeleteRefusesConverted(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)
	repo.markConverted(q.ID)

	err = svc.Delete(ctx, 1, q.ID, 7)
	require.ErrorIs(t, err, documents.ErrImmutable)
}

func TestServiceTenantIsolation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	q, err := svc.Create(ctx, 1, validCreateRequest(), 7)
	require.NoError(t, err)

	_, err = svc.Get(ctx, 2, q.ID)
	require.True(t, errors.Is(err, documents.ErrNotFound))
}
