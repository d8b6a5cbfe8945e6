package purchaseorder

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/observability"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// Repository provides persistence for purchase orders. Implementations scope
// every read and write to the tenant.
type Repository interface {
	Create(ctx context.Context, p PurchaseOrder) (int64, error)
	Get(ctx context.Context, tenantID, id int64) (*PurchaseOrder, error)
	List(ctx context.Context, req ListPurchaseOrdersRequest) ([]PurchaseOrder, int, error)
	Update(ctx context.Context, p PurchaseOrder) error
	UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error
	Delete(ctx context.Context, tenantID, id int64) error
}

// Service handles purchase order business logic.
type Service struct {
	repo    Repository
	numbers *docnum.Allocator
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, numbers *docnum.Allocator, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		numbers: numbers,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates the request, computes totals, allocates a number and
// persists the purchase order.
func (s *Service) Create(ctx context.Context, tenantID int64, req CreatePurchaseOrderRequest, createdBy int64) (*PurchaseOrder, error) {
	customer := documents.CustomerRef{Kind: documents.CustomerKind(req.CustomerKind), ID: req.CustomerID}
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	lines, totals, err := documents.ComputeTotals(linesFromRequests(req.Lines))
	if err != nil {
		return nil, err
	}

	p := PurchaseOrder{
		TenantID:         tenantID,
		Status:           StatusDraft,
		Customer:         customer,
		Lines:            lines,
		Totals:           totals,
		ExpectedDelivery: req.ExpectedDelivery,
		Notes:            req.Notes,
		Terms:            req.Terms,
		QuotationID:      req.QuotationID,
		CreatedBy:        createdBy,
	}

	id, err := s.createWithNumber(ctx, &p)
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentCreated(string(documents.DocTypePurchaseOrder))
	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    createdBy,
		Action:     "purchase_order.created",
		Resource:   "purchase_order",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": p.Number, "total_amount": totals.TotalAmount},
	})

	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) createWithNumber(ctx context.Context, p *PurchaseOrder) (int64, error) {
	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		number, err := s.numbers.Next(ctx, p.TenantID, documents.DocTypePurchaseOrder, year)
		if err != nil {
			return 0, fmt.Errorf("allocate purchase order number: %w", err)
		}
		p.Number = number

		id, err := s.repo.Create(ctx, *p)
		if err == nil {
			return id, nil
		}
		if !db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create purchase order: %w", err)
		}
		s.metrics.SequenceRetry(string(documents.DocTypePurchaseOrder))
		if attempt >= docnum.MaxAllocationAttempts {
			return 0, fmt.Errorf("create purchase order after %d attempts: %w", attempt, documents.ErrNumberAllocation)
		}
	}
}

// Update mutates header fields and, when lines are provided, recomputes the
// financial aggregates. Converted orders are immutable.
func (s *Service) Update(ctx context.Context, tenantID, id int64, req UpdatePurchaseOrderRequest, actorID int64) (*PurchaseOrder, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !existing.Editable() {
		return nil, fmt.Errorf("update purchase order %s: %w", existing.Number, documents.ErrImmutable)
	}

	if req.CustomerKind != nil || req.CustomerID != nil {
		customer := existing.Customer
		if req.CustomerKind != nil {
			customer.Kind = documents.CustomerKind(*req.CustomerKind)
		}
		if req.CustomerID != nil {
			customer.ID = *req.CustomerID
		}
		if err := customer.Validate(); err != nil {
			return nil, err
		}
		existing.Customer = customer
	}
	if req.ExpectedDelivery != nil {
		existing.ExpectedDelivery = req.ExpectedDelivery
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
	}
	if req.Terms != nil {
		existing.Terms = req.Terms
	}
	if req.Lines != nil {
		lines, totals, err := documents.ComputeTotals(linesFromRequests(*req.Lines))
		if err != nil {
			return nil, err
		}
		existing.Lines = lines
		existing.Totals = totals
	}

	if err := s.repo.Update(ctx, *existing); err != nil {
		return nil, fmt.Errorf("update purchase order: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "purchase_order.updated",
		Resource:   "purchase_order",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Receive acknowledges the customer's order.
func (s *Service) Receive(ctx context.Context, tenantID, id, actorID int64) (*PurchaseOrder, error) {
	return s.transition(ctx, tenantID, id, actorID, "receive purchase order", StatusReceived, StatusDraft)
}

// Approve clears the order for fulfilment and invoicing.
func (s *Service) Approve(ctx context.Context, tenantID, id, actorID int64) (*PurchaseOrder, error) {
	return s.transition(ctx, tenantID, id, actorID, "approve purchase order", StatusApproved, StatusReceived)
}

// Start marks fulfilment as underway.
func (s *Service) Start(ctx context.Context, tenantID, id, actorID int64) (*PurchaseOrder, error) {
	return s.transition(ctx, tenantID, id, actorID, "start purchase order", StatusInProgress, StatusApproved)
}

// Complete marks fulfilment as finished.
func (s *Service) Complete(ctx context.Context, tenantID, id, actorID int64) (*PurchaseOrder, error) {
	return s.transition(ctx, tenantID, id, actorID, "complete purchase order", StatusCompleted, StatusInProgress)
}

// Cancel aborts an order that has not completed or converted.
func (s *Service) Cancel(ctx context.Context, tenantID, id, actorID int64) (*PurchaseOrder, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.ConvertedToInvoice {
		return nil, fmt.Errorf("cancel purchase order %s: %w", existing.Number, documents.ErrAlreadyConverted)
	}
	return s.transition(ctx, tenantID, id, actorID, "cancel purchase order", StatusCancelled,
		StatusDraft, StatusReceived, StatusApproved, StatusInProgress)
}

func (s *Service) transition(ctx context.Context, tenantID, id, actorID int64, op string, to Status, from ...Status) (*PurchaseOrder, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, st := range from {
		if existing.Status == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, &documents.InvalidStateError{Op: op, Status: string(existing.Status)}
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, to); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "purchase_order.status_changed",
		Resource:   "purchase_order",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "from": existing.Status, "to": to},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Delete removes a purchase order that has not been converted.
func (s *Service) Delete(ctx context.Context, tenantID, id, actorID int64) error {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.ConvertedToInvoice {
		return fmt.Errorf("delete purchase order %s: %w", existing.Number, documents.ErrImmutable)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete purchase order: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "purchase_order.deleted",
		Resource:   "purchase_order",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})
	return nil
}

// Get returns a single purchase order.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (*PurchaseOrder, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns purchase orders matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListPurchaseOrdersRequest) ([]PurchaseOrder, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}
