package quotation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/notify"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/observability"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// Repository provides persistence for quotations. Implementations scope
// every read and write to the tenant.
type Repository interface {
	Create(ctx context.Context, q Quotation) (int64, error)
	Get(ctx context.Context, tenantID, id int64) (*Quotation, error)
	List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error)
	Update(ctx context.Context, q Quotation) error
	UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error
	Delete(ctx context.Context, tenantID, id int64) error
}

// Service handles quotation business logic.
type Service struct {
	repo    Repository
	numbers *docnum.Allocator
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	sender  notify.Sender
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service instance. sender may be nil when no outbound
// channel is configured.
func NewService(repo Repository, numbers *docnum.Allocator, audit *shared.AuditLogger, metrics *observability.Metrics, sender notify.Sender, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		numbers: numbers,
		audit:   audit,
		metrics: metrics,
		sender:  sender,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates the request, computes totals, allocates a number and
// persists the quotation. Number collisions at persist time trigger a fresh
// allocation, bounded by docnum.MaxAllocationAttempts.
func (s *Service) Create(ctx context.Context, tenantID int64, req CreateQuotationRequest, createdBy int64) (*Quotation, error) {
	customer := documents.CustomerRef{Kind: documents.CustomerKind(req.CustomerKind), ID: req.CustomerID}
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	lines, totals, err := documents.ComputeTotals(linesFromRequests(req.Lines))
	if err != nil {
		return nil, err
	}

	q := Quotation{
		TenantID:   tenantID,
		Status:     StatusDraft,
		Customer:   customer,
		Lines:      lines,
		Totals:     totals,
		ValidUntil: req.ValidUntil,
		Notes:      req.Notes,
		Terms:      req.Terms,
		CreatedBy:  createdBy,
	}

	id, err := s.createWithNumber(ctx, &q)
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentCreated(string(documents.DocTypeQuotation))
	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    createdBy,
		Action:     "quotation.created",
		Resource:   "quotation",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": q.Number, "total_amount": totals.TotalAmount},
	})

	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) createWithNumber(ctx context.Context, q *Quotation) (int64, error) {
	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		number, err := s.numbers.Next(ctx, q.TenantID, documents.DocTypeQuotation, year)
		if err != nil {
			return 0, fmt.Errorf("allocate quotation number: %w", err)
		}
		q.Number = number

		id, err := s.repo.Create(ctx, *q)
		if err == nil {
			return id, nil
		}
		if !db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create quotation: %w", err)
		}
		s.metrics.SequenceRetry(string(documents.DocTypeQuotation))
		if attempt >= docnum.MaxAllocationAttempts {
			return 0, fmt.Errorf("create quotation after %d attempts: %w", attempt, documents.ErrNumberAllocation)
		}
	}
}

// Update mutates header fields and, when lines are provided, recomputes the
// financial aggregates. Converted quotations are immutable.
func (s *Service) Update(ctx context.Context, tenantID, id int64, req UpdateQuotationRequest, actorID int64) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !existing.Editable() {
		return nil, fmt.Errorf("update quotation %s: %w", existing.Number, documents.ErrImmutable)
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
	if req.ValidUntil != nil {
		existing.ValidUntil = req.ValidUntil
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
		return nil, fmt.Errorf("update quotation: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "quotation.updated",
		Resource:   "quotation",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Send transitions a draft quotation to SENT and hands the document off to
// the outbound channel. Delivery failure never reverts the transition.
func (s *Service) Send(ctx context.Context, tenantID, id int64, recipients []string, actorID int64) (*Quotation, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusDraft {
		return nil, &documents.InvalidStateError{Op: "send quotation", Status: string(existing.Status)}
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, StatusSent); err != nil {
		return nil, fmt.Errorf("send quotation: %w", err)
	}

	if s.sender != nil && len(recipients) > 0 {
		msg := notify.Message{
			Recipients: recipients,
			Subject:    fmt.Sprintf("Quotation %s", existing.Number),
			Document:   existing.Number,
		}
		if err := s.sender.Send(ctx, msg); err != nil && s.logger != nil {
			s.logger.Warn("quotation notification failed", slog.String("number", existing.Number), slog.Any("error", err))
		}
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "quotation.sent",
		Resource:   "quotation",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "recipients": len(recipients)},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// MarkViewed records that the customer opened the quotation.
func (s *Service) MarkViewed(ctx context.Context, tenantID, id, actorID int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, actorID, "mark quotation viewed", StatusViewed, StatusSent)
}

// Accept marks the quotation accepted by the customer.
func (s *Service) Accept(ctx context.Context, tenantID, id, actorID int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, actorID, "accept quotation", StatusAccepted, StatusSent, StatusViewed)
}

// Reject marks the quotation rejected by the customer.
func (s *Service) Reject(ctx context.Context, tenantID, id, actorID int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, actorID, "reject quotation", StatusRejected, StatusSent, StatusViewed)
}

// Expire marks a quotation that passed its validity window.
func (s *Service) Expire(ctx context.Context, tenantID, id, actorID int64) (*Quotation, error) {
	return s.transition(ctx, tenantID, id, actorID, "expire quotation", StatusExpired, StatusSent, StatusViewed)
}

func (s *Service) transition(ctx context.Context, tenantID, id, actorID int64, op string, to Status, from ...Status) (*Quotation, error) {
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
		Action:     "quotation.status_changed",
		Resource:   "quotation",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "from": existing.Status, "to": to},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Delete removes a quotation that has not been converted.
func (s *Service) Delete(ctx context.Context, tenantID, id, actorID int64) error {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.ConvertedToInvoice {
		return fmt.Errorf("delete quotation %s: %w", existing.Number, documents.ErrImmutable)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete quotation: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "quotation.deleted",
		Resource:   "quotation",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})
	return nil
}

// Get returns a single quotation.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (*Quotation, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns quotations matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}
