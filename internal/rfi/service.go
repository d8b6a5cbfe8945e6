package rfi

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

// Repository provides persistence for RFIs. Implementations scope every
// read and write to the tenant.
type Repository interface {
	Create(ctx context.Context, r RFI) (int64, error)
	Get(ctx context.Context, tenantID, id int64) (*RFI, error)
	List(ctx context.Context, req ListRFIsRequest) ([]RFI, int, error)
	Update(ctx context.Context, r RFI) error
	UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error
	Delete(ctx context.Context, tenantID, id int64) error
}

// Service handles RFI business logic.
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
// persists the RFI.
func (s *Service) Create(ctx context.Context, tenantID int64, req CreateRFIRequest, createdBy int64) (*RFI, error) {
	customer := documents.CustomerRef{Kind: documents.CustomerKind(req.CustomerKind), ID: req.CustomerID}
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	lines, totals, err := documents.ComputeTotals(linesFromRequests(req.Lines))
	if err != nil {
		return nil, err
	}

	r := RFI{
		TenantID:    tenantID,
		Status:      StatusDraft,
		Customer:    customer,
		Subject:     req.Subject,
		Lines:       lines,
		Totals:      totals,
		ResponseDue: req.ResponseDue,
		Notes:       req.Notes,
		CreatedBy:   createdBy,
	}

	id, err := s.createWithNumber(ctx, &r)
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentCreated(string(documents.DocTypeRFI))
	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    createdBy,
		Action:     "rfi.created",
		Resource:   "rfi",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": r.Number, "subject": r.Subject},
	})

	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) createWithNumber(ctx context.Context, r *RFI) (int64, error) {
	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		number, err := s.numbers.Next(ctx, r.TenantID, documents.DocTypeRFI, year)
		if err != nil {
			return 0, fmt.Errorf("allocate rfi number: %w", err)
		}
		r.Number = number

		id, err := s.repo.Create(ctx, *r)
		if err == nil {
			return id, nil
		}
		if !db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create rfi: %w", err)
		}
		s.metrics.SequenceRetry(string(documents.DocTypeRFI))
		if attempt >= docnum.MaxAllocationAttempts {
			return 0, fmt.Errorf("create rfi after %d attempts: %w", attempt, documents.ErrNumberAllocation)
		}
	}
}

// Update mutates header fields and, when lines are provided, recomputes the
// financial aggregates. Converted RFIs are immutable.
func (s *Service) Update(ctx context.Context, tenantID, id int64, req UpdateRFIRequest, actorID int64) (*RFI, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !existing.Editable() {
		return nil, fmt.Errorf("update rfi %s: %w", existing.Number, documents.ErrImmutable)
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
	if req.Subject != nil {
		existing.Subject = *req.Subject
	}
	if req.ResponseDue != nil {
		existing.ResponseDue = req.ResponseDue
	}
	if req.Notes != nil {
		existing.Notes = req.Notes
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
		return nil, fmt.Errorf("update rfi: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "rfi.updated",
		Resource:   "rfi",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Send transitions a draft RFI to SENT and hands the document off to the
// outbound channel. Delivery failure never reverts the transition.
func (s *Service) Send(ctx context.Context, tenantID, id int64, recipients []string, actorID int64) (*RFI, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusDraft {
		return nil, &documents.InvalidStateError{Op: "send rfi", Status: string(existing.Status)}
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, StatusSent); err != nil {
		return nil, fmt.Errorf("send rfi: %w", err)
	}

	if s.sender != nil && len(recipients) > 0 {
		msg := notify.Message{
			Recipients: recipients,
			Subject:    fmt.Sprintf("RFI %s: %s", existing.Number, existing.Subject),
			Document:   existing.Number,
		}
		if err := s.sender.Send(ctx, msg); err != nil && s.logger != nil {
			s.logger.Warn("rfi notification failed", slog.String("number", existing.Number), slog.Any("error", err))
		}
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "rfi.sent",
		Resource:   "rfi",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "recipients": len(recipients)},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// MarkResponded records that the customer answered the RFI.
func (s *Service) MarkResponded(ctx context.Context, tenantID, id, actorID int64) (*RFI, error) {
	return s.transition(ctx, tenantID, id, actorID, "mark rfi responded", StatusResponded, StatusSent)
}

// Close ends an RFI without conversion. Converted RFIs stay converted.
func (s *Service) Close(ctx context.Context, tenantID, id, actorID int64) (*RFI, error) {
	return s.transition(ctx, tenantID, id, actorID, "close rfi", StatusClosed, StatusDraft, StatusSent, StatusResponded)
}

func (s *Service) transition(ctx context.Context, tenantID, id, actorID int64, op string, to Status, from ...Status) (*RFI, error) {
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
		Action:     "rfi.status_changed",
		Resource:   "rfi",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "from": existing.Status, "to": to},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Delete removes an RFI that has not been converted.
func (s *Service) Delete(ctx context.Context, tenantID, id, actorID int64) error {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if existing.ConvertedToQuotation {
		return fmt.Errorf("delete rfi %s: %w", existing.Number, documents.ErrImmutable)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete rfi: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "rfi.deleted",
		Resource:   "rfi",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})
	return nil
}

// Get returns a single RFI.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (*RFI, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns RFIs matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListRFIsRequest) ([]RFI, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}
