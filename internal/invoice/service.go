package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/notify"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/observability"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// DefaultPaymentTermDays is applied when an invoice is created without an
// explicit due date.
const DefaultPaymentTermDays = 30

// Repository provides persistence for invoices and their payment ledger.
// Implementations scope every read and write to the tenant. AddPayment and
// Update recompute the ledger aggregates and the derived status atomically
// with the write.
type Repository interface {
	Create(ctx context.Context, inv Invoice) (int64, error)
	Get(ctx context.Context, tenantID, id int64) (*Invoice, error)
	List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error)
	Update(ctx context.Context, inv Invoice) error
	UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error
	Delete(ctx context.Context, tenantID, id int64) error
	AddPayment(ctx context.Context, tenantID int64, p Payment) error
	ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error)
}

// Service handles invoice business logic.
type Service struct {
	repo    Repository
	numbers *docnum.Allocator
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	sender  notify.Sender
	idem    *shared.IdempotencyStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service instance. sender and idem may be nil.
func NewService(repo Repository, numbers *docnum.Allocator, audit *shared.AuditLogger, metrics *observability.Metrics, sender notify.Sender, idem *shared.IdempotencyStore, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		numbers: numbers,
		audit:   audit,
		metrics: metrics,
		sender:  sender,
		idem:    idem,
		logger:  logger,
		now:     time.Now,
	}
}

// Create validates the request, computes totals, allocates a number and
// persists the invoice. A missing due date defaults to the standard payment
// term.
func (s *Service) Create(ctx context.Context, tenantID int64, req CreateInvoiceRequest, createdBy int64) (*Invoice, error) {
	customer := documents.CustomerRef{Kind: documents.CustomerKind(req.CustomerKind), ID: req.CustomerID}
	if err := customer.Validate(); err != nil {
		return nil, err
	}

	lines, totals, err := documents.ComputeTotals(linesFromRequests(req.Lines))
	if err != nil {
		return nil, err
	}

	dueDate := req.DueDate
	if dueDate == nil {
		d := s.now().AddDate(0, 0, DefaultPaymentTermDays)
		dueDate = &d
	}

	inv := Invoice{
		TenantID:   tenantID,
		Status:     StatusDraft,
		Customer:   customer,
		Lines:      lines,
		Totals:     totals,
		BalanceDue: totals.TotalAmount,
		DueDate:    dueDate,
		Notes:      req.Notes,
		Terms:      req.Terms,
		CreatedBy:  createdBy,
	}

	id, err := s.createWithNumber(ctx, &inv)
	if err != nil {
		return nil, err
	}

	s.metrics.DocumentCreated(string(documents.DocTypeInvoice))
	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    createdBy,
		Action:     "invoice.created",
		Resource:   "invoice",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": inv.Number, "total_amount": totals.TotalAmount},
	})

	return s.repo.Get(ctx, tenantID, id)
}

func (s *Service) createWithNumber(ctx context.Context, inv *Invoice) (int64, error) {
	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		number, err := s.numbers.Next(ctx, inv.TenantID, documents.DocTypeInvoice, year)
		if err != nil {
			return 0, fmt.Errorf("allocate invoice number: %w", err)
		}
		inv.Number = number

		id, err := s.repo.Create(ctx, *inv)
		if err == nil {
			return id, nil
		}
		if !db.IsUniqueViolation(err) {
			return 0, fmt.Errorf("create invoice: %w", err)
		}
		s.metrics.SequenceRetry(string(documents.DocTypeInvoice))
		if attempt >= docnum.MaxAllocationAttempts {
			return 0, fmt.Errorf("create invoice after %d attempts: %w", attempt, documents.ErrNumberAllocation)
		}
	}
}

// Update mutates header fields and, when lines are provided, recomputes the
// financial aggregates. The repository recomputes the balance and derived
// status against the existing ledger in the same transaction, so a line
// edit that drops the total below the amount already paid settles the
// invoice.
func (s *Service) Update(ctx context.Context, tenantID, id int64, req UpdateInvoiceRequest, actorID int64) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if !existing.Editable() {
		return nil, fmt.Errorf("update invoice %s: %w", existing.Number, documents.ErrImmutable)
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
	if req.DueDate != nil {
		existing.DueDate = req.DueDate
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
		return nil, fmt.Errorf("update invoice: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "invoice.updated",
		Resource:   "invoice",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// RecordPayment appends a ledger entry and re-derives the invoice status.
// Overpayment is accepted; the balance goes negative. idempotencyKey, when
// non-empty, guards against duplicate submissions of the same payment.
func (s *Service) RecordPayment(ctx context.Context, tenantID, id int64, req RecordPaymentRequest, idempotencyKey string, actorID int64) (*Invoice, error) {
	if req.Amount <= 0 {
		return nil, &documents.ValidationError{Field: "amount", Reason: "must be positive"}
	}

	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status == StatusCancelled {
		return nil, &documents.InvalidStateError{Op: "record payment", Status: string(existing.Status)}
	}

	if idempotencyKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idempotencyKey, "invoice_payment"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return existing, nil
			}
			return nil, fmt.Errorf("record payment: %w", err)
		}
	}

	reference := req.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	p := Payment{
		InvoiceID:  id,
		Amount:     req.Amount,
		Method:     req.Method,
		Reference:  reference,
		RecordedBy: actorID,
		RecordedAt: s.now(),
	}
	if err := s.repo.AddPayment(ctx, tenantID, p); err != nil {
		if idempotencyKey != "" && s.idem != nil {
			if derr := s.idem.Delete(ctx, idempotencyKey); derr != nil && s.logger != nil {
				s.logger.Warn("idempotency key cleanup failed", slog.String("key", idempotencyKey), slog.Any("error", derr))
			}
		}
		return nil, fmt.Errorf("record payment: %w", err)
	}

	updated, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "invoice.payment_recorded",
		Resource:   "invoice",
		ResourceID: strconv.FormatInt(id, 10),
		Details: map[string]any{
			"number":      updated.Number,
			"amount":      req.Amount,
			"method":      req.Method,
			"reference":   reference,
			"total_paid":  updated.TotalPaid,
			"balance_due": updated.BalanceDue,
			"status":      updated.Status,
		},
	})

	return updated, nil
}

// Send transitions a draft invoice to SENT and hands the document off to
// the outbound channel. Delivery failure never reverts the transition.
func (s *Service) Send(ctx context.Context, tenantID, id int64, recipients []string, actorID int64) (*Invoice, error) {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != StatusDraft {
		return nil, &documents.InvalidStateError{Op: "send invoice", Status: string(existing.Status)}
	}

	if err := s.repo.UpdateStatus(ctx, tenantID, id, StatusSent); err != nil {
		return nil, fmt.Errorf("send invoice: %w", err)
	}

	if s.sender != nil && len(recipients) > 0 {
		msg := notify.Message{
			Recipients: recipients,
			Subject:    fmt.Sprintf("Invoice %s", existing.Number),
			Document:   existing.Number,
		}
		if err := s.sender.Send(ctx, msg); err != nil && s.logger != nil {
			s.logger.Warn("invoice notification failed", slog.String("number", existing.Number), slog.Any("error", err))
		}
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "invoice.sent",
		Resource:   "invoice",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "recipients": len(recipients)},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// MarkOverdue flags an unpaid invoice past its due date.
func (s *Service) MarkOverdue(ctx context.Context, tenantID, id, actorID int64) (*Invoice, error) {
	return s.transition(ctx, tenantID, id, actorID, "mark invoice overdue", StatusOverdue, StatusSent, StatusPartiallyPaid)
}

// Cancel voids an invoice that has not settled.
func (s *Service) Cancel(ctx context.Context, tenantID, id, actorID int64) (*Invoice, error) {
	return s.transition(ctx, tenantID, id, actorID, "cancel invoice", StatusCancelled,
		StatusDraft, StatusSent, StatusPartiallyPaid, StatusOverdue)
}

func (s *Service) transition(ctx context.Context, tenantID, id, actorID int64, op string, to Status, from ...Status) (*Invoice, error) {
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
		Action:     "invoice.status_changed",
		Resource:   "invoice",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number, "from": existing.Status, "to": to},
	})

	return s.repo.Get(ctx, tenantID, id)
}

// Delete removes an invoice with an empty ledger. Once a payment exists the
// document is part of the financial record and can only be cancelled.
func (s *Service) Delete(ctx context.Context, tenantID, id, actorID int64) error {
	existing, err := s.repo.Get(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if len(existing.Payments) > 0 || existing.Status == StatusPaid {
		return fmt.Errorf("delete invoice %s: %w", existing.Number, documents.ErrImmutable)
	}
	if err := s.repo.Delete(ctx, tenantID, id); err != nil {
		return fmt.Errorf("delete invoice: %w", err)
	}

	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "invoice.deleted",
		Resource:   "invoice",
		ResourceID: strconv.FormatInt(id, 10),
		Details:    map[string]any{"number": existing.Number},
	})
	return nil
}

// Get returns a single invoice with its ledger.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (*Invoice, error) {
	return s.repo.Get(ctx, tenantID, id)
}

// List returns invoices matching the filter plus the total count.
func (s *Service) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	return s.repo.List(ctx, req)
}

// SweepOverdue flips unpaid invoices past their due date to OVERDUE and
// returns how many were updated. The worker runs this on a schedule.
func (s *Service) SweepOverdue(ctx context.Context, asOf time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = 500
	}
	candidates, err := s.repo.ListOverdue(ctx, asOf, limit)
	if err != nil {
		return 0, fmt.Errorf("list overdue invoices: %w", err)
	}

	flipped := 0
	for _, inv := range candidates {
		if _, err := s.MarkOverdue(ctx, inv.TenantID, inv.ID, 0); err != nil {
			// A payment may have settled the invoice between the scan and
			// the flip. Skip and keep sweeping.
			if errors.Is(err, documents.ErrInvalidState) || errors.Is(err, documents.ErrNotFound) {
				continue
			}
			return flipped, err
		}
		flipped++
	}
	return flipped, nil
}
