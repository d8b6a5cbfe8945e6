// Package lifecycle implements the one-shot conversions along the
// RFI → Quotation → Purchase Order → Invoice chain. Conversions are the
// only cross-type transitions; each one snapshots the commercial terms
// into a new target document and atomically claims the source so a second
// attempt, concurrent or not, cannot create a second target.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/docnum"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/observability"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/purchaseorder"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/rfi"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/shared"
)

// errClaimLost signals that the conditional claim on the source matched no
// rows: another conversion won the race, or the source left the required
// status. The caller re-reads the source to tell the two apart.
var errClaimLost = errors.New("conversion claim matched no rows")

// Store persists a conversion: it inserts the target and claims the source
// in one transaction. A failed claim returns errClaimLost and rolls back
// the target insert.
type Store interface {
	GetRFI(ctx context.Context, tenantID, id int64) (*rfi.RFI, error)
	CreateQuotationFromRFI(ctx context.Context, rfiID int64, q quotation.Quotation) (int64, error)

	GetQuotation(ctx context.Context, tenantID, id int64) (*quotation.Quotation, error)
	CreateInvoiceFromQuotation(ctx context.Context, quotationID int64, inv invoice.Invoice) (int64, error)

	GetPurchaseOrder(ctx context.Context, tenantID, id int64) (*purchaseorder.PurchaseOrder, error)
	CreateInvoiceFromPurchaseOrder(ctx context.Context, orderID int64, inv invoice.Invoice) (int64, error)
}

// Service coordinates the three conversion points.
type Service struct {
	store   Store
	numbers *docnum.Allocator
	audit   *shared.AuditLogger
	metrics *observability.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service instance.
func NewService(store Store, numbers *docnum.Allocator, audit *shared.AuditLogger, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		numbers: numbers,
		audit:   audit,
		metrics: metrics,
		logger:  logger,
		now:     time.Now,
	}
}

// ConvertRFIToQuotation turns an RFI into a draft quotation. Any
// non-converted, non-closed RFI may convert; the source is forced to
// CONVERTED.
func (s *Service) ConvertRFIToQuotation(ctx context.Context, tenantID, rfiID, actorID int64) (*documents.ConversionResult, error) {
	src, err := s.store.GetRFI(ctx, tenantID, rfiID)
	if err != nil {
		return nil, err
	}
	if src.ConvertedToQuotation {
		return nil, fmt.Errorf("convert rfi %s: %w", src.Number, documents.ErrAlreadyConverted)
	}
	if src.Status == rfi.StatusClosed {
		return nil, &documents.InvalidStateError{Op: "convert rfi", Status: string(src.Status)}
	}

	target := quotationFromRFI(src)
	id, number, err := s.persist(ctx, tenantID, documents.DocTypeQuotation, func(number string) (int64, error) {
		target.Number = number
		return s.store.CreateQuotationFromRFI(ctx, rfiID, target)
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			return nil, s.explainLostRFIClaim(ctx, tenantID, rfiID)
		}
		return nil, err
	}

	s.finish(ctx, tenantID, actorID, "rfi_to_quotation", src.Number, id, number)
	return &documents.ConversionResult{TargetType: documents.DocTypeQuotation, TargetID: id, TargetNumber: number}, nil
}

// ConvertQuotationToInvoice turns a quotation into a draft invoice. The
// conversion is gated only on the flag; on success the source is forced to
// ACCEPTED.
func (s *Service) ConvertQuotationToInvoice(ctx context.Context, tenantID, quotationID, actorID int64) (*documents.ConversionResult, error) {
	src, err := s.store.GetQuotation(ctx, tenantID, quotationID)
	if err != nil {
		return nil, err
	}
	if src.ConvertedToInvoice {
		return nil, fmt.Errorf("convert quotation %s: %w", src.Number, documents.ErrAlreadyConverted)
	}

	target := invoiceFromQuotation(src, s.now())
	id, number, err := s.persist(ctx, tenantID, documents.DocTypeInvoice, func(number string) (int64, error) {
		target.Number = number
		return s.store.CreateInvoiceFromQuotation(ctx, quotationID, target)
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			// The flag is the only gate, so a lost claim means another
			// conversion won.
			return nil, fmt.Errorf("convert quotation %s: %w", src.Number, documents.ErrAlreadyConverted)
		}
		return nil, err
	}

	s.finish(ctx, tenantID, actorID, "quotation_to_invoice", src.Number, id, number)
	return &documents.ConversionResult{TargetType: documents.DocTypeInvoice, TargetID: id, TargetNumber: number}, nil
}

// ConvertPurchaseOrderToInvoice turns an approved purchase order into a
// draft invoice. The order must be APPROVED and not yet converted.
func (s *Service) ConvertPurchaseOrderToInvoice(ctx context.Context, tenantID, orderID, actorID int64) (*documents.ConversionResult, error) {
	src, err := s.store.GetPurchaseOrder(ctx, tenantID, orderID)
	if err != nil {
		return nil, err
	}
	if src.ConvertedToInvoice {
		return nil, fmt.Errorf("convert purchase order %s: %w", src.Number, documents.ErrAlreadyConverted)
	}
	if src.Status != purchaseorder.StatusApproved {
		return nil, &documents.InvalidStateError{Op: "convert purchase order", Status: string(src.Status)}
	}

	target := invoiceFromPurchaseOrder(src, s.now())
	id, number, err := s.persist(ctx, tenantID, documents.DocTypeInvoice, func(number string) (int64, error) {
		target.Number = number
		return s.store.CreateInvoiceFromPurchaseOrder(ctx, orderID, target)
	})
	if err != nil {
		if errors.Is(err, errClaimLost) {
			return nil, s.explainLostOrderClaim(ctx, tenantID, orderID)
		}
		return nil, err
	}

	s.finish(ctx, tenantID, actorID, "purchase_order_to_invoice", src.Number, id, number)
	return &documents.ConversionResult{TargetType: documents.DocTypeInvoice, TargetID: id, TargetNumber: number}, nil
}

// persist allocates the target number and runs the transactional insert,
// retrying on number collisions up to the shared bound.
func (s *Service) persist(ctx context.Context, tenantID int64, targetType documents.DocType, create func(number string) (int64, error)) (int64, string, error) {
	year := s.now().Year()
	for attempt := 1; ; attempt++ {
		number, err := s.numbers.Next(ctx, tenantID, targetType, year)
		if err != nil {
			return 0, "", fmt.Errorf("allocate %s number: %w", targetType, err)
		}

		id, err := create(number)
		if err == nil {
			return id, number, nil
		}
		if errors.Is(err, errClaimLost) {
			return 0, "", err
		}
		if !db.IsUniqueViolation(err) {
			return 0, "", fmt.Errorf("persist conversion target: %w", err)
		}
		s.metrics.SequenceRetry(string(targetType))
		if attempt >= docnum.MaxAllocationAttempts {
			return 0, "", fmt.Errorf("persist conversion target after %d attempts: %w", attempt, documents.ErrNumberAllocation)
		}
	}
}

// explainLostRFIClaim re-reads the source to distinguish a race from a
// state change.
func (s *Service) explainLostRFIClaim(ctx context.Context, tenantID, rfiID int64) error {
	src, err := s.store.GetRFI(ctx, tenantID, rfiID)
	if err != nil {
		return err
	}
	if src.ConvertedToQuotation {
		return fmt.Errorf("convert rfi %s: %w", src.Number, documents.ErrAlreadyConverted)
	}
	return &documents.InvalidStateError{Op: "convert rfi", Status: string(src.Status)}
}

func (s *Service) explainLostOrderClaim(ctx context.Context, tenantID, orderID int64) error {
	src, err := s.store.GetPurchaseOrder(ctx, tenantID, orderID)
	if err != nil {
		return err
	}
	if src.ConvertedToInvoice {
		return fmt.Errorf("convert purchase order %s: %w", src.Number, documents.ErrAlreadyConverted)
	}
	return &documents.InvalidStateError{Op: "convert purchase order", Status: string(src.Status)}
}

func (s *Service) finish(ctx context.Context, tenantID, actorID int64, pair, sourceNumber string, targetID int64, targetNumber string) {
	s.metrics.ConversionCompleted(pair)
	s.metrics.DocumentCreated(targetPrefix(targetNumber))
	s.audit.Emit(ctx, shared.AuditEvent{
		TenantID:   tenantID,
		ActorID:    actorID,
		Action:     "document.converted",
		Resource:   pair,
		ResourceID: strconv.FormatInt(targetID, 10),
		Details:    map[string]any{"source": sourceNumber, "target": targetNumber},
	})
}

func targetPrefix(number string) string {
	for i := 0; i < len(number); i++ {
		if number[i] == '-' {
			return number[:i]
		}
	}
	return number
}
