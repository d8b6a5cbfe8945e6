// Package jobs contains the background worker: outbound document mail and
// the scheduled overdue invoice sweep.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/notify"
)

// TaskTypeOverdueScan flips unpaid invoices past their due date to OVERDUE.
const TaskTypeOverdueScan = "invoice:overdue_scan"

// OverdueSweeper flips unpaid invoices past their due date. Implemented by
// the invoice service.
type OverdueSweeper interface {
	SweepOverdue(ctx context.Context, asOf time.Time, limit int) (int, error)
}

// Handlers bundles the task processors.
type Handlers struct {
	logger   *slog.Logger
	mailer   Mailer
	invoices OverdueSweeper
}

// NewHandlers builds the task processors.
func NewHandlers(logger *slog.Logger, mailer Mailer, invoices OverdueSweeper) *Handlers {
	return &Handlers{logger: logger, mailer: mailer, invoices: invoices}
}

// HandleSendDocument delivers a queued document notification.
func (h *Handlers) HandleSendDocument(ctx context.Context, task *asynq.Task) error {
	var msg notify.Message
	if err := json.Unmarshal(task.Payload(), &msg); err != nil {
		// A malformed payload will never succeed; drop it.
		return fmt.Errorf("jobs: decode send payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.mailer.Deliver(ctx, msg); err != nil {
		h.logger.Warn("document delivery failed",
			slog.String("document", msg.Document), slog.Any("error", err))
		return err
	}

	h.logger.Info("document delivered",
		slog.String("document", msg.Document), slog.Int("recipients", len(msg.Recipients)))
	return nil
}

// HandleOverdueScan sweeps unpaid invoices past their due date.
func (h *Handlers) HandleOverdueScan(ctx context.Context, _ *asynq.Task) error {
	flipped, err := h.invoices.SweepOverdue(ctx, time.Now(), 0)
	if err != nil {
		return fmt.Errorf("jobs: overdue sweep: %w", err)
	}
	if flipped > 0 {
		h.logger.Info("invoices marked overdue", slog.Int("count", flipped))
	}
	return nil
}
