package shared

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEvent represents a record stored in audit_logs.
type AuditEvent struct {
	TenantID   int64
	ActorID    int64
	Action     string
	Resource   string
	ResourceID string
	Details    map[string]any
	At         time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool, logger *slog.Logger) *AuditLogger {
	return &AuditLogger{pool: pool, logger: logger}
}

// Record persists the event. Use this when the caller wants to handle the
// failure itself.
func (l *AuditLogger) Record(ctx context.Context, evt AuditEvent) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if evt.Action == "" || evt.Resource == "" || evt.ResourceID == "" {
		return errors.New("audit event requires action/resource/resource_id")
	}
	details, err := json.Marshal(evt.Details)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (tenant_id, actor_id, action, resource, resource_id, details, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, COALESCE(NULLIF($7, '0001-01-01T00:00:00Z'::timestamptz), NOW()))`,
		evt.TenantID, evt.ActorID, evt.Action, evt.Resource, evt.ResourceID, details, evt.At)
	return err
}

// Emit records the event best-effort. Audit failures are logged and never
// propagate into the triggering operation.
func (l *AuditLogger) Emit(ctx context.Context, evt AuditEvent) {
	if l == nil {
		return
	}
	if err := l.Record(ctx, evt); err != nil && l.logger != nil {
		l.logger.Warn("audit record failed",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.Any("error", err))
	}
}
