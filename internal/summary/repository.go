package summary

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCollector assembles snapshots with aggregate queries over the four
// document tables.
type PGCollector struct {
	pool *pgxpool.Pool
}

// NewCollector constructs a collector.
func NewCollector(pool *pgxpool.Pool) *PGCollector {
	return &PGCollector{pool: pool}
}

// Collect builds a fresh snapshot for the tenant.
func (c *PGCollector) Collect(ctx context.Context, tenantID int64) (*Snapshot, error) {
	snap := &Snapshot{
		TenantID:    tenantID,
		GeneratedAt: time.Now().UTC(),
	}

	var err error
	if snap.RFIs, err = c.countByStatus(ctx, "rfis", tenantID); err != nil {
		return nil, err
	}
	if snap.Quotations, err = c.countByStatus(ctx, "quotations", tenantID); err != nil {
		return nil, err
	}
	if snap.PurchaseOrders, err = c.countByStatus(ctx, "purchase_orders", tenantID); err != nil {
		return nil, err
	}
	if snap.Invoices, err = c.countByStatus(ctx, "invoices", tenantID); err != nil {
		return nil, err
	}

	err = c.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(balance_due), 0),
			COUNT(*) FILTER (WHERE status = 'OVERDUE')
		FROM invoices
		WHERE tenant_id = $1 AND status NOT IN ('PAID', 'CANCELLED')`,
		tenantID).Scan(&snap.OutstandingBalance, &snap.OverdueCount)
	if err != nil {
		return nil, fmt.Errorf("summary: invoice aggregates: %w", err)
	}

	return snap, nil
}

func (c *PGCollector) countByStatus(ctx context.Context, table string, tenantID int64) (map[string]int, error) {
	// table is one of four fixed names, never user input.
	rows, err := c.pool.Query(ctx,
		fmt.Sprintf(`SELECT status, COUNT(*) FROM %s WHERE tenant_id = $1 GROUP BY status`, table),
		tenantID)
	if err != nil {
		return nil, fmt.Errorf("summary: count %s: %w", table, err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
