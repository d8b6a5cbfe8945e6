// Package summary produces the tenant dashboard: document counts per
// status and the outstanding invoice balance. Snapshots are cached in
// Redis with a short TTL; concurrent misses for the same tenant collapse
// into one database pass.
package summary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL bounds snapshot staleness.
const DefaultTTL = 60 * time.Second

// Snapshot is one tenant's dashboard view.
type Snapshot struct {
	TenantID           int64          `json:"tenant_id"`
	RFIs               map[string]int `json:"rfis"`
	Quotations         map[string]int `json:"quotations"`
	PurchaseOrders     map[string]int `json:"purchase_orders"`
	Invoices           map[string]int `json:"invoices"`
	OutstandingBalance float64        `json:"outstanding_balance"`
	OverdueCount       int            `json:"overdue_count"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

// Collector assembles a fresh snapshot from storage.
type Collector interface {
	Collect(ctx context.Context, tenantID int64) (*Snapshot, error)
}

// Service caches snapshots per tenant.
type Service struct {
	collector Collector
	cache     *redis.Client
	ttl       time.Duration
	group     singleflight.Group
	logger    *slog.Logger
}

// NewService builds a Service instance. cache may be nil; every read then
// hits storage.
func NewService(collector Collector, cache *redis.Client, ttl time.Duration, logger *slog.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		collector: collector,
		cache:     cache,
		ttl:       ttl,
		logger:    logger,
	}
}

func cacheKey(tenantID int64) string {
	return fmt.Sprintf("summary:tenant:%d", tenantID)
}

// Get returns the tenant snapshot, cached or fresh.
func (s *Service) Get(ctx context.Context, tenantID int64) (*Snapshot, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, cacheKey(tenantID)).Bytes()
		if err == nil {
			var snap Snapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return &snap, nil
			}
		} else if !errors.Is(err, redis.Nil) && s.logger != nil {
			s.logger.Warn("summary cache read failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		}
	}

	v, err, _ := s.group.Do(cacheKey(tenantID), func() (any, error) {
		snap, err := s.collector.Collect(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		s.store(ctx, snap)
		return snap, nil
	})
	if err != nil {
		return nil, fmt.Errorf("collect summary for tenant %d: %w", tenantID, err)
	}
	return v.(*Snapshot), nil
}

// Refresh drops the cached snapshot and rebuilds it.
func (s *Service) Refresh(ctx context.Context, tenantID int64) (*Snapshot, error) {
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(tenantID)).Err(); err != nil && s.logger != nil {
			s.logger.Warn("summary cache invalidation failed", slog.Int64("tenant_id", tenantID), slog.Any("error", err))
		}
	}
	return s.Get(ctx, tenantID)
}

func (s *Service) store(ctx context.Context, snap *Snapshot) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(snap.TenantID), raw, s.ttl).Err(); err != nil && s.logger != nil {
		s.logger.Warn("summary cache write failed", slog.Int64("tenant_id", snap.TenantID), slog.Any("error", err))
	}
}
