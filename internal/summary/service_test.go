package summary

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingCollector struct {
	calls atomic.Int64
}

func (c *countingCollector) Collect(_ context.Context, tenantID int64) (*Snapshot, error) {
	c.calls.Add(1)
	return &Snapshot{
		TenantID:           tenantID,
		Invoices:           map[string]int{"SENT": 2, "PAID": 5},
		OutstandingBalance: 424.8,
		OverdueCount:       1,
		GeneratedAt:        time.Now().UTC(),
	}, nil
}

func newTestService(t *testing.T, collector Collector, ttl time.Duration) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(collector, client, ttl, logger), mr
}

func TestServiceCaches(t *testing.T) {
	collector := &countingCollector{}
	svc, _ := newTestService(t, collector, time.Minute)
	ctx := context.Background()

	first, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(1), first.TenantID)
	require.InDelta(t, 424.8, first.OutstandingBalance, 1e-9)

	second, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, first.Invoices, second.Invoices)
	require.Equal(t, int64(1), collector.calls.Load())

	// A different tenant is a different key.
	_, err = svc.Get(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, int64(2), collector.calls.Load())
}

func TestServiceExpiry(t *testing.T) {
	collector := &countingCollector{}
	svc, mr := newTestService(t, collector, time.Minute)
	ctx := context.Background()

	_, err := svc.Get(ctx, 1)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = svc.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), collector.calls.Load())
}

func TestServiceRefreshBypassesCache(t *testing.T) {
	collector := &countingCollector{}
	svc, _ := newTestService(t, collector, time.Minute)
	ctx := context.Background()

	_, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	_, err = svc.Refresh(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), collector.calls.Load())
}

func TestServiceWithoutCache(t *testing.T) {
	collector := &countingCollector{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(collector, nil, 0, logger)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Get(ctx, 1)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	// Concurrent misses collapse; the collector runs at least once but far
	// fewer times than the callers.
	require.GreaterOrEqual(t, collector.calls.Load(), int64(1))
	require.LessOrEqual(t, collector.calls.Load(), int64(8))
}
