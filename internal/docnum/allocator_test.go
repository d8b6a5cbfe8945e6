package docnum

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

type memoryStore struct {
	mu   sync.Mutex
	seqs map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{seqs: make(map[string]int64)}
}

func (s *memoryStore) NextSeq(_ context.Context, tenantID int64, docType documents.DocType, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%d/%s/%d", tenantID, docType, year)
	s.seqs[key]++
	return s.seqs[key], nil
}

func TestFormat(t *testing.T) {
	require.Equal(t, "INV-2024-00007", Format(documents.DocTypeInvoice, 2024, 7))
	require.Equal(t, "QT-2026-00001", Format(documents.DocTypeQuotation, 2026, 1))
	require.Equal(t, "RFI-2026-12345", Format(documents.DocTypeRFI, 2026, 12345))
	require.Equal(t, "PO-2026-100000", Format(documents.DocTypePurchaseOrder, 2026, 100000))
}

func TestNextStartsAtOnePerKey(t *testing.T) {
	alloc := New(newMemoryStore())
	ctx := context.Background()

	first, err := alloc.Next(ctx, 1, documents.DocTypeInvoice, 2026)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-00001", first)

	second, err := alloc.Next(ctx, 1, documents.DocTypeInvoice, 2026)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-00002", second)

	// Different tenant, type and year each restart at 1.
	otherTenant, err := alloc.Next(ctx, 2, documents.DocTypeInvoice, 2026)
	require.NoError(t, err)
	require.Equal(t, "INV-2026-00001", otherTenant)

	otherType, err := alloc.Next(ctx, 1, documents.DocTypeQuotation, 2026)
	require.NoError(t, err)
	require.Equal(t, "QT-2026-00001", otherType)

	otherYear, err := alloc.Next(ctx, 1, documents.DocTypeInvoice, 2027)
	require.NoError(t, err)
	require.Equal(t, "INV-2027-00001", otherYear)
}

func TestNextConcurrentAllocationsAreDistinct(t *testing.T) {
	const n = 64
	alloc := New(newMemoryStore())

	var wg sync.WaitGroup
	results := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			number, err := alloc.Next(context.Background(), 7, documents.DocTypePurchaseOrder, 2026)
			require.NoError(t, err)
			results[i] = number
		}(i)
	}
	wg.Wait()

	sort.Strings(results)
	for i := 0; i < n; i++ {
		require.Equal(t, Format(documents.DocTypePurchaseOrder, 2026, int64(i+1)), results[i])
	}
}
