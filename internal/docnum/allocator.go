// Package docnum allocates tenant-scoped sequential document numbers.
package docnum

import (
	"context"
	"fmt"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

// MaxAllocationAttempts bounds retries when a persisted document collides on
// its number despite the atomic sequence increment.
const MaxAllocationAttempts = 3

// Store increments and returns the next sequence value for a
// (tenant, type, year) key. Implementations must be atomic under concurrent
// callers; counting existing documents is not an acceptable implementation.
type Store interface {
	NextSeq(ctx context.Context, tenantID int64, docType documents.DocType, year int) (int64, error)
}

// Allocator produces unique, human-readable document numbers such as
// INV-2024-00007. Sequences start at 1 per (tenant, type, year).
type Allocator struct {
	store Store
}

// New constructs an Allocator.
func New(store Store) *Allocator {
	return &Allocator{store: store}
}

// Next allocates the next number for the key.
func (a *Allocator) Next(ctx context.Context, tenantID int64, docType documents.DocType, year int) (string, error) {
	seq, err := a.store.NextSeq(ctx, tenantID, docType, year)
	if err != nil {
		return "", fmt.Errorf("docnum: next seq for %s: %w", docType, err)
	}
	return Format(docType, year, seq), nil
}

// Format renders a document number: {PREFIX}-{year}-{seq, 5 digits}.
func Format(docType documents.DocType, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", docType.Prefix(), year, seq)
}
