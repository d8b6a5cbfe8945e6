package docnum

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
)

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGStore backs sequence allocation with a document_sequences row per
// (tenant, type, year). The upsert increments atomically, so concurrent
// allocators serialise on the row and never observe the same value.
type PGStore struct {
	db rowQuerier
}

// NewPGStore constructs a store over a pool or an open transaction.
func NewPGStore(db rowQuerier) *PGStore {
	return &PGStore{db: db}
}

// NextSeq increments and returns the sequence for the key.
func (s *PGStore) NextSeq(ctx context.Context, tenantID int64, docType documents.DocType, year int) (int64, error) {
	var seq int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO document_sequences (tenant_id, doc_type, year, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type, year)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq
	`, tenantID, string(docType), year).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
