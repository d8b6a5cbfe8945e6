package rfi

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
)

// PGRepository provides PostgreSQL backed persistence for RFIs.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const rfiColumns = `id, tenant_id, number, status, customer_kind, customer_id, subject,
	subtotal, total_discount, total_tax, total_amount,
	response_due, notes, converted_to_quotation, quotation_id,
	created_by, created_at, updated_at`

// Create inserts the RFI header and its lines in one transaction.
func (r *PGRepository) Create(ctx context.Context, doc RFI) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO rfis (tenant_id, number, status, customer_kind, customer_id, subject,
				subtotal, total_discount, total_tax, total_amount,
				response_due, notes, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
			RETURNING id`,
			doc.TenantID, doc.Number, doc.Status, doc.Customer.Kind, doc.Customer.ID, doc.Subject,
			doc.Subtotal, doc.TotalDiscount, doc.TotalTax, doc.TotalAmount,
			doc.ResponseDue, doc.Notes, doc.CreatedBy,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, id, doc.Lines)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, rfiID int64, lines []documents.LineItem) error {
	for _, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO rfi_lines (rfi_id, description, quantity, unit_price,
				discount_percent, tax_percent, discount_amount, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			rfiID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountPercent, line.TaxPercent, line.DiscountAmount, line.TaxAmount,
			line.LineTotal, line.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert rfi line: %w", err)
		}
	}
	return nil
}

// Get loads an RFI with its lines, scoped to the tenant.
func (r *PGRepository) Get(ctx context.Context, tenantID, id int64) (*RFI, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+rfiColumns+` FROM rfis WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	doc, err := scanRFI(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, documents.ErrNotFound
		}
		return nil, err
	}

	lines, err := r.loadLines(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Lines = lines
	return doc, nil
}

func (r *PGRepository) loadLines(ctx context.Context, rfiID int64) ([]documents.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, quantity, unit_price, discount_percent, tax_percent,
			discount_amount, tax_amount, line_total, line_order
		FROM rfi_lines WHERE rfi_id = $1 ORDER BY line_order, id`, rfiID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []documents.LineItem
	for rows.Next() {
		var line documents.LineItem
		if err := rows.Scan(&line.ID, &line.Description, &line.Quantity, &line.UnitPrice,
			&line.DiscountPercent, &line.TaxPercent, &line.DiscountAmount, &line.TaxAmount,
			&line.LineTotal, &line.LineOrder); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// List returns RFIs matching the filter, newest first, plus the total count.
func (r *PGRepository) List(ctx context.Context, req ListRFIsRequest) ([]RFI, int, error) {
	where := "WHERE tenant_id = $1"
	args := []any{req.TenantID}
	if req.Status != nil {
		args = append(args, *req.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if req.CustomerID != nil {
		args = append(args, *req.CustomerID)
		where += fmt.Sprintf(" AND customer_id = $%d", len(args))
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM rfis "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf("SELECT %s FROM rfis %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		rfiColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []RFI
	for rows.Next() {
		doc, err := scanRFI(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *doc)
	}
	return out, total, rows.Err()
}

// Update rewrites the header and replaces the lines in one transaction.
func (r *PGRepository) Update(ctx context.Context, doc RFI) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE rfis SET customer_kind = $1, customer_id = $2, subject = $3,
				subtotal = $4, total_discount = $5, total_tax = $6, total_amount = $7,
				response_due = $8, notes = $9, updated_at = NOW()
			WHERE tenant_id = $10 AND id = $11`,
			doc.Customer.Kind, doc.Customer.ID, doc.Subject,
			doc.Subtotal, doc.TotalDiscount, doc.TotalTax, doc.TotalAmount,
			doc.ResponseDue, doc.Notes, doc.TenantID, doc.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM rfi_lines WHERE rfi_id = $1`, doc.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, doc.ID, doc.Lines)
	})
}

// UpdateStatus sets the status column.
func (r *PGRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE rfis SET status = $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

// Delete removes the RFI and its lines.
func (r *PGRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM rfi_lines WHERE rfi_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM rfis WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		return nil
	})
}

func scanRFI(row pgx.Row) (*RFI, error) {
	var doc RFI
	var responseDue pgtype.Timestamptz
	var notes pgtype.Text
	var quotationID pgtype.Int8

	err := row.Scan(
		&doc.ID, &doc.TenantID, &doc.Number, &doc.Status, &doc.Customer.Kind, &doc.Customer.ID, &doc.Subject,
		&doc.Subtotal, &doc.TotalDiscount, &doc.TotalTax, &doc.TotalAmount,
		&responseDue, &notes, &doc.ConvertedToQuotation, &quotationID,
		&doc.CreatedBy, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if responseDue.Valid {
		v := responseDue.Time
		doc.ResponseDue = &v
	}
	if notes.Valid {
		v := notes.String
		doc.Notes = &v
	}
	if quotationID.Valid {
		v := quotationID.Int64
		doc.QuotationID = &v
	}
	return &doc, nil
}
