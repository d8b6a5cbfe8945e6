package quotation

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

// PGRepository provides PostgreSQL backed persistence for quotations.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const quotationColumns = `id, tenant_id, number, status, customer_kind, customer_id,
	subtotal, total_discount, total_tax, total_amount,
	valid_until, notes, terms, converted_to_invoice, invoice_id, rfi_id,
	created_by, created_at, updated_at`

// Create inserts the quotation header and its lines in one transaction.
func (r *PGRepository) Create(ctx context.Context, q Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO quotations (tenant_id, number, status, customer_kind, customer_id,
				subtotal, total_discount, total_tax, total_amount,
				valid_until, notes, terms, rfi_id, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
			RETURNING id`,
			q.TenantID, q.Number, q.Status, q.Customer.Kind, q.Customer.ID,
			q.Subtotal, q.TotalDiscount, q.TotalTax, q.TotalAmount,
			q.ValidUntil, q.Notes, q.Terms, q.RFIID, q.CreatedBy,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, id, q.Lines)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, quotationID int64, lines []documents.LineItem) error {
	for _, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO quotation_lines (quotation_id, description, quantity, unit_price,
				discount_percent, tax_percent, discount_amount, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			quotationID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountPercent, line.TaxPercent, line.DiscountAmount, line.TaxAmount,
			line.LineTotal, line.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert quotation line: %w", err)
		}
	}
	return nil
}

// Get loads a quotation with its lines, scoped to the tenant.
func (r *PGRepository) Get(ctx context.Context, tenantID, id int64) (*Quotation, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+quotationColumns+` FROM quotations WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	q, err := scanQuotation(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, documents.ErrNotFound
		}
		return nil, err
	}

	lines, err := r.loadLines(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.Lines = lines
	return q, nil
}

func (r *PGRepository) loadLines(ctx context.Context, quotationID int64) ([]documents.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, quantity, unit_price, discount_percent, tax_percent,
			discount_amount, tax_amount, line_total, line_order
		FROM quotation_lines WHERE quotation_id = $1 ORDER BY line_order, id`, quotationID)
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

// List returns quotations matching the filter, newest first, plus the total
// count.
func (r *PGRepository) List(ctx context.Context, req ListQuotationsRequest) ([]Quotation, int, error) {
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM quotations "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf("SELECT %s FROM quotations %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		quotationColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *q)
	}
	return out, total, rows.Err()
}

// Update rewrites the header and replaces the lines in one transaction.
func (r *PGRepository) Update(ctx context.Context, q Quotation) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET customer_kind = $1, customer_id = $2,
				subtotal = $3, total_discount = $4, total_tax = $5, total_amount = $6,
				valid_until = $7, notes = $8, terms = $9, updated_at = NOW()
			WHERE tenant_id = $10 AND id = $11`,
			q.Customer.Kind, q.Customer.ID,
			q.Subtotal, q.TotalDiscount, q.TotalTax, q.TotalAmount,
			q.ValidUntil, q.Notes, q.Terms, q.TenantID, q.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, q.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, q.ID, q.Lines)
	})
}

// UpdateStatus sets the status column.
func (r *PGRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quotations SET status = $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

// Delete removes the quotation and its lines.
func (r *PGRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM quotation_lines WHERE quotation_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM quotations WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		return nil
	})
}

func scanQuotation(row pgx.Row) (*Quotation, error) {
	var q Quotation
	var validUntil pgtype.Timestamptz
	var notes, terms pgtype.Text
	var invoiceID, rfiID pgtype.Int8

	err := row.Scan(
		&q.ID, &q.TenantID, &q.Number, &q.Status, &q.Customer.Kind, &q.Customer.ID,
		&q.Subtotal, &q.TotalDiscount, &q.TotalTax, &q.TotalAmount,
		&validUntil, &notes, &terms, &q.ConvertedToInvoice, &invoiceID, &rfiID,
		&q.CreatedBy, &q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if validUntil.Valid {
		v := validUntil.Time
		q.ValidUntil = &v
	}
	if notes.Valid {
		v := notes.String
		q.Notes = &v
	}
	if terms.Valid {
		v := terms.String
		q.Terms = &v
	}
	if invoiceID.Valid {
		v := invoiceID.Int64
		q.InvoiceID = &v
	}
	if rfiID.Valid {
		v := rfiID.Int64
		q.RFIID = &v
	}
	return &q, nil
}
