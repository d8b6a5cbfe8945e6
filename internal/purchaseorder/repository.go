package purchaseorder

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

// PGRepository provides PostgreSQL backed persistence for purchase orders.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const orderColumns = `id, tenant_id, number, status, customer_kind, customer_id,
	subtotal, total_discount, total_tax, total_amount,
	expected_delivery, notes, terms, converted_to_invoice, invoice_id, quotation_id,
	created_by, created_at, updated_at`

// Create inserts the order header and its lines in one transaction.
func (r *PGRepository) Create(ctx context.Context, p PurchaseOrder) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO purchase_orders (tenant_id, number, status, customer_kind, customer_id,
				subtotal, total_discount, total_tax, total_amount,
				expected_delivery, notes, terms, quotation_id, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
			RETURNING id`,
			p.TenantID, p.Number, p.Status, p.Customer.Kind, p.Customer.ID,
			p.Subtotal, p.TotalDiscount, p.TotalTax, p.TotalAmount,
			p.ExpectedDelivery, p.Notes, p.Terms, p.QuotationID, p.CreatedBy,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, id, p.Lines)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, orderID int64, lines []documents.LineItem) error {
	for _, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO purchase_order_lines (purchase_order_id, description, quantity, unit_price,
				discount_percent, tax_percent, discount_amount, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			orderID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountPercent, line.TaxPercent, line.DiscountAmount, line.TaxAmount,
			line.LineTotal, line.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert purchase order line: %w", err)
		}
	}
	return nil
}

// Get loads a purchase order with its lines, scoped to the tenant.
func (r *PGRepository) Get(ctx context.Context, tenantID, id int64) (*PurchaseOrder, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM purchase_orders WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	p, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, documents.ErrNotFound
		}
		return nil, err
	}

	lines, err := r.loadLines(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	p.Lines = lines
	return p, nil
}

func (r *PGRepository) loadLines(ctx context.Context, orderID int64) ([]documents.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, quantity, unit_price, discount_percent, tax_percent,
			discount_amount, tax_amount, line_total, line_order
		FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY line_order, id`, orderID)
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

// List returns purchase orders matching the filter, newest first, plus the
// total count.
func (r *PGRepository) List(ctx context.Context, req ListPurchaseOrdersRequest) ([]PurchaseOrder, int, error) {
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM purchase_orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf("SELECT %s FROM purchase_orders %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		p, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *p)
	}
	return out, total, rows.Err()
}

// Update rewrites the header and replaces the lines in one transaction.
func (r *PGRepository) Update(ctx context.Context, p PurchaseOrder) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE purchase_orders SET customer_kind = $1, customer_id = $2,
				subtotal = $3, total_discount = $4, total_tax = $5, total_amount = $6,
				expected_delivery = $7, notes = $8, terms = $9, updated_at = NOW()
			WHERE tenant_id = $10 AND id = $11`,
			p.Customer.Kind, p.Customer.ID,
			p.Subtotal, p.TotalDiscount, p.TotalTax, p.TotalAmount,
			p.ExpectedDelivery, p.Notes, p.Terms, p.TenantID, p.ID,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE purchase_order_id = $1`, p.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, p.ID, p.Lines)
	})
}

// UpdateStatus sets the status column.
func (r *PGRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE purchase_orders SET status = $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

// Delete removes the purchase order and its lines.
func (r *PGRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM purchase_order_lines WHERE purchase_order_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM purchase_orders WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		return nil
	})
}

func scanOrder(row pgx.Row) (*PurchaseOrder, error) {
	var p PurchaseOrder
	var expectedDelivery pgtype.Timestamptz
	var notes, terms pgtype.Text
	var invoiceID, quotationID pgtype.Int8

	err := row.Scan(
		&p.ID, &p.TenantID, &p.Number, &p.Status, &p.Customer.Kind, &p.Customer.ID,
		&p.Subtotal, &p.TotalDiscount, &p.TotalTax, &p.TotalAmount,
		&expectedDelivery, &notes, &terms, &p.ConvertedToInvoice, &invoiceID, &quotationID,
		&p.CreatedBy, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if expectedDelivery.Valid {
		v := expectedDelivery.Time
		p.ExpectedDelivery = &v
	}
	if notes.Valid {
		v := notes.String
		p.Notes = &v
	}
	if terms.Valid {
		v := terms.String
		p.Terms = &v
	}
	if invoiceID.Valid {
		v := invoiceID.Int64
		p.InvoiceID = &v
	}
	if quotationID.Valid {
		v := quotationID.Int64
		p.QuotationID = &v
	}
	return &p, nil
}
