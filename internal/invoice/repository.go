package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
)

// PGRepository provides PostgreSQL backed persistence for invoices and
// their payment ledger.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const invoiceColumns = `id, tenant_id, number, status, customer_kind, customer_id,
	subtotal, total_discount, total_tax, total_amount, total_paid, balance_due,
	due_date, notes, terms, quotation_id, purchase_order_id,
	created_by, created_at, updated_at`

// Create inserts the invoice header and its lines in one transaction.
func (r *PGRepository) Create(ctx context.Context, inv Invoice) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO invoices (tenant_id, number, status, customer_kind, customer_id,
				subtotal, total_discount, total_tax, total_amount, total_paid, balance_due,
				due_date, notes, terms, quotation_id, purchase_order_id, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, NOW(), NOW())
			RETURNING id`,
			inv.TenantID, inv.Number, inv.Status, inv.Customer.Kind, inv.Customer.ID,
			inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.TotalAmount, inv.TotalPaid, inv.BalanceDue,
			inv.DueDate, inv.Notes, inv.Terms, inv.QuotationID, inv.PurchaseOrderID, inv.CreatedBy,
		).Scan(&id)
		if err != nil {
			return err
		}
		return insertLines(ctx, tx, id, inv.Lines)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertLines(ctx context.Context, tx pgx.Tx, invoiceID int64, lines []documents.LineItem) error {
	for _, line := range lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price,
				discount_percent, tax_percent, discount_amount, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			invoiceID, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountPercent, line.TaxPercent, line.DiscountAmount, line.TaxAmount,
			line.LineTotal, line.LineOrder,
		)
		if err != nil {
			return fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return nil
}

// Get loads an invoice with its lines and ledger, scoped to the tenant.
func (r *PGRepository) Get(ctx context.Context, tenantID, id int64) (*Invoice, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, documents.ErrNotFound
		}
		return nil, err
	}

	lines, err := r.loadLines(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines

	payments, err := r.loadPayments(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Payments = payments
	return inv, nil
}

func (r *PGRepository) loadLines(ctx context.Context, invoiceID int64) ([]documents.LineItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, quantity, unit_price, discount_percent, tax_percent,
			discount_amount, tax_amount, line_total, line_order
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY line_order, id`, invoiceID)
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

func (r *PGRepository) loadPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, invoice_id, amount, method, reference, recorded_by, recorded_at
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY recorded_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference,
			&p.RecordedBy, &p.RecordedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// List returns invoices matching the filter, newest first, plus the total
// count. Ledgers are not loaded for list views.
func (r *PGRepository) List(ctx context.Context, req ListInvoicesRequest) ([]Invoice, int, error) {
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
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM invoices "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, req.Limit, req.Offset)
	query := fmt.Sprintf("SELECT %s FROM invoices %s ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d",
		invoiceColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *inv)
	}
	return out, total, rows.Err()
}

// Update rewrites the header, replaces the lines and recomputes the ledger
// aggregates against the existing payments in one transaction, so the
// derived status stays consistent with the new total.
func (r *PGRepository) Update(ctx context.Context, inv Invoice) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current Status
		err := tx.QueryRow(ctx,
			`SELECT status FROM invoices WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
			inv.TenantID, inv.ID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return documents.ErrNotFound
			}
			return err
		}

		var totalPaid float64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1`,
			inv.ID).Scan(&totalPaid); err != nil {
			return err
		}
		totalPaid = documents.Round2(totalPaid)
		balance := documents.Round2(inv.TotalAmount - totalPaid)
		status := DeriveStatus(current, totalPaid, balance)

		_, err = tx.Exec(ctx, `
			UPDATE invoices SET customer_kind = $1, customer_id = $2,
				subtotal = $3, total_discount = $4, total_tax = $5, total_amount = $6,
				total_paid = $7, balance_due = $8, status = $9,
				due_date = $10, notes = $11, terms = $12, updated_at = NOW()
			WHERE tenant_id = $13 AND id = $14`,
			inv.Customer.Kind, inv.Customer.ID,
			inv.Subtotal, inv.TotalDiscount, inv.TotalTax, inv.TotalAmount,
			totalPaid, balance, status,
			inv.DueDate, inv.Notes, inv.Terms, inv.TenantID, inv.ID,
		)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, inv.ID); err != nil {
			return err
		}
		return insertLines(ctx, tx, inv.ID, inv.Lines)
	})
}

// UpdateStatus sets the status column.
func (r *PGRepository) UpdateStatus(ctx context.Context, tenantID, id int64, status Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $1, updated_at = NOW() WHERE tenant_id = $2 AND id = $3`,
		status, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return documents.ErrNotFound
	}
	return nil
}

// Delete removes the invoice, its lines and its ledger.
func (r *PGRepository) Delete(ctx context.Context, tenantID, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_payments WHERE invoice_id = $1`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM invoice_lines WHERE invoice_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM invoices WHERE tenant_id = $1 AND id = $2`, tenantID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return documents.ErrNotFound
		}
		return nil
	})
}

// AddPayment appends a ledger entry, recomputes the aggregates and derives
// the new status, all in one transaction. The row lock on the invoice
// serializes concurrent payments against the same document.
func (r *PGRepository) AddPayment(ctx context.Context, tenantID int64, p Payment) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current Status
		var totalAmount float64
		err := tx.QueryRow(ctx,
			`SELECT status, total_amount FROM invoices WHERE tenant_id = $1 AND id = $2 FOR UPDATE`,
			tenantID, p.InvoiceID).Scan(&current, &totalAmount)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return documents.ErrNotFound
			}
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO invoice_payments (invoice_id, amount, method, reference, recorded_by, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			p.InvoiceID, p.Amount, p.Method, p.Reference, p.RecordedBy, p.RecordedAt,
		); err != nil {
			return fmt.Errorf("insert payment: %w", err)
		}

		var totalPaid float64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(SUM(amount), 0) FROM invoice_payments WHERE invoice_id = $1`,
			p.InvoiceID).Scan(&totalPaid); err != nil {
			return err
		}
		totalPaid = documents.Round2(totalPaid)
		balance := documents.Round2(totalAmount - totalPaid)
		status := DeriveStatus(current, totalPaid, balance)

		_, err = tx.Exec(ctx, `
			UPDATE invoices SET total_paid = $1, balance_due = $2, status = $3, updated_at = NOW()
			WHERE tenant_id = $4 AND id = $5`,
			totalPaid, balance, status, tenantID, p.InvoiceID)
		return err
	})
}

// ListOverdue returns unpaid invoices past their due date across all
// tenants, oldest first.
func (r *PGRepository) ListOverdue(ctx context.Context, asOf time.Time, limit int) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status IN ($1, $2) AND due_date IS NOT NULL AND due_date < $3
		ORDER BY due_date, id LIMIT $4`,
		StatusSent, StatusPartiallyPaid, asOf, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var dueDate pgtype.Timestamptz
	var notes, terms pgtype.Text
	var quotationID, purchaseOrderID pgtype.Int8

	err := row.Scan(
		&inv.ID, &inv.TenantID, &inv.Number, &inv.Status, &inv.Customer.Kind, &inv.Customer.ID,
		&inv.Subtotal, &inv.TotalDiscount, &inv.TotalTax, &inv.TotalAmount, &inv.TotalPaid, &inv.BalanceDue,
		&dueDate, &notes, &terms, &quotationID, &purchaseOrderID,
		&inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if dueDate.Valid {
		v := dueDate.Time
		inv.DueDate = &v
	}
	if notes.Valid {
		v := notes.String
		inv.Notes = &v
	}
	if terms.Valid {
		v := terms.String
		inv.Terms = &v
	}
	if quotationID.Valid {
		v := quotationID.Int64
		inv.QuotationID = &v
	}
	if purchaseOrderID.Valid {
		v := purchaseOrderID.Int64
		inv.PurchaseOrderID = &v
	}
	return &inv, nil
}
