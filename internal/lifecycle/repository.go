package lifecycle

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/crmorbit-ai/crm-v1-sub002/internal/documents"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/invoice"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/platform/db"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/purchaseorder"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/quotation"
	"github.com/crmorbit-ai/crm-v1-sub002/internal/rfi"
)

// PGStore persists conversions. Reads go through the domain repositories;
// the transactional insert-and-claim is done here with direct SQL because
// it spans two document tables.
type PGStore struct {
	pool   *pgxpool.Pool
	rfis   *rfi.PGRepository
	quotes *quotation.PGRepository
	orders *purchaseorder.PGRepository
}

// NewStore constructs the store.
func NewStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:   pool,
		rfis:   rfi.NewRepository(pool),
		quotes: quotation.NewRepository(pool),
		orders: purchaseorder.NewRepository(pool),
	}
}

// GetRFI loads the conversion source.
func (s *PGStore) GetRFI(ctx context.Context, tenantID, id int64) (*rfi.RFI, error) {
	return s.rfis.Get(ctx, tenantID, id)
}

// GetQuotation loads the conversion source.
func (s *PGStore) GetQuotation(ctx context.Context, tenantID, id int64) (*quotation.Quotation, error) {
	return s.quotes.Get(ctx, tenantID, id)
}

// GetPurchaseOrder loads the conversion source.
func (s *PGStore) GetPurchaseOrder(ctx context.Context, tenantID, id int64) (*purchaseorder.PurchaseOrder, error) {
	return s.orders.Get(ctx, tenantID, id)
}

// CreateQuotationFromRFI inserts the quotation and claims the RFI in one
// transaction. The claim flips the gate only while it is still open and
// the RFI is not closed; zero rows affected rolls back the insert.
func (s *PGStore) CreateQuotationFromRFI(ctx context.Context, rfiID int64, q quotation.Quotation) (int64, error) {
	var id int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
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
		if err := insertQuotationLines(ctx, tx, id, q.Lines); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE rfis SET converted_to_quotation = TRUE, status = $1, quotation_id = $2, updated_at = NOW()
			WHERE tenant_id = $3 AND id = $4 AND converted_to_quotation = FALSE AND status <> $5`,
			rfi.StatusConverted, id, q.TenantID, rfiID, rfi.StatusClosed)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errClaimLost
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateInvoiceFromQuotation inserts the invoice and claims the quotation,
// forcing the source to ACCEPTED, in one transaction.
func (s *PGStore) CreateInvoiceFromQuotation(ctx context.Context, quotationID int64, inv invoice.Invoice) (int64, error) {
	var id int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		id, err = insertInvoice(ctx, tx, inv)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE quotations SET converted_to_invoice = TRUE, status = $1, invoice_id = $2, updated_at = NOW()
			WHERE tenant_id = $3 AND id = $4 AND converted_to_invoice = FALSE`,
			quotation.StatusAccepted, id, inv.TenantID, quotationID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errClaimLost
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// CreateInvoiceFromPurchaseOrder inserts the invoice and claims the order
// in one transaction. The claim requires the order to still be APPROVED.
func (s *PGStore) CreateInvoiceFromPurchaseOrder(ctx context.Context, orderID int64, inv invoice.Invoice) (int64, error) {
	var id int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		id, err = insertInvoice(ctx, tx, inv)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE purchase_orders SET converted_to_invoice = TRUE, invoice_id = $1, updated_at = NOW()
			WHERE tenant_id = $2 AND id = $3 AND converted_to_invoice = FALSE AND status = $4`,
			id, inv.TenantID, orderID, purchaseorder.StatusApproved)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return errClaimLost
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

func insertInvoice(ctx context.Context, tx pgx.Tx, inv invoice.Invoice) (int64, error) {
	var id int64
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
		return 0, err
	}
	for _, line := range inv.Lines {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price,
				discount_percent, tax_percent, discount_amount, tax_amount, line_total, line_order)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			id, line.Description, line.Quantity, line.UnitPrice,
			line.DiscountPercent, line.TaxPercent, line.DiscountAmount, line.TaxAmount,
			line.LineTotal, line.LineOrder,
		)
		if err != nil {
			return 0, fmt.Errorf("insert invoice line: %w", err)
		}
	}
	return id, nil
}

func insertQuotationLines(ctx context.Context, tx pgx.Tx, quotationID int64, lines []documents.LineItem) error {
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
