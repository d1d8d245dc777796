package ar

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/platform/db"
)

var (
	ErrCustomerNotFound = errors.New("ar: customer not found")
	ErrInvoiceNotFound  = errors.New("ar: invoice not found")
	ErrQuoteNotFound    = errors.New("ar: quote not found")
)

// Repository defines AR data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListCustomers(ctx context.Context) ([]Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListInvoices(ctx context.Context, customerID int64) ([]Invoice, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	ListQuotes(ctx context.Context, customerID int64) ([]Quote, error)
	GetQuote(ctx context.Context, id int64) (Quote, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	InsertPayment(ctx context.Context, payment *Payment) error
	SumCompletedPayments(ctx context.Context, invoiceID int64) (float64, error)
	UpdateInvoiceTotals(ctx context.Context, invoice Invoice) error
}

var (
	_ Repository   = (*pgRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgRepository struct {
	pool *pgxpool.Pool
}

type pgTxRepository struct {
	tx pgx.Tx
}

// NewRepository constructs the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const customerColumns = `id, name, email, phone, address, city, state, zip, country, billing_address, billing_city, billing_state, billing_zip, billing_country, notes, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City, &c.State, &c.Zip, &c.Country, &c.BillingAddress, &c.BillingCity, &c.BillingState, &c.BillingZip, &c.BillingCountry, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *pgRepository) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var customers []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (r *pgRepository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrCustomerNotFound
		}
		return Customer{}, err
	}
	return c, nil
}

const invoiceColumns = `id, customer_id, invoice_number, issue_date, due_date, subtotal, tax_rate, tax_amount, tax_name, total, paid_amount, balance, status, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.InvoiceNumber, &inv.IssueDate, &inv.DueDate, &inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.TaxName, &inv.Total, &inv.PaidAmount, &inv.Balance, &inv.Status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *pgRepository) ListInvoices(ctx context.Context, customerID int64) ([]Invoice, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE customer_id=$1 ORDER BY issue_date NULLS LAST, id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *pgRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *pgRepository) ListInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, item_type, description, quantity, unit_price, discount, total, sort_order
FROM invoice_items WHERE invoice_id=$1 ORDER BY sort_order, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []InvoiceItem
	for rows.Next() {
		var it InvoiceItem
		if err := rows.Scan(&it.ID, &it.InvoiceID, &it.ItemType, &it.Description, &it.Quantity, &it.UnitPrice, &it.Discount, &it.Total, &it.SortOrder); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgRepository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, invoice_id, payment_provider, provider_transaction_id, amount, status, payment_method_type, notes, processed_at, created_at
FROM payments WHERE invoice_id=$1 ORDER BY processed_at, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.PaymentProvider, &p.ProviderTransactionID, &p.Amount, &p.Status, &p.PaymentMethodType, &p.Notes, &p.ProcessedAt, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

const quoteColumns = `id, customer_id, quote_number, expiration_date, subtotal, tax_rate, tax_amount, tax_name, total, status, notes, created_at, updated_at`

func scanQuote(row pgx.Row) (Quote, error) {
	var q Quote
	err := row.Scan(&q.ID, &q.CustomerID, &q.QuoteNumber, &q.ExpirationDate, &q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.TaxName, &q.Total, &q.Status, &q.Notes, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func (r *pgRepository) ListQuotes(ctx context.Context, customerID int64) ([]Quote, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE customer_id=$1 ORDER BY id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var quotes []Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

func (r *pgRepository) GetQuote(ctx context.Context, id int64) (Quote, error) {
	q, err := scanQuote(r.pool.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Quote{}, ErrQuoteNotFound
		}
		return Quote{}, err
	}
	return q, nil
}

func (r *pgTxRepository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, ErrInvoiceNotFound
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *pgTxRepository) InsertPayment(ctx context.Context, payment *Payment) error {
	return r.tx.QueryRow(ctx, `INSERT INTO payments (invoice_id, payment_provider, provider_transaction_id, amount, status, payment_method_type, notes, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		payment.InvoiceID, payment.PaymentProvider, payment.ProviderTransactionID, payment.Amount, payment.Status, payment.PaymentMethodType, payment.Notes, payment.ProcessedAt).
		Scan(&payment.ID, &payment.CreatedAt)
}

func (r *pgTxRepository) SumCompletedPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id=$1 AND status='completed'`, invoiceID).Scan(&sum)
	return sum, err
}

func (r *pgTxRepository) UpdateInvoiceTotals(ctx context.Context, invoice Invoice) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE invoices SET paid_amount=$2, balance=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		invoice.ID, invoice.PaidAmount, invoice.Balance, invoice.Status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}
