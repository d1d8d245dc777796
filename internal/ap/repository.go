package ap

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/platform/db"
)

var (
	ErrVendorNotFound = errors.New("ap: vendor not found")
	ErrBillNotFound   = errors.New("ap: bill not found")
)

// Repository defines AP data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListVendors(ctx context.Context) ([]Vendor, error)
	GetVendor(ctx context.Context, id int64) (Vendor, error)
	ListBills(ctx context.Context, vendorID int64) ([]Bill, error)
	GetBill(ctx context.Context, id int64) (Bill, error)
	ListBillItems(ctx context.Context, billID int64) ([]BillItem, error)
	ListBillPayments(ctx context.Context, billID int64) ([]BillPayment, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	GetBill(ctx context.Context, id int64) (Bill, error)
	InsertBillPayment(ctx context.Context, payment *BillPayment) error
	SumBillPayments(ctx context.Context, billID int64) (float64, error)
	UpdateBillTotals(ctx context.Context, bill Bill) error
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

const vendorColumns = `id, vendor_name, company_name, contact_person, email, phone, address, city, state, zip, country, payment_terms, tax_id, notes, is_active, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.VendorName, &v.CompanyName, &v.ContactPerson, &v.Email, &v.Phone, &v.Address, &v.City, &v.State, &v.Zip, &v.Country, &v.PaymentTerms, &v.TaxID, &v.Notes, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (r *pgRepository) ListVendors(ctx context.Context) ([]Vendor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+vendorColumns+` FROM vendors ORDER BY vendor_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var vendors []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, err
		}
		vendors = append(vendors, v)
	}
	return vendors, rows.Err()
}

func (r *pgRepository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Vendor{}, ErrVendorNotFound
		}
		return Vendor{}, err
	}
	return v, nil
}

const billColumns = `id, vendor_id, bill_number, ref_number, bill_date, due_date, subtotal, tax, tax_name, total, amount_paid, balance, status, terms, memo, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.VendorID, &b.BillNumber, &b.RefNumber, &b.BillDate, &b.DueDate, &b.Subtotal, &b.Tax, &b.TaxName, &b.Total, &b.AmountPaid, &b.Balance, &b.Status, &b.Terms, &b.Memo, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *pgRepository) ListBills(ctx context.Context, vendorID int64) ([]Bill, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+billColumns+` FROM bills WHERE vendor_id=$1 ORDER BY bill_date NULLS LAST, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bills []Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (r *pgRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, err := scanBill(r.pool.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	return b, nil
}

func (r *pgRepository) ListBillItems(ctx context.Context, billID int64) ([]BillItem, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, bill_id, account_id, description, quantity, rate, amount FROM bill_items WHERE bill_id=$1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []BillItem
	for rows.Next() {
		var it BillItem
		if err := rows.Scan(&it.ID, &it.BillID, &it.AccountID, &it.Description, &it.Quantity, &it.Rate, &it.Amount); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgRepository) ListBillPayments(ctx context.Context, billID int64) ([]BillPayment, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, bill_id, bank_account_id, payment_date, amount, payment_method, check_number, reference, memo, created_at
FROM bill_payments WHERE bill_id=$1 ORDER BY payment_date, id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []BillPayment
	for rows.Next() {
		var p BillPayment
		if err := rows.Scan(&p.ID, &p.BillID, &p.BankAccountID, &p.PaymentDate, &p.Amount, &p.PaymentMethod, &p.CheckNumber, &p.Reference, &p.Memo, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *pgTxRepository) GetBill(ctx context.Context, id int64) (Bill, error) {
	b, err := scanBill(r.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, ErrBillNotFound
		}
		return Bill{}, err
	}
	return b, nil
}

func (r *pgTxRepository) InsertBillPayment(ctx context.Context, payment *BillPayment) error {
	return r.tx.QueryRow(ctx, `INSERT INTO bill_payments (bill_id, bank_account_id, payment_date, amount, payment_method, check_number, reference, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		payment.BillID, payment.BankAccountID, payment.PaymentDate, payment.Amount, payment.PaymentMethod, payment.CheckNumber, payment.Reference, payment.Memo).
		Scan(&payment.ID, &payment.CreatedAt)
}

func (r *pgTxRepository) SumBillPayments(ctx context.Context, billID int64) (float64, error) {
	var sum float64
	err := r.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM bill_payments WHERE bill_id=$1`, billID).Scan(&sum)
	return sum, err
}

func (r *pgTxRepository) UpdateBillTotals(ctx context.Context, bill Bill) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE bills SET amount_paid=$2, balance=$3, status=$4, updated_at=NOW() WHERE id=$1`,
		bill.ID, bill.AmountPaid, bill.Balance, bill.Status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBillNotFound
	}
	return nil
}
