package qbimport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/accounting"
	"github.com/harborline/harborline/internal/ap"
	"github.com/harborline/harborline/internal/ar"
	"github.com/harborline/harborline/internal/platform/db"
)

// Store opens the single transaction an import file runs inside.
type Store interface {
	WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error
}

// TxStore is every persistence operation the importers need, all scoped to
// the one transaction of the current file.
type TxStore interface {
	// Chart of accounts.
	FindAccountByName(ctx context.Context, name string, parentID *int64) (accounting.ChartOfAccount, bool, error)
	FindAccountByLowerName(ctx context.Context, name string) (accounting.ChartOfAccount, bool, error)
	InsertAccount(ctx context.Context, account *accounting.ChartOfAccount) error
	UpdateAccount(ctx context.Context, account accounting.ChartOfAccount) error
	UpdateAccountBalance(ctx context.Context, accountID int64, balance float64) error
	ListAccountNumbers(ctx context.Context) ([]string, error)

	// Bank accounts.
	FindBankAccountByChartID(ctx context.Context, chartAccountID int64) (accounting.BankAccount, bool, error)
	InsertBankAccount(ctx context.Context, bank *accounting.BankAccount) error
	UpdateBankAccount(ctx context.Context, bank accounting.BankAccount) error

	// Vendors.
	FindVendorByLowerName(ctx context.Context, name string) (ap.Vendor, bool, error)
	FindVendorByLowerEmail(ctx context.Context, email string) (ap.Vendor, bool, error)
	VendorEmailExists(ctx context.Context, email string) (bool, error)
	InsertVendor(ctx context.Context, vendor *ap.Vendor) error
	UpdateVendor(ctx context.Context, vendor ap.Vendor) error

	// Customers.
	FindCustomerByLowerName(ctx context.Context, name string) (ar.Customer, bool, error)
	FindCustomerByLowerEmail(ctx context.Context, email string) (ar.Customer, bool, error)
	CustomerEmailExists(ctx context.Context, email string) (bool, error)
	InsertCustomer(ctx context.Context, customer *ar.Customer) error
	UpdateCustomer(ctx context.Context, customer ar.Customer) error

	// Bills.
	FindBillByNumber(ctx context.Context, number string) (ap.Bill, bool, error)
	GetBill(ctx context.Context, id int64) (ap.Bill, error)
	InsertBill(ctx context.Context, bill *ap.Bill) error
	UpdateBill(ctx context.Context, bill ap.Bill) error
	ListOpenBills(ctx context.Context, vendorID int64) ([]ap.Bill, error)
	UpsertBillItem(ctx context.Context, item ap.BillItem) error
	InsertBillPayment(ctx context.Context, payment *ap.BillPayment) error
	SumBillPayments(ctx context.Context, billID int64) (float64, error)

	// Invoices.
	FindInvoiceByNumber(ctx context.Context, number string) (ar.Invoice, bool, error)
	GetInvoice(ctx context.Context, id int64) (ar.Invoice, error)
	InsertInvoice(ctx context.Context, invoice *ar.Invoice) error
	UpdateInvoice(ctx context.Context, invoice ar.Invoice) error
	ListInvoiceIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error)
	UpsertInvoiceItem(ctx context.Context, item ar.InvoiceItem) error
	PaymentExistsByProviderRef(ctx context.Context, invoiceID int64, providerID string) (bool, error)
	PaymentExistsSameDayAmount(ctx context.Context, invoiceID int64, day time.Time, amount float64) (bool, error)
	InsertARPayment(ctx context.Context, payment *ar.Payment) error
	SumCompletedPayments(ctx context.Context, invoiceID int64) (float64, error)

	// Quotes.
	FindQuoteByNumber(ctx context.Context, number string) (ar.Quote, bool, error)
	InsertQuote(ctx context.Context, quote *ar.Quote) error
	UpdateQuote(ctx context.Context, quote ar.Quote) error
	UpsertQuoteItem(ctx context.Context, item ar.QuoteItem) error

	// Parts and services.
	FindPartBySKU(ctx context.Context, sku string) (ar.Part, bool, error)
	InsertPart(ctx context.Context, part *ar.Part) error
	UpdatePart(ctx context.Context, part ar.Part) error
	FindServiceByName(ctx context.Context, name string) (ar.ServiceItem, bool, error)
	InsertService(ctx context.Context, svc *ar.ServiceItem) error
	UpdateService(ctx context.Context, svc ar.ServiceItem) error

	// General ledger.
	DeleteLedgerBySource(ctx context.Context, source string) error
	InsertLedgerBatch(ctx context.Context, entries []accounting.GeneralLedgerEntry) error

	// Backup restore.
	SetReplicationRole(ctx context.Context, role string) error
	RestoreRows(ctx context.Context, table string, rows []map[string]any) (int, error)
}

var (
	_ Store   = (*pgStore)(nil)
	_ TxStore = (*pgTxStore)(nil)
)

type pgStore struct {
	pool *pgxpool.Pool
}

type pgTxStore struct {
	tx pgx.Tx
}

// NewStore constructs the postgres-backed import store.
func NewStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool}
}

func (s *pgStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		return fn(ctx, &pgTxStore{tx: tx})
	})
}

const accountColumns = `id, account_number, account_name, account_type, detail_type, parent_id, is_active, is_sub_account, description, opening_balance, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (accounting.ChartOfAccount, error) {
	var a accounting.ChartOfAccount
	err := row.Scan(&a.ID, &a.AccountNumber, &a.AccountName, &a.AccountType, &a.DetailType, &a.ParentID, &a.IsActive, &a.IsSubAccount, &a.Description, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *pgTxStore) FindAccountByName(ctx context.Context, name string, parentID *int64) (accounting.ChartOfAccount, bool, error) {
	var row pgx.Row
	if parentID == nil {
		row = s.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE LOWER(account_name)=LOWER($1) AND parent_id IS NULL LIMIT 1`, name)
	} else {
		row = s.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE LOWER(account_name)=LOWER($1) AND parent_id=$2 LIMIT 1`, name, *parentID)
	}
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.ChartOfAccount{}, false, nil
	}
	if err != nil {
		return accounting.ChartOfAccount{}, false, err
	}
	return a, true, nil
}

func (s *pgTxStore) FindAccountByLowerName(ctx context.Context, name string) (accounting.ChartOfAccount, bool, error) {
	a, err := scanAccount(s.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE LOWER(account_name)=LOWER($1) LIMIT 1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.ChartOfAccount{}, false, nil
	}
	if err != nil {
		return accounting.ChartOfAccount{}, false, err
	}
	return a, true, nil
}

func (s *pgTxStore) InsertAccount(ctx context.Context, account *accounting.ChartOfAccount) error {
	return s.tx.QueryRow(ctx, `INSERT INTO chart_of_accounts (account_number, account_name, account_type, detail_type, parent_id, is_active, is_sub_account, description, opening_balance, current_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		account.AccountNumber, account.AccountName, account.AccountType, account.DetailType, account.ParentID, account.IsActive, account.IsSubAccount, account.Description, account.OpeningBalance, account.CurrentBalance).
		Scan(&account.ID, &account.CreatedAt, &account.UpdatedAt)
}

func (s *pgTxStore) UpdateAccount(ctx context.Context, account accounting.ChartOfAccount) error {
	_, err := s.tx.Exec(ctx, `UPDATE chart_of_accounts SET account_number=$2, account_name=$3, account_type=$4, detail_type=$5, parent_id=$6, is_active=$7, is_sub_account=$8, description=$9, opening_balance=$10, current_balance=$11, updated_at=NOW() WHERE id=$1`,
		account.ID, account.AccountNumber, account.AccountName, account.AccountType, account.DetailType, account.ParentID, account.IsActive, account.IsSubAccount, account.Description, account.OpeningBalance, account.CurrentBalance)
	return err
}

func (s *pgTxStore) UpdateAccountBalance(ctx context.Context, accountID int64, balance float64) error {
	_, err := s.tx.Exec(ctx, `UPDATE chart_of_accounts SET current_balance=$2, updated_at=NOW() WHERE id=$1`, accountID, balance)
	return err
}

func (s *pgTxStore) ListAccountNumbers(ctx context.Context) ([]string, error) {
	rows, err := s.tx.Query(ctx, `SELECT account_number FROM chart_of_accounts WHERE account_number <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var numbers []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		numbers = append(numbers, n)
	}
	return numbers, rows.Err()
}

func (s *pgTxStore) FindBankAccountByChartID(ctx context.Context, chartAccountID int64) (accounting.BankAccount, bool, error) {
	var b accounting.BankAccount
	err := s.tx.QueryRow(ctx, `SELECT id, chart_account_id, account_name, account_number, notes, is_active, opening_balance, current_balance, created_at, updated_at
FROM bank_accounts WHERE chart_account_id=$1 LIMIT 1`, chartAccountID).
		Scan(&b.ID, &b.ChartAccountID, &b.AccountName, &b.AccountNumber, &b.Notes, &b.IsActive, &b.OpeningBalance, &b.CurrentBalance, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return accounting.BankAccount{}, false, nil
	}
	if err != nil {
		return accounting.BankAccount{}, false, err
	}
	return b, true, nil
}

func (s *pgTxStore) InsertBankAccount(ctx context.Context, bank *accounting.BankAccount) error {
	return s.tx.QueryRow(ctx, `INSERT INTO bank_accounts (chart_account_id, account_name, account_number, notes, is_active, opening_balance, current_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		bank.ChartAccountID, bank.AccountName, bank.AccountNumber, bank.Notes, bank.IsActive, bank.OpeningBalance, bank.CurrentBalance).
		Scan(&bank.ID, &bank.CreatedAt, &bank.UpdatedAt)
}

func (s *pgTxStore) UpdateBankAccount(ctx context.Context, bank accounting.BankAccount) error {
	_, err := s.tx.Exec(ctx, `UPDATE bank_accounts SET account_name=$2, account_number=$3, notes=$4, is_active=$5, opening_balance=$6, current_balance=$7, updated_at=NOW() WHERE id=$1`,
		bank.ID, bank.AccountName, bank.AccountNumber, bank.Notes, bank.IsActive, bank.OpeningBalance, bank.CurrentBalance)
	return err
}

const vendorColumns = `id, vendor_name, company_name, contact_person, email, phone, address, city, state, zip, country, payment_terms, tax_id, notes, is_active, created_at, updated_at`

func scanVendor(row pgx.Row) (ap.Vendor, error) {
	var v ap.Vendor
	err := row.Scan(&v.ID, &v.VendorName, &v.CompanyName, &v.ContactPerson, &v.Email, &v.Phone, &v.Address, &v.City, &v.State, &v.Zip, &v.Country, &v.PaymentTerms, &v.TaxID, &v.Notes, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

func (s *pgTxStore) FindVendorByLowerName(ctx context.Context, name string) (ap.Vendor, bool, error) {
	v, err := scanVendor(s.tx.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE LOWER(vendor_name)=LOWER($1) LIMIT 1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return ap.Vendor{}, false, nil
	}
	if err != nil {
		return ap.Vendor{}, false, err
	}
	return v, true, nil
}

func (s *pgTxStore) FindVendorByLowerEmail(ctx context.Context, email string) (ap.Vendor, bool, error) {
	v, err := scanVendor(s.tx.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE LOWER(email)=LOWER($1) LIMIT 1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return ap.Vendor{}, false, nil
	}
	if err != nil {
		return ap.Vendor{}, false, err
	}
	return v, true, nil
}

func (s *pgTxStore) VendorEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM vendors WHERE email=$1)`, email).Scan(&exists)
	return exists, err
}

func (s *pgTxStore) InsertVendor(ctx context.Context, vendor *ap.Vendor) error {
	return s.tx.QueryRow(ctx, `INSERT INTO vendors (vendor_name, company_name, contact_person, email, phone, address, city, state, zip, country, payment_terms, tax_id, notes, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id, created_at, updated_at`,
		vendor.VendorName, vendor.CompanyName, vendor.ContactPerson, vendor.Email, vendor.Phone, vendor.Address, vendor.City, vendor.State, vendor.Zip, vendor.Country, vendor.PaymentTerms, vendor.TaxID, vendor.Notes, vendor.IsActive).
		Scan(&vendor.ID, &vendor.CreatedAt, &vendor.UpdatedAt)
}

func (s *pgTxStore) UpdateVendor(ctx context.Context, vendor ap.Vendor) error {
	_, err := s.tx.Exec(ctx, `UPDATE vendors SET vendor_name=$2, company_name=$3, contact_person=$4, email=$5, phone=$6, address=$7, city=$8, state=$9, zip=$10, country=$11, payment_terms=$12, tax_id=$13, notes=$14, is_active=$15, updated_at=NOW() WHERE id=$1`,
		vendor.ID, vendor.VendorName, vendor.CompanyName, vendor.ContactPerson, vendor.Email, vendor.Phone, vendor.Address, vendor.City, vendor.State, vendor.Zip, vendor.Country, vendor.PaymentTerms, vendor.TaxID, vendor.Notes, vendor.IsActive)
	return err
}

const customerColumns = `id, name, email, phone, address, city, state, zip, country, billing_address, billing_city, billing_state, billing_zip, billing_country, notes, created_at, updated_at`

func scanCustomer(row pgx.Row) (ar.Customer, error) {
	var c ar.Customer
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.City, &c.State, &c.Zip, &c.Country, &c.BillingAddress, &c.BillingCity, &c.BillingState, &c.BillingZip, &c.BillingCountry, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (s *pgTxStore) FindCustomerByLowerName(ctx context.Context, name string) (ar.Customer, bool, error) {
	c, err := scanCustomer(s.tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE LOWER(name)=LOWER($1) LIMIT 1`, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.Customer{}, false, nil
	}
	if err != nil {
		return ar.Customer{}, false, err
	}
	return c, true, nil
}

func (s *pgTxStore) FindCustomerByLowerEmail(ctx context.Context, email string) (ar.Customer, bool, error) {
	c, err := scanCustomer(s.tx.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE LOWER(email)=LOWER($1) LIMIT 1`, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.Customer{}, false, nil
	}
	if err != nil {
		return ar.Customer{}, false, err
	}
	return c, true, nil
}

func (s *pgTxStore) CustomerEmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM customers WHERE email=$1)`, email).Scan(&exists)
	return exists, err
}

func (s *pgTxStore) InsertCustomer(ctx context.Context, customer *ar.Customer) error {
	return s.tx.QueryRow(ctx, `INSERT INTO customers (name, email, phone, address, city, state, zip, country, billing_address, billing_city, billing_state, billing_zip, billing_country, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id, created_at, updated_at`,
		customer.Name, customer.Email, customer.Phone, customer.Address, customer.City, customer.State, customer.Zip, customer.Country, customer.BillingAddress, customer.BillingCity, customer.BillingState, customer.BillingZip, customer.BillingCountry, customer.Notes).
		Scan(&customer.ID, &customer.CreatedAt, &customer.UpdatedAt)
}

func (s *pgTxStore) UpdateCustomer(ctx context.Context, customer ar.Customer) error {
	_, err := s.tx.Exec(ctx, `UPDATE customers SET name=$2, email=$3, phone=$4, address=$5, city=$6, state=$7, zip=$8, country=$9, billing_address=$10, billing_city=$11, billing_state=$12, billing_zip=$13, billing_country=$14, notes=$15, updated_at=NOW() WHERE id=$1`,
		customer.ID, customer.Name, customer.Email, customer.Phone, customer.Address, customer.City, customer.State, customer.Zip, customer.Country, customer.BillingAddress, customer.BillingCity, customer.BillingState, customer.BillingZip, customer.BillingCountry, customer.Notes)
	return err
}

const billColumns = `id, vendor_id, bill_number, ref_number, bill_date, due_date, subtotal, tax, tax_name, total, amount_paid, balance, status, terms, memo, created_at, updated_at`

func scanBill(row pgx.Row) (ap.Bill, error) {
	var b ap.Bill
	err := row.Scan(&b.ID, &b.VendorID, &b.BillNumber, &b.RefNumber, &b.BillDate, &b.DueDate, &b.Subtotal, &b.Tax, &b.TaxName, &b.Total, &b.AmountPaid, &b.Balance, &b.Status, &b.Terms, &b.Memo, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (s *pgTxStore) FindBillByNumber(ctx context.Context, number string) (ap.Bill, bool, error) {
	b, err := scanBill(s.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE bill_number=$1 LIMIT 1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return ap.Bill{}, false, nil
	}
	if err != nil {
		return ap.Bill{}, false, err
	}
	return b, true, nil
}

func (s *pgTxStore) GetBill(ctx context.Context, id int64) (ap.Bill, error) {
	b, err := scanBill(s.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM bills WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ap.Bill{}, ap.ErrBillNotFound
	}
	return b, err
}

func (s *pgTxStore) InsertBill(ctx context.Context, bill *ap.Bill) error {
	return s.tx.QueryRow(ctx, `INSERT INTO bills (vendor_id, bill_number, ref_number, bill_date, due_date, subtotal, tax, tax_name, total, amount_paid, balance, status, terms, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14) RETURNING id, created_at, updated_at`,
		bill.VendorID, bill.BillNumber, bill.RefNumber, bill.BillDate, bill.DueDate, bill.Subtotal, bill.Tax, bill.TaxName, bill.Total, bill.AmountPaid, bill.Balance, bill.Status, bill.Terms, bill.Memo).
		Scan(&bill.ID, &bill.CreatedAt, &bill.UpdatedAt)
}

func (s *pgTxStore) UpdateBill(ctx context.Context, bill ap.Bill) error {
	_, err := s.tx.Exec(ctx, `UPDATE bills SET vendor_id=$2, ref_number=$3, bill_date=$4, due_date=$5, subtotal=$6, tax=$7, tax_name=$8, total=$9, amount_paid=$10, balance=$11, status=$12, terms=$13, memo=$14, updated_at=NOW() WHERE id=$1`,
		bill.ID, bill.VendorID, bill.RefNumber, bill.BillDate, bill.DueDate, bill.Subtotal, bill.Tax, bill.TaxName, bill.Total, bill.AmountPaid, bill.Balance, bill.Status, bill.Terms, bill.Memo)
	return err
}

func (s *pgTxStore) ListOpenBills(ctx context.Context, vendorID int64) ([]ap.Bill, error) {
	rows, err := s.tx.Query(ctx, `SELECT `+billColumns+` FROM bills WHERE vendor_id=$1 AND balance > 0.01 ORDER BY bill_date NULLS LAST, id`, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var bills []ap.Bill
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *pgTxStore) UpsertBillItem(ctx context.Context, item ap.BillItem) error {
	var id int64
	err := s.tx.QueryRow(ctx, `SELECT id FROM bill_items WHERE bill_id=$1 AND description=$2 LIMIT 1`, item.BillID, item.Description).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.tx.Exec(ctx, `INSERT INTO bill_items (bill_id, account_id, description, quantity, rate, amount) VALUES ($1,$2,$3,$4,$5,$6)`,
			item.BillID, item.AccountID, item.Description, item.Quantity, item.Rate, item.Amount)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx, `UPDATE bill_items SET account_id=$2, quantity=$3, rate=$4, amount=$5 WHERE id=$1`,
		id, item.AccountID, item.Quantity, item.Rate, item.Amount)
	return err
}

func (s *pgTxStore) InsertBillPayment(ctx context.Context, payment *ap.BillPayment) error {
	return s.tx.QueryRow(ctx, `INSERT INTO bill_payments (bill_id, bank_account_id, payment_date, amount, payment_method, check_number, reference, memo)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		payment.BillID, payment.BankAccountID, payment.PaymentDate, payment.Amount, payment.PaymentMethod, payment.CheckNumber, payment.Reference, payment.Memo).
		Scan(&payment.ID, &payment.CreatedAt)
}

func (s *pgTxStore) SumBillPayments(ctx context.Context, billID int64) (float64, error) {
	var sum float64
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM bill_payments WHERE bill_id=$1`, billID).Scan(&sum)
	return sum, err
}

const invoiceColumns = `id, customer_id, invoice_number, issue_date, due_date, subtotal, tax_rate, tax_amount, tax_name, total, paid_amount, balance, status, notes, created_at, updated_at`

func scanInvoice(row pgx.Row) (ar.Invoice, error) {
	var inv ar.Invoice
	err := row.Scan(&inv.ID, &inv.CustomerID, &inv.InvoiceNumber, &inv.IssueDate, &inv.DueDate, &inv.Subtotal, &inv.TaxRate, &inv.TaxAmount, &inv.TaxName, &inv.Total, &inv.PaidAmount, &inv.Balance, &inv.Status, &inv.Notes, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (s *pgTxStore) FindInvoiceByNumber(ctx context.Context, number string) (ar.Invoice, bool, error) {
	inv, err := scanInvoice(s.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE invoice_number=$1 LIMIT 1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.Invoice{}, false, nil
	}
	if err != nil {
		return ar.Invoice{}, false, err
	}
	return inv, true, nil
}

func (s *pgTxStore) GetInvoice(ctx context.Context, id int64) (ar.Invoice, error) {
	inv, err := scanInvoice(s.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.Invoice{}, ar.ErrInvoiceNotFound
	}
	return inv, err
}

func (s *pgTxStore) InsertInvoice(ctx context.Context, invoice *ar.Invoice) error {
	return s.tx.QueryRow(ctx, `INSERT INTO invoices (customer_id, invoice_number, issue_date, due_date, subtotal, tax_rate, tax_amount, tax_name, total, paid_amount, balance, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13) RETURNING id, created_at, updated_at`,
		invoice.CustomerID, invoice.InvoiceNumber, invoice.IssueDate, invoice.DueDate, invoice.Subtotal, invoice.TaxRate, invoice.TaxAmount, invoice.TaxName, invoice.Total, invoice.PaidAmount, invoice.Balance, invoice.Status, invoice.Notes).
		Scan(&invoice.ID, &invoice.CreatedAt, &invoice.UpdatedAt)
}

func (s *pgTxStore) UpdateInvoice(ctx context.Context, invoice ar.Invoice) error {
	_, err := s.tx.Exec(ctx, `UPDATE invoices SET customer_id=$2, issue_date=$3, due_date=$4, subtotal=$5, tax_rate=$6, tax_amount=$7, tax_name=$8, total=$9, paid_amount=$10, balance=$11, status=$12, notes=$13, updated_at=NOW() WHERE id=$1`,
		invoice.ID, invoice.CustomerID, invoice.IssueDate, invoice.DueDate, invoice.Subtotal, invoice.TaxRate, invoice.TaxAmount, invoice.TaxName, invoice.Total, invoice.PaidAmount, invoice.Balance, invoice.Status, invoice.Notes)
	return err
}

func (s *pgTxStore) ListInvoiceIDsByCustomer(ctx context.Context, customerID int64) ([]int64, error) {
	rows, err := s.tx.Query(ctx, `SELECT id FROM invoices WHERE customer_id=$1 ORDER BY issue_date NULLS LAST, created_at, id`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *pgTxStore) UpsertInvoiceItem(ctx context.Context, item ar.InvoiceItem) error {
	var id int64
	err := s.tx.QueryRow(ctx, `SELECT id FROM invoice_items WHERE invoice_id=$1 AND description=$2 LIMIT 1`, item.InvoiceID, item.Description).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.tx.Exec(ctx, `INSERT INTO invoice_items (invoice_id, item_type, description, quantity, unit_price, discount, total, sort_order) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.InvoiceID, item.ItemType, item.Description, item.Quantity, item.UnitPrice, item.Discount, item.Total, item.SortOrder)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx, `UPDATE invoice_items SET item_type=$2, quantity=$3, unit_price=$4, discount=$5, total=$6, sort_order=$7 WHERE id=$1`,
		id, item.ItemType, item.Quantity, item.UnitPrice, item.Discount, item.Total, item.SortOrder)
	return err
}

func (s *pgTxStore) PaymentExistsByProviderRef(ctx context.Context, invoiceID int64, providerID string) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE invoice_id=$1 AND provider_transaction_id=$2)`, invoiceID, providerID).Scan(&exists)
	return exists, err
}

func (s *pgTxStore) PaymentExistsSameDayAmount(ctx context.Context, invoiceID int64, day time.Time, amount float64) (bool, error) {
	var exists bool
	err := s.tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM payments WHERE invoice_id=$1 AND processed_at::date=$2::date AND amount=$3)`, invoiceID, day, amount).Scan(&exists)
	return exists, err
}

func (s *pgTxStore) InsertARPayment(ctx context.Context, payment *ar.Payment) error {
	return s.tx.QueryRow(ctx, `INSERT INTO payments (invoice_id, payment_provider, provider_transaction_id, amount, status, payment_method_type, notes, processed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		payment.InvoiceID, payment.PaymentProvider, payment.ProviderTransactionID, payment.Amount, payment.Status, payment.PaymentMethodType, payment.Notes, payment.ProcessedAt).
		Scan(&payment.ID, &payment.CreatedAt)
}

func (s *pgTxStore) SumCompletedPayments(ctx context.Context, invoiceID int64) (float64, error) {
	var sum float64
	err := s.tx.QueryRow(ctx, `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE invoice_id=$1 AND status='completed'`, invoiceID).Scan(&sum)
	return sum, err
}

const quoteColumns = `id, customer_id, quote_number, expiration_date, subtotal, tax_rate, tax_amount, tax_name, total, status, notes, created_at, updated_at`

func scanQuote(row pgx.Row) (ar.Quote, error) {
	var q ar.Quote
	err := row.Scan(&q.ID, &q.CustomerID, &q.QuoteNumber, &q.ExpirationDate, &q.Subtotal, &q.TaxRate, &q.TaxAmount, &q.TaxName, &q.Total, &q.Status, &q.Notes, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

func (s *pgTxStore) FindQuoteByNumber(ctx context.Context, number string) (ar.Quote, bool, error) {
	q, err := scanQuote(s.tx.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE quote_number=$1 LIMIT 1`, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.Quote{}, false, nil
	}
	if err != nil {
		return ar.Quote{}, false, err
	}
	return q, true, nil
}

func (s *pgTxStore) InsertQuote(ctx context.Context, quote *ar.Quote) error {
	return s.tx.QueryRow(ctx, `INSERT INTO quotes (customer_id, quote_number, expiration_date, subtotal, tax_rate, tax_amount, tax_name, total, status, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id, created_at, updated_at`,
		quote.CustomerID, quote.QuoteNumber, quote.ExpirationDate, quote.Subtotal, quote.TaxRate, quote.TaxAmount, quote.TaxName, quote.Total, quote.Status, quote.Notes).
		Scan(&quote.ID, &quote.CreatedAt, &quote.UpdatedAt)
}

func (s *pgTxStore) UpdateQuote(ctx context.Context, quote ar.Quote) error {
	_, err := s.tx.Exec(ctx, `UPDATE quotes SET customer_id=$2, expiration_date=$3, subtotal=$4, tax_rate=$5, tax_amount=$6, tax_name=$7, total=$8, status=$9, notes=$10, updated_at=NOW() WHERE id=$1`,
		quote.ID, quote.CustomerID, quote.ExpirationDate, quote.Subtotal, quote.TaxRate, quote.TaxAmount, quote.TaxName, quote.Total, quote.Status, quote.Notes)
	return err
}

func (s *pgTxStore) UpsertQuoteItem(ctx context.Context, item ar.QuoteItem) error {
	var id int64
	err := s.tx.QueryRow(ctx, `SELECT id FROM quote_items WHERE quote_id=$1 AND description=$2 LIMIT 1`, item.QuoteID, item.Description).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		_, err = s.tx.Exec(ctx, `INSERT INTO quote_items (quote_id, item_type, description, quantity, unit_price, discount, total, sort_order) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.QuoteID, item.ItemType, item.Description, item.Quantity, item.UnitPrice, item.Discount, item.Total, item.SortOrder)
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.tx.Exec(ctx, `UPDATE quote_items SET item_type=$2, quantity=$3, unit_price=$4, discount=$5, total=$6, sort_order=$7 WHERE id=$1`,
		id, item.ItemType, item.Quantity, item.UnitPrice, item.Discount, item.Total, item.SortOrder)
	return err
}

func (s *pgTxStore) FindPartBySKU(ctx context.Context, sku string) (ar.Part, bool, error) {
	var p ar.Part
	err := s.tx.QueryRow(ctx, `SELECT id, sku, name, description, cost, price, stock_quantity, min_stock_level, vendor_part_numbers, active, created_at, updated_at
FROM parts WHERE sku=$1 LIMIT 1`, sku).
		Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Cost, &p.Price, &p.StockQuantity, &p.MinStockLevel, &p.VendorPartNumbers, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.Part{}, false, nil
	}
	if err != nil {
		return ar.Part{}, false, err
	}
	return p, true, nil
}

func (s *pgTxStore) InsertPart(ctx context.Context, part *ar.Part) error {
	return s.tx.QueryRow(ctx, `INSERT INTO parts (sku, name, description, cost, price, stock_quantity, min_stock_level, vendor_part_numbers, active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at, updated_at`,
		part.SKU, part.Name, part.Description, part.Cost, part.Price, part.StockQuantity, part.MinStockLevel, part.VendorPartNumbers, part.Active).
		Scan(&part.ID, &part.CreatedAt, &part.UpdatedAt)
}

func (s *pgTxStore) UpdatePart(ctx context.Context, part ar.Part) error {
	_, err := s.tx.Exec(ctx, `UPDATE parts SET name=$2, description=$3, cost=$4, price=$5, stock_quantity=$6, min_stock_level=$7, vendor_part_numbers=$8, active=$9, updated_at=NOW() WHERE id=$1`,
		part.ID, part.Name, part.Description, part.Cost, part.Price, part.StockQuantity, part.MinStockLevel, part.VendorPartNumbers, part.Active)
	return err
}

func (s *pgTxStore) FindServiceByName(ctx context.Context, name string) (ar.ServiceItem, bool, error) {
	var svc ar.ServiceItem
	err := s.tx.QueryRow(ctx, `SELECT id, name, description, hourly_rate, active, created_at, updated_at FROM services WHERE name=$1 LIMIT 1`, name).
		Scan(&svc.ID, &svc.Name, &svc.Description, &svc.HourlyRate, &svc.Active, &svc.CreatedAt, &svc.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ar.ServiceItem{}, false, nil
	}
	if err != nil {
		return ar.ServiceItem{}, false, err
	}
	return svc, true, nil
}

func (s *pgTxStore) InsertService(ctx context.Context, svc *ar.ServiceItem) error {
	return s.tx.QueryRow(ctx, `INSERT INTO services (name, description, hourly_rate, active) VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		svc.Name, svc.Description, svc.HourlyRate, svc.Active).
		Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
}

func (s *pgTxStore) UpdateService(ctx context.Context, svc ar.ServiceItem) error {
	_, err := s.tx.Exec(ctx, `UPDATE services SET description=$2, hourly_rate=$3, active=$4, updated_at=NOW() WHERE id=$1`,
		svc.ID, svc.Description, svc.HourlyRate, svc.Active)
	return err
}

func (s *pgTxStore) DeleteLedgerBySource(ctx context.Context, source string) error {
	_, err := s.tx.Exec(ctx, `DELETE FROM general_ledger_entries WHERE source=$1`, source)
	return err
}

func (s *pgTxStore) InsertLedgerBatch(ctx context.Context, entries []accounting.GeneralLedgerEntry) error {
	if len(entries) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`INSERT INTO general_ledger_entries (account_id, account_name, transaction_type, transaction_date, transaction_number, name, memo, split, debit, credit, running_balance, source, external_reference)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
			e.AccountID, e.AccountName, e.TransactionType, e.TransactionDate, e.TransactionNumber, e.Name, e.Memo, e.Split, e.Debit, e.Credit, e.RunningBalance, e.Source, e.ExternalReference)
	}
	results := s.tx.SendBatch(ctx, batch)
	defer results.Close()
	for range entries {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

func (s *pgTxStore) SetReplicationRole(ctx context.Context, role string) error {
	if role != "replica" && role != "origin" {
		return fmt.Errorf("invalid replication role %q", role)
	}
	// SET LOCAL reverts with the transaction, so a failed restore never
	// leaves a pooled connection with triggers disabled.
	_, err := s.tx.Exec(ctx, "SET LOCAL session_replication_role = "+role)
	return err
}

// RestoreRows writes raw backup rows into table. Rows carrying an id are
// upserted on it, the rest are plain inserts. Column names are validated
// as identifiers since they come from user supplied JSON.
func (s *pgTxStore) RestoreRows(ctx context.Context, table string, rows []map[string]any) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		sql, args, err := buildRestoreStatement(table, row)
		if err != nil {
			return 0, err
		}
		if sql == "" {
			continue
		}
		batch.Queue(sql, args...)
	}
	if batch.Len() == 0 {
		return 0, nil
	}
	results := s.tx.SendBatch(ctx, batch)
	defer results.Close()
	imported := 0
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return imported, err
		}
		imported++
	}
	return imported, nil
}

func buildRestoreStatement(table string, row map[string]any) (string, []any, error) {
	columns := make([]string, 0, len(row))
	for col := range row {
		if !identPattern.MatchString(col) {
			return "", nil, fmt.Errorf("invalid column name %q in %s backup row", col, table)
		}
		columns = append(columns, col)
	}
	if len(columns) == 0 {
		return "", nil, nil
	}
	sort.Strings(columns)

	args := make([]any, 0, len(columns))
	placeholders := make([]string, 0, len(columns))
	hasID := false
	for i, col := range columns {
		if col == "id" {
			hasID = true
		}
		args = append(args, restoreValue(row[col]))
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), strings.Join(placeholders, ","))
	if hasID {
		b.WriteString(" ON CONFLICT (id) DO UPDATE SET ")
		first := true
		for _, col := range columns {
			if col == "id" {
				continue
			}
			if !first {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s = EXCLUDED.%s", col, col)
			first = false
		}
		if first {
			return "INSERT INTO " + table + " (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", args, nil
		}
	}
	return b.String(), args, nil
}

// restoreValue flattens nested JSON structures back to text so they can
// land in json or text columns without a type map per table.
func restoreValue(v any) any {
	switch v.(type) {
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		return string(encoded)
	default:
		return v
	}
}
