package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/accounting"
)

// LedgerTotal is the summed activity of one account.
type LedgerTotal struct {
	Debit  float64
	Credit float64
}

// OpenReceivable is an unpaid invoice joined with its customer.
type OpenReceivable struct {
	InvoiceNumber string
	CustomerName  *string
	IssueDate     *time.Time
	DueDate       *time.Time
	CreatedAt     time.Time
	Balance       float64
}

// OpenPayable is an unpaid bill joined with its vendor.
type OpenPayable struct {
	BillNumber string
	VendorName *string
	BillDate   *time.Time
	DueDate    *time.Time
	CreatedAt  time.Time
	Balance    float64
}

// Repository defines the read queries the report builders run.
type Repository interface {
	ListActiveAccounts(ctx context.Context) ([]accounting.ChartOfAccount, error)
	LedgerTotals(ctx context.Context, asOf time.Time) (map[int64]LedgerTotal, error)
	ListOpenReceivables(ctx context.Context) ([]OpenReceivable, error)
	ListOpenPayables(ctx context.Context) ([]OpenPayable, error)
	ActiveBankBalance(ctx context.Context) (float64, error)
}

var _ Repository = (*pgRepository)(nil)

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the postgres-backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) ListActiveAccounts(ctx context.Context) ([]accounting.ChartOfAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, account_number, account_name, account_type, detail_type, parent_id, is_active, is_sub_account, description, opening_balance, current_balance, created_at, updated_at
		FROM chart_of_accounts
		WHERE is_active
		ORDER BY account_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []accounting.ChartOfAccount
	for rows.Next() {
		var a accounting.ChartOfAccount
		if err := rows.Scan(&a.ID, &a.AccountNumber, &a.AccountName, &a.AccountType, &a.DetailType, &a.ParentID, &a.IsActive, &a.IsSubAccount, &a.Description, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *pgRepository) LedgerTotals(ctx context.Context, asOf time.Time) (map[int64]LedgerTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT account_id, COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0)
		FROM general_ledger_entries
		WHERE account_id IS NOT NULL AND transaction_date <= $1
		GROUP BY account_id`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	totals := make(map[int64]LedgerTotal)
	for rows.Next() {
		var accountID int64
		var t LedgerTotal
		if err := rows.Scan(&accountID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals[accountID] = t
	}
	return totals, rows.Err()
}

func (r *pgRepository) ListOpenReceivables(ctx context.Context) ([]OpenReceivable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.invoice_number, c.name, i.issue_date, i.due_date, i.created_at, i.balance
		FROM invoices i
		LEFT JOIN customers c ON c.id = i.customer_id
		WHERE i.status IN ('sent', 'partial', 'overdue') AND i.balance > 0
		ORDER BY i.due_date NULLS LAST, i.invoice_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var open []OpenReceivable
	for rows.Next() {
		var rec OpenReceivable
		if err := rows.Scan(&rec.InvoiceNumber, &rec.CustomerName, &rec.IssueDate, &rec.DueDate, &rec.CreatedAt, &rec.Balance); err != nil {
			return nil, err
		}
		open = append(open, rec)
	}
	return open, rows.Err()
}

func (r *pgRepository) ListOpenPayables(ctx context.Context) ([]OpenPayable, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.bill_number, v.vendor_name, b.bill_date, b.due_date, b.created_at, b.balance
		FROM bills b
		LEFT JOIN vendors v ON v.id = b.vendor_id
		WHERE b.status IN ('unpaid', 'partial', 'overdue') AND b.balance > 0
		ORDER BY b.due_date NULLS LAST, b.bill_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var open []OpenPayable
	for rows.Next() {
		var rec OpenPayable
		if err := rows.Scan(&rec.BillNumber, &rec.VendorName, &rec.BillDate, &rec.DueDate, &rec.CreatedAt, &rec.Balance); err != nil {
			return nil, err
		}
		open = append(open, rec)
	}
	return open, rows.Err()
}

func (r *pgRepository) ActiveBankBalance(ctx context.Context) (float64, error) {
	var balance float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(current_balance), 0) FROM bank_accounts WHERE is_active`).Scan(&balance)
	return balance, err
}
