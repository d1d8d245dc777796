package accounting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harborline/harborline/internal/platform/db"
)

var (
	// ErrAccountNotFound indicates the chart account does not exist.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrJournalNotFound indicates the journal entry does not exist.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
)

// Repository defines accounting data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	ListAccounts(ctx context.Context) ([]ChartOfAccount, error)
	GetAccount(ctx context.Context, id int64) (ChartOfAccount, error)
	GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	ListLedgerEntries(ctx context.Context, accountID int64, limit int) ([]GeneralLedgerEntry, error)
}

// TxRepository defines operations within a transaction.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, entry *JournalEntry) error
	GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error)
	UpdateJournalStatus(ctx context.Context, entryID int64, status string) error
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

const accountColumns = `id, account_number, account_name, account_type, detail_type, parent_id, is_active, is_sub_account, description, opening_balance, current_balance, created_at, updated_at`

func scanAccount(row pgx.Row) (ChartOfAccount, error) {
	var a ChartOfAccount
	err := row.Scan(&a.ID, &a.AccountNumber, &a.AccountName, &a.AccountType, &a.DetailType, &a.ParentID, &a.IsActive, &a.IsSubAccount, &a.Description, &a.OpeningBalance, &a.CurrentBalance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (r *pgRepository) ListAccounts(ctx context.Context) ([]ChartOfAccount, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts ORDER BY account_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []ChartOfAccount
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *pgRepository) GetAccount(ctx context.Context, id int64) (ChartOfAccount, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM chart_of_accounts WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ChartOfAccount{}, ErrAccountNotFound
		}
		return ChartOfAccount{}, err
	}
	return a, nil
}

func (r *pgRepository) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	return getJournalWithLines(ctx, r.pool, entryID)
}

func (r *pgRepository) ListLedgerEntries(ctx context.Context, accountID int64, limit int) ([]GeneralLedgerEntry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `SELECT id, account_id, account_name, transaction_type, transaction_date, transaction_number, name, memo, split, debit, credit, running_balance, source, external_reference, created_at
FROM general_ledger_entries WHERE account_id=$1 ORDER BY transaction_date NULLS LAST, id LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []GeneralLedgerEntry
	for rows.Next() {
		var g GeneralLedgerEntry
		if err := rows.Scan(&g.ID, &g.AccountID, &g.AccountName, &g.TransactionType, &g.TransactionDate, &g.TransactionNumber, &g.Name, &g.Memo, &g.Split, &g.Debit, &g.Credit, &g.RunningBalance, &g.Source, &g.ExternalReference, &g.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, g)
	}
	return entries, rows.Err()
}

// querier covers the pool and transaction query surface shared by reads.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func getJournalWithLines(ctx context.Context, q querier, entryID int64) (JournalEntry, error) {
	var e JournalEntry
	err := q.QueryRow(ctx, `SELECT id, entry_date, memo, reference, status, created_at, updated_at
FROM journal_entries WHERE id=$1`, entryID).
		Scan(&e.ID, &e.EntryDate, &e.Memo, &e.Reference, &e.Status, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, memo
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.EntryID, &l.AccountID, &l.Debit, &l.Credit, &l.Memo); err != nil {
			return JournalEntry{}, err
		}
		e.Lines = append(e.Lines, l)
	}
	return e, rows.Err()
}

func (r *pgTxRepository) InsertJournalEntry(ctx context.Context, entry *JournalEntry) error {
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (entry_date, memo, reference, status)
VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		entry.EntryDate, entry.Memo, entry.Reference, entry.Status).
		Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range entry.Lines {
		line := &entry.Lines[i]
		line.EntryID = entry.ID
		err := r.tx.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			line.EntryID, line.AccountID, line.Debit, line.Credit, line.Memo).
			Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *pgTxRepository) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	return getJournalWithLines(ctx, r.tx, entryID)
}

func (r *pgTxRepository) UpdateJournalStatus(ctx context.Context, entryID int64, status string) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE journal_entries SET status=$2, updated_at=NOW() WHERE id=$1`, entryID, status)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrJournalNotFound
	}
	return nil
}
