package reports

import (
	"context"
	"math"
	"time"

	"github.com/harborline/harborline/internal/accounting"
)

// Service builds accounting reports from ledger and document data, caching
// each report per as-of date.
type Service struct {
	repo  Repository
	cache *Cache
	now   func() time.Time
}

// NewService wires a Repository with a Cache helper.
func NewService(repo Repository, cache *Cache) *Service {
	return &Service{repo: repo, cache: cache, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Invalidate drops every cached report. Called after an import changes the
// underlying books.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

// GetTrialBalance lists every active account whose balance as of the date is
// non-zero, placed on its normal side.
func (s *Service) GetTrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	asOf = s.normalize(asOf)
	var report TrialBalance
	err := s.cache.GetOrBuild(ctx, keyTrialBalance(asOf), &report, func(ctx context.Context) (any, error) {
		return s.buildTrialBalance(ctx, asOf)
	})
	if err != nil {
		return TrialBalance{}, err
	}
	return report, nil
}

// GetARAging buckets open invoices by how far past due they are.
func (s *Service) GetARAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	return s.fetchAging(ctx, asOf, true)
}

// GetAPAging buckets open bills by how far past due they are.
func (s *Service) GetAPAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	return s.fetchAging(ctx, asOf, false)
}

// GetBankBalance sums the current balance of active bank accounts.
func (s *Service) GetBankBalance(ctx context.Context) (float64, error) {
	var balance float64
	err := s.cache.GetOrBuild(ctx, keyBankBalance(), &balance, func(ctx context.Context) (any, error) {
		return s.repo.ActiveBankBalance(ctx)
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Service) normalize(asOf time.Time) time.Time {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return asOf.UTC().Truncate(24 * time.Hour)
}

func (s *Service) buildTrialBalance(ctx context.Context, asOf time.Time) (TrialBalance, error) {
	accounts, err := s.repo.ListActiveAccounts(ctx)
	if err != nil {
		return TrialBalance{}, err
	}
	totals, err := s.repo.LedgerTotals(ctx, asOf)
	if err != nil {
		return TrialBalance{}, err
	}

	report := TrialBalance{AsOf: asOf, Accounts: []TrialBalanceLine{}}
	for _, account := range accounts {
		balance := accountBalance(account, totals[account.ID])
		if math.Abs(balance) < 0.01 {
			continue
		}
		line := TrialBalanceLine{
			AccountNumber: account.AccountNumber,
			AccountName:   account.AccountName,
			AccountType:   account.AccountType,
		}
		if debitNormal(account.AccountType) == (balance >= 0) {
			line.Debit = math.Abs(balance)
		} else {
			line.Credit = math.Abs(balance)
		}
		report.Accounts = append(report.Accounts, line)
		report.TotalDebits += line.Debit
		report.TotalCredits += line.Credit
	}
	report.Difference = report.TotalDebits - report.TotalCredits
	return report, nil
}

func (s *Service) fetchAging(ctx context.Context, asOf time.Time, receivable bool) (AgingReport, error) {
	asOf = s.normalize(asOf)
	prefix := "aging_ap"
	if receivable {
		prefix = "aging_ar"
	}
	var report AgingReport
	err := s.cache.GetOrBuild(ctx, keyAging(prefix, asOf), &report, func(ctx context.Context) (any, error) {
		if receivable {
			return s.buildARAging(ctx, asOf)
		}
		return s.buildAPAging(ctx, asOf)
	})
	if err != nil {
		return AgingReport{}, err
	}
	return report, nil
}

func (s *Service) buildARAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	open, err := s.repo.ListOpenReceivables(ctx)
	if err != nil {
		return AgingReport{}, err
	}
	report := AgingReport{AsOf: asOf, Lines: []AgingLine{}}
	for _, rec := range open {
		line := agingLine(rec.InvoiceNumber, rec.CustomerName, rec.IssueDate, rec.DueDate, rec.CreatedAt, rec.Balance, asOf)
		report.Lines = append(report.Lines, line)
		report.Summary.add(line.Bucket, line.Balance)
	}
	report.Total = report.Summary.Total()
	return report, nil
}

func (s *Service) buildAPAging(ctx context.Context, asOf time.Time) (AgingReport, error) {
	open, err := s.repo.ListOpenPayables(ctx)
	if err != nil {
		return AgingReport{}, err
	}
	report := AgingReport{AsOf: asOf, Lines: []AgingLine{}}
	for _, rec := range open {
		line := agingLine(rec.BillNumber, rec.VendorName, rec.BillDate, rec.DueDate, rec.CreatedAt, rec.Balance, asOf)
		report.Lines = append(report.Lines, line)
		report.Summary.add(line.Bucket, line.Balance)
	}
	report.Total = report.Summary.Total()
	return report, nil
}

// agingLine resolves the effective due date and assigns the bucket. A
// document without a due date ages from its issue date, falling back to the
// record's creation time.
func agingLine(reference string, party *string, issuedOn, dueDate *time.Time, createdAt time.Time, balance float64, asOf time.Time) AgingLine {
	due := dueDate
	if due == nil {
		due = issuedOn
	}
	if due == nil {
		due = &createdAt
	}

	daysOverdue := int(asOf.Sub(due.UTC().Truncate(24*time.Hour)).Hours() / 24)
	if daysOverdue < 0 {
		daysOverdue = 0
	}

	name := "Unknown"
	if party != nil && *party != "" {
		name = *party
	}
	return AgingLine{
		Reference:   reference,
		Party:       name,
		IssuedOn:    issuedOn,
		DueDate:     dueDate,
		Balance:     balance,
		DaysOverdue: daysOverdue,
		Bucket:      bucketFor(daysOverdue),
	}
}

// accountBalance derives the account's balance from opening balance plus
// ledger activity on its normal side. When the ledger shows no movement the
// stored current balance stands in, so imported accounts report a balance
// before any journal activity exists.
func accountBalance(account accounting.ChartOfAccount, totals LedgerTotal) float64 {
	balance := account.OpeningBalance
	if debitNormal(account.AccountType) {
		balance += totals.Debit - totals.Credit
	} else {
		balance += totals.Credit - totals.Debit
	}
	if math.Abs(balance) < 0.01 {
		return account.CurrentBalance
	}
	return balance
}

func debitNormal(accountType string) bool {
	switch accountType {
	case accounting.TypeAsset, accounting.TypeExpense, accounting.TypeCostOfGoodsSold, accounting.TypeOtherExpense:
		return true
	default:
		return false
	}
}
