package reports

import "time"

// Aging bucket labels, ordered from least to most overdue.
const (
	BucketCurrent = "current"
	Bucket1To30   = "1-30"
	Bucket31To60  = "31-60"
	Bucket61To90  = "61-90"
	BucketOver90  = "90+"
)

// TrialBalanceLine is one non-zero account on the trial balance. The
// balance lands on the debit or credit column according to the account's
// normal side.
type TrialBalanceLine struct {
	AccountNumber string  `json:"account_number"`
	AccountName   string  `json:"account_name"`
	AccountType   string  `json:"account_type"`
	Debit         float64 `json:"debit"`
	Credit        float64 `json:"credit"`
}

// TrialBalance lists every active account with ledger activity as of a date.
type TrialBalance struct {
	AsOf         time.Time          `json:"as_of_date"`
	Accounts     []TrialBalanceLine `json:"accounts"`
	TotalDebits  float64            `json:"total_debits"`
	TotalCredits float64            `json:"total_credits"`
	Difference   float64            `json:"difference"`
}

// AgingLine is one open document placed in an aging bucket.
type AgingLine struct {
	Reference   string     `json:"reference"`
	Party       string     `json:"party"`
	IssuedOn    *time.Time `json:"issued_on"`
	DueDate     *time.Time `json:"due_date"`
	Balance     float64    `json:"balance"`
	DaysOverdue int        `json:"days_overdue"`
	Bucket      string     `json:"bucket"`
}

// AgingSummary totals the open balance per bucket.
type AgingSummary struct {
	Current    float64 `json:"current"`
	Days1To30  float64 `json:"1-30"`
	Days31To60 float64 `json:"31-60"`
	Days61To90 float64 `json:"61-90"`
	Over90     float64 `json:"90+"`
}

// Total returns the sum across all buckets.
func (s AgingSummary) Total() float64 {
	return s.Current + s.Days1To30 + s.Days31To60 + s.Days61To90 + s.Over90
}

// AgingReport is an AR or AP aging schedule as of a date.
type AgingReport struct {
	AsOf    time.Time    `json:"as_of_date"`
	Lines   []AgingLine  `json:"lines"`
	Summary AgingSummary `json:"summary"`
	Total   float64      `json:"total"`
}

// Summary is the one-screen accounting overview.
type Summary struct {
	AsOf            time.Time `json:"as_of_date"`
	TotalDebits     float64   `json:"total_debits"`
	TotalCredits    float64   `json:"total_credits"`
	TotalReceivable float64   `json:"total_receivable"`
	TotalPayable    float64   `json:"total_payable"`
	BankBalance     float64   `json:"bank_balance"`
}

// bucketFor classifies a number of overdue days.
func bucketFor(daysOverdue int) string {
	switch {
	case daysOverdue > 90:
		return BucketOver90
	case daysOverdue > 60:
		return Bucket61To90
	case daysOverdue > 30:
		return Bucket31To60
	case daysOverdue > 0:
		return Bucket1To30
	default:
		return BucketCurrent
	}
}

func (s *AgingSummary) add(bucket string, amount float64) {
	switch bucket {
	case Bucket1To30:
		s.Days1To30 += amount
	case Bucket31To60:
		s.Days31To60 += amount
	case Bucket61To90:
		s.Days61To90 += amount
	case BucketOver90:
		s.Over90 += amount
	default:
		s.Current += amount
	}
}
