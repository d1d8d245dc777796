package accounting

import (
	"math"
	"time"
)

// Account classification. Types mirror the ledger report groupings; detail
// types refine where an account sits inside its group.
const (
	TypeAsset           = "asset"
	TypeLiability       = "liability"
	TypeEquity          = "equity"
	TypeRevenue         = "revenue"
	TypeExpense         = "expense"
	TypeOtherIncome     = "other_income"
	TypeOtherExpense    = "other_expense"
	TypeCostOfGoodsSold = "cost_of_goods_sold"
)

const (
	DetailBank         = "bank"
	DetailOtherAsset   = "other_asset"
	DetailSalesTax     = "sales_tax_payable"
	DetailUndeposited  = "undeposited_funds"
	DetailAccountsRecv = "accounts_receivable"
	DetailAccountsPay  = "accounts_payable"
)

// ChartOfAccount is a node in the chart of accounts tree. Sub-accounts point
// at their parent through ParentID.
type ChartOfAccount struct {
	ID             int64
	AccountNumber  string
	AccountName    string
	AccountType    string
	DetailType     string
	ParentID       *int64
	IsActive       bool
	IsSubAccount   bool
	Description    *string
	OpeningBalance float64
	CurrentBalance float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BankAccount shadows a bank-type chart account with operational banking
// fields.
type BankAccount struct {
	ID             int64
	ChartAccountID int64
	AccountName    string
	AccountNumber  *string
	Notes          *string
	IsActive       bool
	OpeningBalance float64
	CurrentBalance float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// GeneralLedgerEntry is one posted ledger line. Source identifies the system
// that produced it; imported rows carry source "quickbooks".
type GeneralLedgerEntry struct {
	ID                int64
	AccountID         *int64
	AccountName       string
	TransactionType   string
	TransactionDate   *time.Time
	TransactionNumber *string
	Name              *string
	Memo              *string
	Split             *string
	Debit             float64
	Credit            float64
	RunningBalance    float64
	Source            string
	ExternalReference *string
	CreatedAt         time.Time
}

// Journal entry lifecycle.
const (
	JournalDraft  = "draft"
	JournalPosted = "posted"
)

// JournalEntry groups debit and credit lines under one entry date.
type JournalEntry struct {
	ID        int64
	EntryDate time.Time
	Memo      *string
	Reference *string
	Status    string
	Lines     []JournalLine
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JournalLine hits exactly one account with either a debit or a credit.
type JournalLine struct {
	ID        int64
	EntryID   int64
	AccountID int64
	Debit     float64
	Credit    float64
	Memo      *string
}

// TotalDebits sums the debit side of the entry.
func (e *JournalEntry) TotalDebits() float64 {
	var sum float64
	for _, l := range e.Lines {
		sum += l.Debit
	}
	return sum
}

// TotalCredits sums the credit side of the entry.
func (e *JournalEntry) TotalCredits() float64 {
	var sum float64
	for _, l := range e.Lines {
		sum += l.Credit
	}
	return sum
}

// Balanced reports whether debits equal credits within a cent.
func (e *JournalEntry) Balanced() bool {
	return math.Abs(e.TotalDebits()-e.TotalCredits()) <= 0.01
}
