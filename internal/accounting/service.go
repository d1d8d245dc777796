package accounting

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnbalanced   = errors.New("journal entry debits and credits do not balance")
	ErrEmptyEntry   = errors.New("journal entry requires at least two lines")
	ErrBothSides    = errors.New("journal line must carry a debit or a credit, not both")
	ErrInvalidState = errors.New("invalid journal status for operation")
)

// Service holds the accounting business rules.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// JournalLineInput is one side of a posting.
type JournalLineInput struct {
	AccountID int64   `json:"account_id" validate:"required"`
	Debit     float64 `json:"debit" validate:"gte=0"`
	Credit    float64 `json:"credit" validate:"gte=0"`
	Memo      *string `json:"memo"`
}

// CreateJournalInput describes a draft journal entry.
type CreateJournalInput struct {
	EntryDate time.Time          `json:"entry_date" validate:"required"`
	Memo      *string            `json:"memo"`
	Reference *string            `json:"reference"`
	Lines     []JournalLineInput `json:"lines" validate:"required,min=2,dive"`
}

// ListAccounts returns the chart of accounts ordered by account number.
func (s *Service) ListAccounts(ctx context.Context) ([]ChartOfAccount, error) {
	return s.repo.ListAccounts(ctx)
}

// GetAccount fetches one chart account.
func (s *Service) GetAccount(ctx context.Context, id int64) (ChartOfAccount, error) {
	return s.repo.GetAccount(ctx, id)
}

// AccountLedger returns posted ledger lines for an account.
func (s *Service) AccountLedger(ctx context.Context, accountID int64, limit int) ([]GeneralLedgerEntry, error) {
	if _, err := s.repo.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return s.repo.ListLedgerEntries(ctx, accountID, limit)
}

// CreateJournalEntry validates line shape and stores the entry as a draft.
// Balance is not enforced until posting.
func (s *Service) CreateJournalEntry(ctx context.Context, input CreateJournalInput) (JournalEntry, error) {
	if err := ValidateLines(linesFromInput(input.Lines)); err != nil {
		return JournalEntry{}, err
	}

	entry := JournalEntry{
		EntryDate: input.EntryDate,
		Memo:      input.Memo,
		Reference: input.Reference,
		Status:    JournalDraft,
		Lines:     linesFromInput(input.Lines),
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertJournalEntry(ctx, &entry)
	})
	if err != nil {
		return JournalEntry{}, fmt.Errorf("create journal entry: %w", err)
	}
	return entry, nil
}

// PostJournalEntry moves a draft to posted. Posting requires the entry to
// balance within a cent.
func (s *Service) PostJournalEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	var posted JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		entry, err := tx.GetJournalWithLines(ctx, entryID)
		if err != nil {
			return err
		}
		if entry.Status != JournalDraft {
			return ErrInvalidState
		}
		if !entry.Balanced() {
			return fmt.Errorf("%w: debits %.2f credits %.2f", ErrUnbalanced, entry.TotalDebits(), entry.TotalCredits())
		}
		if err := tx.UpdateJournalStatus(ctx, entryID, JournalPosted); err != nil {
			return err
		}
		entry.Status = JournalPosted
		posted = entry
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	return posted, nil
}

// GetJournalEntry fetches an entry with its lines.
func (s *Service) GetJournalEntry(ctx context.Context, entryID int64) (JournalEntry, error) {
	return s.repo.GetJournalWithLines(ctx, entryID)
}

// ValidateLines rejects malformed posting lines before they reach storage.
func ValidateLines(lines []JournalLine) error {
	if len(lines) < 2 {
		return ErrEmptyEntry
	}
	for _, l := range lines {
		hasDebit := l.Debit > 0
		hasCredit := l.Credit > 0
		if hasDebit == hasCredit {
			return ErrBothSides
		}
		if l.Debit < 0 || l.Credit < 0 {
			return ErrBothSides
		}
	}
	return nil
}

func linesFromInput(in []JournalLineInput) []JournalLine {
	lines := make([]JournalLine, len(in))
	for i, l := range in {
		lines[i] = JournalLine{AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo}
	}
	return lines
}
