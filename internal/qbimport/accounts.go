package qbimport

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/harborline/harborline/internal/accounting"
)

// AccountClass is the chart classification mapped from the QuickBooks
// account and detail type columns.
type AccountClass struct {
	Type   string
	Detail string
	IsBank bool
}

// Detail-level overrides win over the account type column. Anything not
// recognized falls through to the type table.
var detailClassMap = map[string]AccountClass{
	"checking":          {accounting.TypeAsset, accounting.DetailBank, true},
	"savings":           {accounting.TypeAsset, accounting.DetailBank, true},
	"cash_on_hand":      {accounting.TypeAsset, accounting.DetailBank, true},
	"money_market":      {accounting.TypeAsset, accounting.DetailBank, true},
	"sales_tax_payable": {accounting.TypeLiability, accounting.DetailSalesTax, false},
	"undeposited_funds": {accounting.TypeAsset, accounting.DetailUndeposited, true},
}

var typeClassMap = map[string]AccountClass{
	"bank":                    {accounting.TypeAsset, accounting.DetailBank, true},
	"accounts_receivable":     {accounting.TypeAsset, accounting.DetailAccountsRecv, false},
	"other_current_asset":     {accounting.TypeAsset, "other_current_asset", false},
	"fixed_asset":             {accounting.TypeAsset, "fixed_asset", false},
	"other_asset":             {accounting.TypeAsset, accounting.DetailOtherAsset, false},
	"accounts_payable":        {accounting.TypeLiability, accounting.DetailAccountsPay, false},
	"credit_card":             {accounting.TypeLiability, "credit_card", false},
	"sales_tax_payable":       {accounting.TypeLiability, accounting.DetailSalesTax, false},
	"other_current_liability": {accounting.TypeLiability, "other_current_liability", false},
	"long_term_liability":     {accounting.TypeLiability, "long_term_liability", false},
	"equity":                  {accounting.TypeEquity, "equity", false},
	"income":                  {accounting.TypeRevenue, "income", false},
	"sales_of_product_income": {accounting.TypeRevenue, "income", false},
	"service_fee_income":      {accounting.TypeRevenue, "income", false},
	"other_income":            {accounting.TypeOtherIncome, "other_income", false},
	"expense":                 {accounting.TypeExpense, "expense", false},
	"other_expense":           {accounting.TypeOtherExpense, "other_expense", false},
	"cost_of_goods_sold":      {accounting.TypeCostOfGoodsSold, "cost_of_goods_sold", false},
}

// MapAccountType classifies a QuickBooks account row. The detail column is
// consulted first because QuickBooks files detail subtypes like Checking
// under the generic Bank type.
func MapAccountType(qbType, qbDetail string) AccountClass {
	if class, ok := detailClassMap[snakeCase(qbDetail)]; ok {
		return class
	}
	if class, ok := typeClassMap[snakeCase(qbType)]; ok {
		return class
	}
	return AccountClass{accounting.TypeAsset, accounting.DetailOtherAsset, false}
}

// EnsureAccountInput carries everything the leaf segment of an account path
// should end up with.
type EnsureAccountInput struct {
	FullName       string
	Number         string
	Class          AccountClass
	OpeningBalance float64
	CurrentBalance float64
	Description    *string
}

// EnsureAccount walks a colon-separated QuickBooks account path, creating
// missing segments and reparenting strays, and returns the leaf account.
// Intermediate segments inherit the leaf classification when created; the
// leaf is always refreshed from the input. The bool reports whether the
// leaf was created.
func EnsureAccount(ctx context.Context, store TxStore, rc *runContext, in EnsureAccountInput) (accounting.ChartOfAccount, bool, error) {
	segments := splitAccountPath(in.FullName)
	if len(segments) == 0 {
		return accounting.ChartOfAccount{}, false, errors.New("account name is empty")
	}

	var parentID *int64
	var account accounting.ChartOfAccount
	created := false

	for i, segment := range segments {
		final := i == len(segments)-1
		key := rc.accountCacheKey(parentID, segment)

		cached, hit := rc.accounts[key]
		if hit {
			account = cached
		} else {
			found, ok, err := store.FindAccountByName(ctx, segment, parentID)
			if err != nil {
				return accounting.ChartOfAccount{}, false, err
			}
			if ok {
				account = found
			} else {
				number := ""
				if final && in.Number != "" {
					if free, err := numberAvailable(ctx, store, rc, in.Number); err != nil {
						return accounting.ChartOfAccount{}, false, err
					} else if free {
						number = in.Number
					}
				}
				if number == "" {
					var err error
					number, err = generateAccountNumber(ctx, store, rc, strings.Join(segments[:i+1], ":"))
					if err != nil {
						return accounting.ChartOfAccount{}, false, err
					}
				}
				account = accounting.ChartOfAccount{
					AccountNumber: number,
					AccountName:   segment,
					AccountType:   in.Class.Type,
					DetailType:    in.Class.Detail,
					ParentID:      parentID,
					IsActive:      true,
					IsSubAccount:  parentID != nil,
				}
				if err := store.InsertAccount(ctx, &account); err != nil {
					return accounting.ChartOfAccount{}, false, err
				}
				rc.numbers[number] = true
				if final {
					created = true
				}
			}
		}

		if final {
			if in.Number != "" && account.AccountNumber != in.Number {
				if free, err := numberAvailable(ctx, store, rc, in.Number); err != nil {
					return accounting.ChartOfAccount{}, false, err
				} else if free {
					account.AccountNumber = in.Number
					rc.numbers[in.Number] = true
				}
			}
			account.AccountType = in.Class.Type
			account.DetailType = in.Class.Detail
			account.ParentID = parentID
			account.IsSubAccount = parentID != nil
			account.OpeningBalance = in.OpeningBalance
			account.CurrentBalance = in.CurrentBalance
			if in.Description != nil {
				account.Description = in.Description
			}
			if err := store.UpdateAccount(ctx, account); err != nil {
				return accounting.ChartOfAccount{}, false, err
			}
			if in.Class.IsBank {
				if err := syncBankAccount(ctx, store, account, in.CurrentBalance, in.Description, in.Number); err != nil {
					return accounting.ChartOfAccount{}, false, err
				}
			}
		} else if !sameParent(account.ParentID, parentID) {
			// A segment found under the wrong parent gets moved into place
			// so later files see one hierarchy, not duplicates.
			account.ParentID = parentID
			account.IsSubAccount = parentID != nil
			if err := store.UpdateAccount(ctx, account); err != nil {
				return accounting.ChartOfAccount{}, false, err
			}
		}

		rc.accounts[key] = account
		id := account.ID
		parentID = &id
	}

	return account, created, nil
}

func splitAccountPath(fullName string) []string {
	var segments []string
	for _, part := range strings.Split(fullName, ":") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			segments = append(segments, trimmed)
		}
	}
	return segments
}

func sameParent(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var nonAlnumPattern = regexp.MustCompile(`[^A-Z0-9]`)

// generateAccountNumber derives a stable number from the account path,
// resolving collisions with a numeric suffix that consumes trailing base
// characters so the result stays within ten characters.
func generateAccountNumber(ctx context.Context, store TxStore, rc *runContext, fullName string) (string, error) {
	if err := loadAccountNumbers(ctx, store, rc); err != nil {
		return "", err
	}
	base := nonAlnumPattern.ReplaceAllString(strings.ToUpper(fullName), "")
	if base == "" {
		base = hashN(fullName, 10)
	}
	if len(base) > 10 {
		base = base[:10]
	}
	candidate := base
	for n := 1; rc.numbers[candidate]; n++ {
		suffix := strconv.Itoa(n)
		keep := 10 - len(suffix)
		if keep > len(base) {
			keep = len(base)
		}
		candidate = base[:keep] + suffix
	}
	rc.numbers[candidate] = true
	return candidate, nil
}

func numberAvailable(ctx context.Context, store TxStore, rc *runContext, number string) (bool, error) {
	if err := loadAccountNumbers(ctx, store, rc); err != nil {
		return false, err
	}
	return !rc.numbers[number], nil
}

func loadAccountNumbers(ctx context.Context, store TxStore, rc *runContext) error {
	if rc.numbersLoaded {
		return nil
	}
	numbers, err := store.ListAccountNumbers(ctx)
	if err != nil {
		return err
	}
	for _, n := range numbers {
		rc.numbers[n] = true
	}
	rc.numbersLoaded = true
	return nil
}

// syncBankAccount keeps the operational bank record in step with its chart
// account. A provided QuickBooks account number and description only land
// on the bank record when it has none yet.
func syncBankAccount(ctx context.Context, store TxStore, account accounting.ChartOfAccount, balance float64, description *string, providedNumber string) error {
	bank, ok, err := store.FindBankAccountByChartID(ctx, account.ID)
	if err != nil {
		return err
	}
	if !ok {
		bank = accounting.BankAccount{
			ChartAccountID: account.ID,
			AccountName:    account.AccountName,
			IsActive:       true,
		}
	}
	if providedNumber != "" {
		bank.AccountNumber = &providedNumber
	}
	if description != nil && *description != "" && bank.Notes == nil {
		bank.Notes = description
	}
	bank.OpeningBalance = balance
	bank.CurrentBalance = balance
	if !ok {
		return store.InsertBankAccount(ctx, &bank)
	}
	return store.UpdateBankAccount(ctx, bank)
}

// NormalizeAccountNumber uppercases a provided account number and removes
// interior whitespace. An effectively blank value comes back empty.
func NormalizeAccountNumber(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	return strings.ToUpper(spaceRunPattern.ReplaceAllString(trimmed, ""))
}

var parenSuffixPattern = regexp.MustCompile(`\s*\(([^()]*)\)\s*$`)

// NormalizeAccountLabel turns a ledger column label into a chart account
// name: report quoting stripped, "Total " prefixes removed, trailing
// parenthesized annotations dropped.
func NormalizeAccountLabel(label string) string {
	clean := cleanLedgerValue(label)
	if len(clean) >= 6 && strings.EqualFold(clean[:6], "total ") {
		clean = clean[6:]
	}
	clean = parenSuffixPattern.ReplaceAllString(clean, "")
	return strings.TrimSpace(clean)
}

// findAccountByLedgerLabel matches a normalized ledger label against the
// chart by lowercased name, retrying once with report ellipses and doubled
// spaces collapsed.
func findAccountByLedgerLabel(ctx context.Context, store TxStore, label string) (*accounting.ChartOfAccount, error) {
	if label == "" {
		return nil, nil
	}
	account, ok, err := store.FindAccountByLowerName(ctx, label)
	if err != nil {
		return nil, err
	}
	if ok {
		return &account, nil
	}
	fallback := strings.ReplaceAll(label, "...", "")
	fallback = spaceRunPattern.ReplaceAllString(fallback, " ")
	fallback = strings.TrimSpace(fallback)
	if fallback == "" || fallback == label {
		return nil, nil
	}
	account, ok, err = store.FindAccountByLowerName(ctx, fallback)
	if err != nil || !ok {
		return nil, err
	}
	return &account, nil
}

// resolveExpenseAccount finds or creates the expense account named by a
// vendor transaction split label. Results are cached per run, including
// misses for blank labels.
func resolveExpenseAccount(ctx context.Context, store TxStore, rc *runContext, label string) (*accounting.ChartOfAccount, error) {
	normalized := NormalizeAccountLabel(label)
	if normalized == "" {
		return nil, nil
	}
	key := "expense|" + strings.ToLower(normalized)
	if cached, ok := rc.lookupExpense[key]; ok {
		return cached, nil
	}
	account, err := findAccountByLedgerLabel(ctx, store, normalized)
	if err != nil {
		return nil, err
	}
	if account == nil {
		ensured, _, err := EnsureAccount(ctx, store, rc, EnsureAccountInput{
			FullName: normalized,
			Class:    AccountClass{accounting.TypeExpense, "expense", false},
		})
		if err != nil {
			return nil, err
		}
		account = &ensured
	}
	rc.lookupExpense[key] = account
	return account, nil
}

// resolveBankAccountFromLabel finds or creates the bank account a vendor
// payment was drawn on, down to the operational bank record.
func resolveBankAccountFromLabel(ctx context.Context, store TxStore, rc *runContext, label string) (*accounting.BankAccount, error) {
	normalized := NormalizeAccountLabel(label)
	if normalized == "" {
		return nil, nil
	}
	key := "bank|" + strings.ToLower(normalized)
	if cached, ok := rc.lookupBank[key]; ok {
		return cached, nil
	}
	account, err := findAccountByLedgerLabel(ctx, store, normalized)
	if err != nil {
		return nil, err
	}
	if account == nil {
		ensured, _, err := EnsureAccount(ctx, store, rc, EnsureAccountInput{
			FullName: normalized,
			Class:    AccountClass{accounting.TypeAsset, accounting.DetailBank, true},
		})
		if err != nil {
			return nil, err
		}
		account = &ensured
	}
	bank, ok, err := store.FindBankAccountByChartID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		bank = accounting.BankAccount{
			ChartAccountID: account.ID,
			AccountName:    account.AccountName,
			IsActive:       true,
		}
		if err := store.InsertBankAccount(ctx, &bank); err != nil {
			return nil, err
		}
	}
	rc.lookupBank[key] = &bank
	return &bank, nil
}
