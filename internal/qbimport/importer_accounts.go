package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ImportChartOfAccounts loads a QuickBooks account list export. Account
// paths use colons for sub-accounts; report artifacts like Total rows are
// skipped.
func ImportChartOfAccounts(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "Chart of Accounts import complete"}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		name := row.Field("account")
		if name == "" || strings.EqualFold(name, "account") || strings.HasPrefix(strings.ToLower(name), "total") {
			stats.Skipped++
			continue
		}

		number := NormalizeAccountNumber(row.FieldFrom("account_number", "account_num", "acct_num", "number"))
		detail := row.FieldFrom("detail_type", "detail", "account_detail_type")
		class := MapAccountType(row.Field("type"), detail)
		balance := Amount(row.FieldFrom("balance_total", "balance"))

		var description *string
		if d := row.Field("description"); d != "" {
			description = &d
		}

		_, created, err := EnsureAccount(ctx, store, rc, EnsureAccountInput{
			FullName:       name,
			Number:         number,
			Class:          class,
			OpeningBalance: balance,
			CurrentBalance: balance,
			Description:    description,
		})
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}
		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	stats.Errors = sanitizeErrors(stats.Errors)
	return stats, nil
}
