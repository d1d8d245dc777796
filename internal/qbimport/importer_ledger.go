package qbimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/harborline/harborline/internal/accounting"
)

// ledgerBatchSize bounds the insert batches for large ledger exports.
const ledgerBatchSize = 1000

// Positional columns of the QuickBooks general ledger report.
const (
	ledgerColLabel = iota
	ledgerColType
	ledgerColDate
	ledgerColNumber
	ledgerColName
	ledgerColMemo
	ledgerColSplit
	ledgerColDebit
	ledgerColCredit
	ledgerColBalance
)

// ImportGeneralLedger replaces all previously imported ledger rows with the
// contents of a QuickBooks general ledger report. The report interleaves
// account header lines, transaction lines, and Total lines carrying the
// closing balance.
func ImportGeneralLedger(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "General ledger import complete"}

	if err := store.DeleteLedgerBySource(ctx, "quickbooks"); err != nil {
		return stats, err
	}

	var currentLabel string
	var currentAccount *accounting.ChartOfAccount
	var batch []accounting.GeneralLedgerEntry

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.InsertLedgerBatch(ctx, batch); err != nil {
			return err
		}
		stats.Created += len(batch)
		batch = batch[:0]
		return nil
	}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		switch ClassifyLedger(rec) {
		case RowGroupHeader:
			currentLabel = GroupLabel(rec)
			account, err := findAccountByLedgerLabel(ctx, store, NormalizeAccountLabel(currentLabel))
			if err != nil {
				return stats, err
			}
			currentAccount = account
			continue

		case RowTotal:
			if currentAccount != nil {
				balance := Amount(balanceCell(rec.Raw))
				if err := store.UpdateAccountBalance(ctx, currentAccount.ID, balance); err != nil {
					return stats, err
				}
				stats.Updated++
			} else {
				stats.Skipped++
				stats.Errors = append(stats.Errors, fmt.Sprintf("Skipped account total for '%s': account not found.", EnsureUTF8(currentLabel)))
			}
			continue
		}

		txType := cleanLedgerValue(rawCell(rec.Raw, ledgerColType))
		if txType == "" || currentAccount == nil {
			continue
		}

		debit := Amount(rawCell(rec.Raw, ledgerColDebit))
		credit := Amount(rawCell(rec.Raw, ledgerColCredit))
		if math.Abs(debit) < 0.0001 && math.Abs(credit) < 0.0001 {
			continue
		}

		txNumber := cleanLedgerValue(rawCell(rec.Raw, ledgerColNumber))
		entry := accounting.GeneralLedgerEntry{
			AccountID:         &currentAccount.ID,
			AccountName:       currentAccount.AccountName,
			TransactionType:   txType,
			TransactionDate:   ParseDate(cleanLedgerValue(rawCell(rec.Raw, ledgerColDate))),
			TransactionNumber: optString(txNumber),
			Name:              optString(cleanLedgerValue(rawCell(rec.Raw, ledgerColName))),
			Memo:              optString(cleanLedgerValue(rawCell(rec.Raw, ledgerColMemo))),
			Split:             optString(cleanLedgerValue(rawCell(rec.Raw, ledgerColSplit))),
			Debit:             debit,
			Credit:            credit,
			RunningBalance:    Amount(rawCell(rec.Raw, ledgerColBalance)),
			Source:            "quickbooks",
			ExternalReference: optString(txNumber),
		}
		batch = append(batch, entry)

		if len(batch) >= ledgerBatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	stats.Errors = sanitizeErrors(stats.Errors)
	return stats, nil
}

func rawCell(raw []string, idx int) string {
	if idx >= len(raw) {
		return ""
	}
	return raw[idx]
}

// balanceCell reads the running balance column, falling back to the last
// cell when the report was exported with fewer columns.
func balanceCell(raw []string) string {
	if len(raw) > ledgerColBalance {
		return raw[ledgerColBalance]
	}
	if len(raw) == 0 {
		return ""
	}
	return raw[len(raw)-1]
}
