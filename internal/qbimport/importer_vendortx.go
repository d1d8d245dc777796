package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/harborline/harborline/internal/ap"
)

// Vendor transaction types that create or settle bills.
var vendorPaymentTypes = map[string]bool{
	"check":           true,
	"bill pmt -check": true,
	"credit card":     true,
	"ccard":           true,
	"bill pmt -ccard": true,
}

// Types QuickBooks emits in this report that the import deliberately
// rejects rather than guessing at.
var vendorUnsupportedTypes = map[string]bool{
	"deposit":               true,
	"bill pmt -credit card": true,
	"purchase order":        true,
	"item receipt":          true,
	"general journal":       true,
}

// ImportVendorTransactions loads a QuickBooks transaction list by vendor.
// The report groups rows under vendor name header lines; bills join the
// vendor's open-bill queue and payments drain it oldest first.
func ImportVendorTransactions(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (VendorTxSummary, error) {
	stats := VendorTxSummary{Message: "Vendor transactions import complete"}

	var currentVendor *ap.Vendor
	var currentVendorName string

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		switch Classify(rec) {
		case RowGroupHeader:
			name := GroupLabel(rec)
			vendor, err := resolveVendorFromHeader(ctx, store, rc, name)
			if err != nil {
				stats.Errors = append(stats.Errors, rowError(rec.Number, err))
				currentVendor = nil
				currentVendorName = ""
				continue
			}
			currentVendor = &vendor
			currentVendorName = name

			if _, ok := rc.vendorQueues[vendor.ID]; !ok {
				queue, err := InitialVendorBillQueue(ctx, store, vendor.ID)
				if err != nil {
					return stats, err
				}
				rc.vendorQueues[vendor.ID] = queue
			}
			continue

		case RowTotal:
			continue
		}

		if currentVendor == nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Vendor context missing for transaction."))
			continue
		}

		txType := strings.ToLower(row.Field("type"))
		if txType == "" {
			stats.Skipped++
			continue
		}

		date := ParseDate(row.Field("date"))
		reference := row.Field("num")
		memo := row.Field("memo")
		accountLabel := row.Field("account")
		splitLabel := row.Field("split")

		credit := Amount(row.Field("credit"))
		debit := Amount(row.Field("debit"))
		amount := 0.0
		if credit > 0 {
			amount = credit
		} else if debit > 0 {
			amount = debit
		}
		if amount <= 0 {
			stats.Skipped++
			continue
		}

		queue := rc.vendorQueues[currentVendor.ID]

		switch {
		case txType == "bill":
			bill, created, err := CreateOrUpdateVendorBill(ctx, store, rc, VendorBillInput{
				Vendor:     *currentVendor,
				VendorName: currentVendorName,
				Amount:     amount,
				Date:       date,
				Reference:  reference,
				Memo:       memo,
				SplitLabel: splitLabel,
			}, now)
			if err != nil {
				stats.Errors = append(stats.Errors, rowError(rec.Number, err))
				stats.Skipped++
				break
			}
			queue = append(queue, billQueueEntry{BillID: bill.ID, Remaining: round2(bill.Balance)})
			if created {
				stats.BillsCreated++
			} else {
				stats.BillsUpdated++
			}

		case vendorPaymentTypes[txType]:
			bank, err := resolveBankAccountFromLabel(ctx, store, rc, accountLabel)
			if err != nil {
				stats.Errors = append(stats.Errors, rowError(rec.Number, err))
				stats.Skipped++
				break
			}
			applied, err := ApplyVendorPayment(ctx, store, rc, &queue, VendorPaymentInput{
				Vendor:     *currentVendor,
				Amount:     amount,
				Date:       date,
				Reference:  reference,
				Memo:       memo,
				SplitLabel: splitLabel,
				Bank:       bank,
				Type:       txType,
			}, &stats, now)
			if err != nil {
				stats.Errors = append(stats.Errors, rowError(rec.Number, err))
				stats.Skipped++
				break
			}
			if !applied {
				stats.Skipped++
				stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Unable to apply payment for %s.", currentVendorName))
			}

		case vendorUnsupportedTypes[txType]:
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Transaction type '%s' is not supported by the vendor import.", txType))

		default:
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Unsupported transaction type '%s'.", txType))
		}

		rc.vendorQueues[currentVendor.ID] = queue
	}

	stats.Errors = sanitizeErrors(stats.Errors)
	return stats, nil
}

func resolveVendorFromHeader(ctx context.Context, store TxStore, rc *runContext, name string) (ap.Vendor, error) {
	if vendor, ok := rc.vendors[strings.ToLower(name)]; ok {
		return vendor, nil
	}
	vendor, _, err := UpsertVendor(ctx, store, rc, VendorPayload{VendorName: name, CompanyName: name})
	return vendor, err
}
