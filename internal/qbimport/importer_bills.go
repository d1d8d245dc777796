package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/harborline/harborline/internal/ap"
)

// ImportBills loads a QuickBooks unpaid bills or bill transaction report.
// Rows without a reference number get a synthetic one from the vendor name
// and bill date so re-imports still line up.
func ImportBills(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "Bills import complete"}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		vendorName := row.FieldFrom("vendor", "supplier", "payee", "name")
		if vendorName == "" || strings.HasPrefix(strings.ToLower(vendorName), "total") {
			stats.Skipped++
			continue
		}

		qbNumber := row.FieldFrom("num", "bill", "bill_number", "ref_number", "txn_id")
		billDate := ParseDate(row.FieldFrom("bill_date", "date"))
		dueDate := ParseDate(row.Field("due_date"))
		if dueDate == nil {
			dueDate = billDate
		}

		if qbNumber == "" {
			base := nonAlnumPattern.ReplaceAllString(strings.ToUpper(vendorName), "")
			if base == "" {
				base = "QB"
			}
			if len(base) > 8 {
				base = base[:8]
			}
			if billDate != nil {
				qbNumber = base + "-" + billDate.Format("20060102")
			} else {
				qbNumber = base + "-" + hashN(vendorName+now.String(), 6)
			}
		}
		billNumber := FormatBillNumber(qbNumber)

		amount := Amount(row.FieldFrom("amount", "total"))
		openBalance := Amount(row.FieldFrom("open_balance", "balance"))
		subtotal := Amount(row.Field("subtotal"))
		taxAmount := Amount(row.FieldFrom(taxAmountKeys...))
		taxRate := Percentage(row.FieldFrom(taxRateKeys...))
		taxName := row.FieldFrom(taxNameKeys...)
		terms := row.Field("terms")
		memo := row.FieldFrom("memo", "description", "note")

		subtotal, taxRate = backfillTax(subtotal, amount, taxAmount, taxRate)
		if amount <= 0 {
			amount = subtotal + taxAmount
		}

		billing := BuildAddress(row, "bill_to_", "bill_addr", "billaddress", "address", "vendor_address")
		city, state, zip := ParseCityStateZip(row.FieldFrom("bill_to_2", "bill_addr2", "billaddress2", "vendor_address_2"))

		vendor, _, err := UpsertVendor(ctx, store, rc, VendorPayload{
			VendorName:    vendorName,
			CompanyName:   row.Field("company"),
			ContactPerson: row.FieldFrom("primary_contact", "contact"),
			Email:         row.FieldFrom("main_email", "email"),
			Phone:         row.FieldFrom("main_phone", "phone", "fax"),
			Address:       billing,
			City:          firstNonEmpty(city, row.FieldFrom("bill_to_city", "city")),
			State:         firstNonEmpty(state, row.FieldFrom("bill_to_state", "state")),
			Zip:           firstNonEmpty(zip, row.FieldFrom("bill_to_zip", "zip", "postal_code")),
			PaymentTerms:  terms,
			Notes:         buildVendorNotes(row, now),
		})
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		bill, found, err := store.FindBillByNumber(ctx, billNumber)
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}
		created := !found
		if created {
			bill = ap.Bill{BillNumber: billNumber}
		}

		bill.VendorID = vendor.ID
		bill.BillDate = billDate
		bill.DueDate = dueDate
		if subtotal > 0 {
			bill.Subtotal = subtotal
		} else {
			bill.Subtotal = amount
		}
		bill.Tax = taxAmount
		bill.TaxName = optString(taxName)
		if amount > 0 {
			bill.Total = amount
		} else {
			bill.Total = bill.Subtotal + taxAmount
		}
		bill.AmountPaid = bill.Total - openBalance
		if bill.AmountPaid < 0 {
			bill.AmountPaid = 0
		}
		if openBalance > 0 {
			bill.Balance = openBalance
		} else {
			bill.Balance = bill.Total - bill.AmountPaid
			if bill.Balance < 0 {
				bill.Balance = 0
			}
		}
		bill.Status = ap.DetermineStatus(bill.DueDate, bill.Balance, bill.AmountPaid, now)
		if terms != "" {
			bill.Terms = &terms
		}

		var taxAmountPtr *float64
		if taxAmount != 0 {
			taxAmountPtr = &taxAmount
		}
		note := buildBillNote(billNumber, bill.Total, bill.Balance, terms, taxAmountPtr, taxRate, taxName, now)
		merged := AppendNotes(deref(bill.Memo), note, created)
		if memo != "" {
			merged = AppendNotes(merged, memo, false)
		}
		bill.Memo = &merged

		if created {
			err = store.InsertBill(ctx, &bill)
		} else {
			err = store.UpdateBill(ctx, bill)
		}
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		lineAmount := bill.Subtotal
		if lineAmount == 0 {
			lineAmount = bill.Total
		}
		item := ap.BillItem{
			BillID:      bill.ID,
			Description: "Imported from QuickBooks bill #" + billNumber,
			Quantity:    1,
			Rate:        lineAmount,
			Amount:      lineAmount,
		}
		if err := store.UpsertBillItem(ctx, item); err != nil {
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
