package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline/harborline/internal/ar"
)

var taxAmountKeys = []string{"tax_amount", "sales_tax", "tax"}
var taxRateKeys = []string{"tax_rate", "sales_tax_rate", "tax_percent"}
var taxNameKeys = []string{"tax_item", "sales_tax_item", "tax_name", "tax_code", "sales_tax_code"}

// backfillTax reconstructs the subtotal and rate QuickBooks transaction
// reports omit. The subtotal falls out of amount minus tax, and the rate
// out of tax over subtotal.
func backfillTax(subtotal, amount, taxAmount float64, taxRate *float64) (float64, *float64) {
	if subtotal <= 0 && amount > 0 && taxAmount > 0 {
		subtotal = amount - taxAmount
		if subtotal < 0 {
			subtotal = 0
		}
	}
	if taxRate == nil && subtotal > 0 && taxAmount > 0 {
		rate, _ := decimal.NewFromFloat(taxAmount / subtotal * 100).Round(4).Float64()
		taxRate = &rate
	}
	if subtotal <= 0 {
		subtotal = amount - taxAmount
		if subtotal < 0 {
			subtotal = 0
		}
	}
	return subtotal, taxRate
}

// ImportInvoices loads a QuickBooks invoice transaction report. Imported
// numbers are namespaced so re-running the file updates in place, and the
// open balance column back-fills the paid amount.
func ImportInvoices(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "Invoices import complete"}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		customerName := row.Field("customer")
		qbNumber := row.FieldFrom("num", "invoice", "txn_id")
		if customerName == "" || qbNumber == "" || strings.HasPrefix(strings.ToLower(customerName), "total") {
			stats.Skipped++
			continue
		}

		issueDate := ParseDate(row.Field("date"))
		dueDate := ParseDate(row.Field("due_date"))
		if dueDate == nil {
			dueDate = issueDate
		}
		amount := Amount(row.FieldFrom("amount", "total"))
		openBalance := Amount(row.FieldFrom("open_balance", "balance"))
		aging := row.Field("aging")

		subtotal := Amount(row.Field("subtotal"))
		taxAmount := Amount(row.FieldFrom(taxAmountKeys...))
		taxRate := Percentage(row.FieldFrom(taxRateKeys...))
		taxName := row.FieldFrom(taxNameKeys...)

		subtotal, taxRate = backfillTax(subtotal, amount, taxAmount, taxRate)
		if amount <= 0 {
			amount = subtotal + taxAmount
		}

		customer, _, err := UpsertCustomer(ctx, store, rc, CustomerPayload{Name: customerName})
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		invoiceNumber := FormatInvoiceNumber(qbNumber)
		invoice, found, err := store.FindInvoiceByNumber(ctx, invoiceNumber)
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}
		created := !found
		if created {
			invoice = ar.Invoice{InvoiceNumber: invoiceNumber}
		}

		invoice.CustomerID = customer.ID
		invoice.IssueDate = issueDate
		invoice.DueDate = dueDate
		invoice.Subtotal = subtotal
		invoice.TaxRate = derefFloat(taxRate)
		invoice.TaxAmount = taxAmount
		invoice.TaxName = optString(taxName)
		invoice.Total = amount
		invoice.PaidAmount = invoice.Total - openBalance
		if invoice.PaidAmount < 0 {
			invoice.PaidAmount = 0
		}
		if openBalance > 0 {
			invoice.Balance = openBalance
		} else {
			invoice.Balance = invoice.Total - invoice.PaidAmount
			if invoice.Balance < 0 {
				invoice.Balance = 0
			}
		}
		invoice.Status = ar.DetermineInvoiceStatus(invoice.DueDate, invoice.Balance, now)

		var taxAmountPtr *float64
		if taxAmount != 0 {
			taxAmountPtr = &taxAmount
		}
		note := buildInvoiceNote(qbNumber, invoice.Total, invoice.Balance, aging, taxAmountPtr, taxRate, taxName, now)
		merged := AppendNotes(deref(invoice.Notes), note, created)
		invoice.Notes = &merged

		if created {
			err = store.InsertInvoice(ctx, &invoice)
		} else {
			err = store.UpdateInvoice(ctx, invoice)
		}
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		lineAmount := invoice.Subtotal
		if lineAmount == 0 {
			lineAmount = invoice.Total
		}
		item := ar.InvoiceItem{
			InvoiceID:   invoice.ID,
			ItemType:    "service",
			Description: "Imported from QuickBooks invoice #" + qbNumber,
			Quantity:    1,
			UnitPrice:   lineAmount,
			Total:       lineAmount,
			SortOrder:   1,
		}
		if err := store.UpsertInvoiceItem(ctx, item); err != nil {
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

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
