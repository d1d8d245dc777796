package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/harborline/harborline/internal/ar"
)

// ImportEstimates loads a QuickBooks estimate report as quotes. An
// estimate with no open balance is considered accepted; inactive open
// estimates are expired.
func ImportEstimates(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "Estimates import complete"}

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
		qbNumber := row.Field("num")
		if customerName == "" || qbNumber == "" || strings.HasPrefix(strings.ToLower(customerName), "total") {
			stats.Skipped++
			continue
		}

		issueDate := ParseDate(row.Field("date"))
		amount := Amount(row.Field("amount"))
		openBalance := Amount(row.Field("open_balance"))
		subtotal := Amount(row.Field("subtotal"))
		taxAmount := Amount(row.FieldFrom(taxAmountKeys...))
		taxRate := Percentage(row.FieldFrom(taxRateKeys...))
		taxName := row.FieldFrom(taxNameKeys...)
		isActive := ParseBool(row.Field("active_estimate"))

		subtotal, taxRate = backfillTax(subtotal, amount, taxAmount, taxRate)

		customer, _, err := UpsertCustomer(ctx, store, rc, CustomerPayload{Name: customerName})
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		quoteNumber := FormatQuoteNumber(qbNumber)
		quote, found, err := store.FindQuoteByNumber(ctx, quoteNumber)
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}
		created := !found
		if created {
			quote = ar.Quote{QuoteNumber: quoteNumber}
		}

		quote.CustomerID = customer.ID
		if issueDate != nil {
			expiration := issueDate.AddDate(0, 0, 30)
			quote.ExpirationDate = &expiration
		} else {
			quote.ExpirationDate = nil
		}
		if subtotal > 0 {
			quote.Subtotal = subtotal
		} else {
			quote.Subtotal = amount
		}
		quote.TaxRate = derefFloat(taxRate)
		quote.TaxAmount = taxAmount
		quote.TaxName = optString(taxName)
		if amount > 0 {
			quote.Total = amount
		} else {
			quote.Total = quote.Subtotal + taxAmount
		}
		quote.Status = ar.DetermineQuoteStatus(openBalance, isActive)

		var taxAmountPtr *float64
		if taxAmount != 0 {
			taxAmountPtr = &taxAmount
		}
		note := buildQuoteNote(qbNumber, quote.Total, openBalance, isActive, taxAmountPtr, taxRate, taxName, now)
		merged := AppendNotes(deref(quote.Notes), note, created)
		quote.Notes = &merged

		if created {
			err = store.InsertQuote(ctx, &quote)
		} else {
			err = store.UpdateQuote(ctx, quote)
		}
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		linePrice := quote.Subtotal
		if linePrice == 0 {
			linePrice = quote.Total
		}
		item := ar.QuoteItem{
			QuoteID:     quote.ID,
			ItemType:    "service",
			Description: "Imported from QuickBooks estimate #" + qbNumber,
			Quantity:    1,
			UnitPrice:   linePrice,
			Total:       quote.Total,
			SortOrder:   1,
		}
		if err := store.UpsertQuoteItem(ctx, item); err != nil {
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
