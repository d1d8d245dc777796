package qbimport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harborline/harborline/internal/ar"
)

// ImportPayments loads a QuickBooks payments-by-customer report. Customer
// name lines set the context, invoice lines pin specific invoices for the
// following payments, and payment lines settle the customer's invoices
// oldest first.
func ImportPayments(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (PaymentsSummary, error) {
	stats := PaymentsSummary{Message: "Payments import complete"}

	customerCache := map[string]*ar.Customer{}
	var currentCustomerName string
	var currentCustomer *ar.Customer

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
			currentCustomerName = GroupLabel(rec)
			if _, ok := customerCache[currentCustomerName]; !ok {
				customer, found, err := store.FindCustomerByLowerName(ctx, currentCustomerName)
				if err != nil {
					return stats, err
				}
				if found {
					customerCache[currentCustomerName] = &customer
				} else {
					customerCache[currentCustomerName] = nil
				}
			}
			currentCustomer = customerCache[currentCustomerName]
			continue

		case RowTotal:
			continue
		}

		rowType := strings.ToLower(row.Field("type"))
		if rowType == "" {
			continue
		}

		if currentCustomerName == "" {
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Unable to determine customer context for %s entry.", rowType))
			continue
		}

		if rowType == "invoice" {
			qbNumber := row.Field("num")
			if qbNumber == "" {
				continue
			}
			invoice, found, err := store.FindInvoiceByNumber(ctx, FormatInvoiceNumber(qbNumber))
			if err != nil {
				return stats, err
			}
			if !found {
				stats.Skipped++
				stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Invoice %s not found for customer %s.", qbNumber, currentCustomerName))
				continue
			}
			if !containsID(rc.invoiceQueues[invoice.CustomerID], invoice.ID) {
				rc.invoiceQueues[invoice.CustomerID] = append(rc.invoiceQueues[invoice.CustomerID], invoice.ID)
			}
			continue
		}

		if rowType != "payment" {
			continue
		}

		if currentCustomer == nil {
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Customer %s was not found in the CRM. Payment skipped.", currentCustomerName))
			continue
		}

		amount := math.Abs(Amount(row.FieldFrom("debit", "amount")))
		if amount <= 0 {
			stats.Skipped++
			continue
		}

		if _, ok := rc.invoiceQueues[currentCustomer.ID]; !ok {
			ids, err := store.ListInvoiceIDsByCustomer(ctx, currentCustomer.ID)
			if err != nil {
				return stats, err
			}
			rc.invoiceQueues[currentCustomer.ID] = ids
		}

		processedAt := now
		if d := ParseDate(row.Field("date")); d != nil {
			processedAt = *d
		}
		paymentNumber := row.Field("num")
		memo := row.Field("memo")

		leftover, applied, err := applyCustomerPayment(ctx, store, rc, currentCustomer.ID, customerPayment{
			CustomerName:  currentCustomerName,
			Amount:        amount,
			ProcessedAt:   processedAt,
			PaymentNumber: paymentNumber,
			Memo:          memo,
			RowNumber:     rec.Number,
		}, now)
		if err != nil {
			return stats, err
		}
		stats.Created += applied

		if leftover > 0.01 {
			stats.Skipped++
			stats.Errors = append(stats.Errors, rowErrorf(rec.Number, "Could not apply $%.2f of payment for %s.", leftover, currentCustomerName))
		}
	}

	stats.Errors = sanitizeErrors(stats.Errors)
	return stats, nil
}

type customerPayment struct {
	CustomerName  string
	Amount        float64
	ProcessedAt   time.Time
	PaymentNumber string
	Memo          string
	RowNumber     int
}

// applyCustomerPayment settles a payment against the customer's invoice
// queue. Payments already recorded for the same invoice, day and amount
// are treated as applied so re-imports stay idempotent. Returns the
// unapplied remainder and the number of payment rows created.
func applyCustomerPayment(ctx context.Context, store TxStore, rc *runContext, customerID int64, p customerPayment, now time.Time) (float64, int, error) {
	remaining := p.Amount
	created := 0
	partIndex := 1
	baseProviderID := buildPaymentReference(p.CustomerName, p.PaymentNumber, p.ProcessedAt, p.Amount, p.RowNumber)

	queue := rc.invoiceQueues[customerID]
	defer func() { rc.invoiceQueues[customerID] = queue }()

	for remaining > 0.01 && len(queue) > 0 {
		invoice, err := store.GetInvoice(ctx, queue[0])
		if err != nil {
			if errors.Is(err, ar.ErrInvoiceNotFound) {
				queue = queue[1:]
				continue
			}
			return remaining, created, err
		}

		outstanding := invoice.Balance
		if outstanding < 0 {
			outstanding = 0
		}
		if outstanding <= 0.01 {
			queue = queue[1:]
			continue
		}

		applyAmount := outstanding
		if remaining < applyAmount {
			applyAmount = remaining
		}

		providerID := baseProviderID
		if partIndex > 1 {
			providerID = fmt.Sprintf("%s-PART%d", baseProviderID, partIndex)
		}
		for {
			exists, err := store.PaymentExistsByProviderRef(ctx, invoice.ID, providerID)
			if err != nil {
				return remaining, created, err
			}
			if !exists {
				break
			}
			partIndex++
			providerID = fmt.Sprintf("%s-PART%d", baseProviderID, partIndex)
		}

		duplicate, err := store.PaymentExistsSameDayAmount(ctx, invoice.ID, p.ProcessedAt, applyAmount)
		if err != nil {
			return remaining, created, err
		}
		if duplicate {
			remaining -= applyAmount
			if applyAmount >= outstanding-0.01 {
				queue = queue[1:]
			}
			continue
		}

		segments := []string{"Imported from QuickBooks payment data"}
		if p.PaymentNumber != "" {
			segments = append(segments, "QuickBooks payment #: "+p.PaymentNumber)
		}
		if p.Memo != "" {
			segments = append(segments, "Memo: "+p.Memo)
		}
		notes := strings.Join(segments, "\n")

		payment := ar.Payment{
			InvoiceID:             invoice.ID,
			PaymentProvider:       "offline",
			ProviderTransactionID: providerID,
			Amount:                applyAmount,
			Status:                ar.PaymentCompleted,
			PaymentMethodType:     "other",
			Notes:                 &notes,
			ProcessedAt:           p.ProcessedAt,
		}
		if err := store.InsertARPayment(ctx, &payment); err != nil {
			return remaining, created, err
		}

		paid, err := store.SumCompletedPayments(ctx, invoice.ID)
		if err != nil {
			return remaining, created, err
		}
		invoice.Recalculate(paid, now)
		if err := store.UpdateInvoice(ctx, invoice); err != nil {
			return remaining, created, err
		}

		created++
		remaining -= applyAmount
		partIndex++

		if invoice.Balance <= 0.01 {
			queue = queue[1:]
		}
	}

	return remaining, created, nil
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

var slugJunkPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slug(value string) string {
	return strings.Trim(slugJunkPattern.ReplaceAllString(strings.ToLower(value), "-"), "-")
}

// buildPaymentReference derives a provider transaction id for an imported
// payment so the same file never records it twice.
func buildPaymentReference(customerName, paymentNumber string, processedAt time.Time, amount float64, rowNumber int) string {
	base := slug(paymentNumber)
	if base == "" {
		base = slug(customerName)
	}
	if base == "" {
		base = "payment-" + strconv.Itoa(rowNumber) + "-" + strings.ReplaceAll(fmt.Sprintf("%.2f", amount), ".", "")
	}
	return "QB-PMT-" + strings.ToUpper(base) + "-" + processedAt.Format("20060102")
}
