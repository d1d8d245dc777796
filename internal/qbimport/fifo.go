package qbimport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/harborline/harborline/internal/accounting"
	"github.com/harborline/harborline/internal/ap"
)

// fifoAttemptCap bounds the application loop so a bill that never drains
// cannot spin the import forever.
const fifoAttemptCap = 1000

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// InitialVendorBillQueue seeds a vendor's payment queue with open bills in
// bill date order.
func InitialVendorBillQueue(ctx context.Context, store TxStore, vendorID int64) ([]billQueueEntry, error) {
	bills, err := store.ListOpenBills(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	queue := make([]billQueueEntry, 0, len(bills))
	for _, b := range bills {
		queue = append(queue, billQueueEntry{BillID: b.ID, Remaining: round2(b.Balance)})
	}
	return queue, nil
}

// VendorBillInput is one bill-producing vendor transaction row.
type VendorBillInput struct {
	Vendor     ap.Vendor
	VendorName string
	Amount     float64
	Date       *time.Time
	Reference  string
	Memo       string
	SplitLabel string
}

// CreateOrUpdateVendorBill materializes a vendor transaction row as a bill.
// The bill number is derived from the row content so re-importing the same
// file updates rather than duplicates. Paid-down bills keep their balance.
func CreateOrUpdateVendorBill(ctx context.Context, store TxStore, rc *runContext, in VendorBillInput, now time.Time) (ap.Bill, bool, error) {
	parts := []string{"BILL", in.VendorName}
	if in.Reference != "" {
		parts = append(parts, in.Reference)
	}
	if in.Date != nil {
		parts = append(parts, in.Date.Format("20060102"))
	} else {
		parts = append(parts, "00000000")
	}
	parts = append(parts, fmt.Sprintf("%.2f", in.Amount), hashN(in.SplitLabel+in.Memo, 8))
	billNumber := FormatBillNumber(strings.Join(parts, "-"))

	bill, found, err := store.FindBillByNumber(ctx, billNumber)
	if err != nil {
		return ap.Bill{}, false, err
	}
	created := !found
	if created {
		bill = ap.Bill{BillNumber: billNumber, Status: ap.BillUnpaid}
	}

	billDate := now
	if in.Date != nil {
		billDate = *in.Date
	}
	bill.VendorID = in.Vendor.ID
	bill.BillDate = &billDate
	bill.DueDate = &billDate
	if in.Reference != "" {
		ref := in.Reference
		bill.RefNumber = &ref
	} else {
		bill.RefNumber = nil
	}
	bill.Subtotal = in.Amount
	bill.Tax = 0
	bill.TaxName = nil
	bill.Total = in.Amount

	if created || bill.AmountPaid <= 0.01 {
		bill.Balance = bill.Total - bill.AmountPaid
		if bill.Balance < 0 {
			bill.Balance = 0
		}
	}

	memo := AppendNotes(deref(bill.Memo), "Imported from QuickBooks vendor transactions.", created)
	if in.Memo != "" {
		memo = AppendNotes(memo, in.Memo, false)
	}
	bill.Memo = &memo

	if created {
		err = store.InsertBill(ctx, &bill)
	} else {
		err = store.UpdateBill(ctx, bill)
	}
	if err != nil {
		return ap.Bill{}, false, err
	}

	descriptionBase := in.Memo
	if descriptionBase == "" {
		descriptionBase = NormalizeAccountLabel(in.SplitLabel)
	}
	if descriptionBase == "" {
		descriptionBase = "Imported expense"
	}
	expense, err := resolveExpenseAccount(ctx, store, rc, in.SplitLabel)
	if err != nil {
		return ap.Bill{}, false, err
	}
	item := ap.BillItem{
		BillID:      bill.ID,
		Description: "QB Vendor Import: " + descriptionBase,
		Quantity:    1,
		Rate:        in.Amount,
		Amount:      in.Amount,
	}
	if expense != nil {
		item.AccountID = &expense.ID
	}
	if err := store.UpsertBillItem(ctx, item); err != nil {
		return ap.Bill{}, false, err
	}

	bill, err = store.GetBill(ctx, bill.ID)
	if err != nil {
		return ap.Bill{}, false, err
	}
	return bill, created, nil
}

// VendorPaymentInput is one payment-producing vendor transaction row.
type VendorPaymentInput struct {
	Vendor     ap.Vendor
	Amount     float64
	Date       *time.Time
	Reference  string
	Memo       string
	SplitLabel string
	Bank       *accounting.BankAccount
	Type       string
}

// ApplyVendorPayment drains a payment against the vendor's open-bill queue
// oldest first. When the queue runs dry the leftover becomes a synthetic
// expense bill that the payment then settles. Reports whether any of the
// amount landed.
func ApplyVendorPayment(ctx context.Context, store TxStore, rc *runContext, queue *[]billQueueEntry, in VendorPaymentInput, stats *VendorTxSummary, now time.Time) (bool, error) {
	remaining := round2(in.Amount)

	for attempts := 0; remaining > 0 && attempts < fifoAttemptCap; attempts++ {
		if len(*queue) == 0 {
			expenseRef := ""
			if in.Reference != "" {
				expenseRef = "EXP-" + in.Reference
			}
			expenseBill, _, err := CreateOrUpdateVendorBill(ctx, store, rc, VendorBillInput{
				Vendor:     in.Vendor,
				VendorName: in.Vendor.VendorName,
				Amount:     remaining,
				Date:       in.Date,
				Reference:  expenseRef,
				Memo:       in.Memo,
				SplitLabel: in.SplitLabel,
			}, now)
			if err != nil {
				return false, err
			}
			stats.ExpensesCreated++
			*queue = append(*queue, billQueueEntry{BillID: expenseBill.ID, Remaining: round2(expenseBill.Balance)})
		}

		entry := &(*queue)[0]
		bill, err := store.GetBill(ctx, entry.BillID)
		if err != nil {
			return false, err
		}
		billRemaining := round2(bill.Balance)
		if billRemaining <= 0.01 {
			*queue = (*queue)[1:]
			continue
		}

		toApply := billRemaining
		if remaining < toApply {
			toApply = remaining
		}

		method := "ach"
		if strings.Contains(in.Type, "check") {
			method = "check"
		}
		paymentDate := now
		if in.Date != nil {
			paymentDate = *in.Date
		}
		payment := ap.BillPayment{
			BillID:        bill.ID,
			PaymentDate:   paymentDate,
			Amount:        toApply,
			PaymentMethod: method,
		}
		if in.Bank != nil {
			payment.BankAccountID = &in.Bank.ID
		}
		if in.Reference != "" {
			ref := in.Reference
			payment.CheckNumber = &ref
			payment.Reference = &ref
		}
		if in.Memo != "" {
			memo := in.Memo
			payment.Memo = &memo
		}
		if err := store.InsertBillPayment(ctx, &payment); err != nil {
			return false, err
		}
		stats.PaymentsCreated++

		paid, err := store.SumBillPayments(ctx, bill.ID)
		if err != nil {
			return false, err
		}
		bill.Recalculate(paid, now)
		if err := store.UpdateBill(ctx, bill); err != nil {
			return false, err
		}

		remaining = round2(remaining - toApply)
		entry.Remaining = round2(bill.Balance)
		if entry.Remaining <= 0.01 {
			*queue = (*queue)[1:]
		}
	}

	return in.Amount > 0 && remaining < round2(in.Amount), nil
}
