package ap

import "time"

// Bill lifecycle statuses.
const (
	BillUnpaid  = "unpaid"
	BillPartial = "partial"
	BillOverdue = "overdue"
	BillPaid    = "paid"
)

// Vendor is a supplier the dealership buys parts and services from.
type Vendor struct {
	ID            int64
	VendorName    string
	CompanyName   *string
	ContactPerson *string
	Email         string
	Phone         *string
	Address       *string
	City          *string
	State         *string
	Zip           *string
	Country       *string
	PaymentTerms  *string
	TaxID         *string
	Notes         *string
	IsActive      bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Bill is a payable owed to a vendor.
type Bill struct {
	ID         int64
	VendorID   int64
	BillNumber string
	RefNumber  *string
	BillDate   *time.Time
	DueDate    *time.Time
	Subtotal   float64
	Tax        float64
	TaxName    *string
	Total      float64
	AmountPaid float64
	Balance    float64
	Status     string
	Terms      *string
	Memo       *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// BillItem is one expense line on a bill.
type BillItem struct {
	ID          int64
	BillID      int64
	AccountID   *int64
	Description string
	Quantity    float64
	Rate        float64
	Amount      float64
}

// BillPayment is money applied against a bill.
type BillPayment struct {
	ID            int64
	BillID        int64
	BankAccountID *int64
	PaymentDate   time.Time
	Amount        float64
	PaymentMethod string
	CheckNumber   *string
	Reference     *string
	Memo          *string
	CreatedAt     time.Time
}

// Recalculate refreshes paid amount, balance and status from the payment sum.
func (b *Bill) Recalculate(paymentsTotal float64, now time.Time) {
	b.AmountPaid = paymentsTotal
	b.Balance = b.Total - paymentsTotal
	if b.Balance < 0 {
		b.Balance = 0
	}
	b.Status = DetermineStatus(b.DueDate, b.Balance, b.AmountPaid, now)
}

// DetermineStatus derives the bill status. Paid wins over partial, partial
// over overdue, overdue over unpaid.
func DetermineStatus(dueDate *time.Time, balance, amountPaid float64, now time.Time) string {
	if balance <= 0.01 {
		return BillPaid
	}
	if amountPaid > 0.01 {
		return BillPartial
	}
	if dueDate != nil && dueDate.Before(now) {
		return BillOverdue
	}
	return BillUnpaid
}
