package ar

import "time"

// Invoice lifecycle statuses.
const (
	InvoiceSent    = "sent"
	InvoiceOverdue = "overdue"
	InvoicePaid    = "paid"
)

// Quote lifecycle statuses.
const (
	QuoteSent     = "sent"
	QuoteAccepted = "accepted"
	QuoteExpired  = "expired"
)

// Payment provider record states.
const (
	PaymentCompleted = "completed"
)

// Customer is a buyer in the dealership CRM.
type Customer struct {
	ID             int64
	Name           string
	Email          string
	Phone          *string
	Address        *string
	City           *string
	State          *string
	Zip            *string
	Country        *string
	BillingAddress *string
	BillingCity    *string
	BillingState   *string
	BillingZip     *string
	BillingCountry *string
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Invoice is a receivable owed by a customer.
type Invoice struct {
	ID            int64
	CustomerID    int64
	InvoiceNumber string
	IssueDate     *time.Time
	DueDate       *time.Time
	Subtotal      float64
	TaxRate       float64
	TaxAmount     float64
	TaxName       *string
	Total         float64
	PaidAmount    float64
	Balance       float64
	Status        string
	Notes         *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InvoiceItem is one line on an invoice.
type InvoiceItem struct {
	ID          int64
	InvoiceID   int64
	ItemType    string
	Description string
	Quantity    float64
	UnitPrice   float64
	Discount    float64
	Total       float64
	SortOrder   int
}

// Payment is money received against an invoice.
type Payment struct {
	ID                    int64
	InvoiceID             int64
	PaymentProvider       string
	ProviderTransactionID string
	Amount                float64
	Status                string
	PaymentMethodType     string
	Notes                 *string
	ProcessedAt           time.Time
	CreatedAt             time.Time
}

// Quote is an estimate offered to a customer.
type Quote struct {
	ID             int64
	CustomerID     int64
	QuoteNumber    string
	ExpirationDate *time.Time
	Subtotal       float64
	TaxRate        float64
	TaxAmount      float64
	TaxName        *string
	Total          float64
	Status         string
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// QuoteItem is one line on a quote.
type QuoteItem struct {
	ID          int64
	QuoteID     int64
	ItemType    string
	Description string
	Quantity    float64
	UnitPrice   float64
	Discount    float64
	Total       float64
	SortOrder   int
}

// Part is a stocked inventory item offered for sale.
type Part struct {
	ID                int64
	SKU               string
	Name              string
	Description       *string
	Cost              float64
	Price             float64
	StockQuantity     int
	MinStockLevel     int
	VendorPartNumbers *string
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ServiceItem is a labor or service offering billed by rate.
type ServiceItem struct {
	ID          int64
	Name        string
	Description *string
	HourlyRate  float64
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Recalculate refreshes paid amount, balance and status from the completed
// payment sum.
func (inv *Invoice) Recalculate(paymentsTotal float64, now time.Time) {
	inv.PaidAmount = paymentsTotal
	inv.Balance = inv.Total - paymentsTotal
	if inv.Balance < 0 {
		inv.Balance = 0
	}
	inv.Status = DetermineInvoiceStatus(inv.DueDate, inv.Balance, now)
}

// DetermineInvoiceStatus derives the invoice status from the open balance.
func DetermineInvoiceStatus(dueDate *time.Time, balance float64, now time.Time) string {
	if balance <= 0.01 {
		return InvoicePaid
	}
	if dueDate != nil && dueDate.Before(now) {
		return InvoiceOverdue
	}
	return InvoiceSent
}

// DetermineQuoteStatus derives the quote status from the open balance and the
// active flag.
func DetermineQuoteStatus(openBalance float64, isActive bool) string {
	if openBalance <= 0.01 {
		return QuoteAccepted
	}
	if isActive {
		return QuoteSent
	}
	return QuoteExpired
}
