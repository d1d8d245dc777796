package ar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	customers map[int64]Customer
	invoices  map[int64]*Invoice
	payments  map[int64][]Payment
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: make(map[int64]Customer),
		invoices:  make(map[int64]*Invoice),
		payments:  make(map[int64][]Payment),
		nextID:    1,
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) ListCustomers(context.Context) ([]Customer, error) { return nil, nil }

func (m *memoryRepo) GetCustomer(_ context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, ErrCustomerNotFound
	}
	return c, nil
}

func (m *memoryRepo) ListInvoices(_ context.Context, customerID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, ErrInvoiceNotFound
	}
	return *inv, nil
}

func (m *memoryRepo) ListInvoiceItems(context.Context, int64) ([]InvoiceItem, error) {
	return nil, nil
}

func (m *memoryRepo) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	return m.payments[invoiceID], nil
}

func (m *memoryRepo) ListQuotes(context.Context, int64) ([]Quote, error) { return nil, nil }

func (m *memoryRepo) GetQuote(context.Context, int64) (Quote, error) {
	return Quote{}, ErrQuoteNotFound
}

func (m *memoryRepo) InsertPayment(_ context.Context, payment *Payment) error {
	payment.ID = m.nextID
	m.nextID++
	m.payments[payment.InvoiceID] = append(m.payments[payment.InvoiceID], *payment)
	return nil
}

func (m *memoryRepo) SumCompletedPayments(_ context.Context, invoiceID int64) (float64, error) {
	var sum float64
	for _, p := range m.payments[invoiceID] {
		if p.Status == PaymentCompleted {
			sum += p.Amount
		}
	}
	return sum, nil
}

func (m *memoryRepo) UpdateInvoiceTotals(_ context.Context, invoice Invoice) error {
	stored, ok := m.invoices[invoice.ID]
	if !ok {
		return ErrInvoiceNotFound
	}
	stored.PaidAmount = invoice.PaidAmount
	stored.Balance = invoice.Balance
	stored.Status = invoice.Status
	return nil
}

func (m *memoryRepo) addInvoice(inv Invoice) *Invoice {
	inv.ID = m.nextID
	m.nextID++
	m.invoices[inv.ID] = &inv
	return m.invoices[inv.ID]
}

func TestRecordPaymentSettlesInvoice(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, 15)
	inv := repo.addInvoice(Invoice{CustomerID: 1, InvoiceNumber: "QB-INV-77", Total: 1200, Balance: 1200, Status: InvoiceSent, DueDate: &due})

	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	updated, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:             inv.ID,
		Amount:                1200,
		PaymentProvider:       "offline",
		ProviderTransactionID: "TXN-1",
		PaymentMethodType:     "other",
	})
	require.NoError(t, err)
	require.Equal(t, InvoicePaid, updated.Status)
	require.InDelta(t, 0, updated.Balance, 0.001)
	require.InDelta(t, 1200, updated.PaidAmount, 0.001)
}

func TestRecordPaymentLeavesOverdueWhenShort(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2025, 7, 15, 9, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 0, -5)
	inv := repo.addInvoice(Invoice{CustomerID: 1, InvoiceNumber: "QB-INV-78", Total: 800, Balance: 800, Status: InvoiceSent, DueDate: &due})

	svc := NewService(repo)
	svc.now = func() time.Time { return now }

	updated, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		InvoiceID:             inv.ID,
		Amount:                100,
		PaymentProvider:       "offline",
		ProviderTransactionID: "TXN-2",
		PaymentMethodType:     "other",
	})
	require.NoError(t, err)
	require.Equal(t, InvoiceOverdue, updated.Status)
	require.InDelta(t, 700, updated.Balance, 0.001)
}

func TestDetermineQuoteStatus(t *testing.T) {
	require.Equal(t, QuoteAccepted, DetermineQuoteStatus(0, false))
	require.Equal(t, QuoteAccepted, DetermineQuoteStatus(0.009, true))
	require.Equal(t, QuoteSent, DetermineQuoteStatus(50, true))
	require.Equal(t, QuoteExpired, DetermineQuoteStatus(50, false))
}

func TestDetermineInvoiceStatus(t *testing.T) {
	now := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -1)
	future := now.AddDate(0, 0, 1)

	require.Equal(t, InvoicePaid, DetermineInvoiceStatus(&past, 0.005, now))
	require.Equal(t, InvoiceOverdue, DetermineInvoiceStatus(&past, 10, now))
	require.Equal(t, InvoiceSent, DetermineInvoiceStatus(&future, 10, now))
	require.Equal(t, InvoiceSent, DetermineInvoiceStatus(nil, 10, now))
}
