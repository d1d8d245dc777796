package ap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	vendors  map[int64]Vendor
	bills    map[int64]*Bill
	payments map[int64][]BillPayment
	nextID   int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		vendors:  make(map[int64]Vendor),
		bills:    make(map[int64]*Bill),
		payments: make(map[int64][]BillPayment),
		nextID:   1,
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) ListVendors(context.Context) ([]Vendor, error) { return nil, nil }

func (m *memoryRepo) GetVendor(_ context.Context, id int64) (Vendor, error) {
	v, ok := m.vendors[id]
	if !ok {
		return Vendor{}, ErrVendorNotFound
	}
	return v, nil
}

func (m *memoryRepo) ListBills(_ context.Context, vendorID int64) ([]Bill, error) {
	var out []Bill
	for _, b := range m.bills {
		if b.VendorID == vendorID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (m *memoryRepo) GetBill(_ context.Context, id int64) (Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return Bill{}, ErrBillNotFound
	}
	return *b, nil
}

func (m *memoryRepo) ListBillItems(context.Context, int64) ([]BillItem, error) { return nil, nil }

func (m *memoryRepo) ListBillPayments(_ context.Context, billID int64) ([]BillPayment, error) {
	return m.payments[billID], nil
}

func (m *memoryRepo) InsertBillPayment(_ context.Context, payment *BillPayment) error {
	payment.ID = m.nextID
	m.nextID++
	m.payments[payment.BillID] = append(m.payments[payment.BillID], *payment)
	return nil
}

func (m *memoryRepo) SumBillPayments(_ context.Context, billID int64) (float64, error) {
	var sum float64
	for _, p := range m.payments[billID] {
		sum += p.Amount
	}
	return sum, nil
}

func (m *memoryRepo) UpdateBillTotals(_ context.Context, bill Bill) error {
	stored, ok := m.bills[bill.ID]
	if !ok {
		return ErrBillNotFound
	}
	stored.AmountPaid = bill.AmountPaid
	stored.Balance = bill.Balance
	stored.Status = bill.Status
	return nil
}

func (m *memoryRepo) addBill(b Bill) *Bill {
	b.ID = m.nextID
	m.nextID++
	m.bills[b.ID] = &b
	return m.bills[b.ID]
}

func fixedService(repo *memoryRepo, now time.Time) *Service {
	svc := NewService(repo)
	svc.now = func() time.Time { return now }
	return svc
}

func TestRecordPaymentPartialThenPaid(t *testing.T) {
	repo := newMemoryRepo()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.AddDate(0, 1, 0)
	bill := repo.addBill(Bill{VendorID: 1, BillNumber: "QB-BILL-100", Total: 500, Balance: 500, Status: BillUnpaid, DueDate: &due})
	svc := fixedService(repo, now)

	updated, err := svc.RecordPayment(context.Background(), RecordPaymentInput{
		BillID: bill.ID, Amount: 200, PaymentMethod: "check",
	})
	require.NoError(t, err)
	require.Equal(t, BillPartial, updated.Status)
	require.InDelta(t, 300, updated.Balance, 0.001)
	require.InDelta(t, 200, updated.AmountPaid, 0.001)

	updated, err = svc.RecordPayment(context.Background(), RecordPaymentInput{
		BillID: bill.ID, Amount: 300, PaymentMethod: "ach",
	})
	require.NoError(t, err)
	require.Equal(t, BillPaid, updated.Status)
	require.InDelta(t, 0, updated.Balance, 0.001)
}

func TestRecordPaymentRejectsNonPositive(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{BillID: 1, Amount: 0, PaymentMethod: "check"})
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRecordPaymentUnknownBill(t *testing.T) {
	svc := NewService(newMemoryRepo())

	_, err := svc.RecordPayment(context.Background(), RecordPaymentInput{BillID: 42, Amount: 10, PaymentMethod: "check"})
	require.ErrorIs(t, err, ErrBillNotFound)
}

func TestDetermineStatusPrecedence(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -10)
	future := now.AddDate(0, 0, 10)

	require.Equal(t, BillPaid, DetermineStatus(&past, 0.009, 500, now))
	require.Equal(t, BillPartial, DetermineStatus(&past, 300, 200, now))
	require.Equal(t, BillOverdue, DetermineStatus(&past, 500, 0, now))
	require.Equal(t, BillUnpaid, DetermineStatus(&future, 500, 0, now))
	require.Equal(t, BillUnpaid, DetermineStatus(nil, 500, 0, now))
}
