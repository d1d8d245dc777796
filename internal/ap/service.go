package ap

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidAmount = errors.New("payment amount must be positive")

// Service holds accounts-payable business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// BillWithDetails bundles a bill with its lines and payments.
type BillWithDetails struct {
	Bill     Bill          `json:"bill"`
	Items    []BillItem    `json:"items"`
	Payments []BillPayment `json:"payments"`
}

// RecordPaymentInput describes a manual payment against a bill.
type RecordPaymentInput struct {
	BillID        int64      `json:"bill_id" validate:"required"`
	BankAccountID *int64     `json:"bank_account_id"`
	PaymentDate   *time.Time `json:"payment_date"`
	Amount        float64    `json:"amount" validate:"required,gt=0"`
	PaymentMethod string     `json:"payment_method" validate:"required,oneof=check ach cash card"`
	CheckNumber   *string    `json:"check_number"`
	Reference     *string    `json:"reference"`
	Memo          *string    `json:"memo"`
}

func (s *Service) ListVendors(ctx context.Context) ([]Vendor, error) {
	return s.repo.ListVendors(ctx)
}

func (s *Service) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	return s.repo.GetVendor(ctx, id)
}

func (s *Service) ListVendorBills(ctx context.Context, vendorID int64) ([]Bill, error) {
	if _, err := s.repo.GetVendor(ctx, vendorID); err != nil {
		return nil, err
	}
	return s.repo.ListBills(ctx, vendorID)
}

func (s *Service) GetBillWithDetails(ctx context.Context, billID int64) (BillWithDetails, error) {
	bill, err := s.repo.GetBill(ctx, billID)
	if err != nil {
		return BillWithDetails{}, err
	}
	items, err := s.repo.ListBillItems(ctx, billID)
	if err != nil {
		return BillWithDetails{}, err
	}
	payments, err := s.repo.ListBillPayments(ctx, billID)
	if err != nil {
		return BillWithDetails{}, err
	}
	return BillWithDetails{Bill: bill, Items: items, Payments: payments}, nil
}

// RecordPayment applies a payment to a bill and recomputes its paid amount,
// balance and status from the stored payment sum.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Bill, error) {
	if input.Amount <= 0 {
		return Bill{}, ErrInvalidAmount
	}
	paymentDate := s.now()
	if input.PaymentDate != nil {
		paymentDate = *input.PaymentDate
	}

	var updated Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBill(ctx, input.BillID)
		if err != nil {
			return err
		}
		payment := BillPayment{
			BillID:        bill.ID,
			BankAccountID: input.BankAccountID,
			PaymentDate:   paymentDate,
			Amount:        input.Amount,
			PaymentMethod: input.PaymentMethod,
			CheckNumber:   input.CheckNumber,
			Reference:     input.Reference,
			Memo:          input.Memo,
		}
		if err := tx.InsertBillPayment(ctx, &payment); err != nil {
			return err
		}
		paid, err := tx.SumBillPayments(ctx, bill.ID)
		if err != nil {
			return err
		}
		bill.Recalculate(paid, s.now())
		if err := tx.UpdateBillTotals(ctx, bill); err != nil {
			return err
		}
		updated = bill
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	return updated, nil
}
