package ar

import (
	"context"
	"errors"
	"time"
)

var ErrInvalidAmount = errors.New("payment amount must be positive")

// Service holds accounts-receivable business rules.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// InvoiceWithDetails bundles an invoice with its lines and payments.
type InvoiceWithDetails struct {
	Invoice  Invoice       `json:"invoice"`
	Items    []InvoiceItem `json:"items"`
	Payments []Payment     `json:"payments"`
}

// RecordPaymentInput describes a manual payment against an invoice.
type RecordPaymentInput struct {
	InvoiceID             int64      `json:"invoice_id" validate:"required"`
	Amount                float64    `json:"amount" validate:"required,gt=0"`
	PaymentProvider       string     `json:"payment_provider" validate:"required"`
	ProviderTransactionID string     `json:"provider_transaction_id" validate:"required"`
	PaymentMethodType     string     `json:"payment_method_type" validate:"required"`
	Notes                 *string    `json:"notes"`
	ProcessedAt           *time.Time `json:"processed_at"`
}

func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	return s.repo.ListCustomers(ctx)
}

func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

func (s *Service) ListCustomerInvoices(ctx context.Context, customerID int64) ([]Invoice, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListInvoices(ctx, customerID)
}

func (s *Service) ListCustomerQuotes(ctx context.Context, customerID int64) ([]Quote, error) {
	if _, err := s.repo.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	return s.repo.ListQuotes(ctx, customerID)
}

func (s *Service) GetInvoiceWithDetails(ctx context.Context, invoiceID int64) (InvoiceWithDetails, error) {
	invoice, err := s.repo.GetInvoice(ctx, invoiceID)
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	items, err := s.repo.ListInvoiceItems(ctx, invoiceID)
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	payments, err := s.repo.ListPayments(ctx, invoiceID)
	if err != nil {
		return InvoiceWithDetails{}, err
	}
	return InvoiceWithDetails{Invoice: invoice, Items: items, Payments: payments}, nil
}

func (s *Service) GetQuote(ctx context.Context, id int64) (Quote, error) {
	return s.repo.GetQuote(ctx, id)
}

// RecordPayment applies a completed payment to an invoice and recomputes its
// paid amount, balance and status from the stored payment sum.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (Invoice, error) {
	if input.Amount <= 0 {
		return Invoice{}, ErrInvalidAmount
	}
	processedAt := s.now()
	if input.ProcessedAt != nil {
		processedAt = *input.ProcessedAt
	}

	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoice(ctx, input.InvoiceID)
		if err != nil {
			return err
		}
		payment := Payment{
			InvoiceID:             invoice.ID,
			PaymentProvider:       input.PaymentProvider,
			ProviderTransactionID: input.ProviderTransactionID,
			Amount:                input.Amount,
			Status:                PaymentCompleted,
			PaymentMethodType:     input.PaymentMethodType,
			Notes:                 input.Notes,
			ProcessedAt:           processedAt,
		}
		if err := tx.InsertPayment(ctx, &payment); err != nil {
			return err
		}
		paid, err := tx.SumCompletedPayments(ctx, invoice.ID)
		if err != nil {
			return err
		}
		invoice.Recalculate(paid, s.now())
		if err := tx.UpdateInvoiceTotals(ctx, invoice); err != nil {
			return err
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	return updated, nil
}
