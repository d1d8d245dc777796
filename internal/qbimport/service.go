package qbimport

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Service runs QuickBooks import files. Each file is processed inside a
// single repeatable-read transaction so a row error deep in the file
// never leaves a half-imported ledger behind.
type Service struct {
	store      Store
	logger     *slog.Logger
	now        func() time.Time
	invalidate func(context.Context) error
}

// NewService builds Service instance.
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{store: store, logger: logger, now: time.Now}
}

// InvalidateAfterImport registers a callback run after every successful
// import, used to drop cached reports built from the books.
func (s *Service) InvalidateAfterImport(fn func(context.Context) error) {
	s.invalidate = fn
}

func (s *Service) run(ctx context.Context, kind string, fn func(context.Context, TxStore, *runContext) error) error {
	runID := uuid.NewString()
	logger := s.logger.With("import", kind, "run_id", runID)
	logger.Info("import started")
	start := s.now()

	err := s.store.WithTx(ctx, func(ctx context.Context, tx TxStore) error {
		rc := newRunContext()
		return fn(ctx, tx, rc)
	})
	if err != nil {
		logger.Error("import failed", "error", err, "elapsed", s.now().Sub(start))
		return err
	}
	logger.Info("import finished", "elapsed", s.now().Sub(start))

	if s.invalidate != nil {
		if err := s.invalidate(ctx); err != nil {
			logger.Warn("report cache invalidation failed", "error", err)
		}
	}
	return nil
}

// ImportChartOfAccounts loads a chart of accounts export.
func (s *Service) ImportChartOfAccounts(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "chart_of_accounts", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportChartOfAccounts(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportCustomers loads a customer contact list export.
func (s *Service) ImportCustomers(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "customers", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportCustomers(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportVendors loads a vendor contact list export.
func (s *Service) ImportVendors(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "vendors", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportVendors(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportItems loads an item list export as parts, services or both.
func (s *Service) ImportItems(ctx context.Context, file io.Reader, importAs string) (ItemsSummary, error) {
	var summary ItemsSummary
	err := s.run(ctx, "items", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportItems(ctx, tx, rc, r, importAs, s.now())
		return err
	})
	return summary, err
}

// ImportInvoices loads an invoice report export.
func (s *Service) ImportInvoices(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "invoices", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportInvoices(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportEstimates loads an estimate report export as quotes.
func (s *Service) ImportEstimates(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "estimates", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportEstimates(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportBills loads a bill report export.
func (s *Service) ImportBills(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "bills", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportBills(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportVendorTransactions loads a vendor transaction detail report.
func (s *Service) ImportVendorTransactions(ctx context.Context, file io.Reader) (VendorTxSummary, error) {
	var summary VendorTxSummary
	err := s.run(ctx, "vendor_transactions", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportVendorTransactions(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportPayments loads a payments-by-customer report.
func (s *Service) ImportPayments(ctx context.Context, file io.Reader) (PaymentsSummary, error) {
	var summary PaymentsSummary
	err := s.run(ctx, "payments", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportPayments(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// ImportGeneralLedger loads a general ledger detail report, replacing the
// previous QuickBooks sourced entries.
func (s *Service) ImportGeneralLedger(ctx context.Context, file io.Reader) (Summary, error) {
	var summary Summary
	err := s.run(ctx, "general_ledger", func(ctx context.Context, tx TxStore, rc *runContext) error {
		r, err := NewReader(file)
		if err != nil {
			return err
		}
		summary, err = ImportGeneralLedger(ctx, tx, rc, r, s.now())
		return err
	})
	return summary, err
}

// RestoreBackup loads a JSON backup file.
func (s *Service) RestoreBackup(ctx context.Context, importType string, payload []byte) (BackupSummary, error) {
	var summary BackupSummary
	err := s.run(ctx, "backup", func(ctx context.Context, tx TxStore, _ *runContext) error {
		var err error
		summary, err = RestoreBackup(ctx, tx, importType, payload)
		return err
	})
	return summary, err
}
