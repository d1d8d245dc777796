package qbimport

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harborline/harborline/internal/accounting"
	"github.com/harborline/harborline/internal/ap"
	"github.com/harborline/harborline/internal/ar"
)

func mustDate(t *testing.T, value string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return d
}

func newTestReader(t *testing.T, csv string) *Reader {
	t.Helper()
	r, err := NewReader(strings.NewReader(csv))
	require.NoError(t, err)
	return r
}

func TestImportChartOfAccounts(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Account,Type,Detail Type,Description,Balance Total\n" +
		"Checking,Bank,Checking,Main operating account,12500.00\n" +
		"Expenses:Fuel,Expense,,,\n" +
		"Total Checking,,,,12500.00\n"

	stats, err := ImportChartOfAccounts(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Created)
	require.Equal(t, 0, stats.Updated)
	require.Equal(t, 1, stats.Skipped)
	require.Empty(t, stats.Errors)

	require.Len(t, store.accounts, 3)
	checking := store.accountByName("Checking")
	require.NotNil(t, checking)
	require.Equal(t, "asset", checking.AccountType)
	require.Equal(t, "bank", checking.DetailType)
	require.InDelta(t, 12500, checking.CurrentBalance, 0.001)

	fuel := store.accountByName("Fuel")
	require.NotNil(t, fuel)
	require.True(t, fuel.IsSubAccount)

	_, found, err := store.FindBankAccountByChartID(ctx, checking.ID)
	require.NoError(t, err)
	require.True(t, found)
}

func TestImportCustomers(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Customer,Main Email,Main Phone,Bill to 1,Bill to 2\n" +
		"Harbor Marine,ap@harbormarine.test,555-0100,200 Dock St,\"Annapolis, MD 21401\"\n" +
		"Total Harbor Marine,,,,\n"

	stats, err := ImportCustomers(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 1, stats.Skipped)

	customer, found, err := store.FindCustomerByLowerName(ctx, "harbor marine")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "ap@harbormarine.test", customer.Email)
	require.NotNil(t, customer.BillingCity)
	require.Equal(t, "Annapolis", *customer.BillingCity)
	require.NotNil(t, customer.BillingZip)
	require.Equal(t, "21401", *customer.BillingZip)
	require.NotNil(t, customer.Notes)
	require.Contains(t, *customer.Notes, "Imported from QuickBooks on")
}

func TestImportVendors(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Vendor,Company,Main Email,Main Phone\n" +
		"Bay Supply,Bay Supply Co,orders@baysupply.test,555-0200\n"

	stats, err := ImportVendors(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Created)

	vendor, found, err := store.FindVendorByLowerName(ctx, "bay supply")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "orders@baysupply.test", vendor.Email)
	require.NotNil(t, vendor.CompanyName)
	require.Equal(t, "Bay Supply Co", *vendor.CompanyName)
	require.True(t, vendor.IsActive)
}

func TestImportItems(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Item,Description,Type,Cost,Price,Quantity On Hand,Reorder Pt Min,Preferred Vendor\n" +
		"PROP-3B,Bronze propeller,Inventory Part,150.00,295.00,12,3,Bay Supply\n" +
		"LABOR,Rigging labor,Service,,95.00,,,\n" +
		"SUB,,Subtotal,,,,,\n"

	stats, err := ImportItems(ctx, store, newRunContext(), newTestReader(t, csv), ImportAsBoth, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PartsImported)
	require.Equal(t, 1, stats.ServicesImported)
	require.Equal(t, 1, stats.Skipped)

	part, found, err := store.FindPartBySKU(ctx, "PROP-3B")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Bronze propeller", part.Name)
	require.InDelta(t, 295, part.Price, 0.001)
	require.Equal(t, 12, part.StockQuantity)
	require.Equal(t, 3, part.MinStockLevel)

	svc, found, err := store.FindServiceByName(ctx, "Rigging labor")
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 95, svc.HourlyRate, 0.001)
}

func TestImportItemsPartsOnly(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Item,Description,Type,Cost,Price\n" +
		"PROP-3B,Bronze propeller,Inventory Part,150.00,295.00\n" +
		"LABOR,Rigging labor,Service,,95.00\n"

	stats, err := ImportItems(ctx, store, newRunContext(), newTestReader(t, csv), ImportAsParts, now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.PartsImported)
	require.Equal(t, 0, stats.ServicesImported)
	require.Equal(t, 1, stats.Skipped)
	require.Empty(t, store.services)
}

func TestImportInvoices(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Customer,Num,Date,Due Date,Aging,Amount,Open Balance\n" +
		"Harbor Marine,1042,3/14/2024,4/14/2024,45,1000.00,250.00\n" +
		"Total Harbor Marine,,,,,,\n"

	stats, err := ImportInvoices(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Created)
	require.Equal(t, 1, stats.Skipped)

	invoice, found, err := store.FindInvoiceByNumber(ctx, "QB-INV-1042")
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 1000, invoice.Total, 0.001)
	require.InDelta(t, 750, invoice.PaidAmount, 0.001)
	require.InDelta(t, 250, invoice.Balance, 0.001)
	require.Equal(t, ar.InvoiceOverdue, invoice.Status)
	require.NotNil(t, invoice.Notes)
	require.Contains(t, *invoice.Notes, "Imported from QuickBooks invoice #1042")
	require.Contains(t, *invoice.Notes, "Open balance: 250.00")

	items := store.invoiceItems[invoice.ID]
	require.Len(t, items, 1)
	require.Equal(t, "Imported from QuickBooks invoice #1042", items[0].Description)
	require.InDelta(t, 1000, items[0].Total, 0.001)

	// Re-importing the same file updates in place.
	stats, err = ImportInvoices(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Created)
	require.Equal(t, 1, stats.Updated)
	require.Len(t, store.invoices, 1)
	require.Len(t, store.invoiceItems[invoice.ID], 1)
}

func TestImportInvoicesBackfillsTax(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Customer,Num,Date,Amount,Open Balance,Tax Amount\n" +
		"Harbor Marine,1050,3/14/2024,1082.50,0.00,82.50\n"

	_, err := ImportInvoices(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)

	invoice, found, err := store.FindInvoiceByNumber(ctx, "QB-INV-1050")
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 1000, invoice.Subtotal, 0.001)
	require.InDelta(t, 82.5, invoice.TaxAmount, 0.001)
	require.InDelta(t, 8.25, invoice.TaxRate, 0.001)
	require.Equal(t, ar.InvoicePaid, invoice.Status)
}

func TestImportEstimates(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Customer,Num,Date,Amount,Open Balance,Active Estimate\n" +
		"Harbor Marine,88,3/14/2024,5000.00,5000.00,X\n" +
		"Bay Yachts,89,3/14/2024,2000.00,0.00,\n"

	stats, err := ImportEstimates(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Created)

	open, found, err := store.FindQuoteByNumber(ctx, "QB-EST-88")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ar.QuoteSent, open.Status)
	require.NotNil(t, open.ExpirationDate)
	require.Equal(t, mustDate(t, "2024-04-13"), *open.ExpirationDate)
	require.InDelta(t, 5000, open.Total, 0.001)

	accepted, found, err := store.FindQuoteByNumber(ctx, "QB-EST-89")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, ar.QuoteAccepted, accepted.Status)
}

func TestImportBills(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := "Vendor,Num,Date,Due Date,Amount,Open Balance,Terms\n" +
		"Bay Supply,7001,3/01/2024,3/31/2024,450.00,450.00,Net 30\n"

	stats, err := ImportBills(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Created)

	bill, found, err := store.FindBillByNumber(ctx, "QB-BILL-7001")
	require.NoError(t, err)
	require.True(t, found)
	require.InDelta(t, 450, bill.Total, 0.001)
	require.InDelta(t, 450, bill.Balance, 0.001)
	require.InDelta(t, 0, bill.AmountPaid, 0.001)
	require.Equal(t, ap.BillOverdue, bill.Status)
	require.NotNil(t, bill.Terms)
	require.Equal(t, "Net 30", *bill.Terms)
	require.Len(t, store.billItems[bill.ID], 1)
}

func TestImportVendorTransactions(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := ",Type,Date,Num,Memo,Account,Split,Debit,Credit\n" +
		"Bay Supply\n" +
		",Bill,3/01/2024,1001,Engine parts,Accounts Payable,Parts Expense,,450.00\n" +
		",Check,3/15/2024,205,March payment,Checking,Accounts Payable,,450.00\n" +
		",Deposit,3/20/2024,,,Checking,,,100.00\n"

	stats, err := ImportVendorTransactions(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.BillsCreated)
	require.Equal(t, 1, stats.PaymentsCreated)
	require.Equal(t, 0, stats.ExpensesCreated)
	require.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Errors, 1)
	require.Contains(t, stats.Errors[0], "Row 5:")
	require.Contains(t, stats.Errors[0], "Transaction type 'deposit' is not supported by the vendor import.")

	vendor, found, err := store.FindVendorByLowerName(ctx, "bay supply")
	require.NoError(t, err)
	require.True(t, found)

	require.Len(t, store.bills, 1)
	for _, bill := range store.bills {
		require.Equal(t, vendor.ID, bill.VendorID)
		require.Equal(t, ap.BillPaid, bill.Status)
		require.InDelta(t, 0, bill.Balance, 0.001)
		require.InDelta(t, 450, bill.AmountPaid, 0.001)

		payments := store.billPayments[bill.ID]
		require.Len(t, payments, 1)
		require.Equal(t, "check", payments[0].PaymentMethod)
		require.NotNil(t, payments[0].BankAccountID)
	}

	// The payment's bank label materialized a chart account and bank record.
	checking := store.accountByName("Checking")
	require.NotNil(t, checking)
	_, found, err = store.FindBankAccountByChartID(ctx, checking.ID)
	require.NoError(t, err)
	require.True(t, found)
}

func TestImportVendorTransactionsSyntheticExpense(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	// A payment with no open bills becomes an expense bill it then settles.
	csv := ",Type,Date,Num,Memo,Account,Split,Debit,Credit\n" +
		"Marina Fuel\n" +
		",Check,3/10/2024,301,Fuel dock,Checking,Fuel Expense,,220.00\n"

	stats, err := ImportVendorTransactions(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.ExpensesCreated)
	require.Equal(t, 1, stats.PaymentsCreated)
	require.Empty(t, stats.Errors)

	require.Len(t, store.bills, 1)
	for _, bill := range store.bills {
		require.Equal(t, ap.BillPaid, bill.Status)
		require.InDelta(t, 220, bill.Total, 0.001)
	}
}

func TestImportVendorTransactionsKeepsContextOnMalformedRow(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	// A transaction row with a stray value in the name column must not open
	// a new vendor group.
	csv := ",Type,Date,Num,Memo,Account,Split,Debit,Credit\n" +
		"Bay Supply\n" +
		"Bay Supply,Bill,3/01/2024,1001,Engine parts,Accounts Payable,Parts Expense,,450.00\n"

	stats, err := ImportVendorTransactions(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.BillsCreated)
	require.Empty(t, stats.Errors)

	require.Len(t, store.vendors, 1)
	vendor, found, err := store.FindVendorByLowerName(ctx, "bay supply")
	require.NoError(t, err)
	require.True(t, found)
	for _, bill := range store.bills {
		require.Equal(t, vendor.ID, bill.VendorID)
	}
}

func TestImportVendorTransactionsMissingContext(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := ",Type,Date,Num,Memo,Account,Split,Debit,Credit\n" +
		",Bill,3/01/2024,1001,Engine parts,Accounts Payable,Parts Expense,,450.00\n"

	stats, err := ImportVendorTransactions(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Errors, 1)
	require.Contains(t, stats.Errors[0], "Vendor context missing for transaction.")
}

func TestImportPaymentsFIFO(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	customer := ar.Customer{Name: "Harbor Marine", Email: "ap@harbormarine.test"}
	require.NoError(t, store.InsertCustomer(ctx, &customer))
	first := ar.Invoice{CustomerID: customer.ID, InvoiceNumber: "QB-INV-1", Total: 400, Balance: 400, Status: ar.InvoiceSent}
	require.NoError(t, store.InsertInvoice(ctx, &first))
	second := ar.Invoice{CustomerID: customer.ID, InvoiceNumber: "QB-INV-2", Total: 300, Balance: 300, Status: ar.InvoiceSent}
	require.NoError(t, store.InsertInvoice(ctx, &second))

	csv := ",Type,Date,Num,Memo,Amount\n" +
		"Harbor Marine\n" +
		",Payment,3/20/2024,CHK 9,March check,600.00\n"

	stats, err := ImportPayments(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Created)
	require.Equal(t, 0, stats.Skipped)
	require.Empty(t, stats.Errors)

	paidFirst, err := store.GetInvoice(ctx, first.ID)
	require.NoError(t, err)
	require.InDelta(t, 0, paidFirst.Balance, 0.001)
	require.Equal(t, ar.InvoicePaid, paidFirst.Status)

	partial, err := store.GetInvoice(ctx, second.ID)
	require.NoError(t, err)
	require.InDelta(t, 100, partial.Balance, 0.001)
	require.InDelta(t, 200, partial.PaidAmount, 0.001)

	payments := store.payments[first.ID]
	require.Len(t, payments, 1)
	require.Equal(t, "offline", payments[0].PaymentProvider)
	require.Equal(t, "QB-PMT-CHK-9-20240320", payments[0].ProviderTransactionID)
	require.NotNil(t, payments[0].Notes)
	require.Contains(t, *payments[0].Notes, "QuickBooks payment #: CHK 9")
	require.Contains(t, *payments[0].Notes, "Memo: March check")

	// The split onto the second invoice carries a suffixed reference.
	split := store.payments[second.ID]
	require.Len(t, split, 1)
	require.Equal(t, "QB-PMT-CHK-9-20240320-PART2", split[0].ProviderTransactionID)
	require.InDelta(t, 200, split[0].Amount, 0.001)
}

func TestImportPaymentsUnknownCustomer(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	csv := ",Type,Date,Num,Memo,Amount\n" +
		"Ghost Boats\n" +
		",Payment,3/20/2024,1,,100.00\n"

	stats, err := ImportPayments(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Created)
	require.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Errors, 1)
	require.Contains(t, stats.Errors[0], "Customer Ghost Boats was not found in the CRM. Payment skipped.")
}

func TestImportPaymentsMissingInvoice(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	customer := ar.Customer{Name: "Harbor Marine", Email: "ap@harbormarine.test"}
	require.NoError(t, store.InsertCustomer(ctx, &customer))

	csv := ",Type,Date,Num,Memo,Amount\n" +
		"Harbor Marine\n" +
		",Invoice,3/01/2024,77,,400.00\n"

	stats, err := ImportPayments(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Errors, 1)
	require.Contains(t, stats.Errors[0], "Invoice 77 not found for customer Harbor Marine.")
}

func TestImportGeneralLedger(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	now := mustDate(t, "2024-06-01")

	checking := accounting.ChartOfAccount{AccountName: "Checking", AccountType: "asset", DetailType: "bank", IsActive: true}
	require.NoError(t, store.InsertAccount(ctx, &checking))

	// Entries from a previous run are replaced; manual entries survive.
	store.ledger = append(store.ledger,
		accounting.GeneralLedgerEntry{AccountName: "Checking", Source: "quickbooks", Debit: 1},
		accounting.GeneralLedgerEntry{AccountName: "Checking", Source: "manual", Debit: 2},
	)

	csv := ",Type,Date,Num,Name,Memo,Split,Debit,Credit,Balance\n" +
		"Checking\n" +
		",Check,3/01/2024,205,Bay Supply,Fuel,Fuel Expense,100.00,,400.00\n" +
		",Deposit,3/05/2024,,,,,,250.00,650.00\n" +
		"Total Checking,,,,,,,,,650.00\n" +
		"Ghost Account\n" +
		",Check,3/06/2024,,,,,50.00,,\n" +
		"Total Ghost Account,,,,,,,,,50.00\n"

	stats, err := ImportGeneralLedger(ctx, store, newRunContext(), newTestReader(t, csv), now)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Created)
	require.Equal(t, 1, stats.Updated)
	require.Equal(t, 1, stats.Skipped)
	require.Len(t, stats.Errors, 1)
	require.Contains(t, stats.Errors[0], "Ghost Account")

	require.Len(t, store.ledger, 3)
	imported := 0
	for _, e := range store.ledger {
		if e.Source == "quickbooks" {
			imported++
			require.NotNil(t, e.AccountID)
			require.Equal(t, checking.ID, *e.AccountID)
		}
	}
	require.Equal(t, 2, imported)
	require.InDelta(t, 650, store.accounts[checking.ID].CurrentBalance, 0.001)
}

func TestRestoreBackup(t *testing.T) {
	ctx := context.Background()

	t.Run("flat array", func(t *testing.T) {
		store := newMemoryStore()
		summary, err := RestoreBackup(ctx, store, "customers", []byte(`[{"id":1,"name":"A"},{"name":"B"}]`))
		require.NoError(t, err)
		require.Equal(t, 2, summary.Imported["customers"])
		require.Len(t, store.restored["customers"], 2)
		require.Equal(t, "origin", store.replicaRole)
	})

	t.Run("complete backup", func(t *testing.T) {
		store := newMemoryStore()
		summary, err := RestoreBackup(ctx, store, "complete", []byte(`{"customers":[{"id":1}],"vendors":[{"id":2},{"id":3}]}`))
		require.NoError(t, err)
		require.Equal(t, 1, summary.Imported["customers"])
		require.Equal(t, 2, summary.Imported["vendors"])
	})

	t.Run("single object", func(t *testing.T) {
		store := newMemoryStore()
		summary, err := RestoreBackup(ctx, store, "parts", []byte(`{"name":"solo","cost":5}`))
		require.NoError(t, err)
		require.Equal(t, 1, summary.Imported["parts"])
	})

	t.Run("unknown type", func(t *testing.T) {
		store := newMemoryStore()
		_, err := RestoreBackup(ctx, store, "sessions", []byte(`[{"id":1}]`))
		require.Error(t, err)
	})
}
