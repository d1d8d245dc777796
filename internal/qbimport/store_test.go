package qbimport

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/harborline/harborline/internal/accounting"
	"github.com/harborline/harborline/internal/ap"
	"github.com/harborline/harborline/internal/ar"
)

// memoryStore backs the importer tests with maps instead of postgres.
type memoryStore struct {
	accounts     map[int64]*accounting.ChartOfAccount
	bankAccounts map[int64]*accounting.BankAccount
	vendors      map[int64]*ap.Vendor
	customers    map[int64]*ar.Customer
	bills        map[int64]*ap.Bill
	billItems    map[int64][]ap.BillItem
	billPayments map[int64][]ap.BillPayment
	invoices     map[int64]*ar.Invoice
	invoiceItems map[int64][]ar.InvoiceItem
	payments     map[int64][]ar.Payment
	quotes       map[int64]*ar.Quote
	quoteItems   map[int64][]ar.QuoteItem
	parts        map[int64]*ar.Part
	services     map[int64]*ar.ServiceItem
	ledger       []accounting.GeneralLedgerEntry
	restored     map[string][]map[string]any
	replicaRole  string
	nextID       int64
}

var _ Store = (*memoryStore)(nil)
var _ TxStore = (*memoryStore)(nil)

func newMemoryStore() *memoryStore {
	return &memoryStore{
		accounts:     map[int64]*accounting.ChartOfAccount{},
		bankAccounts: map[int64]*accounting.BankAccount{},
		vendors:      map[int64]*ap.Vendor{},
		customers:    map[int64]*ar.Customer{},
		bills:        map[int64]*ap.Bill{},
		billItems:    map[int64][]ap.BillItem{},
		billPayments: map[int64][]ap.BillPayment{},
		invoices:     map[int64]*ar.Invoice{},
		invoiceItems: map[int64][]ar.InvoiceItem{},
		payments:     map[int64][]ar.Payment{},
		quotes:       map[int64]*ar.Quote{},
		quoteItems:   map[int64][]ar.QuoteItem{},
		parts:        map[int64]*ar.Part{},
		services:     map[int64]*ar.ServiceItem{},
		restored:     map[string][]map[string]any{},
		nextID:       1,
	}
}

func (m *memoryStore) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryStore) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return fn(ctx, m)
}

func (m *memoryStore) FindAccountByName(_ context.Context, name string, parentID *int64) (accounting.ChartOfAccount, bool, error) {
	for _, a := range m.accounts {
		if !strings.EqualFold(a.AccountName, name) {
			continue
		}
		if parentID == nil && a.ParentID == nil {
			return *a, true, nil
		}
		if parentID != nil && a.ParentID != nil && *parentID == *a.ParentID {
			return *a, true, nil
		}
	}
	return accounting.ChartOfAccount{}, false, nil
}

func (m *memoryStore) FindAccountByLowerName(_ context.Context, name string) (accounting.ChartOfAccount, bool, error) {
	for _, a := range m.accounts {
		if strings.EqualFold(a.AccountName, name) {
			return *a, true, nil
		}
	}
	return accounting.ChartOfAccount{}, false, nil
}

func (m *memoryStore) InsertAccount(_ context.Context, account *accounting.ChartOfAccount) error {
	account.ID = m.id()
	copied := *account
	m.accounts[account.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateAccount(_ context.Context, account accounting.ChartOfAccount) error {
	m.accounts[account.ID] = &account
	return nil
}

func (m *memoryStore) UpdateAccountBalance(_ context.Context, accountID int64, balance float64) error {
	if a, ok := m.accounts[accountID]; ok {
		a.CurrentBalance = balance
	}
	return nil
}

func (m *memoryStore) ListAccountNumbers(_ context.Context) ([]string, error) {
	var numbers []string
	for _, a := range m.accounts {
		if a.AccountNumber != "" {
			numbers = append(numbers, a.AccountNumber)
		}
	}
	return numbers, nil
}

func (m *memoryStore) FindBankAccountByChartID(_ context.Context, chartAccountID int64) (accounting.BankAccount, bool, error) {
	for _, b := range m.bankAccounts {
		if b.ChartAccountID == chartAccountID {
			return *b, true, nil
		}
	}
	return accounting.BankAccount{}, false, nil
}

func (m *memoryStore) InsertBankAccount(_ context.Context, bank *accounting.BankAccount) error {
	bank.ID = m.id()
	copied := *bank
	m.bankAccounts[bank.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateBankAccount(_ context.Context, bank accounting.BankAccount) error {
	m.bankAccounts[bank.ID] = &bank
	return nil
}

func (m *memoryStore) FindVendorByLowerName(_ context.Context, name string) (ap.Vendor, bool, error) {
	for _, v := range m.vendors {
		if strings.EqualFold(v.VendorName, name) {
			return *v, true, nil
		}
	}
	return ap.Vendor{}, false, nil
}

func (m *memoryStore) FindVendorByLowerEmail(_ context.Context, email string) (ap.Vendor, bool, error) {
	for _, v := range m.vendors {
		if strings.EqualFold(v.Email, email) {
			return *v, true, nil
		}
	}
	return ap.Vendor{}, false, nil
}

func (m *memoryStore) VendorEmailExists(ctx context.Context, email string) (bool, error) {
	_, found, err := m.FindVendorByLowerEmail(ctx, email)
	return found, err
}

func (m *memoryStore) InsertVendor(_ context.Context, vendor *ap.Vendor) error {
	vendor.ID = m.id()
	copied := *vendor
	m.vendors[vendor.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateVendor(_ context.Context, vendor ap.Vendor) error {
	m.vendors[vendor.ID] = &vendor
	return nil
}

func (m *memoryStore) FindCustomerByLowerName(_ context.Context, name string) (ar.Customer, bool, error) {
	for _, c := range m.customers {
		if strings.EqualFold(c.Name, name) {
			return *c, true, nil
		}
	}
	return ar.Customer{}, false, nil
}

func (m *memoryStore) FindCustomerByLowerEmail(_ context.Context, email string) (ar.Customer, bool, error) {
	for _, c := range m.customers {
		if strings.EqualFold(c.Email, email) {
			return *c, true, nil
		}
	}
	return ar.Customer{}, false, nil
}

func (m *memoryStore) CustomerEmailExists(ctx context.Context, email string) (bool, error) {
	_, found, err := m.FindCustomerByLowerEmail(ctx, email)
	return found, err
}

func (m *memoryStore) InsertCustomer(_ context.Context, customer *ar.Customer) error {
	customer.ID = m.id()
	copied := *customer
	m.customers[customer.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateCustomer(_ context.Context, customer ar.Customer) error {
	m.customers[customer.ID] = &customer
	return nil
}

func (m *memoryStore) FindBillByNumber(_ context.Context, number string) (ap.Bill, bool, error) {
	for _, b := range m.bills {
		if b.BillNumber == number {
			return *b, true, nil
		}
	}
	return ap.Bill{}, false, nil
}

func (m *memoryStore) GetBill(_ context.Context, id int64) (ap.Bill, error) {
	b, ok := m.bills[id]
	if !ok {
		return ap.Bill{}, ap.ErrBillNotFound
	}
	return *b, nil
}

func (m *memoryStore) InsertBill(_ context.Context, bill *ap.Bill) error {
	bill.ID = m.id()
	copied := *bill
	m.bills[bill.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateBill(_ context.Context, bill ap.Bill) error {
	m.bills[bill.ID] = &bill
	return nil
}

func (m *memoryStore) ListOpenBills(_ context.Context, vendorID int64) ([]ap.Bill, error) {
	var bills []ap.Bill
	for _, b := range m.bills {
		if b.VendorID == vendorID && b.Balance > 0.01 {
			bills = append(bills, *b)
		}
	}
	sort.Slice(bills, func(i, j int) bool {
		di, dj := bills[i].BillDate, bills[j].BillDate
		switch {
		case di == nil && dj == nil:
			return bills[i].ID < bills[j].ID
		case di == nil:
			return false
		case dj == nil:
			return true
		case di.Equal(*dj):
			return bills[i].ID < bills[j].ID
		default:
			return di.Before(*dj)
		}
	})
	return bills, nil
}

func (m *memoryStore) UpsertBillItem(_ context.Context, item ap.BillItem) error {
	items := m.billItems[item.BillID]
	for i, existing := range items {
		if existing.Description == item.Description {
			item.ID = existing.ID
			items[i] = item
			return nil
		}
	}
	item.ID = m.id()
	m.billItems[item.BillID] = append(items, item)
	return nil
}

func (m *memoryStore) InsertBillPayment(_ context.Context, payment *ap.BillPayment) error {
	payment.ID = m.id()
	m.billPayments[payment.BillID] = append(m.billPayments[payment.BillID], *payment)
	return nil
}

func (m *memoryStore) SumBillPayments(_ context.Context, billID int64) (float64, error) {
	var total float64
	for _, p := range m.billPayments[billID] {
		total += p.Amount
	}
	return total, nil
}

func (m *memoryStore) FindInvoiceByNumber(_ context.Context, number string) (ar.Invoice, bool, error) {
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == number {
			return *inv, true, nil
		}
	}
	return ar.Invoice{}, false, nil
}

func (m *memoryStore) GetInvoice(_ context.Context, id int64) (ar.Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return ar.Invoice{}, ar.ErrInvoiceNotFound
	}
	return *inv, nil
}

func (m *memoryStore) InsertInvoice(_ context.Context, invoice *ar.Invoice) error {
	invoice.ID = m.id()
	copied := *invoice
	m.invoices[invoice.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateInvoice(_ context.Context, invoice ar.Invoice) error {
	m.invoices[invoice.ID] = &invoice
	return nil
}

func (m *memoryStore) ListInvoiceIDsByCustomer(_ context.Context, customerID int64) ([]int64, error) {
	var ids []int64
	for _, inv := range m.invoices {
		if inv.CustomerID == customerID {
			ids = append(ids, inv.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *memoryStore) UpsertInvoiceItem(_ context.Context, item ar.InvoiceItem) error {
	items := m.invoiceItems[item.InvoiceID]
	for i, existing := range items {
		if existing.Description == item.Description {
			item.ID = existing.ID
			items[i] = item
			return nil
		}
	}
	item.ID = m.id()
	m.invoiceItems[item.InvoiceID] = append(items, item)
	return nil
}

func (m *memoryStore) PaymentExistsByProviderRef(_ context.Context, invoiceID int64, providerID string) (bool, error) {
	for _, p := range m.payments[invoiceID] {
		if p.ProviderTransactionID == providerID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) PaymentExistsSameDayAmount(_ context.Context, invoiceID int64, day time.Time, amount float64) (bool, error) {
	for _, p := range m.payments[invoiceID] {
		sameDay := p.ProcessedAt.Year() == day.Year() && p.ProcessedAt.YearDay() == day.YearDay()
		if sameDay && p.Amount == amount {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) InsertARPayment(_ context.Context, payment *ar.Payment) error {
	payment.ID = m.id()
	m.payments[payment.InvoiceID] = append(m.payments[payment.InvoiceID], *payment)
	return nil
}

func (m *memoryStore) SumCompletedPayments(_ context.Context, invoiceID int64) (float64, error) {
	var total float64
	for _, p := range m.payments[invoiceID] {
		if p.Status == ar.PaymentCompleted {
			total += p.Amount
		}
	}
	return total, nil
}

func (m *memoryStore) FindQuoteByNumber(_ context.Context, number string) (ar.Quote, bool, error) {
	for _, q := range m.quotes {
		if q.QuoteNumber == number {
			return *q, true, nil
		}
	}
	return ar.Quote{}, false, nil
}

func (m *memoryStore) InsertQuote(_ context.Context, quote *ar.Quote) error {
	quote.ID = m.id()
	copied := *quote
	m.quotes[quote.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateQuote(_ context.Context, quote ar.Quote) error {
	m.quotes[quote.ID] = &quote
	return nil
}

func (m *memoryStore) UpsertQuoteItem(_ context.Context, item ar.QuoteItem) error {
	items := m.quoteItems[item.QuoteID]
	for i, existing := range items {
		if existing.Description == item.Description {
			item.ID = existing.ID
			items[i] = item
			return nil
		}
	}
	item.ID = m.id()
	m.quoteItems[item.QuoteID] = append(items, item)
	return nil
}

func (m *memoryStore) FindPartBySKU(_ context.Context, sku string) (ar.Part, bool, error) {
	for _, p := range m.parts {
		if p.SKU == sku {
			return *p, true, nil
		}
	}
	return ar.Part{}, false, nil
}

func (m *memoryStore) InsertPart(_ context.Context, part *ar.Part) error {
	part.ID = m.id()
	copied := *part
	m.parts[part.ID] = &copied
	return nil
}

func (m *memoryStore) UpdatePart(_ context.Context, part ar.Part) error {
	m.parts[part.ID] = &part
	return nil
}

func (m *memoryStore) FindServiceByName(_ context.Context, name string) (ar.ServiceItem, bool, error) {
	for _, s := range m.services {
		if s.Name == name {
			return *s, true, nil
		}
	}
	return ar.ServiceItem{}, false, nil
}

func (m *memoryStore) InsertService(_ context.Context, svc *ar.ServiceItem) error {
	svc.ID = m.id()
	copied := *svc
	m.services[svc.ID] = &copied
	return nil
}

func (m *memoryStore) UpdateService(_ context.Context, svc ar.ServiceItem) error {
	m.services[svc.ID] = &svc
	return nil
}

func (m *memoryStore) DeleteLedgerBySource(_ context.Context, source string) error {
	kept := m.ledger[:0]
	for _, e := range m.ledger {
		if e.Source != source {
			kept = append(kept, e)
		}
	}
	m.ledger = kept
	return nil
}

func (m *memoryStore) InsertLedgerBatch(_ context.Context, entries []accounting.GeneralLedgerEntry) error {
	m.ledger = append(m.ledger, entries...)
	return nil
}

func (m *memoryStore) SetReplicationRole(_ context.Context, role string) error {
	m.replicaRole = role
	return nil
}

func (m *memoryStore) RestoreRows(_ context.Context, table string, rows []map[string]any) (int, error) {
	m.restored[table] = append(m.restored[table], rows...)
	return len(rows), nil
}

func (m *memoryStore) accountByName(name string) *accounting.ChartOfAccount {
	for _, a := range m.accounts {
		if a.AccountName == name {
			return a
		}
	}
	return nil
}
