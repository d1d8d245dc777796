package qbimport

import (
	"fmt"
	"strings"

	"github.com/harborline/harborline/internal/accounting"
	"github.com/harborline/harborline/internal/ap"
	"github.com/harborline/harborline/internal/ar"
)

// runContext carries the caches one import run accumulates: resolved account
// hierarchy nodes, claimed account numbers, matched vendors and customers,
// and the FIFO queues of open bills and invoices. A fresh context is built
// per uploaded file so caches never outlive their transaction.
type runContext struct {
	// accounts caches hierarchy nodes by "parentID|lower(name)".
	accounts map[string]accounting.ChartOfAccount
	// numbers tracks every account number already taken, including ones
	// generated earlier in the same run.
	numbers       map[string]bool
	numbersLoaded bool
	// lookup caches expense/bank resolutions by "kind|lower(label)". A nil
	// entry records a failed lookup so it is not retried.
	lookupExpense map[string]*accounting.ChartOfAccount
	lookupBank    map[string]*accounting.BankAccount

	vendors   map[string]ap.Vendor
	customers map[string]ar.Customer

	// vendorQueues holds open bills per vendor in FIFO order.
	vendorQueues map[int64][]billQueueEntry
	// invoiceQueues holds open invoice IDs per customer in issue-date order.
	invoiceQueues map[int64][]int64
}

type billQueueEntry struct {
	BillID    int64
	Remaining float64
}

func newRunContext() *runContext {
	return &runContext{
		accounts:      make(map[string]accounting.ChartOfAccount),
		numbers:       make(map[string]bool),
		lookupExpense: make(map[string]*accounting.ChartOfAccount),
		lookupBank:    make(map[string]*accounting.BankAccount),
		vendors:       make(map[string]ap.Vendor),
		customers:     make(map[string]ar.Customer),
		vendorQueues:  make(map[int64][]billQueueEntry),
		invoiceQueues: make(map[int64][]int64),
	}
}

func (c *runContext) accountCacheKey(parentID *int64, name string) string {
	parent := "root"
	if parentID != nil {
		parent = fmt.Sprintf("%d", *parentID)
	}
	return parent + "|" + strings.ToLower(name)
}

// Summary is the standard import response envelope.
type Summary struct {
	Message string   `json:"message"`
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// ItemsSummary is the items importer response envelope.
type ItemsSummary struct {
	Message          string   `json:"message"`
	PartsImported    int      `json:"parts_imported"`
	ServicesImported int      `json:"services_imported"`
	Skipped          int      `json:"skipped"`
	Errors           []string `json:"errors"`
}

// VendorTxSummary is the vendor transactions importer response envelope.
type VendorTxSummary struct {
	Message         string   `json:"message"`
	BillsCreated    int      `json:"bills_created"`
	BillsUpdated    int      `json:"bills_updated"`
	ExpensesCreated int      `json:"expenses_created"`
	PaymentsCreated int      `json:"payments_created"`
	Skipped         int      `json:"skipped"`
	Errors          []string `json:"errors"`
}

// PaymentsSummary is the payments importer response envelope.
type PaymentsSummary struct {
	Message string   `json:"message"`
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// BackupSummary is the JSON restore response envelope.
type BackupSummary struct {
	Message  string         `json:"message"`
	Imported map[string]int `json:"imported"`
	Errors   []string       `json:"errors"`
}

func rowError(number int, err error) string {
	return fmt.Sprintf("Row %d: %s", number, EnsureUTF8(err.Error()))
}

func rowErrorf(number int, format string, args ...any) string {
	return fmt.Sprintf("Row %d: %s", number, EnsureUTF8(fmt.Sprintf(format, args...)))
}

func sanitizeErrors(errs []string) []string {
	if errs == nil {
		return []string{}
	}
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = EnsureUTF8(e)
	}
	return out
}
