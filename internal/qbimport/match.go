package qbimport

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/harborline/harborline/internal/ap"
	"github.com/harborline/harborline/internal/ar"
)

var (
	ErrCustomerNameRequired = errors.New("customer name is required")
	ErrVendorNameRequired   = errors.New("vendor name is required")
)

// placeholderDomain marks synthesized contact emails so a later import with
// a real address can replace them.
const placeholderDomain = "@import.local"

// MatchKey names which natural key matched an existing record.
type MatchKey string

const (
	MatchedNone  MatchKey = ""
	MatchedName  MatchKey = "name"
	MatchedEmail MatchKey = "email"
)

// MatchResult reports how an upsert resolved its target record. The
// fallback order is fixed: exact name, then email.
type MatchResult struct {
	Found     bool
	MatchedOn MatchKey
}

func matchCustomer(ctx context.Context, store TxStore, name, email string) (ar.Customer, MatchResult, error) {
	customer, ok, err := store.FindCustomerByLowerName(ctx, name)
	if err != nil {
		return ar.Customer{}, MatchResult{}, err
	}
	if ok {
		return customer, MatchResult{Found: true, MatchedOn: MatchedName}, nil
	}
	if email != "" {
		customer, ok, err = store.FindCustomerByLowerEmail(ctx, email)
		if err != nil {
			return ar.Customer{}, MatchResult{}, err
		}
		if ok {
			return customer, MatchResult{Found: true, MatchedOn: MatchedEmail}, nil
		}
	}
	return ar.Customer{}, MatchResult{}, nil
}

func matchVendor(ctx context.Context, store TxStore, name, email string) (ap.Vendor, MatchResult, error) {
	vendor, ok, err := store.FindVendorByLowerName(ctx, name)
	if err != nil {
		return ap.Vendor{}, MatchResult{}, err
	}
	if ok {
		return vendor, MatchResult{Found: true, MatchedOn: MatchedName}, nil
	}
	if email != "" {
		vendor, ok, err = store.FindVendorByLowerEmail(ctx, email)
		if err != nil {
			return ap.Vendor{}, MatchResult{}, err
		}
		if ok {
			return vendor, MatchResult{Found: true, MatchedOn: MatchedEmail}, nil
		}
	}
	return ap.Vendor{}, MatchResult{}, nil
}

// CustomerPayload carries the fields a customer row can contribute. Empty
// strings mean the column was absent and never overwrite stored data.
type CustomerPayload struct {
	Name           string
	Email          string
	Phone          string
	Address        string
	City           string
	State          string
	Zip            string
	Country        string
	BillingAddress string
	BillingCity    string
	BillingState   string
	BillingZip     string
	BillingCountry string
}

// VendorPayload carries the fields a vendor row can contribute.
type VendorPayload struct {
	VendorName    string
	CompanyName   string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	City          string
	State         string
	Zip           string
	Country       string
	PaymentTerms  string
	TaxID         string
	Notes         string
}

// UpsertCustomer matches by lowercased name, then by email, creating the
// customer when neither hits. A missing email gets a deterministic
// placeholder; a stored placeholder never survives a real address.
func UpsertCustomer(ctx context.Context, store TxStore, rc *runContext, payload CustomerPayload) (ar.Customer, bool, error) {
	name := strings.TrimSpace(payload.Name)
	if name == "" {
		return ar.Customer{}, false, ErrCustomerNameRequired
	}

	customer, match, err := matchCustomer(ctx, store, name, payload.Email)
	if err != nil {
		return ar.Customer{}, false, err
	}

	created := !match.Found
	if created {
		customer = ar.Customer{Name: name}
	}

	if payload.Email != "" {
		customer.Email = payload.Email
	} else if customer.Email == "" || isPlaceholderEmail(customer.Email) {
		email, err := placeholderEmail(ctx, name, store.CustomerEmailExists)
		if err != nil {
			return ar.Customer{}, false, err
		}
		customer.Email = email
	}

	setIfPresent(&customer.Phone, payload.Phone)
	setIfPresent(&customer.Address, payload.Address)
	setIfPresent(&customer.City, payload.City)
	setIfPresent(&customer.State, payload.State)
	setIfPresent(&customer.Zip, payload.Zip)
	setIfPresent(&customer.Country, payload.Country)
	setIfPresent(&customer.BillingAddress, payload.BillingAddress)
	setIfPresent(&customer.BillingCity, payload.BillingCity)
	setIfPresent(&customer.BillingState, payload.BillingState)
	setIfPresent(&customer.BillingZip, payload.BillingZip)
	setIfPresent(&customer.BillingCountry, payload.BillingCountry)

	if created {
		err = store.InsertCustomer(ctx, &customer)
	} else {
		err = store.UpdateCustomer(ctx, customer)
	}
	if err != nil {
		return ar.Customer{}, false, err
	}

	rc.customers[strings.ToLower(name)] = customer
	return customer, created, nil
}

// UpsertVendor mirrors UpsertCustomer for the payables side. Vendor notes
// accumulate across imports instead of being replaced, and imported
// vendors always come back active.
func UpsertVendor(ctx context.Context, store TxStore, rc *runContext, payload VendorPayload) (ap.Vendor, bool, error) {
	name := strings.TrimSpace(payload.VendorName)
	if name == "" {
		return ap.Vendor{}, false, ErrVendorNameRequired
	}

	vendor, match, err := matchVendor(ctx, store, name, payload.Email)
	if err != nil {
		return ap.Vendor{}, false, err
	}

	created := !match.Found
	if created {
		vendor = ap.Vendor{VendorName: name}
	}

	if payload.Email != "" {
		vendor.Email = payload.Email
	} else if vendor.Email == "" || isPlaceholderEmail(vendor.Email) {
		email, err := placeholderEmail(ctx, name, store.VendorEmailExists)
		if err != nil {
			return ap.Vendor{}, false, err
		}
		vendor.Email = email
	}

	setIfPresent(&vendor.CompanyName, payload.CompanyName)
	setIfPresent(&vendor.ContactPerson, payload.ContactPerson)
	setIfPresent(&vendor.Phone, payload.Phone)
	setIfPresent(&vendor.Address, payload.Address)
	setIfPresent(&vendor.City, payload.City)
	setIfPresent(&vendor.State, payload.State)
	setIfPresent(&vendor.Zip, payload.Zip)
	setIfPresent(&vendor.Country, payload.Country)
	setIfPresent(&vendor.PaymentTerms, payload.PaymentTerms)
	setIfPresent(&vendor.TaxID, payload.TaxID)

	if payload.Notes != "" {
		merged := AppendNotes(deref(vendor.Notes), payload.Notes, created)
		vendor.Notes = &merged
	}
	vendor.IsActive = true

	if created {
		err = store.InsertVendor(ctx, &vendor)
	} else {
		err = store.UpdateVendor(ctx, vendor)
	}
	if err != nil {
		return ap.Vendor{}, false, err
	}

	rc.vendors[strings.ToLower(name)] = vendor
	return vendor, created, nil
}

func setIfPresent(dst **string, value string) {
	if value != "" {
		v := value
		*dst = &v
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func isPlaceholderEmail(email string) bool {
	return email == "" || strings.HasSuffix(strings.ToLower(email), placeholderDomain)
}

func placeholderEmail(ctx context.Context, name string, exists func(context.Context, string) (bool, error)) (string, error) {
	base := "qb-" + strings.ToLower(hashN(strings.ToLower(name), 8))
	email := base + placeholderDomain
	for suffix := 1; ; suffix++ {
		taken, err := exists(ctx, email)
		if err != nil {
			return "", err
		}
		if !taken {
			return email, nil
		}
		email = base + strconv.Itoa(suffix) + placeholderDomain
	}
}

// AppendNotes merges an import note into existing notes. New records and
// replacement passes take the note verbatim; otherwise the note is added
// below the existing text unless it already appears there.
func AppendNotes(existing, note string, replace bool) string {
	if replace || existing == "" {
		return note
	}
	if strings.Contains(existing, note) {
		return existing
	}
	return existing + "\n\n" + note
}

// PlaceholderSKU synthesizes a stable SKU for item rows that carry only a
// description.
func PlaceholderSKU(seed string) string {
	return "QB-" + hashN(seed, 8)
}

// Item row dispositions.
const (
	ItemSkip    = "skip"
	ItemService = "service"
	ItemPart    = "part"
)

var itemSkipExact = []string{"subtotal", "group", "discount", "payment", "sales tax item", "sales tax group", "sales tax"}
var itemSkipContains = []string{"subtotal", "group", "discount", "payment", "sales tax"}
var itemServiceContains = []string{"service", "charge", "labor"}
var itemPartExact = []string{"inventory part", "inventory assembly", "assembly", "non-inventory part"}
var itemPartContains = []string{"inventory", "part"}

// CategorizeItemType decides whether a QuickBooks item row becomes a part,
// a service, or nothing. Unrecognized and blank types default to service.
func CategorizeItemType(typeLabel string) string {
	t := strings.ToLower(strings.TrimSpace(typeLabel))
	if t == "" {
		return ItemService
	}
	if matchesAny(t, itemSkipExact, itemSkipContains) {
		return ItemSkip
	}
	if matchesAny(t, []string{"service", "other charge"}, itemServiceContains) {
		return ItemService
	}
	if matchesAny(t, itemPartExact, itemPartContains) {
		return ItemPart
	}
	return ItemService
}

func matchesAny(value string, exact, contains []string) bool {
	for _, e := range exact {
		if value == e {
			return true
		}
	}
	for _, c := range contains {
		if strings.Contains(value, c) {
			return true
		}
	}
	return false
}

var numberJunkPattern = regexp.MustCompile(`[^A-Z0-9\-]`)

func formatImportedNumber(prefix, number string) string {
	clean := numberJunkPattern.ReplaceAllString(strings.ToUpper(number), "")
	if clean == "" {
		clean = hashN(number, 10)
	}
	return prefix + clean
}

// FormatInvoiceNumber namespaces an imported invoice number so it cannot
// collide with numbers issued by the CRM itself.
func FormatInvoiceNumber(number string) string {
	return formatImportedNumber("QB-INV-", number)
}

// FormatQuoteNumber namespaces an imported estimate number.
func FormatQuoteNumber(number string) string {
	return formatImportedNumber("QB-EST-", number)
}

// FormatBillNumber namespaces an imported bill identifier.
func FormatBillNumber(number string) string {
	return formatImportedNumber("QB-BILL-", number)
}
