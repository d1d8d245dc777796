package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

var contactEmailKeys = []string{"main_email", "email", "e_mail", "email_address", "primary_email"}

var contactPhoneKeys = []string{
	"main_phone", "phone", "primary_phone", "phone_1", "phone1",
	"work_phone", "mobile", "mobile_phone", "alt_phone", "fax",
}

// ImportCustomers loads a QuickBooks customer list export. QuickBooks
// spreads addresses over numbered Bill to / Ship to columns; city, state
// and zip fall back from dedicated columns to the second address line to
// the last line of the assembled block.
func ImportCustomers(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "Customers import complete"}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		name := row.Field("customer")
		if name == "" || strings.EqualFold(name, "customer") || strings.HasPrefix(strings.ToLower(name), "total") {
			stats.Skipped++
			continue
		}

		billing := BuildAddress(row, "bill_to_", "bill_addr", "billaddr", "bill_address_", "bill_address_line_", "billing_address_", "billing_address_line_")
		shipping := BuildAddress(row, "ship_to_", "ship_addr", "shipaddr", "ship_address_", "ship_address_line_", "shipping_address_", "shipping_address_line_")

		if billing == "" {
			billing = NormalizeAddress(row.FieldFrom("billing_address", "bill_address", "bill_to", "bill_to_address", "cust_address"))
		}
		if shipping == "" {
			shipping = NormalizeAddress(row.FieldFrom("shipping_address", "ship_address", "ship_to", "ship_to_address"))
		}

		billCity, billState, billZip := ParseCityStateZip(row.FieldFrom("bill_to_2", "bill_addr2", "billaddress2", "bill_address_2", "bill_address_line_2", "billing_address_2", "billing_address_line_2"))
		shipCity, shipState, shipZip := ParseCityStateZip(row.FieldFrom("ship_to_2", "ship_addr2", "shipaddress2", "ship_address_2", "ship_address_line_2", "shipping_address_2", "shipping_address_line_2"))

		billCity = firstNonEmpty(billCity, row.FieldFrom("bill_to_city", "bill_city", "billing_city", "bill_address_city", "billing_address_city"))
		billState = firstNonEmpty(billState, row.FieldFrom("bill_to_state", "bill_state", "billing_state", "bill_address_state", "billing_address_state"))
		billZip = firstNonEmpty(billZip, row.FieldFrom("bill_to_zip", "bill_zip", "billing_zip", "bill_postal_code", "billing_postal_code", "bill_address_postal_code", "billing_address_postal_code"))

		shipCity = firstNonEmpty(shipCity, row.FieldFrom("ship_to_city", "ship_city", "shipping_city", "ship_address_city", "shipping_address_city"))
		shipState = firstNonEmpty(shipState, row.FieldFrom("ship_to_state", "ship_state", "shipping_state", "ship_address_state", "shipping_address_state"))
		shipZip = firstNonEmpty(shipZip, row.FieldFrom("ship_to_zip", "ship_zip", "shipping_zip", "ship_postal_code", "shipping_postal_code", "ship_address_postal_code", "shipping_address_postal_code"))

		if billCity == "" || billState == "" || billZip == "" {
			city, state, zip := ExtractCityStateZip(billing)
			billCity = firstNonEmpty(billCity, city)
			billState = firstNonEmpty(billState, state)
			billZip = firstNonEmpty(billZip, zip)
		}
		if shipCity == "" || shipState == "" || shipZip == "" {
			city, state, zip := ExtractCityStateZip(shipping)
			shipCity = firstNonEmpty(shipCity, city)
			shipState = firstNonEmpty(shipState, state)
			shipZip = firstNonEmpty(shipZip, zip)
		}

		customer, created, err := UpsertCustomer(ctx, store, rc, CustomerPayload{
			Name:           name,
			Email:          row.FieldFrom(contactEmailKeys...),
			Phone:          row.FieldFrom(contactPhoneKeys...),
			Address:        firstNonEmpty(shipping, billing),
			City:           firstNonEmpty(shipCity, billCity),
			State:          firstNonEmpty(shipState, billState),
			Zip:            firstNonEmpty(shipZip, billZip),
			BillingAddress: billing,
			BillingCity:    billCity,
			BillingState:   billState,
			BillingZip:     billZip,
		})
		if err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		notes := AppendNotes(deref(customer.Notes), buildCustomerNotes(row, now), created)
		customer.Notes = &notes
		if err := store.UpdateCustomer(ctx, customer); err != nil {
			stats.Errors = append(stats.Errors, rowError(rec.Number, err))
			stats.Skipped++
			continue
		}

		if created {
			stats.Created++
		} else {
			stats.Updated++
		}
	}

	stats.Errors = sanitizeErrors(stats.Errors)
	return stats, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
