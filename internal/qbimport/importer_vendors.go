package qbimport

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"
)

// ImportVendors loads a QuickBooks vendor list export.
func ImportVendors(ctx context.Context, store TxStore, rc *runContext, r *Reader, now time.Time) (Summary, error) {
	stats := Summary{Message: "Vendors import complete"}

	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}
		row := rec.Fields

		name := firstNonEmpty(row.Field("vendor"), row.Field("company"))
		if name == "" || strings.HasPrefix(strings.ToLower(name), "total") {
			stats.Skipped++
			continue
		}

		billing := BuildAddress(row, "bill_to_", "bill_addr", "billaddr", "bill_address", "billing_address")
		city, state, zip := ParseCityStateZip(row.FieldFrom("bill_to_2", "bill_addr2", "billaddress2", "bill_address_2", "billing_address_2"))
		city = firstNonEmpty(city, row.FieldFrom("bill_to_city", "bill_city", "billing_city"))
		state = firstNonEmpty(state, row.FieldFrom("bill_to_state", "bill_state", "billing_state"))
		zip = firstNonEmpty(zip, row.FieldFrom("bill_to_zip", "bill_zip", "billing_zip", "bill_postal_code"))

		_, created, err := UpsertVendor(ctx, store, rc, VendorPayload{
			VendorName:    name,
			CompanyName:   row.Field("company"),
			ContactPerson: row.Field("primary_contact"),
			Email:         row.FieldFrom(contactEmailKeys...),
			Phone:         row.FieldFrom(contactPhoneKeys...),
			Address:       billing,
			City:          city,
			State:         state,
			Zip:           zip,
			Notes:         buildVendorNotes(row, now),
		})
		if err != nil {
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
