package qbimport

import (
	"fmt"
	"strings"
	"time"
)

// Import note builders. The wording is stable because AppendNotes relies on
// substring containment to avoid stacking duplicates across re-imports.

const noteTimeLayout = "2006-01-02 15:04:05"

func buildCustomerNotes(row Row, now time.Time) string {
	segments := []string{"Imported from QuickBooks on " + now.Format(noteTimeLayout)}
	segments = appendLabeled(segments, "Company: ", row.Field("company"))
	segments = appendLabeled(segments, "Primary contact: ", row.Field("primary_contact"))
	segments = appendLabeled(segments, "Terms: ", row.Field("terms"))
	segments = appendLabeled(segments, "Customer type: ", row.Field("customer_type"))
	segments = appendLabeled(segments, "Rep: ", row.Field("rep"))
	segments = appendLabeled(segments, "Sales tax code: ", row.Field("sales_tax_code"))
	segments = appendLabeled(segments, "Tax item: ", row.Field("tax_item"))
	segments = appendLabeled(segments, "Resale #: ", row.Field("resale_num"))
	return strings.Join(segments, "\n")
}

func buildVendorNotes(row Row, now time.Time) string {
	segments := []string{"Imported from QuickBooks on " + now.Format(noteTimeLayout)}
	segments = appendLabeled(segments, "Company: ", row.Field("company"))
	segments = appendLabeled(segments, "Primary contact: ", row.Field("primary_contact"))
	segments = appendLabeled(segments, "Terms: ", row.Field("terms"))
	segments = appendLabeled(segments, "Tax ID: ", row.Field("tax_id"))
	return strings.Join(segments, "\n")
}

func buildInvoiceNote(qbNumber string, amount, openBalance float64, aging string, taxAmount, taxRate *float64, taxName string, now time.Time) string {
	lines := []string{
		"Imported from QuickBooks invoice #" + qbNumber,
		fmt.Sprintf("Original amount: %.2f", amount),
		fmt.Sprintf("Open balance: %.2f", openBalance),
	}
	if aging != "" {
		lines = append(lines, "Aging: "+aging)
	}
	lines = appendTaxLines(lines, taxAmount, taxRate, taxName)
	lines = append(lines, "Imported on "+now.Format(noteTimeLayout))
	return strings.Join(lines, "\n")
}

func buildQuoteNote(qbNumber string, amount, openBalance float64, isActive bool, taxAmount, taxRate *float64, taxName string, now time.Time) string {
	active := "No"
	if isActive {
		active = "Yes"
	}
	lines := []string{
		"Imported from QuickBooks estimate #" + qbNumber,
		fmt.Sprintf("Amount: %.2f", amount),
		fmt.Sprintf("Open balance: %.2f", openBalance),
		"Active estimate: " + active,
		"Imported on " + now.Format(noteTimeLayout),
	}
	return strings.Join(appendTaxLines(lines, taxAmount, taxRate, taxName), "\n")
}

func buildBillNote(qbNumber string, amount, openBalance float64, terms string, taxAmount, taxRate *float64, taxName string, now time.Time) string {
	lines := []string{
		"Imported from QuickBooks bill #" + qbNumber,
		fmt.Sprintf("Total amount: %.2f", amount),
		fmt.Sprintf("Balance: %.2f", openBalance),
	}
	if terms != "" {
		lines = append(lines, "Terms: "+terms)
	}
	lines = appendTaxLines(lines, taxAmount, taxRate, taxName)
	lines = append(lines, "Imported on "+now.Format(noteTimeLayout))
	return strings.Join(lines, "\n")
}

func appendTaxLines(lines []string, taxAmount, taxRate *float64, taxName string) []string {
	if taxAmount != nil {
		lines = append(lines, fmt.Sprintf("Tax amount: %.2f", *taxAmount))
	}
	if taxRate != nil {
		lines = append(lines, fmt.Sprintf("Tax rate: %.2f%%", *taxRate))
	}
	if taxName != "" {
		lines = append(lines, "Tax name: "+taxName)
	}
	return lines
}

func appendLabeled(segments []string, label, value string) []string {
	if value != "" {
		segments = append(segments, label+value)
	}
	return segments
}
