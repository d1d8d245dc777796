package qbimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

var (
	// ErrMissingHeader indicates the file has no header row.
	ErrMissingHeader = errors.New("the QuickBooks CSV file is missing a header row")
	// ErrUnusableHeader indicates no header column survived normalization.
	ErrUnusableHeader = errors.New("the QuickBooks CSV header does not contain any usable columns")
)

// Record is one data row of a QuickBooks export. Fields carries the cells
// keyed by normalized header; Raw carries every cell positionally, which the
// ledger-style exports need because their leading column is an unlabeled
// account or entity grouping.
type Record struct {
	// Number is the 1-based row number in the file, counting the header as
	// row 1. Error messages reference it directly.
	Number int
	Fields Row
	Raw    []string
}

// Reader streams a QuickBooks CSV export a row at a time.
type Reader struct {
	cr     *csv.Reader
	header []string
	number int
}

// NewReader wraps r and consumes its header row.
func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	headerRow, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	header := NormalizeHeader(headerRow)
	usable := false
	for _, h := range header {
		if h != "" {
			usable = true
			break
		}
	}
	if !usable {
		return nil, ErrUnusableHeader
	}

	return &Reader{cr: cr, header: header, number: 1}, nil
}

// Header returns the normalized header keys, empty string for columns that do
// not map to a usable key.
func (r *Reader) Header() []string {
	return r.header
}

// Read returns the next non-empty record, io.EOF when the file is done.
func (r *Reader) Read() (Record, error) {
	for {
		cells, err := r.cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Record{}, io.EOF
			}
			return Record{}, fmt.Errorf("read row %d: %w", r.number+1, err)
		}
		r.number++

		raw := make([]string, len(cells))
		empty := true
		for i, cell := range cells {
			raw[i] = sanitizeCell(cell)
			if raw[i] != "" {
				empty = false
			}
		}
		if empty {
			continue
		}

		fields := make(Row, len(raw))
		for i, value := range raw {
			if i >= len(r.header) || r.header[i] == "" || value == "" {
				continue
			}
			fields[r.header[i]] = value
		}

		return Record{Number: r.number, Fields: fields, Raw: raw}, nil
	}
}

// RowKind tags one line of a grouped QuickBooks report. Those reports
// interleave three shapes in a single stream: a bare name in the first cell
// opens a group, a "Total ..." line closes it, and indented lines in between
// carry the transactions.
type RowKind int

const (
	// RowTransaction is a data line belonging to the current group.
	RowTransaction RowKind = iota
	// RowGroupHeader opens a group named by the first cell.
	RowGroupHeader
	// RowTotal closes the current group and carries its closing balance.
	RowTotal
)

// Classify tags a record of a keyed grouped report (transactions by vendor,
// payments by customer). A group only opens on a bare name: the first raw
// cell set, every keyed column empty. A populated first cell on an otherwise
// normal transaction row stays a transaction under the current group.
func Classify(rec Record) RowKind {
	first := sanitizeCell(cleanLedgerValue(rawCell(rec.Raw, 0)))
	if first == "" {
		return RowTransaction
	}
	if strings.HasPrefix(strings.ToLower(first), "total") {
		return RowTotal
	}
	for _, value := range rec.Fields {
		if value != "" {
			return RowTransaction
		}
	}
	return RowGroupHeader
}

// ClassifyLedger tags a general ledger line. That report is positional, so
// the label column alone decides, and its Total markers are capitalized.
func ClassifyLedger(rec Record) RowKind {
	label := cleanLedgerValue(rawCell(rec.Raw, 0))
	switch {
	case label == "":
		return RowTransaction
	case strings.HasPrefix(label, "Total"):
		return RowTotal
	default:
		return RowGroupHeader
	}
}

// GroupLabel returns the first-cell text of a header or total line.
func GroupLabel(rec Record) string {
	return sanitizeCell(cleanLedgerValue(rawCell(rec.Raw, 0)))
}

var headerJunkPattern = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeHeader snake_cases each header cell and suffixes duplicates with
// _2, _3 and so on. Blank or symbol-only cells map to empty keys.
func NormalizeHeader(cells []string) []string {
	normalized := make([]string, len(cells))
	occurrences := map[string]int{}

	for i, cell := range cells {
		clean := snakeCase(sanitizeCell(cell))
		if clean == "" {
			continue
		}
		occurrences[clean]++
		if n := occurrences[clean]; n > 1 {
			clean = fmt.Sprintf("%s_%d", clean, n)
		}
		normalized[i] = clean
	}
	return normalized
}

func snakeCase(value string) string {
	return strings.Trim(headerJunkPattern.ReplaceAllString(strings.ToLower(value), "_"), "_")
}

func sanitizeCell(value string) string {
	clean := strings.TrimSpace(value)
	clean = strings.TrimPrefix(clean, "\ufeff")
	if clean == "" {
		return ""
	}
	return strings.TrimSpace(EnsureUTF8(clean))
}

// Ledger-style exports mark empty cells with a double dash.
func cleanLedgerValue(value string) string {
	clean := strings.TrimSpace(strings.ReplaceAll(value, `"`, ""))
	if clean == "--" {
		return ""
	}
	return clean
}
