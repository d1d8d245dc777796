package qbimport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
)

const backupChunkSize = 500

// backupTables maps the accepted import types to their tables. Keyed
// "complete" backups may carry any of these tables at the top level.
var backupTables = map[string]string{
	"chart_of_accounts":      "chart_of_accounts",
	"bank_accounts":          "bank_accounts",
	"journal_entries":        "journal_entries",
	"journal_lines":          "journal_lines",
	"general_ledger_entries": "general_ledger_entries",
	"customers":              "customers",
	"vendors":                "vendors",
	"invoices":               "invoices",
	"invoice_items":          "invoice_items",
	"payments":               "payments",
	"quotes":                 "quotes",
	"quote_items":            "quote_items",
	"bills":                  "bills",
	"bill_items":             "bill_items",
	"bill_payments":          "bill_payments",
	"parts":                  "parts",
	"services":               "services",
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// RestoreBackup loads a JSON backup into the database. The payload is
// either a flat array of rows for importType's table, a keyed object of
// known tables, or a single object treated as one row. Foreign key
// enforcement is suspended for the duration of the load so tables can
// arrive in any order.
func RestoreBackup(ctx context.Context, store TxStore, importType string, payload []byte) (BackupSummary, error) {
	summary := BackupSummary{
		Message:  "Backup restore complete",
		Imported: map[string]int{},
		Errors:   []string{},
	}

	trimmed := bytes.TrimLeft(payload, " \t\r\n")
	if len(trimmed) == 0 {
		return summary, fmt.Errorf("backup payload is empty")
	}

	if err := store.SetReplicationRole(ctx, "replica"); err != nil {
		return summary, err
	}
	defer func() {
		_ = store.SetReplicationRole(ctx, "origin")
	}()

	switch trimmed[0] {
	case '[':
		table, ok := backupTables[importType]
		if !ok {
			return summary, fmt.Errorf("unknown import type %q", importType)
		}
		var rows []map[string]any
		if err := json.Unmarshal(trimmed, &rows); err != nil {
			return summary, fmt.Errorf("decode backup payload: %w", err)
		}
		n, err := restoreTable(ctx, store, table, rows)
		summary.Imported[table] = n
		if err != nil {
			return summary, err
		}
	case '{':
		var sections map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &sections); err != nil {
			return summary, fmt.Errorf("decode backup payload: %w", err)
		}
		if isCompleteBackup(sections) {
			for _, key := range sortedKeys(sections) {
				var rows []map[string]any
				if err := json.Unmarshal(sections[key], &rows); err != nil {
					return summary, fmt.Errorf("decode %s section: %w", key, err)
				}
				n, err := restoreTable(ctx, store, backupTables[key], rows)
				summary.Imported[backupTables[key]] += n
				if err != nil {
					return summary, err
				}
			}
			break
		}
		table, ok := backupTables[importType]
		if !ok {
			return summary, fmt.Errorf("unknown import type %q", importType)
		}
		var row map[string]any
		if err := json.Unmarshal(trimmed, &row); err != nil {
			return summary, fmt.Errorf("decode backup payload: %w", err)
		}
		n, err := restoreTable(ctx, store, table, []map[string]any{row})
		summary.Imported[table] = n
		if err != nil {
			return summary, err
		}
	default:
		return summary, fmt.Errorf("backup payload must be a JSON object or array")
	}

	return summary, nil
}

// isCompleteBackup reports whether every top-level key names a known
// table holding an array. Anything else is a single-row object.
func isCompleteBackup(sections map[string]json.RawMessage) bool {
	if len(sections) == 0 {
		return false
	}
	for key, raw := range sections {
		if _, ok := backupTables[key]; !ok {
			return false
		}
		value := bytes.TrimLeft(raw, " \t\r\n")
		if len(value) == 0 || value[0] != '[' {
			return false
		}
	}
	return true
}

func restoreTable(ctx context.Context, store TxStore, table string, rows []map[string]any) (int, error) {
	imported := 0
	for start := 0; start < len(rows); start += backupChunkSize {
		end := start + backupChunkSize
		if end > len(rows) {
			end = len(rows)
		}
		n, err := store.RestoreRows(ctx, table, rows[start:end])
		imported += n
		if err != nil {
			return imported, err
		}
	}
	return imported, nil
}

func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
