package qbimport

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Row is one parsed CSV record keyed by normalized header name. Missing and
// blank cells are both absent.
type Row map[string]string

// Field returns the trimmed value for key, empty string when absent.
func (r Row) Field(key string) string {
	return strings.TrimSpace(r[key])
}

// FieldFrom returns the first non-empty value among keys. Each key is also
// tried with its digit separators collapsed ("phone_1" matches "phone1" and
// "phone1" via "phone_1" headers written either way).
func (r Row) FieldFrom(keys ...string) string {
	for _, key := range keys {
		candidates := []string{key}
		if strings.Contains(key, "_") {
			candidates = append(candidates, digitSuffixPattern.ReplaceAllString(key, "$1"))
			candidates = append(candidates, strings.ReplaceAll(key, "_", ""))
		}
		seen := map[string]bool{}
		for _, candidate := range candidates {
			if seen[candidate] {
				continue
			}
			seen[candidate] = true
			if v := r.Field(candidate); v != "" {
				return v
			}
		}
	}
	return ""
}

var digitSuffixPattern = regexp.MustCompile(`_(\d+)`)

// Amount parses a QuickBooks money cell. Parentheses negate, currency
// symbols, commas and spaces are stripped, empty parses to zero.
func Amount(value string) float64 {
	numeric := strings.TrimSpace(value)
	if numeric == "" {
		return 0
	}
	negative := false
	if strings.HasPrefix(numeric, "(") && strings.HasSuffix(numeric, ")") {
		negative = true
		numeric = numeric[1 : len(numeric)-1]
	}
	numeric = strings.NewReplacer("$", "", ",", "", " ", "").Replace(numeric)
	if numeric == "" {
		return 0
	}
	f, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		return 0
	}
	if negative {
		return -f
	}
	return f
}

// Percentage parses a tax-rate cell. Fractional rates (|v| <= 1) are scaled
// to percent. Nil means the cell was absent.
func Percentage(value string) *float64 {
	clean := strings.TrimSpace(strings.ReplaceAll(value, "%", ""))
	if clean == "" {
		return nil
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return nil
	}
	if f != 0 && f >= -1 && f <= 1 {
		f *= 100
	}
	return &f
}

var dateJunkPattern = regexp.MustCompile(`[^0-9/\-]`)

var dateLayouts = []string{
	"1/2/2006",
	"1/2/06",
	"2006-01-02",
	"2006/01/02",
	"01-02-2006",
}

// ParseDate parses the date formats QuickBooks exports use. Unparseable
// values yield nil rather than an error.
func ParseDate(value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	clean := dateJunkPattern.ReplaceAllString(value, "")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return &t
		}
	}
	return nil
}

// ParseBool reads QuickBooks truthy markers.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "x", "yes", "true", "1", "active":
		return true
	}
	return false
}

// BuildAddress reassembles numbered address columns (bill_to_1, bill_to_2, …)
// into one newline-joined block. Returns empty when no numbered column under
// any prefix holds a value.
func BuildAddress(row Row, prefixes ...string) string {
	type numberedKey struct {
		key string
		n   int
	}
	var matched []numberedKey
	seen := map[string]bool{}

	for key := range row {
		for _, prefix := range prefixes {
			base := strings.TrimRight(prefix, "_")
			if !strings.HasPrefix(key, base) {
				continue
			}
			remainder := strings.TrimLeft(key[len(base):], "_")
			if remainder == "" {
				continue
			}
			n, err := strconv.Atoi(remainder)
			if err != nil {
				continue
			}
			if !seen[key] {
				seen[key] = true
				matched = append(matched, numberedKey{key: key, n: n})
			}
		}
	}
	if len(matched) == 0 {
		return ""
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].n != matched[j].n {
			return matched[i].n < matched[j].n
		}
		return matched[i].key < matched[j].key
	})

	var lines []string
	for _, mk := range matched {
		if v := row.Field(mk.key); v != "" {
			lines = append(lines, v)
		}
	}
	return strings.Join(lines, "\n")
}

var cityStateZipPattern = regexp.MustCompile(`^(.*?)[, ]+([A-Za-z]{2})\.?\s+([0-9\-]+)`)
var spaceRunPattern = regexp.MustCompile(`\s+`)

// ParseCityStateZip splits a "City, ST 12345" line into its parts. All three
// come back empty when the line does not match.
func ParseCityStateZip(value string) (city, state, zip string) {
	if value == "" {
		return "", "", ""
	}
	clean := spaceRunPattern.ReplaceAllString(strings.TrimSpace(value), " ")
	m := cityStateZipPattern.FindStringSubmatch(clean)
	if m == nil {
		return "", "", ""
	}
	return strings.TrimSpace(m[1]), strings.ToUpper(m[2]), m[3]
}

var newlinePattern = regexp.MustCompile(`\r\n|\r|\n`)
var blankLinePattern = regexp.MustCompile(`\n{2,}`)

// NormalizeAddress collapses line endings and blank lines in a free-form
// address block.
func NormalizeAddress(value string) string {
	normalized := newlinePattern.ReplaceAllString(strings.TrimSpace(value), "\n")
	return blankLinePattern.ReplaceAllString(normalized, "\n")
}

// ExtractCityStateZip reads the city/state/zip off the last line of an
// address block.
func ExtractCityStateZip(address string) (city, state, zip string) {
	if address == "" {
		return "", "", ""
	}
	lines := strings.Split(address, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if candidate := strings.TrimSpace(lines[i]); candidate != "" {
			return ParseCityStateZip(candidate)
		}
	}
	return "", "", ""
}

// EnsureUTF8 re-encodes legacy Latin-1 bytes so row errors and notes are
// always valid UTF-8.
func EnsureUTF8(value string) string {
	if utf8.ValidString(value) {
		return value
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().String(value)
	if err != nil {
		return strings.ToValidUTF8(value, "")
	}
	return decoded
}

// hashN returns the first n hex characters of the value's digest, uppercased.
func hashN(value string, n int) string {
	sum := sha256.Sum256([]byte(value))
	h := hex.EncodeToString(sum[:])
	if n > len(h) {
		n = len(h)
	}
	return strings.ToUpper(h[:n])
}
