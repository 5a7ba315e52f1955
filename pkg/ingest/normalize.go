package ingest

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// UnknownReason is the bucket for rows whose reason column is missing or empty.
const UnknownReason = "unknown"

// Record is a normalized production/reject event. Immutable once built;
// persisted only as part of a snapshot's raw-record subset.
type Record struct {
	Machine       string  `json:"machine"`
	Material      string  `json:"material"`
	Description   string  `json:"description"`
	RejectQty     float64 `json:"rejectQuantity"`
	ProductionQty float64 `json:"productionQuantity"`
	UnitPrice     float64 `json:"unitPrice"`
	Reason        string  `json:"reason"`
	// Date is YYYY-MM-DD, or empty when the source value did not parse.
	// Records without a date still count in non-date-scoped totals.
	Date string `json:"date"`
}

// MaterialRef is one entry of the material catalog extracted during ingestion.
type MaterialRef struct {
	Material    string  `json:"material"`
	Description string  `json:"description"`
	UnitPrice   float64 `json:"unitPrice"`
}

// Normalize turns a raw row into a typed record. Every field except the
// machine id defaults instead of rejecting the row: partial data is normal in
// these exports. Returns false when no machine column resolves, in which case
// the row is dropped entirely.
func Normalize(row RawRow) (Record, bool) {
	machine, ok := row.Resolve(MachineColumns)
	machine = strings.TrimSpace(machine)
	if !ok || machine == "" {
		return Record{}, false
	}

	material, _ := row.Resolve(MaterialColumns)
	desc, _ := row.Resolve(DescriptionColumns)
	rejectRaw, _ := row.Resolve(RejectQtyColumns)
	prodRaw, _ := row.Resolve(ProdQtyColumns)
	priceRaw, _ := row.Resolve(PriceColumns)
	reason, _ := row.Resolve(ReasonColumns)
	dateRaw, _ := row.Resolve(DateColumns)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = UnknownReason
	}

	date, _ := ParseDate(dateRaw)

	return Record{
		Machine:       machine,
		Material:      strings.TrimSpace(material),
		Description:   strings.TrimSpace(desc),
		RejectQty:     ParseNumber(rejectRaw),
		ProductionQty: ParseNumber(prodRaw),
		UnitPrice:     ParseNumber(priceRaw),
		Reason:        reason,
		Date:          date,
	}, true
}

// ParseNumber parses a quantity or price that may use a decimal comma
// (French exports) or a decimal point, with optional currency symbols and
// space/non-breaking-space thousands separators. Anything unparsable is 0.
func ParseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '-', r == '+':
			b.WriteRune(r)
		case r == ',':
			b.WriteByte('.')
		case r == '.':
			b.WriteByte('.')
		case r == ' ', r == ' ', r == ' ':
			// thousands separator
		case r == '€', r == '$', r == '£':
		default:
			// units or stray text after the number ("12,5 kg")
			if b.Len() > 0 {
				return parseFloatOrZero(b.String())
			}
		}
	}
	return parseFloatOrZero(b.String())
}

func parseFloatOrZero(s string) float64 {
	// "1.234.56" can come out of "1.234,56"; keep only the last dot as the
	// decimal separator.
	if n := strings.Count(s, "."); n > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// Accepted date layouts, most specific first. Timestamps with a time part are
// truncated to the calendar date.
var dateLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"20060102",
}

// ParseDate normalizes a source date to YYYY-MM-DD. The boolean is false for
// empty or unparsable input.
func ParseDate(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}

// BuildMaterialRefs extracts the unique material catalog from normalized
// records, first occurrence wins, sorted by material code.
func BuildMaterialRefs(records []Record) []MaterialRef {
	seen := make(map[string]bool, len(records))
	var refs []MaterialRef
	for _, rec := range records {
		if rec.Material == "" || seen[rec.Material] {
			continue
		}
		seen[rec.Material] = true
		refs = append(refs, MaterialRef{
			Material:    rec.Material,
			Description: rec.Description,
			UnitPrice:   rec.UnitPrice,
		})
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Material < refs[j].Material })
	return refs
}
