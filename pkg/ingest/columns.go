package ingest

import "strings"

// Field is a single named cell in a source row.
type Field struct {
	Name  string
	Value string
}

// RawRow is one row of the tabular export. Field order follows the source
// column order, which matters for tie-breaking during resolution.
type RawRow struct {
	Fields []Field
}

// Column candidate lists, one per concept, ordered by priority. Exports from
// different plants name the same column differently ("WORKCENTER", "Machine",
// "machine_legacy"...), so resolution is by lowercase substring instead of
// fixed positions.
var (
	MachineColumns     = []string{"workcenter", "machine"}
	MaterialColumns    = []string{"material", "matiere", "matière"}
	DescriptionColumns = []string{"designation", "description"}
	RejectQtyColumns   = []string{"qte scrap", "scrap qty", "quantity"}
	ProdQtyColumns     = []string{"qte prod app", "qte prod pole", "production quantity"}
	PriceColumns       = []string{"prix unit", "unit price", "prix", "price"}
	ReasonColumns      = []string{"motif", "raison", "reason"}
	DateColumns        = []string{"confirmation date", "date"}
)

// Resolve returns the value of the first field whose lowercased name contains
// one of the candidate substrings. Candidates are tried in order: a field
// matching candidates[0] always beats a field matching candidates[1], no
// matter where either sits in the row. Within one candidate the leftmost
// column wins. The boolean is false when nothing matches; callers treat that
// as a normal outcome, not a failure.
func (r RawRow) Resolve(candidates []string) (string, bool) {
	for _, cand := range candidates {
		for _, f := range r.Fields {
			if strings.Contains(strings.ToLower(f.Name), cand) {
				return f.Value, true
			}
		}
	}
	return "", false
}
