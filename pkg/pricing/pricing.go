// Package pricing loads the separately-maintained price list and rescales its
// per-lot prices to per-unit prices. The list lives next to the export as
// "<prefix><year>.xlsx" (or .csv); Excel leaves "~$..." lock files in the same
// directory while someone has the workbook open, which must never be picked up.
package pricing

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mbertho/scrapview/pkg/ingest"
)

// LotSize is the quantity a list price covers. The vendor quotes per thousand
// parts; records carry per-unit prices.
const LotSize = 1000

// tempFileMarker prefixes Excel lock artifacts.
const tempFileMarker = "~$"

// Price list column candidates, resolved the same way as the primary export.
var (
	materialColumns = []string{"material", "reference", "référence", "ref"}
	lotPriceColumns = []string{"prix", "price", "tarif"}
)

// Table maps material code to per-unit price. Rebuilt in full on every
// refresh; a lookup miss leaves a record's originally-parsed price unchanged.
type Table map[string]float64

// Enrich overwrites each record's unit price with the reference value when the
// material is listed. The reference wins even over an in-export price; absent
// materials keep whatever the export said.
func (t Table) Enrich(records []ingest.Record) {
	if len(t) == 0 {
		return
	}
	for i := range records {
		if p, ok := t[records[i].Material]; ok {
			records[i].UnitPrice = p
		}
	}
}

// Discover returns the newest price list in dir matching prefix + year token.
// The greatest year wins; modification time breaks ties. found is false when
// no candidate exists, which callers must treat as graceful degradation, not
// an error.
func Discover(dir, prefix string) (path string, found bool, err error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read pricing dir: %w", err)
	}

	re, err := regexp.Compile("^" + regexp.QuoteMeta(prefix) + `.*(20\d{2}).*\.(xlsx|xlsm|csv)$`)
	if err != nil {
		return "", false, fmt.Errorf("bad pricing prefix %q: %w", prefix, err)
	}

	bestYear := ""
	var bestMod int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, tempFileMarker) {
			continue
		}
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		info, ierr := e.Info()
		var mod int64
		if ierr == nil {
			mod = info.ModTime().UnixNano()
		}
		if m[1] > bestYear || (m[1] == bestYear && mod > bestMod) {
			bestYear = m[1]
			bestMod = mod
			path = filepath.Join(dir, name)
			found = true
		}
	}
	return path, found, nil
}

// Load discovers and parses the current price list. found is false when no
// list file exists. Rows with an empty material or a non-positive computed
// unit price are skipped; the first occurrence of a material wins.
func Load(dir, prefix string) (Table, bool, error) {
	path, found, err := Discover(dir, prefix)
	if err != nil || !found {
		return nil, found, err
	}
	t, err := LoadFile(path)
	if err != nil {
		return nil, true, err
	}
	return t, true, nil
}

// LoadFile parses one price list file into a Table.
func LoadFile(path string) (Table, error) {
	src, err := ingest.ReadSource(path, "")
	if err != nil {
		return nil, fmt.Errorf("price list: %w", err)
	}

	table := make(Table)
	for _, row := range src.Rows {
		material, ok := row.Resolve(materialColumns)
		if !ok {
			continue
		}
		material = strings.TrimSpace(material)
		if material == "" {
			continue
		}
		if _, dup := table[material]; dup {
			continue
		}
		lotRaw, _ := row.Resolve(lotPriceColumns)
		unit := ingest.ParseNumber(lotRaw) / LotSize
		if unit > 0 {
			table[material] = unit
		}
	}
	return table, nil
}
