package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrSourceUnavailable means the primary export is missing or unreadable.
	// Fatal to the triggering refresh cycle only.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrSourceMalformed means the file exists but cannot be parsed as
	// tabular data. Same handling as ErrSourceUnavailable.
	ErrSourceMalformed = errors.New("source malformed")
)

// Source is the parsed primary export plus the metadata snapshots carry.
type Source struct {
	Rows         []RawRow
	LastModified time.Time
}

// ReadSource reads the primary tabular export. The format is picked by
// extension: .xlsx/.xlsm via excelize, anything else as CSV. sheet selects
// the worksheet for Excel files; empty means the first sheet, matching how
// the plant exports are produced (single sheet).
func ReadSource(path, sheet string) (*Source, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}

	var rows []RawRow
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		rows, err = readExcel(path, sheet)
	default:
		rows, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return &Source{Rows: rows, LastModified: st.ModTime()}, nil
}

func readExcel(path, sheet string) ([]RawRow, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceMalformed, path, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: %s: workbook has no sheets", ErrSourceMalformed, path)
		}
		sheet = sheets[0]
	}
	cells, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: sheet %q: %v", ErrSourceMalformed, path, sheet, err)
	}
	return buildRows(cells), nil
}

func readCSV(path string) ([]RawRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, path, err)
	}
	cells, err := parseCSV(data, ',')
	if err != nil || onlyOneColumnWithSemicolons(cells) {
		// French tooling commonly exports semicolon-separated CSV.
		if cells2, err2 := parseCSV(data, ';'); err2 == nil {
			return buildRows(cells2), nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceMalformed, path, err)
	}
	return buildRows(cells), nil
}

func parseCSV(data []byte, sep rune) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	r.Comma = sep
	r.FieldsPerRecord = -1
	return r.ReadAll()
}

func onlyOneColumnWithSemicolons(cells [][]string) bool {
	return len(cells) > 0 && len(cells[0]) == 1 && strings.Contains(cells[0][0], ";")
}

// buildRows pairs each data row with the header row, preserving column order.
// Columns with an empty header and cells beyond the header width are dropped;
// short rows are fine.
func buildRows(cells [][]string) []RawRow {
	if len(cells) == 0 {
		return nil
	}
	headers := cells[0]
	rows := make([]RawRow, 0, len(cells)-1)
	for _, line := range cells[1:] {
		row := RawRow{Fields: make([]Field, 0, len(headers))}
		empty := true
		for i, h := range headers {
			if strings.TrimSpace(h) == "" || i >= len(line) {
				continue
			}
			v := strings.TrimSpace(line[i])
			if v != "" {
				empty = false
			}
			row.Fields = append(row.Fields, Field{Name: h, Value: v})
		}
		if !empty {
			rows = append(rows, row)
		}
	}
	return rows
}
