package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return p
}

func TestReadSource_CSV(t *testing.T) {
	p := writeFile(t, "export.csv",
		"WORKCENTER,Material,Qte scrap\n850MS135,X500,10\n850MS143,X501,5\n")

	src, err := ReadSource(p, "")
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if len(src.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(src.Rows))
	}
	if v, _ := src.Rows[0].Resolve(MachineColumns); v != "850MS135" {
		t.Fatalf("machine = %q", v)
	}
	if src.LastModified.IsZero() {
		t.Fatalf("expected LastModified to be set")
	}
}

func TestReadSource_SemicolonCSV(t *testing.T) {
	p := writeFile(t, "export.csv",
		"WORKCENTER;Qte scrap;Prix unit\n850MS135;3;2,5\n")

	src, err := ReadSource(p, "")
	if err != nil {
		t.Fatalf("ReadSource: %v", err)
	}
	if len(src.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(src.Rows))
	}
	if v, _ := src.Rows[0].Resolve(PriceColumns); v != "2,5" {
		t.Fatalf("price = %q", v)
	}
}

func TestReadSource_Missing(t *testing.T) {
	_, err := ReadSource(filepath.Join(t.TempDir(), "nope.csv"), "")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}

func TestReadSource_MalformedExcel(t *testing.T) {
	p := writeFile(t, "export.xlsx", "this is not a workbook")

	_, err := ReadSource(p, "")
	if !errors.Is(err, ErrSourceMalformed) {
		t.Fatalf("expected ErrSourceMalformed, got %v", err)
	}
}

func TestBuildRows_SkipsEmptyHeadersAndRows(t *testing.T) {
	rows := buildRows([][]string{
		{"Machine", "", "Qte scrap"},
		{"850MS135", "ignored", "4"},
		{"", "", ""},
		{"850MS143"},
	})

	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if len(rows[0].Fields) != 2 {
		t.Fatalf("expected empty-header column dropped, got %v", rows[0].Fields)
	}
	if len(rows[1].Fields) != 1 {
		t.Fatalf("expected short row to keep present cells, got %v", rows[1].Fields)
	}
}
