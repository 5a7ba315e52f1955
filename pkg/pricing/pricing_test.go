package pricing

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mbertho/scrapview/pkg/ingest"
)

func writeList(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return p
}

func TestDiscover_PicksGreatestYear(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "Liste de prix 2024.csv", "")
	want := writeList(t, dir, "Liste de prix 2025.csv", "")
	writeList(t, dir, "Liste de prix 2023 v2.csv", "")

	path, found, err := Discover(dir, "Liste de prix")
	if err != nil || !found {
		t.Fatalf("Discover: found=%v err=%v", found, err)
	}
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestDiscover_ModTimeBreaksTies(t *testing.T) {
	dir := t.TempDir()
	old := writeList(t, dir, "Liste de prix 2025 v1.csv", "")
	want := writeList(t, dir, "Liste de prix 2025 v2.csv", "")

	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	path, found, err := Discover(dir, "Liste de prix")
	if err != nil || !found {
		t.Fatalf("Discover: found=%v err=%v", found, err)
	}
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
}

func TestDiscover_IgnoresExcelLockFiles(t *testing.T) {
	dir := t.TempDir()
	writeList(t, dir, "~$Liste de prix 2025.xlsx", "")

	_, found, err := Discover(dir, "Liste de prix")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if found {
		t.Fatalf("expected lock file to be ignored")
	}
}

func TestDiscover_MissingDirIsNotAnError(t *testing.T) {
	_, found, err := Discover(filepath.Join(t.TempDir(), "nope"), "Liste de prix")
	if err != nil {
		t.Fatalf("expected graceful degradation, got %v", err)
	}
	if found {
		t.Fatalf("expected found=false")
	}
}

func TestLoadFile_LotPriceScaling(t *testing.T) {
	dir := t.TempDir()
	p := writeList(t, dir, "Liste de prix 2025.csv",
		"Reference;Prix\nX500;2 400,00 €\nX501;0\nX502;-5\n;10\nX500;9999\n")

	table, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("expected 1 entry, got %d: %v", len(table), table)
	}
	if got := table["X500"]; got != 2.4 {
		t.Fatalf("X500 = %v, want 2.4", got)
	}
}

func TestEnrich_ReferenceWins(t *testing.T) {
	table := Table{"X500": 3.0}
	records := []ingest.Record{
		{Material: "X500", UnitPrice: 2.0},
		{Material: "X999", UnitPrice: 1.5},
	}

	table.Enrich(records)
	if records[0].UnitPrice != 3.0 {
		t.Fatalf("listed material = %v, want reference price", records[0].UnitPrice)
	}
	if records[1].UnitPrice != 1.5 {
		t.Fatalf("unlisted material = %v, want export price kept", records[1].UnitPrice)
	}
}

func TestLoad_NoListFound(t *testing.T) {
	table, found, err := Load(t.TempDir(), "Liste de prix")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if found || table != nil {
		t.Fatalf("expected no table, got found=%v table=%v", found, table)
	}
}
