package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/mbertho/scrapview/pkg/aggregate"
	"github.com/mbertho/scrapview/pkg/ingest"
)

func sample(scope string) *Snapshot {
	recs := []ingest.Record{
		{Machine: "850MS135", Material: "X500", RejectQty: 2, UnitPrice: 3, Reason: "fissure"},
	}
	return &Snapshot{
		Scope:       scope,
		CreatedAt:   time.Now().UTC(),
		RecordCount: len(recs),
		TotalRows:   5,
		Aggregates:  aggregate.Run(recs, nil, aggregate.DefaultPolicy()),
		RawRecords:  recs,
	}
}

func TestWriteRead_Roundtrip(t *testing.T) {
	store := NewStore(t.TempDir())
	snap := sample(ScopeGlobal)

	if err := store.Write(snap); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := store.Read(ScopeGlobal)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Scope != ScopeGlobal || got.RecordCount != 1 || got.TotalRows != 5 {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if len(got.RawRecords) != 1 || got.RawRecords[0].Machine != "850MS135" {
		t.Fatalf("raw records mismatch: %+v", got.RawRecords)
	}
	if got.Aggregates.Global.RejectCost != 6 {
		t.Fatalf("aggregates mismatch: %+v", got.Aggregates.Global)
	}
}

func TestRead_NotInitialized(t *testing.T) {
	store := NewStore(t.TempDir())

	_, err := store.Read(ScopeGlobal)
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}

func TestWrite_RejectsInconsistentCount(t *testing.T) {
	store := NewStore(t.TempDir())
	snap := sample(ScopeGlobal)
	snap.RecordCount = 42

	if err := store.Write(snap); err == nil {
		t.Fatalf("expected count mismatch to be rejected")
	}
}

func TestWrite_ReplacesExisting(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Write(sample(ScopeGlobal)); err != nil {
		t.Fatalf("first write: %v", err)
	}

	next := sample(ScopeGlobal)
	next.TotalRows = 99
	if err := store.Write(next); err != nil {
		t.Fatalf("second write: %v", err)
	}

	got, err := store.Read(ScopeGlobal)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.TotalRows != 99 {
		t.Fatalf("expected replacement, got TotalRows=%d", got.TotalRows)
	}
}

func TestInfo(t *testing.T) {
	store := NewStore(t.TempDir())

	info, err := store.Info(ScopeGlobal)
	if err != nil {
		t.Fatalf("Info on empty store: %v", err)
	}
	if info.Exists {
		t.Fatalf("expected Exists=false, got %+v", info)
	}

	if err := store.Write(sample(ScopeGlobal)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	info, err = store.Info(ScopeGlobal)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if !info.Exists || info.RecordCount != 1 || info.SizeBytes == 0 {
		t.Fatalf("unexpected info: %+v", info)
	}
	if info.CreatedAt.IsZero() {
		t.Fatalf("expected CreatedAt to be peeked")
	}
}

func TestUnitScope(t *testing.T) {
	if got := UnitScope("PM1"); got != "unit-pm1" {
		t.Fatalf("UnitScope = %q", got)
	}
}
