// Package snapshot persists aggregation results as versioned JSON artifacts,
// one file per scope, replaced atomically so readers never see a half-written
// snapshot and never pay for re-aggregation.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/mbertho/scrapview/pkg/aggregate"
	"github.com/mbertho/scrapview/pkg/ingest"
)

// ErrNotInitialized is returned by Read before any refresh has completed for
// the scope. Callers surface it as a "not ready" state, distinct from a
// failure.
var ErrNotInitialized = errors.New("snapshot not initialized")

// ScopeGlobal is the whole-plant scope; unit scopes are "unit-<id>".
const ScopeGlobal = "global"

// UnitScope returns the snapshot scope id for a production unit.
func UnitScope(unitID string) string {
	return "unit-" + strings.ToLower(unitID)
}

// Snapshot is one fully-rebuilt aggregate artifact. All fields derive from
// the same rawRecords set within one refresh cycle.
type Snapshot struct {
	Scope              string               `json:"scope"`
	CreatedAt          time.Time            `json:"createdAt"`
	SourceLastModified time.Time            `json:"sourceLastModified"`
	RecordCount        int                  `json:"recordCount"`
	TotalRows          int                  `json:"totalRows"`
	Aggregates         aggregate.Result     `json:"aggregates"`
	References         []ingest.MaterialRef `json:"references,omitempty"`
	RawRecords         []ingest.Record      `json:"rawRecords"`
}

// Info is cheap artifact metadata, read without decoding rawRecords.
type Info struct {
	Scope       string    `json:"scope"`
	Exists      bool      `json:"exists"`
	Path        string    `json:"path,omitempty"`
	SizeBytes   int64     `json:"sizeBytes,omitempty"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	RecordCount int       `json:"recordCount,omitempty"`
}

// Store reads and writes snapshot artifacts under <dataDir>/cache.
type Store struct {
	dir string
}

func NewStore(dataDir string) *Store {
	return &Store{dir: filepath.Join(dataDir, "cache")}
}

func (s *Store) path(scope string) string {
	return filepath.Join(s.dir, strings.ToLower(scope)+".json")
}

// Write serializes the snapshot to a temp file in the artifact directory and
// renames it into place. The rename is what makes concurrent reads safe: a
// reader opens either the old artifact or the new one, never a partial file.
func (s *Store) Write(snap *Snapshot) error {
	if snap.RecordCount != len(snap.RawRecords) {
		return fmt.Errorf("snapshot %s: recordCount %d does not match %d raw records",
			snap.Scope, snap.RecordCount, len(snap.RawRecords))
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+strings.ToLower(snap.Scope)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode snapshot %s: %w", snap.Scope, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(snap.Scope)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace snapshot %s: %w", snap.Scope, err)
	}
	return nil
}

// Read loads the current artifact for the scope. Never triggers ingestion.
func (s *Store) Read(scope string) (*Snapshot, error) {
	data, err := os.ReadFile(s.path(scope))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("scope %s: %w", scope, ErrNotInitialized)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", scope, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", scope, err)
	}
	return &snap, nil
}

// Info stats the artifact and peeks only at the metadata fields. Snapshots
// holding tens of thousands of raw records make a full decode wasteful here.
func (s *Store) Info(scope string) (Info, error) {
	p := s.path(scope)
	st, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return Info{Scope: scope, Exists: false}, nil
		}
		return Info{}, fmt.Errorf("stat snapshot %s: %w", scope, err)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return Info{}, fmt.Errorf("read snapshot %s: %w", scope, err)
	}
	info := Info{
		Scope:       scope,
		Exists:      true,
		Path:        p,
		SizeBytes:   st.Size(),
		RecordCount: int(gjson.GetBytes(data, "recordCount").Int()),
	}
	if created := gjson.GetBytes(data, "createdAt").String(); created != "" {
		if t, perr := time.Parse(time.RFC3339Nano, created); perr == nil {
			info.CreatedAt = t
		}
	}
	return info, nil
}
