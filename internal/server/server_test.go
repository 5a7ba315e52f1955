package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/mbertho/scrapview/pkg/forms"
	"github.com/mbertho/scrapview/pkg/refresh"
	"github.com/mbertho/scrapview/pkg/snapshot"
)

const exportCSV = `WORKCENTER,Material,Designation,Qte scrap,Qte prod app,Prix unit,Motif
850MS135,X500,Widget,10,40,2,fissure
850MS143,X501,Gadget,2,50,1,choc
`

// newTestServer wires a server over real stores with a temp-file export.
// Snapshots start empty; tests refresh through the API when they need data.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	dir := t.TempDir()
	src := filepath.Join(dir, "export.csv")
	if err := os.WriteFile(src, []byte(exportCSV), 0o644); err != nil {
		t.Fatalf("writing export: %v", err)
	}

	store := snapshot.NewStore(dir)
	runner := refresh.NewRunner(refresh.Config{SourcePath: src}, store, nil, nil)
	sched := refresh.NewScheduler(runner, "", "")

	db, err := forms.Open(filepath.Join(dir, "forms.sqlite"))
	if err != nil {
		t.Fatalf("opening forms db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ts := httptest.NewServer(New(store, sched, db, nil).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, buf.Bytes()
}

func post(t *testing.T, ts *httptest.Server, path string, body []byte) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatalf("reading body: %v", err)
	}
	return resp, buf.Bytes()
}

func TestData_NotInitialized(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts, "/api/data")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", resp.StatusCode)
	}
	var nr struct {
		Initialized bool   `json:"initialized"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(body, &nr); err != nil {
		t.Fatalf("decoding: %v: %s", err, body)
	}
	if nr.Initialized || nr.Scope != "global" {
		t.Fatalf("body = %s", body)
	}
}

func TestRefreshThenData(t *testing.T) {
	ts := newTestServer(t)

	resp, body := post(t, ts, "/api/cache/refresh", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status = %d: %s", resp.StatusCode, body)
	}
	var out refresh.Outcome
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding outcome: %v", err)
	}
	if !out.Success || out.Family != "global" {
		t.Fatalf("outcome = %+v", out)
	}

	resp, body = get(t, ts, "/api/data")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("data status = %d", resp.StatusCode)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if snap.RecordCount != 2 || snap.Aggregates.Global.RejectCost != 22 {
		t.Fatalf("snapshot = %+v", snap.Aggregates.Global)
	}
}

func TestUnitEndpoints(t *testing.T) {
	ts := newTestServer(t)

	if resp, body := post(t, ts, "/api/units/refresh", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("units refresh = %d: %s", resp.StatusCode, body)
	}

	resp, body := get(t, ts, "/api/units")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("units list = %d", resp.StatusCode)
	}
	var list struct {
		Units []string `json:"units"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if len(list.Units) != 5 {
		t.Fatalf("units = %v", list.Units)
	}

	resp, body = get(t, ts, "/api/units/pm1")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unit data = %d: %s", resp.StatusCode, body)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if snap.Scope != "unit-pm1" || snap.RecordCount != 1 {
		t.Fatalf("snapshot = scope %s, %d records", snap.Scope, snap.RecordCount)
	}

	if resp, _ := get(t, ts, "/api/units/xx9"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown unit = %d, want 404", resp.StatusCode)
	}
}

func TestReferences(t *testing.T) {
	ts := newTestServer(t)
	post(t, ts, "/api/cache/refresh", nil)

	resp, body := get(t, ts, "/api/references?search=widget")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("references = %d", resp.StatusCode)
	}
	var out struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Count != 1 {
		t.Fatalf("count = %d, want 1 match: %s", out.Count, body)
	}

	if resp, _ := get(t, ts, "/api/references/X500"); resp.StatusCode != http.StatusOK {
		t.Fatalf("reference by material = %d", resp.StatusCode)
	}
	if resp, _ := get(t, ts, "/api/references/NOPE"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing reference = %d, want 404", resp.StatusCode)
	}
}

func TestFormsCRUD(t *testing.T) {
	ts := newTestServer(t)

	resp, body := post(t, ts, "/api/forms", []byte(`{"machine":"850MS135","material":"X500","reason":"fissure"}`))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create = %d: %s", resp.StatusCode, body)
	}
	var f forms.Form
	if err := json.Unmarshal(body, &f); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if f.ID == 0 || f.Numero == "" {
		t.Fatalf("form = %+v", f)
	}

	if resp, _ := get(t, ts, "/api/forms/"+strconv.FormatInt(f.ID, 10)); resp.StatusCode != http.StatusOK {
		t.Fatalf("get form = %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/api/forms/"+strconv.FormatInt(f.ID, 10), nil)
	dresp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	dresp.Body.Close()
	if dresp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete = %d", dresp.StatusCode)
	}

	if resp, _ := get(t, ts, "/api/forms/"+strconv.FormatInt(f.ID, 10)); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	resp, body := get(t, ts, "/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health = %d", resp.StatusCode)
	}
	var out struct {
		Status    string           `json:"status"`
		Scheduler []refresh.Status `json:"scheduler"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decoding: %v", err)
	}
	if out.Status != "ok" || len(out.Scheduler) != 2 {
		t.Fatalf("health body = %s", body)
	}
}
