package ingest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func TestIsRemote(t *testing.T) {
	if !IsRemote("http://intranet/export.csv") || !IsRemote("https://intranet/export.xlsx") {
		t.Fatalf("expected http(s) locations to be remote")
	}
	if IsRemote("/srv/data/export.csv") || IsRemote("data/export.csv") {
		t.Fatalf("expected local paths not to be remote")
	}
}

func TestFetchRemote(t *testing.T) {
	const payload = "WORKCENTER,Qte scrap\n850MS135,3\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer ts.Close()

	local, cleanup, err := FetchRemote(context.Background(), ts.URL+"/export.csv")
	if err != nil {
		t.Fatalf("FetchRemote: %v", err)
	}
	if !strings.HasSuffix(local, ".csv") {
		t.Fatalf("expected extension preserved, got %s", local)
	}
	data, err := os.ReadFile(local)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if string(data) != payload {
		t.Fatalf("payload mismatch: %q", data)
	}

	cleanup()
	if _, err := os.Stat(local); !os.IsNotExist(err) {
		t.Fatalf("expected cleanup to remove the temp file")
	}
}

func TestFetchRemote_HTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	_, _, err := FetchRemote(context.Background(), ts.URL+"/export.csv")
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("expected ErrSourceUnavailable, got %v", err)
	}
}
