package defaultsync

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/urpmd/urpmd/internal/store"
)

func openTestDB(t *testing.T) *store.DB {
	t.Helper()
	dir := t.TempDir()
	db, err := store.Open(filepath.Join(dir, "urpmd.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSync_replacesPackages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("foo|0|1.0|1|x86_64|100|foo-1.0-1.x86_64.rpm|a foo package\n"))
		w.Write([]byte("bar|0|2.0|1|x86_64|200|bar-2.0-1.x86_64.rpm|a bar package\n"))
	}))
	defer srv.Close()

	db := openTestDB(t)
	if err := db.AddMedia("main", srv.URL, false); err != nil {
		t.Fatalf("AddMedia: %v", err)
	}

	s := New()
	result, err := s.Sync(context.Background(), db, "main", true)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !result.Success || result.PackagesCount != 2 {
		t.Fatalf("Sync result = %+v", result)
	}

	p, ok, err := db.GetPackage("foo")
	if err != nil || !ok {
		t.Fatalf("GetPackage foo: %+v ok=%v err=%v", p, ok, err)
	}
	if p.Filename != "foo-1.0-1.x86_64.rpm" {
		t.Errorf("Filename = %q", p.Filename)
	}

	txns, err := db.Transactions(10)
	if err != nil {
		t.Fatalf("Transactions: %v", err)
	}
	if len(txns) != 1 || txns[0].Kind != "sync" || txns[0].Media != "main" {
		t.Fatalf("Transactions = %+v, want one sync row for main", txns)
	}
}

func TestSync_unknownMedia(t *testing.T) {
	db := openTestDB(t)
	s := New()
	result, err := s.Sync(context.Background(), db, "nope", false)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false for unknown media")
	}
}

func TestSync_upstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	db := openTestDB(t)
	db.AddMedia("main", srv.URL, false)

	s := New()
	result, err := s.Sync(context.Background(), db, "main", true)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if result.Success {
		t.Error("expected Success=false on 404")
	}
}
