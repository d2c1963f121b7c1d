package healthcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCheckMirror_ok(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	ctx := context.Background()
	if err := CheckMirror(ctx, srv.URL); err != nil {
		t.Fatalf("CheckMirror: %v", err)
	}
}

func TestCheckMirror_badStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()
	ctx := context.Background()
	if err := CheckMirror(ctx, srv.URL); err == nil {
		t.Fatal("expected error for 401")
	}
}

func TestCheckMirror_emptyURL(t *testing.T) {
	ctx := context.Background()
	if err := CheckMirror(ctx, ""); err == nil {
		t.Fatal("expected error for empty URL")
	}
}

func TestCheckQuerySurface_ok(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	ctx := context.Background()
	if err := CheckQuerySurface(ctx, srv.URL); err != nil {
		t.Fatalf("CheckQuerySurface: %v", err)
	}
}

func TestCheckQuerySurface_missing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	ctx := context.Background()
	if err := CheckQuerySurface(ctx, srv.URL); err == nil {
		t.Fatal("expected error for 404")
	}
}
