package query

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/log"
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

type stubDiscovery struct {
	peers []collab.Peer
}

func (s *stubDiscovery) Start(ctx context.Context) error { return nil }
func (s *stubDiscovery) Stop() error                     { return nil }
func (s *stubDiscovery) Peers() []collab.Peer            { return s.peers }
func (s *stubDiscovery) RegisterPeer(host string, port int, media []string) (collab.Peer, error) {
	p := collab.Peer{Host: host, Port: port, Media: media, LastSeen: time.Now()}
	s.peers = append(s.peers, p)
	return p, nil
}

type stubSyncer struct{ calls []string }

func (s *stubSyncer) Sync(ctx context.Context, db *store.DB, mediaName string, force bool) (collab.SyncResult, error) {
	s.calls = append(s.calls, mediaName)
	return collab.SyncResult{Success: true}, nil
}

type stubResolver struct{ result collab.ResolveResult }

func (s *stubResolver) ResolveUpgrade(ctx context.Context, db *store.DB, arch string) (collab.ResolveResult, error) {
	return s.result, nil
}

func newTestServer(t *testing.T, db *store.DB, baseDir string) *Server {
	disc := &stubDiscovery{}
	res := &stubResolver{result: collab.ResolveResult{Success: true}}
	return New(db, baseDir, filepath.Join(baseDir, "urpmd.db"), "127.0.0.1", 8091, disc, res, nil, log.WithComponent("query"), time.Now())
}

func TestHandleStatus(t *testing.T) {
	db := openTestDB(t)
	s := newTestServer(t, db, t.TempDir())

	req := httptest.NewRequest("GET", "/status", nil)
	rec := httptest.NewRecorder()
	s.handleStatus(rec, req)

	var resp statusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Running {
		t.Error("expected running=true")
	}
}

func TestHandleTransactions(t *testing.T) {
	db := openTestDB(t)
	db.RecordTransaction("sync", "main", "synced 3 packages", time.Now())
	db.RecordTransaction("predownload", "", "downloaded 1, cached 0, errors 0", time.Now())
	s := newTestServer(t, db, t.TempDir())

	req := httptest.NewRequest("GET", "/transactions", nil)
	rec := httptest.NewRecorder()
	s.handleTransactions(rec, req)

	var txns []store.Transaction
	if err := json.NewDecoder(rec.Body).Decode(&txns); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(txns) != 2 {
		t.Fatalf("txns = %+v, want 2 rows", txns)
	}
}

func TestHandleCheckAvailable(t *testing.T) {
	db := openTestDB(t)
	db.AddMedia("main", "http://mirror.example", true)
	db.ReplaceMediaPackages("main", []store.Package{
		{Name: "foo", Version: "1.0", Release: "1", Arch: "x86_64", Filename: "foo-1.0-1.x86_64.rpm"},
	}, time.Now())
	s := newTestServer(t, db, t.TempDir())

	body, _ := json.Marshal(checkAvailableRequest{Names: []string{"foo", "nonexistent"}})
	req := httptest.NewRequest("POST", "/check_available", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleCheckAvailable(rec, req)

	var out map[string]availableEntry
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out["foo"].Available {
		t.Errorf("expected foo available, got %+v", out["foo"])
	}
	if out["nonexistent"].Available {
		t.Error("expected nonexistent unavailable")
	}
}

func TestHandleHave(t *testing.T) {
	baseDir := t.TempDir()
	mediaDir := filepath.Join(baseDir, "medias", "mirror.example", "main")
	os.MkdirAll(mediaDir, 0755)
	os.WriteFile(filepath.Join(mediaDir, "foo-1.rpm"), []byte("1234"), 0644)

	db := openTestDB(t)
	s := newTestServer(t, db, baseDir)

	body, _ := json.Marshal(haveRequest{Filenames: []string{"foo-1.rpm", "bar-2.rpm", "weird_name"}})
	req := httptest.NewRequest("POST", "/have", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleHave(rec, req)

	var resp haveResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Available) != 1 || resp.Available[0].Path != "mirror.example/main/foo-1.rpm" {
		t.Errorf("Available = %+v", resp.Available)
	}
	if len(resp.Missing) != 2 {
		t.Errorf("Missing = %v, want 2", resp.Missing)
	}
	if resp.Counts != [2]int{1, 2} {
		t.Errorf("Counts = %v", resp.Counts)
	}
}

func TestHandleHave_empty(t *testing.T) {
	db := openTestDB(t)
	s := newTestServer(t, db, t.TempDir())

	body, _ := json.Marshal(haveRequest{Filenames: []string{}})
	req := httptest.NewRequest("POST", "/have", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleHave(rec, req)

	var resp haveResponse
	json.NewDecoder(rec.Body).Decode(&resp)
	if len(resp.Available) != 0 || len(resp.Missing) != 0 || resp.Counts != [2]int{0, 0} {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHandleRegisterPeerAndPeers(t *testing.T) {
	db := openTestDB(t)
	s := newTestServer(t, db, t.TempDir())

	body, _ := json.Marshal(registerPeerRequest{Host: "10.0.0.5", Port: 8091, Media: []string{"main"}})
	req := httptest.NewRequest("POST", "/register_peer", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.handleRegisterPeer(rec, req)

	var peer collab.Peer
	if err := json.NewDecoder(rec.Body).Decode(&peer); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if peer.Host != "10.0.0.5" {
		t.Errorf("peer = %+v", peer)
	}

	req2 := httptest.NewRequest("GET", "/peers", nil)
	rec2 := httptest.NewRecorder()
	s.handlePeers(rec2, req2)
	var peers []collab.Peer
	json.NewDecoder(rec2.Body).Decode(&peers)
	if len(peers) != 1 {
		t.Errorf("peers = %+v", peers)
	}
}

func TestRefreshAll_syncsEnabledMediaOnly(t *testing.T) {
	db := openTestDB(t)
	db.AddMedia("main", "http://mirror.example/main", true)
	db.AddMedia("contrib", "http://mirror.example/contrib", true)
	db.SetMediaEnabled("contrib", false)

	s := newTestServer(t, db, t.TempDir())
	syncer := &stubSyncer{}
	s.Syncer = syncer

	synced, errs := s.RefreshAll(context.Background())
	if synced != 1 || len(errs) != 0 {
		t.Fatalf("synced=%d errs=%v", synced, errs)
	}
	if len(syncer.calls) != 1 || syncer.calls[0] != "main" {
		t.Errorf("calls = %v, want only main", syncer.calls)
	}
}
