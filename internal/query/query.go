// Package query implements the query and peer surface: the
// daemon's JSON-over-HTTP control plane, generalizing daemon.py's
// get_status/get_media_list/check_available/check_have_packages/get_peers/
// register_peer handlers, wired through a single mux the way
// cmd/plex-tuner/main.go.
package query

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/metrics"
	"github.com/urpmd/urpmd/internal/store"
)

// Server answers the daemon's control-plane HTTP requests.
type Server struct {
	DB        *store.DB
	BaseDir   string
	DBPath    string
	Host      string
	Port      int
	Arch      string
	Discovery collab.Discovery
	Resolver  collab.Resolver
	Syncer    collab.Syncer
	Log       zerolog.Logger

	startTime time.Time

	mu          sync.RWMutex
	lastRefresh time.Time
}

// New returns a Server. startTime should be recorded once at daemon boot.
func New(db *store.DB, baseDir, dbPath, host string, port int, discovery collab.Discovery, resolver collab.Resolver, syncer collab.Syncer, log zerolog.Logger, startTime time.Time) *Server {
	return &Server{
		DB:        db,
		BaseDir:   baseDir,
		DBPath:    dbPath,
		Host:      host,
		Port:      port,
		Discovery: discovery,
		Resolver:  resolver,
		Syncer:    syncer,
		Log:       log,
		startTime: startTime,
	}
}

// NoteRefresh records the time of the most recently completed sync, for
// status()'s "last refresh" field. Called by the scheduler after each
// successful metadata-check tick.
func (s *Server) NoteRefresh(at time.Time) {
	s.mu.Lock()
	s.lastRefresh = at
	s.mu.Unlock()
}

// Mux builds the daemon's HTTP surface: the JSON control endpoints plus
// /metrics, mirroring cmd/plex-tuner/main.go's single mux.Handle(...) wiring.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/media", s.handleMediaList)
	mux.HandleFunc("/check_available", s.handleCheckAvailable)
	mux.HandleFunc("/available_updates", s.handleAvailableUpdates)
	mux.HandleFunc("/have", s.handleHave)
	mux.HandleFunc("/peers", s.handlePeers)
	mux.HandleFunc("/register_peer", s.handleRegisterPeer)
	mux.HandleFunc("/refresh", s.handleRefresh)
	mux.HandleFunc("/transactions", s.handleTransactions)
	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// RefreshAll forces an immediate sync of every enabled media, mirroring
// what SIGHUP does to the running daemon. Shared by the
// SIGHUP handler and the /refresh HTTP endpoint so "urpmd refresh" works
// identically whether invoked locally or over the control surface.
func (s *Server) RefreshAll(ctx context.Context) (int, []string) {
	if s.Syncer == nil {
		return 0, []string{"no syncer configured"}
	}
	medias, err := s.DB.ListMedia()
	if err != nil {
		return 0, []string{err.Error()}
	}

	var synced int
	var errs []string
	for _, m := range medias {
		if !m.Enabled {
			continue
		}
		result, err := s.Syncer.Sync(ctx, s.DB, m.Name, true)
		if err != nil {
			errs = append(errs, m.Name+": "+err.Error())
			continue
		}
		if !result.Success {
			errs = append(errs, m.Name+": "+result.Error)
			continue
		}
		synced++
	}
	s.NoteRefresh(time.Now())
	return synced, errs
}

type refreshResponse struct {
	Synced int      `json:"synced"`
	Errors []string `json:"errors,omitempty"`
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	synced, errs := s.RefreshAll(r.Context())
	writeJSON(w, refreshResponse{Synced: synced, Errors: errs})
}

type statusResponse struct {
	Running     bool      `json:"running"`
	StartTime   time.Time `json:"start_time"`
	UptimeSecs  float64   `json:"uptime_seconds"`
	LastRefresh *time.Time `json:"last_refresh"`
	DBPath      string    `json:"db_path"`
	BaseDir     string    `json:"base_dir"`
	Host        string    `json:"host"`
	Port        int       `json:"port"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	var lastRefresh *time.Time
	if !s.lastRefresh.IsZero() {
		t := s.lastRefresh
		lastRefresh = &t
	}
	s.mu.RUnlock()

	writeJSON(w, statusResponse{
		Running:     true,
		StartTime:   s.startTime,
		UptimeSecs:  time.Since(s.startTime).Seconds(),
		LastRefresh: lastRefresh,
		DBPath:      s.DBPath,
		BaseDir:     s.BaseDir,
		Host:        s.Host,
		Port:        s.Port,
	})
}

func (s *Server) handleMediaList(w http.ResponseWriter, r *http.Request) {
	medias, err := s.DB.ListMedia()
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, medias)
}

type checkAvailableRequest struct {
	Names []string `json:"names"`
}

type availableEntry struct {
	Available   bool     `json:"available"`
	Version     string   `json:"version,omitempty"`
	Release     string   `json:"release,omitempty"`
	Arch        string   `json:"arch,omitempty"`
	Media       string   `json:"media,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

func (s *Server) handleCheckAvailable(w http.ResponseWriter, r *http.Request) {
	var req checkAvailableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	out := make(map[string]availableEntry, len(req.Names))
	for _, name := range req.Names {
		pkg, found, err := s.DB.GetPackage(name)
		if err != nil {
			httpError(w, err)
			return
		}
		if found {
			out[name] = availableEntry{
				Available: true,
				Version:   pkg.Version,
				Release:   pkg.Release,
				Arch:      pkg.Arch,
				Media:     pkg.Media,
				Summary:   pkg.Summary,
			}
			continue
		}
		hits, err := s.DB.Search("%"+name+"%", 5)
		if err != nil {
			httpError(w, err)
			return
		}
		suggestions := make([]string, 0, len(hits))
		for _, h := range hits {
			suggestions = append(suggestions, h.Name)
		}
		out[name] = availableEntry{Available: false, Suggestions: suggestions}
	}
	writeJSON(w, out)
}

func (s *Server) handleAvailableUpdates(w http.ResponseWriter, r *http.Request) {
	if s.Resolver == nil {
		writeJSON(w, collab.ResolveResult{Success: true})
		return
	}
	result, err := s.Resolver.ResolveUpgrade(r.Context(), s.DB, s.Arch)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, result)
}

type haveRequest struct {
	Filenames []string `json:"filenames"`
}

type haveEntry struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Path     string `json:"path"`
}

type haveResponse struct {
	Available []haveEntry `json:"available"`
	Missing   []string    `json:"missing"`
	Counts    [2]int      `json:"counts"`
}

// handleHave implements have(filenames[]): first-hit-wins
// lookup under <base>/medias/*/*/filename, relative path returned as
// "<hostname>/<media>/<filename>".
func (s *Server) handleHave(w http.ResponseWriter, r *http.Request) {
	var req haveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpErrorStatus(w, http.StatusBadRequest, err)
		return
	}

	resp := haveResponse{Available: []haveEntry{}, Missing: []string{}}
	for _, filename := range req.Filenames {
		if filename == "" || !strings.HasSuffix(filename, ".rpm") {
			resp.Missing = append(resp.Missing, filename)
			continue
		}
		entry, found := s.findPackageFile(filename)
		if !found {
			resp.Missing = append(resp.Missing, filename)
			continue
		}
		resp.Available = append(resp.Available, entry)
	}
	resp.Counts = [2]int{len(resp.Available), len(resp.Missing)}
	writeJSON(w, resp)
}

// findPackageFile walks <base>/medias/<hostname>/<media>/ looking for
// filename, returning the first match. Stat errors on a candidate skip to
// the next one rather than aborting the whole lookup.
func (s *Server) findPackageFile(filename string) (haveEntry, bool) {
	mediasDir := filepath.Join(s.BaseDir, "medias")
	hostEntries, err := os.ReadDir(mediasDir)
	if err != nil {
		return haveEntry{}, false
	}
	for _, hostEntry := range hostEntries {
		if !hostEntry.IsDir() {
			continue
		}
		hostname := hostEntry.Name()
		mediaDir := filepath.Join(mediasDir, hostname)
		mediaEntries, err := os.ReadDir(mediaDir)
		if err != nil {
			continue
		}
		for _, mediaEntry := range mediaEntries {
			if !mediaEntry.IsDir() {
				continue
			}
			media := mediaEntry.Name()
			candidate := filepath.Join(mediaDir, media, filename)
			info, err := os.Stat(candidate)
			if err != nil {
				continue
			}
			return haveEntry{
				Filename: filename,
				Size:     info.Size(),
				Path:     hostname + "/" + media + "/" + filename,
			}, true
		}
	}
	return haveEntry{}, false
}

// handleTransactions returns the most recent audit rows recorded by Sync
// and the pre-download engine, newest first. The limit query parameter
// caps the row count (defaults to 50, see store.DB.Transactions).
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	txns, err := s.DB.Transactions(limit)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, txns)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	if s.Discovery == nil {
		writeJSON(w, []collab.Peer{})
		return
	}
	writeJSON(w, s.Discovery.Peers())
}

type registerPeerRequest struct {
	Host  string   `json:"host"`
	Port  int      `json:"port"`
	Media []string `json:"media"`
}

func (s *Server) handleRegisterPeer(w http.ResponseWriter, r *http.Request) {
	if s.Discovery == nil {
		httpErrorStatus(w, http.StatusServiceUnavailable, errNoDiscovery)
		return
	}
	var req registerPeerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpErrorStatus(w, http.StatusBadRequest, err)
		return
	}
	peer, err := s.Discovery.RegisterPeer(req.Host, req.Port, req.Media)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, peer)
}

var errNoDiscovery = &queryError{"no discovery collaborator configured"}

type queryError struct{ msg string }

func (e *queryError) Error() string { return e.msg }

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Body may already be partially written; nothing more to do.
		return
	}
}

func httpError(w http.ResponseWriter, err error) {
	httpErrorStatus(w, http.StatusInternalServerError, err)
}

func httpErrorStatus(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
