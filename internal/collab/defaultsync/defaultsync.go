// Package defaultsync is the reference Syncer collaborator. It fetches a
// media's synthesis index and rewrites the package store for that media.
//
// Decompressing the real urpmi ".cz" synthesis format and parsing raw RPM
// headers are explicitly out of scope for the core (the
// synthesis-index decompressor" is an external collaborator with "no novel
// engineering"). This reference implementation instead understands a
// simple pipe-delimited line format so the daemon is runnable standalone
// against a test mirror; production deployments inject a Syncer backed by
// the real decompressor/header-parser pair.
package defaultsync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/httpclient"
	"github.com/urpmd/urpmd/internal/store"
)

// Syncer is the reference collaborator satisfying collab.Syncer.
type Syncer struct {
	Client *http.Client
}

// New returns a Syncer using httpclient.Default().
func New() *Syncer {
	return &Syncer{Client: httpclient.Default()}
}

// Sync fetches <media.URL>/media_info/synthesis.hdlist and replaces the
// media's package rows wholesale ("rows are replaced wholesale
// per media resync").
func (s *Syncer) Sync(ctx context.Context, db *store.DB, mediaName string, force bool) (collab.SyncResult, error) {
	m, ok, err := db.GetMedia(mediaName)
	if err != nil {
		return collab.SyncResult{}, fmt.Errorf("defaultsync: get media %s: %w", mediaName, err)
	}
	if !ok {
		return collab.SyncResult{Success: false, Error: "media not found"}, nil
	}

	client := s.Client
	if client == nil {
		client = httpclient.Default()
	}

	url := strings.TrimRight(m.URL, "/") + "/media_info/synthesis.hdlist"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return collab.SyncResult{}, fmt.Errorf("defaultsync: build request: %w", err)
	}
	req.Header.Set("User-Agent", "urpmd/0.1")

	resp, err := httpclient.DoWithRetry(ctx, client, req, httpclient.MirrorRetryPolicy)
	if err != nil {
		return collab.SyncResult{Success: false, Error: err.Error()}, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return collab.SyncResult{Success: false, Error: fmt.Sprintf("unexpected status %d", resp.StatusCode)}, nil
	}

	pkgs, err := parseSynthesis(resp.Body, mediaName, m.URL)
	if err != nil {
		return collab.SyncResult{Success: false, Error: err.Error()}, nil
	}

	now := time.Now()
	if err := db.ReplaceMediaPackages(mediaName, pkgs, now); err != nil {
		return collab.SyncResult{}, fmt.Errorf("defaultsync: replace packages: %w", err)
	}

	detail := fmt.Sprintf("synced %d packages", len(pkgs))
	if err := db.RecordTransaction("sync", mediaName, detail, now); err != nil {
		return collab.SyncResult{}, fmt.Errorf("defaultsync: record transaction: %w", err)
	}

	return collab.SyncResult{Success: true, PackagesCount: len(pkgs)}, nil
}

// parseSynthesis reads the reference pipe-delimited format:
// name|epoch|version|release|arch|size|filename|summary
func parseSynthesis(body io.Reader, mediaName, baseURL string) ([]store.Package, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var pkgs []store.Package
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 7 {
			continue
		}
		size, _ := strconv.ParseInt(fields[5], 10, 64)
		summary := ""
		if len(fields) >= 8 {
			summary = fields[7]
		}
		pkgs = append(pkgs, store.Package{
			Name:     fields[0],
			Epoch:    fields[1],
			Version:  fields[2],
			Release:  fields[3],
			Arch:     fields[4],
			Size:     size,
			Filename: fields[6],
			URL:      strings.TrimRight(baseURL, "/") + "/" + fields[6],
			Media:    mediaName,
			Summary:  summary,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("defaultsync: scan synthesis: %w", err)
	}
	return pkgs, nil
}
