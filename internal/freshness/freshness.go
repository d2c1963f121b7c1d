// Package freshness implements the freshness prober: a
// cheap HEAD-based check of whether a media's upstream synthesis index has
// changed since the last sync, via a
// internal/indexer/fetch conditional-GET machinery to the lighter
// HEAD-and-compare protocol used here.
package freshness

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/urpmd/urpmd/internal/cachepath"
	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/httpclient"
	"github.com/urpmd/urpmd/internal/metrics"
	"github.com/urpmd/urpmd/internal/store"
)

const userAgent = "urpmd/0.1"

// CheckResult describes the outcome of probing one media.
type CheckResult struct {
	Media   string
	Changed bool
	Synced  bool
	Err     error
}

// Prober checks each enabled media's upstream synthesis index for changes
// and invokes a Syncer when one is found.
type Prober struct {
	DB      *store.DB
	BaseDir string
	Syncer  collab.Syncer
	Client  *http.Client
	Limiter *rate.Limiter
	Log     zerolog.Logger
}

// New returns a Prober rate-limiting HEAD probes to maxConcurrent per
// second (burst maxConcurrent), using an httpclient.Default client whose
// per-request timeout is 30s.
func New(db *store.DB, baseDir string, syncer collab.Syncer, maxConcurrent int, log zerolog.Logger) *Prober {
	if maxConcurrent < 1 {
		maxConcurrent = 4
	}
	client := httpclient.Default()
	client.Timeout = 30 * time.Second
	return &Prober{
		DB:      db,
		BaseDir: baseDir,
		Syncer:  syncer,
		Client:  client,
		Limiter: rate.NewLimiter(rate.Limit(maxConcurrent), maxConcurrent),
		Log:     log,
	}
}

// CheckAll probes every enabled media and syncs those that changed.
// A media whose probe errors fails open: it is treated
// as changed and a sync is attempted, rather than silently skipped.
func (p *Prober) CheckAll(ctx context.Context) ([]CheckResult, error) {
	medias, err := p.DB.ListMedia()
	if err != nil {
		return nil, fmt.Errorf("freshness: list media: %w", err)
	}

	var results []CheckResult
	for _, m := range medias {
		if !m.Enabled {
			continue
		}
		results = append(results, p.checkOne(ctx, m))
	}
	return results, nil
}

func (p *Prober) checkOne(ctx context.Context, m store.Media) CheckResult {
	log := p.Log.With().Str("media", m.Name).Logger()

	if err := p.Limiter.Wait(ctx); err != nil {
		return CheckResult{Media: m.Name, Err: err}
	}

	changed, err := p.hasChanged(ctx, m)
	if err != nil {
		log.Warn().Err(err).Msg("freshness probe failed, assuming changed")
		metrics.FreshnessChecksTotal.WithLabelValues(m.Name, "error").Inc()
		changed = true
	} else if changed {
		metrics.FreshnessChecksTotal.WithLabelValues(m.Name, "changed").Inc()
	} else {
		metrics.FreshnessChecksTotal.WithLabelValues(m.Name, "unchanged").Inc()
		return CheckResult{Media: m.Name, Changed: false}
	}

	if p.Syncer == nil {
		return CheckResult{Media: m.Name, Changed: changed}
	}

	log.Info().Msg("synthesis changed, syncing media")
	syncResult, err := p.Syncer.Sync(ctx, p.DB, m.Name, true)
	if err != nil {
		return CheckResult{Media: m.Name, Changed: changed, Err: err}
	}
	if !syncResult.Success {
		return CheckResult{Media: m.Name, Changed: changed, Err: fmt.Errorf("sync failed: %s", syncResult.Error)}
	}
	return CheckResult{Media: m.Name, Changed: changed, Synced: true}
}

// hasChanged issues a HEAD against the media's synthesis index and compares
// Content-Length and Last-Modified against the locally cached copy's stat.
// No local copy is treated as changed.
func (p *Prober) hasChanged(ctx context.Context, m store.Media) (bool, error) {
	hostname := cachepath.HostnameFromURL(m.URL)
	localPath := cachepath.SynthesisPath(p.BaseDir, hostname, m.Name)

	info, statErr := os.Stat(localPath)
	if os.IsNotExist(statErr) {
		return true, nil
	}
	if statErr != nil {
		return false, fmt.Errorf("stat %s: %w", localPath, statErr)
	}

	remoteURL := m.URL + "/media_info/synthesis.hdlist.cz"
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, remoteURL, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := httpclient.DoWithRetry(ctx, p.Client, req, httpclient.FreshnessRetryPolicy)
	if err != nil {
		return false, fmt.Errorf("HEAD %s: %w", remoteURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("HEAD %s: HTTP %d", remoteURL, resp.StatusCode)
	}

	if resp.ContentLength >= 0 && resp.ContentLength != info.Size() {
		return true, nil
	}

	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		remoteTime, err := time.Parse(http.TimeFormat, lm)
		if err == nil && remoteTime.After(info.ModTime()) {
			return true, nil
		}
	}

	return false, nil
}
