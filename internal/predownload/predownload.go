// Package predownload implements the pre-download engine:
// resolve pending upgrades, gate on size ceiling and host idleness, hand
// download items to the injected Downloader, then sweep the cache tree for
// stale artifacts. Generalizes scheduler.py's _run_predownload /
// _predownload_packages / _run_cache_cleanup.
package predownload

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/idle"
	"github.com/urpmd/urpmd/internal/metrics"
	"github.com/urpmd/urpmd/internal/store"
)

// DefaultMaxBytes is the default pre-download size ceiling, 500 MiB.
const DefaultMaxBytes int64 = 500 * 1024 * 1024

// DefaultCacheMaxAge mirrors the cleanup sweep's 30-day retention window.
const DefaultCacheMaxAge = 30 * 24 * time.Hour

// RunResult summarizes one pre-download pipeline execution.
type RunResult struct {
	Skipped      bool
	SkipReason   string
	Downloaded   int
	Cached       int
	Errors       []string
	CleanupRan   bool
	BytesFreed   int64
	FilesRemoved int
}

// Engine orchestrates one pre-download run.
type Engine struct {
	DB         *store.DB
	BaseDir    string
	Resolver   collab.Resolver
	Downloader collab.Downloader
	Idle       *idle.Prober
	Arch       string
	MaxBytes   int64
	CacheMaxAge time.Duration
	Log        zerolog.Logger
}

// New returns an Engine with spec defaults for MaxBytes/CacheMaxAge when
// left zero.
func New(db *store.DB, baseDir string, resolver collab.Resolver, downloader collab.Downloader, idleProber *idle.Prober, arch string, maxBytes int64, cacheMaxAge time.Duration, log zerolog.Logger) *Engine {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if cacheMaxAge <= 0 {
		cacheMaxAge = DefaultCacheMaxAge
	}
	return &Engine{
		DB:          db,
		BaseDir:     baseDir,
		Resolver:    resolver,
		Downloader:  downloader,
		Idle:        idleProber,
		Arch:        arch,
		MaxBytes:    maxBytes,
		CacheMaxAge: cacheMaxAge,
		Log:         log,
	}
}

// Run executes one pipeline pass: resolve → size-check → idle-check →
// download → cleanup, in that strict order ("Ordering
// guarantees").
func (e *Engine) Run(ctx context.Context) (RunResult, error) {
	resolved, err := e.Resolver.ResolveUpgrade(ctx, e.DB, e.Arch)
	if err != nil {
		return RunResult{}, fmt.Errorf("predownload: resolve: %w", err)
	}

	if len(resolved.Actions) == 0 {
		return RunResult{Skipped: true, SkipReason: "no pending upgrades"}, nil
	}

	var totalSize int64
	for _, a := range resolved.Actions {
		totalSize += a.Size
	}
	if totalSize > e.MaxBytes {
		e.Log.Warn().Int64("total_bytes", totalSize).Int64("max_bytes", e.MaxBytes).Msg("predownload skipped: exceeds size ceiling")
		return RunResult{Skipped: true, SkipReason: "exceeds size ceiling"}, nil
	}

	isIdle := true
	if e.Idle != nil {
		isIdle = e.Idle.IsIdle(func(msg string) { e.Log.Warn().Msg(msg) })
	}
	if isIdle {
		metrics.HostIdle.Set(1)
	} else {
		metrics.HostIdle.Set(0)
		e.Log.Debug().Msg("predownload skipped: host not idle")
		return RunResult{Skipped: true, SkipReason: "host not idle"}, nil
	}

	items := make([]collab.DownloadItem, 0, len(resolved.Actions))
	for _, a := range resolved.Actions {
		items = append(items, collab.DownloadItem{
			URL:      a.URL,
			Filename: a.Filename,
			Media:    a.Media,
			Size:     a.Size,
		})
	}

	dlResult, err := e.Downloader.Download(ctx, items, func(item collab.DownloadItem, done, total int64) {
		e.Log.Debug().Str("filename", item.Filename).Int64("done", done).Int64("total", total).Msg("download progress")
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("predownload: download: %w", err)
	}
	metrics.PredownloadErrorsTotal.Add(float64(len(dlResult.Errors)))

	detail := fmt.Sprintf("downloaded %d, cached %d, errors %d", dlResult.Downloaded, dlResult.Cached, len(dlResult.Errors))
	if err := e.DB.RecordTransaction("predownload", "", detail, time.Now()); err != nil {
		e.Log.Warn().Err(err).Msg("failed to record predownload transaction")
	}

	result := RunResult{
		Downloaded: dlResult.Downloaded,
		Cached:     dlResult.Cached,
		Errors:     dlResult.Errors,
	}

	freed, removed, err := e.cleanup()
	if err != nil {
		e.Log.Warn().Err(err).Msg("cache cleanup failed")
	} else {
		result.CleanupRan = true
		result.BytesFreed = freed
		result.FilesRemoved = removed
		metrics.BytesCleanedTotal.Add(float64(freed))
	}

	return result, nil
}

// cleanup walks <base>/medias/**/*.rpm and removes files older than
// CacheMaxAge ("Cache cleanup policy"). Per-file errors are
// logged and skipped rather than aborting the sweep.
func (e *Engine) cleanup() (int64, int, error) {
	root := filepath.Join(e.BaseDir, "medias")
	cutoff := time.Now().Add(-e.CacheMaxAge)

	var freed int64
	var removed int

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			e.Log.Warn().Err(err).Str("path", path).Msg("cleanup: walk error, skipping")
			return nil
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rpm") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			e.Log.Warn().Err(err).Str("path", path).Msg("cleanup: stat error, skipping")
			return nil
		}
		if info.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil {
			e.Log.Warn().Err(err).Str("path", path).Msg("cleanup: remove error, skipping")
			return nil
		}
		freed += info.Size()
		removed++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return freed, removed, fmt.Errorf("cleanup: walk %s: %w", root, err)
	}

	e.Log.Info().Int64("bytes_freed", freed).Int("files_removed", removed).Msg("cache cleanup complete")
	return freed, removed, nil
}
