// Package collab defines the narrow interfaces the daemon core delegates
// to: Sync, Resolver, Downloader, and Discovery. The core
// never implements repository indexing, dependency resolution, RPM
// transfer, or peer transport itself — it only orchestrates these
// collaborators: pluggable behavior sits behind a narrow interface rather
// than being implemented inline.
package collab

import (
	"context"
	"time"

	"github.com/urpmd/urpmd/internal/store"
)

// SyncResult is returned by Syncer.Sync.
type SyncResult struct {
	Success       bool
	PackagesCount int
	Error         string
}

// UpgradeAction describes one pending package upgrade, as produced by
// Resolver.ResolveUpgrade.
type UpgradeAction struct {
	Name       string
	CurrentEVR string
	TargetEVR  string
	Arch       string
	Size       int64
	URL        string
	Filename   string
	Media      string
}

// ResolveResult is returned by Resolver.ResolveUpgrade.
type ResolveResult struct {
	Actions  []UpgradeAction
	Success  bool
	Problems []string
}

// DownloadItem is one file the Downloader must fetch into the cache.
type DownloadItem struct {
	URL      string
	Filename string
	Media    string
	Size     int64
}

// DownloadResult is returned by Downloader.Download.
type DownloadResult struct {
	Downloaded int
	Cached     int
	Errors     []string
}

// Peer is a LAN host willing to serve cached RPMs.
type Peer struct {
	Host     string
	Port     int
	Media    []string
	LastSeen time.Time
}

// Syncer rewrites the package store for one media from its upstream
// synthesis index.
type Syncer interface {
	Sync(ctx context.Context, db *store.DB, mediaName string, force bool) (SyncResult, error)
}

// Resolver computes the set of pending upgrades against the store.
type Resolver interface {
	ResolveUpgrade(ctx context.Context, db *store.DB, arch string) (ResolveResult, error)
}

// Downloader materializes download items into the cache tree, invoking
// progress for each item as bytes land.
type Downloader interface {
	Download(ctx context.Context, items []DownloadItem, progress func(item DownloadItem, done, total int64)) (DownloadResult, error)
}

// Discovery owns LAN peer discovery and registration.
type Discovery interface {
	Start(ctx context.Context) error
	Stop() error
	Peers() []Peer
	RegisterPeer(host string, port int, media []string) (Peer, error)
}

