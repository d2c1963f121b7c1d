// Package cachepath computes filesystem paths within the local cache tree
// <base>/medias/<hostname>/<media>/<filename>.
package cachepath

import (
	"net/url"
	"path/filepath"
	"strings"
)

// MediasDir returns <base>/medias, the root of the cache tree.
func MediasDir(base string) string {
	return filepath.Join(base, "medias")
}

// MediaDir returns <base>/medias/<hostname>/<media>, the directory holding
// one media's synthesis index and downloaded RPMs.
func MediaDir(base, hostname, media string) string {
	return filepath.Join(MediasDir(base), sanitize(hostname), sanitize(media))
}

// SynthesisPath returns the local cache path for a media's synthesis
// index, checked by the freshness prober.
func SynthesisPath(base, hostname, media string) string {
	return filepath.Join(MediaDir(base, hostname, media), "media_info", "synthesis.hdlist.cz")
}

// PackagePath returns the cache path for a downloaded RPM.
func PackagePath(base, hostname, media, filename string) string {
	return filepath.Join(MediaDir(base, hostname, media), sanitize(filename))
}

// PartialPath returns the in-progress path used while downloading; the
// downloader renames it to the final path only on success.
func PartialPath(finalPath string) string {
	return finalPath + ".partial"
}

// HostnameFromURL derives the cache tree's <hostname> component from a
// media's base URL: the lowercased network host
// ("hostname_from_url(url) -> string" collaborator contract — implemented
// directly here since it has no state and no pluggable behavior).
func HostnameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown-host"
	}
	return strings.ToLower(u.Hostname())
}

// sanitize strips path-traversal and separator characters from a single
// path component so an adversarial media name or filename can't escape the
// cache tree.
func sanitize(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, "\x00", "_")
	s = strings.ReplaceAll(s, "..", "_")
	if s == "" {
		s = "unknown"
	}
	return s
}
