// Package defaultdownloader is the reference Downloader collaborator. It
// fetches each download item into the cache tree under cacheDir,
// issuing a HEAD for
// size/range support, then range or full GET) into a partial-then-rename
// write so a reader never observes a half-written RPM.
package defaultdownloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/urpmd/urpmd/internal/cachepath"
	"github.com/urpmd/urpmd/internal/collab"
	"github.com/urpmd/urpmd/internal/httpclient"
	"github.com/urpmd/urpmd/internal/safeurl"
)

const chunkSize = 1024 * 1024 // 1 MiB per range request

// Downloader is the reference collaborator satisfying collab.Downloader.
type Downloader struct {
	CacheDir string
	Client   *http.Client
}

// New returns a Downloader writing into cacheDir using httpclient.ForDownload().
func New(cacheDir string) *Downloader {
	return &Downloader{CacheDir: cacheDir, Client: httpclient.ForDownload()}
}

// Download fetches every item, reporting progress as it goes, and returns
// per-item success/error counts.
func (d *Downloader) Download(ctx context.Context, items []collab.DownloadItem, progress func(item collab.DownloadItem, done, total int64)) (collab.DownloadResult, error) {
	client := d.Client
	if client == nil {
		client = httpclient.ForDownload()
	}

	var result collab.DownloadResult
	for _, item := range items {
		hostname := cachepath.HostnameFromURL(item.URL)
		dest := cachepath.PackagePath(d.CacheDir, hostname, item.Media, item.Filename)

		if st, err := os.Stat(dest); err == nil && (item.Size == 0 || st.Size() == item.Size) {
			result.Cached++
			continue
		}

		err := downloadToFile(ctx, client, item.URL, dest, func(done, total int64) {
			if progress != nil {
				progress(item, done, total)
			}
		})
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", item.Filename, err))
			continue
		}
		result.Downloaded++
	}
	return result, nil
}

func downloadToFile(ctx context.Context, client *http.Client, fileURL, destPath string, progress func(done, total int64)) error {
	if !safeurl.IsHTTPOrHTTPS(fileURL) {
		return fmt.Errorf("defaultdownloader: invalid URL scheme (only http/https allowed): %s", fileURL)
	}
	release := httpclient.GlobalHostSem.Acquire(fileURL)
	defer release()
	transferClient := cloneClientNoTimeout(client)
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("defaultdownloader: mkdir: %w", err)
	}

	partial := cachepath.PartialPath(destPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, fileURL, nil)
	if err != nil {
		return fmt.Errorf("defaultdownloader: build HEAD: %w", err)
	}
	req.Header.Set("User-Agent", "urpmd/0.1")
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("defaultdownloader: HEAD %s: %w", fileURL, err)
	}
	resp.Body.Close()
	size := resp.ContentLength
	acceptRanges := resp.Header.Get("Accept-Ranges") == "bytes"

	var dlErr error
	if acceptRanges && size > 0 {
		dlErr = downloadRange(ctx, transferClient, fileURL, partial, size, progress)
	} else {
		dlErr = downloadFull(ctx, transferClient, fileURL, partial, progress)
	}
	if dlErr != nil {
		os.Remove(partial)
		return dlErr
	}

	if err := os.Rename(partial, destPath); err != nil {
		return fmt.Errorf("defaultdownloader: finalize %s: %w", destPath, err)
	}
	return nil
}

func downloadRange(ctx context.Context, client *http.Client, fileURL, destPath string, total int64, progress func(done, total int64)) error {
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	var off int64
	for off < total {
		end := off + chunkSize - 1
		if end >= total {
			end = total - 1
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", "urpmd/0.1")
		req.Header.Set("Range", formatRange(off, end))
		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
			resp.Body.Close()
			return errStatus(resp.StatusCode)
		}
		n, err := io.Copy(f, resp.Body)
		resp.Body.Close()
		if err != nil {
			return err
		}
		off += n
		if progress != nil {
			progress(off, total)
		}
		if n == 0 {
			break
		}
	}
	return nil
}

func formatRange(start, end int64) string {
	return "bytes=" + strconv.FormatInt(start, 10) + "-" + strconv.FormatInt(end, 10)
}

func downloadFull(ctx context.Context, client *http.Client, fileURL, destPath string, progress func(done, total int64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "urpmd/0.1")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errStatus(resp.StatusCode)
	}
	f, err := os.Create(destPath)
	if err != nil {
		return err
	}
	defer f.Close()

	total := resp.ContentLength
	var done int64
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				return werr
			}
			done += int64(n)
			if progress != nil {
				progress(done, total)
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}

func errStatus(code int) error {
	return &downloadError{code: code}
}

type downloadError struct{ code int }

func (e *downloadError) Error() string { return "defaultdownloader: HTTP " + strconv.Itoa(e.code) }

func cloneClientNoTimeout(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{}
	}
	clone := *c
	clone.Timeout = 0
	if t, ok := c.Transport.(*http.Transport); ok && t != nil {
		clone.Transport = t.Clone()
	}
	return &clone
}
