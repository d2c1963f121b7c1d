// Package healthcheck provides lightweight reachability checks for a
// mirror and for a running daemon's query surface. No urpmd subcommand
// and no part of the daemon calls them.
package healthcheck

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// CheckMirror issues a GET against a media's base URL and reports whether
// it is reachable and answers with HTTP 200; any other status, 2xx
// included, is reported as an error.
func CheckMirror(ctx context.Context, mediaURL string) error {
	if mediaURL == "" {
		return fmt.Errorf("no mirror URL configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("mirror unreachable: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mirror returned HTTP %d", resp.StatusCode)
	}
	return nil
}

// CheckQuerySurface hits the daemon's own /status endpoint at baseURL and
// reports an error unless it answers with HTTP 200. The body is not parsed.
func CheckQuerySurface(ctx context.Context, baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/status", nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status: HTTP %d", resp.StatusCode)
	}
	return nil
}
