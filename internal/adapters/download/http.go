// Package download provides an HTTP implementation of ports.Downloader.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// DefaultUserAgent is sent with every request.
const DefaultUserAgent = "envira"

// Config configures an HTTPDownloader.
type Config struct {
	// Timeout bounds a single request including the body transfer.
	Timeout   time.Duration
	UserAgent string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:   10 * time.Minute,
		UserAgent: DefaultUserAgent,
	}
}

// HTTPDownloader streams HTTP responses to disk.
type HTTPDownloader struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPDownloader creates a new HTTPDownloader.
func NewHTTPDownloader(config Config) *HTTPDownloader {
	return &HTTPDownloader{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Download fetches url into dest. The body is written to dest.part and only
// renamed over dest once complete, so an interrupted transfer never leaves a
// truncated dest behind and a rerun starts clean.
func (d *HTTPDownloader) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", d.config.UserAgent)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return 0, fmt.Errorf("get %s: %w (status %d)", url, ports.ErrResourceNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return 0, fmt.Errorf("get %s: unexpected status %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create download directory: %w", err)
	}

	part := dest + ".part"
	f, err := os.OpenFile(part, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", part, err)
	}

	n, err := io.Copy(f, resp.Body)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(part)
		return n, fmt.Errorf("read %s: %w", url, err)
	}
	if n == 0 {
		_ = os.Remove(part)
		return 0, fmt.Errorf("get %s: %w", url, ports.ErrEmptyResource)
	}

	if err := os.Rename(part, dest); err != nil {
		_ = os.Remove(part)
		return n, fmt.Errorf("move download into place: %w", err)
	}
	return n, nil
}

// Ensure HTTPDownloader implements ports.Downloader.
var _ ports.Downloader = (*HTTPDownloader)(nil)
