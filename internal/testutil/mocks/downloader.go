package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// Downloader is a test double for ports.Downloader that writes registered
// payloads into a mock FileSystem.
type Downloader struct {
	mu       sync.Mutex
	fs       *FileSystem
	payloads map[string][]byte
	errors   map[string][]error
	calls    []string
}

// NewDownloader creates a Downloader writing into fs.
func NewDownloader(fs *FileSystem) *Downloader {
	return &Downloader{
		fs:       fs,
		payloads: make(map[string][]byte),
		errors:   make(map[string][]error),
	}
}

// AddPayload registers the body served for url.
func (d *Downloader) AddPayload(url string, body []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads[url] = body
}

// AddErrors registers errors returned on successive downloads of url before
// the payload (if any) is served.
func (d *Downloader) AddErrors(url string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errors[url] = append(d.errors[url], errs...)
}

// Download serves the registered payload for url.
func (d *Downloader) Download(_ context.Context, url, dest string) (int64, error) {
	d.mu.Lock()
	d.calls = append(d.calls, url)
	if errs := d.errors[url]; len(errs) > 0 {
		d.errors[url] = errs[1:]
		d.mu.Unlock()
		return 0, errs[0]
	}
	body, ok := d.payloads[url]
	d.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("no mock payload for %s", url)
	}
	if err := d.fs.WriteFile(dest, body, 0o644); err != nil {
		return 0, err
	}
	return int64(len(body)), nil
}

// Calls returns the requested URLs in order.
func (d *Downloader) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// Ensure Downloader implements ports.Downloader.
var _ ports.Downloader = (*Downloader)(nil)
