package mocks

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// ExtractCall records an Extract invocation.
type ExtractCall struct {
	Src     string
	DestDir string
	Opts    ports.ExtractOptions
}

// Extractor is a test double for ports.Extractor. Registered entries are
// written below destDir in the mock FileSystem, relative paths as keys.
type Extractor struct {
	mu       sync.Mutex
	fs       *FileSystem
	contents map[string]map[string]string
	calls    []ExtractCall
}

// NewExtractor creates an Extractor writing into fs.
func NewExtractor(fs *FileSystem) *Extractor {
	return &Extractor{fs: fs, contents: make(map[string]map[string]string)}
}

// AddArchive registers the entries produced when src is extracted.
func (e *Extractor) AddArchive(src string, entries map[string]string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contents[src] = entries
}

// Extract writes the registered entries for src below destDir.
func (e *Extractor) Extract(_ context.Context, src, destDir string, opts ports.ExtractOptions) error {
	e.mu.Lock()
	e.calls = append(e.calls, ExtractCall{Src: src, DestDir: destDir, Opts: opts})
	entries, ok := e.contents[src]
	e.mu.Unlock()

	if !ok {
		return fmt.Errorf("no mock archive for %s", src)
	}
	for name, body := range entries {
		if err := e.fs.WriteFile(filepath.Join(destDir, name), []byte(body), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns the recorded extractions.
func (e *Extractor) Calls() []ExtractCall {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]ExtractCall(nil), e.calls...)
}

// Ensure Extractor implements ports.Extractor.
var _ ports.Extractor = (*Extractor)(nil)
