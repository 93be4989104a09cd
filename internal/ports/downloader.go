package ports

import (
	"context"
	"errors"
)

// Download errors. Implementations wrap these so callers can tell a missing
// resource from a transient failure.
var (
	ErrResourceNotFound = errors.New("resource not found")
	ErrEmptyResource    = errors.New("empty response body")
)

// Downloader retrieves remote resources to local files.
type Downloader interface {
	// Download fetches url into dest, replacing any previous file at dest.
	// It returns the number of bytes written.
	Download(ctx context.Context, url, dest string) (int64, error)
}

// ArchiveFormat identifies an archive container.
type ArchiveFormat string

// Supported archive formats.
const (
	FormatTarGz ArchiveFormat = "tar.gz"
	FormatTar   ArchiveFormat = "tar"
	FormatZip   ArchiveFormat = "zip"
)

// ExtractOptions controls archive extraction.
type ExtractOptions struct {
	Format ArchiveFormat
	// StripComponents drops that many leading path elements from each entry.
	StripComponents int
}

// Extractor unpacks archives onto disk.
type Extractor interface {
	Extract(ctx context.Context, src, destDir string, opts ExtractOptions) error
}
