// Package archive installs release artifacts downloaded from a URL: a
// tarball or zip unpacked into a directory, or a single binary.
package archive

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// Driver implements driver.Driver for step.MethodManualArchive.
type Driver struct {
	driver.Base
	downloader ports.Downloader
	extractor  ports.Extractor
}

// New creates a manual-archive driver.
func New(runner ports.CommandRunner, fs ports.FileSystem, downloader ports.Downloader, extractor ports.Extractor) *Driver {
	return &Driver{
		Base:       driver.Base{Runner: runner, FS: fs},
		downloader: downloader,
		extractor:  extractor,
	}
}

// Method returns step.MethodManualArchive.
func (d *Driver) Method() step.Method {
	return step.MethodManualArchive
}

// IsSatisfied checks that the destination, its binaries and links exist.
func (d *Driver) IsSatisfied(_ context.Context, s step.Step, f platform.Facts) (bool, error) {
	if ok, handled := d.CheckPredicate(s, f); handled {
		return ok, nil
	}
	spec := s.Spec.Archive
	dest := f.Expand(spec.Dest)
	if !d.FS.Exists(dest) {
		return false, nil
	}
	for _, b := range spec.Binaries {
		if !d.FS.Exists(filepath.Join(dest, b)) {
			return false, nil
		}
	}
	return d.LinksInPlace(f, spec.Links), nil
}

// Execute downloads the artifact for the host architecture and installs it.
func (d *Driver) Execute(ctx context.Context, s step.Step, f platform.Facts) driver.Result {
	spec := s.Spec.Archive
	src := f.Expand(spec.URLFor(f.Arch()))
	if src == "" {
		return driver.Failed(fmt.Errorf("%w: no artifact for architecture %q", driver.ErrPermanent, f.Arch()))
	}

	artifact := filepath.Join(f.CacheDir(), artifactName(s.ID, src))
	if err := d.FS.MkdirAll(f.CacheDir(), 0o755); err != nil {
		return driver.Failed(err)
	}
	size, err := d.downloader.Download(ctx, src, artifact)
	if err != nil {
		return driver.Failed(err)
	}
	defer func() { _ = d.FS.Remove(artifact) }()

	dest := f.Expand(spec.Dest)
	if spec.Format == step.ArchiveBinary {
		err = d.placeBinary(ctx, f, artifact, dest)
	} else {
		err = d.unpack(ctx, s, f, artifact, dest)
	}
	if err != nil {
		return driver.Failed(err)
	}

	if err := d.EnsureLinks(ctx, f, spec.Links); err != nil {
		return driver.Failed(err)
	}
	return driver.Succeeded("installed %s (%d bytes) to %s", path.Base(src), size, dest)
}

func (d *Driver) placeBinary(ctx context.Context, f platform.Facts, artifact, dest string) error {
	if err := d.FS.Chmod(artifact, 0o755); err != nil {
		return err
	}
	if d.elevated(f, dest) {
		return d.sudo(ctx, f, "install", "-D", "-m", "0755", artifact, dest)
	}
	if err := d.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return d.FS.Rename(artifact, dest)
}

// unpack extracts into a staging directory next to the cache and then
// swaps it into place, so an interrupted run never leaves half a tree at
// the destination.
func (d *Driver) unpack(ctx context.Context, s step.Step, f platform.Facts, artifact, dest string) error {
	spec := s.Spec.Archive
	staging := filepath.Join(f.CacheDir(), strings.ReplaceAll(s.ID.String(), ":", "-")+".staging")
	if err := d.FS.RemoveAll(staging); err != nil {
		return err
	}
	defer func() { _ = d.FS.RemoveAll(staging) }()

	format := ports.FormatTarGz
	if spec.Format == step.ArchiveZip {
		format = ports.FormatZip
	}
	if err := d.extractor.Extract(ctx, artifact, staging, ports.ExtractOptions{
		Format:          format,
		StripComponents: spec.StripComponents,
	}); err != nil {
		return fmt.Errorf("extract %s: %w", filepath.Base(artifact), err)
	}
	for _, b := range spec.Binaries {
		p := filepath.Join(staging, b)
		if !d.FS.Exists(p) {
			return fmt.Errorf("%w: archive has no %s", driver.ErrPermanent, b)
		}
		if err := d.FS.Chmod(p, 0o755); err != nil {
			return err
		}
	}

	if d.elevated(f, dest) {
		if spec.Merge {
			if err := d.sudo(ctx, f, "mkdir", "-p", dest); err != nil {
				return err
			}
			return d.sudo(ctx, f, "cp", "-a", staging+"/.", dest+"/")
		}
		if err := d.sudo(ctx, f, "rm", "-rf", dest); err != nil {
			return err
		}
		if err := d.sudo(ctx, f, "mkdir", "-p", filepath.Dir(dest)); err != nil {
			return err
		}
		return d.sudo(ctx, f, "cp", "-a", staging, dest)
	}

	if spec.Merge {
		entries, err := d.FS.Glob(filepath.Join(staging, "*"))
		if err != nil {
			return err
		}
		if err := d.FS.MkdirAll(dest, 0o755); err != nil {
			return err
		}
		for _, e := range entries {
			target := filepath.Join(dest, filepath.Base(e))
			if err := d.FS.RemoveAll(target); err != nil {
				return err
			}
			if err := d.FS.Rename(e, target); err != nil {
				return err
			}
		}
		return nil
	}

	if err := d.FS.RemoveAll(dest); err != nil {
		return err
	}
	if err := d.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	return d.FS.Rename(staging, dest)
}

// elevated reports whether dest must be written through sudo.
func (d *Driver) elevated(f platform.Facts, dest string) bool {
	return f.NeedsSudo() && !strings.HasPrefix(dest, f.Home()+"/")
}

func (d *Driver) sudo(ctx context.Context, f platform.Facts, name string, args ...string) error {
	_, err := driver.Run(ctx, d.Runner, f.Elevate(ports.Command{Name: name, Args: args}))
	return err
}

func artifactName(id step.ID, rawURL string) string {
	base := "artifact"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && b != "" {
			base = b
		}
	}
	return strings.ReplaceAll(id.String(), ":", "-") + "-" + base
}

// Ensure Driver implements driver.Driver.
var _ driver.Driver = (*Driver)(nil)
