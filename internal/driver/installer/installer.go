// Package installer runs vendor installer scripts and git checkouts.
package installer

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

// Driver implements driver.Driver for step.MethodBinaryInstaller.
type Driver struct {
	driver.Base
	downloader ports.Downloader
}

// New creates a binary-installer driver.
func New(runner ports.CommandRunner, fs ports.FileSystem, downloader ports.Downloader) *Driver {
	return &Driver{
		Base:       driver.Base{Runner: runner, FS: fs},
		downloader: downloader,
	}
}

// Method returns step.MethodBinaryInstaller.
func (d *Driver) Method() step.Method {
	return step.MethodBinaryInstaller
}

// IsSatisfied evaluates the step's predicate. Without one, a git installer
// is satisfied by a complete checkout and a script installer never is.
func (d *Driver) IsSatisfied(_ context.Context, s step.Step, f platform.Facts) (bool, error) {
	if ok, handled := d.CheckPredicate(s, f); handled {
		return ok, nil
	}
	spec := s.Spec.Installer
	if spec.Kind == step.InstallerGit {
		return d.FS.Exists(filepath.Join(f.Expand(spec.Dest), ".git")), nil
	}
	return false, nil
}

// Execute retrieves and runs the installer.
func (d *Driver) Execute(ctx context.Context, s step.Step, f platform.Facts) driver.Result {
	spec := s.Spec.Installer

	var detail string
	var err error
	switch spec.Kind {
	case step.InstallerScript:
		detail, err = d.runScript(ctx, s.ID, spec, f)
	case step.InstallerGit:
		detail, err = d.checkout(ctx, spec, f)
	case step.InstallerCommand:
	default:
		err = fmt.Errorf("%w: unknown installer kind %q", driver.ErrPermanent, spec.Kind)
	}
	if err != nil {
		return driver.Failed(err)
	}

	if spec.Run != nil {
		result, err := driver.Run(ctx, d.Runner, command(*spec.Run, f))
		if err != nil {
			return driver.Failed(err)
		}
		if detail != "" {
			detail += "; "
		}
		detail += "ran " + spec.Run.Name
		if spec.Run.Stdout != "" {
			out := f.Expand(spec.Run.Stdout)
			if err := d.capture(out, result.Stdout); err != nil {
				return driver.Failed(err)
			}
			detail += " > " + out
		}
	}
	return driver.Succeeded("%s", detail)
}

// capture writes a command's output to path. Empty output is an error so
// a broken tool never leaves an empty config behind.
func (d *Driver) capture(path, output string) error {
	if strings.TrimSpace(output) == "" {
		return fmt.Errorf("%w: no output to write to %s", driver.ErrPermanent, path)
	}
	if err := d.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := d.FS.WriteFile(path, []byte(output), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// runScript downloads the script into the cache, overwriting any earlier
// partial download, and runs it with the interpreter.
func (d *Driver) runScript(ctx context.Context, id step.ID, spec *step.InstallerSpec, f platform.Facts) (string, error) {
	src := f.Expand(spec.URL)
	dest := filepath.Join(f.CacheDir(), scriptName(id, src))

	if err := d.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}
	n, err := d.downloader.Download(ctx, src, dest)
	if err != nil {
		return "", fmt.Errorf("download installer: %w", err)
	}

	cmd := ports.Command{
		Name: spec.Interpreter,
		Args: append([]string{dest}, f.ExpandAll(spec.Args)...),
		Env:  f.ExpandAll(spec.Env),
	}
	if spec.Elevate {
		cmd = f.Elevate(cmd)
	}
	if _, err := driver.Run(ctx, d.Runner, cmd); err != nil {
		return "", err
	}
	return fmt.Sprintf("ran installer from %s (%d bytes)", src, n), nil
}

// checkout clones the repository. A directory without .git is a leftover
// from an interrupted clone and is removed first; a complete checkout is
// fast-forwarded instead.
func (d *Driver) checkout(ctx context.Context, spec *step.InstallerSpec, f platform.Facts) (string, error) {
	dest := f.Expand(spec.Dest)

	if d.FS.Exists(filepath.Join(dest, ".git")) {
		if _, err := driver.Run(ctx, d.Runner, ports.Command{Name: "git", Args: []string{"-C", dest, "pull", "--ff-only"}}); err != nil {
			return "", err
		}
		return "updated " + dest, nil
	}

	if d.FS.Exists(dest) {
		if err := d.FS.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("remove partial checkout: %w", err)
		}
	}
	if err := d.FS.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", err
	}

	args := []string{"clone"}
	if spec.Depth > 0 {
		args = append(args, fmt.Sprintf("--depth=%d", spec.Depth))
	}
	args = append(args, f.Expand(spec.URL), dest)
	if _, err := driver.Run(ctx, d.Runner, ports.Command{Name: "git", Args: args, Env: []string{"GIT_TERMINAL_PROMPT=0"}}); err != nil {
		_ = d.FS.RemoveAll(dest)
		return "", err
	}
	return "cloned into " + dest, nil
}

func command(c step.CommandSpec, f platform.Facts) ports.Command {
	cmd := ports.Command{
		Name: f.Expand(c.Name),
		Args: f.ExpandAll(c.Args),
		Dir:  f.Expand(c.Dir),
		Env:  f.ExpandAll(c.Env),
	}
	if c.Elevate {
		cmd = f.Elevate(cmd)
	}
	return cmd
}

// scriptName derives a stable cache file name from the step and URL.
func scriptName(id step.ID, rawURL string) string {
	base := "install.sh"
	if u, err := url.Parse(rawURL); err == nil {
		if b := path.Base(u.Path); b != "." && b != "/" && strings.Contains(b, ".") {
			base = b
		}
	}
	return strings.ReplaceAll(id.String(), ":", "-") + "-" + base
}

// Ensure Driver implements driver.Driver.
var _ driver.Driver = (*Driver)(nil)
