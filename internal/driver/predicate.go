package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// EvalPredicate checks every condition of p. When a condition fails, the
// returned detail names it. Unreadable files count as unmet.
func EvalPredicate(fs ports.FileSystem, f platform.Facts, p step.Predicate) (bool, string) {
	for _, name := range p.Commands {
		if _, ok := f.LookPath(fs, name); !ok {
			return false, fmt.Sprintf("command %s not found", name)
		}
	}
	for _, raw := range p.Paths {
		path := f.Expand(raw)
		if !fs.Exists(path) {
			return false, fmt.Sprintf("%s does not exist", path)
		}
	}
	for _, raw := range p.Globs {
		pattern := f.Expand(raw)
		matches, err := fs.Glob(pattern)
		if err != nil || len(matches) == 0 {
			return false, fmt.Sprintf("nothing matches %s", pattern)
		}
	}
	for _, c := range p.Contains {
		path := f.Expand(c.Path)
		re, err := regexp.Compile(c.Pattern)
		if err != nil {
			return false, fmt.Sprintf("invalid pattern %q", c.Pattern)
		}
		data, err := fs.ReadFile(path)
		if err != nil || !re.Match(data) {
			return false, fmt.Sprintf("%s does not contain %q", path, c.Pattern)
		}
	}
	return true, ""
}

// Base holds the collaborators most drivers share.
type Base struct {
	Runner ports.CommandRunner
	FS     ports.FileSystem
}

// CheckPredicate evaluates the step's own idempotency check. handled is
// false when the step has none and the driver must decide.
func (b Base) CheckPredicate(s step.Step, f platform.Facts) (satisfied, handled bool) {
	if s.Satisfied.IsZero() {
		return false, false
	}
	ok, _ := EvalPredicate(b.FS, f, s.Satisfied)
	return ok, true
}

// EnsureLinks creates each symlink unless it already points at its target.
// A regular file at the link path is left alone. Links outside the home
// directory go through sudo when the run needs it.
func (b Base) EnsureLinks(ctx context.Context, f platform.Facts, links []step.Link) error {
	for _, l := range links {
		target := f.Expand(l.Target)
		path := f.Expand(l.Path)
		isLink, current := b.FS.IsSymlink(path)
		if isLink && current == target {
			continue
		}
		if !isLink && b.FS.Exists(path) {
			continue
		}

		if f.NeedsSudo() && !strings.HasPrefix(path, f.Home()+"/") {
			cmd := f.Elevate(ports.Command{Name: "ln", Args: []string{"-sfn", target, path}})
			if _, err := Run(ctx, b.Runner, cmd); err != nil {
				return fmt.Errorf("link %s -> %s: %w", path, target, err)
			}
			continue
		}

		if isLink {
			if err := b.FS.Remove(path); err != nil {
				return fmt.Errorf("replace link %s: %w", path, err)
			}
		}
		if err := b.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := b.FS.CreateSymlink(target, path); err != nil {
			return fmt.Errorf("link %s -> %s: %w", path, target, err)
		}
	}
	return nil
}

// LinksInPlace reports whether every link exists.
func (b Base) LinksInPlace(f platform.Facts, links []step.Link) bool {
	for _, l := range links {
		if !b.FS.Exists(f.Expand(l.Path)) {
			return false
		}
	}
	return true
}
