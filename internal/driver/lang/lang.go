// Package lang installs packages through language-ecosystem managers.
package lang

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// nodeBinGlob finds node versions installed by nvm, which never land on a
// fixed directory.
const nodeBinGlob = "~/.nvm/versions/node/*/bin"

// Driver implements driver.Driver for step.MethodLanguagePackage.
type Driver struct {
	driver.Base
}

// New creates a language-package driver.
func New(runner ports.CommandRunner, fs ports.FileSystem) *Driver {
	return &Driver{Base: driver.Base{Runner: runner, FS: fs}}
}

// Method returns step.MethodLanguagePackage.
func (d *Driver) Method() step.Method {
	return step.MethodLanguagePackage
}

// IsSatisfied checks the expected binaries when the step names any and
// asks the manager otherwise. A missing manager means not satisfied.
func (d *Driver) IsSatisfied(ctx context.Context, s step.Step, f platform.Facts) (bool, error) {
	if ok, handled := d.CheckPredicate(s, f); handled {
		return ok, nil
	}
	spec := s.Spec.Lang

	binaries := spec.Binaries
	if len(binaries) == 0 && spec.Manager == step.LangGo {
		for _, pkg := range spec.Packages {
			binaries = append(binaries, goBinary(pkg))
		}
	}
	if len(binaries) > 0 {
		dirs := d.searchPath(f)
		for _, b := range binaries {
			if !d.onPath(dirs, b) {
				return false, nil
			}
		}
		return true, nil
	}

	manager, ok := d.resolve(spec.Manager, f)
	if !ok {
		return false, nil
	}
	installed, err := d.list(ctx, spec.Manager, manager, spec.Packages, f)
	if err != nil {
		return false, err
	}
	for _, pkg := range spec.Packages {
		if !installed[packageName(spec.Manager, pkg)] {
			return false, nil
		}
	}
	return true, nil
}

// Execute installs every package with one manager invocation.
func (d *Driver) Execute(ctx context.Context, s step.Step, f platform.Facts) driver.Result {
	spec := s.Spec.Lang
	manager, ok := d.resolve(spec.Manager, f)
	if !ok {
		return driver.Failed(fmt.Errorf("%w: %s is not installed", driver.ErrToolNotFound, spec.Manager))
	}

	var args []string
	switch spec.Manager {
	case step.LangCargo:
		args = append([]string{"install"}, spec.Args...)
	case step.LangGo:
		args = append([]string{"install"}, spec.Args...)
	case step.LangPipx:
		args = append([]string{"install"}, spec.Args...)
	case step.LangNpm:
		args = append([]string{"install", "-g"}, spec.Args...)
	case step.LangConda:
		args = append([]string{"install", "-y"}, spec.Args...)
	}
	for _, pkg := range spec.Packages {
		if spec.Manager == step.LangGo && !strings.Contains(pkg, "@") {
			pkg += "@latest"
		}
		args = append(args, pkg)
	}

	if _, err := driver.Run(ctx, d.Runner, ports.Command{Name: manager, Args: args, Env: d.env(f)}); err != nil {
		return driver.Failed(err)
	}
	return driver.Succeeded("installed %s via %s", strings.Join(spec.Packages, " "), spec.Manager)
}

// resolve finds the manager executable. Fresh toolchains are not on the
// PATH of this process, so the per-user tool directories are searched too.
func (d *Driver) resolve(m step.LangManager, f platform.Facts) (string, bool) {
	name := string(m)
	for _, dir := range d.searchPath(f) {
		candidate := filepath.Join(dir, name)
		if d.FS.Exists(candidate) && !d.FS.IsDir(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func (d *Driver) searchPath(f platform.Facts) []string {
	dirs := f.SearchPath()
	if matches, err := d.FS.Glob(f.Expand(nodeBinGlob)); err == nil && len(matches) > 0 {
		sort.Strings(matches)
		dirs = append(dirs, matches[len(matches)-1])
	}
	return dirs
}

func (d *Driver) onPath(dirs []string, name string) bool {
	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if d.FS.Exists(candidate) && !d.FS.IsDir(candidate) {
			return true
		}
	}
	return false
}

// env puts the tool directories on PATH so managers find their runtimes
// (npm needs node, cargo needs rustc).
func (d *Driver) env(f platform.Facts) []string {
	return []string{"PATH=" + strings.Join(d.searchPath(f), string(filepath.ListSeparator))}
}

// list returns the installed package names known to the manager.
func (d *Driver) list(ctx context.Context, m step.LangManager, manager string, pkgs []string, f platform.Facts) (map[string]bool, error) {
	installed := make(map[string]bool)
	env := d.env(f)

	switch m {
	case step.LangCargo:
		result, ok, err := driver.Probe(ctx, d.Runner, ports.Command{Name: manager, Args: []string{"install", "--list"}, Env: env})
		if err != nil || !ok {
			return installed, err
		}
		// "bottom v0.9.6:" followed by indented binary names.
		for _, line := range strings.Split(result.Stdout, "\n") {
			if line == "" || strings.HasPrefix(line, " ") {
				continue
			}
			if name, _, found := strings.Cut(line, " "); found {
				installed[name] = true
			}
		}
	case step.LangPipx:
		result, ok, err := driver.Probe(ctx, d.Runner, ports.Command{Name: manager, Args: []string{"list", "--short"}, Env: env})
		if err != nil || !ok {
			return installed, err
		}
		for _, line := range strings.Split(result.Stdout, "\n") {
			if fields := strings.Fields(line); len(fields) > 0 {
				installed[normalizePy(fields[0])] = true
			}
		}
	case step.LangNpm:
		result, ok, err := driver.Probe(ctx, d.Runner, ports.Command{Name: manager, Args: []string{"ls", "-g", "--depth=0", "--json"}, Env: env})
		if err != nil || !ok {
			return installed, err
		}
		var tree struct {
			Dependencies map[string]json.RawMessage `json:"dependencies"`
		}
		if err := json.Unmarshal([]byte(result.Stdout), &tree); err != nil {
			return installed, nil
		}
		for name := range tree.Dependencies {
			installed[name] = true
		}
	case step.LangConda:
		for _, pkg := range pkgs {
			name := packageName(m, pkg)
			result, ok, err := driver.Probe(ctx, d.Runner, ports.Command{Name: manager, Args: []string{"list", "--full-name", name}, Env: env})
			if err != nil {
				return installed, err
			}
			if ok && condaListed(result.Stdout, name) {
				installed[name] = true
			}
		}
	}
	return installed, nil
}

var (
	pyExtras     = regexp.MustCompile(`[\[=<>!~;@].*$`)
	majorVersion = regexp.MustCompile(`^v[0-9]+$`)
)

// packageName strips versions and extras so names match listings.
func packageName(m step.LangManager, pkg string) string {
	switch m {
	case step.LangPipx, step.LangConda:
		return normalizePy(pyExtras.ReplaceAllString(pkg, ""))
	case step.LangNpm:
		if at := strings.LastIndex(pkg, "@"); at > 0 {
			return pkg[:at]
		}
		return pkg
	case step.LangCargo:
		name, _, _ := strings.Cut(pkg, "@")
		return name
	default:
		return pkg
	}
}

// normalizePy applies PEP 503 name normalization.
func normalizePy(name string) string {
	return strings.ToLower(strings.NewReplacer("_", "-", ".", "-").Replace(strings.TrimSpace(name)))
}

// goBinary is the binary a go install target produces.
func goBinary(pkg string) string {
	pkg, _, _ = strings.Cut(pkg, "@")
	base := path.Base(pkg)
	if majorVersion.MatchString(base) {
		base = path.Base(path.Dir(pkg))
	}
	return base
}

func condaListed(out, name string) bool {
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, "#") {
			continue
		}
		if fields := strings.Fields(line); len(fields) > 0 && normalizePy(fields[0]) == name {
			return true
		}
	}
	return false
}

// Ensure Driver implements driver.Driver.
var _ driver.Driver = (*Driver)(nil)
