// Package patch applies idempotent edits to configuration files.
package patch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/ini.v1"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/domain/step"
	"github.com/felixgeelhaar/envira/internal/driver"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// Driver implements driver.Driver for step.MethodConfigPatch. Patches of
// the same file are serialized.
type Driver struct {
	driver.Base
	locks sync.Map // path -> *sync.Mutex
}

// New creates a config-patch driver.
func New(fs ports.FileSystem) *Driver {
	return &Driver{Base: driver.Base{FS: fs}}
}

// Method returns step.MethodConfigPatch.
func (d *Driver) Method() step.Method {
	return step.MethodConfigPatch
}

// IsSatisfied reports whether the edit is already present. A missing
// target that may not be created has nothing to patch and counts as
// satisfied.
func (d *Driver) IsSatisfied(_ context.Context, s step.Step, f platform.Facts) (bool, error) {
	if ok, handled := d.CheckPredicate(s, f); handled {
		return ok, nil
	}
	spec := s.Spec.Patch
	path := f.Expand(spec.Path)
	content, exists, err := d.read(path)
	if err != nil {
		return false, err
	}
	if !exists {
		return !spec.Create, nil
	}
	ok, _, err := apply(s.ID, spec, content, f)
	return ok, err
}

// Execute rewrites the target when the edit is missing.
func (d *Driver) Execute(_ context.Context, s step.Step, f platform.Facts) driver.Result {
	spec := s.Spec.Patch
	path := f.Expand(spec.Path)

	mu := d.lock(path)
	mu.Lock()
	defer mu.Unlock()

	content, exists, err := d.read(path)
	if err != nil {
		return driver.Failed(err)
	}
	if !exists && !spec.Create {
		return driver.Succeeded("%s does not exist, nothing to patch", path)
	}

	ok, patched, err := apply(s.ID, spec, content, f)
	if err != nil {
		return driver.Failed(err)
	}
	if ok {
		return driver.Succeeded("%s already patched", path)
	}

	perm := os.FileMode(0o644)
	if info, err := d.FS.GetFileInfo(path); err == nil {
		perm = info.Mode.Perm()
	} else if err := d.FS.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return driver.Failed(err)
	}
	if err := d.FS.WriteFile(path, []byte(patched), perm); err != nil {
		return driver.Failed(fmt.Errorf("write %s: %w", path, err))
	}
	return driver.Succeeded("patched %s (%s)", path, spec.Mode)
}

func (d *Driver) lock(path string) *sync.Mutex {
	mu, _ := d.locks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (d *Driver) read(path string) (string, bool, error) {
	if !d.FS.Exists(path) {
		return "", false, nil
	}
	data, err := d.FS.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), true, nil
}

// apply reports whether content already carries the edit and returns the
// patched content otherwise.
func apply(id step.ID, spec *step.PatchSpec, content string, f platform.Facts) (bool, string, error) {
	switch spec.Mode {
	case step.PatchLine:
		line := f.Expand(spec.Line)
		if hasLine(content, line) {
			return true, content, nil
		}
		return false, withNewline(content) + line + "\n", nil

	case step.PatchBlock:
		body := withNewline(f.Expand(spec.Block))
		if current, found := readBlock(content, id.String()); found && current == body {
			return true, content, nil
		}
		return false, writeBlock(content, id.String(), body), nil

	case step.PatchReplace:
		return replace(spec, content, f)

	case step.PatchTOML:
		return setTOML(spec, content)

	case step.PatchINI:
		return setINI(spec, content)

	case step.PatchKDL:
		patched, err := editKDL(spec, content)
		if err != nil {
			return false, content, err
		}
		return patched == content, patched, nil

	default:
		return false, content, fmt.Errorf("%w: unknown patch mode %q", driver.ErrPermanent, spec.Mode)
	}
}

func hasLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimRight(l, " \t\r") == line {
			return true
		}
	}
	return false
}

// replace rewrites the first match of the pattern to the line and drops
// later matches, so the setting appears once. The line is appended when
// nothing matches.
func replace(spec *step.PatchSpec, content string, f platform.Facts) (bool, string, error) {
	re, err := regexp.Compile("(?m)" + spec.Pattern)
	if err != nil {
		return false, content, fmt.Errorf("%w: %v", driver.ErrPermanent, err)
	}
	line := f.Expand(spec.Line)

	locs := re.FindAllStringIndex(content, -1)
	if len(locs) == 0 {
		return false, withNewline(content) + line + "\n", nil
	}
	if len(locs) == 1 && content[locs[0][0]:locs[0][1]] == line {
		return true, content, nil
	}

	var b strings.Builder
	last := 0
	for i, loc := range locs {
		b.WriteString(content[last:loc[0]])
		last = loc[1]
		if i == 0 {
			b.WriteString(line)
			continue
		}
		// A dropped match that filled its line takes the newline with it.
		atLineStart := loc[0] == 0 || content[loc[0]-1] == '\n'
		if atLineStart && last < len(content) && content[last] == '\n' {
			last++
		}
	}
	b.WriteString(content[last:])
	return false, b.String(), nil
}

// setTOML sets Section.Key to Value. Comments in the target are not kept.
func setTOML(spec *step.PatchSpec, content string) (bool, string, error) {
	doc := make(map[string]any)
	if err := toml.Unmarshal([]byte(content), &doc); err != nil {
		return false, content, fmt.Errorf("%w: parse toml: %v", driver.ErrPermanent, err)
	}

	table := doc
	if spec.Section != "" {
		for _, name := range strings.Split(spec.Section, ".") {
			next, ok := table[name].(map[string]any)
			if !ok {
				next = make(map[string]any)
				table[name] = next
			}
			table = next
		}
	}
	if current, ok := table[spec.Key]; ok && sameValue(current, spec.Value) {
		return true, content, nil
	}
	table[spec.Key] = spec.Value

	out, err := toml.Marshal(doc)
	if err != nil {
		return false, content, fmt.Errorf("%w: encode toml: %v", driver.ErrPermanent, err)
	}
	return false, string(out), nil
}

// setINI sets Section.Key to Value in a git-style INI file.
func setINI(spec *step.PatchSpec, content string) (bool, string, error) {
	cfg, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, []byte(content))
	if err != nil {
		return false, content, fmt.Errorf("%w: parse ini: %v", driver.ErrPermanent, err)
	}
	want := fmt.Sprint(spec.Value)
	section := cfg.Section(spec.Section)
	if section.HasKey(spec.Key) && section.Key(spec.Key).String() == want {
		return true, content, nil
	}
	section.Key(spec.Key).SetValue(want)

	var buf bytes.Buffer
	if _, err := cfg.WriteTo(&buf); err != nil {
		return false, content, fmt.Errorf("encode ini: %w", err)
	}
	return false, buf.String(), nil
}

func sameValue(a, b any) bool {
	return fmt.Sprint(a) == fmt.Sprint(b)
}

// Ensure Driver implements driver.Driver.
var _ driver.Driver = (*Driver)(nil)
