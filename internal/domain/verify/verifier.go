package verify

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/mod/semver"
	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
	"github.com/felixgeelhaar/envira/internal/ports"
)

// DefaultTimeout bounds a single check.
const DefaultTimeout = 30 * time.Second

// Recorder receives one call per evaluated check.
type Recorder interface {
	CheckEvaluated(r Result)
}

// Verifier evaluates checks against the live host.
type Verifier struct {
	fs       ports.FileSystem
	runner   ports.CommandRunner
	timeout  time.Duration
	workers  int
	recorder Recorder
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithTimeout sets the per-check timeout.
func WithTimeout(d time.Duration) Option {
	return func(v *Verifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithWorkers sets how many checks run at once.
func WithWorkers(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.workers = n
		}
	}
}

// WithRecorder sets the measurement recorder.
func WithRecorder(r Recorder) Option {
	return func(v *Verifier) { v.recorder = r }
}

// NewVerifier creates a Verifier.
func NewVerifier(fs ports.FileSystem, runner ports.CommandRunner, opts ...Option) *Verifier {
	v := &Verifier{fs: fs, runner: runner, timeout: DefaultTimeout, workers: 4}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify evaluates every check. A check that errors or panics fails on its
// own; the others still run. Results keep the order of checks.
func (v *Verifier) Verify(ctx context.Context, checks []Check, f platform.Facts) Report {
	results := make([]Result, len(checks))

	var g errgroup.Group
	g.SetLimit(v.workers)
	for i, c := range checks {
		g.Go(func() error {
			results[i] = v.evaluate(ctx, c, f)
			return nil
		})
	}
	_ = g.Wait()

	if v.recorder != nil {
		for _, r := range results {
			v.recorder.CheckEvaluated(r)
		}
	}
	if logger := ports.LoggerFromContext(ctx); logger != nil {
		report := Report{Results: results}
		passed, failed, skipped := report.Counts()
		logger.Info(ctx, "verification finished", ports.F("passed", passed), ports.F("failed", failed), ports.F("skipped", skipped))
	}
	return Report{Results: results}
}

func (v *Verifier) evaluate(ctx context.Context, c Check, f platform.Facts) (res Result) {
	res = Result{Check: c}
	if !c.AppliesTo.Matches(f) {
		res.Skipped = true
		res.Detail = c.AppliesTo.Reason(f)
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res.Passed = false
			res.Detail = fmt.Sprintf("check panicked: %v", r)
		}
	}()

	timeout := v.timeout
	if c.Timeout > 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	passed, detail := v.inspect(ctx, c, f)
	res.Passed = passed
	res.Detail = detail
	return res
}

func (v *Verifier) inspect(ctx context.Context, c Check, f platform.Facts) (bool, string) {
	switch c.Kind {
	case KindCommandOnPath:
		path, found := f.LookPath(v.fs, c.Target)
		if c.Expected.Absent {
			return !found, describe(!found, path+" present", c.Target+" absent")
		}
		return found, describe(found, "found at "+path, c.Target+" not found")

	case KindFileExists:
		path := f.Expand(c.Target)
		return expectExists(v.exists(path, false), c.Expected.Absent, path)

	case KindDirectoryExists:
		path := f.Expand(c.Target)
		return expectExists(v.exists(path, true), c.Expected.Absent, path)

	case KindFileContains:
		path := f.Expand(c.Target)
		data, err := v.fs.ReadFile(path)
		if err != nil {
			return false, fmt.Sprintf("read %s: %v", path, err)
		}
		return match(c.Expected.Pattern, string(data), path)

	case KindCommandRuns:
		return v.runs(ctx, c, f)

	default:
		return false, fmt.Sprintf("unknown check kind %q", c.Kind)
	}
}

func (v *Verifier) runs(ctx context.Context, c Check, f platform.Facts) (bool, string) {
	path, found := f.LookPath(v.fs, c.Target)
	if !found {
		return false, c.Target + " not found"
	}
	cmd := ports.Command{
		Name: path,
		Args: f.ExpandAll(c.Args),
		Env:  []string{"PATH=" + strings.Join(f.SearchPath(), string(filepath.ListSeparator))},
	}
	result, err := v.runner.RunCommand(ctx, cmd)
	if err != nil {
		return false, fmt.Sprintf("%s: %v", cmd.String(), err)
	}
	if !result.Success() {
		return false, fmt.Sprintf("%s: exit status %d: %s", cmd.String(), result.ExitCode, result.Tail(3))
	}
	out := result.Output()

	if c.Expected.Pattern != "" {
		if ok, detail := match(c.Expected.Pattern, out, cmd.String()); !ok {
			return false, detail
		}
	}
	if c.Expected.MinVersion != "" {
		return atLeast(out, c.Expected.MinVersion)
	}
	return true, firstLine(out)
}

// exists reports whether path, or any match when it is a glob, is a
// directory (dir) or a non-directory.
func (v *Verifier) exists(path string, dir bool) bool {
	candidates := []string{path}
	if strings.ContainsAny(path, "*?[") {
		matches, err := v.fs.Glob(path)
		if err != nil {
			return false
		}
		candidates = matches
	}
	for _, p := range candidates {
		if v.fs.Exists(p) && v.fs.IsDir(p) == dir {
			return true
		}
	}
	return false
}

func expectExists(exists, absent bool, path string) (bool, string) {
	if absent {
		return !exists, describe(!exists, path+" absent", path+" present")
	}
	return exists, describe(exists, path+" exists", path+" missing")
}

func match(pattern, text, where string) (bool, string) {
	re, err := regexp.Compile("(?m)" + pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid pattern %q: %v", pattern, err)
	}
	if !re.MatchString(text) {
		return false, fmt.Sprintf("%s does not match %q", where, pattern)
	}
	return true, fmt.Sprintf("%s matches %q", where, pattern)
}

var versionPattern = regexp.MustCompile(`v?(\d+)\.(\d+)(?:\.(\d+))?`)

// atLeast compares the first version in out against min.
func atLeast(out, min string) (bool, string) {
	m := versionPattern.FindStringSubmatch(out)
	if m == nil {
		return false, "no version in output"
	}
	found := "v" + m[1] + "." + m[2]
	if m[3] != "" {
		found += "." + m[3]
	}
	want := "v" + strings.TrimPrefix(min, "v")
	if !semver.IsValid(want) {
		return false, fmt.Sprintf("invalid minimum version %q", min)
	}
	if semver.Compare(found, want) < 0 {
		return false, fmt.Sprintf("version %s is older than %s", found, want)
	}
	return true, "version " + found
}

func describe(ok bool, pass, fail string) string {
	if ok {
		return pass
	}
	return fail
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
