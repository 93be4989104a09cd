package platform

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// osReleasePaths are read in order; the first readable one wins.
var osReleasePaths = []string{"/etc/os-release", "/usr/lib/os-release"}

// Probe inspects the host. It never modifies anything.
type Probe struct {
	fs      ports.FileSystem
	runner  ports.CommandRunner
	getenv  func(string) string
	home    func() (string, error)
	geteuid func() int
	arch    string
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithEnv overrides environment lookups.
func WithEnv(getenv func(string) string) ProbeOption {
	return func(p *Probe) { p.getenv = getenv }
}

// WithHomeDir overrides home directory resolution.
func WithHomeDir(home func() (string, error)) ProbeOption {
	return func(p *Probe) { p.home = home }
}

// WithEUID overrides the effective uid fallback.
func WithEUID(geteuid func() int) ProbeOption {
	return func(p *Probe) { p.geteuid = geteuid }
}

// NewProbe creates a Probe.
func NewProbe(fs ports.FileSystem, runner ports.CommandRunner, opts ...ProbeOption) *Probe {
	p := &Probe{
		fs:      fs,
		runner:  runner,
		getenv:  os.Getenv,
		home:    os.UserHomeDir,
		geteuid: os.Geteuid,
		arch:    runtime.GOARCH,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Detect captures the host facts for a run in the given mode. Detection
// problems degrade to unknown values and never fail the run.
func (p *Probe) Detect(ctx context.Context, mode PrivilegeMode) Facts {
	logger := ports.LoggerFromContext(ctx)

	id, idLike := p.readOSRelease()
	family := FamilyFromOSRelease(id, idLike)

	home := p.getenv("HOME")
	if home == "" {
		if h, err := p.home(); err == nil {
			home = h
		}
	}

	pathEntries := filepath.SplitList(p.getenv("PATH"))

	params := Params{
		Family:      family,
		DistroID:    id,
		Mode:        mode,
		Home:        home,
		PathEntries: pathEntries,
		Root:        p.isRoot(ctx),
		Environment: p.environment(),
		Arch:        p.arch,
	}
	params.PackageManager = p.packageManager(family, pathEntries)

	facts := NewFacts(params)
	if logger != nil {
		logger.Debug(ctx, "environment detected",
			ports.F("family", facts.Family()),
			ports.F("distro", id),
			ports.F("mode", mode),
			ports.F("root", facts.IsRoot()),
			ports.F("package_manager", facts.PackageManager()),
			ports.F("environment", facts.Environment()),
		)
		if family == FamilyUnknown {
			logger.Warn(ctx, "unrecognized distribution; distro-specific steps will be skipped", ports.F("id", id))
		}
	}
	return facts
}

func (p *Probe) readOSRelease() (id, idLike string) {
	for _, path := range osReleasePaths {
		data, err := p.fs.ReadFile(path)
		if err != nil {
			continue
		}
		values := ParseOSRelease(string(data))
		return values["ID"], values["ID_LIKE"]
	}
	return "", ""
}

// ParseOSRelease parses os-release KEY=value lines, unquoting values.
func ParseOSRelease(content string) map[string]string {
	values := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(content))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		if unquoted, err := strconv.Unquote(value); err == nil {
			value = unquoted
		} else {
			value = strings.Trim(value, `"'`)
		}
		values[key] = value
	}
	return values
}

func (p *Probe) isRoot(ctx context.Context) bool {
	if p.runner != nil {
		result, err := p.runner.Run(ctx, "id", "-u")
		if err == nil && result.Success() {
			if uid, convErr := strconv.Atoi(strings.TrimSpace(result.Stdout)); convErr == nil {
				return uid == 0
			}
		}
	}
	return p.geteuid() == 0
}

func (p *Probe) environment() Environment {
	if data, err := p.fs.ReadFile("/proc/version"); err == nil {
		v := strings.ToLower(string(data))
		if strings.Contains(v, "microsoft") || strings.Contains(v, "wsl") {
			return EnvWSL
		}
	}
	if p.fs.Exists("/.dockerenv") || p.fs.Exists("/run/.containerenv") {
		return EnvContainer
	}
	if data, err := p.fs.ReadFile("/proc/1/cgroup"); err == nil {
		v := string(data)
		if strings.Contains(v, "docker") || strings.Contains(v, "containerd") {
			return EnvContainer
		}
	}
	return EnvNative
}

// packageManager prefers the family's native manager and otherwise takes
// the first supported manager found on PATH.
func (p *Probe) packageManager(family Family, pathEntries []string) PackageManager {
	has := func(pm PackageManager) bool {
		for _, dir := range pathEntries {
			if dir != "" && p.fs.Exists(filepath.Join(dir, string(pm))) {
				return true
			}
		}
		return false
	}
	if native := ManagerFor(family); native != PMNone && has(native) {
		return native
	}
	for _, pm := range []PackageManager{PMApt, PMDnf, PMPacman} {
		if has(pm) {
			return pm
		}
	}
	return PMNone
}
