package platform

import (
	"path/filepath"
	"strings"

	"github.com/felixgeelhaar/envira/internal/ports"
)

// userToolDirs are per-user install locations that language toolchains and
// installer scripts populate. They are searched after PATH because a fresh
// install is not on the PATH of the running process.
var userToolDirs = []string{
	".local/bin",
	".cargo/bin",
	"go/bin",
	".go/bin",
	"miniconda3/bin",
	".pixi/bin",
	".fzf/bin",
	".nvm/current/bin",
}

// systemToolDirs are fixed locations of toolchains unpacked outside the
// distro package manager.
var systemToolDirs = []string{"/usr/local/go/bin"}

// Params holds the raw values a Facts is built from.
type Params struct {
	Family         Family
	DistroID       string
	Mode           PrivilegeMode
	Home           string
	PathEntries    []string
	Root           bool
	PackageManager PackageManager
	Environment    Environment
	Arch           string
	// CacheDir overrides the default download cache.
	CacheDir string
}

// Facts is the immutable description of the host captured once per run.
type Facts struct {
	p Params
}

// NewFacts builds Facts from p. Slices are copied.
func NewFacts(p Params) Facts {
	p.PathEntries = append([]string(nil), p.PathEntries...)
	if p.Family == "" {
		p.Family = FamilyUnknown
	}
	if p.Environment == "" {
		p.Environment = EnvNative
	}
	return Facts{p: p}
}

// Family returns the distribution family.
func (f Facts) Family() Family { return f.p.Family }

// DistroID returns the os-release ID.
func (f Facts) DistroID() string { return f.p.DistroID }

// Mode returns the requested privilege mode.
func (f Facts) Mode() PrivilegeMode { return f.p.Mode }

// Home returns the target user's home directory.
func (f Facts) Home() string { return f.p.Home }

// IsRoot reports whether the process runs with effective uid 0.
func (f Facts) IsRoot() bool { return f.p.Root }

// PackageManager returns the detected distribution package manager.
func (f Facts) PackageManager() PackageManager { return f.p.PackageManager }

// Environment returns the host environment kind.
func (f Facts) Environment() Environment { return f.p.Environment }

// Arch returns the machine architecture in GOARCH notation.
func (f Facts) Arch() string { return f.p.Arch }

// PathEntries returns a copy of the PATH entries.
func (f Facts) PathEntries() []string {
	return append([]string(nil), f.p.PathEntries...)
}

// BinDir is where standalone binaries are placed.
func (f Facts) BinDir() string {
	if f.p.Mode == ModeElevated {
		return "/usr/local/bin"
	}
	return filepath.Join(f.p.Home, ".local", "bin")
}

// OptDir holds unpacked release trees.
func (f Facts) OptDir() string {
	if f.p.Mode == ModeElevated {
		return "/opt"
	}
	return filepath.Join(f.p.Home, ".local", "opt")
}

// CacheDir is where downloads are staged.
func (f Facts) CacheDir() string {
	if dir := f.p.CacheDir; dir != "" {
		if dir == "~" || strings.HasPrefix(dir, "~/") {
			dir = f.p.Home + dir[1:]
		}
		return strings.ReplaceAll(dir, "${HOME}", f.p.Home)
	}
	return filepath.Join(f.p.Home, ".cache", "envira")
}

// WithCacheDir returns a copy using dir as the download cache.
func (f Facts) WithCacheDir(dir string) Facts {
	f.p.CacheDir = dir
	return NewFacts(f.p)
}

// ToolDirs returns the per-user toolchain directories.
func (f Facts) ToolDirs() []string {
	dirs := make([]string, 0, len(userToolDirs))
	for _, d := range userToolDirs {
		dirs = append(dirs, filepath.Join(f.p.Home, d))
	}
	return dirs
}

// SearchPath is PATH followed by the per-user toolchain directories, without
// duplicates.
func (f Facts) SearchPath() []string {
	seen := make(map[string]bool)
	var out []string
	dirs := append(f.PathEntries(), f.ToolDirs()...)
	for _, dir := range append(dirs, systemToolDirs...) {
		if dir == "" || seen[dir] {
			continue
		}
		seen[dir] = true
		out = append(out, dir)
	}
	return out
}

// LookPath finds name on the search path. A name containing a slash is
// checked as a path after expansion.
func (f Facts) LookPath(fs ports.FileSystem, name string) (string, bool) {
	if strings.Contains(name, "/") {
		p := f.Expand(name)
		return p, fs.Exists(p)
	}
	for _, dir := range f.SearchPath() {
		candidate := filepath.Join(dir, name)
		if fs.Exists(candidate) && !fs.IsDir(candidate) {
			return candidate, true
		}
	}
	return "", false
}

// Expand substitutes ~ and the ${HOME}, ${BIN_DIR}, ${OPT_DIR} and
// ${CACHE_DIR} placeholders.
func (f Facts) Expand(s string) string {
	if s == "~" {
		return f.p.Home
	}
	if strings.HasPrefix(s, "~/") {
		s = f.p.Home + s[1:]
	}
	return strings.NewReplacer(
		"${HOME}", f.p.Home,
		"${BIN_DIR}", f.BinDir(),
		"${OPT_DIR}", f.OptDir(),
		"${CACHE_DIR}", f.CacheDir(),
	).Replace(s)
}

// ExpandAll applies Expand to every element.
func (f Facts) ExpandAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = f.Expand(s)
	}
	return out
}

// NeedsSudo reports whether privileged commands must go through sudo.
func (f Facts) NeedsSudo() bool {
	return f.p.Mode == ModeElevated && !f.p.Root
}

// Elevate prefixes cmd with sudo when the run is elevated and the process
// is not already root. Environment entries are passed through sudo.
func (f Facts) Elevate(cmd ports.Command) ports.Command {
	if !f.NeedsSudo() {
		return cmd
	}
	args := make([]string, 0, len(cmd.Env)+len(cmd.Args)+2)
	args = append(args, "-n")
	args = append(args, cmd.Env...)
	args = append(args, cmd.Name)
	args = append(args, cmd.Args...)
	return ports.Command{Name: "sudo", Args: args, Dir: cmd.Dir}
}

// String returns a short description for status output.
func (f Facts) String() string {
	parts := []string{string(f.p.Family)}
	if f.p.DistroID != "" && f.p.DistroID != string(f.p.Family) {
		parts[0] += "(" + f.p.DistroID + ")"
	}
	parts = append(parts, string(f.p.Mode))
	if f.p.Environment != EnvNative {
		parts = append(parts, string(f.p.Environment))
	}
	return strings.Join(parts, "/")
}
