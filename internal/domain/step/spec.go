package step

import (
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
)

// Link is a symbolic link created after installation.
type Link struct {
	Target string
	Path   string
}

// PackageSpec describes a distribution package install. Names maps each
// family to its package names; a family without names has nothing to do.
type PackageSpec struct {
	Names map[platform.Family][]string
	// Refresh updates the package index before installing (once per run).
	Refresh bool
	Links   []Link
}

// InstallerKind is how a binary installer is retrieved.
type InstallerKind string

// Installer kinds.
const (
	InstallerScript InstallerKind = "script"
	InstallerGit    InstallerKind = "git"
	// InstallerCommand retrieves nothing; only Run is executed.
	InstallerCommand InstallerKind = "command"
)

// CommandSpec is a command template; arguments are expanded against facts.
type CommandSpec struct {
	Name string
	Args []string
	Dir  string
	Env  []string
	// Elevate runs the command through sudo in elevated mode.
	Elevate bool
	// Stdout, when set, is a file that receives the command's output.
	Stdout string
}

// InstallerSpec describes a vendor installer script or a git checkout.
type InstallerSpec struct {
	Kind InstallerKind
	URL  string
	// Interpreter runs a downloaded script, e.g. "sh" or "bash".
	Interpreter string
	Args        []string
	Env         []string
	Elevate     bool
	// Dest is the clone target for git installers.
	Dest  string
	Depth int
	// Run is executed after retrieval.
	Run *CommandSpec
}

// LangManager is a language-ecosystem package manager.
type LangManager string

// Language package managers.
const (
	LangCargo LangManager = "cargo"
	LangGo    LangManager = "go"
	LangPipx  LangManager = "pipx"
	LangNpm   LangManager = "npm"
	LangConda LangManager = "conda"
)

// LangSpec describes packages installed through a language manager.
type LangSpec struct {
	Manager  LangManager
	Packages []string
	// Binaries are expected on the search path once installed.
	Binaries []string
	Args     []string
}

// ArchiveFormat is the downloaded artifact type.
type ArchiveFormat string

// Archive formats.
const (
	ArchiveTarGz  ArchiveFormat = "tar.gz"
	ArchiveZip    ArchiveFormat = "zip"
	ArchiveBinary ArchiveFormat = "binary"
)

// ArchiveSpec describes a release download.
type ArchiveSpec struct {
	// URL is used when URLs has no entry for the host architecture.
	URL  string
	URLs map[string]string
	// Format of the artifact.
	Format ArchiveFormat
	// Dest is a directory for archives and the file path for binaries.
	Dest            string
	StripComponents int
	// Binaries are paths relative to Dest made executable after extraction.
	Binaries []string
	Links    []Link
	// Merge extracts into an existing Dest instead of replacing it.
	Merge bool
}

// URLFor returns the download URL for an architecture.
func (a *ArchiveSpec) URLFor(arch string) string {
	if u, ok := a.URLs[arch]; ok {
		return u
	}
	return a.URL
}

// PatchMode is how a config patch edits its target.
type PatchMode string

// Patch modes.
const (
	PatchLine    PatchMode = "line"
	PatchBlock   PatchMode = "block"
	PatchReplace PatchMode = "replace"
	PatchTOML    PatchMode = "toml"
	PatchINI     PatchMode = "ini"
	PatchKDL     PatchMode = "kdl"
)

// PatchSpec describes an idempotent edit of a configuration file.
type PatchSpec struct {
	Path string
	Mode PatchMode
	// Line is appended verbatim (line mode), or inserted when Pattern does
	// not match (replace mode).
	Line string
	// Block is the managed block body (block mode).
	Block string
	// Pattern is a multi-line regular expression (replace mode). In kdl
	// mode it finds an existing child equivalent to Line.
	Pattern string
	// Section is the TOML table or INI section, dotted for nesting. In kdl
	// mode it is a slash-separated node path such as
	// `keybinds/shared_except "normal" "locked"`.
	Section string
	// Key and Value name the TOML or INI setting. In kdl mode every Key
	// inside the section is rewritten to Value.
	Key   string
	Value any
	// Create allows creating a missing target. When false, a missing target
	// means there is nothing to patch.
	Create bool
}

// Spec carries the method-specific command specification. Exactly one
// field is set, matching the step's method.
type Spec struct {
	Packages  *PackageSpec
	Installer *InstallerSpec
	Lang      *LangSpec
	Archive   *ArchiveSpec
	Patch     *PatchSpec
}

func (s Spec) validate(m Method) error {
	set := 0
	for _, present := range []bool{s.Packages != nil, s.Installer != nil, s.Lang != nil, s.Archive != nil, s.Patch != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one command spec required, found %d", set)
	}

	switch m {
	case MethodDistroPackage:
		if s.Packages == nil {
			return fmt.Errorf("method %s requires packages", m)
		}
		if len(s.Packages.Names) == 0 {
			return fmt.Errorf("packages: no names for any family")
		}
	case MethodBinaryInstaller:
		if s.Installer == nil {
			return fmt.Errorf("method %s requires installer", m)
		}
		return s.Installer.validate()
	case MethodLanguagePackage:
		if s.Lang == nil {
			return fmt.Errorf("method %s requires lang", m)
		}
		return s.Lang.validate()
	case MethodManualArchive:
		if s.Archive == nil {
			return fmt.Errorf("method %s requires archive", m)
		}
		return s.Archive.validate()
	case MethodConfigPatch:
		if s.Patch == nil {
			return fmt.Errorf("method %s requires patch", m)
		}
		return s.Patch.validate()
	default:
		return fmt.Errorf("unknown method %q", m)
	}
	return nil
}

func (s *InstallerSpec) validate() error {
	switch s.Kind {
	case InstallerScript:
		if s.URL == "" {
			return fmt.Errorf("installer: script requires url")
		}
		if s.Interpreter == "" {
			return fmt.Errorf("installer: script requires interpreter")
		}
	case InstallerGit:
		if s.URL == "" || s.Dest == "" {
			return fmt.Errorf("installer: git requires url and dest")
		}
	case InstallerCommand:
		if s.Run == nil {
			return fmt.Errorf("installer: command requires run")
		}
	default:
		return fmt.Errorf("installer: unknown kind %q", s.Kind)
	}
	if s.Run != nil && s.Run.Name == "" {
		return fmt.Errorf("installer: run requires a command name")
	}
	return nil
}

func (s *LangSpec) validate() error {
	switch s.Manager {
	case LangCargo, LangGo, LangPipx, LangNpm, LangConda:
	default:
		return fmt.Errorf("lang: unknown manager %q", s.Manager)
	}
	if len(s.Packages) == 0 {
		return fmt.Errorf("lang: no packages")
	}
	return nil
}

func (s *ArchiveSpec) validate() error {
	if s.URL == "" && len(s.URLs) == 0 {
		return fmt.Errorf("archive: url required")
	}
	switch s.Format {
	case ArchiveTarGz, ArchiveZip, ArchiveBinary:
	default:
		return fmt.Errorf("archive: unknown format %q", s.Format)
	}
	if s.Dest == "" {
		return fmt.Errorf("archive: dest required")
	}
	return nil
}

func (s *PatchSpec) validate() error {
	if s.Path == "" {
		return fmt.Errorf("patch: path required")
	}
	switch s.Mode {
	case PatchLine:
		if s.Line == "" {
			return fmt.Errorf("patch: line mode requires line")
		}
	case PatchBlock:
		if s.Block == "" {
			return fmt.Errorf("patch: block mode requires block")
		}
	case PatchReplace:
		if s.Pattern == "" || s.Line == "" {
			return fmt.Errorf("patch: replace mode requires pattern and line")
		}
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("patch: invalid pattern: %w", err)
		}
	case PatchTOML, PatchINI:
		if s.Key == "" {
			return fmt.Errorf("patch: %s mode requires key", s.Mode)
		}
	case PatchKDL:
		if s.Section == "" {
			return fmt.Errorf("patch: kdl mode requires section")
		}
		if s.Key != "" && s.Value == nil {
			return fmt.Errorf("patch: kdl rewrite of %q requires value", s.Key)
		}
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("patch: invalid pattern: %w", err)
		}
	default:
		return fmt.Errorf("patch: unknown mode %q", s.Mode)
	}
	return nil
}
