package step

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/envira/internal/domain/platform"
)

// Method names the installer driver that executes a step.
type Method string

// Methods.
const (
	MethodDistroPackage   Method = "distro-package"
	MethodBinaryInstaller Method = "binary-installer"
	MethodLanguagePackage Method = "language-package"
	MethodManualArchive   Method = "manual-archive"
	MethodConfigPatch     Method = "config-patch"
)

// Methods lists every method.
var Methods = []Method{
	MethodDistroPackage,
	MethodBinaryInstaller,
	MethodLanguagePackage,
	MethodManualArchive,
	MethodConfigPatch,
}

// ParseMethod parses a method name.
func ParseMethod(s string) (Method, error) {
	for _, m := range Methods {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown method %q", s)
}

// Applicability restricts a step to distro families and privilege modes.
// An empty list places no restriction on that axis.
type Applicability struct {
	Families []platform.Family
	Modes    []platform.PrivilegeMode
}

// Matches reports whether the facts satisfy both restrictions. A step
// restricted to families never applies on an unknown distribution.
func (a Applicability) Matches(f platform.Facts) bool {
	return a.Reason(f) == ""
}

// Reason explains why the facts do not match, or returns "" when they do.
func (a Applicability) Reason(f platform.Facts) string {
	if len(a.Families) > 0 && !containsFamily(a.Families, f.Family()) {
		return fmt.Sprintf("requires %s, host is %s", joinFamilies(a.Families), f.Family())
	}
	if len(a.Modes) > 0 && !containsMode(a.Modes, f.Mode()) {
		return fmt.Sprintf("requires %s mode", joinModes(a.Modes))
	}
	return ""
}

// IsZero reports whether no restriction is set.
func (a Applicability) IsZero() bool {
	return len(a.Families) == 0 && len(a.Modes) == 0
}

func containsFamily(list []platform.Family, f platform.Family) bool {
	for _, x := range list {
		if x == f {
			return true
		}
	}
	return false
}

func containsMode(list []platform.PrivilegeMode, m platform.PrivilegeMode) bool {
	for _, x := range list {
		if x == m {
			return true
		}
	}
	return false
}

func joinFamilies(list []platform.Family) string {
	parts := make([]string, len(list))
	for i, f := range list {
		parts[i] = string(f)
	}
	return strings.Join(parts, "|")
}

func joinModes(list []platform.PrivilegeMode) string {
	parts := make([]string, len(list))
	for i, m := range list {
		parts[i] = string(m)
	}
	return strings.Join(parts, "|")
}

// ContentMatch requires a file to contain a regular expression.
type ContentMatch struct {
	Path    string
	Pattern string
}

// Predicate is a step's idempotency check. Every listed condition must hold.
// A zero Predicate defers to the driver's own check.
type Predicate struct {
	// Commands must resolve on the search path.
	Commands []string
	// Paths must exist.
	Paths []string
	// Globs must each match at least one path.
	Globs []string
	// Contains lists files that must match a pattern.
	Contains []ContentMatch
}

// IsZero reports whether no condition is set.
func (p Predicate) IsZero() bool {
	return len(p.Commands) == 0 && len(p.Paths) == 0 && len(p.Globs) == 0 && len(p.Contains) == 0
}
