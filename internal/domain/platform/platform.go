// Package platform captures the facts about the host that decide which
// catalog steps apply and how they run.
package platform

import (
	"fmt"
	"strings"
)

// Family is a Linux distribution family.
type Family string

const (
	// FamilyDebian covers Debian, Ubuntu and derivatives (apt).
	FamilyDebian Family = "debian"
	// FamilyFedora covers Fedora, RHEL and derivatives (dnf).
	FamilyFedora Family = "fedora"
	// FamilyArch covers Arch, Manjaro and derivatives (pacman).
	FamilyArch Family = "arch"
	// FamilyUnknown is any distribution not recognized above.
	FamilyUnknown Family = "unknown"
)

// Families lists the recognized families.
var Families = []Family{FamilyDebian, FamilyFedora, FamilyArch}

var familyByID = map[string]Family{
	"debian":      FamilyDebian,
	"ubuntu":      FamilyDebian,
	"linuxmint":   FamilyDebian,
	"pop":         FamilyDebian,
	"elementary":  FamilyDebian,
	"raspbian":    FamilyDebian,
	"fedora":      FamilyFedora,
	"rhel":        FamilyFedora,
	"centos":      FamilyFedora,
	"rocky":       FamilyFedora,
	"almalinux":   FamilyFedora,
	"arch":        FamilyArch,
	"manjaro":     FamilyArch,
	"endeavouros": FamilyArch,
	"garuda":      FamilyArch,
}

// ParseFamily parses a family name as used in catalog files.
func ParseFamily(s string) (Family, error) {
	f := Family(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case FamilyDebian, FamilyFedora, FamilyArch:
		return f, nil
	default:
		return FamilyUnknown, fmt.Errorf("unknown distro family %q", s)
	}
}

// FamilyFromOSRelease maps the ID and ID_LIKE values of os-release to a
// family. ID wins over ID_LIKE.
func FamilyFromOSRelease(id, idLike string) Family {
	if f, ok := familyByID[strings.ToLower(id)]; ok {
		return f
	}
	for _, like := range strings.Fields(strings.ToLower(idLike)) {
		if f, ok := familyByID[like]; ok {
			return f
		}
	}
	return FamilyUnknown
}

// PrivilegeMode is the installation scope chosen by the caller.
type PrivilegeMode string

const (
	// ModeElevated installs system-wide with root privileges.
	ModeElevated PrivilegeMode = "elevated"
	// ModeUser installs into the invoking user's home directory.
	ModeUser PrivilegeMode = "user"
)

// Modes lists the privilege modes.
var Modes = []PrivilegeMode{ModeElevated, ModeUser}

// ParsePrivilegeMode parses a --mode value. "system" is accepted as an alias
// for elevated.
func ParsePrivilegeMode(s string) (PrivilegeMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "system", "elevated", "root":
		return ModeElevated, nil
	case "user":
		return ModeUser, nil
	default:
		return "", fmt.Errorf("invalid mode %q (want system or user)", s)
	}
}

// Environment is the kind of host the probe ran on.
type Environment string

const (
	// EnvNative is a regular machine or VM.
	EnvNative Environment = "native"
	// EnvWSL is Windows Subsystem for Linux.
	EnvWSL Environment = "wsl"
	// EnvContainer is a Docker or containerd container.
	EnvContainer Environment = "container"
)

// PackageManager is the distribution package manager binary.
type PackageManager string

const (
	// PMApt is apt-get.
	PMApt PackageManager = "apt-get"
	// PMDnf is dnf.
	PMDnf PackageManager = "dnf"
	// PMPacman is pacman.
	PMPacman PackageManager = "pacman"
	// PMNone means no supported manager was found.
	PMNone PackageManager = ""
)

// ManagerFor returns the package manager native to a family.
func ManagerFor(f Family) PackageManager {
	switch f {
	case FamilyDebian:
		return PMApt
	case FamilyFedora:
		return PMDnf
	case FamilyArch:
		return PMPacman
	default:
		return PMNone
	}
}
