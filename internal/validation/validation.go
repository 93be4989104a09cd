// Package validation rejects catalog arguments that would be unsafe to hand
// to a package manager or git.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common validation errors.
var (
	ErrEmptyInput         = errors.New("input cannot be empty")
	ErrInvalidPackageName = errors.New("invalid package name")
	ErrCommandInjection   = errors.New("potential command injection detected")
	ErrNewlineInjection   = errors.New("newline injection detected")
	ErrInvalidConfigValue = errors.New("invalid config value")
	ErrInvalidGitURL      = errors.New("invalid git remote URL")
	ErrUnknownManager     = errors.New("unknown package manager")
)

var (
	// Examples: "git", "build-essential", "python3.11", "g++"
	packageNameRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._+-]*$`)

	// Examples: "ripgrep", "yazi-fm", "bat@0.22.1"
	crateRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*(@[a-zA-Z0-9._-]+)?$`)

	// Examples: "mvdan.cc/sh/v3/cmd/shfmt@latest"
	goToolRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(\.[a-zA-Z0-9._-]+)*(/[a-zA-Z0-9._-]+)+(@[a-zA-Z0-9._-]+)?$`)

	// Examples: "uv", "huggingface_hub[cli,hf_xet]", "ruff>=0.1.0"
	pipRegex = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*(\[[a-zA-Z0-9._,-]+\])?([=<>!~]=?[a-zA-Z0-9._*-]+)?$`)

	// Examples: "pm2", "@anthropic-ai/claude-code", "pnpm@10.24.0"
	npmRegex = regexp.MustCompile(`^(@[a-z0-9][a-z0-9._-]*/)?[a-z0-9][a-z0-9._-]*(@[a-zA-Z0-9._-]+)?$`)

	gitURLRegexes = []*regexp.Regexp{
		regexp.MustCompile(`^https://[a-zA-Z0-9.-]+/[a-zA-Z0-9_./-]+(?:\.git)?$`),
		regexp.MustCompile(`^git@[a-zA-Z0-9.-]+:[a-zA-Z0-9_./-]+(?:\.git)?$`),
		regexp.MustCompile(`^ssh://[a-zA-Z0-9@.-]+/[a-zA-Z0-9_./-]+(?:\.git)?$`),
	}

	controlCharRegex = regexp.MustCompile(`[\x00-\x1f\x7f]`)

	shellMetaChars = []string{";", "|", "&", "$", "`", "(", ")", "{", "}", "<", ">", "\n", "\r", "\\"}

	// Version specifiers use < and >; packages are never passed through a shell.
	specifierMetaChars = withoutChars(shellMetaChars, "<", ">")
)

const maxNameLen = 256

// PackageName validates a distro package name.
func PackageName(name string) error {
	return match(name, packageNameRegex, "package", shellMetaChars)
}

// LangPackage validates a package argument for a language package manager.
func LangPackage(manager, name string) error {
	switch manager {
	case "cargo":
		return match(name, crateRegex, "crate", shellMetaChars)
	case "go":
		return match(name, goToolRegex, "Go module path", shellMetaChars)
	case "pipx", "conda":
		return match(name, pipRegex, manager+" package", specifierMetaChars)
	case "npm":
		return match(strings.ToLower(name), npmRegex, "npm package", shellMetaChars)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownManager, manager)
	}
}

// GitURL validates a clone URL. Only remote transports are accepted.
func GitURL(url string) error {
	if url == "" {
		return ErrEmptyInput
	}
	if containsAny(url, shellMetaChars) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, url)
	}
	for _, re := range gitURLRegexes {
		if re.MatchString(url) {
			return nil
		}
	}
	return fmt.Errorf("%w: %q must be an HTTPS or SSH URL", ErrInvalidGitURL, url)
}

// ConfigValue validates a single-line value written into an INI file.
func ConfigValue(value string) error {
	if strings.ContainsAny(value, "\n\r") {
		return fmt.Errorf("%w: value contains newlines", ErrNewlineInjection)
	}
	if controlCharRegex.MatchString(value) {
		return fmt.Errorf("%w: value contains control characters", ErrInvalidConfigValue)
	}
	return nil
}

func match(name string, re *regexp.Regexp, what string, meta []string) error {
	if name == "" {
		return ErrEmptyInput
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w: %s name too long (max %d characters)", ErrInvalidPackageName, what, maxNameLen)
	}
	if containsAny(name, meta) {
		return fmt.Errorf("%w: %q contains shell metacharacters", ErrCommandInjection, name)
	}
	if !re.MatchString(name) {
		return fmt.Errorf("%w: %q is not a valid %s name", ErrInvalidPackageName, name, what)
	}
	return nil
}

func containsAny(s string, chars []string) bool {
	for _, char := range chars {
		if strings.Contains(s, char) {
			return true
		}
	}
	return false
}

func withoutChars(chars []string, drop ...string) []string {
	out := make([]string, 0, len(chars))
	for _, c := range chars {
		keep := true
		for _, d := range drop {
			if c == d {
				keep = false
			}
		}
		if keep {
			out = append(out, c)
		}
	}
	return out
}
