// Package step defines catalog steps, their outcomes and the dependency
// graph the engine walks.
package step

import (
	"errors"
	"regexp"
	"strings"
)

// ID uniquely identifies a step within a catalog.
// Format: lowercase words joined by hyphens, optionally namespaced with
// colons (e.g. "rust", "cargo:bottom").
type ID struct {
	value string
}

// Errors for ID validation.
var (
	ErrEmptyID   = errors.New("step ID cannot be empty")
	ErrInvalidID = errors.New("step ID format invalid: must be alphanumeric with colons, hyphens, dots or underscores")
)

var idPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_.-]*(?::[a-zA-Z0-9][a-zA-Z0-9_.-]*)*$`)

// NewID creates a new ID from a string.
func NewID(value string) (ID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ID{}, ErrEmptyID
	}
	if !idPattern.MatchString(trimmed) {
		return ID{}, ErrInvalidID
	}
	return ID{value: trimmed}, nil
}

// MustNewID creates a new ID from a string, panicking on error.
func MustNewID(value string) ID {
	id, err := NewID(value)
	if err != nil {
		panic("invalid step ID: " + value + ": " + err.Error())
	}
	return id
}

// IDs converts strings to IDs, panicking on invalid input. Meant for tests
// and static tables.
func IDs(values ...string) []ID {
	ids := make([]ID, len(values))
	for i, v := range values {
		ids[i] = MustNewID(v)
	}
	return ids
}

// String returns the string representation.
func (id ID) String() string {
	return id.value
}

// IsZero returns true if this is a zero-value ID.
func (id ID) IsZero() bool {
	return id.value == ""
}
