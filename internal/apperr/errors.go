// Package apperr defines the sentinel errors shared across cardnav layers.
package apperr

import "errors"

var (
	// ErrNotFound is returned when a preset, mapping, or note does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation is returned for structurally invalid create/update input.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is returned when an operation violates a precondition the
	// caller must resolve first (e.g. deleting the default preset).
	ErrConflict = errors.New("conflict")
	// ErrStaleReference is returned when a resolved preset id was deleted
	// between resolution and use. Callers must re-resolve, never substitute.
	ErrStaleReference = errors.New("stale reference")
	// ErrNoDefaultPreset is returned when the default preset id is unset or
	// points at a preset that no longer exists. The store never repairs this
	// silently; it is surfaced loudly at the boundary.
	ErrNoDefaultPreset = errors.New("no default preset")
)
