package catalog

import "errors"

// Sentinel errors for catalog operations.
var (
	// ErrNotFound indicates a lookup miss on an entity, library, folder or plugin.
	ErrNotFound = errors.New("catalog: not found")

	// ErrConflict indicates a duplicate library name or plugin binding.
	ErrConflict = errors.New("catalog: conflict")

	// ErrValidation indicates a missing required field or invalid filepath.
	ErrValidation = errors.New("catalog: validation failed")
)
