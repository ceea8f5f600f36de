package snapshot

import "errors"

// Common errors returned by the snapshot reader.
var (
	// ErrEmptyRoot is returned when a project root path is empty.
	ErrEmptyRoot = errors.New("project root cannot be empty")
)
