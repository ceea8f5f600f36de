package watchman

import "errors"

// Common errors returned by the watch manager.
var (
	// ErrEmptyRoot is returned when a workspace root is empty.
	ErrEmptyRoot = errors.New("workspace root cannot be empty")

	// ErrNotWatching is returned when stopping a root that is not watched.
	ErrNotWatching = errors.New("root is not being watched")

	// ErrManagerStopped is returned when starting a watch after StopAll.
	ErrManagerStopped = errors.New("watch manager is stopped")
)
