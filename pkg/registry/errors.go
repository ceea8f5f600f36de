package registry

import "errors"

// Common errors returned by the registry.
var (
	// ErrAgentNotFound is returned when an agent is not registered.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrNameConflict is returned when an agent name is already taken.
	ErrNameConflict = errors.New("agent name already exists")

	// ErrEmptyName is returned when an agent name is empty.
	ErrEmptyName = errors.New("agent name cannot be empty")

	// ErrInvalidState is returned when a state is not recognized.
	ErrInvalidState = errors.New("invalid agent state: must be working, stuck, dead, or done")
)
