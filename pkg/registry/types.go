// Package registry provides the agent directory with persistent storage.
//
// It maps agent IDs to friendly names and heartbeat timestamps, backed
// by BoltDB with a name index for fast lookups. Liveness is never stored:
// it is derived from last_seen_at by the caller at read time.
//
// Example usage:
//
//	reg, err := registry.New(registry.Config{
//	    DBPath: "~/.config/bead-sync/agents.db",
//	}, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer reg.Close()
//
//	rec, err := reg.Register("amp-worker-1")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := reg.Heartbeat(rec.ID, "/work/project-a"); err != nil {
//	    log.Fatal(err)
//	}
package registry

import "time"

// Record represents one registered agent.
type Record struct {
	// ID is the agent identifier (UUID).
	ID string `json:"id"`

	// Name is the friendly agent name (must be unique).
	Name string `json:"name"`

	// State is the agent's self-reported state
	// (working, stuck, dead, done).
	State string `json:"state"`

	// LastSeenAt is the most recent heartbeat timestamp.
	LastSeenAt time.Time `json:"last_seen_at"`

	// CreatedAt is the registration timestamp.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is the last update timestamp.
	UpdatedAt time.Time `json:"updated_at"`
}

// Self-reported agent states.
const (
	StateWorking = "working"
	StateStuck   = "stuck"
	StateDead    = "dead"
	StateDone    = "done"
)

// Registry provides agent directory operations.
type Registry interface {
	// Register creates a new agent record with a fresh ID.
	//
	// Returns error if:
	//   - Name is empty or already taken
	//   - Database operation fails
	Register(name string) (*Record, error)

	// Heartbeat refreshes the agent's last-seen timestamp and touches
	// the .beads/last_touch marker in each given workspace root so
	// watchers see the heartbeat as telemetry rather than a content
	// change.
	//
	// Returns:
	//   - ErrAgentNotFound if the agent is not registered
	//   - Error for database failures; marker-touch failures are
	//     logged, not returned
	Heartbeat(id string, roots ...string) error

	// Get retrieves an agent record by ID.
	//
	// Returns:
	//   - Record if found
	//   - ErrAgentNotFound if not found
	//   - Error for database failures
	Get(id string) (*Record, error)

	// GetByName retrieves an agent record by name.
	//
	// Returns:
	//   - Record if found
	//   - ErrAgentNotFound if not found
	//   - Error for database failures
	GetByName(name string) (*Record, error)

	// List returns all agent records.
	//
	// Returns:
	//   - Slice of all agents (empty if none exist)
	//   - Error for database failures
	List() ([]*Record, error)

	// SetState updates an agent's self-reported state.
	//
	// Returns error if:
	//   - Agent not found
	//   - State is not one of working, stuck, dead, done
	//   - Database operation fails
	SetState(id, state string) error

	// Close closes the database connection and releases resources.
	//
	// Returns error if database cannot be closed cleanly.
	Close() error
}

// Config contains registry configuration.
type Config struct {
	// DBPath is the BoltDB file path.
	DBPath string

	// Timeout is the database operation timeout (default: 1 second).
	Timeout time.Duration

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}
