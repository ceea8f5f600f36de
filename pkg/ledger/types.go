// Package ledger implements the lease-based scope-reservation store.
//
// Agents claim exclusive ownership of a file-path scope for a bounded
// time. Claims live in one small JSON file shared across processes; all
// mutations happen as a read-modify-write cycle under an exclusive
// advisory file lock, persisted via temp-file-then-rename so a crash
// mid-write cannot corrupt the active set. Every terminal transition is
// additionally appended to an append-only history log for audit.
//
// Expiry is logical: an expired-but-unswept reservation is already dead
// for conflict purposes the instant now >= expires_at; sweeps happen
// lazily on any ledger read.
package ledger

import (
	"time"

	"github.com/0xmhha/bead-sync/pkg/mailbox"
)

// Ledger file names inside the configured directory.
const (
	ActiveFileName  = "active.json"
	HistoryFileName = "history.jsonl"
	lockFileName    = "active.json.lock"
)

// Default TTL bounds in minutes, matching the tracker's own lease clamp.
const (
	DefaultMinTTLMinutes = 5
	DefaultMaxTTLMinutes = 1440
)

// State is a reservation's lifecycle state.
type State string

// State values.
const (
	StateActive   State = "active"
	StateReleased State = "released"
	StateExpired  State = "expired"
)

// Reservation is a time-bounded exclusive claim on a scope.
type Reservation struct {
	ID         string     `json:"id"`
	Scope      string     `json:"scope"`
	AgentID    string     `json:"agent_id"`
	IssueID    string     `json:"issue_id,omitempty"`
	State      State      `json:"state"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  time.Time  `json:"expires_at"`
	ReleasedAt *time.Time `json:"released_at,omitempty"`
}

// Filter selects reservations for Status. Zero values match everything.
type Filter struct {
	AgentID string
	IssueID string
}

// StatusReport is what Status returns: the surviving active set plus any
// required-acknowledgement messages still pending for the filter.
type StatusReport struct {
	Active      []Reservation     `json:"active"`
	PendingAcks []mailbox.Message `json:"pending_acks,omitempty"`
}

// Ledger is the reservation store. Every operation independently
// acquires the file lock, sweeps expired entries, and persists.
type Ledger interface {
	// Reserve creates an active reservation for scope, or fails with a
	// conflict (scope actively held), a stale-reservation error (an
	// expired claim exists and takeoverStale is false), or a validation
	// error.
	Reserve(agent, scope, issueID string, ttlMinutes int, takeoverStale bool) (*Reservation, error)

	// Release ends the caller's own active reservation on scope. Only
	// the owning agent may release; anyone else fails without mutating
	// the ledger.
	Release(agent, scope string) error

	// Status sweeps expired entries and reports the surviving active
	// set matching the filter, plus pending required acknowledgements.
	Status(filter Filter) (*StatusReport, error)
}

// Config contains ledger configuration.
type Config struct {
	// Dir is the directory holding active.json and history.jsonl.
	Dir string

	// MinTTLMinutes / MaxTTLMinutes bound accepted TTLs.
	// Defaults: 5 and 1440.
	MinTTLMinutes int
	MaxTTLMinutes int

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// activeFile is the on-disk shape of the mutable active set.
type activeFile struct {
	Reservations []Reservation `json:"reservations"`
}

// historyEntry is one line of the append-only audit log.
type historyEntry struct {
	At          time.Time   `json:"at"`
	Event       string      `json:"event"` // created | released | expired
	Reservation Reservation `json:"reservation"`
}
