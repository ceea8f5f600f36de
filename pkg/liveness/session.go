package liveness

import "time"

// SessionState is the per-task status label combining tracker status,
// owner liveness, and pending acknowledgements.
type SessionState string

// SessionState values.
const (
	StateActive     SessionState = "active"
	StateReviewing  SessionState = "reviewing"
	StateDeciding   SessionState = "deciding"
	StateNeedsInput SessionState = "needs_input"
	StateCompleted  SessionState = "completed"
	StateStale      SessionState = "stale"
	StateEvicted    SessionState = "evicted"
	StateIdle       SessionState = "idle"
	StateStuck      SessionState = "stuck"
	StateDead       SessionState = "dead"
)

// Explicit owner states an agent may report about itself.
const (
	ExplicitStuck = "stuck"
	ExplicitDead  = "dead"
)

// SessionInput is everything DeriveSessionState looks at.
type SessionInput struct {
	// Status is the task's tracker status.
	Status string

	// OwnerExplicitState is the owning agent's self-reported state
	// ("stuck", "dead", or empty).
	OwnerExplicitState string

	// HasOwner reports whether an owning agent is known at all; owner
	// liveness is only consulted when it is.
	HasOwner bool

	// OwnerLiveness is the owning agent's derived liveness label.
	OwnerLiveness Label

	// PendingRequiredAck reports whether an unacknowledged
	// required-acknowledgement message targets this task.
	PendingRequiredAck bool

	// LastActivityAt is the task's own most recent activity; zero means
	// unknown.
	LastActivityAt time.Time

	// Now is the evaluation time.
	Now time.Time

	// StaleMinutes is the staleness threshold; zero means the default.
	StaleMinutes int
}

// tracker statuses consulted by the classifier.
var (
	closedStatuses  = map[string]bool{"closed": true, "tombstone": true, "archived": true, "deleted": true}
	blockedStatuses = map[string]bool{"blocked": true}
	reviewStatuses  = map[string]bool{"in_review": true, "review": true}
)

// DeriveSessionState maps a task and its owner's condition to a session
// state, applying a fixed priority order:
//
//  1. closed task -> completed, regardless of any other input
//  2. explicit stuck/dead -> same, never overridden by liveness
//  3. blocked status or a pending required ack -> needs_input
//  4. owner liveness evicted/stale/idle -> same
//  5. the task's own last activity beyond the stale threshold -> stale
//  6. review status -> reviewing, in-progress status -> active
//  7. otherwise -> deciding
func DeriveSessionState(in SessionInput) SessionState {
	if closedStatuses[in.Status] {
		return StateCompleted
	}

	switch in.OwnerExplicitState {
	case ExplicitStuck:
		return StateStuck
	case ExplicitDead:
		return StateDead
	}

	if blockedStatuses[in.Status] || in.PendingRequiredAck {
		return StateNeedsInput
	}

	if in.HasOwner {
		switch in.OwnerLiveness {
		case LabelEvicted:
			return StateEvicted
		case LabelStale:
			return StateStale
		case LabelIdle:
			return StateIdle
		}
	}

	if !in.LastActivityAt.IsZero() {
		staleMinutes := in.StaleMinutes
		if staleMinutes <= 0 {
			staleMinutes = DefaultStaleMinutes
		}
		if in.Now.Sub(in.LastActivityAt) >= time.Duration(staleMinutes)*time.Minute {
			return StateStale
		}
	}

	if reviewStatuses[in.Status] {
		return StateReviewing
	}
	if in.Status == "in_progress" {
		return StateActive
	}

	return StateDeciding
}
