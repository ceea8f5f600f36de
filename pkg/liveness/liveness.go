// Package liveness classifies agents and tasks from timestamps and
// coordination state.
//
// Nothing here is stored: both classifiers are pure functions so the
// same inputs always produce the same label, and the UI, the ledger, and
// the registry all share one vocabulary.
package liveness

import "time"

// Label is the coarse "is this agent still working" classification.
type Label string

// Label values.
const (
	LabelActive  Label = "active"
	LabelStale   Label = "stale"
	LabelEvicted Label = "evicted"
	LabelIdle    Label = "idle"
)

// DefaultStaleMinutes is the first liveness threshold. The second band
// ends at twice this value, the third at an hour.
const DefaultStaleMinutes = 15

// Derive classifies elapsed time since last contact.
//
// Bands are inclusive on their lower edge: at exactly staleMinutes the
// agent is already stale, at exactly 2x it is evicted, at exactly 60
// minutes it is idle.
func Derive(lastSeen, now time.Time, staleMinutes int) Label {
	if staleMinutes <= 0 {
		staleMinutes = DefaultStaleMinutes
	}

	elapsed := now.Sub(lastSeen)
	stale := time.Duration(staleMinutes) * time.Minute

	switch {
	case elapsed < stale:
		return LabelActive
	case elapsed < 2*stale:
		return LabelStale
	case elapsed < 60*time.Minute:
		return LabelEvicted
	default:
		return LabelIdle
	}
}
