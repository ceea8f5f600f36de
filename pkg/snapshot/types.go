// Package snapshot models the issue tracker's on-disk state and derives
// semantic activity from pairs of point-in-time snapshots.
//
// The tracker (`bd`) exports its issues to .beads/issues.jsonl, one JSON
// object per line. bead-sync never mutates that file; it reads whole
// snapshots and diffs them.
package snapshot

import (
	"context"
	"time"
)

// SnapshotFileName is the issue export inside a project's .beads directory.
const SnapshotFileName = "issues.jsonl"

// BeadsDirName is the tracker's per-project data directory.
const BeadsDirName = ".beads"

// Issue is a single tracker record as exported to the JSONL snapshot.
type Issue struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	Status             string    `json:"status"`
	Priority           int       `json:"priority"`
	IssueType          string    `json:"issue_type,omitempty"`
	Assignee           string    `json:"assignee,omitempty"`
	Labels             []string  `json:"labels,omitempty"`
	Dependencies       []string  `json:"dependencies,omitempty"`
	DueAt              string    `json:"due_at,omitempty"`
	EstimatedMinutes   *int      `json:"estimated_minutes,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	Design             string    `json:"design,omitempty"`
	AcceptanceCriteria string    `json:"acceptance_criteria,omitempty"`
	ExternalRef        string    `json:"external_ref,omitempty"`
	CreatedBy          string    `json:"created_by,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Snapshot is the ordered set of issues as of one successful read.
//
// A snapshot is replaced wholesale on every re-read and never partially
// mutated.
type Snapshot struct {
	Issues []Issue
}

// ByID returns an index of the snapshot's issues keyed by id.
func (s *Snapshot) ByID() map[string]Issue {
	index := make(map[string]Issue, len(s.Issues))
	for _, issue := range s.Issues {
		index[issue.ID] = issue
	}
	return index
}

// Reader reads the current issue snapshot for a project root.
//
// A missing snapshot file yields an empty snapshot, not an error: a
// project without exported issues is simply empty.
type Reader interface {
	Read(ctx context.Context, root string) (*Snapshot, error)
}

// ReaderConfig contains snapshot reader configuration.
type ReaderConfig struct {
	// MaxRetries bounds retries of transient read failures. Default: 3.
	MaxRetries uint64

	// RetryInterval is the fixed delay between retries. Default: 100ms.
	RetryInterval time.Duration
}

// tombstoneStatuses are the statuses the tracker uses instead of
// deleting an issue.
var tombstoneStatuses = map[string]bool{
	"closed":    true,
	"tombstone": true,
	"archived":  true,
	"deleted":   true,
}

// IsTombstone reports whether a status marks an issue as closed-or-gone.
func IsTombstone(status string) bool {
	return tombstoneStatuses[status]
}
