package snapshot

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/0xmhha/bead-sync/pkg/bus"
)

// Diff derives the ordered list of activity events separating prev from
// curr. It is a pure function: neither snapshot is mutated, and diffing
// the same pair twice yields identical output.
//
// Rules:
//   - an issue in curr but not prev (or prev == nil) yields one created
//     event;
//   - an issue missing from curr is not a deletion signal on its own —
//     the tracker tombstones rather than deletes, so only a transition
//     into a tombstone status yields closed (and out of one, reopened);
//   - each changed tracked field yields exactly one typed event with
//     from/to values; untyped fields fall back to field_changed;
//   - dependency list changes are diffed by set difference, one event
//     per edge.
//
// Ordering: issues in curr order, fields in a fixed order per issue.
func Diff(prev, curr *Snapshot, projectKey, projectName string) []bus.ActivityEvent {
	if curr == nil {
		return nil
	}

	var prevByID map[string]Issue
	if prev != nil {
		prevByID = prev.ByID()
	}

	now := time.Now()
	var events []bus.ActivityEvent

	for _, issue := range curr.Issues {
		old, existed := prevByID[issue.ID]
		if !existed {
			events = append(events, newEvent(bus.ActivityCreated, issue, projectKey, projectName, now, bus.ActivityPayload{
				To: issue.Status,
			}))
			continue
		}

		events = append(events, diffIssue(old, issue, projectKey, projectName, now)...)
	}

	return events
}

// diffIssue emits one event per changed tracked field, in a fixed order
// so repeated diffs of the same pair are byte-for-byte identical.
func diffIssue(old, cur Issue, projectKey, projectName string, now time.Time) []bus.ActivityEvent {
	var events []bus.ActivityEvent

	add := func(kind bus.ActivityKind, payload bus.ActivityPayload) {
		events = append(events, newEvent(kind, cur, projectKey, projectName, now, payload))
	}

	if old.Status != cur.Status {
		payload := bus.ActivityPayload{Field: "status", From: old.Status, To: cur.Status}
		switch {
		case IsTombstone(cur.Status) && !IsTombstone(old.Status):
			add(bus.ActivityClosed, payload)
		case IsTombstone(old.Status) && !IsTombstone(cur.Status):
			add(bus.ActivityReopened, payload)
		default:
			add(bus.ActivityStatusChanged, payload)
		}
	}

	if old.Priority != cur.Priority {
		add(bus.ActivityPriorityChanged, bus.ActivityPayload{
			Field: "priority",
			From:  strconv.Itoa(old.Priority),
			To:    strconv.Itoa(cur.Priority),
		})
	}

	if old.Assignee != cur.Assignee {
		add(bus.ActivityAssigneeChanged, bus.ActivityPayload{
			Field: "assignee",
			From:  old.Assignee,
			To:    cur.Assignee,
		})
	}

	if old.IssueType != cur.IssueType {
		add(bus.ActivityTypeChanged, bus.ActivityPayload{
			Field: "issue_type",
			From:  old.IssueType,
			To:    cur.IssueType,
		})
	}

	if old.Title != cur.Title {
		add(bus.ActivityTitleChanged, bus.ActivityPayload{
			Field: "title",
			From:  old.Title,
			To:    cur.Title,
		})
	}

	if old.Description != cur.Description {
		add(bus.ActivityDescriptionChanged, bus.ActivityPayload{
			Field: "description",
			From:  old.Description,
			To:    cur.Description,
		})
	}

	if !equalStrings(old.Labels, cur.Labels) {
		add(bus.ActivityLabelsChanged, bus.ActivityPayload{
			Field: "labels",
			From:  strings.Join(old.Labels, ","),
			To:    strings.Join(cur.Labels, ","),
		})
	}

	if old.DueAt != cur.DueAt {
		add(bus.ActivityDueDateChanged, bus.ActivityPayload{
			Field: "due_at",
			From:  old.DueAt,
			To:    cur.DueAt,
		})
	}

	if formatEstimate(old.EstimatedMinutes) != formatEstimate(cur.EstimatedMinutes) {
		add(bus.ActivityEstimateChanged, bus.ActivityPayload{
			Field: "estimated_minutes",
			From:  formatEstimate(old.EstimatedMinutes),
			To:    formatEstimate(cur.EstimatedMinutes),
		})
	}

	added, removed := diffSets(old.Dependencies, cur.Dependencies)
	for _, dep := range added {
		add(bus.ActivityDependencyAdded, bus.ActivityPayload{
			Field: "dependencies",
			To:    dep,
		})
	}
	for _, dep := range removed {
		add(bus.ActivityDependencyRemoved, bus.ActivityPayload{
			Field: "dependencies",
			From:  dep,
		})
	}

	// A notes change is how the tracker surfaces a new comment.
	if old.Notes != cur.Notes {
		add(bus.ActivityCommentAdded, bus.ActivityPayload{
			Field:   "notes",
			Message: cur.Notes,
		})
	}

	// Remaining tracked scalars have no dedicated kind; surface them
	// rather than dropping them.
	for _, f := range []struct {
		name     string
		from, to string
	}{
		{"design", old.Design, cur.Design},
		{"acceptance_criteria", old.AcceptanceCriteria, cur.AcceptanceCriteria},
		{"external_ref", old.ExternalRef, cur.ExternalRef},
	} {
		if f.from != f.to {
			add(bus.ActivityFieldChanged, bus.ActivityPayload{
				Field: f.name,
				From:  f.from,
				To:    f.to,
			})
		}
	}

	return events
}

func newEvent(kind bus.ActivityKind, issue Issue, projectKey, projectName string, now time.Time, payload bus.ActivityPayload) bus.ActivityEvent {
	return bus.ActivityEvent{
		Kind:        kind,
		IssueID:     issue.ID,
		IssueTitle:  issue.Title,
		Project:     projectKey,
		ProjectName: projectName,
		Timestamp:   now,
		Actor:       actorFor(issue),
		Payload:     payload,
	}
}

// actorFor picks the best available attribution: the JSONL export
// carries no per-mutation author, so the current assignee stands in.
func actorFor(issue Issue) string {
	if issue.Assignee != "" {
		return issue.Assignee
	}
	return "system"
}

// diffSets returns sorted added and removed entries between two lists
// treated as sets.
func diffSets(old, cur []string) (added, removed []string) {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	curSet := make(map[string]bool, len(cur))
	for _, s := range cur {
		curSet[s] = true
	}

	for s := range curSet {
		if !oldSet[s] {
			added = append(added, s)
		}
	}
	for s := range oldSet {
		if !curSet[s] {
			removed = append(removed, s)
		}
	}

	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func formatEstimate(minutes *int) string {
	if minutes == nil {
		return ""
	}
	return strconv.Itoa(*minutes)
}
