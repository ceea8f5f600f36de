// Package bus provides the in-process pub/sub event buses that fan out
// tracker changes to live subscribers.
//
// Two bus instances exist per process: a change bus carrying raw
// filesystem change signals, and an activity bus carrying semantic
// issue-activity events derived by the snapshot differ. Both share the
// same delivery shape and framing so a streaming transport can forward
// either with a resumable numeric id.
package bus

import "time"

// Frame types distinguish the semantics of a delivery on the wire.
const (
	// FrameTypeIssues marks a content change that should trigger a data
	// refresh in consumers.
	FrameTypeIssues = "issues"

	// FrameTypeTelemetry marks a touch that must not trigger a refresh
	// (heartbeat pulses, database housekeeping writes).
	FrameTypeTelemetry = "telemetry"

	// FrameTypeActivity marks a semantic issue-activity event.
	FrameTypeActivity = "activity"
)

// Delivery is what a subscriber receives: the bus-assigned id, the frame
// type, the normalized project key, and the event payload.
type Delivery struct {
	ID      int64
	Type    string
	Project string
	Data    interface{}
}

// Listener receives deliveries synchronously, in subscription order.
type Listener func(Delivery)

// ChangeKind classifies a raw filesystem change signal.
type ChangeKind string

// ChangeKind values.
const (
	// ChangeContent marks a change to the issue snapshot content.
	ChangeContent ChangeKind = "content-changed"

	// ChangeRemoved marks a rename or removal of a watched file.
	ChangeRemoved ChangeKind = "renamed-or-removed"

	// ChangeTelemetry marks a touch that carries no data change.
	ChangeTelemetry ChangeKind = "telemetry"
)

// ChangeEvent is a raw change signal. It is ephemeral: it exists only on
// the change bus and is never persisted.
type ChangeEvent struct {
	ID      int64      `json:"id"`
	Project string     `json:"project"`
	Path    string     `json:"path,omitempty"`
	Kind    ChangeKind `json:"kind"`
	At      time.Time  `json:"at"`
}

// ActivityKind is the fixed enum of semantic issue transitions.
type ActivityKind string

// ActivityKind values.
const (
	ActivityCreated            ActivityKind = "created"
	ActivityClosed             ActivityKind = "closed"
	ActivityReopened           ActivityKind = "reopened"
	ActivityStatusChanged      ActivityKind = "status_changed"
	ActivityPriorityChanged    ActivityKind = "priority_changed"
	ActivityAssigneeChanged    ActivityKind = "assignee_changed"
	ActivityTypeChanged        ActivityKind = "type_changed"
	ActivityTitleChanged       ActivityKind = "title_changed"
	ActivityDescriptionChanged ActivityKind = "description_changed"
	ActivityLabelsChanged      ActivityKind = "labels_changed"
	ActivityDependencyAdded    ActivityKind = "dependency_added"
	ActivityDependencyRemoved  ActivityKind = "dependency_removed"
	ActivityCommentAdded       ActivityKind = "comment_added"
	ActivityDueDateChanged     ActivityKind = "due_date_changed"
	ActivityEstimateChanged    ActivityKind = "estimate_changed"
	ActivityFieldChanged       ActivityKind = "field_changed"
)

// ActivityPayload carries the detail of a transition.
type ActivityPayload struct {
	Field   string `json:"field,omitempty"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Message string `json:"message,omitempty"`
}

// ActivityEvent is a semantic issue transition derived from two
// point-in-time snapshots (or emitted directly by the registry layer).
type ActivityEvent struct {
	ID          int64           `json:"id"`
	Kind        ActivityKind    `json:"kind"`
	IssueID     string          `json:"issue_id"`
	IssueTitle  string          `json:"issue_title,omitempty"`
	Project     string          `json:"project"`
	ProjectName string          `json:"project_name,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Actor       string          `json:"actor,omitempty"`
	Payload     ActivityPayload `json:"payload"`
}

// DefaultHistoryCapacity bounds the activity history ring buffer.
const DefaultHistoryCapacity = 100
