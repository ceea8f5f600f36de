// Package watchman ties filesystem watching to the event buses.
//
// One manager watches any number of workspace roots. Raw fsnotify
// events for a root's .beads/ files are merged and debounced through
// the coalescer; each flush emits one change event, and for content
// changes re-reads the issue snapshot and diffs it against the
// previously stored one to produce semantic activity events.
//
// Example usage:
//
//	mgr, err := watchman.New(watchman.Config{}, reader, changes, activity, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mgr.StopAll()
//
//	if err := mgr.StartWatch("/work/project-a"); err != nil {
//	    log.Fatal(err)
//	}
package watchman

import "time"

// Manager watches workspace roots and feeds the buses.
type Manager interface {
	// StartWatch begins watching a workspace root. Idempotent: watching
	// an already-watched root (under any spelling) is a no-op. The
	// baseline issue snapshot is read before events flow; a missing
	// snapshot file is tolerated and treated as empty.
	StartWatch(root string) error

	// StopWatch stops watching a root and discards its pending events.
	//
	// Returns ErrNotWatching if the root is not watched.
	StopWatch(root string) error

	// StopAll stops every watch and releases all resources.
	StopAll()

	// Watching returns the roots currently watched, as originally given.
	Watching() []string
}

// Config contains watch manager configuration.
type Config struct {
	// DebounceInterval is the quiet window before a burst of raw events
	// is flushed. Default: 500ms.
	DebounceInterval time.Duration

	// MessagesDir is the global agent mailbox directory. When set, the
	// manager also watches it and reports its changes as telemetry.
	MessagesDir string
}

// Snapshot-bearing file names inside .beads/. A change to one of these
// triggers a re-read and diff.
var snapshotFiles = map[string]bool{
	"issues.jsonl":     true,
	"issues.jsonl.new": true,
}

// Telemetry file names inside .beads/. A touch signals activity without
// changing snapshot content.
var telemetryFiles = map[string]bool{
	"beads.db":     true,
	"beads.db-wal": true,
	"last_touch":   true,
}
