// Package coalescer collapses bursts of events for the same project into
// a single delayed callback.
//
// Filesystem watch events arrive in noisy, unordered batches. The
// coalescer gives the rest of the pipeline a calmer contract: queue as
// often as you like, and after a quiet debounce window exactly one flush
// fires per project, carrying only the most recent payload
// (last-write-wins, not accumulation).
package coalescer

import "time"

// FlushFunc is invoked once per elapsed debounce window per project.
//
// Failures inside the callback are the callback's responsibility; the
// coalescer performs no retries.
type FlushFunc func(root string, payload interface{})

// Coalescer schedules debounced flushes keyed by project root.
type Coalescer interface {
	// Queue schedules a flush of payload for the project after the
	// debounce window. A call for the same project before the window
	// elapses replaces the pending payload and restarts the timer.
	Queue(root string, payload interface{})

	// Cancel discards any pending flush for the project without firing it.
	Cancel(root string)

	// CancelAll discards every pending flush without firing them.
	// Used on shutdown.
	CancelAll()

	// Close cancels all pending flushes and rejects further Queue calls.
	Close()
}

// Config contains coalescer configuration.
type Config struct {
	// Window is the debounce interval. Default: 500ms.
	Window time.Duration
}

// DefaultWindow is used when Config.Window is zero.
const DefaultWindow = 500 * time.Millisecond
