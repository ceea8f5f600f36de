// Package display provides output formatting for the bead-sync CLI.
//
// It supports table and JSON formats for reservations, registered
// agents (with derived liveness), and activity history.
package display

import (
	"io"
	"time"

	"github.com/0xmhha/bead-sync/pkg/bus"
	"github.com/0xmhha/bead-sync/pkg/ledger"
	"github.com/0xmhha/bead-sync/pkg/liveness"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays output in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays output as JSON.
	FormatJSON Format = "json"
)

// AgentRow is one agent prepared for display: the stored record plus
// the liveness label derived at render time.
type AgentRow struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	State      string         `json:"state"`
	Liveness   liveness.Label `json:"liveness"`
	LastSeenAt time.Time      `json:"last_seen_at"`
}

// Formatter formats and displays bead-sync data.
type Formatter interface {
	// FormatReservations formats the active reservation set.
	FormatReservations(w io.Writer, reservations []ledger.Reservation) error

	// FormatAgents formats registered agents with derived liveness.
	FormatAgents(w io.Writer, agents []AgentRow) error

	// FormatActivity formats activity history, newest first.
	FormatActivity(w io.Writer, events []bus.ActivityEvent) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool

	// Width overrides the detected terminal width. Zero means detect,
	// falling back to 80 when detection fails.
	Width int
}
