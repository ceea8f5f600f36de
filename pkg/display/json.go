package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/bead-sync/pkg/bus"
	"github.com/0xmhha/bead-sync/pkg/ledger"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

func (f *jsonFormatter) encode(w io.Writer, v interface{}) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}

// FormatReservations implements Formatter.FormatReservations.
func (f *jsonFormatter) FormatReservations(w io.Writer, reservations []ledger.Reservation) error {
	if reservations == nil {
		reservations = []ledger.Reservation{}
	}
	return f.encode(w, reservations)
}

// FormatAgents implements Formatter.FormatAgents.
func (f *jsonFormatter) FormatAgents(w io.Writer, agents []AgentRow) error {
	if agents == nil {
		agents = []AgentRow{}
	}
	return f.encode(w, agents)
}

// FormatActivity implements Formatter.FormatActivity.
func (f *jsonFormatter) FormatActivity(w io.Writer, events []bus.ActivityEvent) error {
	if events == nil {
		events = []bus.ActivityEvent{}
	}
	return f.encode(w, events)
}
