package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/0xmhha/bead-sync/pkg/bus"
	"github.com/0xmhha/bead-sync/pkg/ledger"
)

const timeLayout = "2006-01-02 15:04:05"

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatReservations implements Formatter.FormatReservations.
func (f *tableFormatter) FormatReservations(w io.Writer, reservations []ledger.Reservation) error {
	if err := writeHeader(w, "Active Reservations", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Scope", "Agent", "Issue", "State", "Expires"}

	rows := make([][]string, len(reservations))
	for i, r := range reservations {
		rows[i] = []string{
			truncate(r.Scope, 40),
			truncate(r.AgentID, 24),
			r.IssueID,
			string(r.State),
			r.ExpiresAt.Format(timeLayout),
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatAgents implements Formatter.FormatAgents.
func (f *tableFormatter) FormatAgents(w io.Writer, agents []AgentRow) error {
	if err := writeHeader(w, "Registered Agents", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Name", "State", "Liveness", "Last Seen", "ID"}

	rows := make([][]string, len(agents))
	for i, a := range agents {
		rows[i] = []string{
			truncate(a.Name, 24),
			a.State,
			string(a.Liveness),
			a.LastSeenAt.Format(timeLayout),
			a.ID,
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatActivity implements Formatter.FormatActivity.
func (f *tableFormatter) FormatActivity(w io.Writer, events []bus.ActivityEvent) error {
	if err := writeHeader(w, "Recent Activity", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Time", "Project", "Issue", "Kind", "Actor", "Detail"}

	// Keep the detail column inside the terminal width; the fixed
	// columns plus separators take roughly half of a narrow screen.
	detailWidth := f.config.Width - 60
	if detailWidth < 20 {
		detailWidth = 20
	}

	rows := make([][]string, len(events))
	for i, ev := range events {
		rows[i] = []string{
			ev.Timestamp.Format(timeLayout),
			truncate(ev.ProjectName, 16),
			ev.IssueID,
			string(ev.Kind),
			truncate(ev.Actor, 16),
			truncate(describePayload(ev.Payload), detailWidth),
		}
	}

	return f.writeTable(w, header, rows)
}

// describePayload renders the payload as a single detail cell.
func describePayload(p bus.ActivityPayload) string {
	switch {
	case p.Message != "":
		return p.Message
	case p.Field != "" && (p.From != "" || p.To != ""):
		return fmt.Sprintf("%s: %s -> %s", p.Field, p.From, p.To)
	case p.Field != "":
		return p.Field
	default:
		return ""
	}
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	// Write header.
	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	// Write separator.
	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	// Write rows.
	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	// Add spacing.
	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	for i, cell := range cells {
		if i > 0 {
			if f.config.Compact {
				if _, err := fmt.Fprint(w, " "); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprint(w, "  "); err != nil {
					return err
				}
			}
		}

		format := fmt.Sprintf("%%-%ds", widths[i])
		if _, err := fmt.Fprintf(w, format, cell); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}
