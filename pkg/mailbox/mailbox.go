// Package mailbox resolves unacknowledged required messages for agents
// and issues.
//
// Messages live as one JSON file per message in a shared directory; the
// tracker and agents write them, bead-sync only reads. The ledger's
// status operation and the session-state classifier consult this package
// to find pending required acknowledgements.
package mailbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xmhha/bead-sync/pkg/logger"
)

// Message is a single mailbox entry.
type Message struct {
	ID         string     `json:"id"`
	ToAgent    string     `json:"to_agent,omitempty"`
	IssueID    string     `json:"issue_id,omitempty"`
	Sender     string     `json:"sender,omitempty"`
	Body       string     `json:"body,omitempty"`
	RequireAck bool       `json:"require_ack,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	AckedAt    *time.Time `json:"acked_at,omitempty"`
}

// Filter selects messages by recipient and/or issue. Zero values match
// everything.
type Filter struct {
	AgentID string
	IssueID string
}

// Reader resolves pending required-acknowledgement messages.
type Reader interface {
	// Unacked returns messages that require acknowledgement, have not
	// been acknowledged, and match the filter.
	Unacked(filter Filter) ([]Message, error)
}

// dirReader implements Reader over a directory of message files.
type dirReader struct {
	dir    string
	logger logger.Logger
}

// NewReader creates a mailbox reader over the given directory.
// A missing directory means no messages, not an error.
func NewReader(dir string, log logger.Logger) Reader {
	return &dirReader{
		dir:    dir,
		logger: log,
	}
}

// Unacked implements Reader.Unacked.
func (r *dirReader) Unacked(filter Filter) ([]Message, error) {
	if r.dir == "" {
		return nil, nil
	}

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []Message
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		path := filepath.Join(r.dir, entry.Name())
		data, readErr := os.ReadFile(path) // #nosec G304 -- path is inside the configured mailbox dir
		if readErr != nil {
			r.logger.Warn("failed to read message file",
				"path", path,
				"error", readErr)
			continue
		}

		var msg Message
		if unmarshalErr := json.Unmarshal(data, &msg); unmarshalErr != nil {
			r.logger.Warn("skipping malformed message file",
				"path", path,
				"error", unmarshalErr)
			continue
		}

		if !msg.RequireAck || msg.AckedAt != nil {
			continue
		}
		if filter.AgentID != "" && msg.ToAgent != filter.AgentID {
			continue
		}
		if filter.IssueID != "" && msg.IssueID != filter.IssueID {
			continue
		}

		out = append(out, msg)
	}

	return out, nil
}
