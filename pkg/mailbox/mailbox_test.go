package mailbox

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/bead-sync/pkg/logger"
)

func writeMessage(t *testing.T, dir string, msg Message) {
	t.Helper()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, msg.ID+".json"), data, 0600))
}

func TestUnacked(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	writeMessage(t, dir, Message{ID: "m1", ToAgent: "agent-a", IssueID: "bd-1", RequireAck: true})
	writeMessage(t, dir, Message{ID: "m2", ToAgent: "agent-a", IssueID: "bd-1", RequireAck: true, AckedAt: &now})
	writeMessage(t, dir, Message{ID: "m3", ToAgent: "agent-b", IssueID: "bd-2", RequireAck: true})
	writeMessage(t, dir, Message{ID: "m4", ToAgent: "agent-a", IssueID: "bd-1"}) // no ack required

	r := NewReader(dir, logger.Noop())

	all, err := r.Unacked(Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forAgent, err := r.Unacked(Filter{AgentID: "agent-a"})
	require.NoError(t, err)
	require.Len(t, forAgent, 1)
	assert.Equal(t, "m1", forAgent[0].ID)

	forIssue, err := r.Unacked(Filter{IssueID: "bd-2"})
	require.NoError(t, err)
	require.Len(t, forIssue, 1)
	assert.Equal(t, "m3", forIssue[0].ID)
}

func TestUnackedMissingDir(t *testing.T) {
	r := NewReader(filepath.Join(t.TempDir(), "absent"), logger.Noop())

	msgs, err := r.Unacked(Filter{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUnackedEmptyDirConfigured(t *testing.T) {
	r := NewReader("", logger.Noop())

	msgs, err := r.Unacked(Filter{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestUnackedSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{nope"), 0600))
	writeMessage(t, dir, Message{ID: "m1", RequireAck: true})

	r := NewReader(dir, logger.Noop())

	msgs, err := r.Unacked(Filter{})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}
