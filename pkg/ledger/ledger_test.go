package ledger

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/mailbox"
)

// testClock is a settable clock for driving expiry without sleeping.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func newTestLedger(t *testing.T, mb mailbox.Reader) (Ledger, *testClock, string) {
	t.Helper()

	dir := t.TempDir()
	clock := &testClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}

	l, err := New(Config{Dir: dir, Clock: clock.Now}, mb, logger.Noop())
	require.NoError(t, err)

	return l, clock, dir
}

func readHistory(t *testing.T, dir string) []historyEntry {
	t.Helper()

	f, err := os.Open(filepath.Join(dir, HistoryFileName))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	defer f.Close()

	var entries []historyEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e historyEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())

	return entries
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, nil, logger.Noop())
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestReserveAndStatus(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	r, err := l.Reserve("agent-1", "src/lib", "bd-7", 30, false)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, StateActive, r.State)
	assert.Equal(t, "bd-7", r.IssueID)
	assert.Equal(t, 30*time.Minute, r.ExpiresAt.Sub(r.CreatedAt))

	report, err := l.Status(Filter{})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)
	assert.Equal(t, "agent-1", report.Active[0].AgentID)
}

func TestReserveConflictNamesHolder(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	_, err = l.Reserve("agent-2", "src/lib", "", 30, false)
	require.Error(t, err)
	assert.Equal(t, CodeConflict, CodeOf(err))
	assert.Equal(t, "agent-1", HolderOf(err))
}

func TestReserveConflictOnPartialOverlap(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	// A descendant path overlaps the ancestor claim.
	_, err = l.Reserve("agent-2", "src/lib/parser.ts", "", 30, false)
	require.Error(t, err)
	assert.Equal(t, CodeConflict, CodeOf(err))

	// Disjoint scopes coexist.
	_, err = l.Reserve("agent-2", "src/cli", "", 30, false)
	require.NoError(t, err)
}

func TestReserveSelfConflict(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	// Even the holder cannot double-reserve; release first.
	_, err = l.Reserve("agent-1", "src/lib", "", 30, false)
	assert.Equal(t, CodeConflict, CodeOf(err))
}

func TestReserveTTLBounds(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	for _, ttl := range []int{0, 4, 1441, -1} {
		_, err := l.Reserve("agent-1", "src/lib", "", ttl, false)
		assert.Equal(t, CodeInvalidTTL, CodeOf(err), "ttl=%d", ttl)
	}

	for _, ttl := range []int{5, 1440} {
		_, err := l.Reserve("agent-1", "src/lib", "", ttl, false)
		require.NoError(t, err, "ttl=%d", ttl)
		require.NoError(t, l.Release("agent-1", "src/lib"))
	}
}

func TestReserveValidation(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("", "src/lib", "", 30, false)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))

	_, err = l.Reserve("agent-1", "", "", 30, false)
	assert.Equal(t, CodeInvalidArgument, CodeOf(err))
}

func TestExpiryRequiresTakeover(t *testing.T) {
	l, clock, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 5, false)
	require.NoError(t, err)

	clock.Advance(6 * time.Minute)

	// A plain re-reserve sees the stale claim and refuses.
	_, err = l.Reserve("agent-2", "src/lib", "", 30, false)
	require.Error(t, err)
	assert.Equal(t, CodeStaleReservation, CodeOf(err))
	assert.Equal(t, "agent-1", HolderOf(err))

	// An explicit takeover claims it.
	r, err := l.Reserve("agent-2", "src/lib", "", 30, true)
	require.NoError(t, err)
	assert.Equal(t, "agent-2", r.AgentID)

	report, err := l.Status(Filter{})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)
	assert.Equal(t, "agent-2", report.Active[0].AgentID)
}

func TestExpiredEntryHiddenFromStatus(t *testing.T) {
	l, clock, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 5, false)
	require.NoError(t, err)

	clock.Advance(5 * time.Minute) // expiry boundary is inclusive

	report, err := l.Status(Filter{})
	require.NoError(t, err)
	assert.Empty(t, report.Active)
}

func TestExpiredScopeDoesNotBlockDisjointReserve(t *testing.T) {
	l, clock, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 5, false)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	// Only an exact scope match trips the stale check.
	_, err = l.Reserve("agent-2", "src/cli", "", 30, false)
	require.NoError(t, err)
}

func TestReleaseOwnerOnly(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	err = l.Release("agent-2", "src/lib")
	require.Error(t, err)
	assert.Equal(t, CodeNotOwner, CodeOf(err))
	assert.Equal(t, "agent-1", HolderOf(err))

	// The failed release must not have mutated anything.
	report, err := l.Status(Filter{})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)

	require.NoError(t, l.Release("agent-1", "src/lib"))

	report, err = l.Status(Filter{})
	require.NoError(t, err)
	assert.Empty(t, report.Active)
}

func TestReleaseNotFound(t *testing.T) {
	l, clock, _ := newTestLedger(t, nil)

	err := l.Release("agent-1", "src/lib")
	assert.Equal(t, CodeNotFound, CodeOf(err))

	_, err = l.Reserve("agent-1", "src/lib", "", 5, false)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	// An expired claim is no longer releasable.
	err = l.Release("agent-1", "src/lib")
	assert.Equal(t, CodeNotFound, CodeOf(err))
}

func TestReleaseNormalizesScope(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	require.NoError(t, l.Release("agent-1", "SRC/Lib/"))
}

func TestStatusFilter(t *testing.T) {
	l, _, _ := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "bd-1", 30, false)
	require.NoError(t, err)
	_, err = l.Reserve("agent-2", "src/cli", "bd-2", 30, false)
	require.NoError(t, err)

	report, err := l.Status(Filter{AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)
	assert.Equal(t, "src/lib", report.Active[0].Scope)

	report, err = l.Status(Filter{IssueID: "bd-2"})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)
	assert.Equal(t, "agent-2", report.Active[0].AgentID)

	report, err = l.Status(Filter{AgentID: "agent-1", IssueID: "bd-2"})
	require.NoError(t, err)
	assert.Empty(t, report.Active)
}

func TestHistoryLog(t *testing.T) {
	l, clock, dir := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)
	require.NoError(t, l.Release("agent-1", "src/lib"))

	_, err = l.Reserve("agent-1", "src/cli", "", 5, false)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)
	_, err = l.Status(Filter{})
	require.NoError(t, err)

	entries := readHistory(t, dir)
	require.Len(t, entries, 4)
	assert.Equal(t, "created", entries[0].Event)
	assert.Equal(t, "released", entries[1].Event)
	assert.Equal(t, StateReleased, entries[1].Reservation.State)
	require.NotNil(t, entries[1].Reservation.ReleasedAt)
	assert.Equal(t, "created", entries[2].Event)
	assert.Equal(t, "expired", entries[3].Event)
	assert.Equal(t, "src/cli", entries[3].Reservation.Scope)
}

func TestExpiryLoggedOnce(t *testing.T) {
	l, clock, dir := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 5, false)
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	// Multiple reads after expiry must not duplicate the audit record.
	for i := 0; i < 3; i++ {
		_, err = l.Status(Filter{})
		require.NoError(t, err)
	}

	var expired int
	for _, e := range readHistory(t, dir) {
		if e.Event == "expired" {
			expired++
		}
	}
	assert.Equal(t, 1, expired)
}

func TestPersistenceAcrossInstances(t *testing.T) {
	l, clock, dir := newTestLedger(t, nil)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	// A second process opening the same directory sees the claim.
	l2, err := New(Config{Dir: dir, Clock: clock.Now}, nil, logger.Noop())
	require.NoError(t, err)

	_, err = l2.Reserve("agent-2", "src/lib", "", 30, false)
	assert.Equal(t, CodeConflict, CodeOf(err))

	report, err := l2.Status(Filter{})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)
}

func TestCorruptActiveFile(t *testing.T) {
	l, _, dir := newTestLedger(t, nil)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ActiveFileName), []byte("{not json"), 0600))

	_, err := l.Status(Filter{})
	assert.Equal(t, CodeInternal, CodeOf(err))
}

// stubMailbox returns canned messages for Status tests.
type stubMailbox struct {
	messages []mailbox.Message
	err      error
	gotAgent string
}

func (s *stubMailbox) Unacked(f mailbox.Filter) ([]mailbox.Message, error) {
	s.gotAgent = f.AgentID
	return s.messages, s.err
}

func TestStatusIncludesPendingAcks(t *testing.T) {
	mb := &stubMailbox{messages: []mailbox.Message{
		{ID: "m-1", ToAgent: "agent-1", Body: "please review", RequireAck: true},
	}}
	l, _, _ := newTestLedger(t, mb)

	report, err := l.Status(Filter{AgentID: "agent-1"})
	require.NoError(t, err)
	require.Len(t, report.PendingAcks, 1)
	assert.Equal(t, "m-1", report.PendingAcks[0].ID)
	assert.Equal(t, "agent-1", mb.gotAgent)
}

func TestStatusToleratesMailboxFailure(t *testing.T) {
	mb := &stubMailbox{err: os.ErrPermission}
	l, _, _ := newTestLedger(t, mb)

	_, err := l.Reserve("agent-1", "src/lib", "", 30, false)
	require.NoError(t, err)

	report, err := l.Status(Filter{})
	require.NoError(t, err)
	require.Len(t, report.Active, 1)
	assert.Empty(t, report.PendingAcks)
}
