package watchman

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xmhha/bead-sync/pkg/bus"
	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/project"
	"github.com/0xmhha/bead-sync/pkg/snapshot"
)

const eventWait = 5 * time.Second

type testHarness struct {
	mgr      Manager
	changes  *bus.ChangeBus
	activity *bus.ActivityBus
	changeCh chan bus.Delivery
	actCh    chan bus.Delivery
}

func newTestHarness(t *testing.T, cfg Config) *testHarness {
	t.Helper()

	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = 50 * time.Millisecond
	}

	log := logger.Noop()
	reader := snapshot.NewReader(snapshot.ReaderConfig{}, log)
	changes := bus.NewChangeBus(log)
	activity := bus.NewActivityBus(bus.HistoryConfig{
		Capacity: 100,
		Path:     filepath.Join(t.TempDir(), "activity.json"),
	}, log)

	h := &testHarness{
		changes:  changes,
		activity: activity,
		changeCh: make(chan bus.Delivery, 64),
		actCh:    make(chan bus.Delivery, 64),
	}
	changes.Subscribe("", func(d bus.Delivery) { h.changeCh <- d })
	activity.Subscribe("", func(d bus.Delivery) { h.actCh <- d })

	mgr, err := New(cfg, reader, changes, activity, log)
	require.NoError(t, err)
	h.mgr = mgr

	t.Cleanup(mgr.StopAll)
	return h
}

func writeIssues(t *testing.T, root string, lines ...string) {
	t.Helper()

	dir := filepath.Join(root, snapshot.BeadsDirName)
	require.NoError(t, os.MkdirAll(dir, 0700))

	var content string
	for _, line := range lines {
		content += line + "\n"
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, snapshot.SnapshotFileName), []byte(content), 0600))
}

func issueLine(id, title, status string) string {
	return fmt.Sprintf(`{"id":%q,"title":%q,"status":%q,"priority":2}`, id, title, status)
}

func waitChange(t *testing.T, h *testHarness, want bus.ChangeKind) bus.ChangeEvent {
	t.Helper()

	deadline := time.After(eventWait)
	for {
		select {
		case d := <-h.changeCh:
			ev, ok := d.Data.(bus.ChangeEvent)
			require.True(t, ok, "change bus delivered %T", d.Data)
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s change event", want)
		}
	}
}

func waitActivity(t *testing.T, h *testHarness, want bus.ActivityKind) bus.ActivityEvent {
	t.Helper()

	deadline := time.After(eventWait)
	for {
		select {
		case d := <-h.actCh:
			ev, ok := d.Data.(bus.ActivityEvent)
			require.True(t, ok, "activity bus delivered %T", d.Data)
			if ev.Kind == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s activity event", want)
		}
	}
}

func TestStartWatchIdempotent(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root)

	require.NoError(t, h.mgr.StartWatch(root))
	require.NoError(t, h.mgr.StartWatch(root))

	// A different spelling of the same directory is the same watch.
	require.NoError(t, h.mgr.StartWatch(root+string(os.PathSeparator)))

	assert.Len(t, h.mgr.Watching(), 1)
}

func TestStartWatchConcurrentSameRoot(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, h.mgr.StartWatch(root))
		}()
	}
	wg.Wait()

	assert.Len(t, h.mgr.Watching(), 1)
	require.NoError(t, h.mgr.StopWatch(root))
}

func TestLateBeadsDirStillWatched(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()

	// No .beads directory yet: the watch falls back to the root.
	require.NoError(t, h.mgr.StartWatch(root))

	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	change := waitChange(t, h, bus.ChangeContent)
	assert.Equal(t, project.Key(root), change.Project)

	act := waitActivity(t, h, bus.ActivityCreated)
	assert.Equal(t, "bd-1", act.IssueID)

	// The watch must now follow the directory itself.
	writeIssues(t, root, issueLine("bd-1", "first issue", "closed"))

	act = waitActivity(t, h, bus.ActivityClosed)
	assert.Equal(t, "bd-1", act.IssueID)
}

func TestStartWatchEmptyRoot(t *testing.T) {
	h := newTestHarness(t, Config{})
	assert.ErrorIs(t, h.mgr.StartWatch(""), ErrEmptyRoot)
}

func TestContentChangeEmitsCreatedActivity(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	require.NoError(t, h.mgr.StartWatch(root))

	// Appending a new issue after the baseline read.
	writeIssues(t, root,
		issueLine("bd-1", "first issue", "open"),
		issueLine("bd-2", "second issue", "open"))

	change := waitChange(t, h, bus.ChangeContent)
	assert.Equal(t, project.Key(root), change.Project)

	act := waitActivity(t, h, bus.ActivityCreated)
	assert.Equal(t, "bd-2", act.IssueID)
	assert.Equal(t, "second issue", act.IssueTitle)
}

func TestStatusTransitionEmitsClosed(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	require.NoError(t, h.mgr.StartWatch(root))

	writeIssues(t, root, issueLine("bd-1", "first issue", "closed"))

	act := waitActivity(t, h, bus.ActivityClosed)
	assert.Equal(t, "bd-1", act.IssueID)
}

func TestTelemetryTouchSkipsReread(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	require.NoError(t, h.mgr.StartWatch(root))

	marker := filepath.Join(root, snapshot.BeadsDirName, "last_touch")
	require.NoError(t, os.WriteFile(marker, nil, 0600))

	change := waitChange(t, h, bus.ChangeTelemetry)
	assert.Equal(t, project.Key(root), change.Project)

	// No activity may follow a pure telemetry touch.
	select {
	case d := <-h.actCh:
		t.Fatalf("unexpected activity event: %+v", d.Data)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestSnapshotRemovalEmitsRemovedKind(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	require.NoError(t, h.mgr.StartWatch(root))

	require.NoError(t, os.Remove(filepath.Join(root, snapshot.BeadsDirName, snapshot.SnapshotFileName)))

	waitChange(t, h, bus.ChangeRemoved)

	// Disappearance is not deletion: no activity events for the
	// vanished issues.
	select {
	case d := <-h.actCh:
		t.Fatalf("unexpected activity event: %+v", d.Data)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestBurstCoalescesToOneChangeEvent(t *testing.T) {
	h := newTestHarness(t, Config{DebounceInterval: 200 * time.Millisecond})
	root := t.TempDir()
	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	require.NoError(t, h.mgr.StartWatch(root))

	// Rapid rewrites inside one window.
	for i := 0; i < 5; i++ {
		writeIssues(t, root,
			issueLine("bd-1", "first issue", "open"),
			issueLine("bd-2", "second issue", "open"))
	}

	waitChange(t, h, bus.ChangeContent)

	// The window must produce exactly one content change.
	select {
	case d := <-h.changeCh:
		ev := d.Data.(bus.ChangeEvent)
		if ev.Kind == bus.ChangeContent {
			t.Fatalf("burst produced a second content change: %+v", ev)
		}
	case <-time.After(400 * time.Millisecond):
	}
}

func TestStopWatch(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root, issueLine("bd-1", "first issue", "open"))

	require.NoError(t, h.mgr.StartWatch(root))
	require.NoError(t, h.mgr.StopWatch(root))
	assert.Empty(t, h.mgr.Watching())

	assert.ErrorIs(t, h.mgr.StopWatch(root), ErrNotWatching)

	// Events after stop are ignored.
	writeIssues(t, root, issueLine("bd-1", "first issue", "closed"))
	select {
	case d := <-h.actCh:
		t.Fatalf("unexpected activity after stop: %+v", d.Data)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestStopAllRejectsNewWatches(t *testing.T) {
	h := newTestHarness(t, Config{})
	root := t.TempDir()
	writeIssues(t, root)

	require.NoError(t, h.mgr.StartWatch(root))
	h.mgr.StopAll()

	assert.ErrorIs(t, h.mgr.StartWatch(root), ErrManagerStopped)
	assert.Empty(t, h.mgr.Watching())
}

func TestMessagesDirReportsTelemetry(t *testing.T) {
	messages := filepath.Join(t.TempDir(), "messages")
	h := newTestHarness(t, Config{MessagesDir: messages})

	require.NoError(t, os.WriteFile(filepath.Join(messages, "m-1.json"), []byte(`{}`), 0600))

	change := waitChange(t, h, bus.ChangeTelemetry)
	assert.Empty(t, change.Project)
}

func TestWatchingListsRoots(t *testing.T) {
	h := newTestHarness(t, Config{})
	rootA := t.TempDir()
	rootB := t.TempDir()
	writeIssues(t, rootA)
	writeIssues(t, rootB)

	require.NoError(t, h.mgr.StartWatch(rootA))
	require.NoError(t, h.mgr.StartWatch(rootB))

	assert.ElementsMatch(t, []string{rootA, rootB}, h.mgr.Watching())
}
