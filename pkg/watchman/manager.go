package watchman

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0xmhha/bead-sync/pkg/bus"
	"github.com/0xmhha/bead-sync/pkg/coalescer"
	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/project"
	"github.com/0xmhha/bead-sync/pkg/snapshot"
)

// pendingChange accumulates the raw signals observed for one project
// since its last flush. The coalescer only schedules the flush; the
// merged flags live here so no signal is lost to debouncing.
type pendingChange struct {
	projectKey string
	telemetry  bool
	content    bool
	removed    bool
	lastPath   string
}

// projectWatch is the per-root watch state. fallback is true while the
// watch sits on the project root waiting for .beads to appear; it is
// only touched from the event goroutine.
type projectWatch struct {
	root     string
	key      string
	name     string
	fallback bool

	fsw  *fsnotify.Watcher
	stop chan struct{}

	mu   sync.Mutex
	snap *snapshot.Snapshot
}

func (p *projectWatch) snapshot() *snapshot.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap
}

func (p *projectWatch) setSnapshot(s *snapshot.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.snap = s
}

// manager implements the Manager interface.
type manager struct {
	config   Config
	logger   logger.Logger
	reader   snapshot.Reader
	changes  *bus.ChangeBus
	activity *bus.ActivityBus
	debounce coalescer.Coalescer

	mu       sync.Mutex
	stopped  bool
	projects map[string]*projectWatch // project key -> watch
	pending  map[string]*pendingChange
	messages *fsnotify.Watcher
	msgStop  chan struct{}
}

// New creates a watch manager wired to the given reader and buses.
func New(cfg Config, reader snapshot.Reader, changes *bus.ChangeBus, activity *bus.ActivityBus, log logger.Logger) (Manager, error) {
	if cfg.DebounceInterval == 0 {
		cfg.DebounceInterval = coalescer.DefaultWindow
	}

	m := &manager{
		config:   cfg,
		logger:   log,
		reader:   reader,
		changes:  changes,
		activity: activity,
		projects: make(map[string]*projectWatch),
		pending:  make(map[string]*pendingChange),
	}
	m.debounce = coalescer.New(coalescer.Config{Window: cfg.DebounceInterval}, m.flush, log)

	if cfg.MessagesDir != "" {
		if err := m.watchMessages(cfg.MessagesDir); err != nil {
			m.debounce.Close()
			return nil, err
		}
	}

	log.Info("watch manager created",
		"debounce", cfg.DebounceInterval,
		"messages_dir", cfg.MessagesDir)

	return m, nil
}

// StartWatch implements Manager.StartWatch.
func (m *manager) StartWatch(root string) error {
	if root == "" {
		return ErrEmptyRoot
	}

	key := project.Key(root)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return ErrManagerStopped
	}
	if _, exists := m.projects[key]; exists {
		m.mu.Unlock()
		m.logger.Debug("root already watched", "root", root)
		return nil
	}
	m.mu.Unlock()

	// Baseline snapshot before events flow, so the first diff has a
	// real predecessor. A missing or unreadable file starts empty.
	baseline, err := m.reader.Read(context.Background(), root)
	if err != nil {
		m.logger.Warn("baseline snapshot read failed, starting empty",
			"root", root,
			"error", err)
		baseline = &snapshot.Snapshot{}
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	// Watch the .beads dir when it exists; otherwise watch the root so
	// its later creation re-attaches the watch.
	watchDir := filepath.Join(root, snapshot.BeadsDirName)
	fallback := false
	if _, statErr := os.Stat(watchDir); statErr != nil {
		m.logger.Warn("no .beads directory yet, watching root",
			"root", root)
		watchDir = root
		fallback = true
	}
	if addErr := fsw.Add(watchDir); addErr != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			m.logger.Error("failed to close fsnotify watcher", "error", closeErr)
		}
		return fmt.Errorf("failed to watch %s: %w", watchDir, addErr)
	}

	pw := &projectWatch{
		root:     root,
		key:      key,
		name:     project.DisplayName(root),
		fallback: fallback,
		fsw:      fsw,
		stop:     make(chan struct{}),
		snap:     baseline,
	}

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		_ = fsw.Close()
		return ErrManagerStopped
	}
	if _, exists := m.projects[key]; exists {
		// Lost a race with a concurrent StartWatch for the same root.
		m.mu.Unlock()
		_ = fsw.Close()
		m.logger.Debug("root already watched", "root", root)
		return nil
	}
	m.projects[key] = pw
	m.mu.Unlock()

	go m.processEvents(pw)

	m.logger.Info("watch started",
		"root", root,
		"dir", watchDir,
		"issues", len(baseline.Issues))

	return nil
}

// StopWatch implements Manager.StopWatch.
func (m *manager) StopWatch(root string) error {
	key := project.Key(root)

	m.mu.Lock()
	pw, exists := m.projects[key]
	if !exists {
		m.mu.Unlock()
		return ErrNotWatching
	}
	delete(m.projects, key)
	delete(m.pending, key)
	m.mu.Unlock()

	m.stopProject(pw)
	m.debounce.Cancel(root)

	m.logger.Info("watch stopped", "root", root)
	return nil
}

// StopAll implements Manager.StopAll.
func (m *manager) StopAll() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	projects := m.projects
	m.projects = make(map[string]*projectWatch)
	m.pending = make(map[string]*pendingChange)
	messages := m.messages
	msgStop := m.msgStop
	m.messages = nil
	m.mu.Unlock()

	for _, pw := range projects {
		m.stopProject(pw)
	}

	if messages != nil {
		close(msgStop)
		if err := messages.Close(); err != nil {
			m.logger.Error("failed to close messages watcher", "error", err)
		}
	}

	m.debounce.Close()
	m.logger.Info("watch manager stopped")
}

// Watching implements Manager.Watching.
func (m *manager) Watching() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	roots := make([]string, 0, len(m.projects))
	for _, pw := range m.projects {
		roots = append(roots, pw.root)
	}
	sort.Strings(roots)

	return roots
}

func (m *manager) stopProject(pw *projectWatch) {
	close(pw.stop)
	if err := pw.fsw.Close(); err != nil {
		m.logger.Error("failed to close fsnotify watcher",
			"root", pw.root,
			"error", err)
	}
}

// processEvents forwards one project's raw fsnotify events into the
// pending set.
func (m *manager) processEvents(pw *projectWatch) {
	for {
		select {
		case <-pw.stop:
			return

		case event, ok := <-pw.fsw.Events:
			if !ok {
				return
			}
			m.handleEvent(pw, event)

		case err, ok := <-pw.fsw.Errors:
			if !ok {
				return
			}
			m.logger.Error("fsnotify error",
				"root", pw.root,
				"error", err)
		}
	}
}

// handleEvent classifies one raw event and queues a debounced flush.
func (m *manager) handleEvent(pw *projectWatch, event fsnotify.Event) {
	base := filepath.Base(event.Name)

	if pw.fallback && base == snapshot.BeadsDirName && event.Op&fsnotify.Create != 0 {
		m.attachBeadsDir(pw, event.Name)
		return
	}

	var content, telemetry bool
	switch {
	case snapshotFiles[base]:
		content = true
	case telemetryFiles[base]:
		telemetry = true
	default:
		return
	}

	removed := content && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	m.merge(pw.root, pw.key, event.Name, content, telemetry, removed)
}

// attachBeadsDir moves a fallback watch from the project root to a
// freshly created .beads directory. fsnotify does not recurse, so the
// root watch alone would never see the snapshot file. The forced
// content flush covers a snapshot written before the watch attached.
func (m *manager) attachBeadsDir(pw *projectWatch, dir string) {
	if err := pw.fsw.Add(dir); err != nil {
		m.logger.Error("failed to watch new .beads directory",
			"root", pw.root,
			"error", err)
		return
	}
	if err := pw.fsw.Remove(pw.root); err != nil {
		m.logger.Debug("failed to drop root watch",
			"root", pw.root,
			"error", err)
	}
	pw.fallback = false

	m.logger.Info("attached to .beads directory", "root", pw.root)
	m.merge(pw.root, pw.key, dir, true, false, false)
}

// merge accumulates flags for the project and (re)schedules its flush.
// The pending map is keyed by the normalized root; the project key the
// resulting event carries may differ (empty for the global mailbox).
func (m *manager) merge(root, projectKey, path string, content, telemetry, removed bool) {
	key := project.Key(root)

	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	p, exists := m.pending[key]
	if !exists {
		p = &pendingChange{projectKey: projectKey}
		m.pending[key] = p
	}
	p.content = p.content || content
	p.telemetry = p.telemetry || telemetry
	p.removed = p.removed || removed
	p.lastPath = path
	m.mu.Unlock()

	m.debounce.Queue(root, nil)
}

// flush handles one debounced window for one project. It runs on a
// timer goroutine; a panic here must never take the process down.
func (m *manager) flush(root string, _ interface{}) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("recovered from flush panic",
				"root", root,
				"panic", r)
		}
	}()

	key := project.Key(root)

	m.mu.Lock()
	p := m.pending[key]
	delete(m.pending, key)
	pw := m.projects[key]
	m.mu.Unlock()

	if p == nil {
		return
	}

	now := time.Now()

	// Content beats telemetry when both arrived in one window: the
	// re-read covers whatever the telemetry touch implied.
	switch {
	case p.removed:
		m.changes.EmitChange(bus.ChangeEvent{
			Project: p.projectKey,
			Path:    p.lastPath,
			Kind:    bus.ChangeRemoved,
			At:      now,
		})
	case p.content:
		m.changes.EmitChange(bus.ChangeEvent{
			Project: p.projectKey,
			Path:    p.lastPath,
			Kind:    bus.ChangeContent,
			At:      now,
		})
	case p.telemetry:
		m.changes.EmitChange(bus.ChangeEvent{
			Project: p.projectKey,
			Path:    p.lastPath,
			Kind:    bus.ChangeTelemetry,
			At:      now,
		})
		return
	default:
		return
	}

	if pw == nil {
		// Stopped mid-window, or a watch with no snapshot to diff.
		return
	}

	m.rediff(pw)
}

// rediff re-reads the project snapshot and emits one activity event per
// semantic transition. On read failure the previous snapshot is kept so
// the next successful read diffs against known-good state.
func (m *manager) rediff(pw *projectWatch) {
	curr, err := m.reader.Read(context.Background(), pw.root)
	if err != nil {
		m.logger.Warn("snapshot re-read failed, keeping previous",
			"root", pw.root,
			"error", err)
		return
	}

	events := snapshot.Diff(pw.snapshot(), curr, pw.key, pw.name)
	pw.setSnapshot(curr)

	for _, ev := range events {
		m.activity.EmitActivity(ev)
	}

	if len(events) > 0 {
		m.logger.Debug("activity emitted",
			"root", pw.root,
			"events", len(events))
	}
}

// watchMessages watches the global mailbox directory. Its changes are
// telemetry for everyone; no project snapshot is involved.
func (m *manager) watchMessages(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create messages directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return fmt.Errorf("failed to watch messages directory: %w", err)
	}

	m.messages = fsw
	m.msgStop = make(chan struct{})

	go func() {
		for {
			select {
			case <-m.msgStop:
				return

			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				m.merge(dir, "", event.Name, false, true, false)

			case watchErr, ok := <-fsw.Errors:
				if !ok {
					return
				}
				m.logger.Error("fsnotify error",
					"dir", dir,
					"error", watchErr)
			}
		}
	}()

	return nil
}
