package bus

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/0xmhha/bead-sync/pkg/logger"
)

// HistoryConfig configures the activity bus's bounded history.
type HistoryConfig struct {
	// Capacity bounds the ring buffer. Default: DefaultHistoryCapacity.
	Capacity int

	// Path is the JSON file the ring is persisted to on every emission.
	// Empty disables persistence.
	Path string
}

// ActivityBus carries semantic issue-activity events and keeps a bounded,
// newest-first history that survives restarts.
type ActivityBus struct {
	*Bus

	config HistoryConfig
	logger logger.Logger

	// history is guarded by the embedded bus mutex; newest first.
	history []ActivityEvent
}

// NewActivityBus creates an activity bus.
func NewActivityBus(cfg HistoryConfig, log logger.Logger) *ActivityBus {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultHistoryCapacity
	}

	return &ActivityBus{
		Bus:    NewBus(log),
		config: cfg,
		logger: log,
	}
}

// EmitActivity stamps the bus id onto the event, records it in the
// history ring, persists the ring, and delivers the event.
//
// Persistence is fire-and-forget: a failed write is logged and the
// emission proceeds regardless.
func (b *ActivityBus) EmitActivity(ev ActivityEvent) int64 {
	b.mu.Lock()
	b.nextID++
	ev.ID = b.nextID
	ev.Project = normalizeKey(ev.Project)
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	// Newest first, bounded.
	b.history = append([]ActivityEvent{ev}, b.history...)
	if len(b.history) > b.config.Capacity {
		b.history = b.history[:b.config.Capacity]
	}
	snapshot := make([]ActivityEvent, len(b.history))
	copy(snapshot, b.history)
	b.mu.Unlock()

	if err := b.persist(snapshot); err != nil {
		b.logger.Warn("failed to persist activity history", "error", err)
	}

	b.dispatch(Delivery{
		ID:      ev.ID,
		Type:    FrameTypeActivity,
		Project: ev.Project,
		Data:    ev,
	})

	return ev.ID
}

// History returns the buffered events, newest first, optionally filtered
// by project identity (empty returns everything).
func (b *ActivityBus) History(projectKey string) []ActivityEvent {
	key := normalizeKey(projectKey)

	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ActivityEvent, 0, len(b.history))
	for _, ev := range b.history {
		if key == "" || ev.Project == key {
			out = append(out, ev)
		}
	}
	return out
}

// LoadHistory restores the ring from the history file, if one exists.
// Call once at startup, before emitting.
func (b *ActivityBus) LoadHistory() error {
	if b.config.Path == "" {
		return nil
	}

	data, err := os.ReadFile(b.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read activity history: %w", err)
	}

	var events []ActivityEvent
	if err := json.Unmarshal(data, &events); err != nil {
		return fmt.Errorf("failed to parse activity history: %w", err)
	}

	if len(events) > b.config.Capacity {
		events = events[:b.config.Capacity]
	}

	b.mu.Lock()
	b.history = events
	// Resume ids after the highest persisted one so a restart never
	// reuses an id a client has already seen.
	for _, ev := range events {
		if ev.ID > b.nextID {
			b.nextID = ev.ID
		}
	}
	b.mu.Unlock()

	b.logger.Info("activity history restored",
		"events", len(events),
		"path", b.config.Path)

	return nil
}

// persist rewrites the history file wholesale via temp-file-then-rename.
func (b *ActivityBus) persist(events []ActivityEvent) error {
	if b.config.Path == "" {
		return nil
	}

	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("failed to encode activity history: %w", err)
	}

	dir := filepath.Dir(b.config.Path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".activity-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp history file: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write activity history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp history file: %w", err)
	}

	if err := os.Rename(tmp.Name(), b.config.Path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace activity history: %w", err)
	}

	return nil
}
