package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/snapshot"
)

func setupTestRegistry(t *testing.T) Registry {
	t.Helper()

	reg, err := New(Config{
		DBPath: filepath.Join(t.TempDir(), "agents.db"),
	}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Cleanup(func() {
		if closeErr := reg.Close(); closeErr != nil {
			t.Errorf("Close() error = %v", closeErr)
		}
	})

	return reg
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "agents.db")

	reg, err := New(Config{
		DBPath: dbPath,
	}, logger.Noop())

	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if closeErr := reg.Close(); closeErr != nil {
		t.Errorf("Close() error = %v", closeErr)
	}

	// Verify database file was created.
	if _, statErr := os.Stat(dbPath); statErr != nil {
		t.Errorf("Database file not created: %v", statErr)
	}
}

func TestRegister(t *testing.T) {
	reg := setupTestRegistry(t)

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if rec.ID == "" {
		t.Error("Register() returned empty ID")
	}
	if rec.Name != "amp-worker-1" {
		t.Errorf("Name = %s, want amp-worker-1", rec.Name)
	}
	if rec.State != StateWorking {
		t.Errorf("State = %s, want %s", rec.State, StateWorking)
	}
	if rec.LastSeenAt.IsZero() {
		t.Error("LastSeenAt not set")
	}

	// Verify retrieval by ID and by name.
	got, err := reg.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != rec.Name {
		t.Errorf("Get() Name = %s, want %s", got.Name, rec.Name)
	}

	byName, err := reg.GetByName("amp-worker-1")
	if err != nil {
		t.Fatalf("GetByName() error = %v", err)
	}
	if byName.ID != rec.ID {
		t.Errorf("GetByName() ID = %s, want %s", byName.ID, rec.ID)
	}
}

func TestRegisterNameConflict(t *testing.T) {
	reg := setupTestRegistry(t)

	if _, err := reg.Register("amp-worker-1"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	_, err := reg.Register("amp-worker-1")
	if !errors.Is(err, ErrNameConflict) {
		t.Errorf("Register() error = %v, want ErrNameConflict", err)
	}
}

func TestRegisterEmptyName(t *testing.T) {
	reg := setupTestRegistry(t)

	_, err := reg.Register("")
	if !errors.Is(err, ErrEmptyName) {
		t.Errorf("Register() error = %v, want ErrEmptyName", err)
	}
}

func TestGetNotFound(t *testing.T) {
	reg := setupTestRegistry(t)

	if _, err := reg.Get("no-such-id"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Get() error = %v, want ErrAgentNotFound", err)
	}

	if _, err := reg.GetByName("no-such-name"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("GetByName() error = %v, want ErrAgentNotFound", err)
	}
}

func TestHeartbeat(t *testing.T) {
	clock := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	reg, err := New(Config{
		DBPath: filepath.Join(t.TempDir(), "agents.db"),
		Clock:  func() time.Time { return clock },
	}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer reg.Close()

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	clock = clock.Add(5 * time.Minute)

	if err := reg.Heartbeat(rec.ID); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	got, err := reg.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}

	if !got.LastSeenAt.Equal(clock) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, clock)
	}
}

func TestHeartbeatTouchesMarker(t *testing.T) {
	reg := setupTestRegistry(t)
	root := t.TempDir()

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.Heartbeat(rec.ID, root); err != nil {
		t.Fatalf("Heartbeat() error = %v", err)
	}

	marker := filepath.Join(root, snapshot.BeadsDirName, TouchFileName)
	if _, statErr := os.Stat(marker); statErr != nil {
		t.Errorf("Heartbeat marker not created: %v", statErr)
	}
}

func TestHeartbeatUnknownAgent(t *testing.T) {
	reg := setupTestRegistry(t)

	if err := reg.Heartbeat("no-such-id"); !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("Heartbeat() error = %v, want ErrAgentNotFound", err)
	}
}

func TestSetState(t *testing.T) {
	reg := setupTestRegistry(t)

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.SetState(rec.ID, StateStuck); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}

	got, err := reg.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateStuck {
		t.Errorf("State = %s, want %s", got.State, StateStuck)
	}
}

func TestSetStateInvalid(t *testing.T) {
	reg := setupTestRegistry(t)

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := reg.SetState(rec.ID, "sleeping"); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetState() error = %v, want ErrInvalidState", err)
	}
}

func TestList(t *testing.T) {
	reg := setupTestRegistry(t)

	for _, name := range []string{"amp-worker-1", "amp-worker-2", "review-bot"} {
		if _, err := reg.Register(name); err != nil {
			t.Fatalf("Register(%s) error = %v", name, err)
		}
	}

	records, err := reg.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(records) != 3 {
		t.Errorf("List() returned %d records, want 3", len(records))
	}
}

func TestListEmpty(t *testing.T) {
	reg := setupTestRegistry(t)

	records, err := reg.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	if len(records) != 0 {
		t.Errorf("List() returned %d records, want 0", len(records))
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "agents.db")

	reg, err := New(Config{DBPath: dbPath}, logger.Noop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	rec, err := reg.Register("amp-worker-1")
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(Config{DBPath: dbPath}, logger.Noop())
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() after reopen error = %v", err)
	}
	if got.Name != "amp-worker-1" {
		t.Errorf("Name = %s, want amp-worker-1", got.Name)
	}
}
