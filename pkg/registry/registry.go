package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/bead-sync/pkg/logger"
	"github.com/0xmhha/bead-sync/pkg/snapshot"
)

// Bucket names.
var (
	bucketAgents = []byte("agents") // ID -> Record
	bucketNames  = []byte("names")  // Name -> ID (index)
)

// TouchFileName is the telemetry marker inside a workspace's .beads dir.
const TouchFileName = "last_touch"

// registry implements the Registry interface using BoltDB.
type registry struct {
	db     *bolt.DB
	logger logger.Logger
	config Config
}

// New creates a new agent registry.
//
// Parameters:
//   - cfg: Registry configuration
//   - log: Logger instance
//
// Returns:
//   - Configured Registry
//   - Error if database cannot be opened
func New(cfg Config, log logger.Logger) (Registry, error) {
	// Set default timeout.
	if cfg.Timeout == 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	// Expand home directory in path.
	dbPath := expandHome(cfg.DBPath)

	// Create directory if it doesn't exist.
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// Open database.
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{
		Timeout: cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize buckets.
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, createErr := tx.CreateBucketIfNotExists(bucketAgents); createErr != nil {
			return fmt.Errorf("failed to create agents bucket: %w", createErr)
		}
		if _, createErr := tx.CreateBucketIfNotExists(bucketNames); createErr != nil {
			return fmt.Errorf("failed to create names bucket: %w", createErr)
		}
		return nil
	}); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("failed to close database after initialization error",
				"error", closeErr)
		}
		return nil, err
	}

	log.Info("agent registry initialized", "db_path", dbPath)

	return &registry{
		db:     db,
		logger: log,
		config: cfg,
	}, nil
}

// Register implements Registry.Register.
func (r *registry) Register(name string) (*Record, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	now := r.config.Clock()
	record := &Record{
		ID:         uuid.NewString(),
		Name:       name,
		State:      StateWorking,
		LastSeenAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	err := r.db.Update(func(tx *bolt.Tx) error {
		agents := tx.Bucket(bucketAgents)
		names := tx.Bucket(bucketNames)

		// Check if name is already taken.
		if names.Get([]byte(name)) != nil {
			return ErrNameConflict
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if err := agents.Put([]byte(record.ID), data); err != nil {
			return fmt.Errorf("failed to store agent: %w", err)
		}

		if err := names.Put([]byte(name), []byte(record.ID)); err != nil {
			return fmt.Errorf("failed to store name index: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("agent registered",
		"id", record.ID,
		"name", record.Name)

	return record, nil
}

// Heartbeat implements Registry.Heartbeat.
func (r *registry) Heartbeat(id string, roots ...string) error {
	now := r.config.Clock()

	err := r.updateRecord(id, func(record *Record) error {
		record.LastSeenAt = now
		return nil
	})
	if err != nil {
		return err
	}

	// Touch the telemetry marker in each workspace so watchers see the
	// heartbeat without a snapshot re-read.
	for _, root := range roots {
		if touchErr := touchMarker(root, now); touchErr != nil {
			r.logger.Warn("failed to touch heartbeat marker",
				"root", root,
				"error", touchErr)
		}
	}

	r.logger.Debug("heartbeat recorded", "id", id)
	return nil
}

// Get implements Registry.Get.
func (r *registry) Get(id string) (*Record, error) {
	var record *Record

	err := r.db.View(func(tx *bolt.Tx) error {
		agents := tx.Bucket(bucketAgents)

		data := agents.Get([]byte(id))
		if data == nil {
			return ErrAgentNotFound
		}

		var rec Record
		if unmarshalErr := json.Unmarshal(data, &rec); unmarshalErr != nil {
			return fmt.Errorf("failed to unmarshal record: %w", unmarshalErr)
		}

		record = &rec
		return nil
	})

	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetByName implements Registry.GetByName.
func (r *registry) GetByName(name string) (*Record, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	var id string

	// First, get ID from name index.
	if err := r.db.View(func(tx *bolt.Tx) error {
		names := tx.Bucket(bucketNames)

		idBytes := names.Get([]byte(name))
		if idBytes == nil {
			return ErrAgentNotFound
		}

		id = string(idBytes)
		return nil
	}); err != nil {
		return nil, err
	}

	// Then, get record by ID.
	return r.Get(id)
}

// List implements Registry.List.
func (r *registry) List() ([]*Record, error) {
	records := make([]*Record, 0, 10)

	err := r.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAgents)

		return b.ForEach(func(k, v []byte) error {
			var record Record
			if unmarshalErr := json.Unmarshal(v, &record); unmarshalErr != nil {
				r.logger.Warn("failed to unmarshal agent",
					"id", string(k),
					"error", unmarshalErr)
				return nil // Skip invalid entries.
			}

			records = append(records, &record)
			return nil
		})
	})

	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}

	return records, nil
}

// SetState implements Registry.SetState.
func (r *registry) SetState(id, state string) error {
	validStates := map[string]bool{
		StateWorking: true,
		StateStuck:   true,
		StateDead:    true,
		StateDone:    true,
	}
	if !validStates[state] {
		return ErrInvalidState
	}

	err := r.updateRecord(id, func(record *Record) error {
		record.State = state
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.Info("agent state updated", "id", id, "state", state)
	return nil
}

// Close implements Registry.Close.
func (r *registry) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	r.logger.Info("agent registry closed")
	return nil
}

// updateRecord loads, mutates, and re-stores one record in a single
// transaction, stamping UpdatedAt.
func (r *registry) updateRecord(id string, mutate func(*Record) error) error {
	return r.db.Update(func(tx *bolt.Tx) error {
		agents := tx.Bucket(bucketAgents)

		data := agents.Get([]byte(id))
		if data == nil {
			return ErrAgentNotFound
		}

		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		if err := mutate(&record); err != nil {
			return err
		}
		record.UpdatedAt = r.config.Clock()

		updated, err := json.Marshal(&record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if err := agents.Put([]byte(id), updated); err != nil {
			return fmt.Errorf("failed to store record: %w", err)
		}

		return nil
	})
}

// touchMarker creates or re-times .beads/last_touch under root.
func touchMarker(root string, now time.Time) error {
	dir := filepath.Join(root, snapshot.BeadsDirName)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create .beads directory: %w", err)
	}

	path := filepath.Join(dir, TouchFileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- path is derived from the caller's workspace root
	if err != nil {
		return fmt.Errorf("failed to open marker: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close marker: %w", err)
	}

	if err := os.Chtimes(path, now, now); err != nil {
		return fmt.Errorf("failed to update marker time: %w", err)
	}

	return nil
}

// expandHome expands ~ in file paths to the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	return filepath.Join(homeDir, path[2:])
}
