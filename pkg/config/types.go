// Package config provides configuration management for bead-sync.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Watch roots: %v\n", cfg.WatchRoots)
package config

import (
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - DebounceInterval must be > 0
// - HeartbeatInterval must be > 0
// - StaleMinutes must be > 0
// - TTL bounds must satisfy 0 < MinTTLMinutes <= MaxTTLMinutes
// - History capacity must be > 0.
type Config struct {
	// Workspace roots to watch by default (each containing a .beads/ dir)
	WatchRoots []string `yaml:"watch_roots"`

	// Watch settings
	Watch WatchConfig `yaml:"watch"`

	// Liveness settings
	Liveness LivenessConfig `yaml:"liveness"`

	// Reservation ledger settings
	Ledger LedgerConfig `yaml:"ledger"`

	// Activity history settings
	History HistoryConfig `yaml:"history"`

	// Agent mailbox settings
	Messages MessagesConfig `yaml:"messages"`

	// Agent registry settings
	Registry RegistryConfig `yaml:"registry"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// WatchConfig contains file-watching settings.
type WatchConfig struct {
	// Quiet window before a burst of file events is flushed
	DebounceInterval time.Duration `yaml:"debounce_interval"`

	// Keep-alive interval for event streams
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// LivenessConfig contains agent-liveness settings.
type LivenessConfig struct {
	// Minutes without a heartbeat before an agent is considered stale
	StaleMinutes int `yaml:"stale_minutes"`
}

// LedgerConfig contains scope-reservation ledger settings.
type LedgerConfig struct {
	// Directory holding active.json and history.jsonl
	Dir string `yaml:"dir"`

	// Accepted reservation TTL bounds in minutes
	MinTTLMinutes int `yaml:"min_ttl_minutes"`
	MaxTTLMinutes int `yaml:"max_ttl_minutes"`
}

// HistoryConfig contains activity-history settings.
type HistoryConfig struct {
	// Maximum retained activity events
	Capacity int `yaml:"capacity"`

	// Path of the persisted history snapshot
	Path string `yaml:"path"`
}

// MessagesConfig contains agent mailbox settings.
type MessagesConfig struct {
	// Directory holding per-message JSON files
	Dir string `yaml:"dir"`
}

// RegistryConfig contains agent registry settings.
type RegistryConfig struct {
	// Path to the BoltDB agent directory
	DBPath string `yaml:"db_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Returns an error if any invariant is violated:
//   - Invalid time durations (must be > 0)
//   - Invalid stale threshold (must be > 0)
//   - Invalid or inverted TTL bounds
//   - Invalid history capacity (must be > 0)
//   - Invalid log level or format
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	// Validate watch config
	if c.Watch.DebounceInterval <= 0 {
		return ErrInvalidDebounceInterval
	}
	if c.Watch.HeartbeatInterval <= 0 {
		return ErrInvalidHeartbeatInterval
	}

	// Validate liveness config
	if c.Liveness.StaleMinutes <= 0 {
		return ErrInvalidStaleMinutes
	}

	// Validate ledger config
	if c.Ledger.MinTTLMinutes <= 0 || c.Ledger.MaxTTLMinutes <= 0 {
		return ErrInvalidTTLBounds
	}
	if c.Ledger.MinTTLMinutes > c.Ledger.MaxTTLMinutes {
		return ErrInvalidTTLBounds
	}

	// Validate history config
	if c.History.Capacity <= 0 {
		return ErrInvalidHistoryCapacity
	}

	// Validate logging config
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		WatchRoots: nil,
		Watch: WatchConfig{
			DebounceInterval:  500 * time.Millisecond,
			HeartbeatInterval: 30 * time.Second,
		},
		Liveness: LivenessConfig{
			StaleMinutes: 15,
		},
		Ledger: LedgerConfig{
			Dir:           defaultLedgerDir(),
			MinTTLMinutes: 5,
			MaxTTLMinutes: 1440,
		},
		History: HistoryConfig{
			Capacity: 100,
			Path:     defaultHistoryPath(),
		},
		Messages: MessagesConfig{
			Dir: defaultMessagesDir(),
		},
		Registry: RegistryConfig{
			DBPath: defaultRegistryPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
