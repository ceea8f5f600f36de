package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidDebounceInterval is returned when the debounce interval is <= 0.
	ErrInvalidDebounceInterval = errors.New("invalid debounce interval: must be > 0")

	// ErrInvalidHeartbeatInterval is returned when the heartbeat interval is <= 0.
	ErrInvalidHeartbeatInterval = errors.New("invalid heartbeat interval: must be > 0")

	// ErrInvalidStaleMinutes is returned when the stale threshold is <= 0.
	ErrInvalidStaleMinutes = errors.New("invalid stale threshold: must be > 0 minutes")

	// ErrInvalidTTLBounds is returned when the TTL bounds are non-positive or inverted.
	ErrInvalidTTLBounds = errors.New("invalid ttl bounds: must satisfy 0 < min <= max")

	// ErrInvalidHistoryCapacity is returned when the history capacity is <= 0.
	ErrInvalidHistoryCapacity = errors.New("invalid history capacity: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
