package config

import (
	"os"
	"path/filepath"
)

// configHome returns the application's state directory.
//
// Returns: ~/.config/bead-sync, or "." if the home directory is not
// available.
func configHome() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(homeDir, ".config", "bead-sync")
}

// defaultLedgerDir returns the default reservation ledger directory.
//
// Returns: ~/.config/bead-sync/ledger.
func defaultLedgerDir() string {
	return filepath.Join(configHome(), "ledger")
}

// defaultHistoryPath returns the default activity-history snapshot path.
//
// Returns: ~/.config/bead-sync/activity.json.
func defaultHistoryPath() string {
	return filepath.Join(configHome(), "activity.json")
}

// defaultMessagesDir returns the default agent mailbox directory.
//
// Returns: ~/.config/bead-sync/messages.
func defaultMessagesDir() string {
	return filepath.Join(configHome(), "messages")
}

// defaultRegistryPath returns the default agent registry database path.
//
// Returns: ~/.config/bead-sync/agents.db.
func defaultRegistryPath() string {
	return filepath.Join(configHome(), "agents.db")
}

// defaultConfigPath returns the default configuration file path.
//
// Returns: ~/.config/bead-sync/config.yaml.
func defaultConfigPath() string {
	return filepath.Join(configHome(), "config.yaml")
}
