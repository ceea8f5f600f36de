// Package project derives canonical identity keys from project root paths.
//
// Every subscription, snapshot, and coalescer timer in bead-sync is
// partitioned by project. Two spellings of the same directory (relative
// vs absolute, trailing separators, mixed case, backslashes) must land
// in the same partition, so all lookups go through Key.
package project

import (
	"os"
	"path/filepath"
	"strings"
)

// Key returns the canonical identity key for a project root path.
//
// The key is the absolute, cleaned path with forward slashes, no
// trailing separator, and case folded. Key("") returns "".
func Key(root string) string {
	if root == "" {
		return ""
	}

	expanded := expandHome(root)

	abs, err := filepath.Abs(expanded)
	if err != nil {
		abs = filepath.Clean(expanded)
	}

	key := filepath.ToSlash(abs)

	// Strip trailing separators but keep the root "/" intact.
	for len(key) > 1 && strings.HasSuffix(key, "/") {
		key = key[:len(key)-1]
	}

	return strings.ToLower(key)
}

// DisplayName returns a human-readable name for a project root:
// the base name of its canonical key.
func DisplayName(root string) string {
	key := Key(root)
	if key == "" {
		return ""
	}

	if idx := strings.LastIndex(key, "/"); idx >= 0 && idx < len(key)-1 {
		return key[idx+1:]
	}

	return key
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
