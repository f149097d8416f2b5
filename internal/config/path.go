// Package config resolves application settings from viper and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

// ExpandPath expands a leading ~ to the home directory, then $VAR style
// environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}

	return os.ExpandEnv(path)
}

// DefaultDataDir is where the database and its backups live unless
// configured otherwise.
func DefaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "lmnp")
	}
	return ExpandPath("~/.local/share/lmnp")
}

// DatabasePath returns the configured database path, expanded.
func DatabasePath(configured string) string {
	if configured == "" {
		return filepath.Join(DefaultDataDir(), "lmnp.db")
	}
	return ExpandPath(configured)
}
