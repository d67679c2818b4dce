// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for syncgate.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "syncgate"

// ConfigDir returns the XDG config directory for syncgate.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".config")
	}
	return filepath.Join(base, appName)
}

// DataDir returns the XDG data directory for syncgate.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() string {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		base = filepath.Join(os.Getenv("HOME"), ".local", "share")
	}
	return filepath.Join(base, appName)
}

// ConfigFile returns the default config file location.
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// UsersDBPath returns the default SQLite path of the credential database.
func UsersDBPath() string {
	return filepath.Join(DataDir(), "users.db")
}

// SyncDBPath returns the default SQLite path of the synchronized update log.
func SyncDBPath() string {
	return filepath.Join(DataDir(), "data.sqlite")
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}
	return nil
}
