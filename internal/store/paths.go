package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDir returns the per-user eigentrust directory.
// On Unix: ~/.eigentrust
// On Windows: %USERPROFILE%\.eigentrust
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".eigentrust"), nil
}

// DefaultDSN returns the store used when nothing is configured: a SQLite
// database inside DefaultDir.
func DefaultDSN() (string, error) {
	dir, err := DefaultDir()
	if err != nil {
		return "", err
	}
	return "sqlite://" + filepath.Join(dir, "eigentrust.db"), nil
}
