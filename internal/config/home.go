package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// GetHomeDir returns the orchestrator's home directory.
// Priority order:
//  1. PARALLELORC_HOME environment variable, if set
//  2. The repository root, detected by finding a go.mod that declares this module
//  3. The current working directory, as a fallback
//
// The repository-root and working-directory locations (a .parallelorc
// subdirectory) are created if they don't exist; a PARALLELORC_HOME value is
// returned as given, without being created.
func GetHomeDir() (string, error) {
	if home := os.Getenv("PARALLELORC_HOME"); home != "" {
		return home, nil
	}

	if repoRoot, err := findRepoRoot(); err == nil && repoRoot != "" {
		home := filepath.Join(repoRoot, ".parallelorc")
		if err := os.MkdirAll(home, 0755); err != nil {
			return "", fmt.Errorf("create home directory: %w", err)
		}
		return home, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	home := filepath.Join(cwd, ".parallelorc")
	if err := os.MkdirAll(home, 0755); err != nil {
		return "", fmt.Errorf("create home directory: %w", err)
	}
	return home, nil
}

// findRepoRoot walks up from the current working directory looking for a
// .parallelorc-root marker file or a go.mod declaring this module.
func findRepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	current := cwd
	for {
		if _, err := os.Stat(filepath.Join(current, ".parallelorc-root")); err == nil {
			return current, nil
		}

		if data, err := os.ReadFile(filepath.Join(current, "go.mod")); err == nil {
			if strings.Contains(string(data), "github.com/harrison/parallelorc") {
				return current, nil
			}
		}

		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}

	return "", fmt.Errorf("repository root not found (looking for .parallelorc-root or go.mod with github.com/harrison/parallelorc)")
}

// GetRunHistoryDBPath returns the absolute path to the run-history database:
// $PARALLELORC_HOME/history/runs.db
func GetRunHistoryDBPath() (string, error) {
	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, "history")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create history directory: %w", err)
	}

	return filepath.Join(dir, "runs.db"), nil
}
