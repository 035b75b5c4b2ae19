package config

import (
	"os"
	"testing"
)

func TestGetHomeDirRespectsEnvVar(t *testing.T) {
	t.Setenv("PARALLELORC_HOME", t.TempDir())

	home, err := GetHomeDir()
	if err != nil {
		t.Fatalf("GetHomeDir() error = %v", err)
	}
	if home != os.Getenv("PARALLELORC_HOME") {
		t.Errorf("GetHomeDir() = %q, want %q", home, os.Getenv("PARALLELORC_HOME"))
	}
}

func TestGetRunHistoryDBPath(t *testing.T) {
	t.Setenv("PARALLELORC_HOME", t.TempDir())

	path, err := GetRunHistoryDBPath()
	if err != nil {
		t.Fatalf("GetRunHistoryDBPath() error = %v", err)
	}
	if _, err := os.Stat(path[:len(path)-len("/runs.db")]); err != nil {
		t.Errorf("expected history directory to exist: %v", err)
	}
}
