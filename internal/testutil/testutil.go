// Package testutil provides testing utilities for isolated test environments.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/leefowlercu/timelapse/internal/config"
)

// TestEnv provides an isolated test environment with its own config
// directory and game root.
type TestEnv struct {
	t         *testing.T
	ConfigDir string
	GameRoot  string
}

// NewTestEnv creates an isolated test environment.
// Paths are overridden through environment variables, which viper picks up
// via AutomaticEnv. Cleanup is automatic via t.Cleanup.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	base := t.TempDir()
	configDir := filepath.Join(base, "config")
	gameRoot := filepath.Join(base, "game")
	for _, dir := range []string{configDir, gameRoot} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create test dir %s: %v", dir, err)
		}
	}

	t.Setenv("HOME", base)
	t.Setenv(config.EnvConfigDir, configDir)
	t.Setenv("TIMELAPSE_LOG_FILE", filepath.Join(configDir, "timelapse.log"))
	t.Setenv("TIMELAPSE_GAME_ROOT", gameRoot)

	config.Reset()
	if err := config.Init(); err != nil {
		t.Fatalf("failed to initialize test config: %v", err)
	}

	t.Cleanup(func() {
		config.Reset()
	})

	return &TestEnv{
		t:         t,
		ConfigDir: configDir,
		GameRoot:  gameRoot,
	}
}

// ExportDir returns the default export directory under the game root.
func (e *TestEnv) ExportDir() string {
	return filepath.Join(e.GameRoot, config.DefaultGameExportDir)
}

// WriteExport writes an export file into the export directory, creating the
// directory if needed. Returns the absolute path to the file.
func (e *TestEnv) WriteExport(name, content string) string {
	e.t.Helper()

	if err := os.MkdirAll(e.ExportDir(), 0755); err != nil {
		e.t.Fatalf("failed to create export dir: %v", err)
	}
	path := filepath.Join(e.ExportDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		e.t.Fatalf("failed to write export %s: %v", path, err)
	}
	return path
}

// WriteConfig writes a config.yaml into the config directory and reloads
// configuration.
func (e *TestEnv) WriteConfig(content string) {
	e.t.Helper()

	path := filepath.Join(e.ConfigDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		e.t.Fatalf("failed to write config: %v", err)
	}

	config.Reset()
	if err := config.Init(); err != nil {
		e.t.Fatalf("failed to reload config: %v", err)
	}
}
