package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testTrainingData = "one fish two fish. red fish blue fish."

var fishTexts = []string{"one fish two fish.", "red fish blue fish."}

// writeTestConfig writes a config that keeps the database and templates
// inside a temporary directory and returns its path.
func writeTestConfig(t *testing.T, mutate func(*Config)) string {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Server.DatabasePath = filepath.Join(dir, "test.db")
	cfg.Server.TemplateDir = filepath.Join(dir, "templates")
	cfg.Server.LogLevel = "error"
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, os.MkdirAll(cfg.Server.TemplateDir, 0o755))

	data, err := json.MarshalIndent(cfg, "", "  ")
	require.NoError(t, err)
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestApp(t *testing.T) *app {
	t.Helper()
	a, err := openApp(writeTestConfig(t, nil), false)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// newFishApp returns an app with the "fish" model trained on testTrainingData.
func newFishApp(t *testing.T) *app {
	t.Helper()
	a := newTestApp(t)
	_, err := a.registry.Train(t.Context(), "fish", 0, testTrainingData)
	require.NoError(t, err)
	return a
}

func writeTemplate(t *testing.T, a *app, name, content string) {
	t.Helper()
	dir := a.cm.Get().Server.TemplateDir
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
