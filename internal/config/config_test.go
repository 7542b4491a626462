package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	os.Unsetenv("TASKMANAGER_RDD_MAXDEPTH")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3, cfg.RDD.MaxDepth)
	require.Equal(t, 5, cfg.RDD.MaxSubTasks)
	require.InDelta(t, 0.7, cfg.RDD.MinConfidence, 1e-9)
	require.Equal(t, "hybrid_optimal", cfg.Scheduling.Algorithm)
	_ = dir
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmanager.yaml")
	content := []byte("dataDirectory: " + dir + "\nrdd:\n  maxDepth: 5\nscheduling:\n  algorithm: priority_first\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5, cfg.RDD.MaxDepth)
	require.Equal(t, "priority_first", cfg.Scheduling.Algorithm)
	require.Equal(t, dir, cfg.DataDirectory)
}

func TestLoadRejectsUnknownAlgorithm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "taskmanager.yaml")
	content := []byte("scheduling:\n  algorithm: made_up\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("TASKMANAGER_RDD_MAXDEPTH", "7")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7, cfg.RDD.MaxDepth)
}
