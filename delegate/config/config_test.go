package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	assert.Equal(t, 6, d.Scheduler.MaxConcurrency)
	assert.Equal(t, 5, d.Subtask.MaxAttempts)
	assert.Equal(t, 120, d.Subtask.TimeoutSeconds)
	assert.Equal(t, 250, d.EventBus.DrainGraceMillis)
	assert.Equal(t, 60.0, d.ModelRateLimit.InitialRPM)
	assert.Equal(t, 120.0, d.ModelRateLimit.MaxRPM)
}

func TestLoad_PartialYAML_FillsRemainingDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scheduler:\n  maxConcurrency: 12\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Scheduler.MaxConcurrency)
	assert.Equal(t, 5, cfg.Subtask.MaxAttempts, "unset sections must still fall back to defaults")
}

func TestLoad_MissingFile_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	assert.Error(t, err)
}
