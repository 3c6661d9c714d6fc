package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGetDefaultConfig tests the documented default values
func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, DefaultPrimaryChannel, cfg.PrimaryChannel)
	assert.Equal(t, DefaultBackupChannel, cfg.BackupChannel)
	assert.Equal(t, 35*time.Second, cfg.TimeoutPrimary)
	assert.Equal(t, 18*time.Second, cfg.TimeoutBackup)
	assert.Equal(t, 50*time.Second, cfg.TimeoutBackupNormal)
	assert.Equal(t, 4500*time.Millisecond, cfg.QuietPeriod)
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, 3*time.Hour, cfg.BlockWindow)
	assert.True(t, cfg.CacheEnabled)
}

// TestIsConfigured tests the credential presence check
func TestIsConfigured(t *testing.T) {
	cfg := GetDefaultConfig()
	assert.False(t, cfg.IsConfigured())

	cfg.BotToken = "token"
	assert.True(t, cfg.IsConfigured())

	cfg.BotToken = ""
	cfg.APIID = 12345
	cfg.APIHash = "hash"
	cfg.SessionString = "session"
	assert.True(t, cfg.IsConfigured())

	cfg.SessionString = ""
	assert.False(t, cfg.IsConfigured())
}

// TestEnvDuration tests duration parsing with fallback
func TestEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "")
	d, err := envDuration("TEST_DURATION", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, d)

	t.Setenv("TEST_DURATION", "2m")
	d, err = envDuration("TEST_DURATION", 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, d)

	t.Setenv("TEST_DURATION", "not-a-duration")
	_, err = envDuration("TEST_DURATION", 10*time.Second)
	assert.Error(t, err)
}

// TestLoadPivotOverrides tests the YAML pivot override file
func TestLoadPivotOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pivots_override.yaml")
	content := "extraPivotKeys:\n  - EXPEDIENTE\n  - NRO CASO\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	keys, err := loadPivotOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"EXPEDIENTE", "NRO CASO"}, keys)
}

// TestLoadPivotOverridesMissingFile tests that an absent file is not an error
func TestLoadPivotOverridesMissingFile(t *testing.T) {
	keys, err := loadPivotOverrides(filepath.Join(t.TempDir(), "pivots_override.yaml"))
	require.NoError(t, err)
	assert.Empty(t, keys)
}

// TestLoadPivotOverridesMalformedYAML tests that bad YAML surfaces an error
func TestLoadPivotOverridesMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pivots_override.yaml")
	require.NoError(t, os.WriteFile(path, []byte("extraPivotKeys: {not a list"), 0o644))

	_, err := loadPivotOverrides(path)
	assert.Error(t, err)
}
