package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestObservabilityLoggerWritesJSONL tests the structured log line shape
func TestObservabilityLoggerWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	obs, err := NewObservabilityLogger(dir)
	require.NoError(t, err)

	obs.Info(ComponentCollector, CategoryFailover, "req_abc12345", "Escalating to backup", map[string]interface{}{
		"channel": "@backup",
	})
	require.NoError(t, obs.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "lookup-gateway.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "collector", entry["component"])
	assert.Equal(t, "failover", entry["category"])
	assert.Equal(t, "req_abc12345", entry["request_id"])
	assert.Equal(t, "Escalating to backup", entry["message"])
	assert.Equal(t, "@backup", entry["channel"])
	assert.Equal(t, "info", entry["level"])
	assert.NotEmpty(t, entry["timestamp"])
}

// TestObservabilityLoggerHelpers tests the event helper wrappers
func TestObservabilityLoggerHelpers(t *testing.T) {
	dir := t.TempDir()
	obs, err := NewObservabilityLogger(dir)
	require.NoError(t, err)

	obs.Request("req_1", "Inbound request", nil)
	obs.FailoverEvent("req_1", "@backup", "Throttle detected", nil)
	obs.CircuitBreakerEvent("req_1", "@primary", "Failure recorded", nil)
	obs.CacheEvent("req_1", "Cache hit", nil)
	require.NoError(t, obs.Close())

	raw, err := os.ReadFile(filepath.Join(dir, "lookup-gateway.jsonl"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Len(t, lines, 4)

	var failover map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &failover))
	assert.Equal(t, "warning", failover["level"])
	assert.Equal(t, "@backup", failover["channel"])
}
