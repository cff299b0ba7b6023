package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestManagerParseYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
server:
  enabled: true
  addr: ":9900"
  rate_per_sec: 5
  burst: 10
storage:
  driver: sqlite
  path: ./data/payline.db
  busy_timeout: 5s
scheduler:
  interval: 15s
  timezone: UTC
gateway:
  url: http://localhost:7070/send
  network: devnet
`)

	m := NewManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)

	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, ":9900", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "15s", cfg.Scheduler.Interval)
	assert.Equal(t, "devnet", cfg.Gateway.Network)
	assert.Same(t, cfg, m.Get())
}

func TestManagerDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
gateway:
  url: http://localhost:7070/send
`)

	cfg, err := NewManager(path).Load()
	require.NoError(t, err)

	// Omitted toggles default to on.
	assert.True(t, cfg.Logging.ConsoleEnabled())
	assert.True(t, cfg.Scheduler.IsEnabled())
	assert.False(t, cfg.Server.Enabled)
	assert.False(t, cfg.Pprof.Enabled)
}

func TestManagerExplicitFalseBeatsDefault(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logging:
  console: false
scheduler:
  enabled: false
gateway:
  url: http://localhost:7070/send
`)

	cfg, err := NewManager(path).Load()
	require.NoError(t, err)
	assert.False(t, cfg.Logging.ConsoleEnabled())
	assert.False(t, cfg.Scheduler.IsEnabled())
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
gateway:
  url: http://localhost:7070/send
  retries: 3
`)

	_, err := NewManager(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown field")
}

func TestManagerRejectsTrailingJSON(t *testing.T) {
	path := writeConfig(t, "config.json", `{"gateway":{"url":"http://x"}}{"extra":1}`)

	_, err := NewManager(path).Load()
	require.Error(t, err)
}

func TestParseDurationField(t *testing.T) {
	d, err := ParseDurationField("scheduler.interval", " 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = ParseDurationField("scheduler.interval", "")
	require.NoError(t, err)
	assert.Zero(t, d)

	_, err = ParseDurationField("scheduler.interval", "soon")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.interval")

	_, err = ParseDurationField("scheduler.interval", "-5s")
	require.Error(t, err)
}

func TestParseDurationOrDefault(t *testing.T) {
	d, err := ParseDurationOrDefault("gateway.timeout", "", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)

	d, err = ParseDurationOrDefault("gateway.timeout", "2s", 30*time.Second)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}
