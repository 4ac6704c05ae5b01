package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "gochannel", cfg.Transport.Provider)
	assert.Equal(t, "pulseline.progress", cfg.Transport.Topic)
	assert.Equal(t, 2*time.Second, cfg.Executor.PollInterval.Std())
	assert.Equal(t, 7*24*time.Hour, cfg.History.Retention.Std())
	assert.Equal(t, "@hourly", cfg.History.SweepSchedule)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pulseline.yaml")

	content := `
transport:
  provider: kafka
  kafka_brokers: "localhost:9092"
  topic: runs.progress
executor:
  base_url: http://localhost:9091
  poll_interval: 5s
history:
  redis_url: redis://localhost:6379/0
  retention: 48h
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "kafka", cfg.Transport.Provider)
	assert.Equal(t, "localhost:9092", cfg.Transport.KafkaBrokers)
	assert.Equal(t, "runs.progress", cfg.Transport.Topic)
	assert.Equal(t, "http://localhost:9091", cfg.Executor.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.Executor.PollInterval.Std())
	assert.Equal(t, "redis://localhost:6379/0", cfg.History.RedisURL)
	assert.Equal(t, 48*time.Hour, cfg.History.Retention.Std())
	assert.Equal(t, "debug", cfg.LogLevel)

	// Unset values still fall back to defaults.
	assert.Equal(t, "@hourly", cfg.History.SweepSchedule)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("transport: [unclosed"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
