package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8000, c.HTTP.Port)
	assert.Equal(t, "US", c.Engine.FocusRegion)
	assert.Equal(t, 30*time.Second, c.Engine.IntelligenceEvery)
	assert.Equal(t, []string{"1h", "1d"}, c.Data.Timeframes)
	assert.Len(t, c.Discovery.Sources, 5)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
engine:
  focus_region: CRYPTO
  live_interval: 5s
data:
  timeframes: ["1m", "1h"]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "CRYPTO", c.Engine.FocusRegion)
	assert.Equal(t, 5*time.Second, c.Engine.LiveInterval)
	assert.Equal(t, []string{"1m", "1h"}, c.Data.Timeframes)
	assert.Equal(t, 50, c.Data.ChunkSize)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  mode: reckless\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("TP_HTTP_PORT", "9100")
	t.Setenv("TP_KAFKA_BROKERS", "k1:9092,k2:9092")

	c, err := LoadWithEnv(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9100, c.HTTP.Port)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
}

func TestValidate_RedisBackendNeedsRedis(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	c.Storage.Backend = "redis"
	assert.Error(t, c.Validate())
	c.Redis.Enabled = true
	assert.NoError(t, c.Validate())
}
