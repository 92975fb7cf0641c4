package shadho

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shadho.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultDriverConfig_IsValid(t *testing.T) {
	cfg := DefaultDriverConfig()
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 10*time.Minute, cfg.Timeout.Std())
	assert.Equal(t, "round-robin", cfg.Allocator)
}

func TestLoadDriverConfig_OverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
timeout: 5m
seed: 42
max_tasks: 8
allocator: weighted
backoff:
  initial_interval: 50ms
  max_retries: 2
  abort_threshold: 3
`)
	cfg, err := LoadDriverConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Timeout.Std())
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, 8, cfg.MaxTasks)
	assert.Equal(t, "weighted", cfg.Allocator)
	assert.Equal(t, 50*time.Millisecond, cfg.Backoff.InitialInterval.Std())
	assert.Equal(t, uint64(2), cfg.Backoff.MaxRetries)

	// Untouched fields keep their defaults.
	assert.Equal(t, 100*time.Millisecond, cfg.PollInterval.Std())
	assert.Equal(t, "performance.json", cfg.ResultFile)
}

func TestLoadDriverConfig_BadDuration(t *testing.T) {
	path := writeConfig(t, `timeout: soon`)
	_, err := LoadDriverConfig(path)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLoadDriverConfig_UnknownAllocator(t *testing.T) {
	path := writeConfig(t, `allocator: priority`)
	_, err := LoadDriverConfig(path)
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestLoadDriverConfig_MissingFile(t *testing.T) {
	_, err := LoadDriverConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestDriverConfig_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*DriverConfig)
	}{
		{"zero timeout", func(c *DriverConfig) { c.Timeout = 0 }},
		{"zero poll interval", func(c *DriverConfig) { c.PollInterval = 0 }},
		{"negative trial timeout", func(c *DriverConfig) { c.TrialTimeout = -1 }},
		{"negative max tasks", func(c *DriverConfig) { c.MaxTasks = -1 }},
		{"zero abort threshold", func(c *DriverConfig) { c.Backoff.AbortThreshold = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultDriverConfig()
			tc.mutate(&cfg)
			assert.True(t, errors.Is(cfg.Validate(), ErrConfiguration))
		})
	}
}
