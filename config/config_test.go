package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60001*time.Millisecond, cfg.TickTTL())
	assert.Equal(t, 2*time.Hour, cfg.ScheduleAwait())
	assert.Equal(t, time.Second, cfg.RetryDelay())
	assert.Equal(t, 0.1, cfg.Costs().FeePercent)
	assert.Equal(t, 10080.0, cfg.Limits().MaxSignalLifetimeMinutes)
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tick ttl", func(c *Config) { c.TickTTLMillis = 0 }},
		{"zero schedule await", func(c *Config) { c.ScheduleAwaitMinutes = 0 }},
		{"negative fee", func(c *Config) { c.PercentFee = -1 }},
		{"sl bounds inverted", func(c *Config) { c.MaxStopLossDistancePercent = 0.1 }},
		{"zero partial step", func(c *Config) { c.PartialLevelStepPercent = 0 }},
		{"zero avg candles", func(c *Config) { c.AvgPriceCandlesCount = 0 }},
		{"bad journal type", func(c *Config) { c.Journal.Type = "parquet" }},
		{"csv journal without file", func(c *Config) { c.Journal.Type = "csv" }},
		{"sqlite journal without path", func(c *Config) { c.Journal.Type = "sqlite" }},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	t.Run("yaml overrides defaults", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "sigrun.yaml")
		body := "tick_ttl_ms: 1000\npercent_fee: 0.2\njournal:\n  type: csv\n  file: ./signals.csv\n"
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, time.Second, cfg.TickTTL())
		assert.Equal(t, 0.2, cfg.PercentFee)
		// Untouched keys keep their defaults.
		assert.Equal(t, 120.0, cfg.ScheduleAwaitMinutes)
		assert.Equal(t, "csv", cfg.Journal.Type)
	})

	t.Run("json fallback", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "sigrun.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"tick_ttl_ms": 5}`), 0o644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, 5, cfg.TickTTLMillis)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "sigrun.yaml")
		require.NoError(t, os.WriteFile(path, []byte("tick_ttl_ms: -5\n"), 0o644))

		_, err := LoadFromFile(path)
		require.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()

		_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	orig := Default()
	orig.TickTTLMillis = 123

	yamlPath := filepath.Join(dir, "out.yaml")
	require.NoError(t, orig.SaveToFile(yamlPath))
	got, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	jsonPath := filepath.Join(dir, "out.json")
	require.NoError(t, orig.SaveToFile(jsonPath))
	got, err = LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, orig, got)
}
