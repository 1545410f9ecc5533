package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Crawler.Workers)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout())
	assert.Equal(t, 7, cfg.Crawler.DefaultRangeDays)
	assert.True(t, cfg.Crawler.ProbeOnEmpty)
	assert.Equal(t, 3, cfg.Anomaly.MinHistoryRuns)
	assert.Equal(t, 2, cfg.Anomaly.MaxConsecutiveEmpty)
	assert.InDelta(t, 0.25, cfg.Anomaly.LowYieldRatio, 1e-9)
	assert.Equal(t, "techwatch_db.json", cfg.Storage.Path)
	assert.Equal(t, "source_yields", cfg.History.Table)
	assert.False(t, cfg.Headless.Enabled)
	assert.Equal(t, 2048, cfg.Headless.MinHTMLBytes)
	assert.NotEmpty(t, cfg.Headless.JSKeywords)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
crawler:
  workers: 8
  source_timeout_seconds: 45
storage:
  path: /var/lib/techwatch/db.json
anomaly:
  low_yield_ratio: 0.5
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Crawler.Workers)
	assert.Equal(t, 45*time.Second, cfg.SourceTimeout())
	assert.Equal(t, "/var/lib/techwatch/db.json", cfg.Storage.Path)
	assert.InDelta(t, 0.5, cfg.Anomaly.LowYieldRatio, 1e-9)
	// Untouched keys keep their defaults.
	assert.Equal(t, 2, cfg.HTTP.MaxRetries)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid, err := Load("")
	require.NoError(t, err)

	cases := map[string]func(*Config){
		"zero port":            func(c *Config) { c.Server.Port = 0 },
		"zero workers":         func(c *Config) { c.Crawler.Workers = 0 },
		"zero source timeout":  func(c *Config) { c.Crawler.SourceTimeoutSeconds = 0 },
		"zero http timeout":    func(c *Config) { c.HTTP.TimeoutSeconds = 0 },
		"ratio too high":       func(c *Config) { c.Anomaly.LowYieldRatio = 1 },
		"empty storage path":   func(c *Config) { c.Storage.Path = "" },
		"pubsub without topic": func(c *Config) { c.PubSub.ProjectID = "proj"; c.PubSub.TopicName = "" },
		"headless no parallel": func(c *Config) { c.Headless.Enabled = true; c.Headless.MaxParallel = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
