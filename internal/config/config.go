// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Anomaly  AnomalyConfig  `mapstructure:"anomaly"`
	Storage  StorageConfig  `mapstructure:"storage"`
	History  HistoryConfig  `mapstructure:"history"`
	Archive  ArchiveConfig  `mapstructure:"archive"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// CrawlerConfig governs the crawl run pipeline.
type CrawlerConfig struct {
	Workers              int    `mapstructure:"workers"`
	SourceTimeoutSeconds int    `mapstructure:"source_timeout_seconds"`
	UserAgent            string `mapstructure:"user_agent"`
	DefaultRangeDays     int    `mapstructure:"default_range_days"`
	ProbeOnEmpty         bool   `mapstructure:"probe_on_empty"`
}

// HTTPConfig configures HTTP client retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
}

// HeadlessConfig configures the headless rendering escalation.
// MinHTMLBytes and JSKeywords feed the script-rendering heuristic that
// decides when a plain fetch gets re-run through the browser.
type HeadlessConfig struct {
	Enabled       bool     `mapstructure:"enabled"`
	MaxParallel   int      `mapstructure:"max_parallel"`
	NavTimeoutSec int      `mapstructure:"nav_timeout_seconds"`
	MinHTMLBytes  int      `mapstructure:"min_html_bytes"`
	JSKeywords    []string `mapstructure:"js_keywords"`
}

// AnomalyConfig tunes the yield anomaly detector.
type AnomalyConfig struct {
	MinHistoryRuns      int     `mapstructure:"min_history_runs"`
	MaxConsecutiveEmpty int     `mapstructure:"max_consecutive_empty"`
	LowYieldRatio       float64 `mapstructure:"low_yield_ratio"`
}

// StorageConfig locates the dataset file.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// HistoryConfig controls where run yield history lives. With an empty
// DSN the service keeps history in memory for the life of the process.
type HistoryConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ArchiveConfig points run snapshots at a GCS bucket. Empty bucket
// disables archival.
type ArchiveConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for run-completion notifications. Empty
// project disables publishing.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TECHWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 300)
	v.SetDefault("crawler.workers", 4)
	v.SetDefault("crawler.source_timeout_seconds", 30)
	v.SetDefault("crawler.user_agent", "techwatch-bot/0.1")
	v.SetDefault("crawler.default_range_days", 7)
	v.SetDefault("crawler.probe_on_empty", true)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 2000)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.min_html_bytes", 2048)
	v.SetDefault("headless.js_keywords", []string{
		"enable javascript",
		"__next_data__",
		"window.__nuxt__",
	})
	v.SetDefault("anomaly.min_history_runs", 3)
	v.SetDefault("anomaly.max_consecutive_empty", 2)
	v.SetDefault("anomaly.low_yield_ratio", 0.25)
	v.SetDefault("storage.path", "techwatch_db.json")
	v.SetDefault("history.table", "source_yields")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Crawler.Workers <= 0 {
		return fmt.Errorf("crawler.workers must be > 0")
	}
	if c.Crawler.SourceTimeoutSeconds <= 0 {
		return fmt.Errorf("crawler.source_timeout_seconds must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Anomaly.LowYieldRatio <= 0 || c.Anomaly.LowYieldRatio >= 1 {
		return fmt.Errorf("anomaly.low_yield_ratio must be in (0, 1)")
	}
	if c.Storage.Path == "" {
		return fmt.Errorf("storage.path must be set")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	return nil
}

// SourceTimeout converts the per-source budget into a duration.
func (c Config) SourceTimeout() time.Duration {
	return time.Duration(c.Crawler.SourceTimeoutSeconds) * time.Second
}

// RequestTimeout converts the HTTP server budget into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
