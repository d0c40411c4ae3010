package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ServerConfig contains the HTTP server configuration
type ServerConfig struct {
	ListenAddr string `yaml:"listenAddr"`
}

// DatasetConfig contains the static schedule dataset configuration
type DatasetConfig struct {
	Path              string `yaml:"path" validate:"required"`
	RefreshIntervalMS int    `yaml:"refreshIntervalMS" validate:"gte=0"`
}

// FeedConfig contains the realtime feed configuration
type FeedConfig struct {
	URL            string `yaml:"url" validate:"omitempty,url"`
	PollIntervalMS int    `yaml:"pollIntervalMS" validate:"gte=0"`
	TimeoutMS      int    `yaml:"timeoutMS" validate:"gte=0"`
	GraceWindowMS  int    `yaml:"graceWindowMS" validate:"gte=0"`
}

// ReconcileConfig contains the classification thresholds. Both are
// deployment-tunable rather than hardcoded; the exact boundary values
// differ between agencies.
type ReconcileConfig struct {
	OnTimeBandMS   int `yaml:"onTimeBandMS" validate:"gte=0"`
	DueThresholdMS int `yaml:"dueThresholdMS" validate:"gte=0"`
}

// QueryConfig contains the facade's cache configuration
type QueryConfig struct {
	CacheSize  int `yaml:"cacheSize" validate:"gte=0"`
	CacheTTLMS int `yaml:"cacheTTLMS" validate:"gte=0"`
}

// NATSConfig contains the optional event publisher configuration. An
// empty URL disables publishing.
type NATSConfig struct {
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject"`
}

// Config is the root configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Dataset   DatasetConfig   `yaml:"dataset" validate:"required"`
	Feed      FeedConfig      `yaml:"feed"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Query     QueryConfig     `yaml:"query"`
	NATS      NATSConfig      `yaml:"nats"`
}

// Load reads, overrides and validates the configuration. Environment
// variables (optionally from a .env file) take precedence over the
// YAML file for the deployment-specific settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	_ = godotenv.Load()
	if v := os.Getenv("ARRIVALS_LISTEN"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("ARRIVALS_DATASET"); v != "" {
		cfg.Dataset.Path = v
	}
	if v := os.Getenv("ARRIVALS_FEED_URL"); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv("ARRIVALS_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":18080"
	}
	if cfg.Dataset.RefreshIntervalMS == 0 {
		cfg.Dataset.RefreshIntervalMS = int(24 * time.Hour / time.Millisecond)
	}
	if cfg.Feed.PollIntervalMS == 0 {
		cfg.Feed.PollIntervalMS = int(time.Minute / time.Millisecond)
	}
	if cfg.Feed.TimeoutMS == 0 {
		cfg.Feed.TimeoutMS = int(30 * time.Second / time.Millisecond)
	}
	if cfg.Feed.GraceWindowMS == 0 {
		cfg.Feed.GraceWindowMS = int(10 * time.Minute / time.Millisecond)
	}
	if cfg.Reconcile.OnTimeBandMS == 0 {
		cfg.Reconcile.OnTimeBandMS = int(time.Minute / time.Millisecond)
	}
	if cfg.Reconcile.DueThresholdMS == 0 {
		cfg.Reconcile.DueThresholdMS = int(time.Minute / time.Millisecond)
	}
	if cfg.Query.CacheSize == 0 {
		cfg.Query.CacheSize = 1024
	}
	if cfg.Query.CacheTTLMS == 0 {
		cfg.Query.CacheTTLMS = int(30 * time.Second / time.Millisecond)
	}
	if cfg.NATS.Subject == "" {
		cfg.NATS.Subject = "arrivals.events"
	}
}

// Duration helpers for the millisecond-valued settings.

func (c DatasetConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalMS) * time.Millisecond
}

func (c FeedConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

func (c FeedConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

func (c FeedConfig) GraceWindow() time.Duration {
	return time.Duration(c.GraceWindowMS) * time.Millisecond
}

func (c ReconcileConfig) OnTimeBand() time.Duration {
	return time.Duration(c.OnTimeBandMS) * time.Millisecond
}

func (c ReconcileConfig) DueThreshold() time.Duration {
	return time.Duration(c.DueThresholdMS) * time.Millisecond
}

func (c QueryConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLMS) * time.Millisecond
}
