// Package config loads the quantd YAML configuration and applies
// environment-variable overrides.
package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the quantd engine.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Venue     Venue           `yaml:"venue"`
	Feed      Feed            `yaml:"feed"`
	Scheduler Scheduler       `yaml:"scheduler"`
	Integrity Integrity       `yaml:"integrity"`
	Portfolio PortfolioConfig `yaml:"portfolio"`
	Broker    BrokerConfig    `yaml:"broker"`
	Metrics   Metrics         `yaml:"metrics"`
	API       API             `yaml:"api"`
	Logging   Logging         `yaml:"logging"`
}

// Storage holds paths for data persistence.
type Storage struct {
	SQLitePath string `yaml:"sqlite_path"`
	ArchiveDir string `yaml:"archive_dir"` // Parquet bar-history exports
}

// Venue holds credentials and endpoints for the market-data venue.
type Venue struct {
	Exchange  string `yaml:"exchange"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	RestURL   string `yaml:"rest_url"`
	StreamURL string `yaml:"stream_url"`
}

// Feed configures the streaming synchronizer.
type Feed struct {
	Symbols   []string `yaml:"symbols"`
	Channels  []string `yaml:"channels"`   // tables to subscribe per symbol
	TableSize int      `yaml:"table_size"` // record bound for non-exempt tables
}

// Scheduler configures the per-minute event loop.
type Scheduler struct {
	IntegrityEveryN int `yaml:"integrity_every_n"` // cycles between integrity runs
	QueueCapacity   int `yaml:"queue_capacity"`
}

// Integrity configures the backfill engine.
type Integrity struct {
	MaxBinSize      int     `yaml:"max_bin_size"` // minutes per historical request
	MaxRetries      int     `yaml:"max_retries"`
	BaseDelayMS     int     `yaml:"base_delay_ms"`
	BackoffCoeff    float64 `yaml:"backoff_coeff"`
	RateLimitPerMin int     `yaml:"rate_limit_per_min"`
}

// PortfolioConfig defines portfolio identity and default trade policy.
type PortfolioConfig struct {
	ID              string    `yaml:"id"`
	AccountSize     float64   `yaml:"account_size"`
	RiskPerTradePct float64   `yaml:"risk_per_trade_pct"` // fraction of account risked per trade
	DefaultStopPct  float64   `yaml:"default_stop_pct"`   // stop distance when a signal omits one
	TakeProfitSplit []float64 `yaml:"take_profit_split"`  // position weights per take-profit level
}

// BrokerConfig selects the execution backend. "sim" fills orders locally
// against built bars; "rest" routes them to the venue's order API using the
// venue credentials.
type BrokerConfig struct {
	Kind string `yaml:"kind"`
}

// Metrics configures the Prometheus listener.
type Metrics struct {
	Addr string `yaml:"addr"`
}

// API configures the operational JSON API. An empty addr disables it.
type API struct {
	Addr string `yaml:"addr"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and fills defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("QUANTD_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("QUANTD_ARCHIVE_DIR"); v != "" {
		cfg.Storage.ArchiveDir = v
	}
	if v := os.Getenv("QUANTD_VENUE_API_KEY"); v != "" {
		cfg.Venue.APIKey = v
	}
	if v := os.Getenv("QUANTD_VENUE_API_SECRET"); v != "" {
		cfg.Venue.APISecret = v
	}
	if v := os.Getenv("QUANTD_VENUE_REST_URL"); v != "" {
		cfg.Venue.RestURL = v
	}
	if v := os.Getenv("QUANTD_VENUE_STREAM_URL"); v != "" {
		cfg.Venue.StreamURL = v
	}
	if v := os.Getenv("QUANTD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUANTD_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
}

// applyDefaults fills zero-valued fields that have sane engine-wide defaults.
func applyDefaults(cfg *Config) {
	if cfg.Feed.TableSize == 0 {
		cfg.Feed.TableSize = 200
	}
	if len(cfg.Feed.Channels) == 0 {
		cfg.Feed.Channels = []string{"trade"}
	}
	if cfg.Scheduler.IntegrityEveryN == 0 {
		cfg.Scheduler.IntegrityEveryN = 15
	}
	if cfg.Scheduler.QueueCapacity == 0 {
		cfg.Scheduler.QueueCapacity = 1024
	}
	if cfg.Integrity.MaxBinSize == 0 {
		cfg.Integrity.MaxBinSize = 750
	}
	if cfg.Integrity.MaxRetries == 0 {
		cfg.Integrity.MaxRetries = 10
	}
	if cfg.Integrity.BaseDelayMS == 0 {
		cfg.Integrity.BaseDelayMS = 500
	}
	if cfg.Integrity.BackoffCoeff == 0 {
		cfg.Integrity.BackoffCoeff = 2
	}
	if cfg.Integrity.RateLimitPerMin == 0 {
		cfg.Integrity.RateLimitPerMin = 30
	}
	if cfg.Portfolio.ID == "" {
		cfg.Portfolio.ID = "default"
	}
	if cfg.Portfolio.DefaultStopPct == 0 {
		cfg.Portfolio.DefaultStopPct = 0.02
	}
	if cfg.Portfolio.RiskPerTradePct == 0 {
		cfg.Portfolio.RiskPerTradePct = 0.01
	}
	if len(cfg.Portfolio.TakeProfitSplit) == 0 {
		cfg.Portfolio.TakeProfitSplit = []float64{0.5, 0.5}
	}
	if cfg.Broker.Kind == "" {
		cfg.Broker.Kind = "sim"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
