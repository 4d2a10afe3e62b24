// Package config defines the top-level configuration for coinarb and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by COINARB_* environment variables.
type Config struct {
	Bitfinex  BitfinexConfig  `toml:"bitfinex"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Replay    ReplayConfig    `toml:"replay"`
	Capture   CaptureConfig   `toml:"capture"`
	Archive   ArchiveConfig   `toml:"archive"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// BitfinexConfig holds Bitfinex API endpoints and market selection.
type BitfinexConfig struct {
	WsURL   string   `toml:"ws_url"`
	RestURL string   `toml:"rest_url"`
	// Pairs restricts the traded universe, e.g. ["btc/usd", "eth/usd"].
	// Empty means every symbol the exchange lists.
	Pairs []string `toml:"pairs"`
	// RestRateLimit caps REST requests per RestRateWindow.
	RestRateLimit  int      `toml:"rest_rate_limit"`
	RestRateWindow duration `toml:"rest_rate_window"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArbitrageConfig holds detection parameters. Monetary fields are decimal
// strings so amounts survive decoding without float rounding.
type ArbitrageConfig struct {
	// Notional is the amount of the first leg's base currency committed to
	// each simulated round trip.
	Notional string `toml:"notional"`
	// MinResidual is the smallest home-currency residual worth reporting.
	MinResidual string `toml:"min_residual"`
	// SkipCapped drops opportunities whose legs could not be fully filled
	// at the top of the book.
	SkipCapped bool `toml:"skip_capped"`
	// Strategies pins the monitored triangles ("eur/chf,chf/usd,eur/usd").
	// Empty means every triangle constructible from the pair universe.
	Strategies []string `toml:"strategies"`
}

// ReplayConfig holds the input source for replay mode.
type ReplayConfig struct {
	// Path is a local line-JSON quote file. Takes precedence over S3Prefix.
	Path string `toml:"path"`
	// S3Prefix replays every recorded object under the prefix.
	S3Prefix string `toml:"s3_prefix"`
}

// CaptureConfig controls recording of the live quote stream to object storage.
type CaptureConfig struct {
	Enabled       bool     `toml:"enabled"`
	Prefix        string   `toml:"prefix"`
	FlushInterval duration `toml:"flush_interval"`
}

// ArchiveConfig controls periodic archival of detected opportunities.
type ArchiveConfig struct {
	Enabled bool `toml:"enabled"`
	// Interval is how often the archive pass runs.
	Interval duration `toml:"interval"`
	// RetentionDays keeps this many days of opportunities in the database;
	// older rows are copied to object storage.
	RetentionDays int `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// NotionalAmount returns the configured per-leg notional as a decimal.
func (a ArbitrageConfig) NotionalAmount() (decimal.Decimal, error) {
	return decimal.NewFromString(a.Notional)
}

// MinResidualAmount returns the reporting threshold as a decimal.
func (a ArbitrageConfig) MinResidualAmount() (decimal.Decimal, error) {
	if strings.TrimSpace(a.MinResidual) == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(a.MinResidual)
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Bitfinex: BitfinexConfig{
			WsURL:          "wss://api.bitfinex.com/ws",
			RestURL:        "https://api.bitfinex.com",
			RestRateLimit:  30,
			RestRateWindow: duration{time.Minute},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "coinarb",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "coinarb-data",
			ForcePathStyle: true,
		},
		Arbitrage: ArbitrageConfig{
			Notional:    "100",
			MinResidual: "0",
			SkipCapped:  true,
		},
		Capture: CaptureConfig{
			Prefix:        "quotes",
			FlushInterval: duration{time.Minute},
		},
		Archive: ArchiveConfig{
			Interval:      duration{24 * time.Hour},
			RetentionDays: 30,
		},
		Mode:     "monitor",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"monitor":    true,
	"scan":       true,
	"replay":     true,
	"strategies": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: monitor, scan, replay, strategies)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Bitfinex endpoints
	if c.Bitfinex.WsURL == "" {
		errs = append(errs, "bitfinex: ws_url must not be empty")
	}
	if c.Bitfinex.RestURL == "" {
		errs = append(errs, "bitfinex: rest_url must not be empty")
	}
	if c.Bitfinex.RestRateLimit < 1 {
		errs = append(errs, "bitfinex: rest_rate_limit must be >= 1")
	}
	if c.Bitfinex.RestRateWindow.Duration <= 0 {
		errs = append(errs, "bitfinex: rest_rate_window must be positive")
	}

	// Postgres: only the monitor mode persists opportunities.
	if c.Mode == "monitor" {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis: the monitor needs the quote cache and bus, the scanner the
	// shared REST rate limiter.
	if c.Mode == "monitor" || c.Mode == "scan" {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3: required when capture or archive is on, or replay reads from S3.
	needsS3 := c.Capture.Enabled || c.Archive.Enabled ||
		(c.Mode == "replay" && c.Replay.Path == "" && c.Replay.S3Prefix != "")
	if needsS3 {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Arbitrage amounts
	if notional, err := c.Arbitrage.NotionalAmount(); err != nil {
		errs = append(errs, fmt.Sprintf("arbitrage: notional %q is not a valid decimal", c.Arbitrage.Notional))
	} else if !notional.IsPositive() {
		errs = append(errs, "arbitrage: notional must be > 0")
	}
	if minResidual, err := c.Arbitrage.MinResidualAmount(); err != nil {
		errs = append(errs, fmt.Sprintf("arbitrage: min_residual %q is not a valid decimal", c.Arbitrage.MinResidual))
	} else if minResidual.IsNegative() {
		errs = append(errs, "arbitrage: min_residual must be >= 0")
	}

	// Replay input
	if c.Mode == "replay" && c.Replay.Path == "" && c.Replay.S3Prefix == "" {
		errs = append(errs, "replay: either path or s3_prefix must be set for replay mode")
	}

	// Capture
	if c.Capture.Enabled {
		if c.Capture.Prefix == "" {
			errs = append(errs, "capture: prefix must not be empty when enabled")
		}
		if c.Capture.FlushInterval.Duration <= 0 {
			errs = append(errs, "capture: flush_interval must be positive when enabled")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if c.Archive.Interval.Duration <= 0 {
			errs = append(errs, "archive: interval must be positive when enabled")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1 when enabled")
		}
	}

	// Notify: telegram fields must be set together.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
