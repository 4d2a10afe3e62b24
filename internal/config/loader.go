package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies COINARB_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known COINARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Bitfinex ──
	setStr(&cfg.Bitfinex.WsURL, "COINARB_BITFINEX_WS_URL")
	setStr(&cfg.Bitfinex.RestURL, "COINARB_BITFINEX_REST_URL")
	setStringSlice(&cfg.Bitfinex.Pairs, "COINARB_BITFINEX_PAIRS")
	setInt(&cfg.Bitfinex.RestRateLimit, "COINARB_BITFINEX_REST_RATE_LIMIT")
	setDuration(&cfg.Bitfinex.RestRateWindow, "COINARB_BITFINEX_REST_RATE_WINDOW")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "COINARB_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "COINARB_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "COINARB_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "COINARB_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "COINARB_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "COINARB_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "COINARB_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "COINARB_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "COINARB_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "COINARB_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "COINARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "COINARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "COINARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "COINARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "COINARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "COINARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "COINARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "COINARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "COINARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "COINARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "COINARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "COINARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "COINARB_S3_FORCE_PATH_STYLE")

	// ── Arbitrage ──
	setStr(&cfg.Arbitrage.Notional, "COINARB_ARBITRAGE_NOTIONAL")
	setStr(&cfg.Arbitrage.MinResidual, "COINARB_ARBITRAGE_MIN_RESIDUAL")
	setBool(&cfg.Arbitrage.SkipCapped, "COINARB_ARBITRAGE_SKIP_CAPPED")
	setStringSlice(&cfg.Arbitrage.Strategies, "COINARB_ARBITRAGE_STRATEGIES")

	// ── Replay ──
	setStr(&cfg.Replay.Path, "COINARB_REPLAY_PATH")
	setStr(&cfg.Replay.S3Prefix, "COINARB_REPLAY_S3_PREFIX")

	// ── Capture ──
	setBool(&cfg.Capture.Enabled, "COINARB_CAPTURE_ENABLED")
	setStr(&cfg.Capture.Prefix, "COINARB_CAPTURE_PREFIX")
	setDuration(&cfg.Capture.FlushInterval, "COINARB_CAPTURE_FLUSH_INTERVAL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "COINARB_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "COINARB_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "COINARB_ARCHIVE_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "COINARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "COINARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "COINARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "COINARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "COINARB_MODE")
	setStr(&cfg.LogLevel, "COINARB_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
