package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/chris-ch/coinarb/internal/blob/s3"
	"github.com/chris-ch/coinarb/internal/cache/redis"
	"github.com/chris-ch/coinarb/internal/config"
	"github.com/chris-ch/coinarb/internal/domain"
	"github.com/chris-ch/coinarb/internal/notify"
	"github.com/chris-ch/coinarb/internal/platform/bitfinex"
	"github.com/chris-ch/coinarb/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Persistence
	OpportunityStore domain.OpportunityStore

	// Caches
	QuoteCache  domain.QuoteCache
	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   *s3blob.Archiver

	// Exchange clients
	Rest *bitfinex.RestClient

	// Notifications
	Notifier *notify.Notifier
}

// needsPostgres returns true for modes that persist opportunities.
func needsPostgres(mode string) bool {
	return mode == "monitor"
}

// needsRedis returns true for modes that use the quote cache, the bus, or the
// shared REST rate limiter.
func needsRedis(mode string) bool {
	return mode == "monitor" || mode == "scan"
}

// needsS3 returns true when a mode reads or writes object storage.
func needsS3(cfg *config.Config) bool {
	if cfg.Capture.Enabled || cfg.Archive.Enabled {
		return true
	}
	return cfg.Mode == "replay" && cfg.Replay.Path == "" && cfg.Replay.S3Prefix != ""
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Rest: bitfinex.NewRestClient(cfg.Bitfinex.RestURL),
	}

	// --- PostgreSQL (only for modes that need persistence) ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.OpportunityStore = postgres.NewOpportunityStore(pgClient.Pool())
	}

	// --- Redis ---
	if needsRedis(cfg.Mode) {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage ---
	if needsS3(cfg) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		if cfg.Archive.Enabled && deps.OpportunityStore != nil {
			store, ok := deps.OpportunityStore.(s3blob.OpportunityArchiveStore)
			if !ok {
				cleanup()
				return nil, nil, fmt.Errorf("wire: opportunity store does not support archiving")
			}
			deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.BlobReader, store)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, slog.Default())

	return deps, cleanup, nil
}
