package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/omaralj/propwatch/internal/blob/s3"
	"github.com/omaralj/propwatch/internal/cache/redis"
	"github.com/omaralj/propwatch/internal/config"
	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/notify"
	"github.com/omaralj/propwatch/internal/source"
	"github.com/omaralj/propwatch/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Listings domain.ListingStore
	History  domain.PriceHistoryStore
	Metrics  domain.MetricStore
	Alerts   domain.AlertStore
	Jobs     domain.ScrapeJobStore

	// Caches
	MetricCache domain.MetricCache
	Locks       domain.LockManager
	Bus         domain.SignalBus

	// Blob storage (nil unless s3.enabled)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Portal providers (empty in server mode)
	Providers []source.Provider

	// Notifications
	Notifier *notify.Notifier
}

// needsProviders returns true for modes that run the collection pipeline.
func needsProviders(mode string) bool {
	switch mode {
	case "ingest", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
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

	pool := pgClient.Pool()
	deps.Listings = postgres.NewListingStore(pool)
	deps.History = postgres.NewPriceHistoryStore(pool)
	deps.Metrics = postgres.NewMetricStore(pool)
	deps.Alerts = postgres.NewAlertStore(pool)
	deps.Jobs = postgres.NewScrapeJobStore(pool)

	// --- Redis ---
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

	deps.MetricCache = redis.NewMetricCache(redisClient)
	deps.Locks = redis.NewLockManager(redisClient)
	deps.Bus = redis.NewSignalBus(redisClient)

	// --- S3 cold storage (optional) ---
	if cfg.S3.Enabled {
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
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Jobs, deps.History, logger)
	}

	// --- Portal providers ---
	if needsProviders(cfg.Mode) {
		for _, src := range cfg.Ingest.Sources {
			if !src.Enabled {
				continue
			}
			provider, err := source.New(src.Name, src.FeedURL)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: source %s: %w", src.Name, err)
			}
			deps.Providers = append(deps.Providers, provider)
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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.AlertTypes, logger)

	return deps, cleanup, nil
}
