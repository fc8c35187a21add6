package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polyarb/internal/arbitrage"
	s3blob "github.com/alanyoungcy/polyarb/internal/blob/s3"
	"github.com/alanyoungcy/polyarb/internal/cache/memory"
	"github.com/alanyoungcy/polyarb/internal/cache/redis"
	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/feed"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/service"
	"github.com/alanyoungcy/polyarb/internal/store/postgres"
)

// Dependencies bundles everything the modes need. It is constructed by Wire
// and torn down by the returned cleanup function. Optional backends are nil
// when disabled in the configuration.
type Dependencies struct {
	// Records
	Sources     []domain.RecordSource
	FileSources []domain.RecordSource
	Fetcher     *service.Fetcher
	Scanner     *arbitrage.Scanner

	// Caches
	Cache       domain.ResultCache
	MemoryCache *memory.ResultCache // set when the memory backend is used
	Locks       domain.LockManager
	RateLimiter domain.RateLimiter
	Bus         *redis.SignalBus

	// Stores
	RecordStore domain.RecordStore
	ScanStore   domain.ScanStore

	// Blob storage
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Health checks keyed by dependency name.
	Checks map[string]handler.Check
}

// scannerConfig maps the scan section onto the scanner thresholds.
func scannerConfig(sc config.ScanConfig) arbitrage.Config {
	return arbitrage.Config{
		MinSpreadPercent: sc.MinSpreadPercent,
		MinMatchScore:    sc.MinMatchScore,
		Limit:            sc.ResultLimit,
		TimeBudget:       sc.TimeBudget.Duration,
		SlugOverlap:      sc.SlugOverlapThreshold,
		TokenFloor:       sc.CandidateSharedTokenFloor,
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(what string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf("wire: %s: %w", what, err)
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- PostgreSQL ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			return fail("postgres", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail("postgres migrations", err)
			}
		}

		pool := pgClient.Pool()
		deps.RecordStore = postgres.NewRecordStore(pool)
		deps.ScanStore = postgres.NewScanStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail("redis", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Locks = redis.NewLockManager(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Checks["redis"] = redisClient.Ping
		if cfg.Cache.Backend == "redis" {
			deps.Cache = redis.NewResultCache(redisClient, logger)
		}
	}
	if deps.Cache == nil {
		deps.MemoryCache = memory.NewResultCache()
		deps.Cache = deps.MemoryCache
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			Prefix:         cfg.S3.Prefix,
		})
		if err != nil {
			return fail("s3", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client))
		deps.Checks["s3"] = s3Client.Health
	}

	// --- Record sources ---
	for _, sc := range cfg.Feed.Sources {
		var src domain.RecordSource
		switch sc.Kind {
		case "file":
			fs := feed.NewFileSource(sc.Platform, sc.Path, logger)
			deps.FileSources = append(deps.FileSources, fs)
			src = fs
		case "postgres":
			if deps.RecordStore == nil {
				return fail("sources", fmt.Errorf("source %q needs supabase.enabled", sc.Platform))
			}
			src = feed.NewStoreSource(sc.Platform, deps.RecordStore, cfg.Feed.MaxRecordAge.Duration)
		default:
			return fail("sources", fmt.Errorf("unknown source kind %q", sc.Kind))
		}
		deps.Sources = append(deps.Sources, src)
	}

	deps.Fetcher = service.NewFetcher(deps.Sources, service.FetchConfig{
		MinVolume:     cfg.Feed.MinVolume,
		MaxConcurrent: cfg.Feed.MaxConcurrentFetches,
		MaxAge:        cfg.Feed.MaxRecordAge.Duration,
		Timeout:       cfg.Feed.FetchTimeout.Duration,
	}, logger)
	deps.Scanner = arbitrage.NewScanner(scannerConfig(cfg.Scan), logger)

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
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
