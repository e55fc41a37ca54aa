package main

import (
	"context"
	"fmt"

	"carnumbers/internal/caching"
	"carnumbers/internal/config"
	"carnumbers/internal/iracing"
	"carnumbers/internal/jobs"
	"carnumbers/internal/logging"
	"carnumbers/internal/metrics"
	"carnumbers/internal/repositories"
	"carnumbers/internal/services"
	"carnumbers/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// app holds the dependencies shared by serve and sync.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	pool     *pgxpool.Pool
	redis    *redis.Client
	cache    caching.CacheService
	storage  services.MinioService

	tenantRepo repositories.TenantRepository

	reservations services.ReservationService
	availability services.AvailabilityService
	tenants      services.TenantService
	auditLogs    services.AuditLogsService
	syncStatus   *jobs.SyncStatusTracker
	rosterSync   *jobs.RosterSyncService
	sweeper      *jobs.Sweeper
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(logging.Config{Component: "carnumbers", Level: cfg.LogLevel})
	if err != nil {
		return nil, nil, fmt.Errorf("create logger: %w", err)
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(a.registry)

	pool, err := database.NewPool(ctx, database.PoolConfig{
		ConnString:      cfg.DatabaseURL,
		MaxConns:        cfg.DBMaxConns,
		MaxConnLifetime: cfg.DBConnLifetime,
	}, logger)
	if err != nil {
		return nil, err
	}
	a.pool = pool
	if err := database.Migrate(ctx, pool); err != nil {
		a.Close()
		return nil, err
	}

	a.cache = caching.NewNopCacheService()
	if cfg.CacheEnabled() {
		client, err := caching.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.redis = client
		a.cache = caching.NewRedisCacheService(client, logger)
	} else {
		logger.Info("REDIS_ADDR not set, availability cache and distributed locking disabled")
	}

	archive := services.NewNopSnapshotArchive()
	if cfg.ArchiveEnabled() {
		storage, err := services.NewMinioService(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioUseSSL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create minio client: %w", err)
		}
		if err := storage.EnsureBucketExists(ctx, cfg.MinioBucket); err != nil {
			logger.Warn("roster snapshot bucket unavailable", zap.String("bucket", cfg.MinioBucket), zap.Error(err))
		}
		a.storage = storage
		archive = services.NewSnapshotArchive(storage, cfg.MinioBucket, logger)
	}

	var (
		fetcher iracing.RosterFetcher
		lookup  iracing.MemberLookup
		leagues iracing.LeagueLookup
	)
	if cfg.RosterSyncEnabled() {
		client, err := iracing.NewClient(iracing.Config{
			BaseURL:  cfg.IRacingBaseURL,
			Username: cfg.IRacingUsername,
			Password: cfg.IRacingPassword,
			Timeout:  cfg.FetchTimeout,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create iracing client: %w", err)
		}
		fetcher, lookup, leagues = client, client, client
	} else {
		logger.Warn("iRacing credentials not set, roster sync passes will fail and claims are not verified")
	}

	a.tenantRepo = repositories.NewTenantRepo(pool)
	reservationRepo := repositories.NewReservationRepo(pool)
	auditRepo := repositories.NewAuditLogsRepo(pool)

	a.reservations = services.NewReservationService(services.ReservationServiceDeps{
		Reservations:  reservationRepo,
		Tenants:       a.tenantRepo,
		Cache:         a.cache,
		Lookup:        lookup,
		Metrics:       a.metrics,
		Logger:        logger.Named("reservations"),
		VerifyTimeout: cfg.VerifyTimeout,
	})
	a.availability = services.NewAvailabilityService(reservationRepo, a.tenantRepo, a.cache, cfg.AvailabilityCacheTTL, a.metrics, logger)
	a.tenants = services.NewTenantService(a.tenantRepo, a.cache, leagues, cfg.VerifyTimeout, logger)
	a.auditLogs = services.NewAuditLogsService(auditRepo)

	a.syncStatus = jobs.NewSyncStatusTracker()
	a.rosterSync = jobs.NewRosterSyncService(jobs.RosterSyncConfig{
		Tenants:      a.tenantRepo,
		Applier:      a.reservations,
		Fetcher:      fetcher,
		Archive:      archive,
		Status:       a.syncStatus,
		Metrics:      a.metrics,
		Logger:       logger.Named("sync"),
		FetchTimeout: cfg.FetchTimeout,
	})
	a.sweeper = jobs.NewSweeper(a.tenantRepo, a.rosterSync, cfg.SyncConcurrency, a.metrics, logger.Named("sweep"))
	return a, nil
}

// Close waits for background verifications and releases connections.
func (a *app) Close() {
	if a.reservations != nil {
		a.reservations.Wait()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("closing cache failed", zap.Error(err))
		}
	}
	if a.pool != nil {
		database.ClosePool(a.pool)
	}
	_ = a.logger.Sync()
}
