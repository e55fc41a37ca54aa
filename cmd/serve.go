package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"carnumbers/internal/handlers"
	"carnumbers/internal/jobs/background"
	"carnumbers/internal/middleware"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic roster sync",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	auth := middleware.AuthConfig{Secret: cfg.JWTSecret}
	var jwks *keyfunc.JWKS
	if cfg.JWKSURL != "" {
		jwks, err = middleware.NewJWKSKeyfunc(cfg.JWKSURL)
		if err != nil {
			return err
		}
		defer jwks.EndBackground()
		auth.KeyFunc = jwks.Keyfunc
	}
	authMiddleware, err := middleware.JWTMiddleware(auth)
	if err != nil {
		return err
	}

	schedCfg := background.Config{
		SyncInterval: cfg.SyncInterval,
		SyncOnStart:  cfg.SyncOnStart,
		Logger:       logger.Named("scheduler"),
	}
	if a.redis != nil {
		schedCfg.Locker = background.NewRedisLocker(a.redis, cfg.SyncInterval)
	}
	scheduler, err := background.NewJobScheduler(a.sweeper, schedCfg)
	if err != nil {
		return err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.RemoveTrailingSlash())
	e.Use(middleware.RequestLogger(logger.Named("http")))

	handlers.RegisterRoutes(e, &handlers.Handlers{
		Health:       handlers.NewHealthHandlers(a.pool, a.cache, a.storage, cfg.MinioBucket, version),
		Reservations: handlers.NewReservationHandlers(a.reservations, a.availability),
		Tenants:      handlers.NewTenantHandlers(a.tenants),
		Sync:         handlers.NewSyncHandlers(a.rosterSync, a.syncStatus, a.reservations, scheduler),
		Audit:        handlers.NewAuditLogsHandlers(a.auditLogs),
	}, authMiddleware, a.registry)

	scheduler.Start()

	addr := fmt.Sprintf(":%d", cfg.Port)
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr), zap.String("version", version))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			_ = scheduler.Stop()
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
	if err := scheduler.Stop(); err != nil {
		logger.Error("scheduler shutdown failed", zap.Error(err))
	}
	return nil
}
