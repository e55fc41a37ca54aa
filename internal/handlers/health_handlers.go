package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"carnumbers/internal/caching"
	"carnumbers/internal/services"

	"github.com/labstack/echo/v4"
)

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check endpoints. Cache and storage are
// optional; nil means the dependency is not configured.
type HealthHandlers struct {
	db        Pinger
	cache     caching.CacheService
	storage   services.MinioService
	bucket    string
	version   string
	startedAt time.Time
}

func NewHealthHandlers(db Pinger, cache caching.CacheService, storage services.MinioService, bucket, version string) *HealthHandlers {
	return &HealthHandlers{
		db:        db,
		cache:     cache,
		storage:   storage,
		bucket:    bucket,
		version:   version,
		startedAt: time.Now(),
	}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Uptime    string            `json:"uptime"`
	Version   string            `json:"version"`
}

// HealthCheck reports every dependency. Optional dependencies being down
// degrade the status but keep a 200.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	health := &HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  make(map[string]string),
		Uptime:    time.Since(h.startedAt).Round(time.Second).String(),
		Version:   h.version,
	}

	if err := h.db.Ping(ctx); err != nil {
		health.Services["database"] = "unhealthy"
		health.Status = "unhealthy"
	} else {
		health.Services["database"] = "healthy"
	}

	if h.cache != nil {
		if err := h.cache.Ping(ctx); err != nil {
			health.Services["cache"] = "unhealthy"
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		} else {
			health.Services["cache"] = "healthy"
		}
	}

	if h.storage != nil {
		if err := h.checkStorage(ctx); err != nil {
			health.Services["storage"] = "unhealthy"
			if health.Status == "healthy" {
				health.Status = "degraded"
			}
		} else {
			health.Services["storage"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	return c.JSON(statusCode, health)
}

func (h *HealthHandlers) checkStorage(ctx context.Context) error {
	ok, err := h.storage.BucketExists(ctx, h.bucket)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("bucket %s missing", h.bucket)
	}
	return nil
}

// ReadinessCheck fails only when the database is unreachable.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{
			"status":  "not_ready",
			"message": "database unavailable",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ready",
		"message": "All systems operational",
	})
}

func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
