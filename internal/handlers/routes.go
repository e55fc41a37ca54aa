package handlers

import (
	"net/http"

	"carnumbers/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Health       *HealthHandlers
	Reservations *ReservationHandlers
	Tenants      *TenantHandlers
	Sync         *SyncHandlers
	Audit        *AuditLogsHandlers
}

// RegisterRoutes wires the public health endpoints and the guild API.
func RegisterRoutes(e *echo.Echo, h *Handlers, auth echo.MiddlewareFunc, gatherer prometheus.Gatherer) {
	e.GET("/health", h.Health.HealthCheck)
	e.GET("/health/ready", h.Health.ReadinessCheck)
	e.GET("/health/live", h.Health.LivenessCheck)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	admin := middleware.RequireAdmin()
	g := e.Group("/v1/guilds/:guild_id", auth, middleware.RequireGuildAccess())

	g.GET("/config", h.Tenants.GetConfig)
	g.PUT("/config", h.Tenants.UpdateConfig, admin)

	g.GET("/reservations", h.Reservations.ListReservations)
	g.POST("/reservations", h.Reservations.ClaimNumber)
	g.GET("/reservations/:number", h.Reservations.GetReservation)
	g.DELETE("/reservations/:number", h.Reservations.ReleaseNumber)
	g.GET("/members/me/reservations", h.Reservations.ListMyReservations)
	g.POST("/members/me/link", h.Reservations.LinkMember)
	g.GET("/available", h.Reservations.Available)

	g.POST("/sync", h.Sync.SyncGuild, admin)
	g.GET("/sync/status", h.Sync.SyncStatus)

	g.GET("/audit", h.Audit.ListAuditLogs, admin)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "route not found"})
	})
}
