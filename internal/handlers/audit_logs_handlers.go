package handlers

import (
	"net/http"
	"strconv"

	"carnumbers/internal/common"
	"carnumbers/internal/services"

	"github.com/labstack/echo/v4"
)

type AuditLogsHandlers struct {
	auditLogsService services.AuditLogsService
}

func NewAuditLogsHandlers(auditLogsService services.AuditLogsService) *AuditLogsHandlers {
	return &AuditLogsHandlers{
		auditLogsService: auditLogsService,
	}
}

// ListAuditLogs returns the newest entries; limit defaults to 10, max 50.
func (h *AuditLogsHandlers) ListAuditLogs(c echo.Context) error {
	_, guildID, _ := caller(c)

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return common.SendValidationError(c, "limit", "limit must be an integer")
		}
		limit = parsed
	}

	entries, err := h.auditLogsService.Recent(c.Request().Context(), guildID, limit)
	if err != nil {
		return respondError(c, err, "audit log")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
