package handlers

import (
	"net/http"

	"carnumbers/internal/common"
	"carnumbers/internal/services"

	"github.com/labstack/echo/v4"
)

// TenantHandlers serve the per-guild configuration.
type TenantHandlers struct {
	tenantService services.TenantService
}

func NewTenantHandlers(tenantService services.TenantService) *TenantHandlers {
	return &TenantHandlers{tenantService: tenantService}
}

func (h *TenantHandlers) GetConfig(c echo.Context) error {
	_, guildID, _ := caller(c)

	tenant, err := h.tenantService.Get(c.Request().Context(), guildID)
	if err != nil {
		return respondError(c, err, "Guild configuration")
	}
	return c.JSON(http.StatusOK, tenant)
}

// UpdateConfig applies a partial configuration (admin only).
func (h *TenantHandlers) UpdateConfig(c echo.Context) error {
	userID, guildID, _ := caller(c)

	var req services.ConfigureTenantRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request body")
	}
	req.GuildID = guildID

	result, err := h.tenantService.Configure(c.Request().Context(), userID, &req)
	if err != nil {
		return respondError(c, err, "Guild configuration")
	}
	return c.JSON(http.StatusOK, result)
}
