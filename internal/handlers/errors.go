package handlers

import (
	"errors"

	"carnumbers/internal/common"
	"carnumbers/internal/logging"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// respondError maps service errors onto the API error responses.
func respondError(c echo.Context, err error, resource string) error {
	switch {
	case errors.Is(err, common.ErrConflict):
		return common.SendConflictError(c, err.Error())
	case errors.Is(err, common.ErrNotFound):
		return common.SendNotFoundError(c, resource)
	case errors.Is(err, common.ErrUnauthorized):
		return common.SendForbiddenError(c, err.Error())
	case errors.Is(err, common.ErrOutOfRange):
		return common.SendValidationError(c, "car_number", err.Error())
	case errors.Is(err, common.ErrInvalidRange):
		return common.SendValidationError(c, "range", err.Error())
	case errors.Is(err, common.ErrInvalidInput):
		return common.SendClientError(c, err.Error())
	case errors.Is(err, common.ErrNotConfigured):
		return common.SendNotConfiguredError(c, err.Error())
	case common.IsFetchError(err):
		return common.SendRetryLaterError(c, err.Error())
	}

	logging.FromContext(c.Request().Context()).Error("request failed", zap.String("resource", resource), zap.Error(err))
	return common.SendServerError(c, "internal error")
}

// caller returns the authenticated user and the guild from the path. The
// guild middleware has already checked that they agree.
func caller(c echo.Context) (userID, guildID int64, admin bool) {
	ctx := c.Request().Context()
	userID, _ = common.GetUserIDFromContext(ctx)
	guildID, _ = common.GetGuildIDFromContext(ctx)
	return userID, guildID, common.IsAdminFromContext(ctx)
}
