package middleware

import (
	"carnumbers/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireGuildAccess rejects requests whose :guild_id differs from the
// guild in the caller's token.
func RequireGuildAccess() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetUserIDFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c)
			}
			tokenGuild, ok := common.GetGuildIDFromContext(ctx)
			if !ok {
				return common.SendUnauthorizedError(c)
			}

			pathGuild, err := common.ParseSnowflake(c.Param("guild_id"), "guild_id")
			if err != nil {
				return common.SendValidationError(c, "guild_id", err.Error())
			}
			if pathGuild != tokenGuild {
				return common.SendForbiddenError(c, "token is not valid for this guild")
			}
			return next(c)
		}
	}
}

// RequireAdmin allows only callers whose token carries the admin flag.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !common.IsAdminFromContext(c.Request().Context()) {
				return common.SendForbiddenError(c, "guild admin permission required")
			}
			return next(c)
		}
	}
}
