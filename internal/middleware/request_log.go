package middleware

import (
	"time"

	"carnumbers/internal/common"
	"carnumbers/internal/logging"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const RequestIDHeader = "X-Request-ID"

// RequestLogger tags each request with an id, puts a request-scoped
// logger on the context and logs the outcome once the handler returns.
func RequestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			requestID := req.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			c.Response().Header().Set(RequestIDHeader, requestID)

			reqLogger := logger.With(zap.String("request_id", requestID))
			c.SetRequest(req.WithContext(logging.WithLogger(req.Context(), reqLogger)))

			err := next(c)
			if err != nil {
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("route", c.Path()),
				zap.Int("status", c.Response().Status),
				zap.Duration("latency", time.Since(start)),
			}
			ctx := c.Request().Context()
			if userID, ok := common.GetUserIDFromContext(ctx); ok {
				fields = append(fields, zap.Int64("user_id", userID))
			}
			if guildID, ok := common.GetGuildIDFromContext(ctx); ok {
				fields = append(fields, zap.Int64("guild_id", guildID))
			}

			switch status := c.Response().Status; {
			case status >= 500:
				reqLogger.Error("request failed", fields...)
			case status >= 400:
				reqLogger.Info("request rejected", fields...)
			default:
				reqLogger.Debug("request served", fields...)
			}
			return nil
		}
	}
}
