package middleware

import (
	"time"

	"consent-console/internal/ports"
	"github.com/labstack/echo/v4"
)

func RequestLogger(logger ports.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			started := time.Now()
			err := next(c)
			if err != nil {
				// Let echo write the response so the logged status is final.
				c.Error(err)
			}
			duration := time.Since(started)
			ctx := c.Request().Context()
			args := []any{
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"route_pattern", c.Path(),
				"status", c.Response().Status,
				"duration", duration.String(),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				args = append(args, "request_id", id)
			}
			if user := UserID(c); user != "" {
				args = append(args, "user_id", user)
			}
			if err != nil {
				logger.Warn(ctx, "http request failed", append(args, "error", err.Error())...)
				return nil
			}
			logger.Info(ctx, "http request", args...)
			return nil
		}
	}
}
