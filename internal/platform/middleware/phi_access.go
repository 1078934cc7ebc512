package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/platform/auth"
)

// PHIAccessLog returns middleware that emits a structured log line for every
// request under /api/v1/, capturing who touched which record from where.
// This is the always-on operational trail; the durable audit log is written
// by the domain services themselves.
func PHIAccessLog(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !strings.HasPrefix(path, "/api/v1/") {
				return next(c)
			}

			err := next(c)

			ctx := req.Context()
			rid, _ := c.Get("request_id").(string)

			logger.Info().
				Str("type", "phi_access").
				Str("request_id", rid).
				Str("user_id", auth.UserIDFromContext(ctx)).
				Str("user_role", auth.RoleFromContext(ctx)).
				Str("resource", resourceFromPath(path)).
				Str("method", req.Method).
				Str("path", path).
				Str("remote_ip", c.RealIP()).
				Int("status", c.Response().Status).
				Msg("phi_access")

			return err
		}
	}
}

// resourceFromPath parses the collection name from a URL path.
//
//	/api/v1/patients      -> patients
//	/api/v1/patients/123  -> patients
func resourceFromPath(path string) string {
	segments := strings.Split(strings.TrimPrefix(path, "/api/v1/"), "/")
	if len(segments) > 0 && segments[0] != "" {
		return segments[0]
	}
	return "unknown"
}
