package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/platform/token"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserRoleKey  contextKey = "user_role"
)

// AccessCookieName is the cookie checked before the Authorization header.
const AccessCookieName = "access_token"

// Gate authenticates requests. Credentials are looked up cookie-first: the
// access_token cookie wins, then a Bearer token in the Authorization header.
type Gate struct {
	tokens  *token.Service
	revoked *TokenRevocationStore
}

// NewGate creates an authentication gate backed by the given token service
// and revocation store.
func NewGate(tokens *token.Service, revoked *TokenRevocationStore) *Gate {
	return &Gate{tokens: tokens, revoked: revoked}
}

// Middleware returns echo middleware that rejects unauthenticated requests
// with 401 and populates the request context with the caller's identity.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := extractToken(c)
			if tokenStr == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			claims, err := g.tokens.VerifyAccess(tokenStr)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			if g.revoked != nil && g.revoked.IsRevoked(claims.ID) {
				return echo.NewHTTPError(http.StatusUnauthorized, "token has been revoked")
			}

			c.Set("user_id", claims.UserID)
			c.Set("user_email", claims.Email)
			c.Set("user_role", claims.Role)
			c.Set("token_jti", claims.ID)
			// exp is optional in jwt/v5; a signed token without one must
			// not panic the gate.
			if claims.ExpiresAt != nil {
				c.Set("token_expires_at", claims.ExpiresAt.Time)
			}

			ctx := c.Request().Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			ctx = context.WithValue(ctx, UserRoleKey, claims.Role)
			c.SetRequest(c.Request().WithContext(ctx))

			return next(c)
		}
	}
}

// extractToken returns the access token from the cookie if present, falling
// back to a Bearer Authorization header.
func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	authHeader := c.Request().Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

// UserIDFromContext returns the authenticated user's ID, or "" if the
// request was not authenticated.
func UserIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

// EmailFromContext returns the authenticated user's email.
func EmailFromContext(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

// RoleFromContext returns the authenticated user's role.
func RoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(UserRoleKey).(string)
	return role
}
