package identity

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/platform/auth"
)

const refreshCookieName = "refresh_token"

type Handler struct {
	svc *Service
	// secureCookies controls the cookie Secure flag; on when serving TLS.
	secureCookies bool
}

func NewHandler(svc *Service, secureCookies bool) *Handler {
	return &Handler{svc: svc, secureCookies: secureCookies}
}

// RegisterRoutes wires auth endpoints. Register, login, and refresh are
// public; logout and me sit behind the gate.
func (h *Handler) RegisterRoutes(public *echo.Group, protected *echo.Group) {
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.POST("/auth/refresh", h.Refresh)

	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/me", h.Me)
}

func requestMeta(c echo.Context) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func (h *Handler) Register(c echo.Context) error {
	var in RegisterInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	user, err := h.svc.Register(c.Request().Context(), in, requestMeta(c))
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "validation failed",
				"errors":  verr.Problems,
			})
		case errors.Is(err, ErrDuplicateEmail):
			return echo.NewHTTPError(http.StatusConflict, "email already registered")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "registration failed")
		}
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"success": true,
		"user":    user.Public(),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfaCode"`
}

func (h *Handler) Login(c echo.Context) error {
	var in loginRequest
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if in.Email == "" || in.Password == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "email and password are required")
	}

	result, err := h.svc.Login(c.Request().Context(), in.Email, in.Password, in.MFACode, requestMeta(c))
	if err != nil {
		var locked *LockedError
		switch {
		case errors.As(err, &locked):
			return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
				"message": fmt.Sprintf("Account locked. Try again in %d minutes.", locked.RemainingMinutes()),
			})
		case errors.Is(err, ErrMFARequired):
			return c.JSON(http.StatusUnauthorized, map[string]interface{}{
				"message":     "MFA code required",
				"requiresMfa": true,
			})
		case errors.Is(err, ErrAccountDeactivated):
			return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
		case errors.Is(err, ErrInvalidCredentials):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid email or password")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "login failed")
		}
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    result.User.Public(),
	})
}

func (h *Handler) Logout(c echo.Context) error {
	accessToken := cookieValue(c, auth.AccessCookieName)
	if accessToken == "" {
		accessToken = bearerToken(c)
	}
	refreshToken := cookieValue(c, refreshCookieName)

	h.svc.Logout(c.Request().Context(), accessToken, refreshToken, requestMeta(c))
	h.clearAuthCookies(c)

	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (h *Handler) Refresh(c echo.Context) error {
	refreshToken := cookieValue(c, refreshCookieName)
	if refreshToken == "" {
		var in struct {
			RefreshToken string `json:"refreshToken"`
		}
		if err := c.Bind(&in); err == nil {
			refreshToken = in.RefreshToken
		}
	}
	if refreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "refresh token required")
	}

	result, err := h.svc.Refresh(c.Request().Context(), refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, ErrAccountDeactivated):
			return echo.NewHTTPError(http.StatusForbidden, "account is deactivated")
		case errors.Is(err, ErrInvalidRefresh):
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "refresh failed")
		}
	}

	h.setAuthCookies(c, result.AccessToken, result.RefreshToken)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"user":    result.User.Public(),
	})
}

func (h *Handler) Me(c echo.Context) error {
	userID := auth.UserIDFromContext(c.Request().Context())
	user, err := h.svc.Me(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"user": user.Public()})
}

func (h *Handler) setAuthCookies(c echo.Context, access, refresh string) {
	c.SetCookie(h.authCookie(auth.AccessCookieName, access, h.svc.AccessTTL()))
	c.SetCookie(h.authCookie(refreshCookieName, refresh, h.svc.RefreshTTL()))
}

func (h *Handler) clearAuthCookies(c echo.Context) {
	c.SetCookie(h.authCookie(auth.AccessCookieName, "", -time.Hour))
	c.SetCookie(h.authCookie(refreshCookieName, "", -time.Hour))
}

func (h *Handler) authCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}

func cookieValue(c echo.Context, name string) string {
	cookie, err := c.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func bearerToken(c echo.Context) string {
	header := c.Request().Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}
