package audit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/platform/auth"
	"github.com/mediflow/mediflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	admin := api.Group("/audit", auth.RequireRole(h.svc, auth.RoleSuperAdmin, auth.RoleAdmin))
	admin.GET("", h.List)
	admin.GET("/entity/:type/:id", h.ListByEntity)
	admin.GET("/user/:id", h.ListByUser)
	admin.GET("/user/:id/anomalies", h.UserAnomalies)
	admin.GET("/anomalies", h.Anomalies)
}

// timeRange parses the optional from/to query params. Values are accepted
// as RFC 3339 timestamps or plain dates.
func timeRange(c echo.Context) (TimeRange, error) {
	var rng TimeRange
	for _, p := range []struct {
		name string
		dst  *time.Time
	}{
		{"from", &rng.From},
		{"to", &rng.To},
	} {
		raw := c.QueryParam(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			ts, err = time.Parse("2006-01-02", raw)
		}
		if err != nil {
			return TimeRange{}, fmt.Errorf("%s must be an RFC 3339 timestamp or YYYY-MM-DD date", p.name)
		}
		*p.dst = ts
	}
	return rng, nil
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	entries, total, err := h.svc.Query(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to query audit log")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByEntity(c echo.Context) error {
	rng, err := timeRange(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pg := pagination.FromContext(c)
	entries, total, err := h.svc.QueryByEntity(c.Request().Context(), c.Param("type"), c.Param("id"), rng, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to query audit log")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) ListByUser(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}
	rng, err := timeRange(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	pg := pagination.FromContext(c)
	entries, total, err := h.svc.QueryByUser(c.Request().Context(), userID, rng, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to query audit log")
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(entries, total, pg.Limit, pg.Offset))
}

func (h *Handler) UserAnomalies(c echo.Context) error {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid user id")
	}

	suspicious, reasons, err := h.svc.DetectUserAnomalies(c.Request().Context(), userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to detect anomalies")
	}
	if reasons == nil {
		reasons = []string{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"suspicious": suspicious,
		"reasons":    reasons,
	})
}

func (h *Handler) Anomalies(c echo.Context) error {
	anomalies, err := h.svc.DetectAnomalies(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to detect anomalies")
	}
	if anomalies == nil {
		anomalies = []Anomaly{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"anomalies": anomalies})
}
