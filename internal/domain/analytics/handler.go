package analytics

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the dashboard endpoint. Any authenticated user can
// see the counters.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/analytics/dashboard", h.Dashboard)
}

func (h *Handler) Dashboard(c echo.Context) error {
	sum, err := h.svc.Dashboard(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load dashboard")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"summary": sum})
}
