package provider

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/platform/auth"
)

type Handler struct {
	svc     *Service
	denials auth.DenialRecorder
}

func NewHandler(svc *Service, denials auth.DenialRecorder) *Handler {
	return &Handler{svc: svc, denials: denials}
}

// RegisterRoutes wires the provider directory. Any authenticated staff
// member can read the full list; only admins manage profiles. The public
// group serves the unauthenticated marketing subset.
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	api.GET("/providers", h.List)
	api.GET("/providers/:id", h.Get)

	admin := api.Group("/providers", auth.RequireRole(h.denials, auth.RoleSuperAdmin, auth.RoleAdmin))
	admin.POST("", h.Create)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Deactivate)

	public.GET("/public/providers", h.PublicList)
}

func (h *Handler) List(c echo.Context) error {
	providers, err := h.svc.List(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list providers")
	}
	if providers == nil {
		providers = []*Provider{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"providers": providers,
		"total":     len(providers),
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}

	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "provider not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load provider")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"provider": p})
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Create(c.Request().Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "validation failed",
				"errors":  verr.Problems,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create provider")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"provider": p})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}

	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Update(c.Request().Context(), id, in)
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "validation failed",
				"errors":  verr.Problems,
			})
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "provider not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update provider")
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"provider": p})
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
	}

	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "provider not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to deactivate provider")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Provider deactivated"})
}

// PublicList serves the unauthenticated provider directory.
func (h *Handler) PublicList(c echo.Context) error {
	views, err := h.svc.PublicList(c.Request().Context())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list providers")
	}
	if views == nil {
		views = []PublicView{}
	}
	return c.JSON(http.StatusOK, views)
}
