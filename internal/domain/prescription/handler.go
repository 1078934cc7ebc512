package prescription

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/platform/auth"
	"github.com/mediflow/mediflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires e-prescribing. Any authenticated staff member can
// read; prescribing itself is checked in the handler so the denial carries
// the domain-specific message.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/prescriptions", h.List)
	api.GET("/prescriptions/:id", h.Get)
	api.POST("/prescriptions", h.Create)

	pharmacy := api.Group("/prescriptions", auth.RequireRole(h.svc.audit,
		auth.RoleSuperAdmin, auth.RoleDoctor, auth.RolePharmacist))
	pharmacy.PUT("/:id/status", h.SetStatus)
}

func actorID(c echo.Context) uuid.UUID {
	id, _ := uuid.Parse(auth.UserIDFromContext(c.Request().Context()))
	return id
}

func requestMeta(c echo.Context) audit.RequestMeta {
	return audit.RequestMeta{
		IPAddress: c.RealIP(),
		UserAgent: c.Request().UserAgent(),
	}
}

func (h *Handler) Create(c echo.Context) error {
	role := auth.RoleFromContext(c.Request().Context())
	if role != auth.RoleSuperAdmin && role != auth.RoleDoctor {
		h.svc.audit.RecordDenied(c.Request().Context(),
			auth.UserIDFromContext(c.Request().Context()), c.Request().Method, c.Path(),
			c.RealIP(), c.Request().UserAgent())
		return echo.NewHTTPError(http.StatusForbidden, "Only doctors can prescribe medications")
	}

	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	p, err := h.svc.Create(c.Request().Context(), actorID(c), in, requestMeta(c))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "validation failed",
				"errors":  verr.Problems,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create prescription")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":      "Prescription created successfully",
		"prescription": p,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}

	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load prescription")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"prescription": p})
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		f.PatientID = &id
	}
	f.Status = c.QueryParam("status")

	pg := pagination.FromContext(c)
	prescriptions, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list prescriptions")
	}
	if prescriptions == nil {
		prescriptions = []*Prescription{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(prescriptions, total, pg.Limit, pg.Offset))
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid prescription id")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.svc.SetStatus(c.Request().Context(), id, body.Status); err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "validation failed",
				"errors":  verr.Problems,
			})
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "prescription not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update prescription")
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Prescription updated"})
}
