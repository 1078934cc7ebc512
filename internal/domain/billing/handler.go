package billing

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

// RegisterRoutes wires invoicing, restricted to the billing office.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	billing := api.Group("/invoices", auth.RequireRole(h.svc.audit,
		auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleBillingStaff))
	billing.GET("", h.List)
	billing.POST("", h.Create)
	billing.GET("/:id", h.Get)
	billing.PUT("/:id/status", h.SetStatus)
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
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inv, err := h.svc.Create(c.Request().Context(), actorID(c), in, requestMeta(c))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return c.JSON(http.StatusBadRequest, map[string]interface{}{
				"message": "validation failed",
				"errors":  verr.Problems,
			})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create invoice")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message": "Invoice created successfully",
		"invoice": inv,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}

	inv, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load invoice")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invoice": inv})
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
	invoices, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list invoices")
	}
	if invoices == nil {
		invoices = []*Invoice{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(invoices, total, pg.Limit, pg.Offset))
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid invoice id")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	inv, err := h.svc.SetStatus(c.Request().Context(), id, body.Status)
	if err != nil {
		switch {
		case errors.Is(err, ErrBadTransition):
			return echo.NewHTTPError(http.StatusConflict, err.Error())
		case errors.Is(err, ErrNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "invoice not found")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to update invoice")
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"invoice": inv})
}
