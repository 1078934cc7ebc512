package scheduling

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/domain/patient"
	"github.com/mediflow/mediflow/internal/platform/auth"
	"github.com/mediflow/mediflow/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the appointment book. Clinical and front-desk staff
// manage appointments; the public group exposes the self-booking funnel.
func (h *Handler) RegisterRoutes(api *echo.Group, public *echo.Group) {
	staff := api.Group("/appointments", auth.RequireRole(h.svc.audit,
		auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse, auth.RoleReceptionist))
	staff.GET("", h.List)
	staff.POST("", h.Create)
	staff.GET("/:id", h.Get)
	staff.PUT("/:id", h.Update)
	staff.PUT("/:id/status", h.SetStatus)

	public.POST("/public/appointments", h.PublicBook)
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

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("providerId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid provider id")
		}
		f.ProviderID = &id
	}
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("date"); v != "" {
		d, err := time.Parse("2006-01-02", v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "date must be YYYY-MM-DD")
		}
		f.Date = &d
	}
	f.Status = c.QueryParam("status")

	pg := pagination.FromContext(c)
	appointments, total, err := h.svc.List(c.Request().Context(), f, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list appointments")
	}
	if appointments == nil {
		appointments = []*Appointment{}
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appointments, total, pg.Limit, pg.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.Create(c.Request().Context(), actorID(c), in, requestMeta(c))
	if err != nil {
		return appointmentError(c, err, "failed to create appointment")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":     "Appointment created successfully",
		"appointment": a,
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	a, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load appointment")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointment": a})
}

func (h *Handler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var in Input
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.Update(c.Request().Context(), actorID(c), id, in, requestMeta(c))
	if err != nil {
		return appointmentError(c, err, "failed to update appointment")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointment": a})
}

func (h *Handler) SetStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid appointment id")
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.SetStatus(c.Request().Context(), actorID(c), id, body.Status, requestMeta(c))
	if err != nil {
		return appointmentError(c, err, "failed to update appointment")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"appointment": a})
}

// PublicBook serves the unauthenticated booking funnel.
func (h *Handler) PublicBook(c echo.Context) error {
	var req BookingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	conf, err := h.svc.PublicBook(c.Request().Context(), req, requestMeta(c))
	if err != nil {
		switch {
		case errors.Is(err, ErrSlotTaken):
			return echo.NewHTTPError(http.StatusConflict, "Time slot already booked")
		default:
			var verr *ValidationError
			if errors.As(err, &verr) {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"message": "validation failed",
					"errors":  verr.Problems,
				})
			}
			var perr *patient.ValidationError
			if errors.As(err, &perr) {
				return c.JSON(http.StatusBadRequest, map[string]interface{}{
					"message": "validation failed",
					"errors":  perr.Problems,
				})
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "Failed to book appointment. Please try again.")
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":            true,
		"confirmationNumber": conf.ConfirmationNumber,
		"appointmentId":      conf.AppointmentID,
		"message":            "Appointment booked successfully",
	})
}

func appointmentError(c echo.Context, err error, fallback string) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"message": "validation failed",
			"errors":  verr.Problems,
		})
	case errors.Is(err, ErrSlotTaken):
		return echo.NewHTTPError(http.StatusConflict, "Time slot already booked")
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "appointment not found")
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, fallback)
	}
}
