package clinical

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/platform/auth"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes wires the bedside chart. Recording is restricted to
// clinical staff; any authenticated user can read a patient's history.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	clinicalStaff := auth.RequireRole(h.svc.audit,
		auth.RoleSuperAdmin, auth.RoleAdmin, auth.RoleDoctor, auth.RoleNurse)

	api.POST("/vitals", h.RecordVitals, clinicalStaff)
	api.GET("/vitals", h.VitalsHistory)

	api.POST("/allergies", h.AddAllergy, clinicalStaff)
	api.GET("/patients/:id/allergies", h.ListAllergies)
	api.DELETE("/allergies/:id", h.RemoveAllergy, clinicalStaff)

	api.POST("/medications", h.AddMedication, clinicalStaff)
	api.GET("/patients/:id/medications", h.ListMedications)
	api.DELETE("/medications/:id", h.DiscontinueMedication, clinicalStaff)
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

func validationResponse(c echo.Context, verr *ValidationError) error {
	return c.JSON(http.StatusBadRequest, map[string]interface{}{
		"message": "validation failed",
		"errors":  verr.Problems,
	})
}

func (h *Handler) RecordVitals(c echo.Context) error {
	var in VitalInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	email := auth.EmailFromContext(c.Request().Context())
	v, err := h.svc.RecordVitals(c.Request().Context(), actorID(c), email, in, requestMeta(c))
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return validationResponse(c, verr)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to record vital signs")
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"message":   "Vital signs recorded successfully",
		"vitalSign": v,
	})
}

func (h *Handler) VitalsHistory(c echo.Context) error {
	patientID, err := uuid.Parse(c.QueryParam("patientId"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Patient ID is required")
	}

	vitals, err := h.svc.VitalsHistory(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load vital signs")
	}
	if vitals == nil {
		vitals = []*VitalSign{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"vitalSigns": vitals})
}

func (h *Handler) AddAllergy(c echo.Context) error {
	var in AllergyInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	a, err := h.svc.AddAllergy(c.Request().Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return validationResponse(c, verr)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add allergy")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"allergy": a})
}

func (h *Handler) ListAllergies(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	allergies, err := h.svc.ListAllergies(c.Request().Context(), patientID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load allergies")
	}
	if allergies == nil {
		allergies = []*Allergy{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"allergies": allergies})
}

func (h *Handler) RemoveAllergy(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid allergy id")
	}

	if err := h.svc.RemoveAllergy(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "allergy not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to remove allergy")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Allergy removed"})
}

func (h *Handler) AddMedication(c echo.Context) error {
	var in MedicationInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m, err := h.svc.AddMedication(c.Request().Context(), in)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return validationResponse(c, verr)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to add medication")
	}
	return c.JSON(http.StatusCreated, map[string]interface{}{"medication": m})
}

func (h *Handler) ListMedications(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid patient id")
	}

	activeOnly := c.QueryParam("active") == "true"
	medications, err := h.svc.ListMedications(c.Request().Context(), patientID, activeOnly)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to load medications")
	}
	if medications == nil {
		medications = []*Medication{}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"medications": medications})
}

func (h *Handler) DiscontinueMedication(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid medication id")
	}

	if err := h.svc.DiscontinueMedication(c.Request().Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "medication not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to discontinue medication")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"message": "Medication discontinued"})
}
