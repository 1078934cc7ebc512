package prescription

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/platform/auth"
)

func doCreate(t *testing.T, h *Handler, role string, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/prescriptions", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	ctx := context.WithValue(req.Context(), auth.UserIDKey, uuid.New().String())
	ctx = context.WithValue(ctx, auth.UserRoleKey, role)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := h.Create(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func validBody(t *testing.T) string {
	t.Helper()
	b, err := json.Marshal(validInput())
	if err != nil {
		t.Fatalf("marshal input: %v", err)
	}
	return string(b)
}

func TestCreateHandler_DoctorAllowed(t *testing.T) {
	svc, _ := newTestService(newMockRepo())
	h := NewHandler(svc)

	rec := doCreate(t, h, auth.RoleDoctor, validBody(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateHandler_NurseForbidden(t *testing.T) {
	svc, sink := newTestService(newMockRepo())
	h := NewHandler(svc)

	rec := doCreate(t, h, auth.RoleNurse, validBody(t))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Only doctors can prescribe medications") {
		t.Errorf("body = %s, want the prescribing denial message", rec.Body.String())
	}

	// The denial lands in the audit trail.
	found := false
	for _, e := range sink.entries {
		if e.Action == "UNAUTHORIZED_ACCESS" {
			found = true
		}
	}
	if !found {
		t.Error("expected an UNAUTHORIZED_ACCESS audit entry")
	}
}

func TestCreateHandler_AdminForbidden(t *testing.T) {
	svc, _ := newTestService(newMockRepo())
	h := NewHandler(svc)

	// Exact role match: plain ADMIN cannot prescribe.
	rec := doCreate(t, h, auth.RoleAdmin, validBody(t))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
