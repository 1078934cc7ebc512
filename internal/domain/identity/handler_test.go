package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mediflow/mediflow/internal/domain/audit"
	"github.com/mediflow/mediflow/internal/platform/auth"
)

func requestMetaForTest() audit.RequestMeta {
	return audit.RequestMeta{IPAddress: "127.0.0.1", UserAgent: "test"}
}

func newTestHandler(t *testing.T) (*Handler, *fixture) {
	t.Helper()
	f := newFixture(t)
	return NewHandler(f.svc, false), f
}

func postJSON(t *testing.T, e *echo.Echo, handler echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestLoginHandler_Success(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "doc@clinic.example", auth.RoleDoctor, true)

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login",
		`{"email":"doc@clinic.example","password":"`+testPassword+`"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Success bool `json:"success"`
		User    struct {
			Email string `json:"email"`
			Role  string `json:"role"`
		} `json:"user"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !body.Success || body.User.Email != "doc@clinic.example" || body.User.Role != auth.RoleDoctor {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}

	cookies := rec.Result().Cookies()
	var access, refresh *http.Cookie
	for _, ck := range cookies {
		switch ck.Name {
		case auth.AccessCookieName:
			access = ck
		case refreshCookieName:
			refresh = ck
		}
	}
	if access == nil || refresh == nil {
		t.Fatal("expected both auth cookies to be set")
	}
	if !access.HttpOnly || access.SameSite != http.SameSiteLaxMode {
		t.Error("access cookie must be HttpOnly with SameSite=Lax")
	}
	if access.MaxAge != int((8 * time.Hour).Seconds()) {
		t.Errorf("access cookie MaxAge = %d, want 8h", access.MaxAge)
	}
	if refresh.MaxAge != int((168 * time.Hour).Seconds()) {
		t.Errorf("refresh cookie MaxAge = %d, want 7d", refresh.MaxAge)
	}
}

func TestLoginHandler_SecureCookiesWhenTLS(t *testing.T) {
	f := newFixture(t)
	h := NewHandler(f.svc, true)
	f.addUser(t, "doc@clinic.example", auth.RoleDoctor, true)

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login",
		`{"email":"doc@clinic.example","password":"`+testPassword+`"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	for _, ck := range rec.Result().Cookies() {
		if !ck.Secure {
			t.Errorf("cookie %s must carry the Secure flag", ck.Name)
		}
	}
}

func TestLoginHandler_InvalidCredentials(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "doc@clinic.example", auth.RoleDoctor, true)

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login",
		`{"email":"doc@clinic.example","password":"wrong"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLoginHandler_MissingFields(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login", `{"email":"doc@clinic.example"}`)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestLoginHandler_Locked(t *testing.T) {
	h, f := newTestHandler(t)
	u := f.addUser(t, "doc@clinic.example", auth.RoleDoctor, true)
	until := time.Now().Add(30 * time.Minute)
	u.LockedUntil = &until
	u.FailedLoginAttempts = 5

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login",
		`{"email":"doc@clinic.example","password":"`+testPassword+`"}`)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "locked") {
		t.Errorf("body should mention lock: %s", rec.Body.String())
	}
}

func TestLoginHandler_Deactivated(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "gone@clinic.example", auth.RoleNurse, false)

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login",
		`{"email":"gone@clinic.example","password":"`+testPassword+`"}`)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestLoginHandler_MFARequired(t *testing.T) {
	h, f := newTestHandler(t)
	u := f.addUser(t, "mfa@clinic.example", auth.RoleAdmin, true)
	u.MFAEnabled = true

	e := echo.New()
	rec := postJSON(t, e, h.Login, "/api/v1/auth/login",
		`{"email":"mfa@clinic.example","password":"`+testPassword+`"}`)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var body struct {
		RequiresMFA bool `json:"requiresMfa"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if !body.RequiresMFA {
		t.Errorf("expected requiresMfa flag in body: %s", rec.Body.String())
	}
}

func TestRegisterHandler_Conflict(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "dup@clinic.example", auth.RoleNurse, true)

	e := echo.New()
	rec := postJSON(t, e, h.Register, "/api/v1/auth/register",
		`{"email":"dup@clinic.example","password":"`+testPassword+`","role":"NURSE","firstName":"D","lastName":"U"}`)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterHandler_ValidationErrors(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	rec := postJSON(t, e, h.Register, "/api/v1/auth/register",
		`{"email":"bad","password":"short","role":"WIZARD"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}

	var body struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Errors) < 3 {
		t.Errorf("expected itemized field errors, got %v", body.Errors)
	}
}

func TestRefreshHandler_FromCookie(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "doc@clinic.example", auth.RoleDoctor, true)

	login, err := f.svc.Login(httptest.NewRequest(http.MethodPost, "/", nil).Context(),
		"doc@clinic.example", testPassword, "", requestMetaForTest())
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: login.RefreshToken})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Refresh(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) < 2 {
		t.Error("expected rotated cookies on refresh")
	}
}

func TestRefreshHandler_MissingToken(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	rec := postJSON(t, e, h.Refresh, "/api/v1/auth/refresh", `{}`)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestLogoutHandler_ClearsCookies(t *testing.T) {
	h, f := newTestHandler(t)
	f.addUser(t, "doc@clinic.example", auth.RoleDoctor, true)

	login, err := f.svc.Login(httptest.NewRequest(http.MethodPost, "/", nil).Context(),
		"doc@clinic.example", testPassword, "", requestMetaForTest())
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: auth.AccessCookieName, Value: login.AccessToken})
	req.AddCookie(&http.Cookie{Name: refreshCookieName, Value: login.RefreshToken})
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.Logout(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge >= 0 {
			t.Errorf("cookie %s should be expired, MaxAge = %d", ck.Name, ck.MaxAge)
		}
	}
}
