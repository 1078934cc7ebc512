package middleware

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/mediflow/mediflow/internal/platform/auth"
)

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := mw(func(c echo.Context) error {
		// Drain the body so wrapping readers are exercised.
		if c.Request().Body != nil {
			if _, err := io.ReadAll(c.Request().Body); err != nil {
				return err
			}
		}
		return c.NoContent(http.StatusOK)
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec, c
}

func TestRequestID_Generated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, c := runMiddleware(t, RequestID(), req)

	rid, _ := c.Get("request_id").(string)
	if rid == "" {
		t.Fatal("expected a request ID to be generated")
	}
	if got := rec.Header().Get(echo.HeaderXRequestID); got != rid {
		t.Errorf("response header = %q, want %q", got, rid)
	}
}

func TestRequestID_HonorsIncoming(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderXRequestID, "upstream-id")
	_, c := runMiddleware(t, RequestID(), req)

	if rid, _ := c.Get("request_id").(string); rid != "upstream-id" {
		t.Errorf("request_id = %q, want upstream-id", rid)
	}
}

func TestSecurityHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := runMiddleware(t, SecurityHeaders(), req)

	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Referrer-Policy":           "no-referrer",
		"Cache-Control":             "no-store",
	}
	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("%s = %q, want %q", header, got, expected)
		}
	}
}

func TestRateLimit_AllowsWithinBudget(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 100, BurstSize: 10})

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec, _ := runMiddleware(t, mw, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, rec.Code)
		}
	}
}

func TestRateLimit_RejectsBeyondBurst(t *testing.T) {
	// Near-zero refill so the bucket stays drained within the test.
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 2})

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec, _ := runMiddleware(t, mw, req)
		statuses = append(statuses, rec.Code)
	}

	if statuses[0] != http.StatusOK || statuses[1] != http.StatusOK {
		t.Errorf("first two requests should pass, got %v", statuses)
	}
	if statuses[2] != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", statuses[2])
	}
}

func TestRateLimit_RemainingHeaderCountsDown(t *testing.T) {
	mw := RateLimit(RateLimitConfig{RequestsPerSecond: 0.001, BurstSize: 5})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := runMiddleware(t, mw, req)
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "4" {
		t.Errorf("X-RateLimit-Remaining = %q, want 4", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ = runMiddleware(t, mw, req)
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "3" {
		t.Errorf("X-RateLimit-Remaining = %q, want 3", got)
	}
}

func TestRateLimiterStore_SweepsIdleBuckets(t *testing.T) {
	store := newRateLimiterStore(DefaultRateLimitConfig())
	now := time.Now()

	stale := store.getBucket("10.0.0.1", now)
	stale.mu.Lock()
	stale.lastSeen = now.Add(-bucketIdleTTL - time.Minute)
	stale.mu.Unlock()

	// A new client triggers the sweep.
	store.getBucket("10.0.0.2", now)

	store.mu.RLock()
	_, ok := store.buckets["10.0.0.1"]
	store.mu.RUnlock()
	if ok {
		t.Error("expected the idle bucket to be swept")
	}
}

func TestBodyLimit_WithinLimit(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small body"))
	rec, _ := runMiddleware(t, BodyLimit("1K"), req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestBodyLimit_ContentLengthRejected(t *testing.T) {
	body := strings.Repeat("x", 2048)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec, _ := runMiddleware(t, BodyLimit("1K"), req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"1K", 1 << 10},
		{"1M", 1 << 20},
		{"2M", 2 << 20},
		{"1G", 1 << 30},
		{"512", 512},
		{"", 1 << 20},
		{"garbage", 1 << 20},
	}
	for _, tt := range tests {
		if got := parseLimit(tt.in); got != tt.want {
			t.Errorf("parseLimit(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestLogger_PassesThrough(t *testing.T) {
	logger := zerolog.Nop()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec, _ := runMiddleware(t, Logger(logger), req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestLogger_SkipsHealthProbes(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	runMiddleware(t, Logger(logger), req)
	if buf.Len() != 0 {
		t.Errorf("expected no log line for /health, got %s", buf.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	runMiddleware(t, Logger(logger), req)
	if !strings.Contains(buf.String(), `"path":"/api/v1/patients"`) {
		t.Errorf("expected a request line, got %s", buf.String())
	}
}

func TestLogger_IncludesAuthenticatedUser(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	req = req.WithContext(context.WithValue(req.Context(), auth.UserIDKey, "user-77"))
	runMiddleware(t, Logger(logger), req)

	if !strings.Contains(buf.String(), `"user_id":"user-77"`) {
		t.Errorf("expected the actor in the request line, got %s", buf.String())
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Recovery(zerolog.Nop())(func(c echo.Context) error {
		panic("boom")
	})
	if err := handler(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestResourceFromPath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/patients", "patients"},
		{"/api/v1/patients/abc-123", "patients"},
		{"/api/v1/appointments/abc/vitals", "appointments"},
		{"/api/v1/", "unknown"},
	}
	for _, tt := range tests {
		if got := resourceFromPath(tt.path); got != tt.want {
			t.Errorf("resourceFromPath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestPHIAccessLog_SkipsNonAPIRoutes(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec, _ := runMiddleware(t, PHIAccessLog(zerolog.Nop()), req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}
