package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/journalsystem/portal/internal/platform/auth"
)

func doLimited(h echo.HandlerFunc, e *echo.Echo, userID string) (*httptest.ResponseRecorder, error) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/inbox", nil)
	if userID != "" {
		req = req.WithContext(auth.WithIdentity(req.Context(), userID, nil))
	}
	rec := httptest.NewRecorder()
	return rec, h(e.NewContext(req, rec))
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(okHandler)

	for i := 0; i < 5; i++ {
		rec, err := doLimited(h, e, "")
		if err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Header().Get("X-RateLimit-Limit") != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit 10, got %q", i+1, rec.Header().Get("X-RateLimit-Limit"))
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(okHandler)

	for i := 0; i < 2; i++ {
		if _, err := doLimited(h, e, ""); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	rec, err := doLimited(h, e, "")
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %v", err)
	}
	retry, convErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if convErr != nil || retry < 1 {
		t.Errorf("expected positive Retry-After, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("expected X-RateLimit-Remaining 0, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimit_SeparateBucketsPerUser(t *testing.T) {
	e := echo.New()
	h := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(okHandler)

	if _, err := doLimited(h, e, "alice"); err != nil {
		t.Fatalf("alice first request: %v", err)
	}
	if _, err := doLimited(h, e, "alice"); err == nil {
		t.Fatal("alice second request should be limited")
	}
	if _, err := doLimited(h, e, "bob"); err != nil {
		t.Fatalf("bob must have his own bucket: %v", err)
	}
}

func TestLimiterPool_Defaults(t *testing.T) {
	p := newLimiterPool(RateLimitConfig{})
	def := DefaultRateLimitConfig()
	if p.cfg.RequestsPerSecond != def.RequestsPerSecond || p.cfg.BurstSize != def.BurstSize || p.cfg.IdleTTL != def.IdleTTL {
		t.Errorf("expected defaults, got %+v", p.cfg)
	}
}

func TestLimiterPool_EvictsIdle(t *testing.T) {
	p := newLimiterPool(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1, IdleTTL: time.Minute})
	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	p.get("ip:10.0.0.1")
	p.get("ip:10.0.0.2")
	if p.size() != 2 {
		t.Fatalf("expected 2 limiters, got %d", p.size())
	}

	now = now.Add(2 * time.Minute)
	p.get("ip:10.0.0.3")
	if p.size() != 1 {
		t.Errorf("expected idle limiters to be evicted, got %d", p.size())
	}
}
