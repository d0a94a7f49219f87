package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newLimitedHandler(store *rateLimiterStore) echo.HandlerFunc {
	return rateLimit(store)(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
}

func fromIP(e *echo.Echo, ip string) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	req.RemoteAddr = ip + ":1234"
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRateLimit_RequestsWithinLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 5; i++ {
		c, rec := fromIP(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, rec.Code)
		}
		if got := rec.Header().Get("X-RateLimit-Limit"); got != "10" {
			t.Errorf("request %d: expected X-RateLimit-Limit '10', got %q", i+1, got)
		}
	}
}

func TestRateLimit_ExceedsLimit(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 2})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	for i := 0; i < 2; i++ {
		c, _ := fromIP(e, "10.0.0.1")
		if err := handler(c); err != nil {
			t.Fatalf("request %d: expected no error, got %v", i+1, err)
		}
	}

	c, rec := fromIP(e, "10.0.0.1")
	err := handler(c)
	if err == nil {
		t.Fatal("expected error for rate-limited request")
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", httpErr.Code)
	}

	retryVal, parseErr := strconv.Atoi(rec.Header().Get("Retry-After"))
	if parseErr != nil || retryVal < 1 {
		t.Errorf("expected Retry-After >= 1, got %q", rec.Header().Get("Retry-After"))
	}
	if got := rec.Header().Get("X-RateLimit-Remaining"); got != "0" {
		t.Errorf("expected X-RateLimit-Remaining '0', got %q", got)
	}
}

func TestRateLimit_PerIPIsolation(t *testing.T) {
	e := echo.New()
	handler := RateLimit(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	c, _ := fromIP(e, "10.0.0.1")
	if err := handler(c); err != nil {
		t.Fatalf("first request: %v", err)
	}
	c, _ = fromIP(e, "10.0.0.1")
	if err := handler(c); err == nil {
		t.Fatal("second request from same IP: expected rate limit error")
	}
	c, _ = fromIP(e, "10.0.0.2")
	if err := handler(c); err != nil {
		t.Fatalf("first request from other IP: expected no error, got %v", err)
	}
}

func TestRateLimit_Refill(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 2, BurstSize: 1})
	store.now = func() time.Time { return now }
	store.lastSweep = now
	handler := newLimitedHandler(store)
	e := echo.New()

	c, _ := fromIP(e, "10.0.0.1")
	if err := handler(c); err != nil {
		t.Fatalf("first request: %v", err)
	}
	c, _ = fromIP(e, "10.0.0.1")
	if err := handler(c); err == nil {
		t.Fatal("expected second request to be limited")
	}

	now = now.Add(600 * time.Millisecond)
	c, _ = fromIP(e, "10.0.0.1")
	if err := handler(c); err != nil {
		t.Fatalf("expected refill after 600ms at 2 rps, got %v", err)
	}
}

func TestRateLimit_FirstRequestWithSingleTokenBurst(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	// Every clock read is a microsecond later than the previous one.
	store.now = func() time.Time {
		now = now.Add(time.Microsecond)
		return now
	}
	store.lastSweep = now
	handler := newLimitedHandler(store)
	e := echo.New()

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		c, rec := fromIP(e, ip)
		if err := handler(c); err != nil {
			t.Fatalf("first request from %s: expected no error, got %v", ip, err)
		}
		if rec.Code != http.StatusOK {
			t.Fatalf("first request from %s: expected 200, got %d", ip, rec.Code)
		}
	}
}

func TestTokenBucket_EarlierClockReadDoesNotDrain(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := newTokenBucket(1, 1, now)
	if !b.allow(now.Add(-time.Millisecond)) {
		t.Fatal("expected a full bucket to admit a request stamped before its creation")
	}
	if b.allow(now) {
		t.Fatal("expected the single token to be spent")
	}
}

func TestRateLimiterStore_SweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	store := newRateLimiterStore(DefaultRateLimitConfig())
	store.now = func() time.Time { return now }
	store.lastSweep = now

	store.getBucket("10.0.0.1", now)
	now = now.Add(idleTTL + time.Second)
	store.sweep(now)

	if len(store.buckets) != 0 {
		t.Errorf("expected idle bucket to be swept, have %d", len(store.buckets))
	}
}

func TestRateLimit_DefaultConfig(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 5 {
		t.Errorf("expected RequestsPerSecond 5, got %f", cfg.RequestsPerSecond)
	}
	if cfg.BurstSize != 20 {
		t.Errorf("expected BurstSize 20, got %d", cfg.BurstSize)
	}
}

func TestTokenBucket_RetryAfterWithZeroRate(t *testing.T) {
	now := time.Now()
	b := newTokenBucket(0, 1, now)
	b.allow(now)
	if ra := b.retryAfter(); ra != 1 {
		t.Errorf("expected retryAfter 1 for zero rate, got %d", ra)
	}
}

func TestRateLimiterStore_SameKeySameBucket(t *testing.T) {
	store := newRateLimiterStore(RateLimitConfig{RequestsPerSecond: 10, BurstSize: 5})
	now := time.Now()

	b1 := store.getBucket("key1", now)
	if b1 == nil {
		t.Fatal("expected non-nil bucket")
	}
	if b2 := store.getBucket("key1", now); b1 != b2 {
		t.Error("expected same bucket instance for same key")
	}
	if b3 := store.getBucket("key2", now); b1 == b3 {
		t.Error("expected different bucket for different key")
	}
}
