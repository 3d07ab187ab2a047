package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/citydirectory/directory-backend/pkg/errors"
)

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	limiter := newFakeLimiter()
	policy := NewRateLimitPolicy("reviews", time.Minute, 2, 0)
	handler := RateLimit(policy, limiter, nil)(okHandler())

	for i := 0; i < 2; i++ {
		rec := serve(handler, "1.2.3.4:5678", "")
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
	}
}

func TestRateLimit_IPLimitTriggers(t *testing.T) {
	limiter := newFakeLimiter()
	policy := NewRateLimitPolicy("reviews", time.Minute, 1, 0)
	handler := RateLimit(policy, limiter, nil)(okHandler())

	if rec := serve(handler, "1.2.3.4:5678", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	rec := serve(handler, "1.2.3.4:9999", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeRateLimit) {
		t.Fatalf("unexpected code: %s", payload.Error.Code)
	}

	if rec := serve(handler, "5.6.7.8:1000", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected other ip to pass, got %d", rec.Code)
	}
}

func TestRateLimit_UserLimitSpansAddresses(t *testing.T) {
	limiter := newFakeLimiter()
	policy := NewRateLimitPolicy("submissions", time.Minute, 0, 1)
	handler := RateLimit(policy, limiter, nil)(okHandler())

	if rec := serve(handler, "1.2.3.4:5678", "user-1"); rec.Code != http.StatusOK {
		t.Fatalf("expected first request to pass, got %d", rec.Code)
	}
	if rec := serve(handler, "9.9.9.9:5678", "user-1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
}

func TestRateLimit_UsesForwardedFor(t *testing.T) {
	limiter := newFakeLimiter()
	policy := NewRateLimitPolicy("reviews", time.Minute, 5, 0)
	handler := RateLimit(policy, limiter, nil)(okHandler())

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if _, ok := limiter.counts["reviews:ip:203.0.113.7"]; !ok {
		t.Fatalf("expected forwarded ip scope, got %v", limiter.counts)
	}
}

func TestRateLimit_LimiterFailureIsDependencyError(t *testing.T) {
	limiter := newFakeLimiter()
	limiter.err = errors.New("redis down")
	policy := NewRateLimitPolicy("reviews", time.Minute, 5, 0)
	handler := RateLimit(policy, limiter, nil)(okHandler())

	if rec := serve(handler, "1.2.3.4:5678", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestRateLimit_DisabledPolicyPassesThrough(t *testing.T) {
	policy := NewRateLimitPolicy("reviews", 0, 1, 1)
	handler := RateLimit(policy, nil, nil)(okHandler())
	for i := 0; i < 3; i++ {
		if rec := serve(handler, "1.2.3.4:5678", ""); rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serve(handler http.Handler, remoteAddr, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/businesses/x/reviews", nil)
	req.RemoteAddr = remoteAddr
	if userID != "" {
		req = req.WithContext(WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

type fakeLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeLimiter() *fakeLimiter {
	return &fakeLimiter{counts: map[string]int64{}}
}

func (f *fakeLimiter) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	count := f.counts[scope]
	return count <= limit, count, nil
}
