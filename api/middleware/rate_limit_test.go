package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestWebhookRateLimitPerIP(t *testing.T) {
	limiter := NewIPRateLimiter(60, 2)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	handler := WebhookRateLimit(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/square", nil)
		req.RemoteAddr = ip + ":443"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.1"))
	require.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	require.Equal(t, http.StatusOK, send("10.0.0.2"))

	// one token refills per second at 60/min
	fixed = fixed.Add(time.Second)
	require.Equal(t, http.StatusOK, send("10.0.0.1"))
}

func TestWebhookRateLimitDropsIdleVisitors(t *testing.T) {
	limiter := NewIPRateLimiter(60, 1)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return fixed }

	require.True(t, limiter.allow("10.0.0.9"))
	fixed = fixed.Add(limiterIdleTTL + time.Minute)
	require.True(t, limiter.allow("10.0.0.10"))
	require.Len(t, limiter.visitors, 1)
}

func TestActionRateLimitUserLimit(t *testing.T) {
	store := newFakeRateStore()
	policy := NewActionRateLimitPolicy("donations", time.Minute, 0, 2)
	handler := ActionRateLimit(policy, store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/donations", nil)
		req = req.WithContext(WithUserID(req.Context(), "user-1"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if i < 2 {
			require.Equal(t, http.StatusCreated, rec.Code)
		} else {
			require.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
	require.Equal(t, int64(3), store.counts["donations:user:user-1"])
}

func TestActionRateLimitDisabledPolicyPassesThrough(t *testing.T) {
	handler := ActionRateLimit(NewActionRateLimitPolicy("x", 0, 1, 1), newFakeRateStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for i := 0; i < 5; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIPPrefersForwardedHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:1234"
	require.Equal(t, "10.1.1.1", clientIP(req))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.1.1.1")
	require.Equal(t, "203.0.113.7", clientIP(req))
}
