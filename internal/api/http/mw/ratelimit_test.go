package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimit_AllowsWithinBurst(t *testing.T) {
	_, client := setupTestRedis(t)

	m := NewRateLimit(client, RateLimitConfig{
		ByIP: RateBucket{RefillPerSec: 1, Burst: 5, TTL: time.Minute},
	})
	h := m.Handler(okHandler())

	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/reports/x", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, "request %d inside burst must pass", i)
	}
}

func TestRateLimit_RejectsWhenBucketEmpty(t *testing.T) {
	_, client := setupTestRedis(t)

	m := NewRateLimit(client, RateLimitConfig{
		ByIP: RateBucket{RefillPerSec: 1, Burst: 2, TTL: time.Minute},
	})
	h := m.Handler(okHandler())

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/reports/x", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		last = httptest.NewRecorder()
		h.ServeHTTP(last, req)
	}

	assert.Equal(t, http.StatusTooManyRequests, last.Code)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
}

func TestRateLimit_DistinctIPsHaveOwnBuckets(t *testing.T) {
	_, client := setupTestRedis(t)

	m := NewRateLimit(client, RateLimitConfig{
		ByIP: RateBucket{RefillPerSec: 1, Burst: 1, TTL: time.Minute},
	})
	h := m.Handler(okHandler())

	req1 := httptest.NewRequest(http.MethodGet, "/", nil)
	req1.RemoteAddr = "10.0.0.3:1234"
	rec1 := httptest.NewRecorder()
	h.ServeHTTP(rec1, req1)
	require.Equal(t, http.StatusOK, rec1.Code)

	// same IP again -> empty bucket
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req1)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)

	// another IP untouched
	req3 := httptest.NewRequest(http.MethodGet, "/", nil)
	req3.RemoteAddr = "10.0.0.4:1234"
	rec3 := httptest.NewRecorder()
	h.ServeHTTP(rec3, req3)
	assert.Equal(t, http.StatusOK, rec3.Code)
}

func TestRateLimit_XForwardedForWins(t *testing.T) {
	_, client := setupTestRedis(t)

	m := NewRateLimit(client, RateLimitConfig{
		ByIP: RateBucket{RefillPerSec: 1, Burst: 1, TTL: time.Minute},
	})
	h := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// different forwarded client behind the same proxy still passes
	req2 := httptest.NewRequest(http.MethodGet, "/", nil)
	req2.RemoteAddr = "10.0.0.5:1234"
	req2.Header.Set("X-Forwarded-For", "203.0.113.8")
	rec2 := httptest.NewRecorder()
	h.ServeHTTP(rec2, req2)
	assert.Equal(t, http.StatusOK, rec2.Code)
}

func TestRateLimit_RedisDownFailsOpen(t *testing.T) {
	mr, client := setupTestRedis(t)
	mr.Close()

	m := NewRateLimit(client, RateLimitConfig{
		ByIP: RateBucket{RefillPerSec: 1, Burst: 1, TTL: time.Minute},
	})
	h := m.Handler(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.6:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
