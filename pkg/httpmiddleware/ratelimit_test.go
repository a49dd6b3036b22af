package httpmiddleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limited(t *testing.T, cfg RateLimitConfig) http.Handler {
	t.Helper()
	return RateLimit(cfg)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func hitFrom(handler http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsWithinWindow(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 5, Window: time.Minute})

	for i := range 5 {
		w := hitFrom(handler, "10.20.0.7:41000")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_RejectionBody(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 2, Window: time.Minute})

	for range 2 {
		w := hitFrom(handler, "10.20.0.8:41000")
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := hitFrom(handler, "10.20.0.8:41000")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// Rejections carry the same {code, message} body as handler errors.
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["code"])
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimit_BucketsPerClient(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	assert.Equal(t, http.StatusOK, hitFrom(handler, "10.20.0.9:41000").Code)
	assert.Equal(t, http.StatusOK, hitFrom(handler, "10.20.0.10:41000").Code)

	// Same client on a new source port is still the same bucket.
	assert.Equal(t, http.StatusTooManyRequests, hitFrom(handler, "10.20.0.9:52000").Code)
}

func TestRateLimit_KeyedByAPIKey(t *testing.T) {
	handler := limited(t, RateLimitConfig{
		Max:    1,
		Window: time.Minute,
		KeyFunc: func(r *http.Request) string {
			return r.Header.Get("X-API-Key")
		},
	})

	hit := func(key string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
		req.Header.Set("X-API-Key", key)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit("dev-member-pune"))
	assert.Equal(t, http.StatusTooManyRequests, hit("dev-member-pune"))
	assert.Equal(t, http.StatusOK, hit("dev-member-nagpur"))
}

func TestRateLimit_TrustsForwardedFor(t *testing.T) {
	handler := limited(t, RateLimitConfig{Max: 1, Window: time.Minute})

	hit := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/product", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", "203.0.113.50, 10.20.0.1")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// The first forwarded hop identifies the client across proxy instances.
	assert.Equal(t, http.StatusOK, hit("10.20.0.1:4444"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.20.0.2:5555"))
}
