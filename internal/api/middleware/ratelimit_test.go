package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tmbmaps/tmbmaps/internal/api/middleware"
)

func hit(handler http.Handler, remoteAddr, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, http.NoBody)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitByIP_AllowsWithinLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 5,
		WindowLength: time.Minute,
	})(http.HandlerFunc(okHandler))

	for i := 0; i < 5; i++ {
		rec := hit(handler, "192.168.1.1:12345", "/test")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should be allowed", i+1)
	}
}

func TestRateLimitByIP_BlocksOverLimit(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 3,
		WindowLength: 30 * time.Second,
	})(http.HandlerFunc(okHandler))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "10.0.0.1:12345", "/test").Code)
	}

	rec := hit(handler, "10.0.0.1:12345", "/test")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "Rate limit exceeded")
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
}

func TestRateLimitByIP_DifferentIPsHaveSeparateLimits(t *testing.T) {
	handler := middleware.RateLimitByIP(middleware.RateLimitConfig{
		RequestLimit: 2,
		WindowLength: time.Minute,
	})(http.HandlerFunc(okHandler))

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.1:12345", "/test").Code)
	}

	assert.Equal(t, http.StatusTooManyRequests, hit(handler, "172.16.0.1:12345", "/test").Code)
	assert.Equal(t, http.StatusOK, hit(handler, "172.16.0.2:12345", "/test").Code)
}

func TestRateLimitExceededResponse_Format(t *testing.T) {
	handler := middleware.RequestID(
		middleware.RateLimitByIP(middleware.RateLimitConfig{
			RequestLimit: 1,
			WindowLength: time.Minute,
		})(http.HandlerFunc(okHandler)),
	)

	assert.Equal(t, http.StatusOK, hit(handler, "203.0.113.1:12345", "/v1/bus/stops").Code)

	rec := hit(handler, "203.0.113.1:12345", "/v1/bus/stops")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	body := rec.Body.String()
	assert.Contains(t, body, "too-many-requests")
	assert.Contains(t, body, "Rate limit exceeded")
	assert.Contains(t, body, "/v1/bus/stops")
}

func TestDefaultRateLimitConfigs(t *testing.T) {
	assert.Equal(t, 60, middleware.UpstreamRateLimit.RequestLimit)
	assert.Equal(t, 20, middleware.BulkRateLimit.RequestLimit)
	assert.Equal(t, 100, middleware.StandardRateLimit.RequestLimit)

	for _, cfg := range []middleware.RateLimitConfig{
		middleware.UpstreamRateLimit,
		middleware.BulkRateLimit,
		middleware.StandardRateLimit,
	} {
		assert.Equal(t, time.Minute, cfg.WindowLength)
	}
}
