package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sandeshsk12/port/config"
)

func limitedRouter(cfg config.RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(cfg))
	r.GET("/status", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/job", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func doRequest(r *gin.Engine, method, path string) int {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_JobStartDrawsMoreBurst(t *testing.T) {
	// Burst covers one job start plus change, and the refill rate is
	// negligible within the test, so the second POST must be refused
	// while cheap polls still pass.
	r := limitedRouter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: jobStartCost + 1})

	if code := doRequest(r, http.MethodPost, "/job"); code != http.StatusOK {
		t.Fatalf("first job start: status = %d, want 200", code)
	}
	if code := doRequest(r, http.MethodGet, "/status"); code != http.StatusOK {
		t.Errorf("poll after job start: status = %d, want 200", code)
	}
	if code := doRequest(r, http.MethodPost, "/job"); code != http.StatusTooManyRequests {
		t.Errorf("second job start: status = %d, want 429", code)
	}
}

func TestRateLimit_SetsRetryAfterOnRejection(t *testing.T) {
	r := limitedRouter(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("first request: status = %d, want 200", w.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("429 response should carry a Retry-After header")
	}
}
