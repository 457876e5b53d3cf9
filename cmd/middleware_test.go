package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
)

type staticAuthorizer string

func (s staticAuthorizer) Authorize(_ context.Context, token string) bool {
	return string(s) == "" || token == string(s)
}

func newMiddlewareEngine(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/", handlers...)
	return r
}

func TestRateLimitMiddleware(t *testing.T) {
	log, hook := test.NewNullLogger()
	limiter := NewIPRateLimiter(0.001, 2)
	defer limiter.Stop()
	r := newMiddlewareEngine(RateLimitMiddleware(limiter, log))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)
	assert.NotNil(t, hook.LastEntry())

	// 其他 IP 不受影响
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestIPRateLimiter_Cleanup(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	defer limiter.Stop()

	limiter.GetLimiter("a")
	limiter.GetLimiter("b")
	limiter.mu.Lock()
	limiter.clients["a"].lastSeen = time.Now().Add(-10 * time.Minute)
	limiter.mu.Unlock()

	limiter.cleanup(time.Now())

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}

func TestGatewayAuthMiddleware_TokenSources(t *testing.T) {
	r := newMiddlewareEngine(GatewayAuthMiddleware(staticAuthorizer("gw")))

	cases := []struct {
		name   string
		setup  func(*http.Request)
		status int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer gw") }, http.StatusOK},
		{"raw header", func(r *http.Request) { r.Header.Set("Authorization", "gw") }, http.StatusOK},
		{"x-api-key", func(r *http.Request) { r.Header.Set("x-api-key", "gw") }, http.StatusOK},
		{"wrong", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code)
		})
	}

	open := newMiddlewareEngine(GatewayAuthMiddleware(staticAuthorizer("")))
	w := httptest.NewRecorder()
	open.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(corsMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
