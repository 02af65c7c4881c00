package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"fieldops/backend/config"
	"fieldops/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubLimiter struct {
	allowed bool
	err     error
	calls   int
}

func (s *stubLimiter) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	s.calls++
	return s.allowed, s.err
}

func hit(r *gin.Engine, req *http.Request) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_Redis(t *testing.T) {
	stub := &stubLimiter{allowed: false}
	r := gin.New()
	r.GET("/r", RateLimit(stub, 10, time.Minute, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

	if code := hit(r, httptest.NewRequest("GET", "/r", nil)); code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", code)
	}
	if stub.calls != 1 {
		t.Errorf("expected redis to be consulted once, got %d", stub.calls)
	}
}

func TestRateLimit_FallbackToLocal(t *testing.T) {
	cases := map[string]WindowLimiter{
		"nil":         nil,
		"redis error": &stubLimiter{err: errors.New("dial tcp: connection refused")},
	}
	for name, limiter := range cases {
		t.Run(name, func(t *testing.T) {
			r := gin.New()
			r.GET("/r", RateLimit(limiter, 2, time.Hour, zap.NewNop()), func(c *gin.Context) { c.Status(http.StatusOK) })

			for i := 0; i < 2; i++ {
				if code := hit(r, httptest.NewRequest("GET", "/r", nil)); code != http.StatusOK {
					t.Fatalf("request %d: expected 200, got %d", i+1, code)
				}
			}
			if code := hit(r, httptest.NewRequest("GET", "/r", nil)); code != http.StatusTooManyRequests {
				t.Errorf("burst exhausted: expected 429, got %d", code)
			}
		})
	}
}

func TestJWTAuthAndRoleAuth(t *testing.T) {
	mgr := jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-key-for-unit-testing-2026", AccessTokenTTL: time.Minute, Issuer: "fieldops"})
	adminToken, _ := mgr.GenerateAccessToken("u-admin", jwt.RoleAdmin)
	techToken, _ := mgr.GenerateAccessToken("u-tech", jwt.RoleTechnician)

	r := gin.New()
	r.GET("/admin", JWTAuth(mgr), RoleAuth(jwt.RoleAdmin), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"bad scheme", "Token " + adminToken, http.StatusUnauthorized},
		{"garbage", "Bearer abc", http.StatusUnauthorized},
		{"wrong role", "Bearer " + techToken, http.StatusForbidden},
		{"admin", "Bearer " + adminToken, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/admin", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if code := hit(r, req); code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, code)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/r", RequestID(), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/r", nil)
	req.Header.Set("X-Request-ID", "req-123")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "req-123" || w.Body.String() != "req-123" {
		t.Errorf("expected request id to be propagated, got %q", w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/r", nil))
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Header().Get("X-Request-ID"))
	}
}

func TestRequestID_RejectsUnsafeHeader(t *testing.T) {
	r := gin.New()
	r.GET("/r", RequestID(), func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, rid := range []string{"abc\ninjected", "a b", strings.Repeat("x", requestIDMaxLen+1)} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/r", nil)
		req.Header.Set("X-Request-ID", rid)
		r.ServeHTTP(w, req)
		if got := w.Header().Get("X-Request-ID"); got == rid || len(got) != 36 {
			t.Errorf("expected generated uuid for %q, got %q", rid, got)
		}
	}
}

func TestLogger_RecordsActorAndRoute(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := gin.New()
	r.Use(RequestID(), Logger(zap.New(core)))
	authed := func(c *gin.Context) {
		c.Set(UserIDKey, "user-admin")
		c.Set(RoleKey, "admin")
		c.Next()
	}
	r.POST("/api/v1/leaves/:id/approve", authed, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/reschedule/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest("POST", "/api/v1/leaves/l-1/approve", nil)
	req.Header.Set("X-Request-ID", "req-1")
	hit(r, req)
	hit(r, httptest.NewRequest("GET", "/api/v1/reschedule/a-1?token=secret", nil))

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("expected 2 log entries, got %d", len(entries))
	}

	approve := entries[0].ContextMap()
	if approve["actor"] != "user-admin" || approve["role"] != "admin" {
		t.Errorf("expected actor and role, got %v", approve)
	}
	if approve["route"] != "/api/v1/leaves/:id/approve" || approve["request_id"] != "req-1" {
		t.Errorf("expected route template and request id, got %v", approve)
	}

	link := entries[1]
	if link.Level != zapcore.WarnLevel {
		t.Errorf("expected warn level for 404, got %v", link.Level)
	}
	fields := link.ContextMap()
	if _, ok := fields["actor"]; ok {
		t.Errorf("anonymous request must not carry actor, got %v", fields)
	}
	if _, ok := fields["query"]; ok {
		t.Errorf("token query must not be logged, got %v", fields)
	}
}

func TestBodyLimit_RejectsDeclaredOversize(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(16))
	r.POST("/b", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	if code := hit(r, httptest.NewRequest("POST", "/b", strings.NewReader(strings.Repeat("x", 17)))); code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", code)
	}
	if code := hit(r, httptest.NewRequest("POST", "/b", strings.NewReader("{}"))); code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", code)
	}
}

func TestSecurityHeaders(t *testing.T) {
	r := gin.New()
	r.Use(SecurityHeaders())
	r.GET("/s", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/s", nil))
	if w.Header().Get("Cache-Control") != "no-store" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("unexpected headers: %v", w.Header())
	}
}
