package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"hostel-hub.backend/internal/infrastructure/datasources/migrations"
	"hostel-hub.backend/internal/infrastructure/repositories"
	"hostel-hub.backend/internal/interfaces/http/handlers"
	"hostel-hub.backend/internal/interfaces/http/middleware"
	"hostel-hub.backend/internal/usecases"
	"hostel-hub.backend/pkg/jwt"
	"hostel-hub.backend/pkg/redis"
)

type captureMailer struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (m *captureMailer) SendVerification(_ context.Context, to, _, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		m.tokens = map[string]string{}
	}
	m.tokens[to] = token
	return nil
}

func (m *captureMailer) SendWelcome(context.Context, string, string, string) error { return nil }

func (m *captureMailer) token(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens[to]
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func newTestServer(t *testing.T) (*gin.Engine, *captureMailer) {
	return newTestServerWith(t, 10, nil)
}

func newTestServerWith(t *testing.T, limit int, trustedProxies []string) (*gin.Engine, *captureMailer) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:routes_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migrations.Up(context.Background(), sqlDB, migrations.DialectSQLite))

	userRepo := repositories.NewUserRepository(db)
	jwtService := jwt.NewJWTService("secret", time.Hour, "hostel-hub")
	mailer := &captureMailer{}
	uc := usecases.NewAuthUsecase(
		usecases.NewCredentialStore(userRepo),
		usecases.NewVerificationIssuer(userRepo, 15*time.Minute),
		repositories.NewUnitOfWork(db),
		jwtService,
		mailer,
		usecases.AuthConfig{AdminEmail: "boss@x.com"},
	)

	r, err := newRouter(routeDeps{
		authHandler:    handlers.NewAuthHandler(uc),
		adminHandler:   handlers.NewAdminHandler(uc),
		authMiddleware: middleware.AuthMiddleware(jwtService),
		loginLimiter:   middleware.LoginRateLimit(limit, time.Minute),
		trustedProxies: trustedProxies,
	})
	require.NoError(t, err)
	return r, mailer
}

func serve(r http.Handler, req *http.Request) (int, map[string]interface{}) {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	var body map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec.Code, body
}

func bearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRoutes_RegistrationToSession(t *testing.T) {
	r, mailer := newTestServer(t)

	status, body := serve(r, jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"name":"Ann","email":"ann@x.com","password":"secret123"}`))
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "student", body["user"].(map[string]interface{})["role"])

	status, body = serve(r, jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ann@x.com","password":"secret123"}`))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, true, body["needsVerification"])

	token := mailer.token("ann@x.com")
	require.Len(t, token, 64)
	status, _ = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email/"+token, nil))
	require.Equal(t, http.StatusOK, status)

	status, body = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/auth/verify-email/"+token, nil))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_TOKEN", body["code"])

	status, body = serve(r, jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ann@x.com","password":"secret123"}`))
	require.Equal(t, http.StatusOK, status)
	session := body["token"].(string)

	status, body = serve(r, bearer(httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil), session))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["user"].(map[string]interface{})["isEmailVerified"])

	status, _ = serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = serve(r, bearer(httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/stats", nil), session))
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["code"])
}

func TestRoutes_AdminStats(t *testing.T) {
	r, _ := newTestServer(t)

	status, _ := serve(r, jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"name":"Boss","email":"boss@x.com","password":"secret123","role":"admin"}`))
	require.Equal(t, http.StatusCreated, status)

	status, body := serve(r, jsonRequest(http.MethodPost, "/api/v1/auth/register", `{"name":"Agent","email":"agent@x.com","password":"secret123","role":"agent"}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "PHONE_REQUIRED", body["code"])

	status, body = serve(r, jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"boss@x.com","password":"secret123"}`))
	require.Equal(t, http.StatusOK, status)
	session := body["token"].(string)

	status, body = serve(r, bearer(httptest.NewRequest(http.MethodGet, "/api/v1/admin/users/stats", nil), session))
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 1, body["admin"])
	assert.EqualValues(t, 0, body["student"])
}

func TestRoutes_HealthMetricsAndCORS(t *testing.T) {
	r, _ := newTestServer(t)

	status, body := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	raw, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `route="/health"`)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRegisterAPIV1Routes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerAPIV1Routes(r, routeDeps{
		authHandler:    &handlers.AuthHandler{},
		adminHandler:   &handlers.AdminHandler{},
		authMiddleware: func(c *gin.Context) { c.Next() },
		loginLimiter:   func(c *gin.Context) { c.Next() },
	})

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/auth/register",
		"POST /api/v1/auth/login",
		"POST /api/v1/auth/verify",
		"GET /api/v1/auth/verify-email/:token",
		"POST /api/v1/auth/resend-verification",
		"GET /api/v1/auth/me",
		"PATCH /api/v1/auth/me",
		"POST /api/v1/auth/change-password",
		"GET /api/v1/admin/users/stats",
	} {
		assert.True(t, registered[want], "route %s not registered", want)
	}
}

func withMiniRedis(t *testing.T) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	redis.SetClient(client)
	t.Cleanup(func() {
		redis.SetClient(nil)
		_ = client.Close()
	})
}

func loginFrom(r http.Handler, remoteAddr, forwardedFor string) int {
	req := jsonRequest(http.MethodPost, "/api/v1/auth/login", `{"email":"ghost@x.com","password":"secret123"}`)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes_LoginLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	withMiniRedis(t)
	r, _ := newTestServerWith(t, 2, nil)

	var codes []int
	for i := 0; i < 4; i++ {
		codes = append(codes, loginFrom(r, "203.0.113.7:4000", fmt.Sprintf("198.51.100.%d", i)))
	}
	assert.Equal(t, []int{
		http.StatusUnauthorized, http.StatusUnauthorized,
		http.StatusTooManyRequests, http.StatusTooManyRequests,
	}, codes)
}

func TestRoutes_LoginLimitHonoursTrustedProxy(t *testing.T) {
	withMiniRedis(t)
	r, _ := newTestServerWith(t, 1, []string{"10.0.0.1"})

	// each forwarded client gets its own window behind the trusted proxy
	assert.Equal(t, http.StatusUnauthorized, loginFrom(r, "10.0.0.1:5000", "198.51.100.1"))
	assert.Equal(t, http.StatusUnauthorized, loginFrom(r, "10.0.0.1:5000", "198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, loginFrom(r, "10.0.0.1:5000", "198.51.100.1"))
}

func TestNewRouter_RejectsBadTrustedProxy(t *testing.T) {
	gin.SetMode(gin.TestMode)
	_, err := newRouter(routeDeps{
		authHandler:    &handlers.AuthHandler{},
		adminHandler:   &handlers.AdminHandler{},
		authMiddleware: func(c *gin.Context) { c.Next() },
		loginLimiter:   func(c *gin.Context) { c.Next() },
		trustedProxies: []string{"not-an-ip"},
	})
	require.Error(t, err)
}
