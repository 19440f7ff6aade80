package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dishevent/dishevent-server/identity"
	"github.com/dishevent/dishevent-server/logger"
	"github.com/dishevent/dishevent-server/models"
	"github.com/dishevent/dishevent-server/repository"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubResolver map[string]identity.Identity

func (s stubResolver) Resolve(tok string) (identity.Identity, error) {
	if id, ok := s[tok]; ok {
		return id, nil
	}
	return identity.Identity{}, identity.ErrInvalidToken
}

var resolver = stubResolver{"good": {UserID: "alice", Email: "alice@example.com"}}

func whoami(c *gin.Context) {
	id := CurrentIdentity(c)
	fromCtx, _ := identity.FromContext(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"user": id.UserID, "ctx": fromCtx.UserID})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthSession(t *testing.T) {
	r := gin.New()
	r.GET("/me", AuthSession(resolver, DefaultSessionCookie), whoami)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "good"})
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"alice","ctx":"alice"}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "forged"})
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"UNAUTHORIZED"`)
}

func TestAuthSession_NotConfigured(t *testing.T) {
	var bridge *identity.Bridge
	r := gin.New()
	r.GET("/me", AuthSession(bridge, DefaultSessionCookie), whoami)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "anything"})
	w := serve(r, req)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_CONFIGURATION_ERROR")
}

func TestOptionalSession(t *testing.T) {
	r := gin.New()
	r.GET("/me", OptionalSession(resolver, DefaultSessionCookie), whoami)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":"","ctx":""}`, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "forged"})
	assert.Equal(t, http.StatusOK, serve(r, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "good"})
	assert.JSONEq(t, `{"user":"alice","ctx":"alice"}`, serve(r, req).Body.String())
}

func TestCheckEventOwner(t *testing.T) {
	store := repository.NewMemoryStore()
	require.NoError(t, store.Events().Create(context.Background(), &models.Event{
		ID: "ev1", OwnerID: "alice", Kind: models.KindWedding, Name: "W", Version: 1,
	}))

	bobResolver := stubResolver{"good": {UserID: "alice"}, "bob": {UserID: "bob"}}
	r := gin.New()
	handler := func(c *gin.Context) {
		ev, ok := EventFromContext(c)
		require.True(t, ok)
		c.String(http.StatusOK, ev.ID)
	}
	auth := AuthSession(bobResolver, DefaultSessionCookie)
	r.GET("/events/:id", auth, CheckEventOwner(store.Events()), handler)
	r.PUT("/events/:id", auth, CheckEventOwner(store.Events()), handler)

	call := func(method, path, tok string) int {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		return serve(r, req).Code
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/events/ev1", "good"))
	assert.Equal(t, http.StatusOK, call(http.MethodPut, "/events/ev1", "good"))
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/events/ev1", "bob"))
	assert.Equal(t, http.StatusForbidden, call(http.MethodPut, "/events/ev1", "bob"))
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/events/missing", "good"))
}

func TestRateLimitByIP(t *testing.T) {
	rl := NewIPRateLimiter(1, 2, time.Minute)
	t.Cleanup(rl.Stop)

	r := gin.New()
	r.POST("/unlock", RateLimitByIP(rl), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/unlock", nil)
		req.RemoteAddr = ip + ":1234"
		return serve(r, req).Code
	}
	assert.Equal(t, http.StatusNoContent, post("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, post("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, post("10.0.0.1"))
	assert.Equal(t, http.StatusNoContent, post("10.0.0.2"))
}

func TestIPRateLimiter_EvictsIdle(t *testing.T) {
	rl := NewIPRateLimiter(60, 1, time.Minute)
	t.Cleanup(rl.Stop)

	rl.Allow("10.0.0.1")
	rl.evictIdle(time.Now())
	assert.Len(t, rl.visitors, 1)
	rl.evictIdle(time.Now().Add(2 * time.Minute))
	assert.Empty(t, rl.visitors)
}

func TestClassifyRoute(t *testing.T) {
	cases := map[string]RouteClass{
		"/dashboard":       RouteProtected,
		"/dashboard/stats": RouteProtected,
		"/events/new":      RouteProtected,
		"/events/abc/edit": RouteProtected,
		"/account":         RouteProtected,
		"/login":           RouteAuthOnly,
		"/signup":          RouteAuthOnly,
		"/":                RoutePublic,
		"/events/abc":      RoutePublic,
		"/e/abc":           RoutePublic,
		"/dashboardx":      RoutePublic,
	}
	for p, want := range cases {
		assert.Equal(t, want, ClassifyRoute(p), p)
	}
}

func TestDecideRoute(t *testing.T) {
	d := DecideRoute("/events/abc/edit", false)
	assert.Equal(t, ActionRedirectToLogin, d.Action)
	assert.Equal(t, "/login?next=%2Fevents%2Fabc%2Fedit", d.Location)

	assert.Equal(t, ActionRender, DecideRoute("/events/abc/edit", true).Action)

	d = DecideRoute("/login", true)
	assert.Equal(t, ActionRedirectToApp, d.Action)
	assert.Equal(t, "/dashboard", d.Location)

	assert.Equal(t, ActionRender, DecideRoute("/login", false).Action)
	assert.Equal(t, ActionRender, DecideRoute("/events/abc", false).Action)
}

func TestRouteGuard(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>shell</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	r := gin.New()
	r.NoRoute(RouteGuard(resolver, DefaultSessionCookie, dir))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "good"})
	w = serve(r, req)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "good"})
	w = serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "shell")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console.log")

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/nothing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouteGuard_NoShell(t *testing.T) {
	r := gin.New()
	r.NoRoute(RouteGuard(resolver, DefaultSessionCookie, ""))

	w := serve(r, httptest.NewRequest(http.MethodGet, "/events/abc", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), AccessLog())
	r.GET("/x", func(c *gin.Context) {
		id, _ := c.Request.Context().Value(logger.RequestIDKey).(string)
		c.String(http.StatusOK, id)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	w := serve(r, req)
	assert.Equal(t, "req-123", w.Body.String())
	assert.Equal(t, "req-123", w.Header().Get(HeaderRequestID))

	w = serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.NotEmpty(t, w.Body.String())
	assert.Equal(t, w.Body.String(), w.Header().Get(HeaderRequestID))
}
