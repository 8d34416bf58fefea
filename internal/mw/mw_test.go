package mw

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"golang.org/x/time/rate"

	"greenhouse-backend/internal/auth"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func perform(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(NewIPRateLimiter(rate.Limit(1), 2).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)
	assert.Equal(t, http.StatusOK, perform(r, http.MethodGet, "/", nil).Code)
	w := perform(r, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestIPRateLimiter_Prune(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.GetLimiter("10.0.0.1")
	now = now.Add(time.Hour)
	l.GetLimiter("10.0.0.2")

	assert.Equal(t, 1, l.Prune(30*time.Minute))
	assert.Len(t, l.visitors, 1)
	assert.Contains(t, l.visitors, "10.0.0.2")
}

func TestIPRateLimiter_RunPruner(t *testing.T) {
	defer goleak.VerifyNone(t)

	l := NewIPRateLimiter(rate.Limit(1), 1)
	l.GetLimiter("10.0.0.1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.RunPruner(ctx, 5*time.Millisecond, 0)
	}()

	assert.Eventually(t, func() bool {
		l.mu.Lock()
		defer l.mu.Unlock()
		return len(l.visitors) == 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("pruner did not stop after cancel")
	}
}

func TestCache_HitAndFlush(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	calls := 0

	r := gin.New()
	r.Use(FlushOnWrite(store), Cache(store, time.Minute))
	r.GET("/items", func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.POST("/items", func(c *gin.Context) { c.Status(http.StatusCreated) })
	r.POST("/fail", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	first := perform(r, http.MethodGet, "/items", nil)
	second := perform(r, http.MethodGet, "/items", nil)
	assert.JSONEq(t, `{"calls":1}`, second.Body.String())
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))

	perform(r, http.MethodPost, "/fail", nil)
	assert.JSONEq(t, `{"calls":1}`, perform(r, http.MethodGet, "/items", nil).Body.String())

	perform(r, http.MethodPost, "/items", nil)
	assert.JSONEq(t, `{"calls":2}`, perform(r, http.MethodGet, "/items", nil).Body.String())
}

func TestCache_SkipsErrors(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	r := gin.New()
	r.Use(Cache(store, time.Minute))
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	perform(r, http.MethodGet, "/missing", nil)
	assert.Zero(t, store.ItemCount())
}

func TestCache_SkipsEmptyBodies(t *testing.T) {
	store := cache.New(time.Minute, time.Minute)
	r := gin.New()
	r.Use(Cache(store, time.Minute))
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusOK) })

	perform(r, http.MethodGet, "/empty", nil)
	assert.Zero(t, store.ItemCount())
}

func TestAuthenticate(t *testing.T) {
	secret := []byte("test-secret")
	viewer, err := auth.IssueJWT("user-1", "v@example.com", auth.RoleViewer, secret, time.Hour, time.Now())
	require.NoError(t, err)
	operator, err := auth.IssueJWT("user-2", "o@example.com", auth.RoleOperator, secret, time.Hour, time.Now())
	require.NoError(t, err)

	r := gin.New()
	r.Use(Authenticate(secret))
	r.GET("/read", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"subject": Subject(c),
			"role":    auth.RoleFromContext(c.Request.Context()),
		})
	})
	r.POST("/write", RequireRole(auth.RoleOperator), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	bearer := func(token string) http.Header {
		return http.Header{"Authorization": []string{"Bearer " + token}}
	}

	testCases := []struct {
		name   string
		method string
		path   string
		header http.Header
		want   int
	}{
		{"no token", http.MethodGet, "/read", nil, http.StatusUnauthorized},
		{"malformed header", http.MethodGet, "/read", http.Header{"Authorization": []string{"Token abc"}}, http.StatusUnauthorized},
		{"viewer reads", http.MethodGet, "/read", bearer(viewer), http.StatusOK},
		{"viewer cannot write", http.MethodPost, "/write", bearer(viewer), http.StatusForbidden},
		{"operator writes", http.MethodPost, "/write", bearer(operator), http.StatusNoContent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, perform(r, tc.method, tc.path, tc.header).Code)
		})
	}

	w := perform(r, http.MethodGet, "/read", bearer(viewer))
	assert.JSONEq(t, `{"subject":"user-1","role":"viewer"}`, w.Body.String())
}

func TestAuthenticate_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(Authenticate(nil))
	r.DELETE("/x", RequireRole(auth.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, perform(r, http.MethodDelete, "/x", nil).Code)
}
