package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/blogdesk/internal/app"
	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	iauth "github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/internal/cache"
	"github.com/charlesng35/blogdesk/internal/database/testutil"
	"github.com/charlesng35/blogdesk/internal/middleware"
	"github.com/charlesng35/blogdesk/internal/services"
)

func newTestDependencies(t *testing.T) Dependencies {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "test", AccessTokenTTL: time.Hour})
	require.NoError(t, err)

	store := cache.NewMemoryStore()
	cacheSvc, err := services.NewCacheService(db, cache.NewSnapshots(store, 0))
	require.NoError(t, err)
	blogSvc, err := services.NewBlogService(db, cacheSvc)
	require.NoError(t, err)
	userSvc, err := services.NewUserService(db, cacheSvc)
	require.NoError(t, err)
	authSvc, err := services.NewAuthService(db, userSvc, jwtSvc)
	require.NoError(t, err)
	scheduler := maintenance.NewScheduler()
	scheduleSvc, err := services.NewScheduleService(db, scheduler, services.Schedule{
		UpdateCache:     app.DefaultCadence,
		UpdateCountBlog: app.DefaultCadence,
		UpdateCountUser: app.DefaultCadence,
	})
	require.NoError(t, err)

	return Dependencies{
		DB:        db,
		JWT:       jwtSvc,
		Store:     store,
		Cache:     cacheSvc,
		Blogs:     blogSvc,
		Users:     userSvc,
		Auth:      authSvc,
		Schedule:  scheduleSvc,
		Scheduler: scheduler,
		RateStore: middleware.NewMemoryRateStore(nil),
	}
}

func serve(router *gin.Engine, method, path string, headers map[string]string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router, err := NewRouter(&app.Config{}, newTestDependencies(t))
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)
	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/metrics", nil).Code)

	for _, path := range []string{"/api/blogs?page=1", "/api/users", "/api/cache/status", "/api/admin/config"} {
		require.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, path, nil).Code, path)
	}

	// Auth endpoints are reachable without a token.
	w := serve(router, http.MethodPost, "/api/auth/login", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RateLimitAndCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := &app.Config{
		Server:    app.ServerConfig{CORSOrigins: []string{"https://blog.example.com"}},
		RateLimit: app.RateLimitConfig{Requests: 2, Window: time.Minute},
	}
	router, err := NewRouter(cfg, newTestDependencies(t))
	require.NoError(t, err)

	origin := map[string]string{"Origin": "https://blog.example.com"}
	first := serve(router, http.MethodGet, "/health", origin)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "https://blog.example.com", first.Header().Get("Access-Control-Allow-Origin"))

	require.Equal(t, http.StatusOK, serve(router, http.MethodGet, "/health", nil).Code)
	require.Equal(t, http.StatusTooManyRequests, serve(router, http.MethodGet, "/health", nil).Code)
}

func TestRouter_RequiresDependencies(t *testing.T) {
	_, err := NewRouter(nil, Dependencies{})
	require.Error(t, err)

	deps := newTestDependencies(t)
	deps.Blogs = nil
	_, err = NewRouter(&app.Config{}, deps)
	require.ErrorContains(t, err, "blog service")
}
