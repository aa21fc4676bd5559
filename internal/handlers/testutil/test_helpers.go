package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/blogdesk/internal/api"
	"github.com/charlesng35/blogdesk/internal/app"
	"github.com/charlesng35/blogdesk/internal/app/maintenance"
	iauth "github.com/charlesng35/blogdesk/internal/auth"
	"github.com/charlesng35/blogdesk/internal/cache"
	sharedtestutil "github.com/charlesng35/blogdesk/internal/database/testutil"
	"github.com/charlesng35/blogdesk/internal/models"
	"github.com/charlesng35/blogdesk/internal/services"
	"github.com/charlesng35/blogdesk/pkg/crypto"
	"github.com/charlesng35/blogdesk/pkg/mail"
	"github.com/charlesng35/blogdesk/pkg/response"
)

// Admin credentials seeded into every Env.
const (
	AdminUsername = "admin"
	AdminPassword = "admin-password"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T         *testing.T
	DB        *gorm.DB
	Router    *gin.Engine
	JWT       *iauth.JWTService
	Cache     *services.CacheService
	Scheduler *maintenance.Scheduler
	Mail      *mail.Recorder
}

// NewEnv provisions a fresh handler test environment with migrations and the admin seed applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithAdmin(AdminUsername, AdminPassword))

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         "test-suite-super-secret-key-32-bytes!!",
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	store := cache.NewMemoryStore()
	cacheSvc, err := services.NewCacheService(db, cache.NewSnapshots(store, 0))
	require.NoError(t, err)
	blogSvc, err := services.NewBlogService(db, cacheSvc)
	require.NoError(t, err)
	userSvc, err := services.NewUserService(db, cacheSvc)
	require.NoError(t, err)

	recorder := &mail.Recorder{}
	authSvc, err := services.NewAuthService(db, userSvc, jwtSvc, services.WithMailer(recorder))
	require.NoError(t, err)

	scheduler := maintenance.NewScheduler()
	scheduleSvc, err := services.NewScheduleService(db, scheduler, services.Schedule{
		UpdateCache:     app.DefaultCadence,
		UpdateCountBlog: app.DefaultCadence,
		UpdateCountUser: app.DefaultCadence,
	})
	require.NoError(t, err)
	_, err = services.RegisterJobs(t.Context(), scheduler, services.JobDependencies{
		DB:       db,
		Cache:    cacheSvc,
		Schedule: scheduleSvc,
		Store:    store,
	})
	require.NoError(t, err)

	router, err := api.NewRouter(&app.Config{}, api.Dependencies{
		DB:        db,
		JWT:       jwtSvc,
		Store:     store,
		Cache:     cacheSvc,
		Blogs:     blogSvc,
		Users:     userSvc,
		Auth:      authSvc,
		Schedule:  scheduleSvc,
		Scheduler: scheduler,
	})
	require.NoError(t, err)

	return &Env{
		T:         t,
		DB:        db,
		Router:    router,
		JWT:       jwtSvc,
		Cache:     cacheSvc,
		Scheduler: scheduler,
		Mail:      recorder,
	}
}

// CreateUser inserts a verified account directly and returns the record.
func (e *Env) CreateUser(username, password, role string) *models.User {
	e.T.Helper()

	hashed, err := crypto.HashPasswordWithCost(password, 4)
	require.NoError(e.T, err)

	user := &models.User{
		Username:      username,
		Password:      hashed,
		Email:         username + "@example.com",
		FirstName:     "Test",
		LastName:      "User",
		Role:          role,
		IsVerified:    true,
		LikedPosts:    datatypes.JSONSlice[string]{},
		DislikedPosts: datatypes.JSONSlice[string]{},
	}
	require.NoError(e.T, e.DB.Create(user).Error)
	return user
}

// Token issues an access token for user without going through login.
func (e *Env) Token(user *models.User) string {
	e.T.Helper()
	token, err := e.JWT.Issue(iauth.Identity{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
	require.NoError(e.T, err)
	return token.Token
}

// LoginResult bundles the JSON response from POST /api/auth/login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
	} `json:"user"`
}

// Login authenticates through the API and returns the issued token.
func (e *Env) Login(username, password string) LoginResult {
	e.T.Helper()

	payload := map[string]string{
		"username": username,
		"password": password,
	}

	w := e.Request(http.MethodPost, "/api/auth/login", payload, "")
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	require.True(e.T, resp.Success, w.Body.String())

	var result LoginResult
	DecodeInto(e.T, resp.Data, &result)
	require.NotEmpty(e.T, result.Token)
	require.Equal(e.T, username, result.User.Username)
	return result
}

// AdminToken logs in as the seeded administrator.
func (e *Env) AdminToken() string {
	e.T.Helper()
	return e.Login(AdminUsername, AdminPassword).Token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.serve(req, token)
}

// FileField is a file part of a multipart request.
type FileField struct {
	Name     string
	Filename string
	Data     []byte
}

// Multipart executes a multipart/form-data request with the given fields and files.
func (e *Env) Multipart(method, path string, fields map[string]string, files []FileField, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		require.NoError(e.T, writer.WriteField(key, value))
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.Name, file.Filename)
		require.NoError(e.T, err)
		_, err = part.Write(file.Data)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.serve(req, token)
}

func (e *Env) serve(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
