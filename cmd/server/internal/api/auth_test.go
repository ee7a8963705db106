package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deephabiswashi/vasha/cmd/server/internal/middleware"
	"github.com/deephabiswashi/vasha/cmd/server/internal/orchestrator/health"
	"github.com/deephabiswashi/vasha/cmd/server/internal/users"
)

func newUserManager(t *testing.T) *users.Manager {
	t.Helper()
	m, err := users.NewManager(t.TempDir())
	require.NoError(t, err)
	_, err = m.Create("asha", "secret-pass")
	require.NoError(t, err)
	return m
}

func TestHandleLoginIssuesUsableToken(t *testing.T) {
	manager := newUserManager(t)
	secret := []byte("0123456789abcdef0123456789abcdef")

	r := gin.New()
	r.POST("/api/auth/login", HandleLogin(manager, secret))
	r.GET("/api/whoami", middleware.BearerAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": currentUser(c)})
	})

	w := doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "asha",
		"password": "secret-pass",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, "asha", body["username"])

	got := doJSON(r, http.MethodGet, "/api/whoami", nil, map[string]string{
		"Authorization": "Bearer " + token,
	})
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, "asha", decodeBody(t, got)["user"])
}

func TestHandleLoginBadCredentials(t *testing.T) {
	manager := newUserManager(t)
	r := gin.New()
	r.POST("/api/auth/login", HandleLogin(manager, []byte("0123456789abcdef0123456789abcdef")))

	w := doJSON(r, http.MethodPost, "/api/auth/login", gin.H{
		"username": "asha",
		"password": "wrong",
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/login", gin.H{"username": "asha"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandleRegister(t *testing.T) {
	manager := newUserManager(t)
	r := gin.New()
	r.POST("/api/auth/register", HandleRegister(manager))

	w := doJSON(r, http.MethodPost, "/api/auth/register", gin.H{
		"username": "ravi",
		"password": "new-pass",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "ravi", decodeBody(t, w)["username"])

	w = doJSON(r, http.MethodPost, "/api/auth/register", gin.H{
		"username": "ravi",
		"password": "other",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestHandleChangePassword(t *testing.T) {
	manager := newUserManager(t)
	r := gin.New()
	r.POST("/api/auth/password", HandleChangePassword(manager))

	asha := map[string]string{"X-User": "asha"}
	w := doJSON(r, http.MethodPost, "/api/auth/password", gin.H{
		"old_password": "wrong",
		"new_password": "next-pass",
	}, asha)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(r, http.MethodPost, "/api/auth/password", gin.H{
		"old_password": "secret-pass",
		"new_password": "next-pass",
	}, asha)
	require.Equal(t, http.StatusOK, w.Code)

	_, err := manager.Authenticate("asha", "next-pass")
	assert.NoError(t, err)
}

func TestHandleEngineHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	monitor := health.NewMonitor([]health.Target{
		{Name: "whisper", URL: srv.URL},
		{Name: "nllb", URL: "http://127.0.0.1:1"},
	}, 0, 1, nil)
	monitor.CheckAll(context.Background())

	r := gin.New()
	r.GET("/api/health/engines", HandleEngineHealth(monitor))

	w := doJSON(r, http.MethodGet, "/api/health/engines", nil, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, false, body["healthy"])
	engines, ok := body["engines"].(map[string]any)
	require.True(t, ok)
	assert.Len(t, engines, 2)
}
