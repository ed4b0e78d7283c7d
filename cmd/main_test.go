package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/apibase/user-api/internal/config"
	"github.com/apibase/user-api/internal/mailer"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRootCommand_HasExpectedSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())

	for _, sub := range []string{"serve", "migrate"} {
		assert.Contains(t, buf.String(), sub, "Help missing %q command", sub)
	}
}

func TestMigrateCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"migrate", "--help"})

	require.NoError(t, cmd.Execute())
	for _, sub := range []string{"up", "down", "version"} {
		assert.Contains(t, buf.String(), sub)
	}
}

func TestRootCommand_ConfigFlag(t *testing.T) {
	configFile = ""
	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"--config=/etc/user-api.yaml", "--help"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "/etc/user-api.yaml", configFile)
}

func TestServeCommand_RejectsInvalidConfig(t *testing.T) {
	configFile = ""
	t.Setenv("JWT_SECRET", "")

	cmd := NewRootCmd()
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"serve", "--store-driver", "memory"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt_secret")
}

func memoryConfig() *config.Config {
	return &config.Config{
		HTTP:  config.HTTPConfig{PublicURL: "http://localhost:8080"},
		Store: config.StoreConfig{Driver: config.DriverMemory},
		Auth:  config.AuthConfig{JWTSecret: "test-secret", BcryptCost: 4, MinPasswordLength: 8},
		Mail:  config.MailConfig{Transport: config.MailLog},
		Log:   config.LogConfig{Format: "json"},
	}
}

func TestBuildApp_MemoryStore(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := memoryConfig()
	cfg.APIKey = "SECRET_API_KEY"

	a, err := buildApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer a.Close()
	assert.Empty(t, a.workers)

	body := `{"email":"a@b.com","password":"longenough1","password_confirmation":"longenough1"}`

	req := httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "SECRET_API_KEY")
	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestMailTransport(t *testing.T) {
	logger := discardLogger()

	cfg := memoryConfig()
	var workers []func(context.Context) error
	tr, err := mailTransport(cfg, logger, nil, &workers)
	require.NoError(t, err)
	assert.IsType(t, &mailer.LogTransport{}, tr)

	cfg.Mail.Transport = config.MailSendGrid
	cfg.Mail.SendGridAPIKey = "sg"
	tr, err = mailTransport(cfg, logger, nil, &workers)
	require.NoError(t, err)
	assert.IsType(t, &mailer.SendGridTransport{}, tr)

	cfg.Mail.Transport = config.MailQueue
	_, err = mailTransport(cfg, logger, nil, &workers)
	assert.Error(t, err, "queue needs redis")
	assert.Empty(t, workers)
}

func TestBuildApp_Metrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := memoryConfig()
	a, err := buildApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code, "disabled by config")
	a.Close()

	cfg.HTTP.Metrics = true
	a, err = buildApp(context.Background(), cfg, discardLogger())
	require.NoError(t, err)
	defer a.Close()

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	a.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `user_api_http_requests_total{method="GET",route="/health",status="200"} 1`)
}
