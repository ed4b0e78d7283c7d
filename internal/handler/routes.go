package handler

import (
	"log/slog"
	"net/http"

	"github.com/apibase/user-api/internal/metrics"
	"github.com/apibase/user-api/shared/middleware"
	"github.com/gin-gonic/gin"
)

// apiKeyHeader carries the shared secret on routes whose Authorization
// header holds the caller's auth token.
const apiKeyHeader = "X-Api-Key"

type RouterConfig struct {
	// APIKey gates the mutating endpoints when non-empty.
	APIKey string
	Logger *slog.Logger
	// Metrics, when set, instruments every request and serves GET /metrics.
	Metrics *metrics.Metrics
}

func NewRouter(cfg RouterConfig, users *UserHandler, notes *NoteHandler, signIn *AuthHandler, auth middleware.Authenticator) *gin.Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := gin.New()
	router.Use(gin.Recovery(), middleware.LoggingMiddleware(logger))
	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	gate := middleware.APIKeyGate(cfg.APIKey, "Authorization")
	// DELETE /users/:userId and POST /notes carry the caller's auth token in
	// Authorization, so the shared secret moves to X-Api-Key there.
	tokenGate := middleware.APIKeyGate(cfg.APIKey, apiKeyHeader)
	authenticated := middleware.AuthMiddleware(auth)

	u := router.Group("/users")
	{
		u.POST("", gate, users.CreateUser)
		u.POST("/reset_password", gate, users.ResetPassword)
		u.POST("/confirmation", gate, users.ResendConfirmation)
		u.POST("/sign_in", gate, signIn.SignIn)
		u.GET("/confirm/:token", users.ConfirmEmail)
		u.DELETE("/:userId", tokenGate, authenticated, users.DeleteUser)
	}

	n := router.Group("/notes")
	{
		n.POST("", tokenGate, authenticated, notes.CreateNote)
		n.GET("", authenticated, notes.ListNotes)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.NoRoute(func(c *gin.Context) {
		middleware.RespondWithError(c, http.StatusNotFound, "Not found")
	})

	return router
}
