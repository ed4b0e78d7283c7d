package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/apibase/user-api/internal/query"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/middleware"
	"github.com/apibase/user-api/shared/models"
	"github.com/gin-gonic/gin"
)

// AuthQuerier defines the read-side operations used by AuthHandler.
type AuthQuerier interface {
	SignIn(context.Context, cqrs.SignInQuery) (*models.User, error)
}

// AuthHandler exchanges credentials for an auth token. No command service needed.
type AuthHandler struct {
	queries AuthQuerier
	logger  *slog.Logger
}

type SignInRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignInResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	AuthToken string `json:"auth_token"`
}

func NewAuthHandler(queries AuthQuerier, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{queries: queries, logger: logger}
}

func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInRequest
	if err := bindParams(c, &req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	user, err := h.queries.SignIn(c.Request.Context(), cqrs.SignInQuery{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, query.ErrInvalidCredentials) {
			middleware.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "sign in failed", "error", err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to sign in")
		return
	}

	c.JSON(http.StatusOK, SignInResponse{ID: user.ID, Email: user.Email, AuthToken: user.AuthToken})
}
