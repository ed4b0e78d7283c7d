package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/apibase/user-api/internal/command"
	"github.com/apibase/user-api/internal/policy"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/middleware"
	"github.com/apibase/user-api/shared/models"
	"github.com/gin-gonic/gin"
)

const (
	ResetPasswordSentMessage = "Reset password instructions have been sent to your email"
	ConfirmationSentMessage  = "Confirmation instructions have been sent to your email"
	EmailConfirmedMessage    = "Email confirmed"
)

// UserCommander defines the write-side operations used by UserHandler.
type UserCommander interface {
	CreateUser(context.Context, cqrs.CreateUserCommand) (*models.User, error)
	DeleteUser(context.Context, cqrs.DeleteUserCommand) error
	ResetPassword(context.Context, cqrs.ResetPasswordCommand) error
	ConfirmEmail(context.Context, cqrs.ConfirmEmailCommand) (*models.User, error)
	ResendConfirmation(context.Context, cqrs.ResendConfirmationCommand) error
}

// UserHandler maps the account endpoints onto the command service.
type UserHandler struct {
	commands UserCommander
	logger   *slog.Logger
}

type CreateUserRequest struct {
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type ResetPasswordRequest struct {
	Email                   string `json:"email"`
	NewPassword             string `json:"new_password"`
	NewPasswordConfirmation string `json:"new_password_confirmation"`
}

type ResendConfirmationRequest struct {
	Email string `json:"email"`
}

func NewUserHandler(commands UserCommander, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{commands: commands, logger: logger}
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := bindParams(c, &req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.commands.CreateUser(c.Request.Context(), cqrs.CreateUserCommand{
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		h.fail(c, err, "Failed to create user")
		return
	}

	c.JSON(http.StatusCreated, user.ToView())
}

// DeleteUser removes the authenticated caller. The :userId path segment is
// not consulted.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	requestingUserID, ok := middleware.GetUserID(c)
	if !ok {
		middleware.RespondWithError(c, http.StatusUnauthorized, "Unauthorized")
		return
	}

	if err := h.commands.DeleteUser(c.Request.Context(), cqrs.DeleteUserCommand{UserID: requestingUserID}); err != nil {
		h.fail(c, err, "Failed to delete user")
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *UserHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := bindParams(c, &req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	err := h.commands.ResetPassword(c.Request.Context(), cqrs.ResetPasswordCommand{
		Email:                   req.Email,
		NewPassword:             req.NewPassword,
		NewPasswordConfirmation: req.NewPasswordConfirmation,
	})
	if err != nil {
		h.fail(c, err, "Failed to reset password")
		return
	}

	middleware.RespondWithMessage(c, http.StatusAccepted, ResetPasswordSentMessage)
}

func (h *UserHandler) ConfirmEmail(c *gin.Context) {
	_, err := h.commands.ConfirmEmail(c.Request.Context(), cqrs.ConfirmEmailCommand{Token: c.Param("token")})
	if err != nil {
		if errors.Is(err, command.ErrInvalidConfirmationToken) {
			middleware.RespondWithError(c, http.StatusNotFound, "Confirmation token is invalid")
			return
		}
		h.fail(c, err, "Failed to confirm email")
		return
	}

	middleware.RespondWithMessage(c, http.StatusOK, EmailConfirmedMessage)
}

func (h *UserHandler) ResendConfirmation(c *gin.Context) {
	var req ResendConfirmationRequest
	if err := bindParams(c, &req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.commands.ResendConfirmation(c.Request.Context(), cqrs.ResendConfirmationCommand{Email: req.Email}); err != nil {
		h.fail(c, err, "Failed to resend confirmation")
		return
	}

	middleware.RespondWithMessage(c, http.StatusAccepted, ConfirmationSentMessage)
}

// fail maps domain errors to 422/401 and everything else to a logged 500.
func (h *UserHandler) fail(c *gin.Context, err error, message string) {
	var vErr *policy.ValidationError
	switch {
	case errors.As(err, &vErr):
		middleware.RespondWithValidationError(c, vErr.Messages)
	case errors.Is(err, command.ErrUnauthorized):
		middleware.RespondWithError(c, http.StatusUnauthorized, "Unauthorized")
	default:
		h.logger.ErrorContext(c.Request.Context(), message, "path", c.FullPath(), "error", err)
		middleware.RespondWithError(c, http.StatusInternalServerError, message)
	}
}
