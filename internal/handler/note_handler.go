package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/apibase/user-api/internal/command"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/middleware"
	"github.com/apibase/user-api/shared/models"
	"github.com/gin-gonic/gin"
)

type NoteCommander interface {
	CreateNote(context.Context, cqrs.CreateNoteCommand) (*models.Note, error)
}

type NoteQuerier interface {
	ListNotes(context.Context, cqrs.ListNotesQuery) ([]models.Note, error)
}

type NoteHandler struct {
	commands NoteCommander
	queries  NoteQuerier
	logger   *slog.Logger
}

type CreateNoteRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content" validate:"max=10000"`
}

func NewNoteHandler(commands NoteCommander, queries NoteQuerier, logger *slog.Logger) *NoteHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteHandler{commands: commands, queries: queries, logger: logger}
}

func (h *NoteHandler) CreateNote(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return
	}

	note, err := h.commands.CreateNote(c.Request.Context(), cqrs.CreateNoteCommand{
		UserID:  userID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		if errors.Is(err, command.ErrUnauthorized) {
			middleware.RespondWithError(c, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h.logger.ErrorContext(c.Request.Context(), "failed to create note", "user_id", userID, "error", err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to create note")
		return
	}

	c.JSON(http.StatusCreated, note)
}

func (h *NoteHandler) ListNotes(c *gin.Context) {
	userID, _ := middleware.GetUserID(c)

	notes, err := h.queries.ListNotes(c.Request.Context(), cqrs.ListNotesQuery{UserID: userID})
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to list notes", "user_id", userID, "error", err)
		middleware.RespondWithError(c, http.StatusInternalServerError, "Failed to list notes")
		return
	}

	c.JSON(http.StatusOK, notes)
}
