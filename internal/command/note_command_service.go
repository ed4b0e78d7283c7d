package command

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/apibase/user-api/internal/repository"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/events"
	"github.com/apibase/user-api/shared/models"
	"github.com/google/uuid"
)

type NoteStore interface {
	CreateNote(ctx context.Context, note *models.Note) error
}

// NoteCommandService writes notes owned by the authenticated caller.
type NoteCommandService struct {
	store     NoteStore
	publisher Publisher
	logger    *slog.Logger
}

func NewNoteCommandService(store NoteStore, publisher Publisher, logger *slog.Logger) *NoteCommandService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoteCommandService{store: store, publisher: publisher, logger: logger}
}

func (s *NoteCommandService) CreateNote(ctx context.Context, cmd cqrs.CreateNoteCommand) (*models.Note, error) {
	note := &models.Note{
		ID:        uuid.NewString(),
		UserID:    cmd.UserID,
		Title:     strings.TrimSpace(cmd.Title),
		Content:   cmd.Content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateNote(ctx, note); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}

	if err := s.publisher.Publish(ctx, events.NoteEventsStream, events.NoteCreated, events.NoteCreatedEvent{
		NoteID: note.ID,
		UserID: note.UserID,
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event", events.NoteCreated, "error", err)
	}
	return note, nil
}
