package query

import (
	"context"

	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/models"
)

type NoteLister interface {
	ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error)
}

type NoteQueryService struct {
	notes NoteLister
}

func NewNoteQueryService(notes NoteLister) *NoteQueryService {
	return &NoteQueryService{notes: notes}
}

func (s *NoteQueryService) ListNotes(ctx context.Context, q cqrs.ListNotesQuery) ([]models.Note, error) {
	notes, err := s.notes.ListNotesByUser(ctx, q.UserID)
	if err != nil {
		return nil, err
	}
	if notes == nil {
		notes = []models.Note{}
	}
	return notes, nil
}
