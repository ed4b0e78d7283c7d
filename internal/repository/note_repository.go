package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/apibase/user-api/shared/models"
	"github.com/lib/pq"
	"github.com/samber/oops"
)

const foreignKeyViolation = "23503"

// NoteRepository stores notes owned by users. Rows go away with their owner.
type NoteRepository struct {
	db *sql.DB
}

func NewNoteRepository(db *sql.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

func (r *NoteRepository) CreateNote(ctx context.Context, note *models.Note) error {
	query := `INSERT INTO notes (id, user_id, title, content, created_at) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(ctx, query, note.ID, note.UserID, note.Title, note.Content, note.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			return ErrNotFound
		}
		return oops.Code("NOTE_CREATE_FAILED").With("user_id", note.UserID).Wrap(err)
	}
	return nil
}

func (r *NoteRepository) ListNotesByUser(ctx context.Context, userID string) ([]models.Note, error) {
	query := `
		SELECT id, user_id, title, content, created_at
		FROM notes
		WHERE user_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, oops.Code("NOTE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	defer rows.Close()

	notes := []models.Note{}
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Content, &n.CreatedAt); err != nil {
			return nil, oops.Code("NOTE_LIST_FAILED").With("user_id", userID).Wrap(err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("NOTE_LIST_FAILED").With("user_id", userID).Wrap(err)
	}
	return notes, nil
}
