package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/apibase/user-api/shared/models"
	"github.com/lib/pq"
	"github.com/samber/oops"
)

const (
	uniqueViolation = "23505"
	emailConstraint = "users_email_key"
)

const userColumns = `id, email, password_hash, auth_token, confirmation_token,
	confirmation_sent_at, confirmed_at, created_at, updated_at`

// UserWriteRepository handles all operations on the users table.
// PostgreSQL is the source of truth; the unique index on email serialises
// concurrent signups.
type UserWriteRepository struct {
	db *sql.DB
}

func NewUserWriteRepository(db *sql.DB) *UserWriteRepository {
	return &UserWriteRepository{db: db}
}

func (r *UserWriteRepository) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.AuthToken, nullString(user.ConfirmationToken),
		user.ConfirmationSentAt, nullTime(user.ConfirmedAt), user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		return mapInsertError(err)
	}
	return nil
}

// mapInsertError turns a unique violation on the email index into ErrEmailTaken.
func mapInsertError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation && pqErr.Constraint == emailConstraint {
		return ErrEmailTaken
	}
	return oops.Code("USER_CREATE_FAILED").Wrap(err)
}

func (r *UserWriteRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserWriteRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

func (r *UserWriteRepository) GetByConfirmationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.getOne(ctx, `SELECT `+userColumns+` FROM users WHERE confirmation_token = $1`, token)
}

func (r *UserWriteRepository) getOne(ctx context.Context, query string, arg any) (*models.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, oops.Code("USER_GET_FAILED").Wrap(err)
	}
	return user, nil
}

func (r *UserWriteRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	query := `UPDATE users SET password_hash = $2, updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, "USER_UPDATE_PASSWORD_FAILED", query, id, passwordHash, at)
}

func (r *UserWriteRepository) UpdateConfirmationToken(ctx context.Context, id, token string, sentAt time.Time) error {
	query := `
		UPDATE users
		SET confirmation_token = $2, confirmation_sent_at = $3, updated_at = $3
		WHERE id = $1 AND confirmed_at IS NULL
	`
	return r.execOne(ctx, "USER_UPDATE_CONFIRMATION_FAILED", query, id, token, sentAt)
}

// Confirm sets confirmed_at once and consumes the confirmation token. A token
// replaced since it was read matches no row and yields ErrNotFound.
func (r *UserWriteRepository) Confirm(ctx context.Context, id, token string, at time.Time) error {
	query := `
		UPDATE users
		SET confirmed_at = COALESCE(confirmed_at, $2), confirmation_token = NULL, updated_at = $2
		WHERE id = $1 AND confirmation_token = $3
	`
	return r.execOne(ctx, "USER_CONFIRM_FAILED", query, id, at, token)
}

// Delete removes the user and its notes in one transaction.
func (r *UserWriteRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("operation", "begin").Wrap(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM notes WHERE user_id = $1`, id); err != nil {
		return oops.Code("USER_DELETE_FAILED").With("operation", "delete notes").Wrap(err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("operation", "delete user").Wrap(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_DELETE_FAILED").With("operation", "rows affected").Wrap(err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return oops.Code("USER_DELETE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

func (r *UserWriteRepository) execOne(ctx context.Context, code, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return oops.Code(code).Wrap(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var confirmationToken sql.NullString
	var confirmedAt sql.NullTime

	err := row.Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.AuthToken, &confirmationToken,
		&user.ConfirmationSentAt, &confirmedAt, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if confirmationToken.Valid {
		user.ConfirmationToken = confirmationToken.String
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		user.ConfirmedAt = &t
	}
	return &user, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
