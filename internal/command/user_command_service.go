package command

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/apibase/user-api/internal/policy"
	"github.com/apibase/user-api/internal/repository"
	"github.com/apibase/user-api/internal/token"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/events"
	"github.com/apibase/user-api/shared/models"
	"github.com/apibase/user-api/shared/utils"
	"github.com/samber/oops"
)

const emailTakenMessage = "Email has already been taken"

var (
	// ErrUnauthorized means the caller is not an existing account.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidConfirmationToken means no account holds the presented token.
	ErrInvalidConfirmationToken = errors.New("confirmation token is invalid")
)

// UserStore is the write side of the credential store.
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByConfirmationToken(ctx context.Context, token string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	UpdateConfirmationToken(ctx context.Context, id, token string, sentAt time.Time) error
	Confirm(ctx context.Context, id, token string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

type Notifier interface {
	SendConfirmation(ctx context.Context, user *models.User) error
	SendPasswordReset(ctx context.Context, user *models.User) error
}

type Publisher interface {
	Publish(ctx context.Context, stream, eventType string, data any) error
}

// SessionInvalidator drops cached identities.
type SessionInvalidator interface {
	InvalidateSession(ctx context.Context, userID string)
}

// Recorder counts account operations; metrics.Metrics implements it.
type Recorder interface {
	RecordAccount(operation, outcome string)
	RecordMailFailure(kind string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAccount(string, string) {}
func (noopRecorder) RecordMailFailure(string)     {}

// Operation labels reported to the Recorder.
const (
	OpCreate  = "create"
	OpDelete  = "delete"
	OpReset   = "reset_password"
	OpConfirm = "confirm"
	OpResend  = "resend_confirmation"
)

// Outcome labels reported to the Recorder.
const (
	outcomeSuccess  = "success"
	outcomeRejected = "rejected"
	outcomeUnknown  = "unknown"
	outcomeError    = "error"
)

// UserCommandService owns every account mutation: signup, confirmation,
// password reset and self-deletion.
type UserCommandService struct {
	store      UserStore
	policy     *policy.PasswordPolicy
	issuer     *token.Issuer
	notifier   Notifier
	publisher  Publisher
	sessions   SessionInvalidator
	recorder   Recorder
	logger     *slog.Logger
	bcryptCost int
	now        func() time.Time
}

type Option func(*UserCommandService)

// WithBcryptCost overrides bcrypt.DefaultCost; tests use bcrypt.MinCost.
func WithBcryptCost(cost int) Option {
	return func(s *UserCommandService) { s.bcryptCost = cost }
}

func WithClock(now func() time.Time) Option {
	return func(s *UserCommandService) { s.now = now }
}

func WithRecorder(r Recorder) Option {
	return func(s *UserCommandService) {
		if r != nil {
			s.recorder = r
		}
	}
}

func NewUserCommandService(
	store UserStore,
	passwordPolicy *policy.PasswordPolicy,
	issuer *token.Issuer,
	notifier Notifier,
	publisher Publisher,
	sessions SessionInvalidator,
	logger *slog.Logger,
	opts ...Option,
) *UserCommandService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &UserCommandService{
		store:     store,
		policy:    passwordPolicy,
		issuer:    issuer,
		notifier:  notifier,
		publisher: publisher,
		sessions:  sessions,
		recorder:  noopRecorder{},
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser validates the signup, persists the account and sends the
// confirmation mail. A mail failure is logged; the account stays created.
func (s *UserCommandService) CreateUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	user, err := s.createUser(ctx, cmd)
	s.record(OpCreate, err)
	return user, err
}

func (s *UserCommandService) createUser(ctx context.Context, cmd cqrs.CreateUserCommand) (*models.User, error) {
	email := utils.NormalizeEmail(cmd.Email)
	if err := s.policy.CheckSignup(email, cmd.Password, cmd.PasswordConfirmation); err != nil {
		return nil, err
	}

	passwordHash, err := utils.HashPassword(cmd.Password, s.bcryptCost)
	if err != nil {
		return nil, oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}

	id := utils.GenerateID("usr")
	authToken, err := s.issuer.AuthToken(id, email)
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("token", "auth").Wrap(err)
	}
	confirmationToken, err := s.issuer.ConfirmationToken()
	if err != nil {
		return nil, oops.Code("TOKEN_ISSUE_FAILED").With("token", "confirmation").Wrap(err)
	}

	now := s.now()
	user := &models.User{
		ID:                 id,
		Email:              email,
		PasswordHash:       passwordHash,
		AuthToken:          authToken,
		ConfirmationToken:  confirmationToken,
		ConfirmationSentAt: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return nil, &policy.ValidationError{Messages: []string{emailTakenMessage}}
		}
		return nil, err
	}

	if err := s.notifier.SendConfirmation(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to send confirmation mail", "user_id", user.ID, "error", err)
		s.recorder.RecordMailFailure("confirmation")
	}
	s.publish(ctx, events.UserEventsStream, events.UserCreated, events.UserCreatedEvent{
		UserID: user.ID,
		Email:  user.Email,
	})
	return user, nil
}

// DeleteUser removes the authenticated caller's account and its notes.
func (s *UserCommandService) DeleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	err := s.deleteUser(ctx, cmd)
	s.record(OpDelete, err)
	return err
}

func (s *UserCommandService) deleteUser(ctx context.Context, cmd cqrs.DeleteUserCommand) error {
	if cmd.UserID == "" {
		return ErrUnauthorized
	}
	if err := s.store.Delete(ctx, cmd.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return err
	}

	s.sessions.InvalidateSession(ctx, cmd.UserID)
	s.publish(ctx, events.UserEventsStream, events.UserDeleted, events.UserDeletedEvent{
		UserID: cmd.UserID,
	})
	return nil
}

// ResetPassword replaces the password of the account registered under the
// email. An unknown email is indistinguishable from a known one: both return
// nil, and only the known one is mutated and mailed.
func (s *UserCommandService) ResetPassword(ctx context.Context, cmd cqrs.ResetPasswordCommand) error {
	email := utils.NormalizeEmail(cmd.Email)
	if err := s.policy.CheckReset(email, cmd.NewPassword, cmd.NewPasswordConfirmation); err != nil {
		s.record(OpReset, err)
		return err
	}

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		s.logger.DebugContext(ctx, "password reset for unknown email")
		s.recorder.RecordAccount(OpReset, outcomeUnknown)
		return nil
	}
	if err == nil {
		err = s.resetPassword(ctx, user, cmd.NewPassword)
	}
	s.record(OpReset, err)
	return err
}

func (s *UserCommandService) resetPassword(ctx context.Context, user *models.User, newPassword string) error {
	passwordHash, err := utils.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return oops.Code("PASSWORD_HASH_FAILED").Wrap(err)
	}
	if err := s.store.UpdatePassword(ctx, user.ID, passwordHash, s.now()); err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to send password reset mail", "user_id", user.ID, "error", err)
		s.recorder.RecordMailFailure("password_reset")
	}
	s.publish(ctx, events.UserEventsStream, events.UserPasswordReset, events.UserPasswordResetEvent{
		UserID: user.ID,
	})
	return nil
}

// ConfirmEmail marks the holder of the token confirmed and consumes the token.
func (s *UserCommandService) ConfirmEmail(ctx context.Context, cmd cqrs.ConfirmEmailCommand) (*models.User, error) {
	user, err := s.confirmEmail(ctx, cmd)
	s.record(OpConfirm, err)
	return user, err
}

func (s *UserCommandService) confirmEmail(ctx context.Context, cmd cqrs.ConfirmEmailCommand) (*models.User, error) {
	user, err := s.store.GetByConfirmationToken(ctx, cmd.Token)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidConfirmationToken
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.store.Confirm(ctx, user.ID, cmd.Token, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidConfirmationToken
		}
		return nil, err
	}
	if user.ConfirmedAt == nil {
		user.ConfirmedAt = &now
	}
	user.ConfirmationToken = ""

	s.publish(ctx, events.UserEventsStream, events.UserConfirmed, events.UserConfirmedEvent{
		UserID: user.ID,
	})
	return user, nil
}

// ResendConfirmation issues a fresh confirmation token to an unconfirmed
// account. Unknown and already confirmed emails are silently accepted.
func (s *UserCommandService) ResendConfirmation(ctx context.Context, cmd cqrs.ResendConfirmationCommand) error {
	err := s.resendConfirmation(ctx, cmd)
	s.record(OpResend, err)
	return err
}

func (s *UserCommandService) resendConfirmation(ctx context.Context, cmd cqrs.ResendConfirmationCommand) error {
	email := utils.NormalizeEmail(cmd.Email)
	if err := s.policy.CheckEmail(email); err != nil {
		return err
	}

	user, err := s.store.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if user.Confirmed() {
		return nil
	}

	confirmationToken, err := s.issuer.ConfirmationToken()
	if err != nil {
		return oops.Code("TOKEN_ISSUE_FAILED").With("token", "confirmation").Wrap(err)
	}
	sentAt := s.now()
	if err := s.store.UpdateConfirmationToken(ctx, user.ID, confirmationToken, sentAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	}
	user.ConfirmationToken = confirmationToken
	user.ConfirmationSentAt = sentAt

	if err := s.notifier.SendConfirmation(ctx, user); err != nil {
		s.logger.ErrorContext(ctx, "failed to resend confirmation mail", "user_id", user.ID, "error", err)
		s.recorder.RecordMailFailure("confirmation")
	}
	return nil
}

func (s *UserCommandService) record(operation string, err error) {
	var validation *policy.ValidationError
	switch {
	case err == nil:
		s.recorder.RecordAccount(operation, outcomeSuccess)
	case errors.As(err, &validation):
		s.recorder.RecordAccount(operation, outcomeRejected)
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidConfirmationToken):
		s.recorder.RecordAccount(operation, outcomeUnknown)
	default:
		s.recorder.RecordAccount(operation, outcomeError)
	}
}

func (s *UserCommandService) publish(ctx context.Context, stream, eventType string, data any) {
	if err := s.publisher.Publish(ctx, stream, eventType, data); err != nil {
		s.logger.WarnContext(ctx, "failed to publish event", "event", eventType, "error", err)
	}
}
