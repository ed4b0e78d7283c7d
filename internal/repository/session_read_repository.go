package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/apibase/user-api/internal/token"
	"github.com/apibase/user-api/shared/models"
	sharedredis "github.com/apibase/user-api/shared/redis"
	goredis "github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "user:session:"

// UserFinder loads the write model by id.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

type sessionCache interface {
	Get(ctx context.Context, id string) (*models.Session, bool)
	Set(ctx context.Context, id string, value *models.Session)
	Delete(ctx context.Context, id string)
}

// SessionReadRepository serves authenticated identities from Redis first,
// falling back to the user store on a miss. Without Redis it reads through.
type SessionReadRepository struct {
	users UserFinder
	cache sessionCache
}

// NewSessionReadRepository caches sessions when client is non-nil.
func NewSessionReadRepository(users UserFinder, client *goredis.Client, ttl time.Duration, logger *slog.Logger) *SessionReadRepository {
	r := &SessionReadRepository{users: users}
	if client != nil {
		r.cache = sharedredis.NewViewCache[models.Session](client, sessionKeyPrefix, ttl, logger)
	}
	return r
}

// GetSession returns the session projection of userID, or ErrNotFound.
func (r *SessionReadRepository) GetSession(ctx context.Context, userID string) (*models.Session, error) {
	if r.cache != nil {
		if s, ok := r.cache.Get(ctx, userID); ok {
			return s, nil
		}
	}

	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	s := &models.Session{
		UserID:    user.ID,
		Email:     user.Email,
		TokenHash: token.Hash(user.AuthToken),
	}
	if r.cache != nil {
		r.cache.Set(ctx, userID, s)
	}
	return s, nil
}

// InvalidateSession drops the cached identity of a deleted user.
func (r *SessionReadRepository) InvalidateSession(ctx context.Context, userID string) {
	if r.cache != nil {
		r.cache.Delete(ctx, userID)
	}
}
