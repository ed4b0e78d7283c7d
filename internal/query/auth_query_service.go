package query

import (
	"context"
	"errors"
	"sync"

	"github.com/apibase/user-api/internal/repository"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/models"
	"github.com/apibase/user-api/shared/utils"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type UserByEmail interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuthQueryService handles sign-in. It never mutates state: the returned
// token is the one issued at signup.
type AuthQueryService struct {
	users UserByEmail
}

func NewAuthQueryService(users UserByEmail) *AuthQueryService {
	return &AuthQueryService{users: users}
}

var (
	dummyHashOnce sync.Once
	dummyHash     string
)

// unknownEmailHash is compared against for unknown emails so both paths pay
// the bcrypt cost.
func unknownEmailHash() string {
	dummyHashOnce.Do(func() {
		dummyHash, _ = utils.HashPassword("not-a-real-password", 0)
	})
	return dummyHash
}

func (s *AuthQueryService) SignIn(ctx context.Context, q cqrs.SignInQuery) (*models.User, error) {
	user, err := s.users.GetByEmail(ctx, utils.NormalizeEmail(q.Email))
	if errors.Is(err, repository.ErrNotFound) {
		utils.CheckPassword(q.Password, unknownEmailHash())
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !utils.CheckPassword(q.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
