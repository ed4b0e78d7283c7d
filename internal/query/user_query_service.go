package query

import (
	"context"
	"errors"

	"github.com/apibase/user-api/internal/repository"
	"github.com/apibase/user-api/internal/token"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/models"
)

// ErrUnauthenticated is returned for any token that does not identify a live account.
var ErrUnauthenticated = errors.New("unauthenticated")

type SessionReader interface {
	GetSession(ctx context.Context, userID string) (*models.Session, error)
}

type TokenParser interface {
	Parse(tokenString string) (*token.Claims, error)
}

// UserQueryService resolves auth tokens to identities, reading the session
// cache first (with a store fallback).
type UserQueryService struct {
	tokens   TokenParser
	sessions SessionReader
}

func NewUserQueryService(tokens TokenParser, sessions SessionReader) *UserQueryService {
	return &UserQueryService{tokens: tokens, sessions: sessions}
}

// Authenticate implements middleware.Authenticator.
func (s *UserQueryService) Authenticate(ctx context.Context, tokenString string) (*models.Session, error) {
	return s.Identify(ctx, cqrs.AuthenticateQuery{Token: tokenString})
}

// Identify verifies the signature, then requires the token to be the one
// currently stored for the account.
func (s *UserQueryService) Identify(ctx context.Context, q cqrs.AuthenticateQuery) (*models.Session, error) {
	claims, err := s.tokens.Parse(q.Token)
	if err != nil {
		return nil, ErrUnauthenticated
	}

	session, err := s.sessions.GetSession(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	if !token.Equal(session.TokenHash, token.Hash(q.Token)) {
		return nil, ErrUnauthenticated
	}
	return session, nil
}
