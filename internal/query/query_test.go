package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/apibase/user-api/internal/repository"
	"github.com/apibase/user-api/internal/token"
	"github.com/apibase/user-api/shared/cqrs"
	"github.com/apibase/user-api/shared/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSessions struct{}

func (failingSessions) GetSession(context.Context, string) (*models.Session, error) {
	return nil, errors.New("redis and postgres both down")
}

func seed(t *testing.T, issuer *token.Issuer, store *repository.MemoryStore, id, email string) string {
	t.Helper()
	authToken, err := issuer.AuthToken(id, email)
	require.NoError(t, err)
	now := time.Now().UTC()
	require.NoError(t, store.Create(context.Background(), &models.User{
		ID: id, Email: email, AuthToken: authToken, CreatedAt: now, UpdatedAt: now,
	}))
	return authToken
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	issuer, err := token.NewIssuer("test-secret", 0)
	require.NoError(t, err)
	otherIssuer, err := token.NewIssuer("other-secret", 0)
	require.NoError(t, err)

	store := repository.NewMemoryStore()
	svc := NewUserQueryService(issuer, repository.NewSessionReadRepository(store, nil, 0, nil))

	good := seed(t, issuer, store, "usr-aaaaaaaaaa", "a@b.com")

	s, err := svc.Authenticate(ctx, good)
	require.NoError(t, err)
	assert.Equal(t, "usr-aaaaaaaaaa", s.UserID)
	assert.Equal(t, "a@b.com", s.Email)

	// Validly signed but not the token stored for the account.
	stale, err := issuer.AuthToken("usr-aaaaaaaaaa", "a@b.com")
	require.NoError(t, err)
	forged, err := otherIssuer.AuthToken("usr-aaaaaaaaaa", "a@b.com")
	require.NoError(t, err)
	orphan, err := issuer.AuthToken("usr-bbbbbbbbbb", "gone@b.com")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"stale":   stale,
		"forged":  forged,
		"orphan":  orphan,
		"garbage": "not-a-jwt",
		"empty":   "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Authenticate(ctx, tok)
			assert.ErrorIs(t, err, ErrUnauthenticated)
		})
	}

	require.NoError(t, store.Delete(ctx, "usr-aaaaaaaaaa"))
	_, err = svc.Authenticate(ctx, good)
	assert.ErrorIs(t, err, ErrUnauthenticated, "deleted accounts no longer authenticate")
}

func TestAuthenticate_StoreFailure(t *testing.T) {
	issuer, err := token.NewIssuer("test-secret", 0)
	require.NoError(t, err)
	tok, err := issuer.AuthToken("usr-aaaaaaaaaa", "a@b.com")
	require.NoError(t, err)

	_, err = NewUserQueryService(issuer, failingSessions{}).Identify(context.Background(), cqrs.AuthenticateQuery{Token: tok})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestListNotes(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()
	issuer, _ := token.NewIssuer("test-secret", 0)
	seed(t, issuer, store, "usr-aaaaaaaaaa", "a@b.com")
	svc := NewNoteQueryService(store)

	notes, err := svc.ListNotes(ctx, cqrs.ListNotesQuery{UserID: "usr-aaaaaaaaaa"})
	require.NoError(t, err)
	assert.NotNil(t, notes)
	assert.Empty(t, notes)

	base := time.Now().UTC()
	require.NoError(t, store.CreateNote(ctx, &models.Note{ID: "n2", UserID: "usr-aaaaaaaaaa", Title: "second", CreatedAt: base.Add(time.Second)}))
	require.NoError(t, store.CreateNote(ctx, &models.Note{ID: "n1", UserID: "usr-aaaaaaaaaa", Title: "first", CreatedAt: base}))

	notes, err = svc.ListNotes(ctx, cqrs.ListNotesQuery{UserID: "usr-aaaaaaaaaa"})
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "first", notes[0].Title)
}
