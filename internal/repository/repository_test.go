package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/apibase/user-api/internal/token"
	"github.com/apibase/user-api/shared/models"
	"github.com/golang-migrate/migrate/v4"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newUser(id, email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		ID:                 id,
		Email:              email,
		PasswordHash:       "hash",
		AuthToken:          "auth-" + id,
		ConfirmationToken:  "confirm-" + id,
		ConfirmationSentAt: now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestMemoryStore_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, newUser("usr-1", "a@b.com")))

	byID, err := s.GetByID(ctx, "usr-1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)

	byEmail, err := s.GetByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", byEmail.ID)

	byToken, err := s.GetByConfirmationToken(ctx, "confirm-usr-1")
	require.NoError(t, err)
	assert.Equal(t, "usr-1", byToken.ID)

	_, err = s.GetByID(ctx, "usr-404")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByEmail(ctx, "nobody@b.com")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByConfirmationToken(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)

	byID.Email = "mutated@b.com"
	again, _ := s.GetByID(ctx, "usr-1")
	assert.Equal(t, "a@b.com", again.Email, "store must hand out copies")
}

func TestMemoryStore_DuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Create(ctx, newUser("usr-1", "a@b.com")))
	assert.ErrorIs(t, s.Create(ctx, newUser("usr-2", "a@b.com")), ErrEmailTaken)
	assert.Equal(t, 1, s.UserCount())
}

func TestMemoryStore_ConcurrentCreatesSameEmail(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	s := NewMemoryStore()

	const writers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	var succeeded, taken int

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.Create(ctx, newUser(fmt.Sprintf("usr-%d", i), "race@b.com"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrEmailTaken):
				taken++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, taken)
	assert.Equal(t, 1, s.UserCount())
}

func TestMemoryStore_Updates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("usr-1", "a@b.com")))
	at := time.Now().UTC().Add(time.Minute)

	require.NoError(t, s.UpdatePassword(ctx, "usr-1", "new-hash", at))
	u, _ := s.GetByID(ctx, "usr-1")
	assert.Equal(t, "new-hash", u.PasswordHash)
	assert.Equal(t, at, u.UpdatedAt)

	require.NoError(t, s.UpdateConfirmationToken(ctx, "usr-1", "fresh", at))
	u, _ = s.GetByID(ctx, "usr-1")
	assert.Equal(t, "fresh", u.ConfirmationToken)
	assert.Equal(t, at, u.ConfirmationSentAt)

	require.NoError(t, s.Confirm(ctx, "usr-1", "fresh", at))
	u, _ = s.GetByID(ctx, "usr-1")
	require.NotNil(t, u.ConfirmedAt)
	assert.Equal(t, at, *u.ConfirmedAt)
	assert.Empty(t, u.ConfirmationToken)

	later := at.Add(time.Hour)
	assert.ErrorIs(t, s.Confirm(ctx, "usr-1", "fresh", later), ErrNotFound, "token is consumed")
	assert.ErrorIs(t, s.Confirm(ctx, "usr-1", "", later), ErrNotFound)
	u, _ = s.GetByID(ctx, "usr-1")
	assert.Equal(t, at, *u.ConfirmedAt, "confirmed_at never moves once set")

	assert.ErrorIs(t, s.UpdateConfirmationToken(ctx, "usr-1", "again", later), ErrNotFound,
		"confirmed accounts get no new confirmation token")
	assert.ErrorIs(t, s.UpdatePassword(ctx, "usr-404", "x", at), ErrNotFound)
}

func TestMemoryStore_DeleteCascadesNotes(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("usr-1", "a@b.com")))
	require.NoError(t, s.Create(ctx, newUser("usr-2", "c@d.com")))

	require.NoError(t, s.CreateNote(ctx, &models.Note{ID: "n1", UserID: "usr-1", Title: "one"}))
	require.NoError(t, s.CreateNote(ctx, &models.Note{ID: "n2", UserID: "usr-2", Title: "two"}))
	assert.ErrorIs(t, s.CreateNote(ctx, &models.Note{ID: "n3", UserID: "usr-404"}), ErrNotFound)

	require.NoError(t, s.Delete(ctx, "usr-1"))

	_, err := s.GetByID(ctx, "usr-1")
	assert.ErrorIs(t, err, ErrNotFound)
	notes, err := s.ListNotesByUser(ctx, "usr-1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	others, err := s.ListNotesByUser(ctx, "usr-2")
	require.NoError(t, err)
	assert.Len(t, others, 1)

	require.NoError(t, s.Create(ctx, newUser("usr-3", "a@b.com")), "email is free again after delete")
	assert.ErrorIs(t, s.Delete(ctx, "usr-1"), ErrNotFound)
}

type mapCache struct {
	items   map[string]*models.Session
	deleted []string
}

func (m *mapCache) Get(_ context.Context, id string) (*models.Session, bool) {
	s, ok := m.items[id]
	return s, ok
}
func (m *mapCache) Set(_ context.Context, id string, v *models.Session) { m.items[id] = v }
func (m *mapCache) Delete(_ context.Context, id string) {
	delete(m.items, id)
	m.deleted = append(m.deleted, id)
}

func TestSessionReadRepository(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Create(ctx, newUser("usr-1", "a@b.com")))

	t.Run("without cache reads through", func(t *testing.T) {
		repo := NewSessionReadRepository(store, nil, 0, nil)
		s, err := repo.GetSession(ctx, "usr-1")
		require.NoError(t, err)
		assert.Equal(t, "usr-1", s.UserID)
		assert.Equal(t, token.Hash("auth-usr-1"), s.TokenHash)
		repo.InvalidateSession(ctx, "usr-1")

		_, err = repo.GetSession(ctx, "usr-404")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("with cache warms and invalidates", func(t *testing.T) {
		cache := &mapCache{items: map[string]*models.Session{}}
		repo := &SessionReadRepository{users: store, cache: cache}

		_, err := repo.GetSession(ctx, "usr-1")
		require.NoError(t, err)
		require.Contains(t, cache.items, "usr-1")

		cache.items["usr-1"].Email = "cached@b.com"
		s, err := repo.GetSession(ctx, "usr-1")
		require.NoError(t, err)
		assert.Equal(t, "cached@b.com", s.Email, "hit is served from cache")

		repo.InvalidateSession(ctx, "usr-1")
		assert.NotContains(t, cache.items, "usr-1")
		assert.Equal(t, []string{"usr-1"}, cache.deleted)
	})
}

func TestMapInsertError(t *testing.T) {
	taken := &pq.Error{Code: uniqueViolation, Constraint: emailConstraint}
	assert.ErrorIs(t, mapInsertError(taken), ErrEmailTaken)
	assert.ErrorIs(t, mapInsertError(fmt.Errorf("exec: %w", taken)), ErrEmailTaken)

	otherUnique := &pq.Error{Code: uniqueViolation, Constraint: "users_confirmation_token_key"}
	err := mapInsertError(otherUnique)
	assert.NotErrorIs(t, err, ErrEmailTaken)
	assert.ErrorIs(t, err, otherUnique)

	assert.NotErrorIs(t, mapInsertError(errors.New("connection reset")), ErrEmailTaken)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	ups, downs := map[string]bool{}, map[string]bool{}
	for _, e := range entries {
		name := e.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			ups[strings.TrimSuffix(name, ".up.sql")] = true
		case strings.HasSuffix(name, ".down.sql"):
			downs[strings.TrimSuffix(name, ".down.sql")] = true
		default:
			t.Errorf("unexpected file in migrations: %s", name)
		}
	}
	assert.Equal(t, ups, downs)
}

type fakeMigrate struct {
	upErr      error
	version    uint
	versionErr error
}

func (f *fakeMigrate) Up() error   { return f.upErr }
func (f *fakeMigrate) Down() error { return migrate.ErrNoChange }
func (f *fakeMigrate) Version() (uint, bool, error) {
	return f.version, false, f.versionErr
}
func (f *fakeMigrate) Close() (error, error) { return nil, nil }

func TestMigrator(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{upErr: migrate.ErrNoChange, versionErr: migrate.ErrNilVersion}}
	assert.NoError(t, m.Up(), "no change is not an error")
	assert.NoError(t, m.Down())
	v, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Zero(t, v)
	assert.False(t, dirty)
	assert.NoError(t, m.Close())

	failing := &Migrator{m: &fakeMigrate{upErr: errors.New("syntax error"), versionErr: errors.New("boom")}}
	assert.Error(t, failing.Up())
	_, _, err = failing.Version()
	assert.Error(t, err)
}

func TestMemoryStore_ConfirmRequiresCurrentToken(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.Create(ctx, newUser("usr-1", "a@b.com")))
	at := time.Now().UTC()

	require.NoError(t, s.UpdateConfirmationToken(ctx, "usr-1", "old", at))
	require.NoError(t, s.UpdateConfirmationToken(ctx, "usr-1", "new", at))

	assert.ErrorIs(t, s.Confirm(ctx, "usr-1", "old", at), ErrNotFound)
	u, _ := s.GetByID(ctx, "usr-1")
	assert.Nil(t, u.ConfirmedAt, "a replaced token confirms nothing")
	assert.Equal(t, "new", u.ConfirmationToken)

	require.NoError(t, s.Confirm(ctx, "usr-1", "new", at))
}
