package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/apibase/user-api/shared/models"
)

// MemoryStore keeps users and notes in process memory. A single mutex
// serialises writes, so of two concurrent creates with the same email exactly
// one succeeds. Records are copied in and out.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[string]*models.User
	byEmail map[string]string
	notes   map[string][]models.Note
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[string]*models.User),
		byEmail: make(map[string]string),
		notes:   make(map[string][]models.Note),
	}
}

func (s *MemoryStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byEmail[user.Email]; taken {
		return ErrEmailTaken
	}
	s.users[user.ID] = cloneUser(user)
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *MemoryStore) GetByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(s.users[id]), nil
}

func (s *MemoryStore) GetByConfirmationToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.ConfirmationToken == token {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdatePassword(_ context.Context, id, passwordHash string, at time.Time) error {
	return s.update(id, func(u *models.User) bool {
		u.PasswordHash = passwordHash
		u.UpdatedAt = at
		return true
	})
}

func (s *MemoryStore) UpdateConfirmationToken(_ context.Context, id, token string, sentAt time.Time) error {
	return s.update(id, func(u *models.User) bool {
		if u.ConfirmedAt != nil {
			return false
		}
		u.ConfirmationToken = token
		u.ConfirmationSentAt = sentAt
		u.UpdatedAt = sentAt
		return true
	})
}

// Confirm only succeeds while token is still the account's confirmation token.
func (s *MemoryStore) Confirm(_ context.Context, id, token string, at time.Time) error {
	return s.update(id, func(u *models.User) bool {
		if token == "" || u.ConfirmationToken != token {
			return false
		}
		if u.ConfirmedAt == nil {
			t := at
			u.ConfirmedAt = &t
		}
		u.ConfirmationToken = ""
		u.UpdatedAt = at
		return true
	})
}

func (s *MemoryStore) update(id string, fn func(*models.User) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok || !fn(u) {
		return ErrNotFound
	}
	return nil
}

// Delete removes the user together with its notes.
func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byEmail, u.Email)
	delete(s.users, id)
	delete(s.notes, id)
	return nil
}

func (s *MemoryStore) CreateNote(_ context.Context, note *models.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[note.UserID]; !ok {
		return ErrNotFound
	}
	s.notes[note.UserID] = append(s.notes[note.UserID], *note)
	return nil
}

func (s *MemoryStore) ListNotesByUser(_ context.Context, userID string) ([]models.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	notes := make([]models.Note, len(s.notes[userID]))
	copy(notes, s.notes[userID])
	sort.SliceStable(notes, func(i, j int) bool { return notes[i].CreatedAt.Before(notes[j].CreatedAt) })
	return notes, nil
}

// UserCount reports how many accounts are stored.
func (s *MemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func cloneUser(u *models.User) *models.User {
	c := *u
	if u.ConfirmedAt != nil {
		t := *u.ConfirmedAt
		c.ConfirmedAt = &t
	}
	return &c
}
