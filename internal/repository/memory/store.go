// Package memory implements the user store in process memory.
// It backs local development and the handler and service tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/schedly/schedly/internal/model"
	"github.com/schedly/schedly/internal/repository"
)

// Store is a map-backed user store safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	byID       map[string]*model.User
	byUsername map[string]*model.User
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		byID:       make(map[string]*model.User),
		byUsername: make(map[string]*model.User),
	}
}

// CreateUser stores a new user. The uniqueness check and the insert happen
// under one lock.
func (s *Store) CreateUser(_ context.Context, name, username string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byUsername[username]; taken {
		return nil, repository.ErrUsernameExists
	}

	user := &model.User{
		ID:        ulid.Make().String(),
		Name:      name,
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	s.byID[user.ID] = user
	s.byUsername[user.Username] = user

	out := *user
	return &out, nil
}

// GetUserByID retrieves a user by id.
func (s *Store) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// FindUserByUsername retrieves a user by exact username match.
func (s *Store) FindUserByUsername(_ context.Context, username string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.byUsername[username]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	out := *user
	return &out, nil
}

// Len returns the number of stored users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }
