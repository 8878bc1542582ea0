// Package memory provides in-process implementations of the lobby stores.
// State is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

// PlayerStore is a mutex-guarded store.PlayerStore.
type PlayerStore struct {
	mu         sync.RWMutex
	nextID     int64
	byID       map[int64]store.Player
	byUsername map[string]int64
	now        func() time.Time
}

// NewPlayerStore creates an empty PlayerStore.
func NewPlayerStore() *PlayerStore {
	return &PlayerStore{
		byID:       make(map[int64]store.Player),
		byUsername: make(map[string]int64),
		now:        time.Now,
	}
}

// FindByCredentials implements store.PlayerStore.
func (s *PlayerStore) FindByCredentials(_ context.Context, username, password string) (store.Player, error) {
	s.mu.RLock()
	id, ok := s.byUsername[username]
	p := s.byID[id]
	s.mu.RUnlock()

	// bcrypt runs outside the lock.
	if !ok || !store.CheckPassword(password, p.PasswordHash) {
		return store.Player{}, store.ErrInvalidCredentials
	}
	return p, nil
}

// FindByUsername implements store.PlayerStore.
func (s *PlayerStore) FindByUsername(_ context.Context, username string) (store.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byUsername[username]
	if !ok {
		return store.Player{}, store.ErrPlayerNotFound
	}
	return s.byID[id], nil
}

// Create implements store.PlayerStore.
func (s *PlayerStore) Create(_ context.Context, np store.NewPlayer) (store.Player, error) {
	hash, err := store.HashPassword(np.Password)
	if err != nil {
		return store.Player{}, fmt.Errorf("hashing password: %w", err)
	}
	return s.insert(store.Player{
		Username:     np.Username,
		PasswordHash: hash,
		Nickname:     np.Nickname,
		CreatedAt:    s.now(),
	})
}

// insert assigns an id to p and stores it.
func (s *PlayerStore) insert(p store.Player) (store.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byUsername[p.Username]; taken {
		return store.Player{}, store.ErrUsernameTaken
	}
	s.nextID++
	p.ID = s.nextID
	s.byID[p.ID] = p
	s.byUsername[p.Username] = p.ID
	return p, nil
}

// TouchLastLogin implements store.PlayerStore.
func (s *PlayerStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	return s.modify(id, func(p *store.Player) { p.LastLoginAt = at })
}

// Get implements store.PlayerStore.
func (s *PlayerStore) Get(_ context.Context, id int64) (store.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return store.Player{}, store.ErrPlayerNotFound
	}
	return p, nil
}

// AddScore implements store.PlayerStore.
func (s *PlayerStore) AddScore(_ context.Context, id int64, delta int32) error {
	return s.modify(id, func(p *store.Player) { p.Score += delta })
}

func (s *PlayerStore) modify(id int64, fn func(p *store.Player)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return store.ErrPlayerNotFound
	}
	fn(&p)
	s.byID[id] = p
	return nil
}

var _ store.PlayerStore = (*PlayerStore)(nil)
