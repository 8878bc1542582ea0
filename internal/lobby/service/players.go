package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

// Players handles authentication and registration.
type Players struct {
	store  store.PlayerStore
	clock  Clock
	logger *zap.Logger
}

// NewPlayers creates a Players service.
//
// Precondition: s, clock and logger must be non-nil.
func NewPlayers(s store.PlayerStore, clock Clock, logger *zap.Logger) *Players {
	return &Players{store: s, clock: clock, logger: logger}
}

// Login checks credentials and records the login time.
//
// Postcondition: Returns the player with LastLoginAt set, or
// store.ErrInvalidCredentials.
func (p *Players) Login(ctx context.Context, username, password string) (store.Player, error) {
	if username == "" || password == "" {
		return store.Player{}, store.ErrInvalidCredentials
	}
	player, err := p.store.FindByCredentials(ctx, username, password)
	if err != nil {
		return store.Player{}, err
	}
	now := p.clock()
	if err := p.store.TouchLastLogin(ctx, player.ID, now); err != nil {
		return store.Player{}, fmt.Errorf("recording login: %w", err)
	}
	player.LastLoginAt = now
	p.logger.Info("player logged in",
		zap.Int64("player_id", player.ID),
		zap.String("username", player.Username),
	)
	return player, nil
}

// Register creates a player with score 0.
//
// Postcondition: Returns the new player, store.ErrUsernameTaken, or
// ErrInvalidInput for an empty username or password.
func (p *Players) Register(ctx context.Context, np store.NewPlayer) (store.Player, error) {
	if np.Username == "" || np.Password == "" {
		return store.Player{}, ErrInvalidInput
	}
	_, err := p.store.FindByUsername(ctx, np.Username)
	switch {
	case err == nil:
		return store.Player{}, store.ErrUsernameTaken
	case !errors.Is(err, store.ErrPlayerNotFound):
		return store.Player{}, fmt.Errorf("checking username: %w", err)
	}

	player, err := p.store.Create(ctx, np)
	if err != nil {
		return store.Player{}, err
	}
	p.logger.Info("player registered",
		zap.Int64("player_id", player.ID),
		zap.String("username", player.Username),
	)
	return player, nil
}

// Info returns a player by id.
func (p *Players) Info(ctx context.Context, id int64) (store.Player, error) {
	return p.store.Get(ctx, id)
}
