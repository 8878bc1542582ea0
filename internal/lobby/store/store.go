// Package store defines the lobby's persistent entities and the storage
// contracts the backends under internal/storage implement.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrPlayerNotFound is returned when a player lookup yields no results.
var ErrPlayerNotFound = errors.New("player not found")

// ErrInvalidCredentials is returned when a username/password pair does not match.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrUsernameTaken is returned when creating a player whose username exists.
var ErrUsernameTaken = errors.New("username already exists")

// ErrRoomNotFound is returned when a room lookup yields no results.
var ErrRoomNotFound = errors.New("room not found")

// RoomStatus is the lifecycle stage of a room. Values match the wire encoding.
type RoomStatus int32

const (
	RoomWaiting RoomStatus = 0
	RoomPlaying RoomStatus = 1
	RoomEnded   RoomStatus = 2
)

func (s RoomStatus) String() string {
	switch s {
	case RoomWaiting:
		return "WAITING"
	case RoomPlaying:
		return "PLAYING"
	case RoomEnded:
		return "ENDED"
	}
	return "UNKNOWN"
}

// Player is a registered account.
type Player struct {
	ID           int64     `json:"id" yaml:"id"`
	Username     string    `json:"username" yaml:"username"`
	PasswordHash string    `json:"-" yaml:"password_hash"`
	Nickname     string    `json:"nickname" yaml:"nickname"`
	Score        int32     `json:"score" yaml:"score"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
	// LastLoginAt is zero until the first login.
	LastLoginAt time.Time `json:"last_login_at" yaml:"last_login_at"`
}

// NewPlayer holds the fields supplied at registration.
type NewPlayer struct {
	Username string
	Password string
	Nickname string
}

// Room is a two-slot game room. Player1ID is the creator; Player2ID is zero
// while the second slot is open.
type Room struct {
	ID        int64      `json:"id"`
	Code      string     `json:"code"`
	Status    RoomStatus `json:"status"`
	Player1ID int64      `json:"player1_id"`
	Player2ID int64      `json:"player2_id"`
	CreatedAt time.Time  `json:"created_at"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   time.Time  `json:"ended_at"`
}

// HasMember reports whether playerID occupies either slot.
func (r Room) HasMember(playerID int64) bool {
	return playerID != 0 && (r.Player1ID == playerID || r.Player2ID == playerID)
}

// Joinable reports whether the room is waiting with its second slot open.
func (r Room) Joinable() bool {
	return r.Status == RoomWaiting && r.Player2ID == 0
}

// CodeGenerator produces join codes for new rooms.
type CodeGenerator interface {
	Next() string
}

// PlayerStore persists players.
type PlayerStore interface {
	// FindByCredentials returns the player whose username and password match,
	// or ErrInvalidCredentials.
	FindByCredentials(ctx context.Context, username, password string) (Player, error)
	// FindByUsername returns the player with username, or ErrPlayerNotFound.
	FindByUsername(ctx context.Context, username string) (Player, error)
	// Create stores a new player with score 0 and a hashed password, or
	// returns ErrUsernameTaken.
	Create(ctx context.Context, p NewPlayer) (Player, error)
	// TouchLastLogin records a login at the given time.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
	// Get returns the player with id, or ErrPlayerNotFound.
	Get(ctx context.Context, id int64) (Player, error)
	// AddScore adds delta to the player's score.
	AddScore(ctx context.Context, id int64, delta int32) error
}

// RoomStore persists rooms.
type RoomStore interface {
	// Create stores a WAITING room owned by ownerID with a fresh join code.
	Create(ctx context.Context, ownerID int64, at time.Time) (Room, error)
	// FindWaitingByCode returns the WAITING room with code, or ErrRoomNotFound.
	FindWaitingByCode(ctx context.Context, code string) (Room, error)
	// FindByCodeAndMember returns the room with code that playerID occupies,
	// or ErrRoomNotFound.
	FindByCodeAndMember(ctx context.Context, code string, playerID int64) (Room, error)
	// Get returns the room with id, or ErrRoomNotFound.
	Get(ctx context.Context, id int64) (Room, error)
	// Update overwrites the stored room with the same id, or returns
	// ErrRoomNotFound.
	Update(ctx context.Context, room Room) error
	// Delete removes the room with id, or returns ErrRoomNotFound.
	Delete(ctx context.Context, id int64) error
	// ListWaitingWithOpenSlot returns every joinable room ordered by id.
	ListWaitingWithOpenSlot(ctx context.Context) ([]Room, error)
}
