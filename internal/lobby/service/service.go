// Package service implements the lobby's player and room use-cases on top
// of the stores. It knows nothing about connections or wire formats.
package service

import (
	"errors"
	"time"
)

var (
	// ErrNotOnline is returned when the acting player has no live session.
	ErrNotOnline = errors.New("player is not online")
	// ErrRoomFull is returned when joining a room whose second slot is taken.
	ErrRoomFull = errors.New("room is full")
	// ErrOwnRoom is returned when a creator tries to join their own room.
	ErrOwnRoom = errors.New("cannot join own room")
	// ErrRoomNotWaiting is returned when an operation needs a WAITING room.
	ErrRoomNotWaiting = errors.New("room is not waiting")
	// ErrRoomNotPlaying is returned when ending a room that is not PLAYING.
	ErrRoomNotPlaying = errors.New("room is not playing")
	// ErrNotRoomMember is returned when the acting player is not in the room.
	ErrNotRoomMember = errors.New("player is not in the room")
	// ErrNotWinner is returned when the named winner is not in the room.
	ErrNotWinner = errors.New("winner is not in the room")
	// ErrInvalidInput is returned for empty usernames or passwords.
	ErrInvalidInput = errors.New("invalid input")
)

// Presence reports which players currently hold a session and tracks the
// room each one occupies.
type Presence interface {
	IsOnline(playerID int64) bool
	// JoinRoom records playerID in roomID. It returns false if the player
	// went offline.
	JoinRoom(playerID, roomID int64) bool
}

// Clock returns the current time.
type Clock func() time.Time
