package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

// RoomView is a room with its occupants resolved. A slot whose player cannot
// be loaded is nil.
type RoomView struct {
	store.Room
	Player1 *store.Player
	Player2 *store.Player
}

// LeaveResult describes the outcome of Leave.
type LeaveResult struct {
	// Room is the room after the change; when Deleted it is the last state.
	Room RoomView
	// Deleted is true when the creator left and the room was removed.
	Deleted bool
}

// Rooms implements the room lifecycle: WAITING → PLAYING → ENDED.
//
// Every read-modify-write sequence runs under one mutex so two players can
// never both claim the second slot.
type Rooms struct {
	mu       sync.Mutex
	rooms    store.RoomStore
	players  store.PlayerStore
	presence Presence
	clock    Clock
	logger   *zap.Logger
}

// NewRooms creates a Rooms service.
//
// Precondition: all arguments must be non-nil.
func NewRooms(rooms store.RoomStore, players store.PlayerStore, presence Presence, clock Clock, logger *zap.Logger) *Rooms {
	return &Rooms{
		rooms:    rooms,
		players:  players,
		presence: presence,
		clock:    clock,
		logger:   logger,
	}
}

// Create opens a WAITING room with playerID in slot 1 and records the
// player's presence in it.
//
// Postcondition: Returns the room, or ErrNotOnline.
func (s *Rooms) Create(ctx context.Context, playerID int64) (RoomView, error) {
	if !s.presence.IsOnline(playerID) {
		return RoomView{}, ErrNotOnline
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.Create(ctx, playerID, s.clock())
	if err != nil {
		return RoomView{}, fmt.Errorf("creating room: %w", err)
	}
	s.presence.JoinRoom(playerID, room.ID)
	s.logger.Info("room created",
		zap.Int64("room_id", room.ID),
		zap.String("room_code", room.Code),
		zap.Int64("player_id", playerID),
	)
	return s.view(ctx, room), nil
}

// Join places playerID in slot 2 of the WAITING room with code. Joining a
// room the player already occupies as slot 2 succeeds without change.
// Presence is updated before the lock is released, so a concurrent Leave by
// the creator either runs first (the join fails) or sees the joiner.
//
// Postcondition: Returns the updated room, or one of ErrNotOnline,
// store.ErrRoomNotFound, ErrOwnRoom, ErrRoomFull.
func (s *Rooms) Join(ctx context.Context, playerID int64, code string) (RoomView, error) {
	if !s.presence.IsOnline(playerID) {
		return RoomView{}, ErrNotOnline
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.FindWaitingByCode(ctx, code)
	if err != nil {
		return RoomView{}, err
	}
	switch {
	case room.Player1ID == playerID:
		return RoomView{}, ErrOwnRoom
	case room.Player2ID == playerID:
		s.presence.JoinRoom(playerID, room.ID)
		return s.view(ctx, room), nil
	case room.Player2ID != 0:
		return RoomView{}, ErrRoomFull
	}

	room.Player2ID = playerID
	if err := s.rooms.Update(ctx, room); err != nil {
		return RoomView{}, fmt.Errorf("joining room: %w", err)
	}
	s.presence.JoinRoom(playerID, room.ID)
	s.logger.Info("room joined",
		zap.Int64("room_id", room.ID),
		zap.Int64("player_id", playerID),
	)
	return s.view(ctx, room), nil
}

// Leave removes playerID from the WAITING room with code. The creator
// leaving deletes the room; the joiner leaving reopens slot 2.
//
// Postcondition: Returns the outcome, or one of ErrNotOnline,
// store.ErrRoomNotFound, ErrRoomNotWaiting.
func (s *Rooms) Leave(ctx context.Context, playerID int64, code string) (LeaveResult, error) {
	if !s.presence.IsOnline(playerID) {
		return LeaveResult{}, ErrNotOnline
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.FindByCodeAndMember(ctx, code, playerID)
	if err != nil {
		return LeaveResult{}, err
	}
	if room.Status != store.RoomWaiting {
		return LeaveResult{}, ErrRoomNotWaiting
	}

	if room.Player1ID == playerID {
		if err := s.rooms.Delete(ctx, room.ID); err != nil {
			return LeaveResult{}, fmt.Errorf("deleting room: %w", err)
		}
		s.logger.Info("room closed by creator",
			zap.Int64("room_id", room.ID),
			zap.Int64("player_id", playerID),
		)
		return LeaveResult{Room: s.view(ctx, room), Deleted: true}, nil
	}

	room.Player2ID = 0
	if err := s.rooms.Update(ctx, room); err != nil {
		return LeaveResult{}, fmt.Errorf("leaving room: %w", err)
	}
	s.logger.Info("room left",
		zap.Int64("room_id", room.ID),
		zap.Int64("player_id", playerID),
	)
	return LeaveResult{Room: s.view(ctx, room)}, nil
}

// ListWaiting returns the joinable rooms ordered by id.
func (s *Rooms) ListWaiting(ctx context.Context) ([]RoomView, error) {
	rooms, err := s.rooms.ListWaitingWithOpenSlot(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing rooms: %w", err)
	}
	views := make([]RoomView, 0, len(rooms))
	for _, r := range rooms {
		views = append(views, s.view(ctx, r))
	}
	return views, nil
}

// Start moves a WAITING room to PLAYING and stamps the start time.
//
// Postcondition: Returns the started room, or one of ErrNotOnline,
// store.ErrRoomNotFound, ErrNotRoomMember, ErrRoomNotWaiting.
func (s *Rooms) Start(ctx context.Context, playerID, roomID int64) (store.Room, error) {
	if !s.presence.IsOnline(playerID) {
		return store.Room{}, ErrNotOnline
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return store.Room{}, err
	}
	if !room.HasMember(playerID) {
		return store.Room{}, ErrNotRoomMember
	}
	if room.Status != store.RoomWaiting {
		return store.Room{}, ErrRoomNotWaiting
	}

	room.Status = store.RoomPlaying
	room.StartedAt = s.clock()
	if err := s.rooms.Update(ctx, room); err != nil {
		return store.Room{}, fmt.Errorf("starting room: %w", err)
	}
	s.logger.Info("game started",
		zap.Int64("room_id", room.ID),
		zap.Int64("player_id", playerID),
	)
	return room, nil
}

// End moves a PLAYING room to ENDED, stamps the end time and credits the
// winner with one point. A winnerID of 0 records a draw.
//
// Postcondition: Returns the ended room, or one of ErrNotOnline,
// store.ErrRoomNotFound, ErrNotRoomMember, ErrRoomNotPlaying, ErrNotWinner.
func (s *Rooms) End(ctx context.Context, playerID, roomID, winnerID int64) (store.Room, error) {
	if !s.presence.IsOnline(playerID) {
		return store.Room{}, ErrNotOnline
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return store.Room{}, err
	}
	if !room.HasMember(playerID) {
		return store.Room{}, ErrNotRoomMember
	}
	if room.Status != store.RoomPlaying {
		return store.Room{}, ErrRoomNotPlaying
	}
	if winnerID != 0 && !room.HasMember(winnerID) {
		return store.Room{}, ErrNotWinner
	}

	room.Status = store.RoomEnded
	room.EndedAt = s.clock()
	if err := s.rooms.Update(ctx, room); err != nil {
		return store.Room{}, fmt.Errorf("ending room: %w", err)
	}
	if winnerID != 0 {
		if err := s.players.AddScore(ctx, winnerID, 1); err != nil {
			// The room stays ENDED when crediting fails.
			s.logger.Error("crediting winner",
				zap.Int64("room_id", room.ID),
				zap.Int64("winner_id", winnerID),
				zap.Error(err),
			)
		}
	}
	s.logger.Info("game ended",
		zap.Int64("room_id", room.ID),
		zap.Int64("winner_id", winnerID),
	)
	return room, nil
}

// Info returns a room with its occupants resolved.
func (s *Rooms) Info(ctx context.Context, roomID int64) (RoomView, error) {
	room, err := s.rooms.Get(ctx, roomID)
	if err != nil {
		return RoomView{}, err
	}
	return s.view(ctx, room), nil
}

func (s *Rooms) view(ctx context.Context, room store.Room) RoomView {
	return RoomView{
		Room:    room,
		Player1: s.lookup(ctx, room.Player1ID),
		Player2: s.lookup(ctx, room.Player2ID),
	}
}

func (s *Rooms) lookup(ctx context.Context, id int64) *store.Player {
	if id == 0 {
		return nil
	}
	p, err := s.players.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrPlayerNotFound) {
			s.logger.Warn("loading room occupant", zap.Int64("player_id", id), zap.Error(err))
		}
		return nil
	}
	return &p
}
