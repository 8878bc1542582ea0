package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

// RoomStore is a mutex-guarded store.RoomStore.
type RoomStore struct {
	mu     sync.RWMutex
	nextID int64
	rooms  map[int64]store.Room
	codes  store.CodeGenerator
}

// NewRoomStore creates an empty RoomStore drawing join codes from codes.
//
// Precondition: codes must be non-nil.
func NewRoomStore(codes store.CodeGenerator) *RoomStore {
	return &RoomStore{
		rooms: make(map[int64]store.Room),
		codes: codes,
	}
}

// Create implements store.RoomStore.
func (s *RoomStore) Create(_ context.Context, ownerID int64, at time.Time) (store.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	r := store.Room{
		ID:        s.nextID,
		Code:      s.codes.Next(),
		Status:    store.RoomWaiting,
		Player1ID: ownerID,
		CreatedAt: at,
	}
	s.rooms[r.ID] = r
	return r, nil
}

// FindWaitingByCode implements store.RoomStore. When codes collide the
// lowest id wins.
func (s *RoomStore) FindWaitingByCode(_ context.Context, code string) (store.Room, error) {
	return s.first(func(r store.Room) bool {
		return r.Code == code && r.Status == store.RoomWaiting
	})
}

// FindByCodeAndMember implements store.RoomStore.
func (s *RoomStore) FindByCodeAndMember(_ context.Context, code string, playerID int64) (store.Room, error) {
	return s.first(func(r store.Room) bool {
		return r.Code == code && r.HasMember(playerID)
	})
}

// Get implements store.RoomStore.
func (s *RoomStore) Get(_ context.Context, id int64) (store.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return store.Room{}, store.ErrRoomNotFound
	}
	return r, nil
}

// Update implements store.RoomStore.
func (s *RoomStore) Update(_ context.Context, room store.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; !ok {
		return store.ErrRoomNotFound
	}
	s.rooms[room.ID] = room
	return nil
}

// Delete implements store.RoomStore.
func (s *RoomStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return store.ErrRoomNotFound
	}
	delete(s.rooms, id)
	return nil
}

// ListWaitingWithOpenSlot implements store.RoomStore.
func (s *RoomStore) ListWaitingWithOpenSlot(_ context.Context) ([]store.Room, error) {
	return s.filter(store.Room.Joinable), nil
}

func (s *RoomStore) first(match func(store.Room) bool) (store.Room, error) {
	rooms := s.filter(match)
	if len(rooms) == 0 {
		return store.Room{}, store.ErrRoomNotFound
	}
	return rooms[0], nil
}

// filter returns matching rooms ordered by id.
func (s *RoomStore) filter(match func(store.Room) bool) []store.Room {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Room, 0)
	for _, r := range s.rooms {
		if match(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var _ store.RoomStore = (*RoomStore)(nil)
