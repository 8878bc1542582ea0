// Package redis provides a Redis-backed room store. Rooms are JSON values with
// a TTL; sorted sets index them by code and by joinability.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

const (
	roomSeqKey    = "lobby:rooms:seq"
	openRoomsKey  = "lobby:rooms:open"
	roomKeyPrefix = "lobby:room:"
	codeKeyPrefix = "lobby:room:code:"
)

func roomKey(id int64) string    { return roomKeyPrefix + strconv.FormatInt(id, 10) }
func codeKey(code string) string { return codeKeyPrefix + code }
func member(id int64) string     { return strconv.FormatInt(id, 10) }

// RoomStore implements store.RoomStore on Redis.
type RoomStore struct {
	client *redis.Client
	ttl    time.Duration
	codes  store.CodeGenerator
}

// New connects to the Redis server named by cfg.URL.
//
// Postcondition: Returns a RoomStore whose connection answered PING, or an error.
func New(ctx context.Context, cfg config.RedisConfig, codes store.CodeGenerator) (*RoomStore, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewWithClient(client, cfg.RoomTTL, codes), nil
}

// NewWithClient wraps an existing client. A zero ttl keeps rooms forever.
func NewWithClient(client *redis.Client, ttl time.Duration, codes store.CodeGenerator) *RoomStore {
	return &RoomStore{client: client, ttl: ttl, codes: codes}
}

// Close closes the Redis connection.
func (s *RoomStore) Close() error {
	return s.client.Close()
}

// Health pings Redis within timeout.
func (s *RoomStore) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

// Create implements store.RoomStore.
func (s *RoomStore) Create(ctx context.Context, ownerID int64, at time.Time) (store.Room, error) {
	id, err := s.client.Incr(ctx, roomSeqKey).Result()
	if err != nil {
		return store.Room{}, fmt.Errorf("allocating room id: %w", err)
	}
	room := store.Room{
		ID:        id,
		Code:      s.codes.Next(),
		Status:    store.RoomWaiting,
		Player1ID: ownerID,
		CreatedAt: at,
	}
	if err := s.save(ctx, room); err != nil {
		return store.Room{}, err
	}
	return room, nil
}

// FindWaitingByCode implements store.RoomStore.
func (s *RoomStore) FindWaitingByCode(ctx context.Context, code string) (store.Room, error) {
	return s.findByCode(ctx, code, func(r store.Room) bool { return r.Status == store.RoomWaiting })
}

// FindByCodeAndMember implements store.RoomStore.
func (s *RoomStore) FindByCodeAndMember(ctx context.Context, code string, playerID int64) (store.Room, error) {
	return s.findByCode(ctx, code, func(r store.Room) bool { return r.HasMember(playerID) })
}

// Get implements store.RoomStore.
func (s *RoomStore) Get(ctx context.Context, id int64) (store.Room, error) {
	data, err := s.client.Get(ctx, roomKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return store.Room{}, store.ErrRoomNotFound
		}
		return store.Room{}, fmt.Errorf("reading room %d: %w", id, err)
	}
	return decodeRoom(data)
}

// Update implements store.RoomStore. The room's TTL is refreshed.
func (s *RoomStore) Update(ctx context.Context, room store.Room) error {
	n, err := s.client.Exists(ctx, roomKey(room.ID)).Result()
	if err != nil {
		return fmt.Errorf("checking room %d: %w", room.ID, err)
	}
	if n == 0 {
		return store.ErrRoomNotFound
	}
	return s.save(ctx, room)
}

// Delete implements store.RoomStore.
func (s *RoomStore) Delete(ctx context.Context, id int64) error {
	room, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, roomKey(id))
	pipe.ZRem(ctx, openRoomsKey, member(id))
	pipe.ZRem(ctx, codeKey(room.Code), member(id))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("deleting room %d: %w", id, err)
	}
	return nil
}

// ListWaitingWithOpenSlot implements store.RoomStore. Index entries whose
// room has expired are pruned.
func (s *RoomStore) ListWaitingWithOpenSlot(ctx context.Context) ([]store.Room, error) {
	rooms, err := s.loadIndexed(ctx, openRoomsKey)
	if err != nil {
		return nil, err
	}
	out := make([]store.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Joinable() {
			out = append(out, r)
		}
	}
	return out, nil
}

// save writes room and brings both indexes in line with it.
func (s *RoomStore) save(ctx context.Context, room store.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("encoding room %d: %w", room.ID, err)
	}

	z := redis.Z{Score: float64(room.ID), Member: member(room.ID)}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, roomKey(room.ID), data, s.ttl)
	pipe.ZAdd(ctx, codeKey(room.Code), z)
	if s.ttl > 0 {
		pipe.Expire(ctx, codeKey(room.Code), s.ttl)
	}
	if room.Joinable() {
		pipe.ZAdd(ctx, openRoomsKey, z)
	} else {
		pipe.ZRem(ctx, openRoomsKey, member(room.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving room %d: %w", room.ID, err)
	}
	return nil
}

func (s *RoomStore) findByCode(ctx context.Context, code string, match func(store.Room) bool) (store.Room, error) {
	rooms, err := s.loadIndexed(ctx, codeKey(code))
	if err != nil {
		return store.Room{}, err
	}
	for _, r := range rooms {
		if r.Code == code && match(r) {
			return r, nil
		}
	}
	return store.Room{}, store.ErrRoomNotFound
}

// loadIndexed returns the rooms listed in the sorted set at key, ordered by
// id, removing members whose room no longer exists.
func (s *RoomStore) loadIndexed(ctx context.Context, key string) ([]store.Room, error) {
	ids, err := s.client.ZRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading index %s: %w", key, err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = roomKeyPrefix + id
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("reading rooms: %w", err)
	}

	rooms := make([]store.Room, 0, len(values))
	var stale []any
	for i, v := range values {
		str, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		room, err := decodeRoom([]byte(str))
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, key, stale...).Err(); err != nil {
			return nil, fmt.Errorf("pruning index %s: %w", key, err)
		}
	}
	return rooms, nil
}

func decodeRoom(data []byte) (store.Room, error) {
	var room store.Room
	if err := json.Unmarshal(data, &room); err != nil {
		return store.Room{}, fmt.Errorf("decoding room: %w", err)
	}
	return room, nil
}

var _ store.RoomStore = (*RoomStore)(nil)
