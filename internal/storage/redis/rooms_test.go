package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/cory-johannsen/lobby/internal/config"
	"github.com/cory-johannsen/lobby/internal/lobby/store"
	"github.com/cory-johannsen/lobby/internal/lobby/store/storetest"
)

func TestRoomStoreBehaviour(t *testing.T) {
	storetest.RunRoomStore(t, func(t *testing.T, codes store.CodeGenerator) store.RoomStore {
		mini := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return NewWithClient(client, time.Hour, codes)
	})
}

type RoomStoreSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	store *RoomStore
	ctx   context.Context
	now   time.Time
}

func TestRoomStoreSuite(t *testing.T) {
	suite.Run(t, new(RoomStoreSuite))
}

func (s *RoomStoreSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.store = NewWithClient(client, 10*time.Minute, &storetest.SeqCodes{})
	s.ctx = context.Background()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *RoomStoreSuite) TearDownTest() {
	if s.store != nil {
		_ = s.store.Close()
	}
}

func (s *RoomStoreSuite) TestRoomsExpire() {
	room, err := s.store.Create(s.ctx, 1, s.now)
	s.Require().NoError(err)
	s.Equal(10*time.Minute, s.mini.TTL(roomKey(room.ID)))

	s.mini.FastForward(11 * time.Minute)

	_, err = s.store.Get(s.ctx, room.ID)
	s.ErrorIs(err, store.ErrRoomNotFound)
	rooms, err := s.store.ListWaitingWithOpenSlot(s.ctx)
	s.Require().NoError(err)
	s.Empty(rooms)
}

func (s *RoomStoreSuite) TestExpiredEntriesArePruned() {
	room, err := s.store.Create(s.ctx, 1, s.now)
	s.Require().NoError(err)
	s.mini.Del(roomKey(room.ID))

	rooms, err := s.store.ListWaitingWithOpenSlot(s.ctx)
	s.Require().NoError(err)
	s.Empty(rooms)
	members, err := s.mini.ZMembers(openRoomsKey)
	if err == nil {
		s.Empty(members)
	}
}

func (s *RoomStoreSuite) TestUpdateRefreshesTTL() {
	room, err := s.store.Create(s.ctx, 1, s.now)
	s.Require().NoError(err)
	s.mini.FastForward(9 * time.Minute)

	room.Player2ID = 2
	s.Require().NoError(s.store.Update(s.ctx, room))
	s.Equal(10*time.Minute, s.mini.TTL(roomKey(room.ID)))
}

func (s *RoomStoreSuite) TestFullRoomLeavesOpenIndex() {
	room, err := s.store.Create(s.ctx, 1, s.now)
	s.Require().NoError(err)
	s.True(s.mini.Exists(openRoomsKey))

	room.Player2ID = 2
	s.Require().NoError(s.store.Update(s.ctx, room))
	members, _ := s.mini.ZMembers(openRoomsKey)
	s.Empty(members)

	room.Player2ID = 0
	s.Require().NoError(s.store.Update(s.ctx, room))
	rooms, err := s.store.ListWaitingWithOpenSlot(s.ctx)
	s.Require().NoError(err)
	s.Len(rooms, 1)
}

func (s *RoomStoreSuite) TestRedisUnavailable() {
	s.mini.SetError("LOADING")
	_, err := s.store.Create(s.ctx, 1, s.now)
	s.Error(err)
	s.NotErrorIs(err, store.ErrRoomNotFound)
}

func (s *RoomStoreSuite) TestNewFromConfig() {
	rs, err := New(s.ctx, config.RedisConfig{URL: "redis://" + s.mini.Addr() + "/0", PoolSize: 2}, &storetest.SeqCodes{})
	s.Require().NoError(err)
	defer rs.Close()

	room, err := rs.Create(s.ctx, 9, s.now)
	s.Require().NoError(err)
	s.Equal("CODE01", room.Code)

	_, err = New(s.ctx, config.RedisConfig{URL: "not a url"}, &storetest.SeqCodes{})
	s.Error(err)
}

func (s *RoomStoreSuite) TestHealthFollowsServer() {
	s.NoError(s.store.Health(s.ctx, time.Second))

	s.mini.Close()
	s.Error(s.store.Health(s.ctx, 200*time.Millisecond))
}
