// Package storetest holds behavioural tests shared by every store backend.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
)

// SeqCodes hands out "CODE01", "CODE02", ... in order.
type SeqCodes struct {
	mu sync.Mutex
	n  int
}

// Next implements store.CodeGenerator.
func (s *SeqCodes) Next() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return fmt.Sprintf("CODE%02d", s.n)
}

// RunPlayerStore exercises a PlayerStore built fresh for each subtest.
func RunPlayerStore(t *testing.T, newStore func(t *testing.T) store.PlayerStore) {
	ctx := context.Background()

	t.Run("CreateAndFind", func(t *testing.T) {
		s := newStore(t)
		p, err := s.Create(ctx, store.NewPlayer{Username: "alice", Password: "pw1", Nickname: "Al"})
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.Equal(t, "alice", p.Username)
		assert.Equal(t, "Al", p.Nickname)
		assert.Equal(t, int32(0), p.Score)
		assert.NotEqual(t, "pw1", p.PasswordHash)

		got, err := s.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, p.ID, got.ID)

		got, err = s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	})

	t.Run("DuplicateUsername", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Create(ctx, store.NewPlayer{Username: "bob", Password: "pw"})
		require.NoError(t, err)
		_, err = s.Create(ctx, store.NewPlayer{Username: "bob", Password: "other"})
		assert.ErrorIs(t, err, store.ErrUsernameTaken)
	})

	t.Run("FindByCredentials", func(t *testing.T) {
		s := newStore(t)
		created, err := s.Create(ctx, store.NewPlayer{Username: "carol", Password: "right"})
		require.NoError(t, err)

		p, err := s.FindByCredentials(ctx, "carol", "right")
		require.NoError(t, err)
		assert.Equal(t, created.ID, p.ID)

		_, err = s.FindByCredentials(ctx, "carol", "wrong")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)
		_, err = s.FindByCredentials(ctx, "nobody", "right")
		assert.ErrorIs(t, err, store.ErrInvalidCredentials)
	})

	t.Run("NotFound", func(t *testing.T) {
		s := newStore(t)
		_, err := s.FindByUsername(ctx, "ghost")
		assert.ErrorIs(t, err, store.ErrPlayerNotFound)
		_, err = s.Get(ctx, 424242)
		assert.ErrorIs(t, err, store.ErrPlayerNotFound)
		assert.ErrorIs(t, s.AddScore(ctx, 424242, 1), store.ErrPlayerNotFound)
		assert.ErrorIs(t, s.TouchLastLogin(ctx, 424242, time.Now()), store.ErrPlayerNotFound)
	})

	t.Run("TouchLastLoginAndScore", func(t *testing.T) {
		s := newStore(t)
		p, err := s.Create(ctx, store.NewPlayer{Username: "dave", Password: "pw"})
		require.NoError(t, err)
		assert.True(t, p.LastLoginAt.IsZero())

		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, s.TouchLastLogin(ctx, p.ID, at))
		require.NoError(t, s.AddScore(ctx, p.ID, 1))
		require.NoError(t, s.AddScore(ctx, p.ID, 2))

		got, err := s.Get(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, at.Equal(got.LastLoginAt), "last login %v", got.LastLoginAt)
		assert.Equal(t, int32(3), got.Score)
	})
}

// RunRoomStore exercises a RoomStore built fresh for each subtest. The store
// must draw codes from the supplied generator.
func RunRoomStore(t *testing.T, newStore func(t *testing.T, codes store.CodeGenerator) store.RoomStore) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("CreateAndGet", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		r, err := s.Create(ctx, 7, now)
		require.NoError(t, err)
		assert.NotZero(t, r.ID)
		assert.Equal(t, "CODE01", r.Code)
		assert.Equal(t, store.RoomWaiting, r.Status)
		assert.Equal(t, int64(7), r.Player1ID)
		assert.Zero(t, r.Player2ID)

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, r.Code, got.Code)
		assert.True(t, now.Equal(got.CreatedAt))
	})

	t.Run("FindWaitingByCode", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		r, err := s.Create(ctx, 1, now)
		require.NoError(t, err)

		got, err := s.FindWaitingByCode(ctx, r.Code)
		require.NoError(t, err)
		assert.Equal(t, r.ID, got.ID)

		r.Status = store.RoomPlaying
		r.StartedAt = now.Add(time.Minute)
		require.NoError(t, s.Update(ctx, r))
		_, err = s.FindWaitingByCode(ctx, r.Code)
		assert.ErrorIs(t, err, store.ErrRoomNotFound)

		_, err = s.FindWaitingByCode(ctx, "NOPE00")
		assert.ErrorIs(t, err, store.ErrRoomNotFound)
	})

	t.Run("FindByCodeAndMember", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		r, err := s.Create(ctx, 1, now)
		require.NoError(t, err)
		r.Player2ID = 2
		require.NoError(t, s.Update(ctx, r))

		for _, p := range []int64{1, 2} {
			got, err := s.FindByCodeAndMember(ctx, r.Code, p)
			require.NoError(t, err, "member %d", p)
			assert.Equal(t, r.ID, got.ID)
		}
		_, err = s.FindByCodeAndMember(ctx, r.Code, 3)
		assert.ErrorIs(t, err, store.ErrRoomNotFound)
	})

	t.Run("UpdateRoundTrips", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		r, err := s.Create(ctx, 1, now)
		require.NoError(t, err)
		r.Player2ID = 2
		r.Status = store.RoomEnded
		r.StartedAt = now.Add(time.Minute)
		r.EndedAt = now.Add(time.Hour)
		require.NoError(t, s.Update(ctx, r))

		got, err := s.Get(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, store.RoomEnded, got.Status)
		assert.Equal(t, int64(2), got.Player2ID)
		assert.True(t, r.StartedAt.Equal(got.StartedAt))
		assert.True(t, r.EndedAt.Equal(got.EndedAt))
	})

	t.Run("DeleteAndMissing", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		r, err := s.Create(ctx, 1, now)
		require.NoError(t, err)
		require.NoError(t, s.Delete(ctx, r.ID))

		_, err = s.Get(ctx, r.ID)
		assert.ErrorIs(t, err, store.ErrRoomNotFound)
		assert.ErrorIs(t, s.Delete(ctx, r.ID), store.ErrRoomNotFound)
		assert.ErrorIs(t, s.Update(ctx, r), store.ErrRoomNotFound)
	})

	t.Run("ListWaitingWithOpenSlot", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		open1, err := s.Create(ctx, 1, now)
		require.NoError(t, err)
		full, err := s.Create(ctx, 2, now)
		require.NoError(t, err)
		playing, err := s.Create(ctx, 3, now)
		require.NoError(t, err)
		open2, err := s.Create(ctx, 4, now)
		require.NoError(t, err)

		full.Player2ID = 5
		require.NoError(t, s.Update(ctx, full))
		playing.Status = store.RoomPlaying
		require.NoError(t, s.Update(ctx, playing))

		rooms, err := s.ListWaitingWithOpenSlot(ctx)
		require.NoError(t, err)
		require.Len(t, rooms, 2)
		assert.Equal(t, open1.ID, rooms[0].ID)
		assert.Equal(t, open2.ID, rooms[1].ID)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		s := newStore(t, &SeqCodes{})
		rooms, err := s.ListWaitingWithOpenSlot(ctx)
		require.NoError(t, err)
		assert.Empty(t, rooms)
	})
}
