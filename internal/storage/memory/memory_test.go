package memory

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/lobby/internal/lobby/store"
	"github.com/cory-johannsen/lobby/internal/lobby/store/storetest"
)

func TestPlayerStore(t *testing.T) {
	storetest.RunPlayerStore(t, func(t *testing.T) store.PlayerStore {
		return NewPlayerStore()
	})
}

func TestRoomStore(t *testing.T) {
	storetest.RunRoomStore(t, func(t *testing.T, codes store.CodeGenerator) store.RoomStore {
		return NewRoomStore(codes)
	})
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedCode string

func (c fixedCode) Next() string { return string(c) }

func TestRoomStore_CollidingCodesResolveToLowestID(t *testing.T) {
	ctx := context.Background()
	s := NewRoomStore(fixedCode("SAME00"))
	first, err := s.Create(ctx, 1, testTime)
	require.NoError(t, err)
	_, err = s.Create(ctx, 2, testTime)
	require.NoError(t, err)

	got, err := s.FindWaitingByCode(ctx, "SAME00")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestLoadSeed(t *testing.T) {
	ctx := context.Background()
	hash, err := store.HashPassword("hashed-secret")
	require.NoError(t, err)

	s := NewPlayerStore()
	n, err := LoadSeed(s, []byte(`
players:
  - username: alice
    password: secret
    nickname: Alice
    score: 4
  - username: bob
    password_hash: `+hash+`
    nickname: Bob
`))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	alice, err := s.FindByCredentials(ctx, "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, int32(4), alice.Score)
	assert.Equal(t, "Alice", alice.Nickname)

	_, err = s.FindByCredentials(ctx, "bob", "hashed-secret")
	require.NoError(t, err)
}

func TestLoadSeed_Rejects(t *testing.T) {
	cases := map[string]string{
		"bad yaml":       "players: [",
		"empty username": "players:\n  - password: x\n",
		"no password":    "players:\n  - username: a\n",
		"both passwords": "players:\n  - username: a\n    password: x\n    password_hash: y\n",
		"duplicate":      "players:\n  - username: a\n    password: x\n  - username: a\n    password: y\n",
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSeed(NewPlayerStore(), []byte(data))
			assert.Error(t, err)
		})
	}
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "players.yaml")
	require.NoError(t, os.WriteFile(path, []byte("players:\n  - username: zed\n    password: pw\n"), 0o644))

	s := NewPlayerStore()
	n, err := LoadSeedFile(s, path)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = LoadSeedFile(s, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
