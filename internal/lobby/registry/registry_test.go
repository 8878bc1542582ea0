package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/lobby/internal/transport"
	"github.com/cory-johannsen/lobby/internal/transport/transporttest"
)

// checkInvariants fails t if the four maps disagree.
func checkInvariants(t interface{ Fatalf(string, ...any) }, r *Registry) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for p, c := range r.conns {
		if got, ok := r.players[c]; !ok || got != p {
			t.Fatalf("conns[%d] has no matching reverse entry (got %d, %v)", p, got, ok)
		}
	}
	for c, p := range r.players {
		if got, ok := r.conns[p]; !ok || got != c {
			t.Fatalf("players[%s] = %d has no matching forward entry", c.ID(), p)
		}
	}
	for p, room := range r.rooms {
		if _, ok := r.rosters[room][p]; !ok {
			t.Fatalf("player %d maps to room %d but is not in its roster", p, room)
		}
		if _, ok := r.conns[p]; !ok {
			t.Fatalf("player %d is in room %d without a session", p, room)
		}
	}
	for room, roster := range r.rosters {
		if len(roster) == 0 {
			t.Fatalf("room %d has an empty roster", room)
		}
		for p := range roster {
			if r.rooms[p] != room {
				t.Fatalf("roster of room %d lists player %d who maps to %d", room, p, r.rooms[p])
			}
		}
	}
}

func TestRegister_LastWriteWins(t *testing.T) {
	r := New()
	c1 := transporttest.NewRecorder("c1")
	c2 := transporttest.NewRecorder("c2")

	r.Register(1, c1)
	r.Register(1, c2)

	conn, ok := r.ConnectionOf(1)
	require.True(t, ok)
	assert.Same(t, c2, conn)
	_, ok = r.PlayerOf(c1)
	assert.False(t, ok, "stale connection must lose its reverse entry")
	assert.Equal(t, Stats{Online: 1}, r.Stats())
	checkInvariants(t, r)
}

func TestRegister_ReboundConnectionDropsPreviousPlayer(t *testing.T) {
	r := New()
	c := transporttest.NewRecorder("c")
	r.Register(1, c)
	require.True(t, r.JoinRoom(1, 100))

	r.Register(2, c)

	assert.False(t, r.IsOnline(1))
	_, inRoom := r.RoomOf(1)
	assert.False(t, inRoom)
	assert.Empty(t, r.MembersOf(100))
	got, ok := r.PlayerOf(c)
	require.True(t, ok)
	assert.Equal(t, int64(2), got)
	checkInvariants(t, r)
}

func TestUnregister_RemovesSessionAndMembership(t *testing.T) {
	r := New()
	c1 := transporttest.NewRecorder("c1")
	c2 := transporttest.NewRecorder("c2")
	r.Register(1, c1)
	r.Register(2, c2)
	r.JoinRoom(1, 100)
	r.JoinRoom(2, 100)

	p, ok := r.Unregister(c1)
	require.True(t, ok)
	assert.Equal(t, int64(1), p)
	assert.False(t, r.IsOnline(1))

	members := r.MembersOf(100)
	require.Len(t, members, 1)
	assert.Equal(t, int64(2), members[0].PlayerID)
	assert.Same(t, c2, members[0].Conn)
	checkInvariants(t, r)
}

func TestUnregister_UnknownIsNoop(t *testing.T) {
	r := New()
	_, ok := r.Unregister(transporttest.NewRecorder("ghost"))
	assert.False(t, ok)
	assert.Equal(t, Stats{}, r.Stats())
}

func TestUnregister_StaleConnectionKeepsNewSession(t *testing.T) {
	r := New()
	old := transporttest.NewRecorder("old")
	fresh := transporttest.NewRecorder("fresh")
	r.Register(1, old)
	r.Register(1, fresh)

	_, ok := r.Unregister(old)
	assert.False(t, ok)
	assert.True(t, r.IsOnline(1))
}

func TestUnregister_LastMemberRemovesRoster(t *testing.T) {
	r := New()
	c := transporttest.NewRecorder("c")
	r.Register(1, c)
	r.JoinRoom(1, 100)
	require.Equal(t, 1, r.Stats().Rooms)

	r.Unregister(c)
	assert.Equal(t, Stats{}, r.Stats())
}

func TestJoinRoom_RequiresOnline(t *testing.T) {
	r := New()
	assert.False(t, r.JoinRoom(1, 100))
	assert.Empty(t, r.MembersOf(100))
}

func TestJoinRoom_LastJoinWins(t *testing.T) {
	r := New()
	r.Register(1, transporttest.NewRecorder("c"))
	r.JoinRoom(1, 100)
	r.JoinRoom(1, 200)

	room, ok := r.RoomOf(1)
	require.True(t, ok)
	assert.Equal(t, int64(200), room)
	assert.Empty(t, r.MembersOf(100))
	assert.Len(t, r.MembersOf(200), 1)
	assert.Equal(t, 1, r.Stats().Rooms)
	checkInvariants(t, r)
}

func TestJoinRoom_SameRoomTwice(t *testing.T) {
	r := New()
	r.Register(1, transporttest.NewRecorder("c"))
	r.JoinRoom(1, 100)
	r.JoinRoom(1, 100)
	assert.Len(t, r.MembersOf(100), 1)
	checkInvariants(t, r)
}

func TestLeaveRoom(t *testing.T) {
	r := New()
	r.Register(1, transporttest.NewRecorder("c"))

	_, ok := r.LeaveRoom(1)
	assert.False(t, ok)

	r.JoinRoom(1, 100)
	room, ok := r.LeaveRoom(1)
	require.True(t, ok)
	assert.Equal(t, int64(100), room)
	assert.True(t, r.IsOnline(1), "leaving a room keeps the session")
	assert.Equal(t, Stats{Online: 1}, r.Stats())
}

func TestDisbandRoom(t *testing.T) {
	r := New()
	for i := int64(3); i >= 1; i-- {
		r.Register(i, transporttest.NewRecorder(fmt.Sprint(i)))
		r.JoinRoom(i, 100)
	}
	r.Register(9, transporttest.NewRecorder("9"))
	r.JoinRoom(9, 200)

	assert.Equal(t, []int64{1, 2, 3}, r.DisbandRoom(100))
	assert.Empty(t, r.MembersOf(100))
	assert.Len(t, r.MembersOf(200), 1)
	assert.Nil(t, r.DisbandRoom(100))
	assert.Equal(t, Stats{Online: 4, Rooms: 1}, r.Stats())
	checkInvariants(t, r)
}

func TestMembersOf_SortedAndEmptyForUnknown(t *testing.T) {
	r := New()
	assert.NotNil(t, r.MembersOf(42))
	assert.Empty(t, r.MembersOf(42))

	for _, id := range []int64{5, 2, 9} {
		r.Register(id, transporttest.NewRecorder(fmt.Sprint(id)))
		r.JoinRoom(id, 1)
	}
	var ids []int64
	for _, m := range r.MembersOf(1) {
		ids = append(ids, m.PlayerID)
	}
	assert.Equal(t, []int64{2, 5, 9}, ids)
}

func TestConcurrentOperationsStayConsistent(t *testing.T) {
	r := New()
	conns := make([]transport.Conn, 16)
	for i := range conns {
		conns[i] = transporttest.NewRecorder(fmt.Sprint(i))
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				p := int64((w*7 + i) % 16)
				c := conns[(w+i)%len(conns)]
				switch i % 6 {
				case 0:
					r.Register(p, c)
				case 1:
					r.JoinRoom(p, int64(i%3))
				case 2:
					r.LeaveRoom(p)
				case 3:
					r.MembersOf(int64(i % 3))
				case 4:
					if i%30 == 4 {
						r.DisbandRoom(int64(i % 3))
					}
				case 5:
					r.Unregister(c)
				}
			}
		}(w)
	}
	wg.Wait()
	checkInvariants(t, r)
}

// Property: any sequence of operations leaves the registry consistent, and
// queries agree with a simple model.
func TestPropertyInvariantsHold(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		r := New()
		conns := make([]transport.Conn, 4)
		for i := range conns {
			conns[i] = transporttest.NewRecorder(fmt.Sprint(i))
		}
		players := rapid.Int64Range(1, 5)
		rooms := rapid.Int64Range(1, 3)
		connIdx := rapid.IntRange(0, len(conns)-1)

		steps := rapid.IntRange(1, 60).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				p := players.Draw(t, "player")
				c := conns[connIdx.Draw(t, "conn")]
				r.Register(p, c)
				if got, _ := r.ConnectionOf(p); got != c {
					t.Fatalf("Register(%d) not visible", p)
				}
			case 1:
				c := conns[connIdx.Draw(t, "conn")]
				r.Unregister(c)
				if _, ok := r.PlayerOf(c); ok {
					t.Fatalf("connection %s still bound after Unregister", c.ID())
				}
			case 2:
				p := players.Draw(t, "player")
				room := rooms.Draw(t, "room")
				online := r.IsOnline(p)
				if r.JoinRoom(p, room) != online {
					t.Fatalf("JoinRoom(%d) result disagrees with IsOnline=%v", p, online)
				}
				if got, ok := r.RoomOf(p); online && (!ok || got != room) {
					t.Fatalf("RoomOf(%d) = %d,%v want %d", p, got, ok, room)
				}
			case 3:
				p := players.Draw(t, "player")
				r.LeaveRoom(p)
				if _, ok := r.RoomOf(p); ok {
					t.Fatalf("player %d still in a room after LeaveRoom", p)
				}
			case 4:
				room := rooms.Draw(t, "room")
				r.DisbandRoom(room)
				if len(r.MembersOf(room)) != 0 {
					t.Fatalf("room %d not empty after DisbandRoom", room)
				}
			}
			checkInvariants(t, r)
		}
	})
}
