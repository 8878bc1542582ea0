package dispatch_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/lobby/internal/lobby/broadcast"
	"github.com/cory-johannsen/lobby/internal/lobby/dispatch"
	"github.com/cory-johannsen/lobby/internal/lobby/registry"
	"github.com/cory-johannsen/lobby/internal/lobby/service"
	"github.com/cory-johannsen/lobby/internal/lobby/store"
	"github.com/cory-johannsen/lobby/internal/lobby/store/storetest"
	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/storage/memory"
	"github.com/cory-johannsen/lobby/internal/transport/transporttest"
)

type harness struct {
	t        *testing.T
	d        *dispatch.Dispatcher
	registry *registry.Registry
	players  *memory.PlayerStore
	rooms    *memory.RoomStore
	ids      map[string]int64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	reg := registry.New()
	playerStore := memory.NewPlayerStore()
	players := service.NewPlayers(playerStore, clock, logger)
	roomStore := memory.NewRoomStore(&storetest.SeqCodes{})
	rooms := service.NewRooms(roomStore, playerStore, reg, clock, logger)

	h := &harness{
		t:        t,
		d:        dispatch.New(reg, broadcast.New(reg, logger), players, rooms, logger),
		registry: reg,
		players:  playerStore,
		rooms:    roomStore,
		ids:      map[string]int64{},
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		p, err := playerStore.Create(context.Background(), store.NewPlayer{Username: name, Password: "pw", Nickname: name})
		require.NoError(t, err)
		h.ids[name] = p.ID
	}
	return h
}

func (h *harness) send(conn *transporttest.Recorder, req wire.Request) {
	h.d.HandleFrame(context.Background(), conn, wire.EncodeRequest(req))
}

// drain decodes and clears everything sent on conn.
func drain(t *testing.T, conn *transporttest.Recorder) []wire.Response {
	t.Helper()
	var out []wire.Response
	for _, frame := range conn.Sent() {
		resp, err := wire.DecodeResponse(frame)
		require.NoError(t, err)
		out = append(out, resp)
	}
	conn.Reset()
	return out
}

// single asserts exactly one response was sent on conn and returns it.
func single(t *testing.T, conn *transporttest.Recorder) wire.Response {
	t.Helper()
	got := drain(t, conn)
	require.Len(t, got, 1, "responses: %+v", got)
	return got[0]
}

func requireError(t *testing.T, resp wire.Response, code wire.ErrorCode) {
	t.Helper()
	em, ok := resp.(wire.ErrorMessage)
	require.True(t, ok, "want ErrorMessage, got %T", resp)
	assert.Equal(t, code, em.Code, "message: %s", em.Message)
}

func (h *harness) login(name string) *transporttest.Recorder {
	h.t.Helper()
	conn := transporttest.NewRecorder(name)
	h.send(conn, wire.LoginRequest{Username: name, Password: "pw"})
	resp := single(h.t, conn)
	require.IsType(h.t, wire.LoginResponse{}, resp)
	return conn
}

// openRoom logs alice and bob in, puts both in a room, and clears their
// outboxes.
func (h *harness) openRoom() (alice, bob *transporttest.Recorder, roomID int64) {
	h.t.Helper()
	alice = h.login("alice")
	bob = h.login("bob")

	h.send(alice, wire.CreateRoomRequest{PlayerID: h.ids["alice"]})
	created := single(h.t, alice).(wire.CreateRoomResponse)
	h.send(bob, wire.JoinRoomRequest{PlayerID: h.ids["bob"], RoomCode: created.Room.RoomCode})
	drain(h.t, alice)
	drain(h.t, bob)
	return alice, bob, created.Room.ID
}

func TestMalformedFrameGetsOneErrorAndSessionContinues(t *testing.T) {
	h := newHarness(t)
	conn := transporttest.NewRecorder("c")

	h.d.HandleFrame(context.Background(), conn, []byte{0xff, 0xff, 0xff})
	requireError(t, single(t, conn), wire.CodeInvalidRequest)

	h.d.HandleFrame(context.Background(), conn, wire.EncodeResponse(wire.LeaveRoomResponse{}))
	requireError(t, single(t, conn), wire.CodeInvalidRequest)

	h.send(conn, wire.ListRoomsRequest{})
	assert.IsType(t, wire.ListRoomsResponse{}, single(t, conn))
}

// lobbyState captures everything a request could mutate.
type lobbyState struct {
	stats   registry.Stats
	members map[int64][]registry.Member
	rooms   map[string]int64
	waiting []store.Room
	players []store.Player
}

func (h *harness) snapshot(roomIDs ...int64) lobbyState {
	h.t.Helper()
	ctx := context.Background()
	st := lobbyState{
		stats:   h.registry.Stats(),
		members: map[int64][]registry.Member{},
		rooms:   map[string]int64{},
	}
	for _, id := range roomIDs {
		st.members[id] = h.registry.MembersOf(id)
	}
	for _, name := range []string{"alice", "bob", "carol"} {
		id := h.ids[name]
		if roomID, ok := h.registry.RoomOf(id); ok {
			st.rooms[name] = roomID
		}
		p, err := h.players.Get(ctx, id)
		require.NoError(h.t, err)
		st.players = append(st.players, p)
	}
	waiting, err := h.rooms.ListWaitingWithOpenSlot(ctx)
	require.NoError(h.t, err)
	st.waiting = waiting
	return st
}

func TestMalformedFrameLeavesStateUnchanged(t *testing.T) {
	h := newHarness(t)
	alice, bob, fullRoom := h.openRoom()
	carol := h.login("carol")
	h.send(carol, wire.CreateRoomRequest{PlayerID: h.ids["carol"]})
	openRoom := single(t, carol).(wire.CreateRoomResponse).Room.ID

	before := h.snapshot(fullRoom, openRoom)
	require.Equal(t, registry.Stats{Online: 3, Rooms: 2}, before.stats)
	require.Len(t, before.waiting, 1)

	garbage := [][]byte{
		{0xff, 0xff, 0xff},
		{0x08},
		{0x08, 0x09, 0x12, 0x05, 0x01},
		wire.EncodeResponse(wire.LeaveRoomResponse{}),
	}
	for _, conn := range []*transporttest.Recorder{alice, bob, carol} {
		for _, frame := range garbage {
			h.d.HandleFrame(context.Background(), conn, frame)
			requireError(t, single(t, conn), wire.CodeInvalidRequest)
		}
	}

	assert.Equal(t, before, h.snapshot(fullRoom, openRoom))
}

func TestLogin(t *testing.T) {
	h := newHarness(t)

	conn := transporttest.NewRecorder("c")
	h.send(conn, wire.LoginRequest{Username: "alice", Password: "wrong"})
	requireError(t, single(t, conn), wire.CodeUsernamePasswordError)
	assert.False(t, h.registry.IsOnline(h.ids["alice"]))

	h.send(conn, wire.LoginRequest{Username: "alice", Password: "pw"})
	resp := single(t, conn).(wire.LoginResponse)
	assert.Equal(t, wire.CodeSuccess, resp.Code)
	require.NotNil(t, resp.Player)
	assert.Equal(t, h.ids["alice"], resp.Player.ID)
	assert.Equal(t, "alice", resp.Player.Nickname)

	got, ok := h.registry.ConnectionOf(h.ids["alice"])
	require.True(t, ok)
	assert.Same(t, conn, got)

	p, err := h.players.Get(context.Background(), h.ids["alice"])
	require.NoError(t, err)
	assert.False(t, p.LastLoginAt.IsZero())
}

func TestLogin_UnknownUser(t *testing.T) {
	h := newHarness(t)
	conn := transporttest.NewRecorder("c")
	h.send(conn, wire.LoginRequest{Username: "nobody", Password: "pw"})
	requireError(t, single(t, conn), wire.CodeUsernamePasswordError)
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	conn := transporttest.NewRecorder("c")

	h.send(conn, wire.RegisterRequest{Username: "dave", Password: "pw", Nickname: "Dave"})
	resp := single(t, conn).(wire.RegisterResponse)
	assert.Equal(t, wire.CodeSuccess, resp.Code)
	require.NotNil(t, resp.Player)
	assert.Equal(t, "Dave", resp.Player.Nickname)
	assert.Zero(t, resp.Player.Score)

	h.send(conn, wire.RegisterRequest{Username: "dave", Password: "other"})
	requireError(t, single(t, conn), wire.CodeUsernameExists)

	h.send(conn, wire.RegisterRequest{Username: "", Password: "pw"})
	requireError(t, single(t, conn), wire.CodeInvalidRequest)
}

func TestCreateRoom(t *testing.T) {
	h := newHarness(t)

	offline := transporttest.NewRecorder("offline")
	h.send(offline, wire.CreateRoomRequest{PlayerID: h.ids["alice"]})
	requireError(t, single(t, offline), wire.CodeInvalidRequest)

	alice := h.login("alice")
	h.send(alice, wire.CreateRoomRequest{PlayerID: h.ids["alice"]})
	resp := single(t, alice).(wire.CreateRoomResponse)
	require.NotNil(t, resp.Room)
	assert.Equal(t, "CODE01", resp.Room.RoomCode)
	assert.Equal(t, wire.RoomWaiting, resp.Room.Status)
	require.NotNil(t, resp.Room.Player1)
	assert.Equal(t, h.ids["alice"], resp.Room.Player1.ID)
	assert.Nil(t, resp.Room.Player2)

	room, ok := h.registry.RoomOf(h.ids["alice"])
	require.True(t, ok)
	assert.Equal(t, resp.Room.ID, room)
}

func TestJoinRoom_NotifiesEveryMember(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")
	h.send(alice, wire.CreateRoomRequest{PlayerID: h.ids["alice"]})
	created := single(t, alice).(wire.CreateRoomResponse)

	h.send(bob, wire.JoinRoomRequest{PlayerID: h.ids["bob"], RoomCode: created.Room.RoomCode})

	bobGot := drain(t, bob)
	require.Len(t, bobGot, 2)
	joined := bobGot[0].(wire.JoinRoomResponse)
	require.NotNil(t, joined.Room.Player2)
	assert.Equal(t, h.ids["bob"], joined.Room.Player2.ID)
	assert.IsType(t, wire.RoomStateUpdate{}, bobGot[1], "reply precedes the room update")

	update := single(t, alice).(wire.RoomStateUpdate)
	assert.Equal(t, created.Room.ID, update.RoomID)
	require.NotNil(t, update.Room)
	require.NotNil(t, update.Room.Player2)
	assert.Equal(t, h.ids["bob"], update.Room.Player2.ID)
	assert.False(t, update.Closed)

	assert.Len(t, h.registry.MembersOf(created.Room.ID), 2)
}

func TestJoinRoom_Rejections(t *testing.T) {
	h := newHarness(t)
	alice, _, _ := h.openRoom()
	carol := h.login("carol")

	h.send(carol, wire.JoinRoomRequest{PlayerID: h.ids["carol"], RoomCode: "NOPE"})
	requireError(t, single(t, carol), wire.CodeRoomNotFound)

	h.send(carol, wire.JoinRoomRequest{PlayerID: h.ids["carol"], RoomCode: "CODE01"})
	requireError(t, single(t, carol), wire.CodeRoomNotFound)
	assert.Empty(t, alice.Sent(), "a rejected join notifies nobody")

	h.send(alice, wire.JoinRoomRequest{PlayerID: h.ids["alice"], RoomCode: "CODE01"})
	requireError(t, single(t, alice), wire.CodeInvalidRequest)

	offline := transporttest.NewRecorder("offline")
	h.send(offline, wire.JoinRoomRequest{PlayerID: 999, RoomCode: "CODE01"})
	requireError(t, single(t, offline), wire.CodeInvalidRequest)
}

func TestLeaveRoom_JoinerLeaves(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()

	h.send(bob, wire.LeaveRoomRequest{PlayerID: h.ids["bob"], RoomCode: "CODE01"})
	ack := single(t, bob).(wire.LeaveRoomResponse)
	assert.Equal(t, wire.CodeSuccess, ack.Code)

	update := single(t, alice).(wire.RoomStateUpdate)
	assert.Equal(t, roomID, update.RoomID)
	require.NotNil(t, update.Room)
	assert.Nil(t, update.Room.Player2)
	assert.False(t, update.Closed)

	_, inRoom := h.registry.RoomOf(h.ids["bob"])
	assert.False(t, inRoom)
	assert.True(t, h.registry.IsOnline(h.ids["bob"]))
}

func TestLeaveRoom_CreatorClosesRoom(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()

	h.send(alice, wire.LeaveRoomRequest{PlayerID: h.ids["alice"], RoomCode: "CODE01"})
	assert.IsType(t, wire.LeaveRoomResponse{}, single(t, alice))

	update := single(t, bob).(wire.RoomStateUpdate)
	assert.Equal(t, roomID, update.RoomID)
	assert.True(t, update.Closed)

	assert.Empty(t, h.registry.MembersOf(roomID))
	_, inRoom := h.registry.RoomOf(h.ids["bob"])
	assert.False(t, inRoom)

	carol := h.login("carol")
	h.send(carol, wire.ListRoomsRequest{})
	assert.Empty(t, single(t, carol).(wire.ListRoomsResponse).Rooms)
}

func TestLeaveRoom_Rejections(t *testing.T) {
	h := newHarness(t)
	_, _, _ = h.openRoom()
	carol := h.login("carol")

	h.send(carol, wire.LeaveRoomRequest{PlayerID: h.ids["carol"], RoomCode: "CODE01"})
	requireError(t, single(t, carol), wire.CodeInvalidRequest)

	offline := transporttest.NewRecorder("offline")
	h.send(offline, wire.LeaveRoomRequest{PlayerID: 999, RoomCode: "CODE01"})
	requireError(t, single(t, offline), wire.CodeInvalidRequest)
}

func TestListRooms(t *testing.T) {
	h := newHarness(t)
	conn := transporttest.NewRecorder("anon")

	h.send(conn, wire.ListRoomsRequest{})
	resp := single(t, conn).(wire.ListRoomsResponse)
	assert.Equal(t, wire.CodeSuccess, resp.Code)
	assert.Empty(t, resp.Rooms)

	alice := h.login("alice")
	carol := h.login("carol")
	h.send(alice, wire.CreateRoomRequest{PlayerID: h.ids["alice"]})
	h.send(carol, wire.CreateRoomRequest{PlayerID: h.ids["carol"]})

	h.send(conn, wire.ListRoomsRequest{})
	rooms := single(t, conn).(wire.ListRoomsResponse).Rooms
	require.Len(t, rooms, 2)
	assert.Equal(t, "CODE01", rooms[0].RoomCode)
	assert.Equal(t, "CODE02", rooms[1].RoomCode)
	require.NotNil(t, rooms[1].Player1)
	assert.Equal(t, "carol", rooms[1].Player1.Username)
}

func TestStartGame(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()

	h.send(alice, wire.StartGameRequest{PlayerID: h.ids["alice"], RoomID: roomID})

	aliceGot := drain(t, alice)
	require.Len(t, aliceGot, 2, "requester gets the reply and the broadcast")
	for _, resp := range aliceGot {
		start := resp.(wire.StartGameResponse)
		assert.Equal(t, roomID, start.RoomID)
	}
	start := single(t, bob).(wire.StartGameResponse)
	assert.Equal(t, roomID, start.RoomID)

	h.send(bob, wire.StartGameRequest{PlayerID: h.ids["bob"], RoomID: roomID})
	requireError(t, single(t, bob), wire.CodeInvalidRequest)
	assert.Empty(t, alice.Sent())
}

func TestStartGame_Rejections(t *testing.T) {
	h := newHarness(t)
	_, _, roomID := h.openRoom()
	carol := h.login("carol")

	h.send(carol, wire.StartGameRequest{PlayerID: h.ids["carol"], RoomID: roomID})
	requireError(t, single(t, carol), wire.CodeInvalidRequest)

	h.send(carol, wire.StartGameRequest{PlayerID: h.ids["carol"], RoomID: 12345})
	requireError(t, single(t, carol), wire.CodeInvalidRequest)
}

func TestMove_ReachesEveryMemberIncludingSender(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()
	carol := h.login("carol")

	h.send(alice, wire.MoveRequest{PlayerID: h.ids["alice"], X: 1.5, Y: -2})

	for _, conn := range []*transporttest.Recorder{alice, bob} {
		update := single(t, conn).(wire.RoomStateUpdate)
		assert.Equal(t, roomID, update.RoomID)
		require.Len(t, update.Positions, 1)
		assert.Equal(t, wire.PlayerPosition{PlayerID: h.ids["alice"], X: 1.5, Y: -2}, update.Positions[0])
	}
	assert.Empty(t, carol.Sent(), "players outside the room see nothing")
}

func TestMove_Dropped(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()
	carol := h.login("carol")

	tests := []struct {
		name string
		conn *transporttest.Recorder
		req  wire.MoveRequest
	}{
		{"offline player", transporttest.NewRecorder("x"), wire.MoveRequest{PlayerID: 999, RoomID: roomID}},
		{"not in a room", carol, wire.MoveRequest{PlayerID: h.ids["carol"]}},
		{"names another room", alice, wire.MoveRequest{PlayerID: h.ids["alice"], RoomID: roomID + 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.send(tt.conn, tt.req)
			assert.Empty(t, tt.conn.Sent())
			assert.Empty(t, alice.Sent())
			assert.Empty(t, bob.Sent())
		})
	}
}

func TestMove_ExplicitRoomMatches(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()

	h.send(bob, wire.MoveRequest{PlayerID: h.ids["bob"], RoomID: roomID, X: 3, Y: 4})
	assert.Len(t, drain(t, alice), 1)
	assert.Len(t, drain(t, bob), 1)
}

func TestMove_FailedRecipientDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	alice, bob, _ := h.openRoom()
	bob.FailSends()

	h.send(alice, wire.MoveRequest{PlayerID: h.ids["alice"], X: 1})
	assert.Len(t, drain(t, alice), 1)
}

func TestEndGame(t *testing.T) {
	h := newHarness(t)
	alice, bob, roomID := h.openRoom()
	h.send(alice, wire.StartGameRequest{PlayerID: h.ids["alice"], RoomID: roomID})
	drain(t, alice)
	drain(t, bob)

	h.send(bob, wire.EndGameRequest{PlayerID: h.ids["bob"], RoomID: roomID, WinnerID: h.ids["bob"]})

	end := single(t, alice).(wire.EndGameResponse)
	assert.Equal(t, roomID, end.RoomID)
	assert.Equal(t, h.ids["bob"], end.WinnerID)
	assert.Len(t, drain(t, bob), 2)

	assert.Empty(t, h.registry.MembersOf(roomID))
	winner, err := h.players.Get(context.Background(), h.ids["bob"])
	require.NoError(t, err)
	assert.Equal(t, int32(1), winner.Score)

	h.send(alice, wire.MoveRequest{PlayerID: h.ids["alice"], X: 1})
	assert.Empty(t, alice.Sent(), "moves after the game ended go nowhere")
}

func TestEndGame_Rejections(t *testing.T) {
	h := newHarness(t)
	alice, _, roomID := h.openRoom()

	h.send(alice, wire.EndGameRequest{PlayerID: h.ids["alice"], RoomID: roomID})
	requireError(t, single(t, alice), wire.CodeInvalidRequest)

	h.send(alice, wire.StartGameRequest{PlayerID: h.ids["alice"], RoomID: roomID})
	drain(t, alice)
	h.send(alice, wire.EndGameRequest{PlayerID: h.ids["alice"], RoomID: roomID, WinnerID: h.ids["carol"]})
	requireError(t, single(t, alice), wire.CodeInvalidRequest)
}

func TestHandleSession_UnregistersOnHangup(t *testing.T) {
	h := newHarness(t)
	bob := h.login("bob")
	h.send(bob, wire.CreateRoomRequest{PlayerID: h.ids["bob"]})
	roomID := single(t, bob).(wire.CreateRoomResponse).Room.ID

	conn := transporttest.NewRecorder("session")
	conn.Feed(
		wire.EncodeRequest(wire.LoginRequest{Username: "alice", Password: "pw"}),
		wire.EncodeRequest(wire.JoinRoomRequest{PlayerID: h.ids["alice"], RoomCode: "CODE01"}),
	)
	conn.Hangup()

	require.NoError(t, h.d.HandleSession(context.Background(), conn))

	got := drain(t, conn)
	require.Len(t, got, 3)
	assert.IsType(t, wire.LoginResponse{}, got[0])
	assert.IsType(t, wire.JoinRoomResponse{}, got[1])
	assert.IsType(t, wire.RoomStateUpdate{}, got[2])

	assert.False(t, h.registry.IsOnline(h.ids["alice"]))
	members := h.registry.MembersOf(roomID)
	require.Len(t, members, 1)
	assert.Equal(t, h.ids["bob"], members[0].PlayerID)
}

func TestHandleSession_StaleConnectionKeepsNewerSession(t *testing.T) {
	h := newHarness(t)
	old := transporttest.NewRecorder("old")
	old.Feed(wire.EncodeRequest(wire.LoginRequest{Username: "alice", Password: "pw"}))

	done := make(chan error, 1)
	go func() { done <- h.d.HandleSession(context.Background(), old) }()
	_, ok := old.WaitSent(1, 2*time.Second)
	require.True(t, ok)

	fresh := h.login("alice")
	old.Hangup()
	require.NoError(t, <-done)

	got, ok := h.registry.ConnectionOf(h.ids["alice"])
	require.True(t, ok, "the newer session survives the old one's teardown")
	assert.Same(t, fresh, got)
}

func TestHandleSession_CancelledContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.d.HandleSession(ctx, transporttest.NewRecorder("c"))
	assert.ErrorIs(t, err, context.Canceled)
}

type failingConn struct {
	*transporttest.Recorder
}

var errBroken = errors.New("broken pipe")

func (failingConn) ReadFrame() ([]byte, error) { return nil, errBroken }

func TestHandleSession_TransportErrorUnregisters(t *testing.T) {
	h := newHarness(t)
	conn := failingConn{transporttest.NewRecorder("c")}
	h.registry.Register(h.ids["alice"], conn)

	err := h.d.HandleSession(context.Background(), conn)
	assert.ErrorIs(t, err, errBroken)
	assert.False(t, h.registry.IsOnline(h.ids["alice"]))
	assert.Empty(t, conn.Sent(), "transport faults produce no message")
}

func TestConcurrentSessionsKeepPerSenderOrder(t *testing.T) {
	h := newHarness(t)
	alice, bob, _ := h.openRoom()
	const moves = 50

	for i := 0; i < moves; i++ {
		alice.Feed(wire.EncodeRequest(wire.MoveRequest{PlayerID: h.ids["alice"], X: float32(i)}))
		bob.Feed(wire.EncodeRequest(wire.MoveRequest{PlayerID: h.ids["bob"], X: float32(i)}))
	}

	var wg sync.WaitGroup
	for _, conn := range []*transporttest.Recorder{alice, bob} {
		wg.Add(1)
		go func(c *transporttest.Recorder) {
			defer wg.Done()
			_ = h.d.HandleSession(context.Background(), c)
		}(conn)
	}

	for _, conn := range []*transporttest.Recorder{alice, bob} {
		frames, ok := conn.WaitSent(2*moves, 5*time.Second)
		require.True(t, ok, "%s got %d frames", conn.ID(), len(frames))

		next := map[int64]float32{}
		for _, f := range frames {
			resp, err := wire.DecodeResponse(f)
			require.NoError(t, err)
			pos := resp.(wire.RoomStateUpdate).Positions[0]
			assert.Equal(t, next[pos.PlayerID], pos.X, fmt.Sprintf("moves from %d out of order", pos.PlayerID))
			next[pos.PlayerID] = pos.X + 1
		}
	}

	alice.Hangup()
	bob.Hangup()
	wg.Wait()
	assert.Equal(t, registry.Stats{}, h.registry.Stats())
}

func TestJoinRacingCreatorLeaveLeavesNoRoster(t *testing.T) {
	h := newHarness(t)
	alice := h.login("alice")
	bob := h.login("bob")

	for i := 0; i < 50; i++ {
		h.send(alice, wire.CreateRoomRequest{PlayerID: h.ids["alice"]})
		room := single(t, alice).(wire.CreateRoomResponse).Room

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			h.send(bob, wire.JoinRoomRequest{PlayerID: h.ids["bob"], RoomCode: room.RoomCode})
		}()
		go func() {
			defer wg.Done()
			h.send(alice, wire.LeaveRoomRequest{PlayerID: h.ids["alice"], RoomCode: room.RoomCode})
		}()
		wg.Wait()

		_, err := h.rooms.Get(context.Background(), room.ID)
		require.ErrorIs(t, err, store.ErrRoomNotFound)
		assert.Empty(t, h.registry.MembersOf(room.ID), "iteration %d", i)
		_, inRoom := h.registry.RoomOf(h.ids["bob"])
		assert.False(t, inRoom, "iteration %d", i)
		assert.Zero(t, h.registry.Stats().Rooms, "iteration %d", i)

		alice.Reset()
		bob.Reset()
	}
}
