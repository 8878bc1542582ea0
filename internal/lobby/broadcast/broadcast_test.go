package broadcast

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/cory-johannsen/lobby/internal/lobby/registry"
	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/transport/transporttest"
)

func setup(t *testing.T) (*Coordinator, *registry.Registry) {
	reg := registry.New()
	return New(reg, zaptest.NewLogger(t)), reg
}

func TestBroadcast_ReachesEveryMemberIncludingSender(t *testing.T) {
	c, reg := setup(t)
	a := transporttest.NewRecorder("a")
	b := transporttest.NewRecorder("b")
	outsider := transporttest.NewRecorder("x")
	reg.Register(1, a)
	reg.Register(2, b)
	reg.Register(3, outsider)
	reg.JoinRoom(1, 10)
	reg.JoinRoom(2, 10)
	reg.JoinRoom(3, 11)

	update := wire.RoomStateUpdate{
		Status:    wire.OK("move"),
		RoomID:    10,
		Positions: []wire.PlayerPosition{{PlayerID: 1, X: 1.5, Y: -2}},
	}
	assert.Equal(t, 2, c.Broadcast(10, update))

	want := wire.EncodeResponse(update)
	assert.Equal(t, [][]byte{want}, a.Sent())
	assert.Equal(t, [][]byte{want}, b.Sent())
	assert.Empty(t, outsider.Sent())
}

func TestBroadcast_EmptyRoom(t *testing.T) {
	c, _ := setup(t)
	assert.Equal(t, 0, c.Broadcast(99, wire.StartGameResponse{RoomID: 99}))
}

func TestBroadcast_FailedRecipientDoesNotBlockOthers(t *testing.T) {
	c, reg := setup(t)
	broken := transporttest.NewRecorder("broken")
	closed := transporttest.NewRecorder("closed")
	healthy := transporttest.NewRecorder("healthy")
	broken.FailSends()
	require.NoError(t, closed.Close())

	reg.Register(1, broken)
	reg.Register(2, closed)
	reg.Register(3, healthy)
	for _, p := range []int64{1, 2, 3} {
		reg.JoinRoom(p, 10)
	}

	assert.Equal(t, 1, c.Broadcast(10, wire.StartGameResponse{Status: wire.OK("start"), RoomID: 10}))
	assert.Len(t, healthy.Sent(), 1)
}

func TestSend(t *testing.T) {
	c, _ := setup(t)
	conn := transporttest.NewRecorder("a")
	require.NoError(t, c.Send(conn, wire.NewError(wire.CodeInvalidRequest, "bad")))

	sent := conn.Sent()
	require.Len(t, sent, 1)
	resp, err := wire.DecodeResponse(sent[0])
	require.NoError(t, err)
	assert.Equal(t, wire.CodeInvalidRequest, resp.StatusOf().Code)
}
