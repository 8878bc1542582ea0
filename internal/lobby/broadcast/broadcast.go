// Package broadcast fans encoded responses out to the occupants of a room.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/registry"
	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/transport"
)

// Coordinator delivers responses to single connections and to whole rooms.
// Delivery is best effort: a failed recipient is logged and skipped.
type Coordinator struct {
	registry *registry.Registry
	logger   *zap.Logger
}

// New creates a Coordinator over reg.
//
// Precondition: reg and logger must be non-nil.
func New(reg *registry.Registry, logger *zap.Logger) *Coordinator {
	return &Coordinator{registry: reg, logger: logger}
}

// Broadcast encodes resp once and sends it to every current member of roomID.
//
// Postcondition: Returns the number of members the message was queued for.
// Failures never abort delivery to the remaining members.
func (c *Coordinator) Broadcast(roomID int64, resp wire.Response) int {
	members := c.registry.MembersOf(roomID)
	if len(members) == 0 {
		return 0
	}
	msg := wire.EncodeResponse(resp)

	delivered := 0
	for _, m := range members {
		if err := m.Conn.Send(msg); err != nil {
			c.logger.Warn("broadcast delivery failed",
				zap.Int64("room_id", roomID),
				zap.Int64("player_id", m.PlayerID),
				zap.String("conn_id", m.Conn.ID()),
				zap.Stringer("type", resp.Type()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// Send encodes resp and queues it on conn.
func (c *Coordinator) Send(conn transport.Conn, resp wire.Response) error {
	return conn.Send(wire.EncodeResponse(resp))
}
