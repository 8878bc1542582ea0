// Package dispatch drives one client session: it reads frames, decodes them
// into requests, runs the matching use-case, and answers on the same
// connection or fans out to the room.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/cory-johannsen/lobby/internal/lobby/broadcast"
	"github.com/cory-johannsen/lobby/internal/lobby/registry"
	"github.com/cory-johannsen/lobby/internal/lobby/service"
	"github.com/cory-johannsen/lobby/internal/lobby/store"
	"github.com/cory-johannsen/lobby/internal/lobby/wire"
	"github.com/cory-johannsen/lobby/internal/observability"
	"github.com/cory-johannsen/lobby/internal/transport"
)

// followup runs after the direct reply has been queued.
type followup func()

// Dispatcher implements transport.SessionHandler for the lobby protocol.
type Dispatcher struct {
	registry  *registry.Registry
	broadcast *broadcast.Coordinator
	players   *service.Players
	rooms     *service.Rooms
	logger    *zap.Logger
}

// New creates a Dispatcher.
//
// Precondition: all arguments must be non-nil.
func New(reg *registry.Registry, bc *broadcast.Coordinator, players *service.Players, rooms *service.Rooms, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  reg,
		broadcast: bc,
		players:   players,
		rooms:     rooms,
		logger:    logger,
	}
}

// HandleSession processes frames from conn in arrival order until the
// transport reports an error or ctx is cancelled.
//
// Postcondition: conn has been unregistered exactly once. io.EOF is reported
// as a clean end (nil).
func (d *Dispatcher) HandleSession(ctx context.Context, conn transport.Conn) error {
	logger := observability.ForConn(d.logger, conn.ID(), conn.RemoteAddr())
	defer d.teardown(conn, logger)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading frame: %w", err)
		}
		d.handleFrame(ctx, conn, logger, frame)
	}
}

// HandleFrame decodes and handles a single frame received on conn.
func (d *Dispatcher) HandleFrame(ctx context.Context, conn transport.Conn, frame []byte) {
	d.handleFrame(ctx, conn, observability.ForConn(d.logger, conn.ID(), conn.RemoteAddr()), frame)
}

func (d *Dispatcher) teardown(conn transport.Conn, logger *zap.Logger) {
	if playerID, ok := d.registry.Unregister(conn); ok {
		logger.Info("player disconnected", zap.Int64("player_id", playerID))
	}
}

func (d *Dispatcher) handleFrame(ctx context.Context, conn transport.Conn, logger *zap.Logger, frame []byte) {
	req, err := wire.DecodeRequest(frame)
	if err != nil {
		logger.Debug("undecodable frame", zap.Int("len", len(frame)), zap.Error(err))
		d.reply(conn, logger, wire.NewError(wire.CodeInvalidRequest, "malformed request"))
		return
	}
	logger.Debug("request", zap.Stringer("type", req.Type()))

	resp, then := d.dispatch(ctx, conn, logger, req)
	if resp != nil {
		d.reply(conn, logger, resp)
	}
	if then != nil {
		then()
	}
}

// dispatch routes req to its handler.
func (d *Dispatcher) dispatch(ctx context.Context, conn transport.Conn, logger *zap.Logger, req wire.Request) (wire.Response, followup) {
	switch r := req.(type) {
	case wire.LoginRequest:
		return d.handleLogin(ctx, conn, logger, r), nil
	case wire.RegisterRequest:
		return d.handleRegister(ctx, logger, r), nil
	case wire.CreateRoomRequest:
		return d.handleCreateRoom(ctx, logger, r), nil
	case wire.JoinRoomRequest:
		return d.handleJoinRoom(ctx, logger, r)
	case wire.LeaveRoomRequest:
		return d.handleLeaveRoom(ctx, logger, r)
	case wire.ListRoomsRequest:
		return d.handleListRooms(ctx, logger), nil
	case wire.StartGameRequest:
		return d.handleStartGame(ctx, logger, r)
	case wire.MoveRequest:
		d.handleMove(logger, r)
		return nil, nil
	case wire.EndGameRequest:
		return d.handleEndGame(ctx, logger, r)
	default:
		return wire.NewError(wire.CodeInvalidRequest, "unknown message type"), nil
	}
}

func (d *Dispatcher) handleLogin(ctx context.Context, conn transport.Conn, logger *zap.Logger, req wire.LoginRequest) wire.Response {
	player, err := d.players.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			logger.Warn("login failed", zap.String("username", req.Username))
			return wire.NewError(wire.CodeUsernamePasswordError, "invalid username or password")
		}
		return d.reject(logger, "login", err)
	}
	d.registry.Register(player.ID, conn)
	return wire.LoginResponse{Status: wire.OK("login successful"), Player: toPlayerInfo(&player)}
}

func (d *Dispatcher) handleRegister(ctx context.Context, logger *zap.Logger, req wire.RegisterRequest) wire.Response {
	player, err := d.players.Register(ctx, store.NewPlayer{
		Username: req.Username,
		Password: req.Password,
		Nickname: req.Nickname,
	})
	if err != nil {
		if errors.Is(err, store.ErrUsernameTaken) {
			logger.Warn("registration rejected: username exists", zap.String("username", req.Username))
			return wire.NewError(wire.CodeUsernameExists, "username already exists")
		}
		return d.reject(logger, "register", err)
	}
	return wire.RegisterResponse{Status: wire.OK("registration successful"), Player: toPlayerInfo(&player)}
}

func (d *Dispatcher) handleCreateRoom(ctx context.Context, logger *zap.Logger, req wire.CreateRoomRequest) wire.Response {
	view, err := d.rooms.Create(ctx, req.PlayerID)
	if err != nil {
		return d.reject(logger, "create room", err)
	}
	return wire.CreateRoomResponse{Status: wire.OK("room created"), Room: toRoomInfo(view)}
}

func (d *Dispatcher) handleJoinRoom(ctx context.Context, logger *zap.Logger, req wire.JoinRoomRequest) (wire.Response, followup) {
	view, err := d.rooms.Join(ctx, req.PlayerID, req.RoomCode)
	if err != nil {
		if errors.Is(err, store.ErrRoomNotFound) || errors.Is(err, service.ErrRoomFull) {
			logger.Warn("join rejected",
				zap.Int64("player_id", req.PlayerID),
				zap.String("room_code", req.RoomCode),
				zap.Error(err),
			)
			return wire.NewError(wire.CodeRoomNotFound, "room not found or full"), nil
		}
		return d.reject(logger, "join room", err), nil
	}

	info := toRoomInfo(view)
	return wire.JoinRoomResponse{Status: wire.OK("joined room"), Room: info}, func() {
		d.broadcast.Broadcast(view.ID, wire.RoomStateUpdate{
			Status: wire.OK("room updated"),
			RoomID: view.ID,
			Room:   info,
		})
	}
}

func (d *Dispatcher) handleLeaveRoom(ctx context.Context, logger *zap.Logger, req wire.LeaveRoomRequest) (wire.Response, followup) {
	result, err := d.rooms.Leave(ctx, req.PlayerID, req.RoomCode)
	if err != nil {
		return d.reject(logger, "leave room", err), nil
	}
	roomID := result.Room.ID
	if current, ok := d.registry.RoomOf(req.PlayerID); ok && current == roomID {
		d.registry.LeaveRoom(req.PlayerID)
	}

	ack := wire.LeaveRoomResponse{Status: wire.OK("left room")}
	if result.Deleted {
		return ack, func() {
			d.broadcast.Broadcast(roomID, wire.RoomStateUpdate{
				Status: wire.OK("room closed"),
				RoomID: roomID,
				Closed: true,
			})
			if evicted := d.registry.DisbandRoom(roomID); len(evicted) > 0 {
				logger.Info("room disbanded",
					zap.Int64("room_id", roomID),
					zap.Int64s("players", evicted),
				)
			}
		}
	}
	return ack, func() {
		d.broadcast.Broadcast(roomID, wire.RoomStateUpdate{
			Status: wire.OK("room updated"),
			RoomID: roomID,
			Room:   toRoomInfo(result.Room),
		})
	}
}

func (d *Dispatcher) handleListRooms(ctx context.Context, logger *zap.Logger) wire.Response {
	views, err := d.rooms.ListWaiting(ctx)
	if err != nil {
		return d.reject(logger, "list rooms", err)
	}
	rooms := make([]wire.RoomInfo, 0, len(views))
	for _, v := range views {
		rooms = append(rooms, *toRoomInfo(v))
	}
	return wire.ListRoomsResponse{Status: wire.OK("rooms listed"), Rooms: rooms}
}

func (d *Dispatcher) handleStartGame(ctx context.Context, logger *zap.Logger, req wire.StartGameRequest) (wire.Response, followup) {
	room, err := d.rooms.Start(ctx, req.PlayerID, req.RoomID)
	if err != nil {
		return d.reject(logger, "start game", err), nil
	}
	resp := wire.StartGameResponse{Status: wire.OK("game started"), RoomID: room.ID}
	return resp, func() {
		d.broadcast.Broadcast(room.ID, resp)
	}
}

// handleMove relays a position to the room the player occupies. Moves from
// offline players, players outside a room, or naming another room are
// dropped without a reply.
func (d *Dispatcher) handleMove(logger *zap.Logger, req wire.MoveRequest) {
	if !d.registry.IsOnline(req.PlayerID) {
		logger.Debug("move dropped: player offline", zap.Int64("player_id", req.PlayerID))
		return
	}
	roomID, ok := d.registry.RoomOf(req.PlayerID)
	if !ok || (req.RoomID != 0 && req.RoomID != roomID) {
		logger.Debug("move dropped: not in room",
			zap.Int64("player_id", req.PlayerID),
			zap.Int64("room_id", req.RoomID),
		)
		return
	}
	n := d.broadcast.Broadcast(roomID, wire.RoomStateUpdate{
		Status: wire.OK(""),
		RoomID: roomID,
		Positions: []wire.PlayerPosition{{
			PlayerID: req.PlayerID,
			X:        req.X,
			Y:        req.Y,
		}},
	})
	logger.Debug("move relayed",
		zap.Int64("player_id", req.PlayerID),
		zap.Int64("room_id", roomID),
		zap.Int("recipients", n),
	)
}

func (d *Dispatcher) handleEndGame(ctx context.Context, logger *zap.Logger, req wire.EndGameRequest) (wire.Response, followup) {
	room, err := d.rooms.End(ctx, req.PlayerID, req.RoomID, req.WinnerID)
	if err != nil {
		return d.reject(logger, "end game", err), nil
	}
	resp := wire.EndGameResponse{Status: wire.OK("game ended"), RoomID: room.ID, WinnerID: req.WinnerID}
	return resp, func() {
		d.broadcast.Broadcast(room.ID, resp)
		d.registry.DisbandRoom(room.ID)
	}
}

// rejectable lists the business errors whose text is safe to show a client.
var rejectable = []error{
	store.ErrRoomNotFound,
	store.ErrInvalidCredentials,
	service.ErrNotOnline,
	service.ErrRoomFull,
	service.ErrOwnRoom,
	service.ErrRoomNotWaiting,
	service.ErrRoomNotPlaying,
	service.ErrNotRoomMember,
	service.ErrNotWinner,
	service.ErrInvalidInput,
}

// reject maps err to an INVALID_REQUEST error. Business errors carry their
// own message; anything else is logged and hidden behind a generic one.
func (d *Dispatcher) reject(logger *zap.Logger, op string, err error) wire.Response {
	for _, known := range rejectable {
		if errors.Is(err, known) {
			logger.Info("request rejected", zap.String("op", op), zap.Error(err))
			return wire.NewError(wire.CodeInvalidRequest, known.Error())
		}
	}
	logger.Error("request failed", zap.String("op", op), zap.Error(err))
	return wire.NewError(wire.CodeInvalidRequest, op+" failed")
}

func (d *Dispatcher) reply(conn transport.Conn, logger *zap.Logger, resp wire.Response) {
	if err := d.broadcast.Send(conn, resp); err != nil {
		logger.Warn("reply dropped", zap.Stringer("type", resp.Type()), zap.Error(err))
	}
}

func toPlayerInfo(p *store.Player) *wire.PlayerInfo {
	if p == nil {
		return nil
	}
	return &wire.PlayerInfo{
		ID:       p.ID,
		Username: p.Username,
		Nickname: p.Nickname,
		Score:    p.Score,
	}
}

func toRoomInfo(v service.RoomView) *wire.RoomInfo {
	return &wire.RoomInfo{
		ID:       v.ID,
		RoomCode: v.Code,
		Status:   wire.RoomStatus(v.Status),
		Player1:  toPlayerInfo(v.Player1),
		Player2:  toPlayerInfo(v.Player2),
	}
}

var _ transport.SessionHandler = (*Dispatcher)(nil)
