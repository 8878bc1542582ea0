package wire

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// ErrMalformed is wrapped by every decode failure caused by bytes that are
// not a well-formed envelope or body.
var ErrMalformed = errors.New("malformed message")

// ErrUnknownType is wrapped when a well-formed envelope carries a type that
// is not valid in the decoding direction.
var ErrUnknownType = errors.New("unknown message type")

var marshalOptions = proto.MarshalOptions{Deterministic: true}

// EncodeRequest serializes a request into an envelope.
func EncodeRequest(req Request) []byte {
	body := newMessage(requestBodies[req.Type()])
	switch r := req.(type) {
	case LoginRequest:
		body.setString("username", r.Username)
		body.setString("password", r.Password)
	case RegisterRequest:
		body.setString("username", r.Username)
		body.setString("password", r.Password)
		body.setString("nickname", r.Nickname)
	case CreateRoomRequest:
		body.setInt64("player_id", r.PlayerID)
	case JoinRoomRequest:
		body.setInt64("player_id", r.PlayerID)
		body.setString("room_code", r.RoomCode)
	case LeaveRoomRequest:
		body.setInt64("player_id", r.PlayerID)
		body.setString("room_code", r.RoomCode)
	case ListRoomsRequest:
	case StartGameRequest:
		body.setInt64("player_id", r.PlayerID)
		body.setInt64("room_id", r.RoomID)
	case MoveRequest:
		body.setInt64("player_id", r.PlayerID)
		body.setInt64("room_id", r.RoomID)
		body.setFloat("x", r.X)
		body.setFloat("y", r.Y)
	case EndGameRequest:
		body.setInt64("player_id", r.PlayerID)
		body.setInt64("room_id", r.RoomID)
		body.setInt64("winner_id", r.WinnerID)
	}
	return envelope(req.Type(), body.marshal())
}

// EncodeResponse serializes a response into an envelope. Every Response
// value is encodable.
func EncodeResponse(resp Response) []byte {
	body := newMessage(responseBodies[resp.Type()])
	st := resp.StatusOf()
	body.setEnum("code", int32(st.Code))
	body.setString("message", st.Message)

	switch r := resp.(type) {
	case LoginResponse:
		body.setPlayer("player", r.Player)
	case RegisterResponse:
		body.setPlayer("player", r.Player)
	case CreateRoomResponse:
		body.setRoom("room", r.Room)
	case JoinRoomResponse:
		body.setRoom("room", r.Room)
	case LeaveRoomResponse:
	case ListRoomsResponse:
		for i := range r.Rooms {
			body.appendMessage("rooms", roomMessage(&r.Rooms[i]))
		}
	case StartGameResponse:
		body.setInt64("room_id", r.RoomID)
	case EndGameResponse:
		body.setInt64("room_id", r.RoomID)
		body.setInt64("winner_id", r.WinnerID)
	case RoomStateUpdate:
		body.setInt64("room_id", r.RoomID)
		body.setRoom("room", r.Room)
		for _, p := range r.Positions {
			pos := newMessage(playerPositionDesc)
			pos.setInt64("player_id", p.PlayerID)
			pos.setFloat("x", p.X)
			pos.setFloat("y", p.Y)
			body.appendMessage("positions", pos)
		}
		body.setBool("closed", r.Closed)
	case ErrorMessage:
	}
	return envelope(resp.Type(), body.marshal())
}

func envelope(t MessageType, body []byte) []byte {
	env := newMessage(envelopeDesc)
	env.setEnum("type", int32(t))
	env.setBytes("body", body)
	return env.marshal()
}

// DecodeRequest parses an envelope sent by a client.
//
// Postcondition: Returns a fully populated Request, or an error wrapping
// ErrMalformed or ErrUnknownType and a nil Request.
func DecodeRequest(b []byte) (Request, error) {
	t, raw, err := openEnvelope(b)
	if err != nil {
		return nil, err
	}
	desc, ok := requestBodies[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a request", ErrUnknownType, t)
	}
	m, err := unmarshal(desc, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", t, err)
	}

	switch t {
	case TypeLoginRequest:
		return LoginRequest{Username: m.string("username"), Password: m.string("password")}, nil
	case TypeRegisterRequest:
		return RegisterRequest{
			Username: m.string("username"),
			Password: m.string("password"),
			Nickname: m.string("nickname"),
		}, nil
	case TypeCreateRoomRequest:
		return CreateRoomRequest{PlayerID: m.int64("player_id")}, nil
	case TypeJoinRoomRequest:
		return JoinRoomRequest{PlayerID: m.int64("player_id"), RoomCode: m.string("room_code")}, nil
	case TypeLeaveRoomRequest:
		return LeaveRoomRequest{PlayerID: m.int64("player_id"), RoomCode: m.string("room_code")}, nil
	case TypeListRoomsRequest:
		return ListRoomsRequest{}, nil
	case TypeStartGameRequest:
		return StartGameRequest{PlayerID: m.int64("player_id"), RoomID: m.int64("room_id")}, nil
	case TypeMoveRequest:
		return MoveRequest{
			PlayerID: m.int64("player_id"),
			RoomID:   m.int64("room_id"),
			X:        m.float("x"),
			Y:        m.float("y"),
		}, nil
	default:
		return EndGameRequest{
			PlayerID: m.int64("player_id"),
			RoomID:   m.int64("room_id"),
			WinnerID: m.int64("winner_id"),
		}, nil
	}
}

// DecodeResponse parses an envelope sent by the server.
//
// Postcondition: Returns a fully populated Response, or an error wrapping
// ErrMalformed or ErrUnknownType and a nil Response.
func DecodeResponse(b []byte) (Response, error) {
	t, raw, err := openEnvelope(b)
	if err != nil {
		return nil, err
	}
	desc, ok := responseBodies[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a response", ErrUnknownType, t)
	}
	m, err := unmarshal(desc, raw)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", t, err)
	}

	st := Status{Code: ErrorCode(m.enum("code")), Message: m.string("message")}
	switch t {
	case TypeLoginResponse:
		return LoginResponse{Status: st, Player: m.player("player")}, nil
	case TypeRegisterResponse:
		return RegisterResponse{Status: st, Player: m.player("player")}, nil
	case TypeCreateRoomResponse:
		return CreateRoomResponse{Status: st, Room: m.room("room")}, nil
	case TypeJoinRoomResponse:
		return JoinRoomResponse{Status: st, Room: m.room("room")}, nil
	case TypeLeaveRoomResponse:
		return LeaveRoomResponse{Status: st}, nil
	case TypeListRoomsResponse:
		var rooms []RoomInfo
		for _, r := range m.list("rooms") {
			rooms = append(rooms, *r.roomInfo())
		}
		return ListRoomsResponse{Status: st, Rooms: rooms}, nil
	case TypeStartGameResponse:
		return StartGameResponse{Status: st, RoomID: m.int64("room_id")}, nil
	case TypeEndGameResponse:
		return EndGameResponse{Status: st, RoomID: m.int64("room_id"), WinnerID: m.int64("winner_id")}, nil
	case TypeRoomStateUpdate:
		var positions []PlayerPosition
		for _, p := range m.list("positions") {
			positions = append(positions, PlayerPosition{
				PlayerID: p.int64("player_id"),
				X:        p.float("x"),
				Y:        p.float("y"),
			})
		}
		return RoomStateUpdate{
			Status:    st,
			RoomID:    m.int64("room_id"),
			Room:      m.room("room"),
			Positions: positions,
			Closed:    m.bool("closed"),
		}, nil
	default:
		return ErrorMessage{Status: st}, nil
	}
}

func openEnvelope(b []byte) (MessageType, []byte, error) {
	if len(b) == 0 {
		return TypeUnknown, nil, fmt.Errorf("%w: empty envelope", ErrMalformed)
	}
	env, err := unmarshal(envelopeDesc, b)
	if err != nil {
		return TypeUnknown, nil, err
	}
	t := MessageType(env.enum("type"))
	if t == TypeUnknown {
		return TypeUnknown, nil, fmt.Errorf("%w: missing message type", ErrMalformed)
	}
	return t, env.bytes("body"), nil
}

func unmarshal(desc protoreflect.MessageDescriptor, b []byte) (message, error) {
	m := dynamicpb.NewMessage(desc)
	if err := proto.Unmarshal(b, m); err != nil {
		return message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := checkWireTypes(m); err != nil {
		return message{}, err
	}
	return message{m}, nil
}

// checkWireTypes rejects declared fields that arrived with the wrong wire
// type. proto.Unmarshal keeps those as unknown fields.
func checkWireTypes(m protoreflect.Message) error {
	fields := m.Descriptor().Fields()
	for raw := m.GetUnknown(); len(raw) > 0; {
		num, typ, n := protowire.ConsumeField(raw)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		if fields.ByNumber(num) != nil {
			return fmt.Errorf("%w: field %d has unexpected wire type %d", ErrMalformed, num, typ)
		}
		raw = raw[n:]
	}

	var err error
	m.Range(func(fd protoreflect.FieldDescriptor, v protoreflect.Value) bool {
		switch {
		case fd.Message() == nil:
		case fd.IsList():
			l := v.List()
			for i := 0; i < l.Len() && err == nil; i++ {
				err = checkWireTypes(l.Get(i).Message())
			}
		default:
			err = checkWireTypes(v.Message())
		}
		return err == nil
	})
	return err
}

// message gives field-name access to a schema message.
type message struct {
	m protoreflect.Message
}

func newMessage(desc protoreflect.MessageDescriptor) message {
	return message{dynamicpb.NewMessage(desc)}
}

// marshal serializes the message. Strings are made valid UTF-8 on the way
// in, which leaves Marshal nothing to reject.
func (m message) marshal() []byte {
	b, err := marshalOptions.Marshal(m.m.Interface())
	if err != nil {
		panic(fmt.Sprintf("marshaling %s: %v", m.m.Descriptor().FullName(), err))
	}
	return b
}

func (m message) field(name string) protoreflect.FieldDescriptor {
	fd := m.m.Descriptor().Fields().ByName(protoreflect.Name(name))
	if fd == nil {
		panic(fmt.Sprintf("%s has no field %s", m.m.Descriptor().FullName(), name))
	}
	return fd
}

func (m message) setString(name, v string) {
	m.m.Set(m.field(name), protoreflect.ValueOfString(strings.ToValidUTF8(v, "\uFFFD")))
}

func (m message) setInt64(name string, v int64) {
	m.m.Set(m.field(name), protoreflect.ValueOfInt64(v))
}

func (m message) setInt32(name string, v int32) {
	m.m.Set(m.field(name), protoreflect.ValueOfInt32(v))
}

func (m message) setEnum(name string, v int32) {
	m.m.Set(m.field(name), protoreflect.ValueOfEnum(protoreflect.EnumNumber(v)))
}

func (m message) setFloat(name string, v float32) {
	m.m.Set(m.field(name), protoreflect.ValueOfFloat32(v))
}

func (m message) setBool(name string, v bool) {
	m.m.Set(m.field(name), protoreflect.ValueOfBool(v))
}

func (m message) setBytes(name string, v []byte) {
	m.m.Set(m.field(name), protoreflect.ValueOfBytes(v))
}

func (m message) setMessage(name string, v message) {
	m.m.Set(m.field(name), protoreflect.ValueOfMessage(v.m))
}

func (m message) appendMessage(name string, v message) {
	m.m.Mutable(m.field(name)).List().Append(protoreflect.ValueOfMessage(v.m))
}

func (m message) setPlayer(name string, p *PlayerInfo) {
	if p != nil {
		m.setMessage(name, playerMessage(p))
	}
}

func (m message) setRoom(name string, r *RoomInfo) {
	if r != nil {
		m.setMessage(name, roomMessage(r))
	}
}

func (m message) string(name string) string { return m.m.Get(m.field(name)).String() }
func (m message) int64(name string) int64 { return m.m.Get(m.field(name)).Int() }
func (m message) int32(name string) int32 { return int32(m.m.Get(m.field(name)).Int()) }
func (m message) enum(name string) int32 { return int32(m.m.Get(m.field(name)).Enum()) }
func (m message) float(name string) float32 { return float32(m.m.Get(m.field(name)).Float()) }
func (m message) bool(name string) bool { return m.m.Get(m.field(name)).Bool() }
func (m message) bytes(name string) []byte { return m.m.Get(m.field(name)).Bytes() }
func (m message) has(name string) bool { return m.m.Has(m.field(name)) }
func (m message) child(name string) message { return message{m.m.Get(m.field(name)).Message()} }

func (m message) list(name string) []message {
	l := m.m.Get(m.field(name)).List()
	out := make([]message, 0, l.Len())
	for i := 0; i < l.Len(); i++ {
		out = append(out, message{l.Get(i).Message()})
	}
	return out
}

// player returns the PlayerInfo in field name, or nil if it is unset.
func (m message) player(name string) *PlayerInfo {
	if !m.has(name) {
		return nil
	}
	return m.child(name).playerInfo()
}

// room returns the RoomInfo in field name, or nil if it is unset.
func (m message) room(name string) *RoomInfo {
	if !m.has(name) {
		return nil
	}
	return m.child(name).roomInfo()
}

func (m message) playerInfo() *PlayerInfo {
	return &PlayerInfo{
		ID:       m.int64("id"),
		Username: m.string("username"),
		Nickname: m.string("nickname"),
		Score:    m.int32("score"),
	}
}

func (m message) roomInfo() *RoomInfo {
	return &RoomInfo{
		ID:       m.int64("id"),
		RoomCode: m.string("room_code"),
		Status:   RoomStatus(m.enum("status")),
		Player1:  m.player("player1"),
		Player2:  m.player("player2"),
	}
}

func playerMessage(p *PlayerInfo) message {
	m := newMessage(playerInfoDesc)
	m.setInt64("id", p.ID)
	m.setString("username", p.Username)
	m.setString("nickname", p.Nickname)
	m.setInt32("score", p.Score)
	return m
}

func roomMessage(r *RoomInfo) message {
	m := newMessage(roomInfoDesc)
	m.setInt64("id", r.ID)
	m.setString("room_code", r.RoomCode)
	m.setEnum("status", int32(r.Status))
	m.setPlayer("player1", r.Player1)
	m.setPlayer("player2", r.Player2)
	return m
}
