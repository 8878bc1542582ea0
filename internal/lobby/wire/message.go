// Package wire defines the lobby protocol: a closed set of request and
// response messages, their binary encoding (protobuf wire format), and the
// length-prefixed framing used on stream transports.
package wire

import "fmt"

// MessageType tags the body carried by an envelope.
type MessageType int32

// Message types. Values are part of the wire format and must not be reordered.
const (
	TypeUnknown MessageType = iota
	TypeLoginRequest
	TypeLoginResponse
	TypeRegisterRequest
	TypeRegisterResponse
	TypeCreateRoomRequest
	TypeCreateRoomResponse
	TypeJoinRoomRequest
	TypeJoinRoomResponse
	TypeLeaveRoomRequest
	TypeLeaveRoomResponse
	TypeListRoomsRequest
	TypeListRoomsResponse
	TypeStartGameRequest
	TypeStartGameResponse
	TypeMoveRequest
	TypeRoomStateUpdate
	TypeError
	TypeEndGameRequest
	TypeEndGameResponse
)

var messageTypeNames = map[MessageType]string{
	TypeUnknown:            "UNKNOWN",
	TypeLoginRequest:       "LOGIN_REQUEST",
	TypeLoginResponse:      "LOGIN_RESPONSE",
	TypeRegisterRequest:    "REGISTER_REQUEST",
	TypeRegisterResponse:   "REGISTER_RESPONSE",
	TypeCreateRoomRequest:  "CREATE_ROOM_REQUEST",
	TypeCreateRoomResponse: "CREATE_ROOM_RESPONSE",
	TypeJoinRoomRequest:    "JOIN_ROOM_REQUEST",
	TypeJoinRoomResponse:   "JOIN_ROOM_RESPONSE",
	TypeLeaveRoomRequest:   "LEAVE_ROOM_REQUEST",
	TypeLeaveRoomResponse:  "LEAVE_ROOM_RESPONSE",
	TypeListRoomsRequest:   "LIST_ROOMS_REQUEST",
	TypeListRoomsResponse:  "LIST_ROOMS_RESPONSE",
	TypeStartGameRequest:   "START_GAME_REQUEST",
	TypeStartGameResponse:  "START_GAME_RESPONSE",
	TypeMoveRequest:        "MOVE_REQUEST",
	TypeRoomStateUpdate:    "ROOM_STATE_UPDATE",
	TypeError:              "ERROR",
	TypeEndGameRequest:     "END_GAME_REQUEST",
	TypeEndGameResponse:    "END_GAME_RESPONSE",
}

// String returns the protocol name of the message type.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(%d)", int32(t))
}

// ErrorCode is the status carried by every response.
type ErrorCode int32

// Status codes.
const (
	CodeSuccess               ErrorCode = 0
	CodeInvalidRequest        ErrorCode = 1
	CodeUsernamePasswordError ErrorCode = 2
	CodeUsernameExists        ErrorCode = 3
	CodeRoomNotFound          ErrorCode = 4
)

func (c ErrorCode) String() string {
	switch c {
	case CodeSuccess:
		return "SUCCESS"
	case CodeInvalidRequest:
		return "INVALID_REQUEST"
	case CodeUsernamePasswordError:
		return "USERNAME_PASSWORD_ERROR"
	case CodeUsernameExists:
		return "USERNAME_EXISTS"
	case CodeRoomNotFound:
		return "ROOM_NOT_FOUND"
	}
	return fmt.Sprintf("ErrorCode(%d)", int32(c))
}

// RoomStatus mirrors the lifecycle of a room as seen by clients.
type RoomStatus int32

// Room statuses.
const (
	RoomWaiting RoomStatus = 0
	RoomPlaying RoomStatus = 1
	RoomEnded   RoomStatus = 2
)

// PlayerInfo is the public view of a player.
type PlayerInfo struct {
	ID       int64
	Username string
	Nickname string
	Score    int32
}

// RoomInfo is the public view of a room. Player2 is nil while slot 2 is open.
type RoomInfo struct {
	ID       int64
	RoomCode string
	Status   RoomStatus
	Player1  *PlayerInfo
	Player2  *PlayerInfo
}

// PlayerPosition is one player's coordinates inside a room.
type PlayerPosition struct {
	PlayerID int64
	X        float32
	Y        float32
}

// Request is the closed set of messages a client may send.
type Request interface {
	Type() MessageType
	isRequest()
}

// Response is the closed set of messages the server may send.
type Response interface {
	Type() MessageType
	StatusOf() Status
	isResponse()
}

// Status is the code + message envelope shared by all responses.
type Status struct {
	Code    ErrorCode
	Message string
}

// StatusOf returns the response status.
func (s Status) StatusOf() Status { return s }

// OK builds a successful status.
func OK(message string) Status { return Status{Code: CodeSuccess, Message: message} }

type LoginRequest struct {
	Username string
	Password string
}

type RegisterRequest struct {
	Username string
	Password string
	Nickname string
}

type CreateRoomRequest struct {
	PlayerID int64
}

type JoinRoomRequest struct {
	PlayerID int64
	RoomCode string
}

type LeaveRoomRequest struct {
	PlayerID int64
	RoomCode string
}

type ListRoomsRequest struct{}

type StartGameRequest struct {
	PlayerID int64
	RoomID   int64
}

// MoveRequest reports a player's position. RoomID is optional; zero means
// "the room the player is currently in".
type MoveRequest struct {
	PlayerID int64
	RoomID   int64
	X        float32
	Y        float32
}

// EndGameRequest closes a PLAYING room. WinnerID zero records a draw.
type EndGameRequest struct {
	PlayerID int64
	RoomID   int64
	WinnerID int64
}

func (LoginRequest) Type() MessageType      { return TypeLoginRequest }
func (RegisterRequest) Type() MessageType   { return TypeRegisterRequest }
func (CreateRoomRequest) Type() MessageType { return TypeCreateRoomRequest }
func (JoinRoomRequest) Type() MessageType   { return TypeJoinRoomRequest }
func (LeaveRoomRequest) Type() MessageType  { return TypeLeaveRoomRequest }
func (ListRoomsRequest) Type() MessageType  { return TypeListRoomsRequest }
func (StartGameRequest) Type() MessageType  { return TypeStartGameRequest }
func (MoveRequest) Type() MessageType       { return TypeMoveRequest }
func (EndGameRequest) Type() MessageType    { return TypeEndGameRequest }

func (LoginRequest) isRequest()      {}
func (RegisterRequest) isRequest()   {}
func (CreateRoomRequest) isRequest() {}
func (JoinRoomRequest) isRequest()   {}
func (LeaveRoomRequest) isRequest()  {}
func (ListRoomsRequest) isRequest()  {}
func (StartGameRequest) isRequest()  {}
func (MoveRequest) isRequest()       {}
func (EndGameRequest) isRequest()    {}

type LoginResponse struct {
	Status
	Player *PlayerInfo
}

type RegisterResponse struct {
	Status
	Player *PlayerInfo
}

type CreateRoomResponse struct {
	Status
	Room *RoomInfo
}

type JoinRoomResponse struct {
	Status
	Room *RoomInfo
}

type LeaveRoomResponse struct {
	Status
}

type ListRoomsResponse struct {
	Status
	Rooms []RoomInfo
}

type StartGameResponse struct {
	Status
	RoomID int64
}

type EndGameResponse struct {
	Status
	RoomID   int64
	WinnerID int64
}

// RoomStateUpdate is pushed to every member of a room. It carries the room
// view after a membership change, position updates after a move, or
// Closed=true once the room no longer exists.
type RoomStateUpdate struct {
	Status
	RoomID    int64
	Room      *RoomInfo
	Positions []PlayerPosition
	Closed    bool
}

// ErrorMessage reports a failed request.
type ErrorMessage struct {
	Status
}

// NewError builds an ErrorMessage.
func NewError(code ErrorCode, message string) ErrorMessage {
	return ErrorMessage{Status: Status{Code: code, Message: message}}
}

func (LoginResponse) Type() MessageType      { return TypeLoginResponse }
func (RegisterResponse) Type() MessageType   { return TypeRegisterResponse }
func (CreateRoomResponse) Type() MessageType { return TypeCreateRoomResponse }
func (JoinRoomResponse) Type() MessageType   { return TypeJoinRoomResponse }
func (LeaveRoomResponse) Type() MessageType  { return TypeLeaveRoomResponse }
func (ListRoomsResponse) Type() MessageType  { return TypeListRoomsResponse }
func (StartGameResponse) Type() MessageType  { return TypeStartGameResponse }
func (EndGameResponse) Type() MessageType    { return TypeEndGameResponse }
func (RoomStateUpdate) Type() MessageType    { return TypeRoomStateUpdate }
func (ErrorMessage) Type() MessageType       { return TypeError }

func (LoginResponse) isResponse()      {}
func (RegisterResponse) isResponse()   {}
func (CreateRoomResponse) isResponse() {}
func (JoinRoomResponse) isResponse()   {}
func (LeaveRoomResponse) isResponse()  {}
func (ListRoomsResponse) isResponse()  {}
func (StartGameResponse) isResponse()  {}
func (EndGameResponse) isResponse()    {}
func (RoomStateUpdate) isResponse()    {}
func (ErrorMessage) isResponse()       {}
