package wire

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
)

// schemaPackage is the protobuf package of api/proto/lobby/v1/lobby.proto.
const schemaPackage = "lobby.v1"

// fieldSpec declares one field of a schema message.
type fieldSpec struct {
	name     string
	num      int32
	typ      descriptorpb.FieldDescriptorProto_Type
	ref      string // message or enum name
	repeated bool
}

func stringField(name string, num int32) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_STRING}
}

func int64Field(name string, num int32) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_INT64}
}

func int32Field(name string, num int32) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_INT32}
}

func floatField(name string, num int32) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_FLOAT}
}

func boolField(name string, num int32) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_BOOL}
}

func bytesField(name string, num int32) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_BYTES}
}

func enumField(name string, num int32, enum string) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_ENUM, ref: enum}
}

func messageField(name string, num int32, message string) fieldSpec {
	return fieldSpec{name: name, num: num, typ: descriptorpb.FieldDescriptorProto_TYPE_MESSAGE, ref: message}
}

func repeatedField(f fieldSpec) fieldSpec {
	f.repeated = true
	return f
}

func (f fieldSpec) descriptor() *descriptorpb.FieldDescriptorProto {
	label := descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL
	if f.repeated {
		label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED
	}
	fd := &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(f.name),
		Number: proto.Int32(f.num),
		Label:  label.Enum(),
		Type:   f.typ.Enum(),
	}
	if f.ref != "" {
		fd.TypeName = proto.String("." + schemaPackage + "." + f.ref)
	}
	return fd
}

// response prefixes the status fields every response carries.
func response(fields ...fieldSpec) []fieldSpec {
	return append([]fieldSpec{enumField("code", 1, "ErrorCode"), stringField("message", 2)}, fields...)
}

// schemaMessages lists the messages of lobby.proto in declaration order.
var schemaMessages = []struct {
	name   string
	fields []fieldSpec
}{
	{"Envelope", []fieldSpec{enumField("type", 1, "MessageType"), bytesField("body", 2)}},
	{"PlayerInfo", []fieldSpec{
		int64Field("id", 1), stringField("username", 2), stringField("nickname", 3), int32Field("score", 4),
	}},
	{"RoomInfo", []fieldSpec{
		int64Field("id", 1), stringField("room_code", 2), enumField("status", 3, "RoomStatus"),
		messageField("player1", 4, "PlayerInfo"), messageField("player2", 5, "PlayerInfo"),
	}},
	{"PlayerPosition", []fieldSpec{int64Field("player_id", 1), floatField("x", 2), floatField("y", 3)}},

	{"LoginRequest", []fieldSpec{stringField("username", 1), stringField("password", 2)}},
	{"RegisterRequest", []fieldSpec{stringField("username", 1), stringField("password", 2), stringField("nickname", 3)}},
	{"CreateRoomRequest", []fieldSpec{int64Field("player_id", 1)}},
	{"JoinRoomRequest", []fieldSpec{int64Field("player_id", 1), stringField("room_code", 2)}},
	{"LeaveRoomRequest", []fieldSpec{int64Field("player_id", 1), stringField("room_code", 2)}},
	{"ListRoomsRequest", nil},
	{"StartGameRequest", []fieldSpec{int64Field("player_id", 1), int64Field("room_id", 2)}},
	{"MoveRequest", []fieldSpec{
		int64Field("player_id", 1), int64Field("room_id", 2), floatField("x", 3), floatField("y", 4),
	}},
	{"EndGameRequest", []fieldSpec{int64Field("player_id", 1), int64Field("room_id", 2), int64Field("winner_id", 3)}},

	{"LoginResponse", response(messageField("player", 3, "PlayerInfo"))},
	{"RegisterResponse", response(messageField("player", 3, "PlayerInfo"))},
	{"CreateRoomResponse", response(messageField("room", 3, "RoomInfo"))},
	{"JoinRoomResponse", response(messageField("room", 3, "RoomInfo"))},
	{"LeaveRoomResponse", response()},
	{"ListRoomsResponse", response(repeatedField(messageField("rooms", 3, "RoomInfo")))},
	{"StartGameResponse", response(int64Field("room_id", 3))},
	{"EndGameResponse", response(int64Field("room_id", 3), int64Field("winner_id", 4))},
	{"RoomStateUpdate", response(
		int64Field("room_id", 3), messageField("room", 4, "RoomInfo"),
		repeatedField(messageField("positions", 5, "PlayerPosition")), boolField("closed", 6),
	)},
	{"ErrorResponse", response()},
}

// bodyNames maps each message type to the schema message its envelope body
// holds.
var bodyNames = map[MessageType]string{
	TypeLoginRequest:       "LoginRequest",
	TypeLoginResponse:      "LoginResponse",
	TypeRegisterRequest:    "RegisterRequest",
	TypeRegisterResponse:   "RegisterResponse",
	TypeCreateRoomRequest:  "CreateRoomRequest",
	TypeCreateRoomResponse: "CreateRoomResponse",
	TypeJoinRoomRequest:    "JoinRoomRequest",
	TypeJoinRoomResponse:   "JoinRoomResponse",
	TypeLeaveRoomRequest:   "LeaveRoomRequest",
	TypeLeaveRoomResponse:  "LeaveRoomResponse",
	TypeListRoomsRequest:   "ListRoomsRequest",
	TypeListRoomsResponse:  "ListRoomsResponse",
	TypeStartGameRequest:   "StartGameRequest",
	TypeStartGameResponse:  "StartGameResponse",
	TypeMoveRequest:        "MoveRequest",
	TypeRoomStateUpdate:    "RoomStateUpdate",
	TypeError:              "ErrorResponse",
	TypeEndGameRequest:     "EndGameRequest",
	TypeEndGameResponse:    "EndGameResponse",
}

func enumDescriptor(name string, values []string) *descriptorpb.EnumDescriptorProto {
	ed := &descriptorpb.EnumDescriptorProto{Name: proto.String(name)}
	for i, v := range values {
		ed.Value = append(ed.Value, &descriptorpb.EnumValueDescriptorProto{
			Name:   proto.String(v),
			Number: proto.Int32(int32(i)),
		})
	}
	return ed
}

// buildSchema assembles the lobby.v1 file descriptor. Enum value names come
// from the String methods so the two cannot drift.
func buildSchema() (protoreflect.FileDescriptor, error) {
	var types, codes []string
	for t := TypeUnknown; t <= TypeEndGameResponse; t++ {
		types = append(types, t.String())
	}
	for c := CodeSuccess; c <= CodeRoomNotFound; c++ {
		codes = append(codes, c.String())
	}

	file := &descriptorpb.FileDescriptorProto{
		Name:    proto.String("lobby/v1/lobby.proto"),
		Package: proto.String(schemaPackage),
		Syntax:  proto.String("proto3"),
		EnumType: []*descriptorpb.EnumDescriptorProto{
			enumDescriptor("MessageType", types),
			enumDescriptor("ErrorCode", codes),
			enumDescriptor("RoomStatus", []string{"ROOM_WAITING", "ROOM_PLAYING", "ROOM_ENDED"}),
		},
	}
	for _, m := range schemaMessages {
		md := &descriptorpb.DescriptorProto{Name: proto.String(m.name)}
		for _, f := range m.fields {
			md.Field = append(md.Field, f.descriptor())
		}
		file.MessageType = append(file.MessageType, md)
	}
	return protodesc.NewFile(file, nil)
}

var schema = func() protoreflect.FileDescriptor {
	fd, err := buildSchema()
	if err != nil {
		panic(fmt.Sprintf("building lobby schema: %v", err))
	}
	return fd
}()

func schemaMessage(name string) protoreflect.MessageDescriptor {
	md := schema.Messages().ByName(protoreflect.Name(name))
	if md == nil {
		panic("lobby schema has no message " + name)
	}
	return md
}

var (
	envelopeDesc       = schemaMessage("Envelope")
	playerInfoDesc     = schemaMessage("PlayerInfo")
	roomInfoDesc       = schemaMessage("RoomInfo")
	playerPositionDesc = schemaMessage("PlayerPosition")

	requestBodies  = bodies(requestTypes)
	responseBodies = bodies(responseTypes)
)

var requestTypes = []MessageType{
	TypeLoginRequest, TypeRegisterRequest, TypeCreateRoomRequest, TypeJoinRoomRequest,
	TypeLeaveRoomRequest, TypeListRoomsRequest, TypeStartGameRequest, TypeMoveRequest,
	TypeEndGameRequest,
}

var responseTypes = []MessageType{
	TypeLoginResponse, TypeRegisterResponse, TypeCreateRoomResponse, TypeJoinRoomResponse,
	TypeLeaveRoomResponse, TypeListRoomsResponse, TypeStartGameResponse, TypeEndGameResponse,
	TypeRoomStateUpdate, TypeError,
}

func bodies(types []MessageType) map[MessageType]protoreflect.MessageDescriptor {
	m := make(map[MessageType]protoreflect.MessageDescriptor, len(types))
	for _, t := range types {
		m[t] = schemaMessage(bodyNames[t])
	}
	return m
}
