package core

import "encoding/json"

// Inbound event names
const (
	EventPing       = "ping"
	EventCreateRoom = "create_room"
	EventJoinRoom   = "join_room"
	EventRejoinRoom = "rejoin_room"
	EventMakeMove   = "make_move"
	EventRestart    = "restart"
)

// Outbound event names
const (
	EventPong        = "pong"
	EventRoomCreated = "room_created"
	EventRoomJoined  = "room_joined"
	EventRejoined    = "rejoined"
	EventRoomState   = "room_state"
	EventGameOver    = "game_over"
	EventRestarted   = "restarted"
	EventIllegalMove = "illegal_move"
	EventWSError     = "ws_error"
)

// Envelope frames every websocket message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Outbound is an encoded-later message addressed to one or more connections
type Outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// CreateRoomRequest never fails on a bad name or id: both fall back to defaults
type CreateRoomRequest struct {
	PlayerName string `json:"playerName"`
	RoomID     string `json:"roomId"`
}

type JoinRoomRequest struct {
	RoomID     string `json:"roomId" validate:"required,roomid"`
	PlayerName string `json:"playerName"`
}

type RejoinRoomRequest struct {
	RoomID     string `json:"roomId" validate:"required,roomid"`
	PlayerName string `json:"playerName" validate:"required,playername"`
}

type MoveRequest struct {
	RoomID string `json:"roomId" validate:"required,roomid"`
	Index  *int   `json:"index" validate:"required,min=0,max=8"`
}

type RestartRequest struct {
	RoomID string `json:"roomId" validate:"required,roomid"`
}

// OpenRoomRequest is the REST create body. Fields that would let a caller
// seed game state are rejected before this struct is bound.
type OpenRoomRequest struct {
	RoomID      string `json:"room_id" validate:"omitempty,roomid"`
	Player1Name string `json:"player1_name" validate:"omitempty,playername"`
}

type RoomCreatedPayload struct {
	RoomID   string `json:"roomId"`
	Assigned Symbol `json:"assigned"`
	State    Room   `json:"state"`
}

type RoomJoinedPayload struct {
	RoomID   string `json:"roomId"`
	Assigned Symbol `json:"assigned"`
}

type GameOverPayload struct {
	Status Status `json:"status"`
}

type RestartedPayload struct {
	RoomID string `json:"roomId"`
}

type WSErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  any    `json:"detail,omitempty"`
}
