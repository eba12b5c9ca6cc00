package processor

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/service"
)

// CommandType defines the type of command being executed
type CommandType int

const (
	CmdPing CommandType = iota
	CmdCreateRoom
	CmdJoinRoom
	CmdRejoinRoom
	CmdMakeMove
	CmdRestart
)

var commandTypes = map[string]CommandType{
	core.EventPing:       CmdPing,
	core.EventCreateRoom: CmdCreateRoom,
	core.EventJoinRoom:   CmdJoinRoom,
	core.EventRejoinRoom: CmdRejoinRoom,
	core.EventMakeMove:   CmdMakeMove,
	core.EventRestart:    CmdRestart,
}

func (t CommandType) String() string {
	for name, ct := range commandTypes {
		if ct == t {
			return name
		}
	}
	return "unknown"
}

// Command is a decoded inbound event bound to the connection that sent it
type Command struct {
	Type CommandType
	Peer service.Peer
	Args any // Event-specific request struct
}

// ParseCommand decodes a raw websocket frame into a command
func ParseCommand(raw []byte, peer service.Peer) (Command, *core.Error) {
	var env core.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Command{}, core.NewValidationError(core.ErrInvalidPayload, "message is not a valid event envelope")
	}

	cmdType, ok := commandTypes[env.Event]
	if !ok {
		return Command{}, core.NewValidationError(core.ErrUnknownEvent, fmt.Sprintf("unknown event %q", env.Event))
	}

	cmd := Command{Type: cmdType, Peer: peer}
	var err error
	switch cmdType {
	case CmdPing:
		return cmd, nil
	case CmdCreateRoom:
		cmd.Args, err = decode[core.CreateRoomRequest](env.Data)
	case CmdJoinRoom:
		cmd.Args, err = decode[core.JoinRoomRequest](env.Data)
	case CmdRejoinRoom:
		cmd.Args, err = decode[core.RejoinRoomRequest](env.Data)
	case CmdMakeMove:
		cmd.Args, err = decode[core.MoveRequest](env.Data)
	case CmdRestart:
		cmd.Args, err = decode[core.RestartRequest](env.Data)
	}
	if err != nil {
		return cmd, payloadError(err)
	}
	return cmd, nil
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}

// payloadError reports a field of the wrong JSON type with that field's code
func payloadError(err error) *core.Error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		switch typeErr.Field {
		case "index":
			return core.NewValidationError(core.ErrInvalidIndex, "index must be an integer 0-8")
		case "roomId":
			return core.NewValidationError(core.ErrInvalidRoomID, "roomId must be a string")
		case "playerName":
			return core.NewValidationError(core.ErrInvalidName, "playerName must be a string")
		}
	}
	return core.NewValidationError(core.ErrInvalidPayload, "malformed event data")
}
