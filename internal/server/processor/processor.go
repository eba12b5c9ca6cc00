package processor

import (
	"context"
	"log/slog"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/service"
)

// Processor executes inbound commands against the coordinator and builds the
// reply addressed to the requesting connection. Room-wide events are published
// by the coordinator itself.
type Processor struct {
	svc *service.Coordinator
	log *slog.Logger
}

func New(svc *service.Coordinator, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}
	return &Processor{svc: svc, log: log}
}

// Handle parses and executes one raw frame. A nil result means no direct reply.
func (p *Processor) Handle(ctx context.Context, peer service.Peer, raw []byte) *core.Outbound {
	cmd, perr := ParseCommand(raw, peer)
	if perr != nil {
		if cmd.Type == CmdMakeMove {
			return illegalMove(perr)
		}
		return WSError(perr)
	}
	return p.Execute(ctx, cmd)
}

func (p *Processor) Execute(ctx context.Context, cmd Command) *core.Outbound {
	switch cmd.Type {
	case CmdPing:
		return &core.Outbound{Event: core.EventPong, Data: struct{}{}}
	case CmdCreateRoom:
		return p.handleCreateRoom(ctx, cmd)
	case CmdJoinRoom:
		return p.handleJoinRoom(ctx, cmd)
	case CmdRejoinRoom:
		return p.handleRejoinRoom(ctx, cmd)
	case CmdMakeMove:
		return p.handleMakeMove(ctx, cmd)
	case CmdRestart:
		return p.handleRestart(ctx, cmd)
	default:
		return WSError(core.NewValidationError(core.ErrUnknownEvent, "unknown command"))
	}
}

func (p *Processor) handleCreateRoom(ctx context.Context, cmd Command) *core.Outbound {
	args, ok := cmd.Args.(core.CreateRoomRequest)
	if !ok {
		return invalidArgs()
	}
	res, err := p.svc.CreateRoom(ctx, cmd.Peer, args)
	if err != nil {
		return WSError(core.AsError(err))
	}
	return &core.Outbound{Event: core.EventRoomCreated, Data: res}
}

func (p *Processor) handleJoinRoom(ctx context.Context, cmd Command) *core.Outbound {
	args, ok := cmd.Args.(core.JoinRoomRequest)
	if !ok {
		return invalidArgs()
	}
	res, err := p.svc.JoinRoom(ctx, cmd.Peer, args)
	if err != nil {
		return WSError(core.AsError(err))
	}
	return &core.Outbound{Event: core.EventRoomJoined, Data: res}
}

func (p *Processor) handleRejoinRoom(ctx context.Context, cmd Command) *core.Outbound {
	args, ok := cmd.Args.(core.RejoinRoomRequest)
	if !ok {
		return invalidArgs()
	}
	res, err := p.svc.RejoinRoom(ctx, cmd.Peer, args)
	if err != nil {
		return WSError(core.AsError(err))
	}
	return &core.Outbound{Event: core.EventRejoined, Data: res}
}

// handleMakeMove replies only on rejection; a successful move is announced by the room broadcast
func (p *Processor) handleMakeMove(ctx context.Context, cmd Command) *core.Outbound {
	args, ok := cmd.Args.(core.MoveRequest)
	if !ok {
		return invalidArgs()
	}
	if err := p.svc.MakeMove(ctx, cmd.Peer, args); err != nil {
		e := core.AsError(err)
		if e.Kind == core.KindInternal {
			return WSError(e)
		}
		return illegalMove(e)
	}
	return nil
}

func (p *Processor) handleRestart(ctx context.Context, cmd Command) *core.Outbound {
	args, ok := cmd.Args.(core.RestartRequest)
	if !ok {
		return invalidArgs()
	}
	res, err := p.svc.Restart(ctx, cmd.Peer, args)
	if err != nil {
		return WSError(core.AsError(err))
	}
	return &core.Outbound{Event: core.EventRestarted, Data: res}
}

func invalidArgs() *core.Outbound {
	return WSError(core.NewValidationError(core.ErrInvalidPayload, "invalid arguments"))
}

// WSError builds the generic error event
func WSError(e *core.Error) *core.Outbound {
	payload := core.WSErrorPayload{Code: e.Code, Message: e.Message}
	if len(e.Details) > 0 {
		payload.Detail = e.Details
	}
	return &core.Outbound{Event: core.EventWSError, Data: payload}
}

// illegalMove flattens the rejection details next to the code
func illegalMove(e *core.Error) *core.Outbound {
	data := make(map[string]any, len(e.Details)+2)
	for k, v := range e.Details {
		data[k] = v
	}
	data["code"] = e.Code
	data["message"] = e.Message
	return &core.Outbound{Event: core.EventIllegalMove, Data: data}
}
