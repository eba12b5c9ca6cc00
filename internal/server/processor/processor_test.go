package processor

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/core"
	"tictactoe/internal/server/service"
	"tictactoe/internal/server/storage"

	"github.com/stretchr/testify/require"
)

type fakePeer struct {
	mu      sync.Mutex
	session core.Session
}

func (p *fakePeer) Session() core.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *fakePeer) Bind(s core.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
}

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, err := storage.NewStore(":memory:", log)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())
	t.Cleanup(func() { store.Close() })

	svc := service.New(store, broadcast.NewHub(log), log)
	return New(svc, log)
}

func handle(p *Processor, peer service.Peer, raw string) *core.Outbound {
	return p.Handle(context.Background(), peer, []byte(raw))
}

func requireWSError(t *testing.T, out *core.Outbound, code string) core.WSErrorPayload {
	t.Helper()
	require.NotNil(t, out)
	require.Equal(t, core.EventWSError, out.Event)
	payload, ok := out.Data.(core.WSErrorPayload)
	require.True(t, ok)
	require.Equal(t, code, payload.Code)
	return payload
}

func requireIllegalMove(t *testing.T, out *core.Outbound, code string) map[string]any {
	t.Helper()
	require.NotNil(t, out)
	require.Equal(t, core.EventIllegalMove, out.Event)
	data, ok := out.Data.(map[string]any)
	require.True(t, ok)
	require.Equal(t, code, data["code"])
	return data
}

func TestHandle_Ping(t *testing.T) {
	p := newTestProcessor(t)
	out := handle(p, &fakePeer{}, `{"event":"ping"}`)
	require.NotNil(t, out)
	require.Equal(t, core.EventPong, out.Event)
}

func TestHandle_MalformedFrames(t *testing.T) {
	p := newTestProcessor(t)
	peer := &fakePeer{}

	requireWSError(t, handle(p, peer, `not json`), core.ErrInvalidPayload)
	requireWSError(t, handle(p, peer, `{"event":"fly_away"}`), core.ErrUnknownEvent)
	requireWSError(t, handle(p, peer, `{"event":"join_room","data":{"roomId":42}}`), core.ErrInvalidRoomID)
	requireWSError(t, handle(p, peer, `{"event":"join_room","data":[1,2]}`), core.ErrInvalidPayload)
	requireIllegalMove(t, handle(p, peer, `{"event":"make_move","data":{"roomId":"room1","index":"four"}}`), core.ErrInvalidIndex)
	requireIllegalMove(t, handle(p, peer, `{"event":"make_move","data":{"roomId":"room1","index":1.5}}`), core.ErrInvalidIndex)
}

func TestHandle_GameFlow(t *testing.T) {
	p := newTestProcessor(t)
	x, o := &fakePeer{}, &fakePeer{}

	out := handle(p, x, `{"event":"create_room","data":{"playerName":"alice","roomId":"room1"}}`)
	require.Equal(t, core.EventRoomCreated, out.Event)
	created := out.Data.(*core.RoomCreatedPayload)
	require.Equal(t, "room1", created.RoomID)
	require.Equal(t, core.SymbolX, created.Assigned)

	out = handle(p, o, `{"event":"join_room","data":{"playerName":"bob","roomId":"room1"}}`)
	require.Equal(t, core.EventRoomJoined, out.Event)
	require.Equal(t, core.SymbolO, out.Data.(*core.RoomJoinedPayload).Assigned)

	data := requireIllegalMove(t, handle(p, o, `{"event":"make_move","data":{"roomId":"room1","index":4}}`), core.ErrNotYourTurn)
	require.Equal(t, core.SymbolX, data["turn"])

	require.Nil(t, handle(p, x, `{"event":"make_move","data":{"roomId":"room1","index":4}}`))

	data = requireIllegalMove(t, handle(p, o, `{"event":"make_move","data":{"roomId":"room1","index":4}}`), core.ErrCellOccupied)
	require.Equal(t, 4, data["index"])

	out = handle(p, o, `{"event":"restart","data":{"roomId":"room1"}}`)
	require.Equal(t, core.EventRestarted, out.Event)
	require.Equal(t, "room1", out.Data.(*core.RestartedPayload).RoomID)

	reconnected := &fakePeer{}
	out = handle(p, reconnected, `{"event":"rejoin_room","data":{"playerName":"BOB","roomId":"room1"}}`)
	require.Equal(t, core.EventRejoined, out.Event)
	require.Equal(t, core.SymbolO, out.Data.(*core.RoomJoinedPayload).Assigned)
}

func TestHandle_Rejections(t *testing.T) {
	p := newTestProcessor(t)
	peer := &fakePeer{}

	requireWSError(t, handle(p, peer, `{"event":"join_room","data":{"roomId":"ghost1"}}`), core.ErrRoomNotFound)
	requireWSError(t, handle(p, peer, `{"event":"restart","data":{"roomId":"room1"}}`), core.ErrNotInRoom)
	requireIllegalMove(t, handle(p, peer, `{"event":"make_move","data":{"roomId":"room1","index":0}}`), core.ErrNotInRoom)

	payload := requireWSError(t, handle(p, peer, `{"event":"rejoin_room","data":{"roomId":"room1"}}`), core.ErrInvalidName)
	require.Nil(t, payload.Detail)
}

func TestParseCommand(t *testing.T) {
	cmd, err := ParseCommand([]byte(`{"event":"create_room"}`), &fakePeer{})
	require.Nil(t, err)
	require.Equal(t, CmdCreateRoom, cmd.Type)
	require.Equal(t, core.CreateRoomRequest{}, cmd.Args)
	require.Equal(t, "create_room", cmd.Type.String())
}
