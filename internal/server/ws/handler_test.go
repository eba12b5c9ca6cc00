package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/core"
	"tictactoe/internal/server/processor"
	"tictactoe/internal/server/service"
	"tictactoe/internal/server/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, opts Options) (*httptest.Server, *Handler) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewStore(":memory:", log)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())

	hub := broadcast.NewHub(log)
	svc := service.New(store, hub, log)
	h := NewHandler(processor.New(svc, log), hub, log, opts)

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
		hub.Shutdown(time.Second)
		store.Close()
	})
	return srv, h
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]any{"event": event, "data": data}))
}

func read(t *testing.T, conn *websocket.Conn) inbound {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg inbound
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readEvents reads n messages and indexes them by event name
func readEvents(t *testing.T, conn *websocket.Conn, n int) map[string][]inbound {
	t.Helper()
	out := make(map[string][]inbound)
	for i := 0; i < n; i++ {
		msg := read(t, conn)
		out[msg.Event] = append(out[msg.Event], msg)
	}
	return out
}

func decodeRoom(t *testing.T, msg inbound) core.Room {
	t.Helper()
	var room core.Room
	require.NoError(t, json.Unmarshal(msg.Data, &room))
	return room
}

func TestWebSocket_PingPong(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	conn := dial(t, srv)

	send(t, conn, core.EventPing, struct{}{})
	require.Equal(t, core.EventPong, read(t, conn).Event)
}

func TestWebSocket_CreateJoinMove(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, core.EventCreateRoom, map[string]any{"playerName": "alice", "roomId": "wsroom1"})
	events := readEvents(t, a, 2)
	require.Len(t, events[core.EventRoomCreated], 1)
	require.Len(t, events[core.EventRoomState], 1)
	require.Equal(t, core.StatusWaiting, decodeRoom(t, events[core.EventRoomState][0]).Status)

	send(t, b, core.EventJoinRoom, map[string]any{"playerName": "bob", "roomId": "wsroom1"})
	joined := readEvents(t, b, 2)
	require.Len(t, joined[core.EventRoomJoined], 1)
	require.Equal(t, core.StatusActive, decodeRoom(t, joined[core.EventRoomState][0]).Status)

	state := read(t, a)
	require.Equal(t, core.EventRoomState, state.Event)
	require.Equal(t, "bob", decodeRoom(t, state).Player2Name)

	send(t, a, core.EventMakeMove, map[string]any{"roomId": "wsroom1", "index": 4})
	for _, conn := range []*websocket.Conn{a, b} {
		msg := read(t, conn)
		require.Equal(t, core.EventRoomState, msg.Event)
		room := decodeRoom(t, msg)
		require.Equal(t, core.Cell("X"), room.Board[4])
		require.Equal(t, core.SymbolO, room.Turn)
	}

	// Out of turn: rejection to the sender, plus the re-fetched state which
	// both connections have already seen and is therefore not delivered again
	send(t, a, core.EventMakeMove, map[string]any{"roomId": "wsroom1", "index": 0})
	msg := read(t, a)
	require.Equal(t, core.EventIllegalMove, msg.Event)
	var illegal map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &illegal))
	require.Equal(t, core.ErrNotYourTurn, illegal["code"])
	require.Equal(t, "O", illegal["turn"])
}

func TestWebSocket_GameOver(t *testing.T) {
	srv, _ := newTestServer(t, Options{})
	a := dial(t, srv)
	b := dial(t, srv)

	send(t, a, core.EventCreateRoom, map[string]any{"roomId": "wsroom2"})
	readEvents(t, a, 2)
	send(t, b, core.EventJoinRoom, map[string]any{"roomId": "wsroom2"})
	readEvents(t, b, 2)
	read(t, a)

	moves := []struct {
		conn  *websocket.Conn
		index int
	}{{a, 0}, {b, 3}, {a, 1}, {b, 4}}
	for _, m := range moves {
		send(t, m.conn, core.EventMakeMove, map[string]any{"roomId": "wsroom2", "index": m.index})
		read(t, a)
		read(t, b)
	}

	send(t, a, core.EventMakeMove, map[string]any{"roomId": "wsroom2", "index": 2})
	for _, conn := range []*websocket.Conn{a, b} {
		events := readEvents(t, conn, 2)
		require.Len(t, events[core.EventGameOver], 1, "both players see game_over")
		var over core.GameOverPayload
		require.NoError(t, json.Unmarshal(events[core.EventGameOver][0].Data, &over))
		require.Equal(t, core.StatusXWon, over.Status)
		require.Equal(t, core.StatusXWon, decodeRoom(t, events[core.EventRoomState][0]).Status)
	}
}

func TestWebSocket_RateLimit(t *testing.T) {
	srv, _ := newTestServer(t, Options{RateBurst: 3, RatePerSecond: 0.001})
	conn := dial(t, srv)

	for i := 0; i < 4; i++ {
		send(t, conn, core.EventPing, nil)
	}
	events := readEvents(t, conn, 4)
	require.Len(t, events[core.EventPong], 3)
	require.Len(t, events[core.EventWSError], 1)

	var payload core.WSErrorPayload
	require.NoError(t, json.Unmarshal(events[core.EventWSError][0].Data, &payload))
	require.Equal(t, core.ErrRateLimit, payload.Code)

	// Connection stays open
	send(t, conn, core.EventPing, nil)
	require.Equal(t, core.EventWSError, read(t, conn).Event)
}

func TestWebSocket_DisconnectUnsubscribes(t *testing.T) {
	srv, h := newTestServer(t, Options{})
	conn := dial(t, srv)

	send(t, conn, core.EventCreateRoom, map[string]any{"roomId": "wsroom3"})
	readEvents(t, conn, 2)
	require.Equal(t, 1, h.hub.Subscribers("wsroom3"))

	conn.Close()
	require.Eventually(t, func() bool {
		return h.hub.Subscribers("wsroom3") == 0 && h.Connections() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
