package commands

import (
	"bytes"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tictactoe/internal/client/display"
	"tictactoe/internal/client/session"
	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/core"
	"tictactoe/internal/server/processor"
	"tictactoe/internal/server/service"
	"tictactoe/internal/server/storage"
	"tictactoe/internal/server/ws"

	"github.com/stretchr/testify/require"
)

// syncBuffer is written by the event goroutine and read by the test
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newWSURL(t *testing.T) string {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewStore(":memory:", log)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())

	hub := broadcast.NewHub(log)
	svc := service.New(store, hub, log)
	h := ws.NewHandler(processor.New(svc, log), hub, log, ws.Options{})

	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		h.Shutdown()
		srv.Close()
		hub.Shutdown(time.Second)
		store.Close()
	})
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newClient(t *testing.T, wsURL string) (*Registry, *session.Session, *syncBuffer) {
	t.Helper()
	out := &syncBuffer{}
	s := session.New("http://127.0.0.1:0", wsURL, out)
	r := NewRegistry(s)
	t.Cleanup(func() {
		if c := s.Conn(); c != nil {
			c.Close()
		}
	})
	return r, s, out
}

func waitRoom(t *testing.T, s *session.Session, cond func(core.Room) bool) core.Room {
	t.Helper()
	var room core.Room
	require.Eventually(t, func() bool {
		r, ok := s.Room()
		room = r
		return ok && cond(r)
	}, 2*time.Second, 10*time.Millisecond)
	return room
}

func waitBound(t *testing.T, s *session.Session, roomID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		id, _, _ := s.Binding()
		return id == roomID
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGameOverTheWire(t *testing.T) {
	display.Disable()
	wsURL := newWSURL(t)

	x, xs, xout := newClient(t, wsURL)
	o, osess, oout := newClient(t, wsURL)

	x.Execute("connect")
	o.Execute("connect")

	x.Execute("create Ana cli-room")
	waitBound(t, xs, "cli-room")
	_, symbol, name := xs.Binding()
	require.Equal(t, core.SymbolX, symbol)
	require.Equal(t, "Ana", name)

	o.Execute("join cli-room Bo")
	waitBound(t, osess, "cli-room")
	_, symbol, _ = osess.Binding()
	require.Equal(t, core.SymbolO, symbol)
	waitRoom(t, osess, func(r core.Room) bool { return r.Status == core.StatusActive })
	waitRoom(t, xs, func(r core.Room) bool { return r.Status == core.StatusActive })

	// O moving out of turn is rejected with the current turn in the details
	o.Execute("move 4")
	require.Eventually(t, func() bool {
		return strings.Contains(oout.String(), "Illegal move: NOT_YOUR_TURN (turn=X)")
	}, 2*time.Second, 10*time.Millisecond)

	for i, line := range []struct {
		r    *Registry
		cell string
	}{{x, "0"}, {o, "3"}, {x, "1"}, {o, "4"}, {x, "2"}} {
		line.r.Execute("move " + line.cell)
		want := int64(i + 3)
		waitRoom(t, xs, func(r core.Room) bool { return r.Version >= want })
	}

	room := waitRoom(t, osess, func(r core.Room) bool { return r.Status == core.StatusXWon })
	require.Equal(t, core.Board{"X", "X", "X", "O", "O", "", "", "", ""}, room.Board)
	require.Eventually(t, func() bool {
		return strings.Contains(xout.String(), "Game over: x_won") &&
			strings.Contains(oout.String(), "Game over: x_won")
	}, 2*time.Second, 10*time.Millisecond)

	o.Execute("restart")
	waitRoom(t, xs, func(r core.Room) bool { return r.Status == core.StatusActive && r.Board == core.Board{} })
}

func TestCommandErrors(t *testing.T) {
	display.Disable()
	r, s, out := newClient(t, "ws://127.0.0.1:0")

	r.Execute("move 1")
	require.Contains(t, out.String(), "not in a room")

	r.Execute("create")
	require.Contains(t, out.String(), errNotConnected.Error())

	r.Execute("bogus")
	require.Contains(t, out.String(), "Unknown command: bogus")

	r.Execute("help join")
	require.Contains(t, out.String(), "Usage: join <roomId> [name]")

	_, ok := s.Room()
	require.False(t, ok)
}

func TestFormatDetails(t *testing.T) {
	require.Equal(t, "", formatDetails(map[string]any{"code": "X", "message": "m"}))
	require.Equal(t, " (index=4, turn=O)", formatDetails(map[string]any{"code": "X", "turn": "O", "index": 4}))
}
