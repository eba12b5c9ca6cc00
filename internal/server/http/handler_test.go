package http

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/core"
	"tictactoe/internal/server/service"
	"tictactoe/internal/server/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

type testPeer struct {
	mu      sync.Mutex
	session core.Session
}

func (p *testPeer) Session() core.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

func (p *testPeer) Bind(s core.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session = s
}

func newTestApp(t *testing.T) (*fiber.App, *service.Coordinator) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := storage.NewStore("", log)
	require.NoError(t, err)
	require.NoError(t, store.InitDB())
	t.Cleanup(func() { store.Close() })

	hub := broadcast.NewHub(log)
	t.Cleanup(func() { hub.Shutdown(time.Second) })

	svc := service.New(store, hub, log)
	return NewFiberApp(svc, hub, Config{RateLimit: 1000}), svc
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestHealth(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "healthy", body["status"])
	require.Equal(t, "ok", body["storage"])
}

func TestCreateRoom(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/rooms", `{"room_id":"rest-room","player1_name":"  Ana  "}`)
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "rest-room", body["room_id"])
	require.Equal(t, "Ana", body["player1_name"])
	require.Equal(t, string(core.StatusWaiting), body["status"])
	require.EqualValues(t, 1, body["version"])

	status, body = doJSON(t, app, http.MethodPost, "/api/v1/rooms", `{"room_id":"rest-room"}`)
	require.Equal(t, http.StatusConflict, status)
	require.Equal(t, core.ErrRoomIDTaken, body["code"])
}

func TestCreateRoomEmptyBody(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := doJSON(t, app, http.MethodPost, "/api/v1/rooms", "")
	require.Equal(t, http.StatusCreated, status)
	require.Equal(t, "Player 1", body["player1_name"])
	require.NotEmpty(t, body["room_id"])
}

func TestCreateRoomRejections(t *testing.T) {
	app, _ := newTestApp(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"board field", `{"board":["X","","","","","","","",""]}`, core.ErrForbiddenField},
		{"status field", `{"status":"active"}`, core.ErrForbiddenField},
		{"second player", `{"player2_name":"Bo"}`, core.ErrForbiddenField},
		{"bad room id", `{"room_id":"a b"}`, core.ErrInvalidRoomID},
		{"blank name", `{"player1_name":"   "}`, core.ErrInvalidName},
		{"not json", `{room`, core.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := doJSON(t, app, http.MethodPost, "/api/v1/rooms", tt.body)
			require.Equal(t, http.StatusBadRequest, status)
			require.Equal(t, tt.code, body["code"])
		})
	}
}

func TestCreateRoomWrongContentType(t *testing.T) {
	app, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/rooms", strings.NewReader("room_id=abcd"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestGetRoom(t *testing.T) {
	app, _ := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/rooms", `{"room_id":"get-room"}`)
	require.Equal(t, http.StatusCreated, status)

	status, body := doJSON(t, app, http.MethodGet, "/api/v1/rooms/get-room", "")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "get-room", body["room_id"])
	require.Len(t, body["board"], 9)

	status, body = doJSON(t, app, http.MethodGet, "/api/v1/rooms/nope-room", "")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, core.ErrRoomNotFound, body["code"])
}

func TestGetRoomLongPoll(t *testing.T) {
	app, svc := newTestApp(t)

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/rooms", `{"room_id":"poll-room"}`)
	require.Equal(t, http.StatusCreated, status)

	// A stale version returns at once
	status, body := doJSON(t, app, http.MethodGet, "/api/v1/rooms/poll-room?wait=true&version=0", "")
	require.Equal(t, http.StatusOK, status)
	require.EqualValues(t, 1, body["version"])

	type result struct {
		status int
		body   map[string]any
	}
	done := make(chan result, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/rooms/poll-room?wait=true&version=1", nil)
		resp, err := app.Test(req, -1)
		if err != nil {
			done <- result{}
			return
		}
		defer resp.Body.Close()
		var out map[string]any
		json.NewDecoder(resp.Body).Decode(&out)
		done <- result{resp.StatusCode, out}
	}()

	select {
	case <-done:
		t.Fatal("long-poll returned before the room changed")
	case <-time.After(100 * time.Millisecond):
	}

	_, err := svc.JoinRoom(t.Context(), &testPeer{}, core.JoinRoomRequest{RoomID: "poll-room", PlayerName: "Bo"})
	require.NoError(t, err)

	select {
	case res := <-done:
		require.Equal(t, http.StatusOK, res.status)
		require.EqualValues(t, 2, res.body["version"])
		require.Equal(t, string(core.StatusActive), res.body["status"])
		require.Equal(t, "Bo", res.body["player2_name"])
	case <-time.After(5 * time.Second):
		t.Fatal("long-poll was not woken by the join")
	}
}
