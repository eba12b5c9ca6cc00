package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"tictactoe/internal/server/core"

	"github.com/stretchr/testify/require"
)

func TestClientRoomCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/rooms":
			var req core.OpenRoomRequest
			json.NewDecoder(r.Body).Decode(&req)
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(core.Room{RoomID: req.RoomID, Player1Name: req.Player1Name, Version: 1})
		case r.URL.Path == "/api/v1/rooms/poll-room" && r.URL.Query().Get("wait") == "true" && r.URL.Query().Get("version") == "4":
			json.NewEncoder(w).Encode(core.Room{RoomID: "poll-room", Version: 5})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(core.ErrorResponse{Error: "room not found", Code: core.ErrRoomNotFound})
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", io.Discard)

	room, err := c.CreateRoom(core.OpenRoomRequest{RoomID: "new-room", Player1Name: "Ana"})
	require.NoError(t, err)
	require.Equal(t, "new-room", room.RoomID)
	require.Equal(t, "Ana", room.Player1Name)

	room, err = c.WaitRoom("poll-room", 4)
	require.NoError(t, err)
	require.EqualValues(t, 5, room.Version)

	_, err = c.GetRoom("missing")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusNotFound, apiErr.Status)
	require.Equal(t, core.ErrRoomNotFound, apiErr.Body.Code)
}
