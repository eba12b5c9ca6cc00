// Package session holds the terminal client's connection and room state.
package session

import (
	"io"
	"sync"

	"tictactoe/internal/client/api"
	"tictactoe/internal/server/core"
)

// Session is shared by the command handlers and the event reader goroutine
type Session struct {
	APIBaseURL string
	WSURL      string
	Client     *api.Client
	Verbose    bool
	Out        io.Writer

	mu     sync.Mutex
	conn   *api.Conn
	roomID string
	symbol core.Symbol
	name   string
	room   *core.Room
}

func New(apiBaseURL, wsURL string, out io.Writer) *Session {
	return &Session{
		APIBaseURL: apiBaseURL,
		WSURL:      wsURL,
		Client:     api.New(apiBaseURL, out),
		Out:        out,
	}
}

func (s *Session) Conn() *api.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// SetConn replaces the connection; the room binding belongs to the old one and is cleared
func (s *Session) SetConn(c *api.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn = c
	s.roomID, s.symbol, s.name = "", "", ""
	s.room = nil
}

// Bind records the room and seat the server assigned to this connection
func (s *Session) Bind(roomID string, symbol core.Symbol, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil && s.room.RoomID != roomID {
		s.room = nil
	}
	s.roomID, s.symbol = roomID, symbol
	if name != "" {
		s.name = name
	}
}

func (s *Session) Binding() (roomID string, symbol core.Symbol, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roomID, s.symbol, s.name
}

// SetRoom stores a snapshot unless it is older than the one held
func (s *Session) SetRoom(room core.Room) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room != nil && s.room.RoomID == room.RoomID && room.Version < s.room.Version {
		return false
	}
	s.room = &room
	return true
}

func (s *Session) Room() (core.Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.room == nil {
		return core.Room{}, false
	}
	return *s.room, true
}
