package storage

import (
	"fmt"
	"time"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/game"
)

// RoomRecord represents a row in the rooms table
type RoomRecord struct {
	RoomID      string      `db:"room_id"`
	Player1Name string      `db:"player1_name"`
	Player2Name string      `db:"player2_name"`
	Board       string      `db:"board"` // 9 chars, '-' for empty
	Turn        core.Symbol `db:"turn"`
	Status      core.Status `db:"status"`
	Version     int64       `db:"version"`
	CreatedAt   time.Time   `db:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"`
}

// MoveRecord represents a row in the moves table
type MoveRecord struct {
	MoveID     int64       `db:"move_id"`
	RoomID     string      `db:"room_id"`
	Version    int64       `db:"version"`
	Cell       int         `db:"cell"`
	Symbol     core.Symbol `db:"symbol"`
	BoardAfter string      `db:"board_after"`
	MoveTime   time.Time   `db:"move_time_utc"`
}

// NewRoomRecord builds the initial waiting record for a freshly created room
func NewRoomRecord(roomID, player1Name string, now time.Time) RoomRecord {
	return RoomRecord{
		RoomID:      roomID,
		Player1Name: player1Name,
		Board:       game.EmptyBoardString,
		Turn:        core.SymbolX,
		Status:      core.StatusWaiting,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Room converts the record to the externally visible snapshot
func (r RoomRecord) Room() (core.Room, error) {
	board, err := game.DecodeBoard(r.Board)
	if err != nil {
		return core.Room{}, fmt.Errorf("room %s: %w", r.RoomID, err)
	}
	return core.Room{
		RoomID:      r.RoomID,
		Player1Name: r.Player1Name,
		Player2Name: r.Player2Name,
		Board:       board,
		Turn:        r.Turn,
		Status:      r.Status,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

// Schema defines the SQLite database structure.
// Timestamps are stored as UTC unix nanoseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS rooms (
	room_id TEXT PRIMARY KEY,
	player1_name TEXT NOT NULL DEFAULT '',
	player2_name TEXT NOT NULL DEFAULT '',
	board TEXT NOT NULL DEFAULT '---------' CHECK(length(board) = 9),
	turn TEXT NOT NULL DEFAULT 'X' CHECK(turn IN ('X', 'O')),
	status TEXT NOT NULL DEFAULT 'waiting' CHECK(status IN ('waiting', 'active', 'x_won', 'o_won', 'draw')),
	version INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_rooms_updated_at ON rooms(updated_at);
CREATE INDEX IF NOT EXISTS idx_rooms_status ON rooms(status);

CREATE TABLE IF NOT EXISTS moves (
	move_id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id TEXT NOT NULL,
	version INTEGER NOT NULL,
	cell INTEGER NOT NULL CHECK(cell BETWEEN 0 AND 8),
	symbol TEXT NOT NULL CHECK(symbol IN ('X', 'O')),
	board_after TEXT NOT NULL,
	move_time_utc INTEGER NOT NULL,
	FOREIGN KEY (room_id) REFERENCES rooms(room_id) ON DELETE CASCADE,
	UNIQUE(room_id, version)
);

CREATE INDEX IF NOT EXISTS idx_moves_room_id ON moves(room_id);
`
