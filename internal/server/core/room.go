package core

import "time"

// Cell is one board square: "", "X" or "O"
type Cell string

const CellEmpty Cell = ""

// BoardSize is the fixed number of cells on the board
const BoardSize = 9

// Board is the 3x3 board in row-major order
type Board [BoardSize]Cell

// Room is the externally visible snapshot of a room.
// Version increases by one on every successful mutation and is the freshness cursor
// used for delivery ordering; UpdatedAt advances with it.
type Room struct {
	RoomID      string    `json:"room_id"`
	Player1Name string    `json:"player1_name"`
	Player2Name string    `json:"player2_name"`
	Board       Board     `json:"board"`
	Turn        Symbol    `json:"turn"`
	Status      Status    `json:"status"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasBothPlayers reports whether both player slots have been claimed
func (r Room) HasBothPlayers() bool {
	return r.Player1Name != "" && r.Player2Name != ""
}
