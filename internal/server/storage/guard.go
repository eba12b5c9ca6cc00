package storage

import (
	"errors"
	"time"

	"tictactoe/internal/server/core"
	"tictactoe/internal/server/game"

	"github.com/samber/lo"
)

var (
	ErrNotFound  = errors.New("room not found")
	ErrNoMatch   = errors.New("conditional update matched no room")
	ErrDuplicate = errors.New("room id already exists")
)

// Guard lists the conditions a room must satisfy at write time for a
// conditional update to apply. Zero-valued fields impose no condition.
type Guard struct {
	Statuses      []core.Status
	Turn          core.Symbol
	EmptyCell     *int
	Player2Vacant bool
	BothPlayers   bool
	Version       *int64
}

// Matches evaluates the guard against a record
func (g Guard) Matches(r RoomRecord) bool {
	if len(g.Statuses) > 0 && !lo.Contains(g.Statuses, r.Status) {
		return false
	}
	if g.Turn != "" && r.Turn != g.Turn {
		return false
	}
	if g.EmptyCell != nil {
		i := *g.EmptyCell
		if i < 0 || i >= len(r.Board) || r.Board[i] != game.EmptyBoardString[0] {
			return false
		}
	}
	if g.Player2Vacant && r.Player2Name != "" {
		return false
	}
	if g.BothPlayers && (r.Player1Name == "" || r.Player2Name == "") {
		return false
	}
	if g.Version != nil && r.Version != *g.Version {
		return false
	}
	return true
}

// Mark places a symbol on a cell
type Mark struct {
	Cell   int
	Symbol core.Symbol
}

// Mutation is the write half of a conditional update. Zero-valued fields leave
// the column untouched; every applied mutation bumps version and updated_at.
type Mutation struct {
	Player2Name *string
	Mark        *Mark
	FlipTurn    bool
	ResetBoard  bool
	Turn        core.Symbol
	Status      core.Status
}

// Apply performs the mutation on a record in place
func (m Mutation) Apply(r *RoomRecord, now time.Time) {
	if m.Player2Name != nil {
		r.Player2Name = *m.Player2Name
	}
	if m.ResetBoard {
		r.Board = game.EmptyBoardString
	}
	if m.Mark != nil {
		b := []byte(r.Board)
		b[m.Mark.Cell] = string(m.Mark.Symbol)[0]
		r.Board = string(b)
	}
	if m.FlipTurn {
		r.Turn = r.Turn.Opponent()
	}
	if m.Turn != "" {
		r.Turn = m.Turn
	}
	if m.Status != "" {
		r.Status = m.Status
	}
	r.Version++
	r.UpdatedAt = nextUpdatedAt(r.UpdatedAt, now)
}

// nextUpdatedAt keeps updated_at strictly increasing even when the clock does not advance
func nextUpdatedAt(prev, now time.Time) time.Time {
	if !now.After(prev) {
		return prev.Add(time.Nanosecond)
	}
	return now
}
