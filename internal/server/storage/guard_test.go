package storage

import (
	"testing"
	"time"

	"tictactoe/internal/server/core"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func TestGuardMatches(t *testing.T) {
	r := RoomRecord{
		Player1Name: "alice",
		Player2Name: "bob",
		Board:       "X---O----",
		Turn:        core.SymbolX,
		Status:      core.StatusActive,
		Version:     5,
	}

	tests := []struct {
		name  string
		guard Guard
		want  bool
	}{
		{"empty guard", Guard{}, true},
		{"status ok", Guard{Statuses: []core.Status{core.StatusActive}}, true},
		{"status mismatch", Guard{Statuses: []core.Status{core.StatusWaiting}}, false},
		{"turn mismatch", Guard{Turn: core.SymbolO}, false},
		{"empty cell", Guard{EmptyCell: lo.ToPtr(1)}, true},
		{"occupied cell", Guard{EmptyCell: lo.ToPtr(4)}, false},
		{"cell out of range", Guard{EmptyCell: lo.ToPtr(9)}, false},
		{"player2 taken", Guard{Player2Vacant: true}, false},
		{"both players", Guard{BothPlayers: true}, true},
		{"version ok", Guard{Version: lo.ToPtr(int64(5))}, true},
		{"version stale", Guard{Version: lo.ToPtr(int64(4))}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.guard.Matches(r))
		})
	}
}

func TestMutationApply(t *testing.T) {
	r := NewRoomRecord("room1", "alice", t0)
	r.Player2Name = "bob"
	r.Status = core.StatusActive

	Mutation{Mark: &Mark{Cell: 8, Symbol: core.SymbolX}, FlipTurn: true}.Apply(&r, t0)
	require.Equal(t, "--------X", r.Board)
	require.Equal(t, core.SymbolO, r.Turn)
	require.EqualValues(t, 2, r.Version)
	require.Equal(t, t0.Add(time.Nanosecond), r.UpdatedAt)

	Mutation{ResetBoard: true, Turn: core.SymbolX, Status: core.StatusActive}.Apply(&r, t0.Add(time.Minute))
	require.Equal(t, "---------", r.Board)
	require.Equal(t, core.SymbolX, r.Turn)
	require.Equal(t, t0.Add(time.Minute), r.UpdatedAt)
}
