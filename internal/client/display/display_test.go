package display

import (
	"bytes"
	"testing"

	"tictactoe/internal/server/core"

	"github.com/stretchr/testify/require"
)

func TestRenderBoardPlain(t *testing.T) {
	Disable()

	var board core.Board
	board[0] = core.Cell(core.SymbolX)
	board[4] = core.Cell(core.SymbolO)

	var buf bytes.Buffer
	RenderBoard(&buf, board)

	require.Equal(t, " X | 1 | 2\n---+---+---\n 3 | O | 5\n---+---+---\n 6 | 7 | 8\n", buf.String())
}

func TestStatusLine(t *testing.T) {
	Disable()

	room := core.Room{Player1Name: "Ana", Player2Name: "Bo", Turn: core.SymbolO, Version: 3}

	room.Status = core.StatusActive
	require.Equal(t, "Turn: O (v3)", StatusLine(room))

	room.Status = core.StatusOWon
	require.Equal(t, "Bo wins", StatusLine(room))

	room.Status = core.StatusDraw
	require.Equal(t, "Draw", StatusLine(room))
}
