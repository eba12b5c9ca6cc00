package display

import (
	"fmt"
	"io"
	"strings"

	"tictactoe/internal/server/core"
)

// RenderBoard draws the 3x3 board; empty cells show the index to play them
func RenderBoard(w io.Writer, board core.Board) {
	for row := 0; row < 3; row++ {
		cells := make([]string, 3)
		for col := 0; col < 3; col++ {
			i := row*3 + col
			cells[col] = renderCell(board[i], i)
		}
		fmt.Fprintf(w, " %s\n", strings.Join(cells, " | "))
		if row < 2 {
			fmt.Fprintln(w, "---+---+---")
		}
	}
}

func renderCell(c core.Cell, index int) string {
	switch core.Symbol(c) {
	case core.SymbolX:
		return Blue + "X" + Reset
	case core.SymbolO:
		return Red + "O" + Reset
	default:
		return fmt.Sprintf("%d", index)
	}
}

// ColorForSymbol returns a colored symbol
func ColorForSymbol(s core.Symbol) string {
	switch s {
	case core.SymbolX:
		return Blue + "X" + Reset
	case core.SymbolO:
		return Red + "O" + Reset
	default:
		return string(s)
	}
}

// StatusLine summarizes a room snapshot in one line
func StatusLine(room core.Room) string {
	switch room.Status {
	case core.StatusWaiting:
		return fmt.Sprintf("%sWaiting for a second player%s", Yellow, Reset)
	case core.StatusActive:
		return fmt.Sprintf("Turn: %s (v%d)", ColorForSymbol(room.Turn), room.Version)
	case core.StatusXWon:
		return fmt.Sprintf("%s%s wins%s", Green, room.Player1Name, Reset)
	case core.StatusOWon:
		return fmt.Sprintf("%s%s wins%s", Green, room.Player2Name, Reset)
	case core.StatusDraw:
		return fmt.Sprintf("%sDraw%s", Cyan, Reset)
	default:
		return string(room.Status)
	}
}
