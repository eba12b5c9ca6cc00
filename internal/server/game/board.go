package game

import (
	"fmt"
	"strings"

	"tictactoe/internal/server/core"
)

// emptyMark is the persisted form of an empty cell
const emptyMark = '-'

// EmptyBoardString is the persisted form of a fresh board
var EmptyBoardString = strings.Repeat(string(emptyMark), core.BoardSize)

// EncodeBoard renders a board as its 9-character persisted form
func EncodeBoard(b core.Board) string {
	var sb strings.Builder
	sb.Grow(core.BoardSize)
	for _, c := range b {
		if c == core.CellEmpty {
			sb.WriteByte(emptyMark)
		} else {
			sb.WriteString(string(c))
		}
	}
	return sb.String()
}

// DecodeBoard parses the persisted board form
func DecodeBoard(s string) (core.Board, error) {
	var b core.Board
	if len(s) != core.BoardSize {
		return b, fmt.Errorf("board must have %d cells, got %d", core.BoardSize, len(s))
	}
	for i := 0; i < core.BoardSize; i++ {
		switch s[i] {
		case emptyMark:
			b[i] = core.CellEmpty
		case 'X':
			b[i] = core.Cell(core.SymbolX)
		case 'O':
			b[i] = core.Cell(core.SymbolO)
		default:
			return b, fmt.Errorf("invalid cell %q at %d", s[i], i)
		}
	}
	return b, nil
}
