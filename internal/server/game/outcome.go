package game

import "tictactoe/internal/server/core"

// Outcome is the result of evaluating a board
type Outcome int

const (
	InProgress Outcome = iota
	XWins
	OWins
	Draw
)

func (o Outcome) String() string {
	switch o {
	case XWins:
		return "x wins"
	case OWins:
		return "o wins"
	case Draw:
		return "draw"
	default:
		return "in progress"
	}
}

// Terminal reports whether the outcome ends the game
func (o Outcome) Terminal() bool {
	return o != InProgress
}

// Status maps a terminal outcome to the room status it produces
func (o Outcome) Status() core.Status {
	switch o {
	case XWins:
		return core.StatusXWon
	case OWins:
		return core.StatusOWon
	case Draw:
		return core.StatusDraw
	default:
		return core.StatusActive
	}
}

// winLines lists every winning triple
var winLines = [8][3]int{
	{0, 1, 2}, // top row
	{3, 4, 5}, // middle row
	{6, 7, 8}, // bottom row
	{0, 3, 6}, // left column
	{1, 4, 7}, // middle column
	{2, 5, 8}, // right column
	{0, 4, 8}, // diagonal
	{2, 4, 6}, // anti-diagonal
}

// Evaluate returns the outcome of a board. A board that does not have exactly
// nine cells evaluates to InProgress instead of failing.
func Evaluate(cells []core.Cell) Outcome {
	if len(cells) != core.BoardSize {
		return InProgress
	}

	for _, line := range winLines {
		v := cells[line[0]]
		if v != core.CellEmpty && v == cells[line[1]] && v == cells[line[2]] {
			switch core.Symbol(v) {
			case core.SymbolX:
				return XWins
			case core.SymbolO:
				return OWins
			}
		}
	}

	for _, c := range cells {
		if c == core.CellEmpty {
			return InProgress
		}
	}
	return Draw
}
