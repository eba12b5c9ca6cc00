package core

// Symbol is a board marker and, inside a room, the identity of a player
type Symbol string

const (
	SymbolX Symbol = "X"
	SymbolO Symbol = "O"
)

func (s Symbol) Valid() bool {
	return s == SymbolX || s == SymbolO
}

// Opponent returns the other symbol
func (s Symbol) Opponent() Symbol {
	if s == SymbolX {
		return SymbolO
	}
	return SymbolX
}

// Status is the room lifecycle state
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusXWon    Status = "x_won"
	StatusOWon    Status = "o_won"
	StatusDraw    Status = "draw"
)

// IsTerminal reports whether no further move is possible without a restart
func (s Status) IsTerminal() bool {
	switch s {
	case StatusXWon, StatusOWon, StatusDraw:
		return true
	default:
		return false
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusWaiting, StatusActive, StatusXWon, StatusOWon, StatusDraw:
		return true
	default:
		return false
	}
}
