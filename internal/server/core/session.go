package core

// Session binds a connection to a room slot. It is built once per successful
// create, join or rejoin and never modified; rebinding replaces the whole value.
type Session struct {
	roomID      string
	symbol      Symbol
	displayName string
}

func NewSession(roomID string, symbol Symbol, displayName string) Session {
	return Session{roomID: roomID, symbol: symbol, displayName: displayName}
}

func (s Session) RoomID() string      { return s.roomID }
func (s Session) Symbol() Symbol      { return s.symbol }
func (s Session) DisplayName() string { return s.displayName }

// BoundTo reports whether the session holds a valid slot in roomID
func (s Session) BoundTo(roomID string) bool {
	return s.roomID != "" && s.roomID == roomID && s.symbol.Valid()
}
