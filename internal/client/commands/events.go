package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"tictactoe/internal/client/display"
	"tictactoe/internal/client/session"
	"tictactoe/internal/server/core"
)

// HandleEvent applies one server frame to the session and prints it
func HandleEvent(s *session.Session, env core.Envelope) {
	out := s.Out

	if s.Verbose {
		fmt.Fprintf(out, "%s[WS] %s %s%s\n", display.Blue, env.Event, string(env.Data), display.Reset)
	}

	switch env.Event {
	case core.EventPong:
		fmt.Fprintf(out, "%spong%s\n", display.Green, display.Reset)

	case core.EventRoomCreated:
		var p core.RoomCreatedPayload
		if !decode(s, env, &p) {
			return
		}
		s.Bind(p.RoomID, p.Assigned, p.State.Player1Name)
		s.SetRoom(p.State)
		fmt.Fprintf(out, "Created room %s%s%s, you are %s\n", display.Cyan, p.RoomID, display.Reset, display.ColorForSymbol(p.Assigned))

	case core.EventRoomJoined, core.EventRejoined:
		var p core.RoomJoinedPayload
		if !decode(s, env, &p) {
			return
		}
		s.Bind(p.RoomID, p.Assigned, "")
		verb := "Joined"
		if env.Event == core.EventRejoined {
			verb = "Rejoined"
		}
		fmt.Fprintf(out, "%s room %s%s%s, you are %s\n", verb, display.Cyan, p.RoomID, display.Reset, display.ColorForSymbol(p.Assigned))

	case core.EventRoomState:
		var room core.Room
		if !decode(s, env, &room) {
			return
		}
		// The server only streams the room this connection is bound to, and the
		// first snapshot can arrive ahead of the join reply
		if s.SetRoom(room) {
			printRoom(s, room)
		}

	case core.EventGameOver:
		var p core.GameOverPayload
		if !decode(s, env, &p) {
			return
		}
		fmt.Fprintf(out, "%sGame over: %s%s ('restart' to play again)\n", display.Magenta, p.Status, display.Reset)

	case core.EventRestarted:
		fmt.Fprintf(out, "%sBoard cleared%s\n", display.Green, display.Reset)

	case core.EventIllegalMove:
		var fields map[string]any
		if !decode(s, env, &fields) {
			return
		}
		fmt.Fprintf(out, "%sIllegal move: %v%s%s\n", display.Red, fields["code"], formatDetails(fields), display.Reset)

	case core.EventWSError:
		var p core.WSErrorPayload
		if !decode(s, env, &p) {
			return
		}
		fmt.Fprintf(out, "%sError %s: %s%s\n", display.Red, p.Code, p.Message, display.Reset)

	default:
		fmt.Fprintf(out, "%s%s%s %s\n", display.Yellow, env.Event, display.Reset, string(env.Data))
	}
}

func decode(s *session.Session, env core.Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		fmt.Fprintf(s.Out, "%sBad %s frame: %s%s\n", display.Red, env.Event, err.Error(), display.Reset)
		return false
	}
	return true
}

// formatDetails renders every field besides code and message as " (k=v, ...)"
func formatDetails(fields map[string]any) string {
	var parts []string
	for k, v := range fields {
		if k == "code" || k == "message" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return " (" + strings.Join(parts, ", ") + ")"
}
