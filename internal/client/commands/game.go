package commands

import (
	"errors"
	"fmt"
	"strconv"

	"tictactoe/internal/client/api"
	"tictactoe/internal/client/display"
	"tictactoe/internal/client/session"
	"tictactoe/internal/server/core"
)

var errNotConnected = errors.New("not connected, use 'connect' first")

func (r *Registry) registerGameCommands() {
	r.Register(&Command{
		Name:        "connect",
		ShortName:   "c",
		Description: "Open the play connection",
		Usage:       "connect [wsUrl]",
		Handler:     connectHandler,
	})

	r.Register(&Command{
		Name:        "create",
		ShortName:   "n",
		Description: "Create a room and take X",
		Usage:       "create [name] [roomId]",
		Handler:     createHandler,
	})

	r.Register(&Command{
		Name:        "join",
		ShortName:   "j",
		Description: "Join a waiting room as O",
		Usage:       "join <roomId> [name]",
		Handler:     joinHandler,
	})

	r.Register(&Command{
		Name:        "rejoin",
		ShortName:   "r",
		Description: "Reclaim a seat by player name",
		Usage:       "rejoin <roomId> <name>",
		Handler:     rejoinHandler,
	})

	r.Register(&Command{
		Name:        "move",
		ShortName:   "m",
		Description: "Mark a cell (0-8, row-major)",
		Usage:       "move <index>",
		Handler:     moveHandler,
	})

	r.Register(&Command{
		Name:        "restart",
		ShortName:   "R",
		Description: "Clear the board for a new game",
		Usage:       "restart",
		Handler:     restartHandler,
	})

	r.Register(&Command{
		Name:        "show",
		ShortName:   "h",
		Description: "Show the last received board",
		Usage:       "show",
		Handler:     showHandler,
	})

	r.Register(&Command{
		Name:        "open",
		ShortName:   "o",
		Description: "Create a room over REST without taking a seat",
		Usage:       "open [name] [roomId]",
		Handler:     openHandler,
	})

	r.Register(&Command{
		Name:        "state",
		ShortName:   "s",
		Description: "Fetch a room over REST",
		Usage:       "state [roomId]",
		Handler:     stateHandler,
	})

	r.Register(&Command{
		Name:        "watch",
		ShortName:   "w",
		Description: "Long-poll a room until it changes",
		Usage:       "watch [roomId]",
		Handler:     watchHandler,
	})
}

func connectHandler(s *session.Session, args []string) error {
	url := s.WSURL
	if len(args) > 0 {
		url = args[0]
	}

	if old := s.Conn(); old != nil {
		old.Close()
	}

	conn, err := api.Dial(url)
	if err != nil {
		return err
	}
	s.WSURL = url
	s.SetConn(conn)
	go readEvents(s, conn)

	fmt.Fprintf(s.Out, "%sConnected to %s%s\n", display.Green, url, display.Reset)
	return nil
}

// readEvents applies inbound frames until the connection drops
func readEvents(s *session.Session, conn *api.Conn) {
	for env := range conn.Events() {
		HandleEvent(s, env)
	}
	if s.Conn() == conn {
		fmt.Fprintf(s.Out, "%sConnection closed%s\n", display.Yellow, display.Reset)
	}
}

func send(s *session.Session, event string, data any) error {
	conn := s.Conn()
	if conn == nil {
		return errNotConnected
	}
	return conn.Send(event, data)
}

func boundRoom(s *session.Session) (string, error) {
	roomID, _, _ := s.Binding()
	if roomID == "" {
		return "", errors.New("not in a room, use 'create', 'join' or 'rejoin'")
	}
	return roomID, nil
}

func createHandler(s *session.Session, args []string) error {
	req := core.CreateRoomRequest{}
	if len(args) > 0 {
		req.PlayerName = args[0]
	}
	if len(args) > 1 {
		req.RoomID = args[1]
	}
	return send(s, core.EventCreateRoom, req)
}

func joinHandler(s *session.Session, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: join <roomId> [name]")
	}
	req := core.JoinRoomRequest{RoomID: args[0]}
	if len(args) > 1 {
		req.PlayerName = args[1]
	}
	return send(s, core.EventJoinRoom, req)
}

func rejoinHandler(s *session.Session, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: rejoin <roomId> <name>")
	}
	return send(s, core.EventRejoinRoom, core.RejoinRoomRequest{RoomID: args[0], PlayerName: args[1]})
}

func moveHandler(s *session.Session, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: move <index>")
	}
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid index: %s", args[0])
	}
	roomID, err := boundRoom(s)
	if err != nil {
		return err
	}
	return send(s, core.EventMakeMove, core.MoveRequest{RoomID: roomID, Index: &index})
}

func restartHandler(s *session.Session, args []string) error {
	roomID, err := boundRoom(s)
	if err != nil {
		return err
	}
	return send(s, core.EventRestart, core.RestartRequest{RoomID: roomID})
}

func showHandler(s *session.Session, args []string) error {
	room, ok := s.Room()
	if !ok {
		return errors.New("no board received yet")
	}
	printRoom(s, room)
	return nil
}

func openHandler(s *session.Session, args []string) error {
	req := core.OpenRoomRequest{}
	if len(args) > 0 {
		req.Player1Name = args[0]
	}
	if len(args) > 1 {
		req.RoomID = args[1]
	}

	room, err := s.Client.CreateRoom(req)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.Out, "Room opened: %s%s%s (join with 'join %s')\n", display.Cyan, room.RoomID, display.Reset, room.RoomID)
	return nil
}

// roomArg picks the explicit room id or falls back to the bound one
func roomArg(s *session.Session, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	return boundRoom(s)
}

func stateHandler(s *session.Session, args []string) error {
	roomID, err := roomArg(s, args)
	if err != nil {
		return err
	}
	room, err := s.Client.GetRoom(roomID)
	if err != nil {
		return err
	}
	printRoom(s, *room)
	return nil
}

func watchHandler(s *session.Session, args []string) error {
	roomID, err := roomArg(s, args)
	if err != nil {
		return err
	}

	var version int64
	if room, ok := s.Room(); ok && room.RoomID == roomID {
		version = room.Version
	}

	fmt.Fprintf(s.Out, "Waiting for %s to pass version %d...\n", roomID, version)
	room, err := s.Client.WaitRoom(roomID, version)
	if err != nil {
		return err
	}
	printRoom(s, *room)
	return nil
}

func printRoom(s *session.Session, room core.Room) {
	p2 := room.Player2Name
	if p2 == "" {
		p2 = "(open)"
	}
	fmt.Fprintf(s.Out, "%sRoom %s%s  X: %s  O: %s\n", display.Cyan, room.RoomID, display.Reset, room.Player1Name, p2)
	display.RenderBoard(s.Out, room.Board)
	fmt.Fprintln(s.Out, display.StatusLine(room))
}
