// Package main implements an interactive terminal client for the tic-tac-toe server.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tictactoe/internal/client/commands"
	"tictactoe/internal/client/display"
	"tictactoe/internal/client/session"
	"tictactoe/internal/server/core"

	"github.com/chzyer/readline"
	"golang.org/x/term"
)

func main() {
	apiURL := flag.String("api", "http://localhost:8080", "REST API base URL")
	wsURL := flag.String("ws", "ws://localhost:8081/ws", "WebSocket URL")
	noConnect := flag.Bool("offline", false, "Do not open the play connection on start")
	flag.Parse()

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		display.Disable()
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          display.Prompt("ttt"),
		HistoryFile:     ".ttt_history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		fmt.Printf("%s%s%s\n", display.Red, err.Error(), display.Reset)
		os.Exit(1)
	}
	defer rl.Close()

	// Events arrive on another goroutine; the readline writer redraws the prompt around them
	s := session.New(*apiURL, *wsURL, rl.Stdout())
	registry := commands.NewRegistry(s)

	fmt.Fprintf(s.Out, "%sTic-Tac-Toe Client%s\n", display.Cyan, display.Reset)
	fmt.Fprintf(s.Out, "%sAPI: %s  WS: %s%s\n", display.Cyan, *apiURL, *wsURL, display.Reset)
	fmt.Fprintf(s.Out, "Type 'help' for commands\n\n")

	if !*noConnect {
		registry.Execute("connect")
	}

	for {
		rl.SetPrompt(buildPrompt(s))

		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" || line == "x" {
			break
		}

		if strings.HasSuffix(line, " -v") {
			s.Verbose = true
			line = strings.TrimSuffix(line, " -v")
		} else {
			s.Verbose = false
		}

		registry.Execute(line)
	}

	if conn := s.Conn(); conn != nil {
		conn.Close()
	}
	fmt.Printf("%sGoodbye!%s\n", display.Cyan, display.Reset)
}

func buildPrompt(s *session.Session) string {
	roomID, symbol, name := s.Binding()
	if roomID == "" {
		if s.Conn() == nil {
			return display.Prompt("ttt" + display.Red + " (offline)")
		}
		return display.Prompt("ttt")
	}

	var parts []string
	if name != "" {
		parts = append(parts, display.Magenta+name+display.Reset)
	}
	parts = append(parts, display.White+roomID+display.Reset, display.ColorForSymbol(symbol))

	promptStr := "ttt" + display.Yellow + " [" + display.Reset + strings.Join(parts, " ") + display.Yellow + "]"

	if room, ok := s.Room(); ok && room.RoomID == roomID {
		switch {
		case room.Status == core.StatusActive && room.Turn == symbol:
			promptStr += display.Green + " your move"
		case room.Status == core.StatusActive:
			promptStr += " - Turn:" + display.ColorForSymbol(room.Turn)
		default:
			promptStr += " - " + string(room.Status)
		}
	}
	return display.Prompt(promptStr)
}
