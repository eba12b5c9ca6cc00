package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tictactoe/internal/client/display"
	"tictactoe/internal/client/session"
	"tictactoe/internal/server/core"
)

func (r *Registry) registerDebugCommands() {
	r.Register(&Command{
		Name:        "ping",
		ShortName:   "p",
		Description: "Ping over the play connection",
		Usage:       "ping",
		Handler:     pingHandler,
	})

	r.Register(&Command{
		Name:        "health",
		ShortName:   ".",
		Description: "Check server health",
		Usage:       "health",
		Handler:     healthHandler,
	})

	r.Register(&Command{
		Name:        "url",
		ShortName:   "/",
		Description: "Show or set the API base URL",
		Usage:       "url [apiUrl]",
		Handler:     urlHandler,
	})

	r.Register(&Command{
		Name:        "send",
		ShortName:   ">",
		Description: "Send a raw event frame",
		Usage:       "send <event> [json-data]",
		Handler:     sendHandler,
	})

	r.Register(&Command{
		Name:        "raw",
		ShortName:   ":",
		Description: "Send raw API request",
		Usage:       "raw <method> <path> [json-body]",
		Handler:     rawRequestHandler,
	})

	r.Register(&Command{
		Name:        "clear",
		ShortName:   "-",
		Description: "Clear screen",
		Usage:       "clear",
		Handler:     clearHandler,
	})
}

func pingHandler(s *session.Session, args []string) error {
	return send(s, core.EventPing, nil)
}

func healthHandler(s *session.Session, args []string) error {
	resp, err := s.Client.Health()
	if err != nil {
		return err
	}

	fmt.Fprintf(s.Out, "%sServer Health:%s\n", display.Cyan, display.Reset)
	fmt.Fprintf(s.Out, "  Status:  %s\n", resp.Status)
	fmt.Fprintf(s.Out, "  Time:    %s\n", time.Unix(resp.Time, 0).Format("2006-01-02 15:04:05"))
	if resp.Storage != "" {
		fmt.Fprintf(s.Out, "  Storage: %s\n", resp.Storage)
	}
	return nil
}

func urlHandler(s *session.Session, args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(s.Out, "API URL: %s\nWS URL:  %s\n", s.APIBaseURL, s.WSURL)
		return nil
	}

	url := args[0]
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	s.APIBaseURL = url
	s.Client.SetBaseURL(url)

	fmt.Fprintf(s.Out, "API URL set to: %s\n", url)
	return nil
}

func sendHandler(s *session.Session, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: send <event> [json-data]")
	}
	conn := s.Conn()
	if conn == nil {
		return errNotConnected
	}

	data := "null"
	if len(args) > 1 {
		data = strings.Join(args[1:], " ")
	}
	frame := fmt.Sprintf(`{"event":%q,"data":%s}`, args[0], data)
	return conn.SendRaw([]byte(frame))
}

func rawRequestHandler(s *session.Session, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: raw <method> <path> [json-body]")
	}
	body := ""
	if len(args) > 2 {
		body = strings.Join(args[2:], " ")
	}
	return s.Client.RawRequest(strings.ToUpper(args[0]), args[1], body)
}

func clearHandler(s *session.Session, args []string) error {
	fmt.Fprint(s.Out, "\033[H\033[2J")
	return nil
}
