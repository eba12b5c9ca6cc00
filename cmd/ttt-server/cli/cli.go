package cli

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"tictactoe/internal/server/storage"

	"golang.org/x/term"
)

// Run is the entry point for the db maintenance mini-app
func Run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("subcommand required: init, delete, query, prune")
	}

	switch args[0] {
	case "init":
		return runInit(args[1:], out)
	case "delete":
		return runDelete(args[1:], out)
	case "query":
		return runQuery(args[1:], out)
	case "prune":
		return runPrune(args[1:], out)
	default:
		return fmt.Errorf("unknown subcommand: %s", args[0])
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openSQLite(path string) (*storage.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path required")
	}
	store, err := storage.NewStore(path, quietLogger())
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return store, nil
}

func runInit(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openSQLite(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.InitDB(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	fmt.Fprintf(out, "Database initialized at: %s\n", *path)
	return nil
}

func runDelete(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	force := fs.Bool("force", false, "Skip the confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("database path required")
	}

	if !*force {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("refusing to delete without a terminal, use -force")
		}
		fmt.Fprintf(out, "Delete %s and all rooms in it? [y/N]: ", *path)
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	store, err := openSQLite(*path)
	if err != nil {
		return err
	}

	if err := store.DeleteDB(); err != nil {
		return fmt.Errorf("failed to delete database: %w", err)
	}

	fmt.Fprintf(out, "Database deleted: %s\n", *path)
	return nil
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	path := fs.String("path", "", "Database file path (required)")
	roomID := fs.String("roomId", "", "Room ID to filter (optional, * for all)")
	player := fs.String("player", "", "Player name to filter (optional, * for all)")
	moves := fs.Bool("moves", false, "List the move history of -roomId")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *moves && (*roomID == "" || *roomID == "*") {
		return fmt.Errorf("-moves requires a single -roomId")
	}

	store, err := openSQLite(*path)
	if err != nil {
		return err
	}
	defer store.Close()

	if *moves {
		return printMoves(store, *roomID, out)
	}

	rooms, err := store.QueryRooms(*roomID, *player)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(rooms) == 0 {
		fmt.Fprintln(out, "No rooms found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Room ID\tX\tO\tStatus\tBoard\tVersion\tUpdated")
	fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, r := range rooms {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			r.RoomID,
			r.Player1Name,
			orNone(r.Player2Name),
			r.Status,
			r.Board,
			r.Version,
			r.UpdatedAt.UTC().Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\nFound %d room(s)\n", len(rooms))
	return nil
}

func printMoves(store *storage.Store, roomID string, out io.Writer) error {
	moves, err := store.QueryMoves(roomID)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if len(moves) == 0 {
		fmt.Fprintf(out, "No moves recorded for %s\n", roomID)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Version\tSymbol\tCell\tBoard After\tTime")
	for _, m := range moves {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			m.Version, m.Symbol, m.Cell, m.BoardAfter,
			m.MoveTime.UTC().Format("2006-01-02 15:04:05.000"),
		)
	}
	w.Flush()

	fmt.Fprintf(out, "\n%d move(s)\n", len(moves))
	return nil
}

// staleRemover is the part of a room store the prune command needs
type staleRemover interface {
	DeleteStaleRooms(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

func runPrune(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("prune", flag.ContinueOnError)
	path := fs.String("path", "", "Database file or directory path (required)")
	backend := fs.String("store", "sqlite", "Store backend (sqlite|badger)")
	olderThan := fs.Duration("older-than", 24*time.Hour, "Remove rooms not updated within this duration")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *path == "" {
		return fmt.Errorf("database path required")
	}
	if *olderThan <= 0 {
		return fmt.Errorf("-older-than must be positive")
	}

	var store staleRemover
	switch *backend {
	case "sqlite":
		s, err := openSQLite(*path)
		if err != nil {
			return err
		}
		store = s
	case "badger":
		s, err := storage.NewBadgerStore(*path, quietLogger())
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		store = s
	default:
		return fmt.Errorf("unknown store backend: %s", *backend)
	}
	defer store.Close()

	n, err := store.DeleteStaleRooms(context.Background(), time.Now().Add(-*olderThan))
	if err != nil {
		return fmt.Errorf("prune failed: %w", err)
	}

	fmt.Fprintf(out, "Removed %d stale room(s)\n", n)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
