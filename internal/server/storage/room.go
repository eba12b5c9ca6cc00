package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const roomColumns = `room_id, player1_name, player2_name, board, turn, status, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoom(row rowScanner) (*RoomRecord, error) {
	var (
		r                    RoomRecord
		createdAt, updatedAt int64
	)
	if err := row.Scan(
		&r.RoomID, &r.Player1Name, &r.Player2Name, &r.Board,
		&r.Turn, &r.Status, &r.Version, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	r.CreatedAt = time.Unix(0, createdAt).UTC()
	r.UpdatedAt = time.Unix(0, updatedAt).UTC()
	return &r, nil
}

// CreateRoom inserts a new room, failing with ErrDuplicate when the id is taken
func (s *Store) CreateRoom(ctx context.Context, record RoomRecord) error {
	query := `INSERT INTO rooms (` + roomColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		record.RoomID, record.Player1Name, record.Player2Name, record.Board,
		record.Turn, record.Status, record.Version,
		record.CreatedAt.UnixNano(), record.UpdatedAt.UnixNano(),
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom fetches a room by id
func (s *Store) GetRoom(ctx context.Context, roomID string) (*RoomRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roomColumns+` FROM rooms WHERE room_id = ?`, roomID)
	r, err := scanRoom(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}
	return r, nil
}

// UpdateRoom applies the mutation in a single statement only if the guard holds
// at write time and returns the row as written. A guard mismatch, including a
// missing room, yields ErrNoMatch.
func (s *Store) UpdateRoom(ctx context.Context, roomID string, guard Guard, mut Mutation, now time.Time) (*RoomRecord, error) {
	set, setArgs := mut.sqlSet(now)
	where, whereArgs := guard.sqlWhere()

	query := `UPDATE rooms SET ` + set + ` WHERE room_id = ?` + where + ` RETURNING ` + roomColumns

	args := append(setArgs, roomID)
	args = append(args, whereArgs...)

	r, err := scanRoom(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoMatch
	}
	if err != nil {
		return nil, fmt.Errorf("update room: %w", err)
	}
	return r, nil
}

// DeleteStaleRooms removes rooms not updated since before, cascading to their moves
func (s *Store) DeleteStaleRooms(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rooms WHERE updated_at < ?`, before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("delete stale rooms: %w", err)
	}
	return res.RowsAffected()
}

// QueryRooms retrieves rooms with optional filtering
func (s *Store) QueryRooms(roomID, playerName string) ([]RoomRecord, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE 1=1`

	var args []any

	if roomID != "" && roomID != "*" {
		query += " AND room_id = ?"
		args = append(args, roomID)
	}

	if playerName != "" && playerName != "*" {
		query += " AND (player1_name = ? OR player2_name = ?)"
		args = append(args, playerName, playerName)
	}

	query += " ORDER BY created_at DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var rooms []RoomRecord
	for rows.Next() {
		r, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		rooms = append(rooms, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return rooms, nil
}

func (g Guard) sqlWhere() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(g.Statuses) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(g.Statuses)), ", ")
		clauses = append(clauses, "status IN ("+marks+")")
		for _, st := range g.Statuses {
			args = append(args, st)
		}
	}
	if g.Turn != "" {
		clauses = append(clauses, "turn = ?")
		args = append(args, g.Turn)
	}
	if g.EmptyCell != nil {
		// substr is 1-based
		clauses = append(clauses, "substr(board, ?, 1) = '-'")
		args = append(args, *g.EmptyCell+1)
	}
	if g.Player2Vacant {
		clauses = append(clauses, "player2_name = ''")
	}
	if g.BothPlayers {
		clauses = append(clauses, "player1_name <> '' AND player2_name <> ''")
	}
	if g.Version != nil {
		clauses = append(clauses, "version = ?")
		args = append(args, *g.Version)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func (m Mutation) sqlSet(now time.Time) (string, []any) {
	var (
		sets []string
		args []any
	)
	if m.Player2Name != nil {
		sets = append(sets, "player2_name = ?")
		args = append(args, *m.Player2Name)
	}

	boardExpr := "board"
	if m.ResetBoard {
		boardExpr = "'---------'"
	}
	if m.Mark != nil {
		boardExpr = fmt.Sprintf("substr(%[1]s, 1, ?) || ? || substr(%[1]s, ?)", boardExpr)
		args = append(args, m.Mark.Cell, m.Mark.Symbol, m.Mark.Cell+2)
	}
	if boardExpr != "board" {
		sets = append(sets, "board = "+boardExpr)
	}

	switch {
	case m.Turn != "":
		sets = append(sets, "turn = ?")
		args = append(args, m.Turn)
	case m.FlipTurn:
		sets = append(sets, "turn = CASE turn WHEN 'X' THEN 'O' ELSE 'X' END")
	}
	if m.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, m.Status)
	}

	sets = append(sets, "version = version + 1", "updated_at = max(?, updated_at + 1)")
	args = append(args, now.UnixNano())

	return strings.Join(sets, ", "), args
}
