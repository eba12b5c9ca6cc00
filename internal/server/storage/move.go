package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// RecordMove asynchronously appends a move to the history log
func (s *Store) RecordMove(record MoveRecord) error {
	if !s.healthStatus.Load() {
		return nil // Silently drop if degraded
	}

	select {
	case s.writeChan <- func(tx *sql.Tx) error {
		query := `INSERT INTO moves (
			room_id, version, cell, symbol, board_after, move_time_utc
		) VALUES (?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.RoomID, record.Version, record.Cell,
			record.Symbol, record.BoardAfter, record.MoveTime.UnixNano(),
		)
		return err
	}:
		return nil
	default:
		s.log.Warn("storage write queue full, dropping move record", "room_id", record.RoomID)
		return nil
	}
}

// QueryMoves retrieves the move history of a room in play order
func (s *Store) QueryMoves(roomID string) ([]MoveRecord, error) {
	query := `SELECT move_id, room_id, version, cell, symbol, board_after, move_time_utc
	FROM moves WHERE room_id = ? ORDER BY version ASC`

	rows, err := s.db.Query(query, roomID)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var moves []MoveRecord
	for rows.Next() {
		var (
			m        MoveRecord
			moveTime int64
		)
		if err := rows.Scan(&m.MoveID, &m.RoomID, &m.Version, &m.Cell, &m.Symbol, &m.BoardAfter, &moveTime); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		m.MoveTime = time.Unix(0, moveTime).UTC()
		moves = append(moves, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return moves, nil
}
