package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const maxConflictRetries = 16

// BadgerStore implements the room store on an embedded badger database.
// Guarded updates run inside a read-write transaction; concurrent writers that
// touched the same key fail with badger.ErrConflict and are retried.
type BadgerStore struct {
	db           *badger.DB
	log          *slog.Logger
	healthStatus atomic.Bool
}

// NewBadgerStore opens a badger database in dir, or in memory when dir is empty
func NewBadgerStore(dir string, log *slog.Logger) (*BadgerStore, error) {
	if log == nil {
		log = slog.Default()
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	s := &BadgerStore{db: db, log: log}
	s.healthStatus.Store(true)
	return s, nil
}

func roomKey(roomID string) []byte {
	return []byte("room:" + roomID)
}

func movePrefix(roomID string) []byte {
	return []byte("move:" + roomID + ":")
}

func moveKey(roomID string, version int64) []byte {
	return fmt.Appendf(movePrefix(roomID), "%020d", version)
}

func readRoom(txn *badger.Txn, roomID string) (*RoomRecord, error) {
	item, err := txn.Get(roomKey(roomID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var r RoomRecord
	if err := item.Value(func(v []byte) error {
		return json.Unmarshal(v, &r)
	}); err != nil {
		return nil, fmt.Errorf("decode room %s: %w", roomID, err)
	}
	return &r, nil
}

func writeRoom(txn *badger.Txn, r RoomRecord) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return txn.Set(roomKey(r.RoomID), data)
}

// update runs fn in a read-write transaction, retrying on write conflicts
func (s *BadgerStore) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) || attempt >= maxConflictRetries {
			return err
		}
	}
}

// CreateRoom inserts a new room, failing with ErrDuplicate when the id is taken
func (s *BadgerStore) CreateRoom(ctx context.Context, record RoomRecord) error {
	return s.update(ctx, func(txn *badger.Txn) error {
		_, err := txn.Get(roomKey(record.RoomID))
		if err == nil {
			return ErrDuplicate
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return writeRoom(txn, record)
	})
}

// GetRoom fetches a room by id
func (s *BadgerStore) GetRoom(ctx context.Context, roomID string) (*RoomRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var r *RoomRecord
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		r, err = readRoom(txn, roomID)
		return err
	})
	return r, err
}

// UpdateRoom applies the mutation only if the guard holds at commit time
func (s *BadgerStore) UpdateRoom(ctx context.Context, roomID string, guard Guard, mut Mutation, now time.Time) (*RoomRecord, error) {
	var out *RoomRecord
	err := s.update(ctx, func(txn *badger.Txn) error {
		r, err := readRoom(txn, roomID)
		if errors.Is(err, ErrNotFound) {
			return ErrNoMatch
		}
		if err != nil {
			return err
		}
		if !guard.Matches(*r) {
			return ErrNoMatch
		}
		mut.Apply(r, now)
		if err := writeRoom(txn, *r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// RecordMove appends a move to the history log. Failures degrade the store
// health but never fail the caller.
func (s *BadgerStore) RecordMove(record MoveRecord) error {
	if !s.healthStatus.Load() {
		return nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(moveKey(record.RoomID, record.Version), data)
	}); err != nil {
		s.log.Error("storage degraded: move log write failed", "room_id", record.RoomID, "error", err)
		s.healthStatus.Store(false)
	}
	return nil
}

// QueryMoves retrieves the move history of a room in play order
func (s *BadgerStore) QueryMoves(roomID string) ([]MoveRecord, error) {
	var moves []MoveRecord
	prefix := movePrefix(roomID)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := it.Item().Value(func(v []byte) error {
				var m MoveRecord
				if err := json.Unmarshal(v, &m); err != nil {
					return err
				}
				moves = append(moves, m)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query moves: %w", err)
	}
	return moves, nil
}

// DeleteStaleRooms removes rooms not updated since before, with their moves
func (s *BadgerStore) DeleteStaleRooms(ctx context.Context, before time.Time) (int64, error) {
	var stale []string
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte("room:")
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var r RoomRecord
			if err := it.Item().Value(func(v []byte) error {
				return json.Unmarshal(v, &r)
			}); err != nil {
				return err
			}
			if r.UpdatedAt.Before(before) {
				stale = append(stale, r.RoomID)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan stale rooms: %w", err)
	}

	var deleted int64
	for _, id := range stale {
		var removed bool
		err := s.update(ctx, func(txn *badger.Txn) error {
			removed = false
			// Re-check under the write transaction; the room may have been touched since the scan
			r, err := readRoom(txn, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			if !r.UpdatedAt.Before(before) {
				return nil
			}
			if err := txn.Delete(roomKey(id)); err != nil {
				return err
			}
			removed = true
			return deleteMoves(txn, id)
		})
		if err != nil {
			return deleted, fmt.Errorf("delete room %s: %w", id, err)
		}
		if removed {
			deleted++
		}
	}
	return deleted, nil
}

func deleteMoves(txn *badger.Txn, roomID string) error {
	prefix := movePrefix(roomID)
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var keys [][]byte
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// IsHealthy returns true if the move log is operational
func (s *BadgerStore) IsHealthy() bool {
	return s.healthStatus.Load()
}

// Close flushes and closes the database
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
