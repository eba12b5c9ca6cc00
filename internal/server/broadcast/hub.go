// Package broadcast fans room snapshots out to the connections and long-poll
// waiters watching a room.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"tictactoe/internal/server/core"
)

// Sink receives outbound events for one connection. Deliver must not block;
// it reports false when the event was dropped.
type Sink interface {
	ID() string
	Deliver(ev core.Outbound) bool
}

type subscription struct {
	sink        Sink
	roomID      string
	lastVersion int64
}

// Hub tracks which sinks are subscribed to which room and delivers each
// published snapshot at most once per sink, in strictly increasing version order
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[string]*subscription // roomID → sinkID → subscription
	sinks  map[string]*subscription            // sinkID → subscription
	waiter *WaitRegistry
	log    *slog.Logger
	closed bool
}

// NewHub creates a hub with its own long-poll registry
func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*subscription),
		sinks:  make(map[string]*subscription),
		waiter: NewWaitRegistry(),
		log:    log,
	}
}

// Subscribe attaches sink to roomID. A sink follows one room at a time;
// subscribing to another room detaches it from the previous one.
func (h *Hub) Subscribe(roomID string, sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	if sub, ok := h.sinks[sink.ID()]; ok {
		if sub.roomID == roomID {
			return
		}
		h.detach(sub)
	}

	sub := &subscription{sink: sink, roomID: roomID}
	h.sinks[sink.ID()] = sub
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*subscription)
	}
	h.rooms[roomID][sink.ID()] = sub
}

// Unsubscribe detaches sink from whatever room it follows
func (h *Hub) Unsubscribe(sink Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub, ok := h.sinks[sink.ID()]; ok {
		h.detach(sub)
	}
}

func (h *Hub) detach(sub *subscription) {
	delete(h.sinks, sub.sink.ID())
	if subs := h.rooms[sub.roomID]; subs != nil {
		delete(subs, sub.sink.ID())
		if len(subs) == 0 {
			delete(h.rooms, sub.roomID)
		}
	}
}

// PublishState delivers a room_state snapshot to every subscriber of the room
// that has not already seen this or a newer version, then wakes long-poll waiters
func (h *Hub) PublishState(room core.Room) {
	h.mu.Lock()
	delivered, stale := 0, 0
	for _, sub := range h.rooms[room.RoomID] {
		if room.Version <= sub.lastVersion {
			stale++
			continue
		}
		if sub.sink.Deliver(core.Outbound{Event: core.EventRoomState, Data: room}) {
			sub.lastVersion = room.Version
			delivered++
		}
	}
	h.mu.Unlock()

	h.waiter.NotifyRoom(room.RoomID, room.Version)

	h.log.Debug("room state published",
		"room_id", room.RoomID, "version", room.Version, "delivered", delivered, "stale", stale)
}

// PublishGameOver tells the room's subscribers that the game ended at
// version. Subscribers already past that version (a restart landed) are skipped.
func (h *Hub) PublishGameOver(roomID string, status core.Status, version int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.rooms[roomID] {
		if sub.lastVersion > version {
			continue
		}
		sub.sink.Deliver(core.Outbound{Event: core.EventGameOver, Data: core.GameOverPayload{Status: status}})
	}
}

// RegisterWait registers a long-poll waiter on the room
func (h *Hub) RegisterWait(ctx context.Context, roomID string, version int64) <-chan struct{} {
	return h.waiter.RegisterWait(ctx, roomID, version)
}

// Subscribers returns the number of sinks following roomID
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// Shutdown detaches all sinks and releases long-poll waiters
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.mu.Lock()
	h.closed = true
	h.rooms = make(map[string]map[string]*subscription)
	h.sinks = make(map[string]*subscription)
	h.mu.Unlock()

	var errs []error
	if err := h.waiter.Shutdown(timeout); err != nil {
		errs = append(errs, fmt.Errorf("wait registry: %w", err))
	}
	return errors.Join(errs...)
}
