package broadcast

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// WaitTimeout is the maximum time a long-poll client can wait for a newer version
const WaitTimeout = 25 * time.Second

// WaitRegistry manages long-polling clients waiting for room state changes
type WaitRegistry struct {
	mu       sync.Mutex
	waiters  map[string][]*WaitRequest // roomID → waiting clients
	timeout  time.Duration
	shutdown chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

// WaitRequest represents a single client waiting for room updates
type WaitRequest struct {
	RoomID  string
	Version int64 // Last version known to the client
	notify  chan struct{}
	fired   sync.Once
	timer   *time.Timer
}

func (r *WaitRequest) fire() {
	r.fired.Do(func() { close(r.notify) })
}

// NewWaitRegistry creates a new wait registry
func NewWaitRegistry() *WaitRegistry {
	return &WaitRegistry{
		waiters:  make(map[string][]*WaitRequest),
		timeout:  WaitTimeout,
		shutdown: make(chan struct{}),
	}
}

// RegisterWait registers a client waiting for a version newer than version.
// The returned channel is closed on a newer version, on timeout, on ctx
// cancellation or at shutdown; callers re-read the room to see which.
func (w *WaitRegistry) RegisterWait(ctx context.Context, roomID string, version int64) <-chan struct{} {
	req := &WaitRequest{
		RoomID:  roomID,
		Version: version,
		notify:  make(chan struct{}),
	}

	w.mu.Lock()
	select {
	case <-w.shutdown:
		w.mu.Unlock()
		req.fire()
		return req.notify
	default:
	}
	req.timer = time.AfterFunc(w.timeout, req.fire)
	w.waiters[roomID] = append(w.waiters[roomID], req)
	w.mu.Unlock()

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		select {
		case <-ctx.Done():
			req.fire()
		case <-req.notify:
		case <-w.shutdown:
			req.fire()
		}
		w.removeWaiter(req)
	}()

	return req.notify
}

// NotifyRoom wakes every waiter on the room whose known version is older than version
func (w *WaitRegistry) NotifyRoom(roomID string, version int64) {
	w.mu.Lock()
	waitList := append([]*WaitRequest(nil), w.waiters[roomID]...)
	w.mu.Unlock()

	for _, req := range waitList {
		if version > req.Version {
			req.fire()
		}
	}
}

// Waiting returns the number of clients waiting on the room
func (w *WaitRegistry) Waiting(roomID string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.waiters[roomID])
}

// Shutdown releases every waiter and waits for the watch goroutines to exit
func (w *WaitRegistry) Shutdown(timeout time.Duration) error {
	w.mu.Lock()
	w.once.Do(func() { close(w.shutdown) })
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("wait registry shutdown timed out after %s", timeout)
	}
}

// removeWaiter removes a specific waiter from the registry
func (w *WaitRegistry) removeWaiter(req *WaitRequest) {
	w.mu.Lock()
	defer w.mu.Unlock()

	waitList := w.waiters[req.RoomID]
	for i, waiter := range waitList {
		if waiter == req {
			w.waiters[req.RoomID] = append(waitList[:i], waitList[i+1:]...)
			break
		}
	}

	if len(w.waiters[req.RoomID]) == 0 {
		delete(w.waiters, req.RoomID)
	}

	req.timer.Stop()
}
