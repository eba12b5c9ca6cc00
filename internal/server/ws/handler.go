// Package ws serves the game's websocket endpoint.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/processor"
	"tictactoe/internal/server/ratelimit"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

// Options tunes per-connection behavior
type Options struct {
	RateBurst      int
	RatePerSecond  float64
	AllowedOrigins []string // "*" or empty allows any origin
}

// Handler upgrades HTTP requests and runs one Client per connection
type Handler struct {
	proc     *processor.Processor
	hub      *broadcast.Hub
	log      *slog.Logger
	opts     Options
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*Client
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHandler(proc *processor.Processor, hub *broadcast.Hub, log *slog.Logger, opts Options) *Handler {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handler{
		proc:    proc,
		hub:     hub,
		log:     log,
		opts:    opts,
		clients: make(map[string]*Client),
		ctx:     ctx,
		cancel:  cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(h.opts.AllowedOrigins) == 0 || lo.Contains(h.opts.AllowedOrigins, "*") {
		return true
	}
	return lo.Contains(h.opts.AllowedOrigins, origin)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	id := uuid.NewString()
	ctx, cancel := context.WithCancel(h.ctx)
	c := &Client{
		id:      id,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		hub:     h.hub,
		proc:    h.proc,
		limiter: ratelimit.New(h.opts.RateBurst, h.opts.RatePerSecond),
		log:     h.log.With("conn_id", id),
		ctx:     ctx,
		cancel:  cancel,
	}

	h.mu.Lock()
	h.clients[id] = c
	h.mu.Unlock()

	c.log.Info("websocket connected", "remote", r.RemoteAddr)

	go c.writePump()
	go func() {
		c.readPump()
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		c.log.Info("websocket disconnected")
	}()
}

// Connections returns the number of open connections
func (h *Handler) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Shutdown closes every open connection
func (h *Handler) Shutdown() {
	h.cancel()
	h.mu.Lock()
	clients := lo.Values(h.clients)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}
