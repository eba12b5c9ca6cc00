package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"tictactoe/internal/server/broadcast"
	"tictactoe/internal/server/core"
	"tictactoe/internal/server/processor"
	"tictactoe/internal/server/ratelimit"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

// Client is one websocket connection. It owns its session exclusively and
// is the broadcast sink for the room that session is bound to.
type Client struct {
	id      string
	conn    *websocket.Conn
	send    chan []byte
	hub     *broadcast.Hub
	proc    *processor.Processor
	limiter *ratelimit.Limiter
	log     *slog.Logger

	mu      sync.RWMutex
	session core.Session

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (c *Client) ID() string { return c.id }

// Session returns the connection's current binding, zero when unbound
func (c *Client) Session() core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Bind replaces the session and follows the new room. Subscribing happens
// before the caller broadcasts so the bound connection sees that broadcast.
func (c *Client) Bind(session core.Session) {
	c.mu.Lock()
	c.session = session
	c.mu.Unlock()
	c.hub.Subscribe(session.RoomID(), c)
	c.log.Debug("session bound", "room_id", session.RoomID(), "symbol", session.Symbol())
}

// Deliver queues an event without blocking; slow or closed clients drop it
func (c *Client) Deliver(ev core.Outbound) bool {
	msg, err := json.Marshal(ev)
	if err != nil {
		c.log.Error("failed to encode event", "event", ev.Event, "error", err)
		return false
	}
	select {
	case <-c.ctx.Done():
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		c.log.Warn("send buffer full, dropping event", "event", ev.Event)
		return false
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.hub.Unsubscribe(c)
		c.conn.Close()
	})
}

// readPump processes inbound frames in arrival order until the connection fails
func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.log.Warn("websocket read error", "error", err)
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		// Rejected events never reach the processor; the connection stays open
		if !c.limiter.Allow() {
			c.Deliver(*processor.WSError(core.NewValidationError(core.ErrRateLimit, "too many messages, slow down")))
			continue
		}

		if reply := c.proc.Handle(c.ctx, c, message); reply != nil {
			c.Deliver(*reply)
		}
	}
}

// writePump serializes all writes to the connection and keeps it alive with pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(time.Second))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
