package api

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"tictactoe/internal/server/core"

	"github.com/gorilla/websocket"
)

const wsWriteWait = 10 * time.Second

// Conn is the play connection. Inbound frames are delivered on Events until
// the connection drops, after which Events is closed.
type Conn struct {
	ws     *websocket.Conn
	events chan core.Envelope
	mu     sync.Mutex // serializes writes
	done   chan struct{}
	once   sync.Once
}

func Dial(url string) (*Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		ws:     ws,
		events: make(chan core.Envelope, 64),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		var env core.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		select {
		case c.events <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) Events() <-chan core.Envelope {
	return c.events
}

// Send frames data under event and writes it
func (c *Conn) Send(event string, data any) error {
	frame, err := json.Marshal(core.Outbound{Event: event, Data: data})
	if err != nil {
		return err
	}
	return c.SendRaw(frame)
}

// SendRaw writes an already encoded frame
func (c *Conn) SendRaw(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.ws.Close()
	})
	return err
}
