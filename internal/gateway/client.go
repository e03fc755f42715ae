package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"social-engine/internal/handler"
	"social-engine/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// inbound is the wire envelope of every client event.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Client is one WebSocket connection attached to a namespace. Outbound frames
// go through a bounded queue drained by a single writer, so each client sees
// frames in the order they were enqueued. A client whose queue overflows is
// closed.
type Client struct {
	id       string
	identity string
	conn     *websocket.Conn
	ns       *handler.Namespace

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newClient(id, identity string, conn *websocket.Conn, ns *handler.Namespace, buffer int) *Client {
	return &Client{
		id:       id,
		identity: identity,
		conn:     conn,
		ns:       ns,
		send:     make(chan []byte, buffer),
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// Identity returns the verified user behind the connection.
func (c *Client) Identity() string { return c.identity }

// Enqueue queues frame for delivery. It never blocks.
func (c *Client) Enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		log.Warn().
			Str("namespace", c.ns.Name()).
			Str("conn", c.id).
			Str("user", c.identity).
			Msg("Send queue full, closing slow connection")
		c.closed = true
		close(c.send)
		return false
	}
}

// close stops the writer after it drains what is already queued.
func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				log.Debug().Err(err).Str("conn", c.id).Msg("WebSocket write failed")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes inbound frames and dispatches them in arrival order until
// the connection fails.
func (c *Client) readPump(ctx context.Context, maxFrameBytes int64) {
	defer func() {
		c.ns.Disconnect(c)
		c.close()
		c.conn.Close()
	}()

	if maxFrameBytes > 0 {
		c.conn.SetReadLimit(maxFrameBytes)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("conn", c.id).Msg("WebSocket read error")
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(message, &in); err != nil || in.Event == "" {
			if err == nil {
				err = errors.New("event name is required")
			}
			c.ns.ReplyError(c, "", fmt.Errorf("%w: %v", service.ErrInvalidPayload, err))
			continue
		}
		_ = c.ns.Dispatch(ctx, c, in.Event, in.Data)
	}
}
