package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must stay below pongWait
	maxInboundSize = 512
	sendQueueSize  = 256
)

// ErrSendQueueFull is returned when a client is not draining its queue; the hub drops such clients
var ErrSendQueueFull = errors.New("send queue full")

// Client is one upgraded connection. Events flow one way: server to browser.
type Client struct {
	id     string
	userID uuid.UUID
	conn   *websocket.Conn
	hub    *Hub
	queue  chan []byte

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewClient wraps an upgraded connection owned by userID
func NewClient(conn *websocket.Conn, userID uuid.UUID, hub *Hub) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		hub:    hub,
		queue:  make(chan []byte, sendQueueSize),
	}
}

func (c *Client) ID() string        { return c.id }
func (c *Client) UserID() uuid.UUID { return c.userID }

// Send queues an encoded event without blocking
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	select {
	case c.queue <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// Close shuts the queue and the socket. Idempotent.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.queue)
		c.mu.Unlock()
		err = c.conn.Close()
	})
	return err
}

// Run serves the connection until either side goes away, then unregisters it
func (c *Client) Run() {
	go c.writeLoop()
	c.readLoop()
}

// readLoop discards inbound frames; it exists to process pongs and notice disconnects
func (c *Client) readLoop() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxInboundSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).
					Str("user_id", c.userID.String()).
					Str("client_id", c.id).
					Msg("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-c.queue:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Debug().Err(err).Str("client_id", c.id).Msg("WebSocket write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}
