package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// DefaultQueueSize bounds each connection's outbound queue.
	DefaultQueueSize = 256
)

// Client is a websocket connection subscribed to one room.
type Client struct {
	conn   *websocket.Conn
	roomID string
	userID uint

	send   chan []byte
	mu     sync.Mutex
	closed bool

	onMessage func(c *Client, data []byte)
	onClose   func(c *Client)
}

// NewClient wraps conn. queueSize <= 0 uses DefaultQueueSize.
func NewClient(conn *websocket.Conn, roomID string, userID uint, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Client{
		conn:   conn,
		roomID: roomID,
		userID: userID,
		send:   make(chan []byte, queueSize),
	}
}

// OnMessage sets the handler for text frames read from the peer.
func (c *Client) OnMessage(fn func(c *Client, data []byte)) { c.onMessage = fn }

// OnClose sets the callback run once the read side of the connection ends.
func (c *Client) OnClose(fn func(c *Client)) { c.onClose = fn }

// Enqueue queues msg for the write pump without blocking.
func (c *Client) Enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Sending on a closed channel panics; closed is guarded by the same mutex.
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// Close closes the outbound queue; the write pump then sends a close frame.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run starts the read and write pumps.
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) logger() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"user_id": c.userID, "room_id": c.roomID})
}

// ReadPump reads frames until the peer goes away or misses a pong, then
// runs the close callback.
func (c *Client) ReadPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		c.conn.Close()
		c.logger().Info("readPump exited")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logger().Debug("WebSocket connection closed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			c.logger().Debugf("Ignoring non-text message type: %d", messageType)
			continue
		}
		if c.onMessage != nil {
			c.onMessage(c, message)
		}
	}
}

// WritePump drains the outbound queue to the connection and keeps it
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logger().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Queue closed by the hub: tell the peer and stop.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger().WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) RoomID() string { return c.roomID }
func (c *Client) UserID() uint   { return c.userID }
