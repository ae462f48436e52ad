package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/zeromicro/go-zero/core/logx"
)

// outboundBufferSize bounds each connection's pending-frame channel (spec
// §4.D backpressure: default 256 frames).
const outboundBufferSize = 256

// Connection is one live persistent session, grounded on the send/stop
// buffered-channel pair from the reference chat hub's Session type,
// adapted to a registry-owned value rather than a topic-subscribed actor.
type Connection struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	DeviceID string

	conn *websocket.Conn

	send chan []byte
	stop chan struct{}

	mu            sync.RWMutex
	lastHeartbeat time.Time

	closeOnce sync.Once
}

// NewConnection wraps an upgraded websocket connection in the registry's
// bookkeeping structure.
func NewConnection(ws *websocket.Conn, userID uuid.UUID, deviceID string) *Connection {
	return &Connection{
		ID:            uuid.New(),
		UserID:        userID,
		DeviceID:      deviceID,
		conn:          ws,
		send:          make(chan []byte, outboundBufferSize),
		stop:          make(chan struct{}),
		lastHeartbeat: time.Now(),
	}
}

// Touch records that a frame (any frame, not just heartbeat) was just
// received from the client, refreshing the liveness window.
func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastHeartbeat = time.Now()
	c.mu.Unlock()
}

// IdleSince reports how long it has been since the last received frame.
func (c *Connection) IdleSince() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Since(c.lastHeartbeat)
}

// TrySend enqueues an outbound frame without blocking. It reports whether
// the enqueue succeeded; a full channel means a slow consumer, and the
// caller is expected to close the connection with closeBackpressure.
func (c *Connection) TrySend(payload []byte) bool {
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Outbound exposes the send channel for the connection's writer loop.
func (c *Connection) Outbound() <-chan []byte {
	return c.send
}

// Stopped exposes the stop signal for the connection's reader/writer loops.
func (c *Connection) Stopped() <-chan struct{} {
	return c.stop
}

// Close closes the underlying transport with the given policy code. Safe
// to call more than once; only the first call takes effect.
func (c *Connection) Close(code int, reason string) {
	c.closeOnce.Do(func() {
		close(c.stop)
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		if err := c.conn.Close(); err != nil {
			logx.Debugf("gateway: close connection %s: %v", c.ID, err)
		}
	})
}

// WriteLoop drains the send channel onto the socket until Close is called
// or the channel write fails. Runs in its own goroutine per connection.
func (c *Connection) WriteLoop() {
	for {
		select {
		case <-c.stop:
			return
		case payload, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				logx.Debugf("gateway: write to connection %s: %v", c.ID, err)
				c.Close(closeNormal, "write failed")
				return
			}
		}
	}
}
