package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"chathub/pkg/types"
)

// Connection wraps a WebSocket connection behind a stable uuid, decoupling
// presence tracking from the transport object. All writes are serialized
// through a single writer goroutine.
type Connection struct {
	id       string
	conn     *websocket.Conn
	writeCh  chan []byte
	identity *types.UserIdentity

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	mu        sync.RWMutex
}

// NewConnection creates a connection wrapper and starts its writer
// goroutine.
func NewConnection(conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		id:      uuid.New().String(),
		conn:    conn,
		writeCh: make(chan []byte, 100),
		ctx:     ctx,
		cancel:  cancel,
	}

	go c.writeLoop()

	return c
}

// ID returns the stable identifier assigned at accept time.
func (c *Connection) ID() string {
	return c.id
}

// writeLoop is the single writer for the underlying socket.
func (c *Connection) writeLoop() {
	for {
		select {
		case data := <-c.writeCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// WriteJSON marshals v and queues it for the writer goroutine. Safe to call
// from any goroutine. Never blocks: when the queue is full the frame is
// dropped and ErrWriteBufferFull returned, so a stalled socket cannot back
// up its callers.
func (c *Connection) WriteJSON(v interface{}) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	data, err := json.Marshal(v)
	if err != nil {
		return ErrInvalidJSON
	}

	select {
	case c.writeCh <- data:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		return ErrWriteBufferFull
	}
}

// Close stops the writer goroutine and closes the socket. Idempotent.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if c.conn != nil {
			err = c.conn.Close()
		}
	})
	return err
}

// Done is closed when the connection has been torn down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// SetIdentity marks the connection authenticated.
func (c *Connection) SetIdentity(identity *types.UserIdentity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.identity = identity
}

// Identity returns the authenticated identity, or nil before authentication.
func (c *Connection) Identity() *types.UserIdentity {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity
}

// IsAuthenticated reports whether an identity has been set.
func (c *Connection) IsAuthenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.identity != nil
}
