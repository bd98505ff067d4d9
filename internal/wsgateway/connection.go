package wsgateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSendBufferFull is returned when a message is dropped for a slow client
var ErrSendBufferFull = errors.New("send buffer full")

const sendBuffer = 64

// Connection is one websocket client. All writes go through Send and the
// hub's write pump; only the pump touches Conn for writing.
type Connection struct {
	ID         string
	RemoteAddr string
	Conn       *websocket.Conn
	Send       chan []byte

	mu        sync.RWMutex
	topics    map[string]bool
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	lastPong  time.Time
	createdAt time.Time
}

// NewConnection creates a new websocket connection
func NewConnection(id string, remoteAddr string, conn *websocket.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	return &Connection{
		ID:         id,
		RemoteAddr: remoteAddr,
		Conn:       conn,
		Send:       make(chan []byte, sendBuffer),
		topics:     make(map[string]bool),
		ctx:        ctx,
		cancel:     cancel,
		createdAt:  now,
		lastPong:   now,
	}
}

// Subscribe adds topic to the connection's filter
func (c *Connection) Subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.topics == nil {
		c.topics = make(map[string]bool)
	}
	c.topics[topic] = true
}

// Unsubscribe removes topic from the connection's filter
func (c *Connection) Unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.topics, topic)
}

// IsSubscribed checks if the connection explicitly subscribed to topic
func (c *Connection) IsSubscribed(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topics[topic]
}

// Wants reports whether messages on topic should go to this connection.
// No subscriptions means everything.
func (c *Connection) Wants(topic string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	return c.topics[topic]
}

// UpdateLastPong updates the last pong time
func (c *Connection) UpdateLastPong() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPong = time.Now()
}

// GetLastPong returns the last pong time
func (c *Connection) GetLastPong() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPong
}

// Enqueue marshals msg and queues it without blocking. A full buffer drops
// the message and returns ErrSendBufferFull.
func (c *Connection) Enqueue(msg ServerMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.enqueueRaw(data)
}

func (c *Connection) enqueueRaw(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.ctx != nil && c.ctx.Err() != nil {
		return c.ctx.Err()
	}
	select {
	case c.Send <- data:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.cancel != nil {
			c.cancel()
		}
		close(c.Send)
		c.mu.Unlock()
		if c.Conn != nil {
			c.Conn.Close()
		}
	})
}
