// Package hub tracks room WebSocket connections and relays frames
// between participants.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/babelroom/babelroom/internal/adapters/metrics"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Connection is one participant's socket in one room. All writes go
// through the outbound channel; the writer pump goroutine is the only
// goroutine touching the websocket write side.
type Connection struct {
	ID       string
	UserID   uuid.UUID
	RoomID   string
	Username string
	FullName string

	ws       *websocket.Conn
	wmu      sync.Mutex // guards all writes on ws
	outbound chan any
	logger   *slog.Logger

	mu         sync.Mutex
	outputLang string
	closed     bool
	done       chan struct{}
}

func newConnection(id string, userID uuid.UUID, roomID, username, fullName string, ws *websocket.Conn, depth int, logger *slog.Logger) *Connection {
	if depth < 1 {
		depth = 32
	}
	return &Connection{
		ID:       id,
		UserID:   userID,
		RoomID:   roomID,
		Username: username,
		FullName: fullName,
		ws:       ws,
		outbound: make(chan any, depth),
		logger:   logger.With("conn_id", id, "user_id", userID, "room_id", roomID),
		done:     make(chan struct{}),
	}
}

// Send enqueues a frame without blocking. When the channel is full the
// oldest pending frame is dropped so a slow reader lags rather than
// stalls the pipeline. Returns false when the frame could not be
// enqueued at all.
func (c *Connection) Send(frame any) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.mu.Unlock()

	select {
	case c.outbound <- frame:
		return true
	default:
	}

	select {
	case <-c.outbound:
		metrics.SlowConsumerDrops.Inc()
	default:
	}

	select {
	case c.outbound <- frame:
		return true
	default:
		metrics.SlowConsumerDrops.Inc()
		return false
	}
}

// SetOutputLanguage records the participant's listening language.
func (c *Connection) SetOutputLanguage(lang string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputLang = lang
}

// OutputLanguage returns the participant's listening language.
func (c *Connection) OutputLanguage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outputLang
}

// writePump serializes outbound frames onto the websocket and keeps the
// connection alive with pings. It exits when the connection closes.
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbound:
			if err := c.writeJSON(frame); err != nil {
				c.logger.Debug("write failed", "error", err)
				c.closeNow()
				return
			}
		case <-ticker.C:
			if err := c.writeMessage(websocket.PingMessage, nil); err != nil {
				c.closeNow()
				return
			}
		}
	}
}

// Close sends a close frame with the given code and shuts the socket.
// Safe to call more than once.
func (c *Connection) Close(code int, reason string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.writeMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	c.ws.Close()
}

func (c *Connection) writeJSON(frame any) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(frame)
}

func (c *Connection) writeMessage(messageType int, data []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(messageType, data)
}

func (c *Connection) closeNow() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()
	c.ws.Close()
}
