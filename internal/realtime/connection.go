package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lalith-99/marketchat/internal/contract"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrQueueFull  = errors.New("send queue full")
)

// Connection is one websocket session. Writes go through a bounded queue
// drained by a single writer goroutine; a client too slow to keep up gets
// disconnected instead of growing the queue.
//
// *Connection is the handle stored in the presence registry.
type Connection struct {
	ID     string
	UserID uuid.UUID

	ws   *websocket.Conn
	send chan []byte

	once        sync.Once
	done        chan struct{}
	closeCode   int
	closeReason string
}

func NewConnection(userID uuid.UUID, ws *websocket.Conn, queue int) *Connection {
	if queue <= 0 {
		queue = defaultSendQueue
	}
	return &Connection{
		ID:     uuid.NewString(),
		UserID: userID,
		ws:     ws,
		send:   make(chan []byte, queue),
		done:   make(chan struct{}),
	}
}

// Start launches the writer. Call once.
func (c *Connection) Start() {
	go c.writeLoop()
}

// Emit encodes an event frame and queues it. Safe for concurrent use.
func (c *Connection) Emit(event string, payload any) error {
	frame, err := contract.NewFrame(event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}

	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case <-c.done:
		return ErrConnClosed
	case c.send <- data:
		return nil
	default:
		c.Close(websocket.ClosePolicyViolation, "send queue full")
		return ErrQueueFull
	}
}

// Close asks the writer to flush queued frames, send a close frame and
// close the socket. Idempotent.
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		c.closeCode, c.closeReason = code, reason
		close(c.done)
	})
}

// Done is closed once Close has been called.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.ws.Close()

	for {
		select {
		case <-c.done:
			c.flush()
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(c.closeCode, c.closeReason),
				time.Now().Add(writeWait))
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

// flush writes whatever is still queued, so a final sendError reaches the
// client before the close frame.
func (c *Connection) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Connection) write(messageType int, data []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, data)
}
