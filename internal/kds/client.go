package kds

import (
	"errors"
	"sync"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 32
)

var (
	ErrConnClosed   = errors.New("connection closed")
	ErrSlowConsumer = errors.New("send buffer full")
)

// wsClient wraps a gorilla connection behind the Conn interface. Writes go
// through a buffered channel drained by writePump, so Send never blocks on
// socket I/O; a full buffer is reported as a send failure and the dispatcher
// evicts the connection.
type wsClient struct {
	id     uuid.UUID
	conn   *websocket.Conn
	send   chan []byte
	closed chan struct{}
	once   sync.Once
	logger apt.Logger
}

func newWSClient(conn *websocket.Conn, logger apt.Logger) *wsClient {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	return &wsClient{
		id:     uuid.New(),
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
		logger: logger,
	}
}

func (c *wsClient) ID() uuid.UUID {
	return c.id
}

func (c *wsClient) Send(payload []byte) error {
	select {
	case <-c.closed:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.closed:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

func (c *wsClient) Close() error {
	c.once.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
	return nil
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. One writer goroutine per connection; gorilla
// allows at most one concurrent writer.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.closed:
			return
		}
	}
}

// readPump feeds inbound frames to handle until the peer goes away.
// It runs on the connection's own goroutine; blocking store calls made by
// the command processor block only this connection.
func (c *wsClient) readPump(handle func(data []byte)) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Infof("client %s read error: %v", c.id, err)
			}
			return
		}
		handle(data)
	}
}
