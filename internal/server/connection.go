package server

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/cardroomlabs/cardroom/internal/metrics"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Outbound frames buffered per socket before the client is treated
	// as disconnected.
	sendBuffer = 256
)

// Connection wraps one client WebSocket with buffered, non-blocking
// sends. A full send buffer closes the socket: a slow client must
// never stall a room.
type Connection struct {
	conn    *websocket.Conn
	send    chan []byte
	logger  *log.Logger
	handler *Handler

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection wraps an upgraded socket. Call Start to begin pumping.
func NewConnection(conn *websocket.Conn, handler *Handler, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		logger:  logger.WithPrefix("conn"),
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the read and write pumps.
func (c *Connection) Start() {
	metrics.ConnectionsActive.Inc()
	go c.writePump()
	go c.readPump()
}

// SendFrame enqueues one outbound frame. Returns an error and closes
// the connection when the buffer is full.
func (c *Connection) SendFrame(data []byte) error {
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn("send buffer full, closing connection")
		c.CloseSend()
		return websocket.ErrCloseSent
	}
}

// CloseSend tears the connection down once.
func (c *Connection) CloseSend() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.conn.Close()
		metrics.ConnectionsActive.Dec()
	})
}

func (c *Connection) readPump() {
	defer func() {
		c.CloseSend()
		c.handler.Disconnected(c)
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		c.handler.HandleFrame(c, data)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.CloseSend()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.ctx.Done():
			return
		}
	}
}
