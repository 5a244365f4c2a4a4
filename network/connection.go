// network/connection.go
package network

import (
	"encoding/json"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// ErrBinaryFrame is returned by ReadMessage for non-text websocket messages.
var ErrBinaryFrame = errors.New("binary frames are not supported")

// Sender is the only capability the coordinator needs from a connection.
// Send is best-effort and never blocks; it reports whether the event was queued.
type Sender interface {
	Send(ev Event) bool
}

type Connection interface {
	Sender
	ReadMessage() ([]byte, error)
	Close() error
	RemoteAddr() net.Addr
}

type ConnOptions struct {
	SendBuffer int
	Heartbeat  time.Duration
}

// WSConnection writes through a bounded queue drained by its own goroutine,
// so a slow peer never stalls the caller of Send.
type WSConnection struct {
	conn      *websocket.Conn
	send      chan []byte
	heartbeat time.Duration
	mutex     sync.Mutex
	closed    bool
}

func NewWSConnection(conn *websocket.Conn, opts ConnOptions) *WSConnection {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 1
	}
	c := &WSConnection{
		conn:      conn,
		send:      make(chan []byte, opts.SendBuffer),
		heartbeat: opts.Heartbeat,
	}
	if c.heartbeat > 0 {
		c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(c.heartbeat * 2))
		})
	}
	go c.writePump()
	return c
}

func (c *WSConnection) Send(ev Event) bool {
	data, err := json.Marshal(ev)
	if err != nil {
		return false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

func (c *WSConnection) ReadMessage() ([]byte, error) {
	mt, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if mt != websocket.TextMessage {
		return nil, ErrBinaryFrame
	}
	return data, nil
}

// Close stops accepting events; queued events are flushed before the
// socket is closed.
func (c *WSConnection) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
	return nil
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) writePump() {
	var ping <-chan time.Time
	if c.heartbeat > 0 {
		ticker := time.NewTicker(c.heartbeat)
		defer ticker.Stop()
		ping = ticker.C
	}
	defer c.conn.Close()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ping:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
