package websocket

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/andreyestevam/collaborative-whiteboard/domain"
	"github.com/andreyestevam/collaborative-whiteboard/protocol"
)

// Options tunes the pumps of each connection.
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		MaxMessageSize: 64 * 1024,
		SendBuffer:     256,
	}
}

func (o Options) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Conn adapts a gorilla websocket to domain.Connection.
type Conn struct {
	id       string
	username string
	ws       *websocket.Conn
	opts     Options

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	broken    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func NewConn(id, username string, ws *websocket.Conn, opts Options) *Conn {
	return &Conn{
		id:       id,
		username: username,
		ws:       ws,
		opts:     opts,
		send:     make(chan []byte, opts.SendBuffer),
		done:     make(chan struct{}),
	}
}

func (c *Conn) ID() string       { return c.id }
func (c *Conn) Username() string { return c.username }
func (c *Conn) IsOpen() bool     { return !c.closed.Load() }

// Send queues data without blocking. A full queue means the peer cannot keep
// up; it is closed and the send fails.
func (c *Conn) Send(data []byte) error {
	if c.closed.Load() {
		return domain.ErrConnectionClosed
	}
	select {
	case <-c.done:
		return domain.ErrConnectionClosed
	case c.send <- data:
		return nil
	default:
		go c.Close(domain.CloseServerError)
		return domain.ErrSendBufferFull
	}
}

// Close sends a close frame with the given status and closes the socket.
// Only the first call has an effect.
func (c *Conn) Close(status domain.CloseStatus) error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)

		code, text := websocket.CloseNormalClosure, ""
		if status == domain.CloseServerError {
			code, text = websocket.CloseInternalServerErr, "server error"
		}
		msg := websocket.FormatCloseMessage(code, text)
		deadline := time.Now().Add(c.opts.WriteWait)
		writeErr := c.ws.WriteControl(websocket.CloseMessage, msg, deadline)
		closeErr := c.ws.Close()
		if writeErr != nil && !errors.Is(writeErr, websocket.ErrCloseSent) {
			c.closeErr = writeErr
		} else {
			c.closeErr = closeErr
		}
	})
	return c.closeErr
}

// Run attaches the connection to handler and pumps messages until it closes.
// It returns after the read side has finished.
func (c *Conn) Run(handler *protocol.Handler) {
	session := handler.Open(c)
	go c.writePump()
	c.readPump(session)
}

func (c *Conn) readPump(session *protocol.Session) {
	defer c.Close(domain.CloseNormal)

	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
				session.Close()
			case c.broken.Load():
				session.Fail(err)
			case c.closed.Load():
				// closed from our side, e.g. a slow peer that was pruned
				session.Close()
			default:
				session.Fail(err)
			}
			return
		}

		session.Handle(data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case message := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("write error", "clientId", c.id, "error", err)
				c.fail()
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.fail()
				return
			}
		}
	}
}

// fail marks the transport as broken and closes the connection so that it
// stops accepting sends right away.
func (c *Conn) fail() {
	c.broken.Store(true)
	c.Close(domain.CloseServerError)
}
