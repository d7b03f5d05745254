package protocol

import (
	"log/slog"
	"sync/atomic"

	"github.com/andreyestevam/collaborative-whiteboard/domain"
	"github.com/andreyestevam/collaborative-whiteboard/metrics"
)

// State is the lifecycle state of one connection.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Handler drives connection lifecycles: it registers new connections, relays
// their drawing operations and announces departures.
type Handler struct {
	broadcaster domain.Broadcaster
	metrics     *metrics.Metrics
}

func NewHandler(b domain.Broadcaster, m *metrics.Metrics) *Handler {
	return &Handler{broadcaster: b, metrics: m}
}

// Session is the per-connection half of the handler. Its methods may be called
// from different goroutines; only the first Close or Fail takes effect.
type Session struct {
	handler *Handler
	conn    domain.Connection
	label   string
	state   atomic.Int32
}

// Open registers conn, announces the join to the other clients and returns
// the session that handles the rest of its lifecycle.
func (h *Handler) Open(conn domain.Connection) *Session {
	s := &Session{
		handler: h,
		conn:    conn,
		label:   domain.Label(conn.Username()),
	}
	h.broadcaster.Register(conn)
	s.state.Store(int32(StateOpen))

	h.broadcaster.Broadcast(domain.JoinedMessage(s.label), conn)
	h.metrics.Broadcast(metrics.KindSystem)
	return s
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) Label() string {
	return s.label
}

// Handle relays data to the other clients if it decodes as a drawing
// operation. The original bytes are relayed, not a re-encoding.
func (s *Session) Handle(data []byte) {
	if s.State() != StateOpen {
		return
	}
	op, err := domain.DecodeOperation(data)
	if err != nil {
		s.handler.metrics.PayloadDropped()
		slog.Warn("invalid message", "clientId", s.conn.ID(), "username", s.label, "error", err)
		return
	}

	slog.Debug("message received",
		"clientId", s.conn.ID(), "username", s.label,
		"opId", op.ID, "type", op.Type, "shape", op.Shape(), "color", op.Color)
	s.handler.broadcaster.Broadcast(data, s.conn)
	s.handler.metrics.Broadcast(metrics.KindRelay)
}

// Close handles a clean disconnect.
func (s *Session) Close() {
	if !s.transition() {
		return
	}
	s.depart(domain.LeftMessage(s.label))
}

// Fail handles a transport error: the connection is closed with a server
// error status and the departure is announced even if that close fails.
func (s *Session) Fail(cause error) {
	if !s.transition() {
		return
	}
	slog.Warn("transport error", "clientId", s.conn.ID(), "username", s.label, "error", cause)
	if s.conn.IsOpen() {
		if err := s.conn.Close(domain.CloseServerError); err != nil {
			slog.Warn("close after error failed", "clientId", s.conn.ID(), "error", err)
		}
	}
	s.depart(domain.LeftWithErrorMessage(s.label))
}

func (s *Session) transition() bool {
	return s.state.CompareAndSwap(int32(StateOpen), int32(StateClosed))
}

func (s *Session) depart(notice []byte) {
	if !s.handler.broadcaster.Unregister(s.conn) {
		return
	}
	s.handler.broadcaster.Broadcast(notice, s.conn)
	s.handler.metrics.Broadcast(metrics.KindSystem)
}
