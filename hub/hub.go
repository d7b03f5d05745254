package hub

import (
	"log/slog"
	"sync"

	"github.com/andreyestevam/collaborative-whiteboard/domain"
	"github.com/andreyestevam/collaborative-whiteboard/metrics"
)

// Hub is the set of live connections on the whiteboard.
type Hub struct {
	clients map[domain.Connection]string
	mu      sync.RWMutex
	metrics *metrics.Metrics
}

func New(m *metrics.Metrics) *Hub {
	return &Hub{
		clients: make(map[domain.Connection]string),
		metrics: m,
	}
}

func (h *Hub) Register(conn domain.Connection) {
	label := domain.Label(conn.Username())

	h.mu.Lock()
	if _, exists := h.clients[conn]; exists {
		h.mu.Unlock()
		return
	}
	h.clients[conn] = label
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnections(count)
	slog.Info("client connected", "clientId", conn.ID(), "username", label, "clients", count)
}

// Unregister removes conn and reports whether it was registered.
func (h *Hub) Unregister(conn domain.Connection) bool {
	h.mu.Lock()
	label, exists := h.clients[conn]
	if !exists {
		h.mu.Unlock()
		return false
	}
	delete(h.clients, conn)
	count := len(h.clients)
	h.mu.Unlock()

	h.metrics.SetConnections(count)
	slog.Info("client disconnected", "clientId", conn.ID(), "username", label, "clients", count)
	return true
}

// Broadcast sends data to every open connection except exclude. Connections
// that are closed or fail the send are unregistered; the rest still receive.
func (h *Hub) Broadcast(data []byte, exclude domain.Connection) {
	for _, conn := range h.Snapshot() {
		if exclude != nil && conn == exclude {
			continue
		}
		if !conn.IsOpen() {
			h.prune(conn, domain.ErrConnectionClosed)
			continue
		}
		if err := conn.Send(data); err != nil {
			h.prune(conn, err)
		}
	}
}

func (h *Hub) prune(conn domain.Connection, reason error) {
	if h.Unregister(conn) {
		h.metrics.ConnectionPruned()
		slog.Warn("pruned client", "clientId", conn.ID(), "error", reason)
	}
}

// Snapshot returns the registered connections at this instant.
func (h *Hub) Snapshot() []domain.Connection {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]domain.Connection, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	return conns
}

// Label returns the identity label recorded when conn was registered.
func (h *Hub) Label(conn domain.Connection) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	label, ok := h.clients[conn]
	return label, ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
