package history

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/andreyestevam/collaborative-whiteboard/domain"
	"github.com/andreyestevam/collaborative-whiteboard/metrics"
)

const DefaultMaxDepth = 100

// Publisher receives the serialized state after every commit, undo and redo.
type Publisher interface {
	Broadcast(data []byte, exclude domain.Connection)
}

// Manager owns the canonical whiteboard state and its undo/redo history.
// A nil current state means nothing has been saved yet; it is a valid undo
// target.
type Manager struct {
	current  *domain.WhiteboardState
	undo     []*domain.WhiteboardState
	redo     []*domain.WhiteboardState
	maxDepth int
	mu       sync.RWMutex

	publisher Publisher
	metrics   *metrics.Metrics
}

func NewManager(publisher Publisher, maxDepth int, m *metrics.Metrics) *Manager {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Manager{
		maxDepth:  maxDepth,
		publisher: publisher,
		metrics:   m,
	}
}

// Commit makes state the current state. The manager takes ownership of it.
func (m *Manager) Commit(state *domain.WhiteboardState) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.undo = m.push(m.undo, m.current)
	m.redo = nil
	m.current = state

	m.metrics.HistoryOperation("commit")
	m.publishLocked()
}

// Undo restores the previous state. With nothing to undo the current state is
// left alone but still published.
func (m *Manager) Undo() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.undo); n > 0 {
		m.redo = m.push(m.redo, m.current)
		m.current = m.undo[n-1]
		m.undo[n-1] = nil
		m.undo = m.undo[:n-1]
	}

	m.metrics.HistoryOperation("undo")
	m.publishLocked()
}

// Redo reapplies the most recently undone state. With nothing to redo the
// current state is left alone but still published.
func (m *Manager) Redo() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n := len(m.redo); n > 0 {
		m.undo = m.push(m.undo, m.current)
		m.current = m.redo[n-1]
		m.redo[n-1] = nil
		m.redo = m.redo[:n-1]
	}

	m.metrics.HistoryOperation("redo")
	m.publishLocked()
}

// Apply runs mutate against a copy of the current state (or a new empty state)
// and commits the copy if mutate reports a change.
func (m *Manager) Apply(mutate func(s *domain.WhiteboardState) bool) (*domain.WhiteboardState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.current.Clone()
	if next == nil {
		next = domain.NewWhiteboardState()
	}
	if !mutate(next) {
		return m.current.Clone(), false
	}

	m.undo = m.push(m.undo, m.current)
	m.redo = nil
	m.current = next

	m.metrics.HistoryOperation("commit")
	m.publishLocked()
	return next.Clone(), true
}

// Current returns a copy of the current state, or nil if none was saved.
func (m *Manager) Current() *domain.WhiteboardState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.Clone()
}

// Depth reports the sizes of the undo and redo stacks.
func (m *Manager) Depth() (undo, redo int) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.undo), len(m.redo)
}

func (m *Manager) push(stack []*domain.WhiteboardState, s *domain.WhiteboardState) []*domain.WhiteboardState {
	stack = append(stack, s)
	if over := len(stack) - m.maxDepth; over > 0 {
		clear(stack[:over])
		stack = stack[over:]
	}
	return stack
}

// publishLocked sends the current state while m.mu is held so that clients
// see states in the order they were committed.
func (m *Manager) publishLocked() {
	if m.publisher == nil {
		return
	}
	data, err := json.Marshal(m.current)
	if err != nil {
		slog.Error("state encode failed", "error", err)
		return
	}
	m.publisher.Broadcast(data, nil)
	m.metrics.Broadcast(metrics.KindState)

	version := int64(0)
	if m.current != nil {
		version = m.current.Version
	}
	slog.Debug("state published", "version", version, "undo", len(m.undo), "redo", len(m.redo))
}
