package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrMissingTimestamp = errors.New("timestamp cannot be null or empty")
	ErrInvalidTimestamp = errors.New("timestamp is not ISO-8601")
	ErrInvalidVersion   = errors.New("version must be greater than 0")
	ErrOperationID      = errors.New("operation id does not match its key")
)

// timestampLayouts are the ISO-8601 forms accepted from clients.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// WhiteboardState is the full set of drawing operations at one version.
type WhiteboardState struct {
	Operations map[string]DrawingOperation `json:"operations"`
	Version    int64                       `json:"version"`
	Timestamp  string                      `json:"timestamp"`
}

// NewWhiteboardState returns an empty state at version 1.
func NewWhiteboardState() *WhiteboardState {
	return &WhiteboardState{
		Operations: make(map[string]DrawingOperation),
		Version:    1,
		Timestamp:  formatTimestamp(time.Now()),
	}
}

func ParseTimestamp(ts string) (time.Time, error) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return time.Time{}, ErrMissingTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, ts)
}

// Validate checks the fields a client must supply when saving a state.
func (s *WhiteboardState) Validate() error {
	if _, err := ParseTimestamp(s.Timestamp); err != nil {
		return err
	}
	if s.Version <= 0 {
		return ErrInvalidVersion
	}
	for key, op := range s.Operations {
		if op.ID != "" && op.ID != key {
			return fmt.Errorf("%w: key %q, id %q", ErrOperationID, key, op.ID)
		}
	}
	return nil
}

// Normalize replaces a nil operations map with an empty one and fills
// missing operation ids from their keys.
func (s *WhiteboardState) Normalize() {
	if s.Operations == nil {
		s.Operations = make(map[string]DrawingOperation)
	}
	for key, op := range s.Operations {
		if op.ID == "" {
			op.ID = key
			s.Operations[key] = op
		}
	}
}

// Add stores op, assigning an id when it has none. It refuses an id that is
// already present and leaves the state untouched in that case.
func (s *WhiteboardState) Add(op DrawingOperation) (DrawingOperation, bool) {
	s.Normalize()
	if op.ID == "" {
		op.ID = NewOperationID()
	}
	if _, exists := s.Operations[op.ID]; exists {
		return op, false
	}
	s.Operations[op.ID] = op
	s.touch()
	return op, true
}

// Update replaces the operation with op.ID and reports whether it existed.
// The version advances either way.
func (s *WhiteboardState) Update(op DrawingOperation) bool {
	s.Normalize()
	_, existed := s.Operations[op.ID]
	if existed {
		s.Operations[op.ID] = op
	}
	s.touch()
	return existed
}

// Remove deletes the operation with id and reports whether it existed.
// The version advances either way.
func (s *WhiteboardState) Remove(id string) bool {
	s.Normalize()
	_, existed := s.Operations[id]
	delete(s.Operations, id)
	s.touch()
	return existed
}

func (s *WhiteboardState) Get(id string) (DrawingOperation, bool) {
	op, ok := s.Operations[id]
	return op, ok
}

func (s *WhiteboardState) Len() int {
	return len(s.Operations)
}

// Clone returns a copy whose operations map is independent of s. Operations
// themselves are treated as immutable values and shared.
func (s *WhiteboardState) Clone() *WhiteboardState {
	if s == nil {
		return nil
	}
	ops := make(map[string]DrawingOperation, len(s.Operations))
	for id, op := range s.Operations {
		ops[id] = op
	}
	return &WhiteboardState{
		Operations: ops,
		Version:    s.Version,
		Timestamp:  s.Timestamp,
	}
}

func (s *WhiteboardState) touch() {
	s.Version++
	now := time.Now()
	if prev, err := ParseTimestamp(s.Timestamp); err == nil && now.Before(prev) {
		now = prev
	}
	s.Timestamp = formatTimestamp(now)
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
