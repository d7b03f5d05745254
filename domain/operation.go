package domain

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrMissingShape = errors.New("missing shape")
	ErrUnknownShape = errors.New("unknown shape")
)

type Shape string

const (
	ShapeCircle    Shape = "circle"
	ShapeRectangle Shape = "rectangle"
	ShapeLine      Shape = "line"
	ShapeTriangle  Shape = "triangle"
)

// Geometry is the shape-specific part of a DrawingOperation.
type Geometry interface {
	Shape() Shape
}

type Circle struct {
	Start  []float64 `json:"start,omitempty"`
	End    []float64 `json:"end,omitempty"`
	Radius float64   `json:"radius,omitempty"`
}

type Rectangle struct {
	Center []float64 `json:"center,omitempty"`
	Width  float64   `json:"width,omitempty"`
	Height float64   `json:"height,omitempty"`
}

type Line struct {
	Start []float64 `json:"start,omitempty"`
	End   []float64 `json:"end,omitempty"`
}

type Triangle struct {
	Vertices [][]float64 `json:"vertices,omitempty"`
}

func (*Circle) Shape() Shape    { return ShapeCircle }
func (*Rectangle) Shape() Shape { return ShapeRectangle }
func (*Line) Shape() Shape      { return ShapeLine }
func (*Triangle) Shape() Shape  { return ShapeTriangle }

// DrawingOperation is one drawing instruction. On the wire it is a flat JSON
// object: the envelope fields plus the fields of its geometry. Fields the
// server does not model (points, lineWidth, ...) are kept verbatim and written
// back out unchanged.
type DrawingOperation struct {
	ID       string
	Type     string
	Color    string
	Rotation json.RawMessage
	Geometry Geometry

	fields map[string]json.RawMessage
}

type envelope struct {
	ID       string          `json:"id,omitempty"`
	Type     string          `json:"type,omitempty"`
	Shape    Shape           `json:"shape"`
	Color    string          `json:"color,omitempty"`
	Rotation json.RawMessage `json:"rotation,omitempty"`
}

// NewOperationID returns a fresh globally unique operation id.
func NewOperationID() string {
	return uuid.NewString()
}

func (op DrawingOperation) Shape() Shape {
	if op.Geometry == nil {
		return ""
	}
	return op.Geometry.Shape()
}

func newGeometry(shape Shape) (Geometry, error) {
	switch shape {
	case ShapeCircle:
		return &Circle{}, nil
	case ShapeRectangle:
		return &Rectangle{}, nil
	case ShapeLine:
		return &Line{}, nil
	case ShapeTriangle:
		return &Triangle{}, nil
	case "":
		return nil, ErrMissingShape
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, shape)
	}
}

// DecodeOperation parses a drawing payload received from a client.
func DecodeOperation(data []byte) (DrawingOperation, error) {
	var op DrawingOperation
	if err := json.Unmarshal(data, &op); err != nil {
		return DrawingOperation{}, err
	}
	return op, nil
}

func (op *DrawingOperation) UnmarshalJSON(data []byte) error {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	geom, err := newGeometry(env.Shape)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, geom); err != nil {
		return fmt.Errorf("decode %s geometry: %w", env.Shape, err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	*op = DrawingOperation{
		ID:       env.ID,
		Type:     env.Type,
		Color:    env.Color,
		Rotation: env.Rotation,
		Geometry: geom,
		fields:   fields,
	}
	return nil
}

// Field returns the raw JSON of a payload field as received, or nil.
func (op DrawingOperation) Field(name string) json.RawMessage {
	return op.fields[name]
}

func (op DrawingOperation) MarshalJSON() ([]byte, error) {
	if op.Geometry == nil {
		return nil, ErrMissingShape
	}
	fields := make(map[string]json.RawMessage, len(op.fields)+5)
	for k, f := range op.fields {
		fields[k] = f
	}
	if err := mergeFields(fields, op.Geometry); err != nil {
		return nil, err
	}
	env := envelope{
		ID:       op.ID,
		Type:     op.Type,
		Shape:    op.Geometry.Shape(),
		Color:    op.Color,
		Rotation: op.Rotation,
	}
	if err := mergeFields(fields, env); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func mergeFields(dst map[string]json.RawMessage, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return err
	}
	for k, f := range fields {
		dst[k] = f
	}
	return nil
}
