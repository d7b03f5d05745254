package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeOperation_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, op DrawingOperation)
	}{
		{
			name:    "circle",
			payload: `{"id":"c1","type":"draw","shape":"circle","color":"#ff0000","start":[1,2],"end":[3,4],"radius":5.5}`,
			check: func(t *testing.T, op DrawingOperation) {
				c, ok := op.Geometry.(*Circle)
				require.True(t, ok)
				assert.Equal(t, 5.5, c.Radius)
				assert.Equal(t, []float64{1, 2}, c.Start)
				assert.Equal(t, []float64{3, 4}, c.End)
			},
		},
		{
			name:    "rectangle",
			payload: `{"id":"r1","type":"draw","shape":"rectangle","color":"blue","center":[0,0,0],"width":10,"height":4}`,
			check: func(t *testing.T, op DrawingOperation) {
				r, ok := op.Geometry.(*Rectangle)
				require.True(t, ok)
				assert.Equal(t, 10.0, r.Width)
				assert.Equal(t, 4.0, r.Height)
			},
		},
		{
			name:    "line",
			payload: `{"id":"l1","shape":"line","start":[-5,0,0],"end":[5,0,0],"rotation":[0,0,90]}`,
			check: func(t *testing.T, op DrawingOperation) {
				l, ok := op.Geometry.(*Line)
				require.True(t, ok)
				assert.Equal(t, []float64{5, 0, 0}, l.End)
				assert.JSONEq(t, `[0,0,90]`, string(op.Rotation))
			},
		},
		{
			name:    "triangle",
			payload: `{"id":"t1","shape":"triangle","vertices":[[0,0],[1,0],[0,1]]}`,
			check: func(t *testing.T, op DrawingOperation) {
				tr, ok := op.Geometry.(*Triangle)
				require.True(t, ok)
				assert.Len(t, tr.Vertices, 3)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := DecodeOperation([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, Shape(tt.name), op.Shape())
			tt.check(t, op)
		})
	}
}

func TestDecodeOperation_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr error
	}{
		{name: "not json", payload: "not json"},
		{name: "missing shape", payload: `{"id":"x","color":"red"}`, wantErr: ErrMissingShape},
		{name: "unknown shape", payload: `{"id":"x","shape":"hexagon"}`, wantErr: ErrUnknownShape},
		{name: "bad geometry", payload: `{"id":"x","shape":"circle","radius":"big"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOperation([]byte(tt.payload))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestDrawingOperation_MarshalFlat(t *testing.T) {
	op := DrawingOperation{
		ID:       "c1",
		Type:     "draw",
		Color:    "red",
		Geometry: &Circle{Radius: 2},
	}

	data, err := json.Marshal(op)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "c1", fields["id"])
	assert.Equal(t, "circle", fields["shape"])
	assert.Equal(t, 2.0, fields["radius"])
	assert.NotContains(t, fields, "rotation")
}

func TestDrawingOperation_KeepsUnmodeledFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kept    map[string]string
	}{
		{
			name:    "line from the browser client",
			payload: `{"id":"x2","type":"draw","shape":"line","color":"#000","rotation":0,"points":[1,2,3,4],"lineWidth":2}`,
			kept:    map[string]string{"rotation": `0`, "points": `[1,2,3,4]`, "lineWidth": `2`},
		},
		{
			name:    "rectangle with corners",
			payload: `{"id":"r1","shape":"rectangle","start":[0,0],"end":[5,5],"width":5,"height":5}`,
			kept:    map[string]string{"start": `[0,0]`, "end": `[5,5]`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, err := DecodeOperation([]byte(tt.payload))
			require.NoError(t, err)

			data, err := json.Marshal(op)
			require.NoError(t, err)
			assert.JSONEq(t, tt.payload, string(data))

			var fields map[string]json.RawMessage
			require.NoError(t, json.Unmarshal(data, &fields))
			for name, want := range tt.kept {
				assert.Equal(t, want, string(fields[name]), name)
				assert.Equal(t, want, string(op.Field(name)), name)
			}
		})
	}
}

func TestDrawingOperation_MarshalWithoutGeometry(t *testing.T) {
	_, err := json.Marshal(DrawingOperation{ID: "x"})
	assert.ErrorIs(t, err, ErrMissingShape)
}
