package yolov3

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/edgevision-ai/go-detect/models/model"
	"github.com/edgevision-ai/go-detect/models/postprocess"
)

// tinyConfig is a minimal single-scale layout: a 2x2 grid at stride 16 with
// one 16x16 anchor and two classes, so each raw tensor holds
// 1*(5+2)*2*2 = 28 floats.
func tinyConfig() model.Config {
	return model.Config{
		InputWidth:  32,
		InputHeight: 32,
		NumClasses:  2,
		Layers: []model.Layer{
			{
				GridW:   2,
				GridH:   2,
				Stride:  16,
				Anchors: []model.Anchor{{Width: 16, Height: 16}},
			},
		},
	}
}

// rawTensor wraps a flat float32 slice in the layer's NCHW shape.
func rawTensor(t *testing.T, cfg model.Config, layer int, data []float32) *tensor.Dense {
	t.Helper()
	l := cfg.Layers[layer]
	want := len(l.Anchors) * cfg.ValuesPerAnchor() * l.GridH * l.GridW
	require.Len(t, data, want)
	return tensor.New(
		tensor.WithShape(1, len(l.Anchors)*cfg.ValuesPerAnchor(), l.GridH, l.GridW),
		tensor.WithBacking(data),
	)
}

// idx addresses raw field f of cell (x, y) for the tiny single-anchor
// layout.
func idx(f, y, x int) int {
	return f*4 + y*2 + x
}

func TestNewDecoderValidation(t *testing.T) {
	_, err := NewDecoder(Options{Config: model.Config{}})
	assert.Error(t, err)

	_, err = NewDecoder(Options{Config: tinyConfig(), MinObjectness: 1.5})
	assert.Error(t, err)

	decoder, err := NewDecoder(Options{Config: tinyConfig()})
	require.NoError(t, err)
	assert.Equal(t, tinyConfig(), decoder.Config())
}

// TestDecodeZeroActivations pins down the transform math: all-zero raw
// activations put every box at its cell center with the anchor's exact
// size and confidence 0.5 everywhere.
func TestDecodeZeroActivations(t *testing.T) {
	cfg := tinyConfig()
	decoder, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)

	detections, err := decoder.Decode([]*tensor.Dense{
		rawTensor(t, cfg, 0, make([]float32, 28)),
	})
	require.NoError(t, err)
	require.Len(t, detections, 4)

	// Cells are visited row-major, so detection 0 is cell (0,0):
	// center (0.5*16, 0.5*16) = (8, 8), box 16x16 around it.
	d := detections[0]
	assert.InDelta(t, 0, d.Box.X1, 1e-5)
	assert.InDelta(t, 0, d.Box.Y1, 1e-5)
	assert.InDelta(t, 16, d.Box.X2, 1e-5)
	assert.InDelta(t, 16, d.Box.Y2, 1e-5)
	assert.InDelta(t, 0.5, d.Objectness, 1e-6)
	require.Len(t, d.ClassScores, 2)
	assert.InDelta(t, 0.5, d.ClassScores[0], 1e-6)
	assert.InDelta(t, 0.5, d.ClassScores[1], 1e-6)
	assert.Equal(t, -1, d.Class)

	// Detection 3 is cell (1,1): center (24, 24).
	last := detections[3]
	assert.InDelta(t, 8, last.Box.X1, 1e-5)
	assert.InDelta(t, 8, last.Box.Y1, 1e-5)
	assert.InDelta(t, 32, last.Box.X2, 1e-5)
	assert.InDelta(t, 32, last.Box.Y2, 1e-5)
}

// TestDecodeTransforms checks each decode transform against hand-computed
// values on one targeted cell.
func TestDecodeTransforms(t *testing.T) {
	cfg := tinyConfig()
	decoder, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)

	data := make([]float32, 28)
	// Cell (x=1, y=0): widen the box to 2x the anchor, near-certain
	// objectness, class 1 at sigmoid(2).
	data[idx(2, 0, 1)] = math32.Log(2) // tw: exp(ln 2) * 16 = 32
	data[idx(4, 0, 1)] = 80            // objectness: sigmoid(80) ~ 1
	data[idx(6, 0, 1)] = 2             // class 1 score

	detections, err := decoder.Decode([]*tensor.Dense{rawTensor(t, cfg, 0, data)})
	require.NoError(t, err)
	require.Len(t, detections, 4)

	// Cell (1,0) is the second detection in row-major order.
	d := detections[1]
	assert.InDelta(t, 24, (d.Box.X1+d.Box.X2)/2, 1e-4) // center x = (1+0.5)*16
	assert.InDelta(t, 8, (d.Box.Y1+d.Box.Y2)/2, 1e-4)  // center y = (0+0.5)*16
	assert.InDelta(t, 32, d.Box.Width(), 1e-4)
	assert.InDelta(t, 16, d.Box.Height(), 1e-4)
	assert.InDelta(t, 1.0, d.Objectness, 1e-6)
	assert.InDelta(t, 0.8807971, d.ClassScores[1], 1e-5)
}

// TestDecodeSigmoidStability drives the logistic transform with
// large-magnitude raw values and expects clean saturation, no overflow.
func TestDecodeSigmoidStability(t *testing.T) {
	cfg := tinyConfig()
	decoder, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)

	data := make([]float32, 28)
	data[idx(4, 0, 0)] = 80
	data[idx(4, 1, 0)] = -80
	data[idx(0, 0, 1)] = -80 // tx saturates to 0
	data[idx(5, 1, 1)] = 80

	detections, err := decoder.Decode([]*tensor.Dense{rawTensor(t, cfg, 0, data)})
	require.NoError(t, err)

	for _, d := range detections {
		require.False(t, math32.IsNaN(d.Objectness))
		assert.GreaterOrEqual(t, d.Objectness, float32(0))
		assert.LessOrEqual(t, d.Objectness, float32(1))
		for _, s := range d.ClassScores {
			require.False(t, math32.IsNaN(s))
			assert.GreaterOrEqual(t, s, float32(0))
			assert.LessOrEqual(t, s, float32(1))
		}
	}

	assert.InDelta(t, 1, detections[0].Objectness, 1e-6)
	assert.InDelta(t, 0, detections[2].Objectness, 1e-6)
	assert.InDelta(t, 1, detections[3].ClassScores[0], 1e-6)
}

func TestDecodeShapeMismatch(t *testing.T) {
	cfg := tinyConfig()
	decoder, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)

	t.Run("wrong grid size", func(t *testing.T) {
		bad := tensor.New(
			tensor.WithShape(1, 7, 3, 3),
			tensor.WithBacking(make([]float32, 63)),
		)
		_, err := decoder.Decode([]*tensor.Dense{bad})
		require.Error(t, err)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Equal(t, 0, confErr.Layer)
	})

	t.Run("wrong dtype", func(t *testing.T) {
		bad := tensor.New(
			tensor.WithShape(1, 7, 2, 2),
			tensor.WithBacking(make([]float64, 28)),
		)
		_, err := decoder.Decode([]*tensor.Dense{bad})
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
	})

	t.Run("wrong layer count", func(t *testing.T) {
		_, err := decoder.Decode(nil)
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
		assert.Equal(t, -1, confErr.Layer)
	})

	t.Run("nil tensor", func(t *testing.T) {
		_, err := decoder.Decode([]*tensor.Dense{nil})
		var confErr *ConfigurationError
		require.ErrorAs(t, err, &confErr)
	})
}

func TestDecodeMultiScale(t *testing.T) {
	cfg := model.Config{
		InputWidth:  64,
		InputHeight: 64,
		NumClasses:  1,
		Layers: []model.Layer{
			{GridW: 2, GridH: 2, Stride: 32, Anchors: []model.Anchor{{Width: 32, Height: 32}}},
			{GridW: 4, GridH: 4, Stride: 16, Anchors: []model.Anchor{{Width: 16, Height: 16}, {Width: 8, Height: 24}}},
		},
	}
	decoder, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)

	outputs := []*tensor.Dense{
		rawTensor(t, cfg, 0, make([]float32, 1*6*2*2)),
		rawTensor(t, cfg, 1, make([]float32, 2*6*4*4)),
	}
	detections, err := decoder.Decode(outputs)
	require.NoError(t, err)
	// Dense output: 2*2*1 + 4*4*2 slots.
	assert.Len(t, detections, 4+32)
}

func TestDecodeDeterministic(t *testing.T) {
	cfg := tinyConfig()
	decoder, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)

	data := make([]float32, 28)
	for i := range data {
		data[i] = float32(i)*0.37 - 5
	}

	first, err := decoder.Decode([]*tensor.Dense{rawTensor(t, cfg, 0, data)})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := decoder.Decode([]*tensor.Dense{rawTensor(t, cfg, 0, data)})
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

// TestDecodeObjectnessFloor verifies the early cutoff is invisible after
// suppression when it sits at or below the confidence threshold.
func TestDecodeObjectnessFloor(t *testing.T) {
	cfg := tinyConfig()
	dense, err := NewDecoder(Options{Config: cfg})
	require.NoError(t, err)
	floored, err := NewDecoder(Options{Config: cfg, MinObjectness: 0.25})
	require.NoError(t, err)

	data := make([]float32, 28)
	data[idx(4, 0, 0)] = 3  // strong objectness
	data[idx(5, 0, 0)] = 3  // strong class 0
	data[idx(4, 1, 1)] = -3 // weak objectness, pruned by the floor
	data[idx(5, 1, 1)] = 3

	raw := func() []*tensor.Dense { return []*tensor.Dense{rawTensor(t, cfg, 0, data)} }

	all, err := dense.Decode(raw())
	require.NoError(t, err)
	pruned, err := floored.Decode(raw())
	require.NoError(t, err)
	assert.Greater(t, len(all), len(pruned))

	nms := postprocess.NMSConfig{ConfidenceThreshold: 0.25, IoUThreshold: 0.45}
	fromAll, err := postprocess.Suppress(all, &nms)
	require.NoError(t, err)
	fromPruned, err := postprocess.Suppress(pruned, &nms)
	require.NoError(t, err)
	assert.Equal(t, fromAll, fromPruned)
}
