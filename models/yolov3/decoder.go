// Package yolov3 - Decode raw YOLOv3-style detection-head tensors into
// candidate detections.
//
// A YOLOv3 head emits one tensor per scale with raw (pre-sigmoid, pre-exp)
// activations laid out [batch, anchors*(5+classes), gridH, gridW]. The
// decoder turns every (cell, anchor) slot into a Detection in absolute
// network-input pixel coordinates: logistic center offsets added to the cell
// position and scaled by the stride, exponential size factors scaled by the
// anchor template, and logistic objectness and class scores.
package yolov3

import (
	"fmt"

	"github.com/chewxy/math32"
	"gorgonia.org/tensor"

	"github.com/edgevision-ai/go-detect/images"
	"github.com/edgevision-ai/go-detect/models/model"
	"github.com/edgevision-ai/go-detect/models/postprocess"
)

// Options configures a Decoder.
type Options struct {
	// Config is the model metadata used to interpret raw tensors.
	Config model.Config
	// MinObjectness optionally prunes slots whose objectness falls below it
	// before class scores are even computed. Zero (the default) keeps the
	// output fully dense. Setting it no higher than the suppression stage's
	// confidence threshold leaves the final surviving set unchanged.
	MinObjectness float32
}

// Decoder converts raw detection-layer tensors into candidate detections.
// It is stateless between calls and safe for concurrent use.
type Decoder struct {
	config        model.Config
	minObjectness float32
}

// NewDecoder validates the model metadata and builds a Decoder.
//
// Arguments:
//   - opts: Decoder options; opts.Config must validate.
//
// Returns:
//   - *Decoder: The configured decoder.
//   - error: A validation error if the metadata is inconsistent.
func NewDecoder(opts Options) (*Decoder, error) {
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid model config: %w", err)
	}
	if opts.MinObjectness < 0 || opts.MinObjectness > 1 {
		return nil, fmt.Errorf("invalid objectness floor %g", opts.MinObjectness)
	}
	return &Decoder{
		config:        opts.Config,
		minObjectness: opts.MinObjectness,
	}, nil
}

// Config returns the model metadata the decoder was built with.
func (d *Decoder) Config() model.Config {
	return d.config
}

// Decode converts one raw tensor per detection layer into a flat detection
// set for one image. The output is dense: one Detection per (scale, cell,
// anchor), unless an objectness floor was configured.
//
// Arguments:
//   - outputs: Raw layer tensors, in the same order as the configured layers.
//
// Returns:
//   - Candidate detections across all scales.
//   - *ConfigurationError if a tensor does not match its layer's layout.
func (d *Decoder) Decode(outputs []*tensor.Dense) ([]postprocess.Detection, error) {
	if len(outputs) != len(d.config.Layers) {
		return nil, &ConfigurationError{
			Layer:  -1,
			Detail: fmt.Sprintf("got %d output tensors, config has %d layers", len(outputs), len(d.config.Layers)),
		}
	}

	total := 0
	for _, layer := range d.config.Layers {
		total += layer.GridW * layer.GridH * len(layer.Anchors)
	}

	detections := make([]postprocess.Detection, 0, total)
	for i, out := range outputs {
		layerDets, err := d.DecodeLayer(i, out)
		if err != nil {
			return nil, err
		}
		detections = append(detections, layerDets...)
	}
	return detections, nil
}

// DecodeLayer decodes the raw tensor of a single detection layer.
//
// Arguments:
//   - layerIdx: Index into the configured layers.
//   - t: The raw tensor, shape [1, anchors*(5+classes), gridH, gridW],
//     float32.
//
// Returns:
//   - Candidate detections for this scale.
//   - *ConfigurationError on any shape, dtype, or index mismatch.
func (d *Decoder) DecodeLayer(layerIdx int, t *tensor.Dense) ([]postprocess.Detection, error) {
	if layerIdx < 0 || layerIdx >= len(d.config.Layers) {
		return nil, &ConfigurationError{
			Layer:  layerIdx,
			Detail: fmt.Sprintf("layer index out of range, config has %d layers", len(d.config.Layers)),
		}
	}
	layer := d.config.Layers[layerIdx]
	per := d.config.ValuesPerAnchor()
	numAnchors := len(layer.Anchors)

	if t == nil {
		return nil, &ConfigurationError{Layer: layerIdx, Detail: "nil output tensor"}
	}
	if t.Dtype() != tensor.Float32 {
		return nil, &ConfigurationError{
			Layer:  layerIdx,
			Detail: fmt.Sprintf("tensor dtype %v, want float32", t.Dtype()),
		}
	}

	want := tensor.Shape{1, numAnchors * per, layer.GridH, layer.GridW}
	if !t.Shape().Eq(want) {
		return nil, &ConfigurationError{
			Layer:  layerIdx,
			Detail: fmt.Sprintf("tensor shape %v, want %v", t.Shape(), want),
		}
	}

	data := t.Data().([]float32)
	gridW := layer.GridW
	gridH := layer.GridH
	stride := float32(layer.Stride)
	cellArea := gridW * gridH

	// raw field f of anchor a at cell (x, y) lives at channel a*per+f in
	// NCHW order.
	at := func(a, f, y, x int) float32 {
		return data[(a*per+f)*cellArea+y*gridW+x]
	}

	detections := make([]postprocess.Detection, 0, cellArea*numAnchors)
	for a, anchor := range layer.Anchors {
		for y := 0; y < gridH; y++ {
			for x := 0; x < gridW; x++ {
				objectness := sigmoid(at(a, 4, y, x))
				if d.minObjectness > 0 && objectness < d.minObjectness {
					continue
				}

				cx := (float32(x) + sigmoid(at(a, 0, y, x))) * stride
				cy := (float32(y) + sigmoid(at(a, 1, y, x))) * stride
				bw := math32.Exp(at(a, 2, y, x)) * anchor.Width
				bh := math32.Exp(at(a, 3, y, x)) * anchor.Height

				classScores := make([]float32, d.config.NumClasses)
				for c := range classScores {
					classScores[c] = sigmoid(at(a, 5+c, y, x))
				}

				detections = append(detections, postprocess.Detection{
					Box: images.Rect{
						X1: cx - bw/2,
						Y1: cy - bh/2,
						X2: cx + bw/2,
						Y2: cy + bh/2,
					},
					Objectness:  objectness,
					ClassScores: classScores,
					Class:       -1,
				})
			}
		}
	}
	return detections, nil
}

// sigmoid is the logistic transform 1 / (1 + exp(-x)), computed on the side
// that keeps the exponent negative so large-magnitude inputs cannot
// overflow.
func sigmoid(x float32) float32 {
	if x >= 0 {
		return 1 / (1 + math32.Exp(-x))
	}
	e := math32.Exp(x)
	return e / (1 + e)
}
