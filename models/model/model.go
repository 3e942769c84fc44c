// Package model - Shared metadata describing a detection model's output
// layout: input resolution, class count, and the per-scale grid, stride, and
// anchor templates needed to interpret its raw tensors.
package model

import "fmt"

// Anchor is a predefined (width, height) box template, in pixels of the
// network input resolution, used as a multiplicative prior for decoding box
// sizes at one detection scale.
type Anchor struct {
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// Layer describes one detection scale of the model.
type Layer struct {
	// GridW is the number of horizontal cells at this scale.
	GridW int `json:"grid_w" yaml:"grid_w"`
	// GridH is the number of vertical cells at this scale.
	GridH int `json:"grid_h" yaml:"grid_h"`
	// Stride is the downsampling factor relative to the input resolution;
	// it converts grid-cell coordinates to pixel coordinates.
	Stride int `json:"stride" yaml:"stride"`
	// Anchors are the box templates assigned to this scale.
	Anchors []Anchor `json:"anchors" yaml:"anchors"`
}

// Config is the static metadata needed to interpret a model's raw detection
// tensors. It is fixed per model and supplied at decoder-configuration time,
// never re-derived per call.
type Config struct {
	// InputWidth is the network input width in pixels.
	InputWidth int `json:"input_width" yaml:"input_width"`
	// InputHeight is the network input height in pixels.
	InputHeight int `json:"input_height" yaml:"input_height"`
	// NumClasses is the number of object classes the model predicts.
	NumClasses int `json:"num_classes" yaml:"num_classes"`
	// Layers are the detection scales, one raw tensor each.
	Layers []Layer `json:"layers" yaml:"layers"`
}

// Validate checks that the configuration is internally consistent.
//
// Returns:
//   - error: A description of the first inconsistency found, nil otherwise.
func (c *Config) Validate() error {
	if c.InputWidth <= 0 || c.InputHeight <= 0 {
		return fmt.Errorf("invalid input resolution %dx%d", c.InputWidth, c.InputHeight)
	}
	if c.NumClasses <= 0 {
		return fmt.Errorf("invalid class count %d", c.NumClasses)
	}
	if len(c.Layers) == 0 {
		return fmt.Errorf("config has no detection layers")
	}
	for i, layer := range c.Layers {
		if layer.GridW <= 0 || layer.GridH <= 0 {
			return fmt.Errorf("layer %d: invalid grid %dx%d", i, layer.GridW, layer.GridH)
		}
		if layer.Stride <= 0 {
			return fmt.Errorf("layer %d: invalid stride %d", i, layer.Stride)
		}
		if len(layer.Anchors) == 0 {
			return fmt.Errorf("layer %d: no anchors", i)
		}
		for j, anchor := range layer.Anchors {
			if anchor.Width <= 0 || anchor.Height <= 0 {
				return fmt.Errorf("layer %d: anchor %d has non-positive size %gx%g",
					i, j, anchor.Width, anchor.Height)
			}
		}
	}
	return nil
}

// ValuesPerAnchor is the number of raw fields per anchor prediction:
// 4 box fields, 1 objectness field, and one score per class.
func (c *Config) ValuesPerAnchor() int {
	return 5 + c.NumClasses
}
