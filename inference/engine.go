// Package inference - Inference engine interface and the ONNX Runtime
// backed session implementation.
package inference

import (
	"context"
	"image"

	"gorgonia.org/tensor"

	"github.com/edgevision-ai/go-detect/images"
)

// Prediction is the raw result of one forward pass: one tensor per
// detection layer plus the preprocessing geometry needed to map decoded
// boxes back to the source image.
type Prediction struct {
	// Outputs are the raw detection-layer tensors, coarsest scale first,
	// matching the model config's layer order.
	Outputs []*tensor.Dense
	// Preprocess records the resize/letterbox applied to the input.
	Preprocess *images.PreprocessResult
}

// Engine is the interface the postprocessing pipeline consumes raw tensors
// from. Implementations own their model resources and must be closed.
type Engine interface {
	Predict(ctx context.Context, img image.Image) (*Prediction, error)
	Close() error
}
