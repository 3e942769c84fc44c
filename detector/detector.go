// Package detector - End-to-end detection pipeline: inference engine to
// decoder to suppressor, with boxes rescaled to the source image.
package detector

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/edgevision-ai/go-detect/images"
	"github.com/edgevision-ai/go-detect/inference"
	"github.com/edgevision-ai/go-detect/models/postprocess"
	"github.com/edgevision-ai/go-detect/models/yolov3"
)

// Config assembles a Detector. Engine and Decoder are required; NMS
// defaults to the conventional thresholds when zero-valued.
type Config struct {
	Engine  inference.Engine
	Decoder *yolov3.Decoder
	NMS     postprocess.NMSConfig
}

// Detector runs the full per-image pipeline. Each image is independent, so
// a single Detector may be shared across goroutines as long as the
// underlying engine supports it.
type Detector struct {
	engine  inference.Engine
	decoder *yolov3.Decoder
	nms     postprocess.NMSConfig
}

// New validates the configuration and builds a Detector.
func New(config Config) (*Detector, error) {
	if config.Engine == nil {
		return nil, errors.New("engine is required")
	}
	if config.Decoder == nil {
		return nil, errors.New("decoder is required")
	}
	nms := config.NMS
	if nms == (postprocess.NMSConfig{}) {
		nms = postprocess.DefaultNMSConfig()
	}
	if err := nms.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		engine:  config.Engine,
		decoder: config.Decoder,
		nms:     nms,
	}, nil
}

// Detect runs inference on one image and returns suppressed detections with
// boxes in the source image's coordinates.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]postprocess.Detection, error) {
	prediction, err := d.engine.Predict(ctx, img)
	if err != nil {
		return nil, errors.Wrap(err, "inference failed")
	}

	candidates, err := d.decoder.Decode(prediction.Outputs)
	if err != nil {
		return nil, err
	}

	kept, err := postprocess.Suppress(candidates, &d.nms)
	if err != nil {
		return nil, err
	}

	for i := range kept {
		kept[i].Box = images.ScaleToOriginal(kept[i].Box, prediction.Preprocess)
	}
	return kept, nil
}

// Close releases the underlying engine.
func (d *Detector) Close() error {
	return d.engine.Close()
}
