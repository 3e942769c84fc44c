package yolov3

import "github.com/edgevision-ai/go-detect/models/model"

// Standard YOLOv3 strides, coarsest scale first, and the anchor templates
// published with the COCO-trained weights.
var (
	cocoStrides = []int{32, 16, 8}

	cocoAnchors = [][]model.Anchor{
		{{Width: 116, Height: 90}, {Width: 156, Height: 198}, {Width: 373, Height: 326}},
		{{Width: 30, Height: 61}, {Width: 62, Height: 45}, {Width: 59, Height: 119}},
		{{Width: 10, Height: 13}, {Width: 16, Height: 30}, {Width: 33, Height: 23}},
	}
)

// COCOConfig returns the layer metadata for a COCO-trained YOLOv3 model at
// the given square input size. 416 and 608 are the common exports; the size
// must be a multiple of 32 to line up with the coarsest grid.
func COCOConfig(inputSize int) model.Config {
	layers := make([]model.Layer, len(cocoStrides))
	for i, stride := range cocoStrides {
		layers[i] = model.Layer{
			GridW:   inputSize / stride,
			GridH:   inputSize / stride,
			Stride:  stride,
			Anchors: cocoAnchors[i],
		}
	}
	return model.Config{
		InputWidth:  inputSize,
		InputHeight: inputSize,
		NumClasses:  len(model.YOLOClasses),
		Layers:      layers,
	}
}
