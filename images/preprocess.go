package images

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// PreprocessConfig defines how an image is prepared for the network input.
type PreprocessConfig struct {
	// InputWidth is the network input width in pixels.
	InputWidth int
	// InputHeight is the network input height in pixels.
	InputHeight int
	// KeepAspectRatio, if true, letterboxes the image instead of stretching.
	KeepAspectRatio bool
	// PadColor is the letterbox padding color. Defaults to the conventional
	// neutral gray used by YOLO-family training pipelines.
	PadColor color.Color
}

// PreprocessResult contains the CHW float32 tensor for one image plus the
// geometry needed to map decoded boxes back to the source resolution.
type PreprocessResult struct {
	// Data is the preprocessed tensor, CHW order, values in [0, 1].
	Data []float32
	// Shape is the tensor shape [C, H, W].
	Shape []int
	// OriginalWidth is the source image width before preprocessing.
	OriginalWidth int
	// OriginalHeight is the source image height before preprocessing.
	OriginalHeight int
	// ScaleX is the horizontal resize factor applied to the source image.
	ScaleX float64
	// ScaleY is the vertical resize factor. Equal to ScaleX when
	// letterboxing preserves the aspect ratio.
	ScaleY float64
	// PadLeft is the letterbox padding on the left edge, in input pixels.
	PadLeft int
	// PadTop is the letterbox padding on the top edge, in input pixels.
	PadTop int
}

// Preprocess resizes and normalizes an image into a CHW float32 tensor
// suitable for the inference engine.
//
// Arguments:
//   - img: The source image.
//   - config: The preprocessing configuration.
//
// Returns:
//   - *PreprocessResult: Tensor data plus rescaling metadata.
//   - error: An error if the configuration or image is unusable.
func Preprocess(img image.Image, config PreprocessConfig) (*PreprocessResult, error) {
	if config.InputWidth <= 0 || config.InputHeight <= 0 {
		return nil, errors.Errorf("invalid input dimensions %dx%d",
			config.InputWidth, config.InputHeight)
	}
	if img == nil {
		return nil, errors.New("image is nil")
	}

	bounds := img.Bounds()
	srcWidth := bounds.Dx()
	srcHeight := bounds.Dy()
	if srcWidth <= 0 || srcHeight <= 0 {
		return nil, errors.Errorf("invalid image dimensions %dx%d", srcWidth, srcHeight)
	}

	result := &PreprocessResult{
		Shape:          []int{3, config.InputHeight, config.InputWidth},
		OriginalWidth:  srcWidth,
		OriginalHeight: srcHeight,
	}

	var prepared image.Image
	if !config.KeepAspectRatio {
		prepared = resize.Resize(uint(config.InputWidth), uint(config.InputHeight),
			img, resize.Lanczos3)
		result.ScaleX = float64(config.InputWidth) / float64(srcWidth)
		result.ScaleY = float64(config.InputHeight) / float64(srcHeight)
	} else {
		scale := math.Min(
			float64(config.InputWidth)/float64(srcWidth),
			float64(config.InputHeight)/float64(srcHeight),
		)
		newWidth := int(float64(srcWidth) * scale)
		newHeight := int(float64(srcHeight) * scale)
		resized := resize.Resize(uint(newWidth), uint(newHeight), img, resize.Lanczos3)

		padColor := config.PadColor
		if padColor == nil {
			padColor = color.RGBA{114, 114, 114, 255}
		}
		padLeft := (config.InputWidth - newWidth) / 2
		padTop := (config.InputHeight - newHeight) / 2

		letterboxed := image.NewRGBA(image.Rect(0, 0, config.InputWidth, config.InputHeight))
		draw.Draw(letterboxed, letterboxed.Bounds(),
			&image.Uniform{padColor}, image.Point{}, draw.Src)
		draw.Draw(letterboxed,
			image.Rect(padLeft, padTop, padLeft+newWidth, padTop+newHeight),
			resized, image.Point{}, draw.Over)

		prepared = letterboxed
		result.ScaleX = scale
		result.ScaleY = scale
		result.PadLeft = padLeft
		result.PadTop = padTop
	}

	result.Data = toTensor(prepared, config.InputWidth, config.InputHeight)
	return result, nil
}

// toTensor converts an image to CHW float32 data normalized to [0, 1].
func toTensor(img image.Image, width, height int) []float32 {
	data := make([]float32, 3*width*height)
	red := data[0 : width*height]
	green := data[width*height : 2*width*height]
	blue := data[2*width*height : 3*width*height]

	origin := img.Bounds().Min
	i := 0
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(origin.X+x, origin.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return data
}

// ScaleToOriginal maps a box from network-input coordinates back to the
// source image's resolution, undoing the letterbox padding and resize.
func ScaleToOriginal(r Rect, p *PreprocessResult) Rect {
	return Rect{
		X1: float32((float64(r.X1) - float64(p.PadLeft)) / p.ScaleX),
		Y1: float32((float64(r.Y1) - float64(p.PadTop)) / p.ScaleY),
		X2: float32((float64(r.X2) - float64(p.PadLeft)) / p.ScaleX),
		Y2: float32((float64(r.Y2) - float64(p.PadTop)) / p.ScaleY),
	}
}
