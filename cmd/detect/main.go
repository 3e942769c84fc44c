// Command detect runs a YOLOv3 ONNX model over images and writes annotated
// copies alongside a detection summary.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"

	"github.com/edgevision-ai/go-detect/detector"
	"github.com/edgevision-ai/go-detect/inference"
	"github.com/edgevision-ai/go-detect/models/model"
	"github.com/edgevision-ai/go-detect/models/postprocess"
	"github.com/edgevision-ai/go-detect/models/yolov3"
	"github.com/edgevision-ai/go-detect/util"
)

// annotateOptions enumerates the recognized rendering options.
type annotateOptions struct {
	// Thickness is the box line thickness in pixels.
	Thickness int
	// BoxColor is the box and label color.
	BoxColor color.RGBA
	// ShowLabels controls whether class name and confidence are drawn.
	ShowLabels bool
}

func defaultAnnotateOptions() annotateOptions {
	return annotateOptions{
		Thickness:  2,
		BoxColor:   color.RGBA{0, 255, 0, 255},
		ShowLabels: true,
	}
}

func main() {
	var (
		modelPath  string
		libPath    string
		imagePath  string
		imageDir   string
		outputDir  string
		inputSize  int
		confidence float64
		iou        float64
		threads    int
		hideLabels bool
	)
	flag.StringVar(&modelPath, "model", "yolov3.onnx", "Path to the YOLOv3 ONNX model file")
	flag.StringVar(&libPath, "lib", "", "Path to the onnxruntime shared library (empty for platform default)")
	flag.StringVar(&imagePath, "image", "", "Path to a single image file")
	flag.StringVar(&imageDir, "dir", "", "Directory of images to process")
	flag.StringVar(&outputDir, "output-dir", "detections", "Output directory for annotated images")
	flag.IntVar(&inputSize, "input-size", 416, "Network input size (multiple of 32)")
	flag.Float64Var(&confidence, "confidence", 0.25, "Confidence threshold in [0,1]")
	flag.Float64Var(&iou, "iou", 0.45, "IoU suppression threshold in [0,1]")
	flag.IntVar(&threads, "threads", 0, "Intra-op threads for onnxruntime (0 for runtime default)")
	flag.BoolVar(&hideLabels, "hide-labels", false, "Draw boxes without class labels")
	flag.Parse()

	paths, err := collectInputs(imagePath, imageDir)
	if err != nil {
		log.Fatal(err)
	}

	cfg := yolov3.COCOConfig(inputSize)
	session, err := inference.NewSession(inference.Options{
		ModelPath:      modelPath,
		LibraryPath:    libPath,
		Model:          cfg,
		InputName:      "input_1",
		OutputNames:    []string{"conv_81", "conv_93", "conv_105"},
		IntraOpThreads: threads,
	})
	if err != nil {
		log.Fatalf("initializing inference session: %v", err)
	}

	decoder, err := yolov3.NewDecoder(yolov3.Options{Config: cfg})
	if err != nil {
		log.Fatalf("building decoder: %v", err)
	}

	pipeline, err := detector.New(detector.Config{
		Engine:  session,
		Decoder: decoder,
		NMS: postprocess.NMSConfig{
			ConfidenceThreshold: float32(confidence),
			IoUThreshold:        float32(iou),
		},
	})
	if err != nil {
		log.Fatalf("building detector: %v", err)
	}
	defer pipeline.Close()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("creating output directory: %v", err)
	}

	opts := defaultAnnotateOptions()
	opts.ShowLabels = !hideLabels

	ctx := context.Background()
	for _, path := range paths {
		if err := processImage(ctx, pipeline, path, outputDir, opts); err != nil {
			log.Printf("skipping %s: %v", path, err)
		}
	}
}

// collectInputs resolves the -image/-dir flags into a list of image paths.
func collectInputs(imagePath, imageDir string) ([]string, error) {
	switch {
	case imagePath != "" && imageDir != "":
		return nil, fmt.Errorf("use either -image or -dir, not both")
	case imagePath != "":
		return []string{imagePath}, nil
	case imageDir != "":
		files, err := util.LoadDirectoryImageFiles(imageDir)
		if err != nil {
			return nil, err
		}
		paths := make([]string, len(files))
		for i, f := range files {
			paths[i] = f.Path
		}
		return paths, nil
	default:
		return nil, fmt.Errorf("one of -image or -dir is required")
	}
}

func processImage(
	ctx context.Context,
	pipeline *detector.Detector,
	path, outputDir string,
	opts annotateOptions,
) error {
	img, err := util.LoadImage(path)
	if err != nil {
		return err
	}

	detections, err := pipeline.Detect(ctx, img)
	if err != nil {
		return err
	}

	log.Printf("%s: %d detections", path, len(detections))
	for _, d := range detections {
		log.Printf("  %s (%.2f): (%.1f, %.1f)-(%.1f, %.1f)",
			model.ClassName(model.YOLOClasses, d.Class), d.Score,
			d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2)
	}

	outPath := filepath.Join(outputDir, filepath.Base(path))
	return writeAnnotated(path, outPath, detections, opts)
}

// writeAnnotated draws the detections onto the source image and writes the
// result.
func writeAnnotated(srcPath, dstPath string, detections []postprocess.Detection, opts annotateOptions) error {
	mat := gocv.IMRead(srcPath, gocv.IMReadColor)
	if mat.Empty() {
		return fmt.Errorf("failed to read %s for annotation", srcPath)
	}
	defer mat.Close()

	for _, d := range detections {
		rect := image.Rect(int(d.Box.X1), int(d.Box.Y1), int(d.Box.X2), int(d.Box.Y2))
		gocv.Rectangle(&mat, rect, opts.BoxColor, opts.Thickness)
		if opts.ShowLabels {
			label := fmt.Sprintf("%s %.2f",
				model.ClassName(model.YOLOClasses, d.Class), d.Score)
			gocv.PutText(&mat, label,
				image.Pt(rect.Min.X, rect.Min.Y-5),
				gocv.FontHersheySimplex, 0.5, opts.BoxColor, 1)
		}
	}

	if ok := gocv.IMWrite(dstPath, mat); !ok {
		return fmt.Errorf("failed to write %s", dstPath)
	}
	return nil
}
