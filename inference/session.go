package inference

import (
	"context"
	"image"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/edgevision-ai/go-detect/images"
	"github.com/edgevision-ai/go-detect/models/model"
)

// Options configures an ONNX Runtime session. All configuration is explicit;
// nothing is read from process-global state.
type Options struct {
	// ModelPath is the path to the ONNX model file.
	ModelPath string
	// LibraryPath overrides the ONNX Runtime shared library location.
	// Empty selects a platform default under third_party/.
	LibraryPath string
	// Model describes the detection head layout of the exported model.
	Model model.Config
	// InputName is the model's input tensor name.
	InputName string
	// OutputNames are the detection-layer output names, coarsest scale
	// first, one per configured layer.
	OutputNames []string
	// IntraOpThreads bounds the threads ONNX Runtime uses per operator.
	// Zero keeps the runtime default.
	IntraOpThreads int
}

// Session runs an ONNX detection model and hands its raw per-scale outputs
// to the decoder. It implements Engine.
type Session struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	outputs []*ort.Tensor[float32]
	config  model.Config

	// ONNX Runtime sessions reuse bound tensors across Run calls, so a
	// forward pass is single-flight.
	mu sync.Mutex
}

// NewSession initializes the ONNX Runtime environment and builds a session
// with one bound output tensor per detection layer.
//
// Arguments:
//   - opts: Session options; opts.Model must validate and opts.OutputNames
//     must name one output per layer.
//
// Returns:
//   - *Session: The ready session.
//   - error: Initialization or binding failure.
func NewSession(opts Options) (*Session, error) {
	if err := opts.Model.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid model config")
	}
	if len(opts.OutputNames) != len(opts.Model.Layers) {
		return nil, errors.Errorf("got %d output names, model config has %d layers",
			len(opts.OutputNames), len(opts.Model.Layers))
	}
	if opts.InputName == "" {
		return nil, errors.New("input name is required")
	}

	libPath := opts.LibraryPath
	if libPath == "" {
		libPath = defaultSharedLibPath()
	}
	if !ort.IsInitialized() {
		ort.SetSharedLibraryPath(libPath)
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, errors.Wrap(err, "initializing onnxruntime environment")
		}
	}

	inputShape := ort.NewShape(1, 3, int64(opts.Model.InputHeight), int64(opts.Model.InputWidth))
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, errors.Wrap(err, "creating input tensor")
	}

	per := int64(opts.Model.ValuesPerAnchor())
	outputs := make([]*ort.Tensor[float32], len(opts.Model.Layers))
	destroyAll := func() {
		input.Destroy()
		for _, t := range outputs {
			if t != nil {
				t.Destroy()
			}
		}
	}
	for i, layer := range opts.Model.Layers {
		shape := ort.NewShape(1, int64(len(layer.Anchors))*per,
			int64(layer.GridH), int64(layer.GridW))
		t, tensorErr := ort.NewEmptyTensor[float32](shape)
		if tensorErr != nil {
			destroyAll()
			return nil, errors.Wrapf(tensorErr, "creating output tensor %d", i)
		}
		outputs[i] = t
	}

	sessionOptions, err := ort.NewSessionOptions()
	if err != nil {
		destroyAll()
		return nil, errors.Wrap(err, "creating session options")
	}
	defer sessionOptions.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessionOptions.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			destroyAll()
			return nil, errors.Wrap(err, "setting intra-op threads")
		}
	}

	outputTensors := make([]ort.ArbitraryTensor, len(outputs))
	for i, t := range outputs {
		outputTensors[i] = t
	}
	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		opts.OutputNames,
		[]ort.ArbitraryTensor{input},
		outputTensors,
		sessionOptions,
	)
	if err != nil {
		destroyAll()
		return nil, errors.Wrapf(err, "creating session for %s", opts.ModelPath)
	}

	return &Session{
		session: session,
		input:   input,
		outputs: outputs,
		config:  opts.Model,
	}, nil
}

// Predict preprocesses the image, runs a forward pass, and returns one raw
// tensor per detection layer. Output data is copied out of the bound
// runtime tensors so the caller's view stays valid across later calls.
func (s *Session) Predict(ctx context.Context, img image.Image) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	preprocessed, err := images.Preprocess(img, images.PreprocessConfig{
		InputWidth:      s.config.InputWidth,
		InputHeight:     s.config.InputHeight,
		KeepAspectRatio: true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "preprocessing input image")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.input.GetData(), preprocessed.Data)
	if err := s.session.Run(); err != nil {
		return nil, errors.Wrap(err, "running inference")
	}

	raw := make([]*tensor.Dense, len(s.outputs))
	per := s.config.ValuesPerAnchor()
	for i, out := range s.outputs {
		layer := s.config.Layers[i]
		data := make([]float32, len(out.GetData()))
		copy(data, out.GetData())
		raw[i] = tensor.New(
			tensor.WithShape(1, len(layer.Anchors)*per, layer.GridH, layer.GridW),
			tensor.WithBacking(data),
		)
	}

	return &Prediction{Outputs: raw, Preprocess: preprocessed}, nil
}

// Close releases the session and its bound tensors.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.input != nil {
		s.input.Destroy()
		s.input = nil
	}
	for _, t := range s.outputs {
		t.Destroy()
	}
	s.outputs = nil
	if s.session != nil {
		s.session.Destroy()
		s.session = nil
	}
	return nil
}

// defaultSharedLibPath picks the bundled ONNX Runtime library for the
// current platform.
func defaultSharedLibPath() string {
	switch runtime.GOOS {
	case "windows":
		return "third_party/onnxruntime.dll"
	case "darwin":
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.dylib"
		}
		return "third_party/onnxruntime_amd64.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "third_party/onnxruntime_arm64.so"
		}
		return "third_party/onnxruntime.so"
	}
}
