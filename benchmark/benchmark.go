package benchmark

import (
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/edgevision-ai/go-detect/models/model"
	"github.com/edgevision-ai/go-detect/models/postprocess"
	"github.com/edgevision-ai/go-detect/models/yolov3"
)

// Scenario defines one throughput measurement: a model layout, suppression
// parameters, and how many synthetic images to push through the pipeline.
type Scenario struct {
	Name  string                `json:"name"`
	Model model.Config          `json:"model"`
	NMS   postprocess.NMSConfig `json:"nms"`
	// Images is the number of synthetic raw-tensor sets processed.
	Images int `json:"images"`
	// Workers is the number of goroutines processing images. Zero uses
	// GOMAXPROCS. Each image is independent, so this scales linearly until
	// memory bandwidth saturates.
	Workers int `json:"workers"`
	// WarmupRuns are untimed pipeline passes before measurement.
	WarmupRuns int `json:"warmup_runs"`
	// Seed makes the synthetic tensors reproducible.
	Seed int64 `json:"seed"`
}

// Run executes a scenario and reports throughput metrics. The per-image
// decode-and-suppress work is fanned out across Workers goroutines; nothing
// is shared between images beyond the immutable decoder.
func Run(scenario Scenario) (*Metrics, error) {
	if scenario.Images <= 0 {
		return nil, errors.Errorf("scenario %q: image count must be positive", scenario.Name)
	}
	if err := scenario.NMS.Validate(); err != nil {
		return nil, err
	}
	decoder, err := yolov3.NewDecoder(yolov3.Options{Config: scenario.Model})
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %q", scenario.Name)
	}

	workers := scenario.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	inputs := syntheticOutputs(scenario.Model, scenario.Seed)

	var decodeNanos, suppressNanos atomic.Int64

	runOnce := func(timed bool) (int, error) {
		decodeStart := time.Now()
		candidates, decodeErr := decoder.Decode(inputs)
		if decodeErr != nil {
			return 0, decodeErr
		}
		suppressStart := time.Now()
		kept, nmsErr := postprocess.Suppress(candidates, &scenario.NMS)
		if nmsErr != nil {
			return 0, nmsErr
		}
		if timed {
			decodeNanos.Add(suppressStart.Sub(decodeStart).Nanoseconds())
			suppressNanos.Add(time.Since(suppressStart).Nanoseconds())
		}
		return len(kept), nil
	}

	for i := 0; i < scenario.WarmupRuns; i++ {
		if _, err := runOnce(false); err != nil {
			return nil, err
		}
	}

	var (
		wg         sync.WaitGroup
		detections atomic.Int64
		firstErr   atomic.Value
	)
	jobs := make(chan struct{})

	start := time.Now()
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				count, runErr := runOnce(true)
				if runErr != nil {
					firstErr.CompareAndSwap(nil, runErr)
					continue
				}
				detections.Add(int64(count))
			}
		}()
	}
	for i := 0; i < scenario.Images; i++ {
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	total := time.Since(start)

	if stored := firstErr.Load(); stored != nil {
		return nil, stored.(error)
	}

	return &Metrics{
		Scenario:            scenario,
		Timestamp:           time.Now(),
		TotalDuration:       total,
		DecodeDuration:      time.Duration(decodeNanos.Load()),
		SuppressionDuration: time.Duration(suppressNanos.Load()),
		ImagesPerSecond:     float64(scenario.Images) / total.Seconds(),
		DetectionCount:      int(detections.Load()),
		MemoryStats:         captureMemory(),
	}, nil
}

// syntheticOutputs builds one random raw tensor per configured layer,
// values drawn from a rough logit range so decoded confidences span [0, 1].
func syntheticOutputs(config model.Config, seed int64) []*tensor.Dense {
	rng := rand.New(rand.NewSource(seed))
	per := config.ValuesPerAnchor()
	outputs := make([]*tensor.Dense, len(config.Layers))
	for i, layer := range config.Layers {
		size := len(layer.Anchors) * per * layer.GridH * layer.GridW
		data := make([]float32, size)
		for j := range data {
			data[j] = float32(rng.NormFloat64() * 2)
		}
		outputs[i] = tensor.New(
			tensor.WithShape(1, len(layer.Anchors)*per, layer.GridH, layer.GridW),
			tensor.WithBacking(data),
		)
	}
	return outputs
}
