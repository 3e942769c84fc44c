package benchmark

import (
	"fmt"

	"github.com/edgevision-ai/go-detect/models/postprocess"
	"github.com/edgevision-ai/go-detect/models/yolov3"
)

// DefaultScenarios covers the common COCO input resolutions at single and
// full parallelism.
func DefaultScenarios() []Scenario {
	sizes := []int{416, 608}
	scenarios := make([]Scenario, 0, len(sizes)*2)
	for _, size := range sizes {
		for _, workers := range []int{1, 0} {
			mode := "sequential"
			if workers == 0 {
				mode = "parallel"
			}
			scenarios = append(scenarios, Scenario{
				Name:       fmt.Sprintf("%dx%d-%s", size, size, mode),
				Model:      yolov3.COCOConfig(size),
				NMS:        postprocess.DefaultNMSConfig(),
				Images:     64,
				Workers:    workers,
				WarmupRuns: 2,
				Seed:       1,
			})
		}
	}
	return scenarios
}
