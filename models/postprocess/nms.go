package postprocess

import (
	"sort"

	"github.com/edgevision-ai/go-detect/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// ConfidenceThreshold discards candidates whose final confidence
	// (objectness * best class score) falls below it. Must be in [0, 1].
	ConfidenceThreshold float32 `json:"confidence_threshold" yaml:"confidence_threshold"`
	// IoUThreshold is the overlap above which a lower-confidence box is
	// suppressed by a kept one. Must be in [0, 1].
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ClassAgnostic, if true, suppresses across classes. The default
	// (false) only compares boxes assigned to the same class.
	ClassAgnostic bool `json:"class_agnostic" yaml:"class_agnostic"`
}

// DefaultNMSConfig returns the conventional thresholds for YOLO-family
// postprocessing.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		ConfidenceThreshold: 0.25,
		IoUThreshold:        0.45,
	}
}

// Validate rejects thresholds outside [0, 1].
func (c *NMSConfig) Validate() error {
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return &InvalidParameterError{Name: "confidence_threshold", Value: c.ConfidenceThreshold}
	}
	if c.IoUThreshold < 0 || c.IoUThreshold > 1 {
		return &InvalidParameterError{Name: "iou_threshold", Value: c.IoUThreshold}
	}
	return nil
}

// Suppress reduces a detection set to non-overlapping boxes.
//
// Each candidate is first resolved to a single class, the argmax of its
// class scores, with final confidence objectness * class score; candidates
// below the confidence threshold are dropped. A detection therefore never
// survives with more than one class. Survivors are stably sorted by
// descending confidence (equal scores keep their input order, so outputs are
// reproducible) and swept greedily: the highest remaining candidate is kept
// and every candidate of the same class (or any class, when ClassAgnostic)
// whose IoU with it exceeds the threshold is discarded.
//
// The returned slice is ordered globally by descending confidence. Input
// detections are never mutated; resolved copies are returned. An empty input
// yields an empty output, not an error.
//
// Arguments:
//   - detections: Decoded candidates for one image.
//   - config: Suppression parameters, validated before use.
//
// Returns:
//   - Surviving detections with Class and Score resolved.
//   - *InvalidParameterError if a threshold is outside [0, 1].
func Suppress(detections []Detection, config *NMSConfig) ([]Detection, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	candidates := make([]Detection, 0, len(detections))
	for _, d := range detections {
		class, best := bestClass(d.ClassScores)
		if class < 0 {
			continue
		}
		score := d.Objectness * best
		if score < config.ConfidenceThreshold {
			continue
		}
		d.Class = class
		d.Score = score
		candidates = append(candidates, d)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	kept := make([]Detection, 0, len(candidates))
	used := make([]bool, len(candidates))
	for i := range candidates {
		if used[i] {
			continue
		}
		kept = append(kept, candidates[i])
		used[i] = true

		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			if !config.ClassAgnostic && candidates[i].Class != candidates[j].Class {
				continue
			}
			if images.CalculateIoU(candidates[i].Box, candidates[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return kept, nil
}

// bestClass returns the argmax class index and its score. Ties resolve to
// the lowest class index. Returns -1 for an empty score slice.
func bestClass(scores []float32) (int, float32) {
	class := -1
	best := float32(0)
	for i, s := range scores {
		if class < 0 || s > best {
			class = i
			best = s
		}
	}
	return class, best
}
