// Package postprocess - Detection candidates and Non-Maximum Suppression.
package postprocess

import "github.com/edgevision-ai/go-detect/images"

// Detection is one decoded candidate from a detection layer.
//
// The decoder produces Detections densely, one per (scale, cell, anchor),
// with Box in network-input pixel coordinates and all confidences already
// squashed into [0, 1]. Class and Score stay unresolved (-1 and 0) until
// Suppress combines objectness with the per-class scores.
type Detection struct {
	// Box is the candidate's bounding box, corner coordinates, in pixels of
	// the network input resolution.
	Box images.Rect
	// Objectness is the confidence that the box contains any object at all.
	Objectness float32
	// ClassScores holds one score per known class, indexed by class ID.
	ClassScores []float32
	// Class is the resolved class index after suppression, -1 before.
	Class int
	// Score is the resolved final confidence (objectness * best class
	// score) after suppression, 0 before.
	Score float32
}
