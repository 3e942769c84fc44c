// Package images - Image processing utilities for detection pipelines.
package images

import "github.com/chewxy/math32"

// Rect is a lightweight bounding box in pixel coordinates.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 float32
}

// Width returns the horizontal extent of the box. May be negative for
// non-canonical boxes.
func (r Rect) Width() float32 {
	return r.X2 - r.X1
}

// Height returns the vertical extent of the box.
func (r Rect) Height() float32 {
	return r.Y2 - r.Y1
}

// Area returns the area of the box. A degenerate box (non-positive width or
// height) has area 0.
func (r Rect) Area() float32 {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// CalculateIoU measures the overlap between two boxes as
// intersection / (area(r) + area(o) - intersection).
//
// The result is always in [0, 1]: identical boxes score 1.0, disjoint boxes
// score 0.0. If either box has zero area the IoU is 0 by convention rather
// than a division failure, so degenerate detections are simply never
// suppressed against.
func CalculateIoU(r, o Rect) float32 {
	areaR := r.Area()
	areaO := o.Area()
	if areaR == 0 || areaO == 0 {
		return 0
	}

	// The intersection's top-left corner is the max of the two starts, its
	// bottom-right the min of the two ends.
	ix1 := math32.Max(r.X1, o.X1)
	iy1 := math32.Max(r.Y1, o.Y1)
	ix2 := math32.Min(r.X2, o.X2)
	iy2 := math32.Min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0
	}
	interArea := interW * interH

	// Inclusion-exclusion: Union(A, B) = Area(A) + Area(B) - Intersection(A, B)
	return interArea / (areaR + areaO - interArea)
}
