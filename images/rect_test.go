package images

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCalculateIoU verifies the overlap metric across the cases that matter
// for suppression: disjoint, nested, partial, identical, and degenerate
// boxes.
func TestCalculateIoU(t *testing.T) {
	tests := []struct {
		name     string
		a        Rect
		b        Rect
		expected float32
	}{
		{
			name:     "identical boxes",
			a:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			expected: 1.0,
		},
		{
			name:     "disjoint boxes",
			a:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        Rect{X1: 20, Y1: 20, X2: 30, Y2: 30},
			expected: 0.0,
		},
		{
			name:     "touching edges do not overlap",
			a:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        Rect{X1: 10, Y1: 0, X2: 20, Y2: 10},
			expected: 0.0,
		},
		{
			name: "quarter overlap",
			// intersection 25, union 100 + 100 - 25 = 175
			a:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        Rect{X1: 5, Y1: 5, X2: 15, Y2: 15},
			expected: 25.0 / 175.0,
		},
		{
			name:     "nested box",
			a:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			b:        Rect{X1: 2, Y1: 2, X2: 8, Y2: 8},
			expected: 36.0 / 100.0,
		},
		{
			name:     "zero-area first box",
			a:        Rect{X1: 5, Y1: 5, X2: 5, Y2: 10},
			b:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			expected: 0.0,
		},
		{
			name:     "negative-extent box",
			a:        Rect{X1: 10, Y1: 10, X2: 0, Y2: 0},
			b:        Rect{X1: 0, Y1: 0, X2: 10, Y2: 10},
			expected: 0.0,
		},
		{
			name:     "both boxes degenerate",
			a:        Rect{X1: 3, Y1: 3, X2: 3, Y2: 3},
			b:        Rect{X1: 3, Y1: 3, X2: 3, Y2: 3},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iou := CalculateIoU(tt.a, tt.b)
			assert.InDelta(t, tt.expected, iou, 1e-6)
			// Symmetry and bounds hold for every pair.
			assert.InDelta(t, iou, CalculateIoU(tt.b, tt.a), 1e-6)
			assert.GreaterOrEqual(t, iou, float32(0))
			assert.LessOrEqual(t, iou, float32(1))
		})
	}
}

func TestRectArea(t *testing.T) {
	assert.Equal(t, float32(100), Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}.Area())
	assert.Equal(t, float32(0), Rect{X1: 0, Y1: 0, X2: 0, Y2: 10}.Area())
	assert.Equal(t, float32(0), Rect{X1: 10, Y1: 0, X2: 0, Y2: 10}.Area())
}
