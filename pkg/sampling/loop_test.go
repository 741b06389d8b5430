package sampling

import (
	"errors"
	"image"
	"testing"

	"github.com/menta2k/densesift/pkg/detection"
	"github.com/menta2k/densesift/pkg/grid"
	"github.com/menta2k/densesift/pkg/types"
)

// linearDetector returns base-bound keypoints: more offset, fewer points
type linearDetector struct {
	base  int
	calls int
}

func (d *linearDetector) Detect(img image.Image, params detection.Params) []types.Keypoint {
	d.calls++
	n := d.base - params.Bound
	if n < 0 {
		n = 0
	}
	return make([]types.Keypoint, n)
}

func createTestImage(width, height int) image.Image {
	return image.NewGray(image.Rect(0, 0, width, height))
}

func TestNew(t *testing.T) {
	loop := New()
	if loop == nil {
		t.Fatal("New() returned nil")
	}
	if loop.config.IterationSlack != DefaultIterationSlack {
		t.Errorf("Expected slack %d, got %d", DefaultIterationSlack, loop.config.IterationSlack)
	}
}

func TestExtractExactlyMonotone(t *testing.T) {
	tests := []struct {
		name         string
		offset       float64
		n            int
		expectOffset float64
		expectIter   int
	}{
		{"decrease offset", 10, 35, 5, 6},
		{"increase offset", 2, 35, 5, 4},
		{"already exact", 5, 35, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detector := &linearDetector{base: 40}
			loop := NewWithConfig(detector, Config{IterationSlack: DefaultIterationSlack})

			params := types.GridParameters{Interval: 20, PatchScale: 10, Offset: tt.offset}
			result, err := loop.ExtractExactly(createTestImage(100, 100), params, tt.n)
			if err != nil {
				t.Fatalf("ExtractExactly failed: %v", err)
			}

			if len(result.Keypoints) != tt.n {
				t.Errorf("Expected %d keypoints, got %d", tt.n, len(result.Keypoints))
			}
			if result.Params.Offset != tt.expectOffset {
				t.Errorf("Expected offset %f, got %f", tt.expectOffset, result.Params.Offset)
			}
			if result.Iterations != tt.expectIter {
				t.Errorf("Expected %d iterations, got %d", tt.expectIter, result.Iterations)
			}
			if result.Iterations > loop.MaxIterations(params) {
				t.Errorf("Iterations %d exceed cap %d", result.Iterations, loop.MaxIterations(params))
			}
			if params.Offset != tt.offset {
				t.Error("Input parameters should not be modified")
			}
		})
	}
}

func TestExtractExactlyUnsatisfiable(t *testing.T) {
	detector := &linearDetector{base: 10}
	loop := NewWithConfig(detector, Config{IterationSlack: DefaultIterationSlack})

	params := types.GridParameters{Interval: 20, PatchScale: 10, Offset: 3}
	_, err := loop.ExtractExactly(createTestImage(100, 100), params, 20)
	if !errors.Is(err, types.ErrUnsatisfiableGrid) {
		t.Fatalf("Expected ErrUnsatisfiableGrid, got %v", err)
	}
	// offsets 3, 2, 1, 0 are tried before the search goes negative
	if detector.calls != 4 {
		t.Errorf("Expected 4 detector calls, got %d", detector.calls)
	}
}

func TestExtractExactlyOscillation(t *testing.T) {
	img := createTestImage(200, 200)
	params, err := grid.Solve(200, 200, 8)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	// a square grid can produce 4 or 9 points here, never 8
	loop := New()
	_, err = loop.ExtractExactly(img, params, 8)
	if !errors.Is(err, types.ErrConvergenceTimeout) {
		t.Fatalf("Expected ErrConvergenceTimeout, got %v", err)
	}
}

func TestExtractExactlyMaxIterations(t *testing.T) {
	detector := &linearDetector{base: 40}
	loop := NewWithConfig(detector, Config{MaxIterations: 3})

	params := types.GridParameters{Interval: 20, PatchScale: 10, Offset: 10}
	if loop.MaxIterations(params) != 3 {
		t.Errorf("Expected cap 3, got %d", loop.MaxIterations(params))
	}

	_, err := loop.ExtractExactly(createTestImage(100, 100), params, 35)
	if !errors.Is(err, types.ErrConvergenceTimeout) {
		t.Fatalf("Expected ErrConvergenceTimeout, got %v", err)
	}
	if detector.calls != 3 {
		t.Errorf("Expected 3 detector calls, got %d", detector.calls)
	}
}

func TestExtractExactlyUnsatisfiableOnLastIteration(t *testing.T) {
	detector := &linearDetector{base: 10}
	loop := NewWithConfig(detector, Config{MaxIterations: 3})

	// offsets 2, 1, 0 use up the cap and the last pass goes negative
	params := types.GridParameters{Interval: 20, PatchScale: 10, Offset: 2}
	_, err := loop.ExtractExactly(createTestImage(100, 100), params, 20)
	if !errors.Is(err, types.ErrUnsatisfiableGrid) {
		t.Fatalf("Expected ErrUnsatisfiableGrid, got %v", err)
	}
	if detector.calls != 3 {
		t.Errorf("Expected 3 detector calls, got %d", detector.calls)
	}
}

func TestExtractExactlyNegativeStart(t *testing.T) {
	detector := &linearDetector{base: 10}
	loop := NewWithConfig(detector, Config{IterationSlack: DefaultIterationSlack})

	params := types.GridParameters{Interval: 20, PatchScale: 10, Offset: -1}
	_, err := loop.ExtractExactly(createTestImage(100, 100), params, 5)
	if !errors.Is(err, types.ErrUnsatisfiableGrid) {
		t.Fatalf("Expected ErrUnsatisfiableGrid, got %v", err)
	}
	if detector.calls != 0 {
		t.Errorf("Expected no detector calls, got %d", detector.calls)
	}
}

func TestExtractExactlyInvalidCount(t *testing.T) {
	loop := New()
	_, err := loop.ExtractExactly(createTestImage(10, 10), types.GridParameters{Interval: 1}, 0)
	if !errors.Is(err, types.ErrInfeasibleDensity) {
		t.Errorf("Expected ErrInfeasibleDensity, got %v", err)
	}
}

func TestExtractExactlyQuadrants(t *testing.T) {
	img := createTestImage(100, 100)
	params, err := grid.Solve(100, 100, 4)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	result, err := New().ExtractExactly(img, params, 4)
	if err != nil {
		t.Fatalf("ExtractExactly failed: %v", err)
	}

	centres := [][2]float64{{25, 25}, {25, 75}, {75, 25}, {75, 75}}
	for i, kp := range result.Keypoints {
		dx := kp.X - centres[i][0]
		dy := kp.Y - centres[i][1]
		if dx*dx+dy*dy > 4 {
			t.Errorf("Keypoint %d at (%f,%f) is not near (%f,%f)", i, kp.X, kp.Y, centres[i][0], centres[i][1])
		}
		if kp.Size != 25 || kp.Angle != 0 {
			t.Errorf("Keypoint %d: unexpected size/angle %f/%f", i, kp.Size, kp.Angle)
		}
	}
}

func TestExtractExactlyCorrectsOffset(t *testing.T) {
	img := createTestImage(200, 200)
	params, err := grid.Solve(200, 200, 9)
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}

	result, err := New().ExtractExactly(img, params, 9)
	if err != nil {
		t.Fatalf("ExtractExactly failed: %v", err)
	}
	if len(result.Keypoints) != 9 {
		t.Fatalf("Expected 9 keypoints, got %d", len(result.Keypoints))
	}
	if result.Params.Offset != 33 {
		t.Errorf("Expected corrected offset 33, got %f", result.Params.Offset)
	}
	if result.Iterations != 2 {
		t.Errorf("Expected 2 iterations, got %d", result.Iterations)
	}
}

func TestMonotoneDetectorConvergesAcrossSizes(t *testing.T) {
	for n := 1; n <= 60; n++ {
		detector := &linearDetector{base: 80}
		loop := NewWithConfig(detector, Config{IterationSlack: DefaultIterationSlack})

		params, err := grid.Solve(120, 80, n)
		if err != nil {
			t.Fatalf("Solve failed: %v", err)
		}
		result, err := loop.ExtractExactly(createTestImage(120, 80), params, n)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(result.Keypoints) != n {
			t.Fatalf("n=%d: got %d keypoints", n, len(result.Keypoints))
		}
	}
}
