// Package grid derives dense sampling parameters from an image size and a
// requested keypoint count.
package grid

import (
	"fmt"
	"math"

	"github.com/menta2k/densesift/pkg/types"
)

// Solve computes the interval, patch scale and offset of a grid that places
// roughly n samples over a width x height image. The sampling loop corrects
// the remaining rounding error by moving the offset.
func Solve(width, height, n int) (types.GridParameters, error) {
	if width <= 0 || height <= 0 {
		return types.GridParameters{}, fmt.Errorf("%w: image size %dx%d", types.ErrDegenerateGeometry, width, height)
	}
	if n <= 0 || n > width*height {
		return types.GridParameters{}, fmt.Errorf("%w: %d keypoints for %dx%d image", types.ErrInfeasibleDensity, n, width, height)
	}

	// 1. sampling interval: the side of a square cell when the image area is
	// shared between n cells
	interval := math.Sqrt(float64((width * height) / n))
	if interval <= 0 {
		return types.GridParameters{}, fmt.Errorf("%w: interval %f", types.ErrDegenerateGeometry, interval)
	}

	// 2. patch scale
	scale := interval / 2.0

	// 3. full steps that fit on each axis
	step := int(math.Floor(interval))
	sampleCols := width / step
	sampleRows := height / step

	// 4. leftover margin
	oddCols, oddRows := margins(width, height, sampleCols, sampleRows, step)

	// 5. shared offset from the margin area
	offset := math.Sqrt(float64((oddCols * oddRows) / 4))

	// 6. square images re-centre the grid
	if width == height {
		residual := float64(width) - 2*math.Floor(offset) - float64(step)*(math.Sqrt(float64(n))-1)
		if residual == 0 {
			offset--
		} else {
			offset += residual / 2
		}
	}

	return types.GridParameters{
		Interval:   interval,
		PatchScale: scale,
		Offset:     offset,
	}, nil
}

// SolveDimensions is Solve for a dimensions value
func SolveDimensions(dims types.ImageDimensions, n int) (types.GridParameters, error) {
	return Solve(dims.Width, dims.Height, n)
}

// margins returns the pixels left over on each axis after placing the grid
// steps. An axis evenly divisible by its sample count keeps one step back so
// the margin never collapses to zero.
func margins(width, height, sampleCols, sampleRows, step int) (int, int) {
	colsDivisible := divisible(width, sampleCols)
	rowsDivisible := divisible(height, sampleRows)

	var oddCols, oddRows int
	switch {
	case colsDivisible && rowsDivisible:
		oddCols = width - (sampleCols-1)*step
		oddRows = height - (sampleRows-1)*step
	case colsDivisible && !rowsDivisible:
		oddCols = width - (sampleCols-1)*step
		oddRows = height - sampleRows*step
	case !colsDivisible && rowsDivisible:
		oddCols = width - sampleCols*step
		oddRows = height - (sampleRows-1)*step
	default:
		oddCols = width - sampleCols*step
		oddRows = height - sampleRows*step
	}
	return oddCols, oddRows
}

// divisible treats a zero sample count as not divisible; the whole side is
// then margin.
func divisible(side, samples int) bool {
	return samples > 0 && side%samples == 0
}

// SampleCount returns how many grid positions fit on one axis for the
// detector's bound and step.
func SampleCount(side, bound, step int) int {
	if step <= 0 {
		return 0
	}
	count := 0
	for x := bound; x < side-bound; x += step {
		count++
	}
	return count
}
