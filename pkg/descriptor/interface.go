package descriptor

import (
	"image"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/densesift/pkg/types"
)

// Engine computes one descriptor row per keypoint. The returned keypoints
// are the ones the rows belong to, in row order.
type Engine interface {
	Compute(img image.Image, keypoints []types.Keypoint) ([]types.Keypoint, *mat.Dense, error)
	DescriptorSize() int
	Close() error
}
