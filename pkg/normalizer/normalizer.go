// Package normalizer stretches images onto a square canvas before sampling
// and maps keypoints back to the original image afterwards.
package normalizer

import (
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/densesift/pkg/types"
)

// Config holds normalizer settings
type Config struct {
	Resize bool
	Filter imaging.ResampleFilter
}

// Normalizer prepares working images and inverts keypoint coordinates
type Normalizer struct {
	config Config
}

// New creates a normalizer that leaves images untouched
func New() *Normalizer {
	return &Normalizer{
		config: Config{
			Resize: false,
			Filter: imaging.Lanczos,
		},
	}
}

// NewWithConfig creates a normalizer with custom settings. The zero Filter
// is nearest-neighbour.
func NewWithConfig(config Config) *Normalizer {
	return &Normalizer{config: config}
}

// FilterByName maps a config name to a resampling filter
func FilterByName(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "", "lanczos":
		return imaging.Lanczos, nil
	case "catmullrom":
		return imaging.CatmullRom, nil
	case "linear":
		return imaging.Linear, nil
	case "box":
		return imaging.Box, nil
	case "nearest":
		return imaging.NearestNeighbor, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter: %s", name)
	}
}

// Resizes reports whether Prepare stretches images
func (n *Normalizer) Resizes() bool {
	return n.config.Resize
}

// ScaleFactorsFor returns the stretch factors that make a width x height
// image square on its longer side
func ScaleFactorsFor(width, height int) types.ScaleFactors {
	if width > height {
		return types.ScaleFactors{X: 1, Y: float64(width) / float64(height)}
	}
	return types.ScaleFactors{X: float64(height) / float64(width), Y: 1}
}

// Prepare returns the image to sample and the factors mapping original
// coordinates onto it
func (n *Normalizer) Prepare(img image.Image) (image.Image, types.ScaleFactors) {
	if !n.config.Resize {
		return img, types.IdentityScale
	}

	bounds := img.Bounds()
	dims := types.ImageDimensions{Width: bounds.Dx(), Height: bounds.Dy()}
	if dims.Width == 0 || dims.Height == 0 {
		return img, types.IdentityScale
	}

	side := dims.Width
	if dims.Height > side {
		side = dims.Height
	}
	scale := ScaleFactorsFor(dims.Width, dims.Height)
	if dims.Square() {
		return img, scale
	}

	return imaging.Resize(img, side, side, n.config.Filter), scale
}

// Forward maps an original-image keypoint into the working image
func Forward(kp types.Keypoint, sf types.ScaleFactors) types.Keypoint {
	kp.X *= sf.X
	kp.Y *= sf.Y
	return kp
}

// Invert maps a working-image keypoint back to the original image.
// Size and angle are kept.
func Invert(kp types.Keypoint, sf types.ScaleFactors) types.Keypoint {
	kp.X /= sf.X
	kp.Y /= sf.Y
	return kp
}

// InvertAll inverts every keypoint into a new slice in the same order
func InvertAll(kps []types.Keypoint, sf types.ScaleFactors) []types.Keypoint {
	out := make([]types.Keypoint, len(kps))
	for i, kp := range kps {
		out[i] = Invert(kp, sf)
	}
	return out
}
