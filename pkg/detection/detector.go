package detection

import (
	"image"
	"math"

	"github.com/menta2k/densesift/pkg/grid"
	"github.com/menta2k/densesift/pkg/types"
)

// Params are the integer grid settings for one detection pass
type Params struct {
	Scale     int
	Step      int
	Bound     int
	VaryStep  bool
	VaryBound bool
}

// ParamsFromGrid truncates solver output to detector settings
func ParamsFromGrid(p types.GridParameters) Params {
	return Params{
		Scale: int(math.Floor(p.PatchScale)),
		Step:  int(math.Floor(p.Interval)),
		Bound: int(math.Floor(p.Offset)),
	}
}

// KeypointDetector places keypoints on an image
type KeypointDetector interface {
	Detect(img image.Image, params Params) []types.Keypoint
}

// Config holds the multi-level settings of the grid detector
type Config struct {
	Levels    int
	ScaleMul  float64
	VaryStep  bool
	VaryBound bool
}

// GridDetector emits keypoints on a regular grid
type GridDetector struct {
	config Config
}

// NewGridDetector creates a detector with the single-level defaults
func NewGridDetector() *GridDetector {
	return &GridDetector{
		config: Config{
			Levels:    1,
			ScaleMul:  0.1,
			VaryStep:  true,
			VaryBound: false,
		},
	}
}

// NewGridDetectorWithConfig creates a detector with custom settings
func NewGridDetectorWithConfig(config Config) *GridDetector {
	if config.Levels < 1 {
		config.Levels = 1
	}
	return &GridDetector{config: config}
}

// Config returns the detector settings
func (d *GridDetector) Config() Config {
	return d.config
}

// Detect walks the grid column by column. Every level multiplies the
// keypoint size by ScaleMul and, when enabled, rescales step and bound.
// Detector-wide Vary flags are combined with the ones in params.
func (d *GridDetector) Detect(img image.Image, params Params) []types.Keypoint {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	varyStep := d.config.VaryStep || params.VaryStep
	varyBound := d.config.VaryBound || params.VaryBound

	curScale := float64(params.Scale)
	curStep := params.Step
	curBound := params.Bound

	var keypoints []types.Keypoint
	for level := 0; level < d.config.Levels; level++ {
		if curStep <= 0 {
			break
		}
		cols := grid.SampleCount(width, curBound, curStep)
		rows := grid.SampleCount(height, curBound, curStep)
		if keypoints == nil {
			keypoints = make([]types.Keypoint, 0, cols*rows)
		}

		for x := curBound; x < width-curBound; x += curStep {
			for y := curBound; y < height-curBound; y += curStep {
				keypoints = append(keypoints, types.Keypoint{
					X:    float64(x),
					Y:    float64(y),
					Size: curScale,
				})
			}
		}

		curScale *= d.config.ScaleMul
		if varyStep {
			curStep = int(float64(curStep)*d.config.ScaleMul + 0.5)
		}
		if varyBound {
			curBound = int(float64(curBound)*d.config.ScaleMul + 0.5)
		}
	}
	return keypoints
}
