// Package sampling corrects the solver's integer rounding by searching the
// grid offset until the detector yields the exact keypoint count.
package sampling

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/densesift/pkg/detection"
	"github.com/menta2k/densesift/pkg/types"
)

// DefaultIterationSlack is added to the derived iteration cap
const DefaultIterationSlack = 16

// Config holds the search limits
type Config struct {
	// MaxIterations overrides the derived cap when positive
	MaxIterations  int
	IterationSlack int
}

// Result is the outcome of a converged search
type Result struct {
	Keypoints  []types.Keypoint
	Params     types.GridParameters
	Iterations int
}

// Loop drives a keypoint detector over a single scalar offset
type Loop struct {
	detector detection.KeypointDetector
	config   Config
	log      logrus.FieldLogger
}

// New creates a loop around the default grid detector
func New() *Loop {
	return NewWithConfig(detection.NewGridDetector(), Config{IterationSlack: DefaultIterationSlack})
}

// NewWithConfig creates a loop with a custom detector and limits
func NewWithConfig(detector detection.KeypointDetector, config Config) *Loop {
	return &Loop{
		detector: detector,
		config:   config,
		log:      discardLogger(),
	}
}

// SetLogger sets the logger used for per-iteration debug output
func (l *Loop) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = discardLogger()
	}
	l.log = log
}

// SetDetector replaces the keypoint detector
func (l *Loop) SetDetector(detector detection.KeypointDetector) {
	l.detector = detector
}

// MaxIterations returns the iteration cap for the given starting parameters
func (l *Loop) MaxIterations(params types.GridParameters) int {
	if l.config.MaxIterations > 0 {
		return l.config.MaxIterations
	}
	return 2*int(math.Floor(params.Interval)) + int(math.Max(0, math.Floor(params.Offset))) + l.config.IterationSlack
}

// ExtractExactly runs the detector until it returns exactly n keypoints.
// Too few points move the offset towards the border, too many move it
// inwards. params is not modified; the corrected copy is in the result.
func (l *Loop) ExtractExactly(img image.Image, params types.GridParameters, n int) (Result, error) {
	if n <= 0 {
		return Result{}, fmt.Errorf("%w: %d keypoints requested", types.ErrInfeasibleDensity, n)
	}

	if params.Offset < 0 {
		return Result{}, fmt.Errorf("%w: negative starting offset %v", types.ErrUnsatisfiableGrid, params.Offset)
	}

	maxIter := l.MaxIterations(params)
	for iter := 1; iter <= maxIter; iter++ {
		dp := detection.ParamsFromGrid(params)
		keypoints := l.detector.Detect(img, dp)

		l.log.WithFields(logrus.Fields{
			"iteration": iter,
			"offset":    params.Offset,
			"bound":     dp.Bound,
			"count":     len(keypoints),
			"target":    n,
		}).Debug("dense sampling pass")

		switch {
		case len(keypoints) < n:
			params.Offset--
			if params.Offset < 0 {
				return Result{}, fmt.Errorf("%w: offset dropped below zero after %d iterations (%d keypoints requested)",
					types.ErrUnsatisfiableGrid, iter, n)
			}
		case len(keypoints) > n:
			params.Offset++
		default:
			return Result{
				Keypoints:  keypoints,
				Params:     params,
				Iterations: iter,
			}, nil
		}
	}

	return Result{}, fmt.Errorf("%w: no exact grid for %d keypoints within %d iterations",
		types.ErrConvergenceTimeout, n, maxIter)
}

func discardLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
