// Package densesift extracts an exact number of SIFT descriptors from an
// image by placing keypoints on a regular grid.
//
// Basic usage:
//
//	package main
//
//	import (
//		"log"
//
//		"github.com/menta2k/densesift"
//		"github.com/menta2k/densesift/pkg/opencv"
//	)
//
//	func main() {
//		engine, err := opencv.Open(opencv.Config{})
//		if err != nil {
//			log.Fatal(err)
//		}
//		extractor := densesift.New(engine)
//		defer extractor.Close()
//
//		session, err := extractor.Open("photo.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//		if _, err := session.Extract(densesift.SamplingDense, 100); err != nil {
//			log.Fatal(err)
//		}
//		if err := session.SaveFeatures("photo.sift"); err != nil {
//			log.Fatal(err)
//		}
//		if _, err := session.SaveImage("photo"); err != nil {
//			log.Fatal(err)
//		}
//	}
//
// The extraction pipeline has four stages:
//
// 1. Normalizer (pkg/normalizer): optionally stretches the image to a square
// 2. Grid solver (pkg/grid): derives step, patch size and border offset for N points
// 3. Sampling loop (pkg/sampling): nudges the offset until exactly N points fit
// 4. Descriptor engine (pkg/descriptor, pkg/opencv): computes one row per keypoint
//
// Keypoints are written to the feature file in original image coordinates.
// The overlay image is drawn on the working image.
package densesift

import (
	"fmt"
	"image"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/densesift/internal/logging"
	"github.com/menta2k/densesift/internal/utils"
	"github.com/menta2k/densesift/pkg/descriptor"
	"github.com/menta2k/densesift/pkg/detection"
	"github.com/menta2k/densesift/pkg/features"
	"github.com/menta2k/densesift/pkg/grid"
	"github.com/menta2k/densesift/pkg/normalizer"
	"github.com/menta2k/densesift/pkg/processing"
	"github.com/menta2k/densesift/pkg/sampling"
	"github.com/menta2k/densesift/pkg/types"
)

// Version of the densesift library
const Version = "1.0.0"

// The overlay is always written as "<prefix>_sift.png"
const (
	overlaySuffix = "_sift"
	overlayFormat = "png"
)

// SamplingMode selects how keypoints are placed
type SamplingMode int

const (
	// SamplingDoG is difference-of-Gaussians detection
	SamplingDoG SamplingMode = iota
	// SamplingDense is the exact-count regular grid
	SamplingDense
)

// ParseSamplingMode accepts "0"/"dog" and "1"/"dense"
func ParseSamplingMode(s string) (SamplingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "0", "dog":
		return SamplingDoG, nil
	case "1", "dense":
		return SamplingDense, nil
	}
	return 0, fmt.Errorf("invalid sampling mode %q: expected 0 (dog) or 1 (dense)", s)
}

func (m SamplingMode) String() string {
	switch m {
	case SamplingDoG:
		return "dog"
	case SamplingDense:
		return "dense"
	}
	return "SamplingMode(" + strconv.Itoa(int(m)) + ")"
}

// Config bundles the settings of every pipeline stage
type Config struct {
	Processing processing.Config
	Normalizer normalizer.Config
	Detector   detection.Config
	Sampling   sampling.Config
}

// DefaultConfig returns the configuration used by New
func DefaultConfig() Config {
	return Config{
		Processing: processing.Config{
			DefaultQuality: 90,
			MinImageSize:   1,
		},
		Normalizer: normalizer.Config{
			Resize: false,
			Filter: imaging.Lanczos,
		},
		Detector: detection.NewGridDetector().Config(),
		Sampling: sampling.Config{
			IterationSlack: sampling.DefaultIterationSlack,
		},
	}
}

// Extractor opens sessions and runs the dense pipeline on them
type Extractor struct {
	config     Config
	processor  *processing.Processor
	normalizer *normalizer.Normalizer
	detector   detection.KeypointDetector
	engine     descriptor.Engine
	log        logrus.FieldLogger
}

// New creates an Extractor with default configuration
func New(engine descriptor.Engine) *Extractor {
	return NewWithConfig(engine, DefaultConfig())
}

// NewWithConfig creates an Extractor with custom configuration
func NewWithConfig(engine descriptor.Engine, config Config) *Extractor {
	return &Extractor{
		config:     config,
		processor:  processing.NewProcessorWithConfig(config.Processing),
		normalizer: normalizer.NewWithConfig(config.Normalizer),
		detector:   detection.NewGridDetectorWithConfig(config.Detector),
		engine:     engine,
		log:        logging.Discard(),
	}
}

// SetLogger sets the logger sessions derive their entries from
func (e *Extractor) SetLogger(log logrus.FieldLogger) {
	if log == nil {
		log = logging.Discard()
	}
	e.log = log
}

// SetDetector replaces the keypoint detector used by the sampling loop
func (e *Extractor) SetDetector(detector detection.KeypointDetector) {
	e.detector = detector
}

// Close releases the descriptor engine
func (e *Extractor) Close() error {
	if e.engine == nil {
		return nil
	}
	return e.engine.Close()
}

// Open loads an image from a path or URL and starts a session on it
func (e *Extractor) Open(source string) (*Session, error) {
	img, err := e.processor.LoadImageSmart(source)
	if err != nil {
		return nil, err
	}
	return e.NewSession(img)
}

// NewSession starts a session on an already decoded image
func (e *Extractor) NewSession(img image.Image) (*Session, error) {
	if err := e.processor.ValidateImage(img); err != nil {
		return nil, err
	}

	log, id := logging.WithSession(e.log)
	working, scale := e.normalizer.Prepare(img)

	s := &Session{
		ex:      e,
		id:      id,
		log:     log,
		source:  img,
		working: working,
		gray:    e.processor.ToGrayscale(working),
		scale:   scale,
	}

	dims := s.Dimensions()
	wdims := s.WorkingDimensions()
	log.WithFields(logrus.Fields{
		"width":          dims.Width,
		"height":         dims.Height,
		"working_width":  wdims.Width,
		"working_height": wdims.Height,
		"scale_x":        scale.X,
		"scale_y":        scale.Y,
		"resize":         e.normalizer.Resizes(),
	}).Info("image loaded")

	return s, nil
}

// Extraction is the result of a successful Extract. Row i of Descriptors
// belongs to Keypoints[i]; keypoints are in working image coordinates.
type Extraction struct {
	Keypoints   []types.Keypoint     `json:"keypoints"`
	Descriptors *mat.Dense           `json:"-"`
	Params      types.GridParameters `json:"params"`
	Scale       types.ScaleFactors   `json:"scale"`
	Iterations  int                  `json:"iterations"`
}

// Session holds one image and, after Extract, its features
type Session struct {
	ex         *Extractor
	id         string
	log        *logrus.Entry
	source     image.Image
	working    image.Image
	gray       image.Image
	scale      types.ScaleFactors
	extraction *Extraction
}

// ID returns the session id used in log entries
func (s *Session) ID() string {
	return s.id
}

// Dimensions returns the size of the loaded image
func (s *Session) Dimensions() types.ImageDimensions {
	return s.ex.processor.GetImageInfo(s.source)
}

// WorkingDimensions returns the size of the image keypoints are placed on
func (s *Session) WorkingDimensions() types.ImageDimensions {
	return s.ex.processor.GetImageInfo(s.working)
}

// ScaleFactors returns the factors mapping original onto working coordinates
func (s *Session) ScaleFactors() types.ScaleFactors {
	return s.scale
}

// Extraction returns the last successful extraction
func (s *Session) Extraction() (*Extraction, bool) {
	return s.extraction, s.extraction != nil
}

// Extract places exactly n keypoints and describes them. On failure the
// previous extraction, if any, is kept.
func (s *Session) Extract(mode SamplingMode, n int) (*Extraction, error) {
	if mode != SamplingDense {
		return nil, fmt.Errorf("%w: %s sampling", types.ErrNotImplemented, mode)
	}

	log := s.log.WithFields(logrus.Fields{"mode": mode.String(), "target": n})

	params, err := grid.SolveDimensions(s.WorkingDimensions(), n)
	if err != nil {
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"interval":    params.Interval,
		"patch_scale": params.PatchScale,
		"offset":      params.Offset,
	}).Debug("grid solved")

	loop := sampling.NewWithConfig(s.ex.detector, s.ex.config.Sampling)
	loop.SetLogger(log)
	res, err := loop.ExtractExactly(s.gray, params, n)
	if err != nil {
		log.WithError(err).Warn("dense sampling failed")
		return nil, err
	}

	keypoints, desc, err := s.ex.engine.Compute(s.gray, res.Keypoints)
	if err != nil {
		return nil, fmt.Errorf("descriptor computation failed: %w", err)
	}
	if desc == nil {
		return nil, fmt.Errorf("%w: engine returned no descriptors", types.ErrDescriptorMismatch)
	}
	if rows, _ := desc.Dims(); rows != n || len(keypoints) != n {
		return nil, fmt.Errorf("%w: %d keypoints and %d descriptor rows for %d requested",
			types.ErrDescriptorMismatch, len(keypoints), rows, n)
	}

	s.extraction = &Extraction{
		Keypoints:   keypoints,
		Descriptors: desc,
		Params:      res.Params,
		Scale:       s.scale,
		Iterations:  res.Iterations,
	}

	log.WithFields(logrus.Fields{
		"iterations": res.Iterations,
		"offset":     res.Params.Offset,
	}).Info("features extracted")

	return s.extraction, nil
}

// SaveFeatures writes the feature file with keypoints mapped back to the
// original image
func (s *Session) SaveFeatures(path string) error {
	if s.extraction == nil {
		return types.ErrNotExtracted
	}

	if err := ensureParent(path); err != nil {
		return err
	}

	keypoints := normalizer.InvertAll(s.extraction.Keypoints, s.scale)
	if err := features.WriteFile(path, keypoints, s.extraction.Descriptors, s.ex.engine.DescriptorSize()); err != nil {
		return err
	}

	s.log.WithField("path", path).Info("features written")
	return nil
}

// SaveImage draws the keypoints over the working image and writes it to
// "<prefix>_sift.png". It returns the written path.
func (s *Session) SaveImage(prefix string) (string, error) {
	if s.extraction == nil {
		return "", types.ErrNotExtracted
	}

	path := utils.OverlayFilename(prefix, overlaySuffix, overlayFormat)
	if err := ensureParent(path); err != nil {
		return "", err
	}

	overlay := s.ex.processor.CreateKeypointOverlay(s.working, s.extraction.Keypoints)
	if err := s.ex.processor.SaveImage(overlay, path, overlayFormat); err != nil {
		return "", err
	}

	s.log.WithField("path", path).Info("overlay written")
	return path, nil
}

// ensureParent creates the directory an output file goes into
func ensureParent(path string) error {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrWrite, path, err)
	}
	return nil
}
