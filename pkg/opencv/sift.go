// Package opencv computes SIFT descriptors with OpenCV through gocv.
package opencv

import (
	"fmt"
	"image"
	"strings"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/densesift/pkg/types"
)

// SIFTDescriptorSize is the length of a SIFT descriptor
const SIFTDescriptorSize = 128

// Config selects the descriptor algorithm
type Config struct {
	Algorithm string
}

// Engine wraps a gocv SIFT extractor. It must be closed.
type Engine struct {
	sift gocv.SIFT
}

// Open creates the OpenCV extractor for cfg
func Open(cfg Config) (*Engine, error) {
	switch strings.ToLower(cfg.Algorithm) {
	case "", "sift":
	default:
		return nil, fmt.Errorf("unsupported descriptor algorithm: %s", cfg.Algorithm)
	}
	return &Engine{sift: gocv.NewSIFT()}, nil
}

// DescriptorSize returns the descriptor length
func (e *Engine) DescriptorSize() int {
	return SIFTDescriptorSize
}

// Close releases the OpenCV extractor
func (e *Engine) Close() error {
	return e.sift.Close()
}

// Compute describes the given keypoints on the grayscale version of img
func (e *Engine) Compute(img image.Image, keypoints []types.Keypoint) ([]types.Keypoint, *mat.Dense, error) {
	if len(keypoints) == 0 {
		return nil, nil, fmt.Errorf("%w: no keypoints to describe", types.ErrDescriptorMismatch)
	}

	src, err := grayMat(img)
	if err != nil {
		return nil, nil, err
	}
	defer src.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	cvKps := make([]gocv.KeyPoint, len(keypoints))
	for i, kp := range keypoints {
		cvKps[i] = gocv.KeyPoint{X: kp.X, Y: kp.Y, Size: kp.Size, Angle: kp.Angle}
	}

	outKps, desc := e.sift.Compute(src, mask, cvKps)
	defer desc.Close()

	if desc.Empty() {
		return nil, nil, fmt.Errorf("%w: OpenCV returned no descriptors", types.ErrDescriptorMismatch)
	}
	rows, cols := desc.Rows(), desc.Cols()
	if rows != len(outKps) {
		return nil, nil, fmt.Errorf("%w: %d descriptor rows for %d keypoints", types.ErrDescriptorMismatch, rows, len(outKps))
	}

	data := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			data.Set(r, c, float64(desc.GetFloatAt(r, c)))
		}
	}

	described := make([]types.Keypoint, len(outKps))
	for i, kp := range outKps {
		described[i] = types.Keypoint{X: kp.X, Y: kp.Y, Size: kp.Size, Angle: kp.Angle}
	}
	return described, data, nil
}

// grayMat converts img into an 8-bit single channel Mat
func grayMat(img image.Image) (gocv.Mat, error) {
	gray, ok := img.(*image.Gray)
	if !ok {
		b := img.Bounds()
		gray = image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(gray, gray.Bounds(), img, b.Min, draw.Src)
	}
	m, err := gocv.ImageGrayToMatGray(gray)
	if err != nil {
		return gocv.NewMat(), fmt.Errorf("failed to convert image for OpenCV: %w", err)
	}
	return m, nil
}
