// Package features writes keypoints and their descriptors as tab-separated
// text: a "<count>\t<dim>" header followed by one row per keypoint.
package features

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/densesift/pkg/types"
)

// Write serialises keypoints and descriptors to w. Keypoint fields use six
// fractional digits, descriptor values are truncated to integers.
func Write(w io.Writer, keypoints []types.Keypoint, descriptors *mat.Dense, dim int) error {
	if err := check(keypoints, descriptors, dim); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 64)

	buf = strconv.AppendInt(buf[:0], int64(len(keypoints)), 10)
	buf = append(buf, '\t')
	buf = strconv.AppendInt(buf, int64(dim), 10)
	buf = append(buf, '\n')
	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("%w: %v", types.ErrWrite, err)
	}

	for i, kp := range keypoints {
		buf = buf[:0]
		buf = appendFixed(buf, kp.X)
		buf = append(buf, '\t')
		buf = appendFixed(buf, kp.Y)
		buf = append(buf, '\t')
		buf = appendFixed(buf, kp.Size)
		buf = append(buf, '\t')
		buf = appendFixed(buf, kp.Angle)
		for d := 0; d < dim; d++ {
			buf = append(buf, '\t')
			buf = strconv.AppendInt(buf, int64(descriptors.At(i, d)), 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("%w: %v", types.ErrWrite, err)
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %v", types.ErrWrite, err)
	}
	return nil
}

// WriteFile writes the feature file at path. The file is closed on every
// return path.
func WriteFile(path string, keypoints []types.Keypoint, descriptors *mat.Dense, dim int) (err error) {
	if err := check(keypoints, descriptors, dim); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: cannot open feature file %s: %v", types.ErrWrite, path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("%w: %s: %v", types.ErrWrite, path, cerr)
		}
	}()

	return Write(f, keypoints, descriptors, dim)
}

func check(keypoints []types.Keypoint, descriptors *mat.Dense, dim int) error {
	if descriptors == nil {
		if len(keypoints) == 0 {
			return nil
		}
		return fmt.Errorf("%w: %d keypoints without descriptors", types.ErrDescriptorMismatch, len(keypoints))
	}
	rows, cols := descriptors.Dims()
	if rows != len(keypoints) {
		return fmt.Errorf("%w: %d descriptor rows for %d keypoints", types.ErrDescriptorMismatch, rows, len(keypoints))
	}
	if cols != dim {
		return fmt.Errorf("%w: descriptor width %d, expected %d", types.ErrDescriptorMismatch, cols, dim)
	}
	return nil
}

func appendFixed(buf []byte, v float64) []byte {
	return strconv.AppendFloat(buf, v, 'f', 6, 64)
}
