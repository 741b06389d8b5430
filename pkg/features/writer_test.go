package features

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/densesift/pkg/types"
)

func TestWriteTwoKeypoints(t *testing.T) {
	kps := []types.Keypoint{
		{X: 24, Y: 24, Size: 25, Angle: 0},
		{X: 74.5, Y: 12.25, Size: 25, Angle: 0},
	}
	desc := mat.NewDense(2, 3, []float64{
		1.9, 0, 12.999,
		-2.7, 255, 7,
	})

	var buf bytes.Buffer
	if err := Write(&buf, kps, desc, 3); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	expected := "2\t3\n" +
		"24.000000\t24.000000\t25.000000\t0.000000\t1\t0\t12\n" +
		"74.500000\t12.250000\t25.000000\t0.000000\t-2\t255\t7\n"
	if buf.String() != expected {
		t.Errorf("Unexpected output:\n%q\nexpected:\n%q", buf.String(), expected)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if lines[0] != "2\t3" {
		t.Errorf("Expected header 2\\t3, got %q", lines[0])
	}
	for i, line := range lines[1:] {
		if fields := strings.Split(line, "\t"); len(fields) != 4+3 {
			t.Errorf("Line %d has %d fields, expected %d", i+1, len(fields), 4+3)
		}
	}
}

func TestWriteSIFTWidth(t *testing.T) {
	const dim = 128
	kps := []types.Keypoint{{X: 1, Y: 2, Size: 3}, {X: 4, Y: 5, Size: 6}}
	desc := mat.NewDense(2, dim, nil)

	var buf bytes.Buffer
	if err := Write(&buf, kps, desc, dim); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}
	if lines[0] != "2\t128" {
		t.Errorf("Unexpected header %q", lines[0])
	}
	for _, line := range lines[1:] {
		if n := len(strings.Split(line, "\t")); n != 4+dim {
			t.Errorf("Expected %d fields, got %d", 4+dim, n)
		}
	}
}

func TestWriteMismatch(t *testing.T) {
	kps := []types.Keypoint{{X: 1}, {X: 2}}

	tests := []struct {
		name string
		desc *mat.Dense
		dim  int
	}{
		{"row count", mat.NewDense(3, 4, nil), 4},
		{"column count", mat.NewDense(2, 5, nil), 4},
		{"no descriptors", nil, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Write(&buf, kps, tt.desc, tt.dim)
			if !errors.Is(err, types.ErrDescriptorMismatch) {
				t.Errorf("Expected ErrDescriptorMismatch, got %v", err)
			}
			if buf.Len() != 0 {
				t.Error("Nothing should be written on mismatch")
			}
		})
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.txt")
	kps := []types.Keypoint{{X: 0.5, Y: 1.5, Size: 2}}
	desc := mat.NewDense(1, 2, []float64{3.3, 4.4})

	if err := WriteFile(path, kps, desc, 2); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	expected := "1\t2\n0.500000\t1.500000\t2.000000\t0.000000\t3\t4\n"
	if string(data) != expected {
		t.Errorf("Expected %q, got %q", expected, string(data))
	}
}

func TestWriteFileUnwritable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "dir", "features.txt")
	kps := []types.Keypoint{{X: 1}}
	desc := mat.NewDense(1, 1, []float64{1})

	err := WriteFile(path, kps, desc, 1)
	if !errors.Is(err, types.ErrWrite) {
		t.Errorf("Expected ErrWrite, got %v", err)
	}
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestWriteFailingWriter(t *testing.T) {
	kps := []types.Keypoint{{X: 1}}
	desc := mat.NewDense(1, 1, []float64{1})

	if err := Write(failingWriter{}, kps, desc, 1); !errors.Is(err, types.ErrWrite) {
		t.Errorf("Expected ErrWrite, got %v", err)
	}
}
