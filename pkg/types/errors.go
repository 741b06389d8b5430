package types

import "errors"

// Extraction errors. Callers match them with errors.Is; the returned errors
// are usually wrapped with the values that caused them.
var (
	// ErrInfeasibleDensity is returned when the requested keypoint count is
	// not positive or exceeds the number of pixels.
	ErrInfeasibleDensity = errors.New("infeasible density")

	// ErrDegenerateGeometry is returned for non-positive image sizes or a
	// non-positive sampling interval.
	ErrDegenerateGeometry = errors.New("degenerate geometry")

	// ErrUnsatisfiableGrid is returned when the offset search runs below zero
	// without reaching the requested count.
	ErrUnsatisfiableGrid = errors.New("unsatisfiable grid")

	// ErrConvergenceTimeout is returned when the offset search exceeds its
	// iteration cap.
	ErrConvergenceTimeout = errors.New("convergence timeout")

	ErrFileNotFound = errors.New("file not found")
	ErrWrite        = errors.New("write error")

	// ErrNotExtracted is returned when saving output before a successful extraction.
	ErrNotExtracted = errors.New("image features not extracted yet")

	ErrNotImplemented = errors.New("not implemented")

	// ErrDescriptorMismatch is returned when descriptor rows or columns do not
	// line up with the keypoints they describe.
	ErrDescriptorMismatch = errors.New("descriptor/keypoint mismatch")
)
