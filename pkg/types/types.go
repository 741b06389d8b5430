package types

// ImageDimensions holds the pixel size of a loaded image
type ImageDimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Area returns the number of pixels
func (d ImageDimensions) Area() int {
	return d.Width * d.Height
}

// Square reports whether width and height are equal
func (d ImageDimensions) Square() bool {
	return d.Width == d.Height
}

// GridParameters describes a regular sampling grid.
// Offset is the shift of the first sample from the top-left corner and is
// applied identically on both axes.
type GridParameters struct {
	Interval   float64 `json:"interval"`
	PatchScale float64 `json:"patch_scale"`
	Offset     float64 `json:"offset"`
}

// Keypoint is a single sample location
type Keypoint struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Size  float64 `json:"size"`
	Angle float64 `json:"angle"`
}

// ScaleFactors maps original image coordinates to the working image:
// working = original * factor.
type ScaleFactors struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// IdentityScale is used when the image was not resized
var IdentityScale = ScaleFactors{X: 1, Y: 1}

// IsIdentity reports whether no rescaling took place
func (s ScaleFactors) IsIdentity() bool {
	return s.X == 1 && s.Y == 1
}
