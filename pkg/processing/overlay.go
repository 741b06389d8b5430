package processing

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
	"github.com/golang/freetype/raster"
	"golang.org/x/image/colornames"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/densesift/pkg/types"
)

// circleSegments is the polygon resolution of overlay circles
const circleSegments = 64

// CreateKeypointOverlay draws every keypoint onto a copy of img: an
// antialiased yellow circle with radius equal to the keypoint size and a
// green dot at its centre. Coordinates are in img's pixel space.
func (p *Processor) CreateKeypointOverlay(img image.Image, keypoints []types.Keypoint) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w := nrgba.Bounds().Dx()
	h := nrgba.Bounds().Dy()

	yellow := color.NRGBA{colornames.Yellow.R, colornames.Yellow.G, colornames.Yellow.B, 255}
	green := color.NRGBA{colornames.Lime.R, colornames.Lime.G, colornames.Lime.B, 255}

	r := raster.NewRasterizer(w, h)
	painter := &nrgbaPainter{img: nrgba, c: yellow}
	for _, kp := range keypoints {
		if kp.Size <= 0 {
			continue
		}
		r.Clear()
		addRing(r, kp.X, kp.Y, kp.Size, 1)
		r.Rasterize(painter)
	}

	for _, kp := range keypoints {
		drawDot(nrgba, int(math.Round(kp.X)), int(math.Round(kp.Y)), green)
	}

	return nrgba
}

// addRing adds a ring of the given stroke width centred on radius. With
// even-odd filling the inner circle cuts the hole.
func addRing(r *raster.Rasterizer, cx, cy, radius, stroke float64) {
	outer := radius + stroke/2
	inner := radius - stroke/2
	addCircle(r, cx, cy, outer)
	if inner > 0 {
		addCircle(r, cx, cy, inner)
	}
}

func addCircle(r *raster.Rasterizer, cx, cy, radius float64) {
	r.Start(toFixed(cx+radius, cy))
	for i := 1; i <= circleSegments; i++ {
		theta := 2 * math.Pi * float64(i) / circleSegments
		r.Add1(toFixed(cx+radius*math.Cos(theta), cy+radius*math.Sin(theta)))
	}
}

func toFixed(x, y float64) fixed.Point26_6 {
	return fixed.Point26_6{
		X: fixed.Int26_6(math.Round(x * 64)),
		Y: fixed.Int26_6(math.Round(y * 64)),
	}
}

// drawDot fills a radius-1 disc: the centre pixel and its four neighbours
func drawDot(img *image.NRGBA, x, y int, c color.NRGBA) {
	drawHLine(img, y, x-1, x+2, c)
	drawVLine(img, x, y-1, y+2, c)
}

// nrgbaPainter blends rasterizer spans into an NRGBA image
type nrgbaPainter struct {
	img *image.NRGBA
	c   color.NRGBA
}

func (p *nrgbaPainter) Paint(ss []raster.Span, done bool) {
	b := p.img.Bounds()
	for _, s := range ss {
		if s.Y < b.Min.Y || s.Y >= b.Max.Y {
			continue
		}
		x0, x1 := s.X0, s.X1
		if x0 < b.Min.X {
			x0 = b.Min.X
		}
		if x1 > b.Max.X {
			x1 = b.Max.X
		}
		if x0 >= x1 {
			continue
		}
		a := s.Alpha >> 8 // 0..255
		i := p.img.PixOffset(x0, s.Y)
		for x := x0; x < x1; x++ {
			blend(p.img.Pix[i:i+4], p.c, a)
			i += 4
		}
	}
}

// blend composites c over dst with coverage a (0..255)
func blend(dst []uint8, c color.NRGBA, a uint32) {
	if a >= 255 {
		dst[0], dst[1], dst[2], dst[3] = c.R, c.G, c.B, 255
		return
	}
	inv := 255 - a
	dst[0] = uint8((uint32(c.R)*a + uint32(dst[0])*inv) / 255)
	dst[1] = uint8((uint32(c.G)*a + uint32(dst[1])*inv) / 255)
	dst[2] = uint8((uint32(c.B)*a + uint32(dst[2])*inv) / 255)
	alpha := a + uint32(dst[3])*inv/255
	if alpha > 255 {
		alpha = 255
	}
	dst[3] = uint8(alpha)
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}
