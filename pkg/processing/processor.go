package processing

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/densesift/pkg/types"
)

// Processor handles image loading, conversion and saving
type Processor struct {
	config Config
}

// Config holds processor settings
type Config struct {
	DefaultQuality int
	Lossless       bool
	MinImageSize   int
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		config: Config{
			DefaultQuality: 90,
			Lossless:       false,
			MinImageSize:   1,
		},
	}
}

// NewProcessorWithConfig creates a processor with custom settings
func NewProcessorWithConfig(config Config) *Processor {
	return &Processor{config: config}
}

// LoadImageFromURL downloads and loads an image from a URL
func (p *Processor) LoadImageFromURL(imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequest("GET", imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("User-Agent", "densesift/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotFound, imageURL)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %v", err)
	}

	return p.decodeImageFromBytes(imageData)
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", types.ErrFileNotFound, path)
	}

	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open image file %s: %w", path, err)
	}
	defer f.Close()

	if img, err := webp.Decode(f); err == nil {
		return img, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err == nil {
		if img, _, err := image.Decode(f); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("image: unknown format for %s", path)
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(source)
	}
	return p.LoadImage(source)
}

func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, error) {
	reader := bytes.NewReader(data)
	if img, _, err := image.Decode(reader); err == nil {
		return img, nil
	}

	reader = bytes.NewReader(data)
	if img, err := webp.Decode(reader); err == nil {
		return img, nil
	}

	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// ToGrayscale returns a grayscale copy of img
func (p *Processor) ToGrayscale(img image.Image) image.Image {
	return imaging.Grayscale(img)
}

// GetImageInfo returns the image dimensions
func (p *Processor) GetImageInfo(img image.Image) types.ImageDimensions {
	bounds := img.Bounds()
	return types.ImageDimensions{
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
	}
}

// ValidateImage checks the image against the minimum size
func (p *Processor) ValidateImage(img image.Image) error {
	bounds := img.Bounds()
	minSize := p.config.MinImageSize
	if minSize < 1 {
		minSize = 1
	}
	if bounds.Dx() < minSize || bounds.Dy() < minSize {
		return fmt.Errorf("%w: image too small: %dx%d (minimum: %d)",
			types.ErrDegenerateGeometry, bounds.Dx(), bounds.Dy(), minSize)
	}
	return nil
}

// SaveImage saves an image to a file in the given format
func (p *Processor) SaveImage(img image.Image, path, format string) error {
	if err := p.saveImage(img, path, format); err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrWrite, path, err)
	}
	return nil
}

func (p *Processor) saveImage(img image.Image, path, format string) error {
	switch strings.ToLower(format) {
	case "webp":
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		opts := &webp.Options{Lossless: p.config.Lossless, Quality: float32(p.config.DefaultQuality)}
		if err := webp.Encode(f, img, opts); err != nil {
			return err
		}
		return f.Close()
	case "png":
		return imaging.Save(img, path)
	case "jpg", "jpeg":
		return imaging.Save(img, path, imaging.JPEGQuality(p.config.DefaultQuality))
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
