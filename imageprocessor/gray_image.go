package imageprocessor

import (
	"errors"
	"fmt"
	"image"
	"runtime"

	"gocv.io/x/gocv"
	"golang.org/x/image/draw"
)

var (
	// ErrEmptyImage is returned for nil, zero-sized or undecodable inputs.
	ErrEmptyImage = errors.New("empty image")

	// ErrNoFeatures is returned when either image of a pair yields no
	// keypoints, so no matching can take place.
	ErrNoFeatures = errors.New("no features detected")
)

// GrayImage is an 8-bit single channel image backed by an OpenCV matrix.
// Every pipeline stage returns a new GrayImage and never mutates its input.
// The holder must call Close.
type GrayImage struct {
	mat gocv.Mat
}

// NewGrayImageFromImage converts any image.Image to grayscale using the
// fixed BT.601 luma weights of OpenCV's RGBA to gray conversion.
func NewGrayImageFromImage(img image.Image) (*GrayImage, error) {
	if img == nil {
		return nil, ErrEmptyImage
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return nil, ErrEmptyImage
	}

	if g, ok := img.(*image.Gray); ok {
		pix := make([]byte, 0, bounds.Dx()*bounds.Dy())
		for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
			start := g.PixOffset(bounds.Min.X, y)
			pix = append(pix, g.Pix[start:start+bounds.Dx()]...)
		}
		return NewGrayImageFromPixels(bounds.Dx(), bounds.Dy(), pix)
	}

	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	src, err := gocv.NewMatFromBytes(rgba.Rect.Dy(), rgba.Rect.Dx(), gocv.MatTypeCV8UC4, rgba.Pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap pixels: %w", err)
	}
	defer src.Close()

	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorRGBAToGray)
	runtime.KeepAlive(rgba.Pix)

	return wrapMat(gray, "grayscale conversion")
}

// NewGrayImageFromPixels builds an image from a row-major 8-bit buffer.
// The buffer is copied.
func NewGrayImageFromPixels(width, height int, pix []byte) (*GrayImage, error) {
	if width <= 0 || height <= 0 {
		return nil, ErrEmptyImage
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("pixel buffer has %d bytes, want %d", len(pix), width*height)
	}

	view, err := gocv.NewMatFromBytes(height, width, gocv.MatTypeCV8UC1, pix)
	if err != nil {
		return nil, fmt.Errorf("failed to wrap pixels: %w", err)
	}
	defer view.Close()

	// The view aliases Go memory, so the image keeps its own copy.
	owned := view.Clone()
	runtime.KeepAlive(pix)

	return wrapMat(owned, "pixel import")
}

// wrapMat takes ownership of m. An empty matrix is reported as a failure of
// the named stage.
func wrapMat(m gocv.Mat, stage string) (*GrayImage, error) {
	if m.Empty() {
		m.Close()
		return nil, fmt.Errorf("%s produced an empty result", stage)
	}

	if m.Channels() != 1 {
		var code gocv.ColorConversionCode
		switch m.Channels() {
		case 3:
			code = gocv.ColorBGRToGray
		case 4:
			code = gocv.ColorBGRAToGray
		default:
			n := m.Channels()
			m.Close()
			return nil, fmt.Errorf("%s: unsupported channel count %d", stage, n)
		}
		gray := gocv.NewMat()
		gocv.CvtColor(m, &gray, code)
		m.Close()
		if gray.Empty() {
			gray.Close()
			return nil, fmt.Errorf("%s produced an empty result", stage)
		}
		m = gray
	}

	if m.Type() != gocv.MatTypeCV8UC1 {
		converted := gocv.NewMat()
		m.ConvertTo(&converted, gocv.MatTypeCV8UC1)
		m.Close()
		if converted.Empty() {
			converted.Close()
			return nil, fmt.Errorf("%s produced an empty result", stage)
		}
		m = converted
	}

	return &GrayImage{mat: m}, nil
}

// Width returns the number of columns.
func (g *GrayImage) Width() int { return g.mat.Cols() }

// Height returns the number of rows.
func (g *GrayImage) Height() int { return g.mat.Rows() }

// At returns the intensity at column x, row y.
func (g *GrayImage) At(x, y int) uint8 { return g.mat.GetUCharAt(y, x) }

// Pixels returns a row-major copy of the intensities.
func (g *GrayImage) Pixels() []byte {
	return g.mat.ToBytes()
}

// ToImage copies the intensities into a standard library image.
func (g *GrayImage) ToImage() *image.Gray {
	out := image.NewGray(image.Rect(0, 0, g.Width(), g.Height()))
	copy(out.Pix, g.Pixels())
	return out
}

// Clone returns an independent copy.
func (g *GrayImage) Clone() *GrayImage {
	return &GrayImage{mat: g.mat.Clone()}
}

// Save writes the image with OpenCV's encoder chosen by extension.
func (g *GrayImage) Save(path string) error {
	if ok := gocv.IMWrite(path, g.mat); !ok {
		return fmt.Errorf("failed to write image: %s", path)
	}
	return nil
}

// Close releases the underlying matrix. Safe to call more than once.
func (g *GrayImage) Close() {
	if g == nil {
		return
	}
	g.mat.Close()
}
