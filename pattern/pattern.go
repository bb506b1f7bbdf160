// Package pattern draws synthetic display test patterns: a grid of cells
// lit at one of two flat levels, optionally degraded to look like a camera
// capture of a screen.
package pattern

import (
	"image"
	"image/color"
	"math/rand"

	"golang.org/x/image/draw"
)

// Options controls pattern generation.
type Options struct {
	Width  int
	Height int
	Cell   int
	Seed   int64

	// Low and High are the two gray levels cells are drawn with.
	Low  uint8
	High uint8

	// Noisy blurs the pattern and adds Gaussian noise of NoiseSigma.
	Noisy      bool
	NoiseSigma float64
}

// DefaultOptions returns a 640x480 pattern of 6 pixel cells. The contrast
// between levels is kept moderate so a clean pattern has sharp edges
// without a large blur residual.
func DefaultOptions() Options {
	return Options{
		Width:      640,
		Height:     480,
		Cell:       6,
		Seed:       1,
		Low:        100,
		High:       156,
		NoiseSigma: 40,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.Cell <= 0 {
		o.Cell = d.Cell
	}
	if o.Low == 0 && o.High == 0 {
		o.Low, o.High = d.Low, d.High
	}
	if o.NoiseSigma <= 0 {
		o.NoiseSigma = d.NoiseSigma
	}
	return o
}

// Generate draws a pattern. The same options always produce the same image.
func Generate(opts Options) *image.RGBA {
	opts = opts.withDefaults()
	rng := rand.New(rand.NewSource(opts.Seed))

	img := image.NewRGBA(image.Rect(0, 0, opts.Width, opts.Height))
	for y := 0; y < opts.Height; y += opts.Cell {
		for x := 0; x < opts.Width; x += opts.Cell {
			level := opts.Low
			if rng.Intn(2) == 1 {
				level = opts.High
			}
			cell := image.Rect(x, y, x+opts.Cell, y+opts.Cell).Intersect(img.Rect)
			draw.Draw(img, cell, &image.Uniform{C: color.RGBA{R: level, G: level, B: level, A: 255}}, image.Point{}, draw.Src)
		}
	}

	if opts.Noisy {
		return Degrade(img, opts.NoiseSigma, opts.Seed)
	}
	return img
}

// Degrade softens src by resampling it through half resolution and adds
// per-pixel Gaussian noise, approximating a photograph of the screen.
func Degrade(src *image.RGBA, sigma float64, seed int64) *image.RGBA {
	b := src.Bounds()
	half := image.NewRGBA(image.Rect(0, 0, max(1, b.Dx()/2), max(1, b.Dy()/2)))
	draw.BiLinear.Scale(half, half.Bounds(), src, b, draw.Src, nil)

	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.BiLinear.Scale(out, out.Bounds(), half, half.Bounds(), draw.Src, nil)

	rng := rand.New(rand.NewSource(seed + 1))
	for i := 0; i < len(out.Pix); i += 4 {
		v := clampByte(float64(out.Pix[i]) + rng.NormFloat64()*sigma)
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = v, v, v
		out.Pix[i+3] = 255
	}
	return out
}

// Solid returns a uniform image, useful as a featureless input.
func Solid(width, height int, level uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: level, G: level, B: level, A: 255}}, image.Point{}, draw.Src)
	return img
}

func clampByte(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
