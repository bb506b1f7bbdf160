package imageprocessor

import (
	"image"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func gradient(w, h int) []byte {
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = uint8((x + y) % 256)
		}
	}
	return pix
}

func TestNewGrayImageFromPixelsCopiesBuffer(t *testing.T) {
	pix := gradient(16, 8)
	img, err := NewGrayImageFromPixels(16, 8, pix)
	require.NoError(t, err)
	defer img.Close()

	pix[0] = 200
	assert.Equal(t, 16, img.Width())
	assert.Equal(t, 8, img.Height())
	assert.Equal(t, uint8(0), img.At(0, 0))
	assert.Equal(t, uint8(10), img.At(3, 7))
}

func TestNewGrayImageFromPixelsRejectsBadInput(t *testing.T) {
	_, err := NewGrayImageFromPixels(0, 8, nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = NewGrayImageFromPixels(4, 4, make([]byte, 15))
	assert.Error(t, err)
}

func TestNewGrayImageFromImage(t *testing.T) {
	_, err := NewGrayImageFromImage(nil)
	assert.ErrorIs(t, err, ErrEmptyImage)

	_, err = NewGrayImageFromImage(image.NewRGBA(image.Rect(0, 0, 0, 5)))
	assert.ErrorIs(t, err, ErrEmptyImage)

	src := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 90, G: 90, B: 90, A: 255})
		}
	}
	img, err := NewGrayImageFromImage(src)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 4, img.Width())
	assert.Equal(t, 3, img.Height())
	for _, p := range img.Pixels() {
		assert.InDelta(t, 90, int(p), 1)
	}
}

func TestNewGrayImageFromSubImage(t *testing.T) {
	full := image.NewGray(image.Rect(0, 0, 10, 10))
	copy(full.Pix, gradient(10, 10))
	sub := full.SubImage(image.Rect(2, 3, 6, 5)).(*image.Gray)

	img, err := NewGrayImageFromImage(sub)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, 4, img.Width())
	assert.Equal(t, 2, img.Height())
	assert.Equal(t, uint8(5), img.At(0, 0))
	assert.Equal(t, uint8(9), img.At(3, 1))
}

func TestGrayImageRoundTripsThroughImage(t *testing.T) {
	img, err := NewGrayImageFromPixels(12, 6, gradient(12, 6))
	require.NoError(t, err)
	defer img.Close()

	out := img.ToImage()
	assert.Equal(t, image.Rect(0, 0, 12, 6), out.Bounds())
	assert.Equal(t, gradient(12, 6), out.Pix)

	clone := img.Clone()
	defer clone.Close()
	assert.Equal(t, img.Pixels(), clone.Pixels())
}

func TestGrayImageSaveAndLoad(t *testing.T) {
	img, err := NewGrayImageFromPixels(20, 10, gradient(20, 10))
	require.NoError(t, err)
	defer img.Close()

	path := filepath.Join(t.TempDir(), "gradient.png")
	require.NoError(t, img.Save(path))

	loaded, err := LoadImage(path)
	require.NoError(t, err)
	defer loaded.Close()
	assert.Equal(t, img.Pixels(), loaded.Pixels())
}

func TestWrapMatConvertsColorMats(t *testing.T) {
	// B=10 G=20 R=30 has luma 0.114*10 + 0.587*20 + 0.299*30 = 21.85
	for _, mt := range []gocv.MatType{gocv.MatTypeCV8UC3, gocv.MatTypeCV8UC4} {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 255), 4, 6, mt)
		img, err := wrapMat(m, "test")
		require.NoError(t, err, "mat type %v", mt)

		assert.Equal(t, 6, img.Width())
		assert.Equal(t, 4, img.Height())
		for _, v := range img.Pixels() {
			assert.InDelta(t, 22, int(v), 1)
		}
		img.Close()
	}

	_, err := wrapMat(gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1, 2, 0, 0), 4, 6, gocv.MatTypeCV8UC2), "test")
	assert.ErrorContains(t, err, "unsupported channel count 2")
}
