package imageprocessor

import (
	"fmt"
	"image"
	"io"
	"os"

	// Decoders registered with image.Decode
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// DecodeColorImage decodes any registered format into an image.Image.
func DecodeColorImage(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if b := img.Bounds(); b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", fmt.Errorf("failed to decode image: %w", ErrEmptyImage)
	}
	return img, format, nil
}

// DecodeImage decodes an encoded image from r straight to grayscale.
func DecodeImage(r io.Reader) (*GrayImage, error) {
	img, _, err := DecodeColorImage(r)
	if err != nil {
		return nil, err
	}
	return NewGrayImageFromImage(img)
}

// LoadColorImage opens and decodes a file with the Go decoders, keeping
// its colour channels. The boundary API takes images in this form.
func LoadColorImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := DecodeColorImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}
