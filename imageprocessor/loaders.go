package imageprocessor

import (
	"fmt"
	"os"

	"gocv.io/x/gocv"
)

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// CanLoad checks if this loader supports the file's format
func (l *BaseImageLoader) CanLoad(path string) bool {
	format := GetFileFormat(path)

	for _, supported := range l.SupportedFormats {
		if format == supported {
			return hasFileContent(path)
		}
	}

	return false
}

// ReadWithOpenCV decodes an 8-bit gray or BGR file with OpenCV and
// converts it to gray with the same luma weights used for in-memory images.
// Files with alpha or a deeper sample type are refused so that the Go
// decoders, which match in-memory ingestion, handle them.
func (l *BaseImageLoader) ReadWithOpenCV(path string) (*GrayImage, error) {
	m := gocv.IMRead(path, gocv.IMReadUnchanged)
	if m.Empty() {
		m.Close()
		return nil, newImageLoadError("opencv could not decode", path)
	}

	switch m.Type() {
	case gocv.MatTypeCV8UC1, gocv.MatTypeCV8UC3:
		return wrapMat(m, "grayscale conversion")
	default:
		channels := m.Channels()
		m.Close()
		return nil, newImageLoadError(fmt.Sprintf("opencv decode has %d channels or non 8-bit samples", channels), path)
	}
}

// ReadWithGo decodes a file with the Go image decoders.
func (l *BaseImageLoader) ReadWithGo(path string) (*GrayImage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	img, err := DecodeImage(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// hasFileContent checks if a file exists and has a non-zero size
func hasFileContent(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(message, path string) error {
	return fmt.Errorf("%s: %s", message, path)
}
