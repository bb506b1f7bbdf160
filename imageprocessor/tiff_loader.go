package imageprocessor

import (
	"lcdmatch/logging"
)

// TiffImageLoader handles TIFF image format
type TiffImageLoader struct {
	BaseImageLoader
}

// NewTiffImageLoader creates a new loader for TIFF files
func NewTiffImageLoader() *TiffImageLoader {
	return &TiffImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatTIFF},
		},
	}
}

// LoadImage loads a TIFF image. Multi-page and 16-bit files that OpenCV
// rejects are retried with golang.org/x/image/tiff.
func (l *TiffImageLoader) LoadImage(path string) (*GrayImage, error) {
	methods := []func(string) (*GrayImage, error){
		l.ReadWithOpenCV,
		l.ReadWithGo,
	}

	var lastErr error
	for _, method := range methods {
		img, err := method(path)
		if err == nil {
			return img, nil
		}
		logging.DebugLog("TIFF load attempt failed for %s: %v", path, err)
		lastErr = err
	}

	return nil, lastErr
}
