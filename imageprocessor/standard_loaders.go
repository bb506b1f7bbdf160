package imageprocessor

import (
	"lcdmatch/logging"
)

// StandardImageLoader handles lossless formats like PNG and BMP.
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatPNG,
				FormatBMP,
				FormatWEBP,
			},
		},
	}
}

// LoadImage tries OpenCV first and falls back to the Go decoders, which
// cover builds of OpenCV without a codec for the format.
func (l *StandardImageLoader) LoadImage(path string) (*GrayImage, error) {
	img, err := l.ReadWithOpenCV(path)
	if err == nil {
		return img, nil
	}

	logging.DebugLog("OpenCV load failed for %s, trying Go decoders: %v", path, err)
	return l.ReadWithGo(path)
}

// GoImageLoader decodes with the Go image packages only. OpenCV cannot
// read GIF, and its JPEG decoder rounds differently from image/jpeg, which
// in-memory images go through.
type GoImageLoader struct {
	BaseImageLoader
}

// NewGoImageLoader creates a loader backed by the Go decoders
func NewGoImageLoader() *GoImageLoader {
	return &GoImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{FormatJPEG, FormatGIF},
		},
	}
}

// LoadImage decodes the file, taking the first frame of a GIF
func (l *GoImageLoader) LoadImage(path string) (*GrayImage, error) {
	return l.ReadWithGo(path)
}
