// Package imageprocessor loads images as grayscale matrices and implements
// the stages of the display comparison pipeline: render classification,
// preprocessing, segment extraction, ORB features, matching, spatial and
// structural scoring.
//
// Functions in this package call into OpenCV and are not safe for concurrent
// use; the comparator package serializes them on a single thread.
package imageprocessor

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// CanLoad checks if the loader can handle the given file
	CanLoad(path string) bool

	// LoadImage loads the file as a grayscale image
	LoadImage(path string) (*GrayImage, error)
}
