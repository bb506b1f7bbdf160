package imageprocessor

import (
	"image"

	"gocv.io/x/gocv"
)

// ExtractLCDSegments produces a binary mask (0 or 255) of the lit display
// segments. Renders use a fixed global threshold; photographs use a local
// Gaussian threshold followed by morphological cleanup.
func ExtractLCDSegments(img *GrayImage, verdict RenderVerdict, t Tuning) (*GrayImage, error) {
	if img == nil || img.mat.Empty() {
		return nil, ErrEmptyImage
	}

	if verdict.IsRendered() {
		return segmentRendered(img.mat, t)
	}
	return segmentPhotographed(img.mat, t)
}

func morphKernel(size int) gocv.Mat {
	return gocv.GetStructuringElement(gocv.MorphRect, image.Point{X: size, Y: size})
}

func segmentRendered(src gocv.Mat, t Tuning) (*GrayImage, error) {
	binary, err := stage("threshold", func(dst *gocv.Mat) {
		gocv.Threshold(src, dst, t.GlobalThreshold, 255, gocv.ThresholdBinary)
	})
	if err != nil {
		return nil, err
	}
	defer binary.Close()

	kernel := morphKernel(t.Rendered.MorphKernel)
	defer kernel.Close()

	closed, err := stage("close", func(dst *gocv.Mat) {
		gocv.MorphologyEx(binary, dst, gocv.MorphClose, kernel)
	})
	if err != nil {
		return nil, err
	}
	return wrapMat(closed, "close")
}

func segmentPhotographed(src gocv.Mat, t Tuning) (*GrayImage, error) {
	binary, err := stage("adaptive threshold", func(dst *gocv.Mat) {
		gocv.AdaptiveThreshold(src, dst, 255, gocv.AdaptiveThresholdGaussian, gocv.ThresholdBinary,
			t.AdaptiveBlockSize, t.AdaptiveOffset)
	})
	if err != nil {
		return nil, err
	}
	defer binary.Close()

	kernel := morphKernel(t.Photographed.MorphKernel)
	defer kernel.Close()

	closed, err := stage("close", func(dst *gocv.Mat) {
		gocv.MorphologyEx(binary, dst, gocv.MorphClose, kernel)
	})
	if err != nil {
		return nil, err
	}
	defer closed.Close()

	opened, err := stage("open", func(dst *gocv.Mat) {
		gocv.MorphologyEx(closed, dst, gocv.MorphOpen, kernel)
	})
	if err != nil {
		return nil, err
	}
	defer opened.Close()

	smoothed, err := stage("median blur", func(dst *gocv.Mat) {
		gocv.MedianBlur(opened, dst, t.MedianKernel)
	})
	if err != nil {
		return nil, err
	}
	return wrapMat(smoothed, "median blur")
}
