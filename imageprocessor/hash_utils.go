package imageprocessor

import (
	"fmt"
	"image"
	"sort"

	"github.com/steakknife/hamming"
	"gocv.io/x/gocv"
)

// ComputeAverageHash returns a 64 bit average hash: one bit per cell of an
// 8x8 thumbnail, set when the cell is at least as bright as the mean.
func ComputeAverageHash(img *GrayImage) (uint64, error) {
	if img == nil || img.mat.Empty() {
		return 0, fmt.Errorf("cannot compute hash for empty image")
	}

	thumb, err := stage("resize", func(dst *gocv.Mat) {
		gocv.Resize(img.mat, dst, image.Point{X: 8, Y: 8}, 0, 0, gocv.InterpolationArea)
	})
	if err != nil {
		return 0, err
	}
	defer thumb.Close()

	pix := thumb.ToBytes()
	var sum float64
	for _, p := range pix {
		sum += float64(p)
	}
	mean := sum / float64(len(pix))

	var hash uint64
	for _, p := range pix {
		hash <<= 1
		if float64(p) >= mean {
			hash |= 1
		}
	}
	return hash, nil
}

// ComputePerceptualHash returns a 64 bit DCT hash taken from the low
// frequency 8x8 block of a 32x32 thumbnail, thresholded at its median.
func ComputePerceptualHash(img *GrayImage) (uint64, error) {
	if img == nil || img.mat.Empty() {
		return 0, fmt.Errorf("cannot compute hash for empty image")
	}

	thumb, err := stage("resize", func(dst *gocv.Mat) {
		gocv.Resize(img.mat, dst, image.Point{X: 32, Y: 32}, 0, 0, gocv.InterpolationArea)
	})
	if err != nil {
		return 0, err
	}
	defer thumb.Close()

	floatImg, err := stage("convert", func(dst *gocv.Mat) {
		thumb.ConvertTo(dst, gocv.MatTypeCV32F)
	})
	if err != nil {
		return 0, err
	}
	defer floatImg.Close()

	dct, err := stage("dct", func(dst *gocv.Mat) {
		gocv.DCT(floatImg, dst, 0)
	})
	if err != nil {
		return 0, err
	}
	defer dct.Close()

	values := make([]float32, 0, 64)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			values = append(values, dct.GetFloatAt(y, x))
		}
	}
	median := calculateMedian(values)

	var hash uint64
	for _, v := range values {
		hash <<= 1
		if v >= median {
			hash |= 1
		}
	}
	return hash, nil
}

// HashDistance counts the differing bits of two fingerprints.
func HashDistance(a, b uint64) int {
	return hamming.Uint64(a, b)
}

// calculateMedian calculates the median value of a float32 array
func calculateMedian(values []float32) float32 {
	sorted := make([]float32, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 0:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	default:
		return sorted[n/2]
	}
}
