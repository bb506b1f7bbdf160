package imageprocessor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HistogramCorrelation returns the Pearson correlation of the 256 bin
// intensity histograms of a and b, in [-1,1]. Two flat histograms have
// nothing to disagree on and correlate at 1.
func HistogramCorrelation(a, b *GrayImage) float64 {
	r := stat.Correlation(histogram(a.Pixels()), histogram(b.Pixels()), nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 1
	}
	return r
}
