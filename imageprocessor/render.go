package imageprocessor

import (
	"fmt"
	"image"

	"lcdmatch/logging"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// RenderVerdict tells whether an image looks like a clean digital render or a
// camera photograph of a screen.
type RenderVerdict int

const (
	Photographed RenderVerdict = iota
	Rendered
)

// VerdictOf converts a boolean flag to a verdict.
func VerdictOf(isRender bool) RenderVerdict {
	if isRender {
		return Rendered
	}
	return Photographed
}

// IsRendered reports whether v is Rendered.
func (v RenderVerdict) IsRendered() bool { return v == Rendered }

func (v RenderVerdict) String() string {
	if v == Rendered {
		return "rendered"
	}
	return "photographed"
}

// PairVerdict is Rendered only when both images are renders.
func PairVerdict(v1, v2 RenderVerdict) RenderVerdict {
	if v1.IsRendered() && v2.IsRendered() {
		return Rendered
	}
	return Photographed
}

// RenderStats are the three measurements behind a verdict.
type RenderStats struct {
	EdgeSharpness float64 `json:"edgeSharpness"`
	NoiseStd      float64 `json:"noiseStd"`
	HistStd       float64 `json:"histStd"`
}

// Verdict applies the thresholds of t to the measurements.
func (s RenderStats) Verdict(t Tuning) RenderVerdict {
	return VerdictOf(s.EdgeSharpness > t.MinEdgeSharpness &&
		s.NoiseStd < t.MaxNoiseStd &&
		s.HistStd > t.MinHistStd)
}

// MeasureRender computes edge sharpness, residual noise and histogram spread.
func MeasureRender(img *GrayImage, t Tuning) (RenderStats, error) {
	if img == nil || img.mat.Empty() {
		return RenderStats{}, ErrEmptyImage
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(img.mat, &edges, t.CannyLow, t.CannyHigh)
	if edges.Empty() {
		return RenderStats{}, fmt.Errorf("canny produced an empty result")
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	k := t.NoiseBlurKernel
	gocv.GaussianBlur(img.mat, &blurred, image.Pt(k, k), 0, 0, gocv.BorderDefault)
	if blurred.Empty() {
		return RenderStats{}, fmt.Errorf("gaussian blur produced an empty result")
	}

	residual := gocv.NewMat()
	defer residual.Close()
	gocv.AbsDiff(img.mat, blurred, &residual)
	if residual.Empty() {
		return RenderStats{}, fmt.Errorf("absdiff produced an empty result")
	}

	_, noiseStd := stat.PopMeanStdDev(bytesToFloats(residual.ToBytes()), nil)

	return RenderStats{
		EdgeSharpness: stat.Mean(bytesToFloats(edges.ToBytes()), nil) / 255,
		NoiseStd:      noiseStd,
		HistStd:       stat.PopStdDev(histogram(img.Pixels()), nil),
	}, nil
}

// IsDigitalRender classifies img. Any failure yields Photographed.
func IsDigitalRender(img *GrayImage, t Tuning) (verdict RenderVerdict) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogWarning("render classification panicked: %v", r)
			verdict = Photographed
		}
	}()

	stats, err := MeasureRender(img, t)
	if err != nil {
		logging.DebugLog("render classification failed, assuming photographed: %v", err)
		return Photographed
	}

	verdict = stats.Verdict(t)
	logging.Event("render", "classified", map[string]interface{}{
		"edgeSharpness": stats.EdgeSharpness,
		"noiseStd":      stats.NoiseStd,
		"histStd":       stats.HistStd,
		"verdict":       verdict.String(),
	})
	return verdict
}

// histogram returns the 256 bin intensity counts.
func histogram(pix []byte) []float64 {
	counts := make([]float64, 256)
	for _, p := range pix {
		counts[p]++
	}
	return counts
}

func bytesToFloats(b []byte) []float64 {
	out := make([]float64, len(b))
	for i, v := range b {
		out[i] = float64(v)
	}
	return out
}
