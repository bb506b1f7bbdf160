package imageprocessor

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// StructuralComponents are the parts of a structural similarity score, each
// mapped to [0,1].
type StructuralComponents struct {
	Original  float64 `json:"original"`
	Segments  float64 `json:"segments"`
	Histogram float64 `json:"histogram"`
	Combined  float64 `json:"combined"`
}

// MeasureStructure correlates two preprocessed images and their segment
// masks. The verdicts choose how much weight the masks get.
func MeasureStructure(img1, img2, seg1, seg2 *GrayImage, v1, v2 RenderVerdict, t Tuning) (StructuralComponents, error) {
	for _, img := range []*GrayImage{img1, img2, seg1, seg2} {
		if img == nil || img.mat.Empty() {
			return StructuralComponents{}, ErrEmptyImage
		}
	}

	original, err := templateCorrelation(img1.mat, img2.mat)
	if err != nil {
		return StructuralComponents{}, fmt.Errorf("image correlation: %w", err)
	}

	segments, err := templateCorrelation(seg1.mat, seg2.mat)
	if err != nil {
		return StructuralComponents{}, fmt.Errorf("segment correlation: %w", err)
	}

	c := StructuralComponents{
		Original:  Clamp01((original + 1) / 2),
		Segments:  Clamp01((segments + 1) / 2),
		Histogram: Clamp01((HistogramCorrelation(img1, img2) + 1) / 2),
	}

	b := t.PairBranch(v1, v2)
	c.Combined = Clamp01(b.OrigWeight*c.Original + b.SegWeight*c.Segments + b.HistWeight*c.Histogram)
	return c, nil
}

// StructuralSimilarity returns the combined structural score in [0,1].
func StructuralSimilarity(img1, img2, seg1, seg2 *GrayImage, v1, v2 RenderVerdict, t Tuning) (float64, error) {
	c, err := MeasureStructure(img1, img2, seg1, seg2, v1, v2, t)
	if err != nil {
		return 0, err
	}
	return c.Combined, nil
}

// templateCorrelation is the normalized correlation coefficient of a and b,
// with b resized to a's dimensions first.
func templateCorrelation(a, b gocv.Mat) (float64, error) {
	resized, err := stage("resize", func(dst *gocv.Mat) {
		gocv.Resize(b, dst, image.Point{X: a.Cols(), Y: a.Rows()}, 0, 0, gocv.InterpolationLinear)
	})
	if err != nil {
		return 0, err
	}
	defer resized.Close()

	noMask := gocv.NewMat()
	defer noMask.Close()

	result, err := stage("template match", func(dst *gocv.Mat) {
		gocv.MatchTemplate(a, resized, dst, gocv.TmCcoeffNormed, noMask)
	})
	if err != nil {
		return 0, err
	}
	defer result.Close()

	_, maxVal, _, _ := gocv.MinMaxLoc(result)
	return float64(maxVal), nil
}
