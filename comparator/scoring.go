package comparator

import (
	"math"

	"lcdmatch/imageprocessor"
)

// QualityScore maps the mean distance of the best matches to [0,1]; closer
// descriptors score higher. matches must be sorted by distance.
func QualityScore(matches []imageprocessor.Match, bothRendered bool, t imageprocessor.Tuning) float64 {
	if len(matches) == 0 {
		return 0
	}

	n := len(matches)
	if n > t.QualitySlice {
		n = t.QualitySlice
	}

	var sum float64
	for _, m := range matches[:n] {
		sum += m.Distance
	}
	avg := sum / float64(n)

	maxDistance := branch(bothRendered, t).MaxDistance
	return imageprocessor.Clamp01((maxDistance - avg) / maxDistance)
}

// QuantityScore rates a match count against the count expected for a
// matching pair. It equals the raw ratio up to half the expected count,
// reaches 1 at the expected count and grows logarithmically past it.
func QuantityScore(matchCount int, bothRendered bool, t imageprocessor.Tuning) float64 {
	expected := float64(t.MaxFeatures) * branch(bothRendered, t).ExpectedFraction
	if expected <= 0 {
		return 0
	}
	ratio := float64(matchCount) / expected

	var score float64
	switch {
	case ratio <= 0.5:
		score = ratio
	case ratio <= 1.0:
		score = 0.5 + 0.5*ratio
	default:
		score = math.Min(1, 1+0.3*math.Log2(ratio))
	}
	return imageprocessor.Clamp01(score)
}

// CombineScore weights the three sub-scores, applies the progressive
// exponent and the high-score bonus, and clamps to [0,100].
func CombineScore(structural, quantity, quality float64, bothRendered bool, t imageprocessor.Tuning) float64 {
	b := branch(bothRendered, t)

	combined := b.StructuralWeight*imageprocessor.Clamp01(structural) +
		b.QuantityWeight*imageprocessor.Clamp01(quantity) +
		b.QualityWeight*imageprocessor.Clamp01(quality)

	score := 100 * math.Pow(imageprocessor.Clamp01(combined), b.ScoreExponent)
	if score > b.BonusThreshold {
		score *= t.BonusMultiplier
	}
	return clampScore(score)
}

func branch(bothRendered bool, t imageprocessor.Tuning) imageprocessor.BranchTuning {
	return t.Branch(imageprocessor.VerdictOf(bothRendered))
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
