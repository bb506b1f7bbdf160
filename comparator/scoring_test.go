package comparator

import (
	"math"
	"testing"

	"lcdmatch/imageprocessor"

	"github.com/stretchr/testify/assert"
)

func TestQuantityScoreBoundaries(t *testing.T) {
	tuning := imageprocessor.DefaultTuning()
	expected := float64(tuning.MaxFeatures) * tuning.Rendered.ExpectedFraction // 150

	cases := []struct {
		matches int
		want    float64
	}{
		{0, 0},
		{int(expected / 2), 0.5},
		{120, 0.9},
		{int(expected), 1},
		{int(expected * 4), 1},
	}
	for _, tc := range cases {
		assert.InDelta(t, tc.want, QuantityScore(tc.matches, true, tuning), 1e-9, "matches=%d", tc.matches)
	}

	// The photographed table expects fewer matches.
	assert.InDelta(t, 1.0, QuantityScore(90, false, tuning), 1e-9)
}

func TestQualityScore(t *testing.T) {
	tuning := imageprocessor.DefaultTuning()

	assert.Zero(t, QualityScore(nil, true, tuning))

	matches := []imageprocessor.Match{{Distance: 10}, {Distance: 30}}
	assert.InDelta(t, 0.75, QualityScore(matches, true, tuning), 1e-9)
	assert.InDelta(t, 0.8, QualityScore(matches, false, tuning), 1e-9)

	far := []imageprocessor.Match{{Distance: 200}}
	assert.Zero(t, QualityScore(far, true, tuning))
}

func TestQualityScoreUsesBestSlice(t *testing.T) {
	tuning := imageprocessor.DefaultTuning()

	matches := make([]imageprocessor.Match, 0, 150)
	for i := 0; i < tuning.QualitySlice; i++ {
		matches = append(matches, imageprocessor.Match{Distance: 0})
	}
	for i := 0; i < 50; i++ {
		matches = append(matches, imageprocessor.Match{Distance: 80})
	}

	assert.InDelta(t, 1.0, QualityScore(matches, true, tuning), 1e-9)
}

func TestCombineScore(t *testing.T) {
	tuning := imageprocessor.DefaultTuning()

	// Below the bonus threshold the exponent alone applies.
	want := 100 * math.Pow(0.5, tuning.Rendered.ScoreExponent)
	assert.InDelta(t, want, CombineScore(0.5, 0.5, 0.5, true, tuning), 1e-9)

	// Above it the bonus pushes past 100 and is clamped.
	assert.Equal(t, 100.0, CombineScore(0.7, 0.7, 0.7, true, tuning))
	assert.Equal(t, 100.0, CombineScore(1, 1, 1, false, tuning))

	assert.Zero(t, CombineScore(0, 0, 0, true, tuning))
	assert.Zero(t, CombineScore(math.NaN(), 0, 0, true, tuning))
	assert.Equal(t, 100.0, CombineScore(5, 5, 5, true, tuning))
}

func TestCombineScoreBonusJustAboveThreshold(t *testing.T) {
	tuning := imageprocessor.DefaultTuning()
	b := tuning.Photographed

	// Pick a combined value landing just above the threshold before the bonus.
	combined := math.Pow((b.BonusThreshold+1)/100, 1/b.ScoreExponent)
	got := CombineScore(combined, combined, combined, false, tuning)
	assert.InDelta(t, (b.BonusThreshold+1)*tuning.BonusMultiplier, got, 1e-6)
}
