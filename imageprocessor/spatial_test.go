package imageprocessor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpatialScoreNoMatches(t *testing.T) {
	tuning := DefaultTuning()
	kps := []Keypoint{{X: 10, Y: 10}}
	assert.Zero(t, SpatialScore(kps, nil, 640, 480, tuning))
	assert.Zero(t, SpatialScore(kps, []Match{{QueryIdx: 0}}, 0, 480, tuning))
}

func TestSpatialScoreEvenCoverage(t *testing.T) {
	tuning := DefaultTuning()
	const width, height = 800, 800

	var kps []Keypoint
	var matches []Match
	cell := float64(width) / float64(tuning.FineGrid)
	for r := 0; r < tuning.FineGrid; r++ {
		for c := 0; c < tuning.FineGrid; c++ {
			matches = append(matches, Match{QueryIdx: len(kps)})
			kps = append(kps, Keypoint{X: (float64(c) + 0.5) * cell, Y: (float64(r) + 0.5) * cell})
		}
	}

	assert.InDelta(t, 1.0, SpatialScore(kps, matches, width, height, tuning), 1e-9)
}

func TestSpatialScoreSingleCluster(t *testing.T) {
	tuning := DefaultTuning()
	kps := []Keypoint{{X: 5, Y: 5}}
	matches := []Match{{QueryIdx: 0}, {QueryIdx: 0}}

	// One occupied cell at each scale: perfectly even among occupied
	// cells, with row and column sums too uneven to count as aligned.
	want := tuning.FineCoverageWeight/64 +
		tuning.CoarseCoverageWeight/16 +
		tuning.FineEvennessWeight +
		tuning.CoarseEvennessWeight

	assert.InDelta(t, want, SpatialScore(kps, matches, 640, 480, tuning), 1e-9)
}

func TestSpatialScoreIgnoresOutOfRangeIndices(t *testing.T) {
	tuning := DefaultTuning()
	kps := []Keypoint{{X: 5, Y: 5}}
	withBad := SpatialScore(kps, []Match{{QueryIdx: 0}, {QueryIdx: 9}, {QueryIdx: -1}}, 640, 480, tuning)
	assert.InDelta(t, SpatialScore(kps, []Match{{QueryIdx: 0}}, 640, 480, tuning), withBad, 1e-9)
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.5))
	assert.Equal(t, 0.25, Clamp01(0.25))
	assert.Equal(t, 1.0, Clamp01(3))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}
