package imageprocessor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreprocessKeepsSizeAndInput(t *testing.T) {
	tuning := DefaultTuning()
	img := patternImage(t, false)
	before := img.Pixels()

	for _, verdict := range []RenderVerdict{Rendered, Photographed} {
		t.Run(verdict.String(), func(t *testing.T) {
			out, err := PreprocessImage(img, verdict, tuning)
			require.NoError(t, err)
			defer out.Close()

			assert.Equal(t, img.Width(), out.Width())
			assert.Equal(t, img.Height(), out.Height())
			assert.Equal(t, before, img.Pixels())
		})
	}
}

func TestExtractLCDSegmentsIsBinary(t *testing.T) {
	tuning := DefaultTuning()
	img := patternImage(t, false)

	for _, verdict := range []RenderVerdict{Rendered, Photographed} {
		t.Run(verdict.String(), func(t *testing.T) {
			mask, err := ExtractLCDSegments(img, verdict, tuning)
			require.NoError(t, err)
			defer mask.Close()

			assert.Equal(t, img.Width(), mask.Width())
			assert.Equal(t, img.Height(), mask.Height())
			for _, p := range mask.Pixels() {
				if p != 0 && p != 255 {
					t.Fatalf("mask pixel %d is not binary", p)
				}
			}
		})
	}
}

func TestPipelineRejectsEmptyImage(t *testing.T) {
	tuning := DefaultTuning()

	_, err := PreprocessImage(nil, Rendered, tuning)
	assert.Error(t, err)
	_, err = ExtractLCDSegments(nil, Photographed, tuning)
	assert.Error(t, err)
	_, err = DetectFeatures(nil, nil, Rendered, tuning)
	assert.Error(t, err)
}

func TestDetectFeaturesOnPattern(t *testing.T) {
	tuning := DefaultTuning()
	img := patternImage(t, false)

	mask, err := ExtractLCDSegments(img, Rendered, tuning)
	require.NoError(t, err)
	defer mask.Close()

	features, err := DetectFeatures(img, mask, Rendered, tuning)
	require.NoError(t, err)
	assert.False(t, features.Empty())
	assert.Equal(t, len(features.Keypoints), len(features.Descriptors))
	assert.LessOrEqual(t, features.Len(), tuning.MaxFeatures)
}

func TestDetectFeaturesOnSolidImage(t *testing.T) {
	img, err := NewGrayImageFromPixels(64, 64, make([]byte, 64*64))
	require.NoError(t, err)
	defer img.Close()

	features, err := DetectFeatures(img, img, Photographed, DefaultTuning())
	require.NoError(t, err)
	assert.True(t, features.Empty())
}

func TestStructuralSimilarityOfIdenticalImages(t *testing.T) {
	tuning := DefaultTuning()
	img := patternImage(t, false)

	seg, err := ExtractLCDSegments(img, Rendered, tuning)
	require.NoError(t, err)
	defer seg.Close()

	c, err := MeasureStructure(img, img, seg, seg, Rendered, Rendered, tuning)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c.Original, 1e-4)
	assert.InDelta(t, 1.0, c.Segments, 1e-4)
	assert.InDelta(t, 1.0, c.Histogram, 1e-9)
	assert.InDelta(t, 1.0, c.Combined, 1e-4)

	_, err = StructuralSimilarity(img, nil, seg, seg, Rendered, Rendered, tuning)
	assert.ErrorIs(t, err, ErrEmptyImage)
}

func TestHistogramCorrelation(t *testing.T) {
	a, err := NewGrayImageFromPixels(16, 16, gradient(16, 16))
	require.NoError(t, err)
	defer a.Close()

	assert.InDelta(t, 1.0, HistogramCorrelation(a, a), 1e-9)

	dark, err := NewGrayImageFromPixels(16, 16, make([]byte, 256))
	require.NoError(t, err)
	defer dark.Close()

	r := HistogramCorrelation(a, dark)
	assert.GreaterOrEqual(t, r, -1.0)
	assert.Less(t, r, 1.0)
}

func TestImageHashes(t *testing.T) {
	img := patternImage(t, false)

	a1, err := ComputeAverageHash(img)
	require.NoError(t, err)
	a2, err := ComputeAverageHash(img)
	require.NoError(t, err)
	assert.Equal(t, a1, a2)

	p, err := ComputePerceptualHash(img)
	require.NoError(t, err)
	assert.Zero(t, HashDistance(p, p))

	_, err = ComputeAverageHash(nil)
	assert.Error(t, err)

	assert.Equal(t, 64, HashDistance(0, ^uint64(0)))
	assert.Equal(t, 3, HashDistance(0b1011, 0))
}
