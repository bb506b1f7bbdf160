package comparator

import (
	"errors"
	"image"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"lcdmatch/database"
	"lcdmatch/imageprocessor"
	"lcdmatch/pattern"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestComparator(t *testing.T) *Comparator {
	t.Helper()
	c := New(imageprocessor.DefaultTuning())
	t.Cleanup(c.Close)
	return c
}

func checker(seed int64, noisy bool) *image.RGBA {
	opts := pattern.DefaultOptions()
	opts.Seed = seed
	opts.Noisy = noisy
	return pattern.Generate(opts)
}

func savePNG(t *testing.T, dir, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	return path
}

func TestCompareIdenticalRenders(t *testing.T) {
	c := newTestComparator(t)
	img := checker(1, false)

	result := c.CompareImages(img, img)
	require.False(t, result.Degraded(), result.Error)

	assert.GreaterOrEqual(t, result.Score, 90.0)
	assert.LessOrEqual(t, result.Score, 100.0)
	assert.Greater(t, result.Matches, 0)
	assert.InDelta(t, 1.0, result.StructuralSimilarity, 1e-3)
	assert.True(t, result.IsRender1)
	assert.True(t, result.IsRender2)
	assert.GreaterOrEqual(t, result.SpatialScore, 0.0)
	assert.LessOrEqual(t, result.SpatialScore, 1.0)
}

func TestCompareFlagsPhotographedCapture(t *testing.T) {
	c := newTestComparator(t)

	result := c.CompareImages(checker(1, true), checker(1, false))
	assert.False(t, result.IsRender1)
	assert.True(t, result.IsRender2)
	assert.GreaterOrEqual(t, result.Score, 0.0)
	assert.LessOrEqual(t, result.Score, 100.0)
}

func TestCompareFeaturelessImageDegrades(t *testing.T) {
	c := newTestComparator(t)

	result := c.CompareImages(pattern.Solid(320, 240, 0), checker(1, false))
	assert.True(t, result.Degraded())
	assert.Zero(t, result.Score)
	assert.Zero(t, result.Matches)
	assert.Zero(t, result.SpatialScore)
}

func TestCompareWhiteImageDegrades(t *testing.T) {
	c := newTestComparator(t)

	result := c.CompareImages(pattern.Solid(320, 240, 255), checker(1, false))
	assert.True(t, result.Degraded())
	assert.NotEmpty(t, result.Error)
	assert.Zero(t, result.Score)
	assert.Zero(t, result.Matches)
	assert.Zero(t, result.SpatialScore)
}

func TestCompareIsRoughlySymmetric(t *testing.T) {
	c := newTestComparator(t)

	a := checker(1, false)
	b := checker(1, false)
	patch := checker(2, false)
	draw.Draw(b, image.Rect(0, 0, 96, 96), patch, image.Point{}, draw.Src)

	ab := c.CompareImages(a, b)
	ba := c.CompareImages(b, a)
	require.False(t, ab.Degraded(), ab.Error)
	require.False(t, ba.Degraded(), ba.Error)

	assert.Equal(t, ab.IsRender1, ba.IsRender2)
	assert.Equal(t, ab.IsRender2, ba.IsRender1)
	assert.InDelta(t, ab.StructuralSimilarity, ba.StructuralSimilarity, 0.02)
	assert.InDelta(t, ab.Score, ba.Score, 10.0)
}

// detectFeatures runs the comparison pipeline on img up to feature
// detection.
func detectFeatures(t *testing.T, c *Comparator, img image.Image) imageprocessor.FeatureSet {
	t.Helper()

	type outcome struct {
		features imageprocessor.FeatureSet
		err      error
	}
	o := Run(c.exec, func() outcome {
		gray, err := imageprocessor.NewGrayImageFromImage(img)
		if err != nil {
			return outcome{err: err}
		}
		defer gray.Close()

		verdict := imageprocessor.IsDigitalRender(gray, c.tuning)
		pre, err := imageprocessor.PreprocessImage(gray, verdict, c.tuning)
		if err != nil {
			return outcome{err: err}
		}
		defer pre.Close()

		seg, err := imageprocessor.ExtractLCDSegments(pre, verdict, c.tuning)
		if err != nil {
			return outcome{err: err}
		}
		defer seg.Close()

		f, err := imageprocessor.DetectFeatures(pre, seg, verdict, c.tuning)
		return outcome{features: f, err: err}
	})
	require.NoError(t, o.err)
	return o.features
}

func TestCompareIdenticalMatchesDistinctFeatures(t *testing.T) {
	c := newTestComparator(t)
	img := checker(1, false)

	features := detectFeatures(t, c, img)
	require.False(t, features.Empty())

	// A feature matches itself at distance 0 and passes the ratio test
	// unless another feature carries the same descriptor.
	seen := make(map[imageprocessor.Descriptor]int, features.Len())
	for _, d := range features.Descriptors {
		seen[d]++
	}
	distinct := 0
	for _, n := range seen {
		if n == 1 {
			distinct++
		}
	}

	result := c.CompareImages(img, img)
	require.False(t, result.Degraded(), result.Error)
	assert.Equal(t, distinct, result.Matches)
	assert.LessOrEqual(t, result.Matches, features.Len())
	assert.Greater(t, result.Matches, 0)
}

func TestCompareNilImageDegrades(t *testing.T) {
	c := newTestComparator(t)

	result := c.CompareImages(nil, checker(1, false))
	assert.True(t, result.Degraded())
	assert.Zero(t, result.Score)
	assert.Contains(t, result.Error, "OpenCV error: ")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, MsgNoFeatures, errorMessage(imageprocessor.ErrNoFeatures))
	assert.Equal(t, MsgNoFeatures, errorMessage(errors.Join(errors.New("mask"), imageprocessor.ErrNoFeatures)))
	assert.Equal(t, "OpenCV error: boom", errorMessage(errors.New("boom")))
}

func TestCompareAsyncMatchesSync(t *testing.T) {
	c := newTestComparator(t)
	img := checker(3, false)

	async := <-c.CompareAsync(img, img)
	assert.Equal(t, c.CompareImages(img, img), async)
}

func TestCompareFiles(t *testing.T) {
	c := newTestComparator(t)
	dir := t.TempDir()
	capture := savePNG(t, dir, "capture.png", checker(1, false))
	reference := savePNG(t, dir, "reference.png", checker(1, false))

	result := c.CompareFiles(capture, reference)
	require.False(t, result.Degraded(), result.Error)
	assert.GreaterOrEqual(t, result.Score, 90.0)

	missing := c.CompareFiles(filepath.Join(dir, "missing.png"), reference)
	assert.True(t, missing.Degraded())
}

func TestDescribeAndFingerprint(t *testing.T) {
	c := newTestComparator(t)
	img := checker(1, false)
	path := savePNG(t, t.TempDir(), "checker.png", img)

	info, err := c.Describe(path)
	require.NoError(t, err)
	assert.Equal(t, path, info.Path)
	assert.Equal(t, "png", info.Format)
	assert.Equal(t, 640, info.Width)
	assert.Equal(t, 480, info.Height)
	assert.True(t, info.IsRender)
	assert.NotZero(t, info.Size)
	assert.NotEmpty(t, info.ModifiedAt)

	avg, p, err := c.Fingerprint(img)
	require.NoError(t, err)
	assert.LessOrEqual(t, imageprocessor.HashDistance(avg, info.AverageHash), 2)
	assert.LessOrEqual(t, imageprocessor.HashDistance(p, info.PerceptualHash), 2)

	_, err = c.Describe(filepath.Join(t.TempDir(), "missing.png"))
	assert.Error(t, err)
}

func TestFindMatchingReferences(t *testing.T) {
	c := newTestComparator(t)
	dir := t.TempDir()

	db, err := database.InitDatabase(filepath.Join(dir, "references.db"))
	require.NoError(t, err)
	defer db.Close()

	for _, ref := range []struct {
		name string
		seed int64
	}{{"checker-1", 1}, {"checker-2", 2}} {
		path := savePNG(t, dir, ref.name+".png", checker(ref.seed, false))
		info, err := c.Describe(path)
		require.NoError(t, err)
		info.Name = ref.name
		info.Group = "panel-a"
		require.NoError(t, database.StoreReference(db, info, false))
	}

	matches, err := c.FindMatchingReferences(db, SearchOptions{
		Query:           checker(1, false),
		Group:           "panel-a",
		MaxHashDistance: 64,
		Workers:         2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "checker-1", matches[0].Name)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Result.Score, matches[i].Result.Score)
	}

	exact, err := c.FindMatchingReferences(db, SearchOptions{
		Query:           checker(1, false),
		Group:           "panel-a",
		MaxHashDistance: 0,
	})
	require.NoError(t, err)
	require.Len(t, exact, 1)
	assert.Equal(t, "checker-1", exact[0].Name)

	none, err := c.FindMatchingReferences(db, SearchOptions{
		Query:           checker(1, false),
		Group:           "panel-b",
		MaxHashDistance: 64,
	})
	require.NoError(t, err)
	assert.Empty(t, none)
}
