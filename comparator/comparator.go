// Package comparator scores how closely a camera capture of a display
// matches a reference test pattern. All vision work runs on one process
// wide Executor so that at most one comparison touches OpenCV at a time.
package comparator

import (
	"errors"
	"fmt"
	"image"

	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
	"lcdmatch/types"
)

// Degraded result messages.
const (
	MsgNoFeatures   = "No features detected"
	MsgUnknownError = "Unknown error occurred"
	opencvErrPrefix = "OpenCV error: "
)

// Comparator applies a tuning table. Every Comparator queues its work on
// the same process wide Executor.
type Comparator struct {
	exec   *Executor
	tuning imageprocessor.Tuning
}

// New creates a Comparator using t.
func New(t imageprocessor.Tuning) *Comparator {
	return &Comparator{
		exec:   sharedExecutor(),
		tuning: t,
	}
}

// Tuning returns the constants in use.
func (c *Comparator) Tuning() imageprocessor.Tuning {
	return c.tuning
}

// Close releases the Comparator. The shared worker keeps serving other
// comparators.
func (c *Comparator) Close() {}

// CompareImages scores image2 (the reference) against image1 (the capture).
// It never panics and never fails: problems are reported in the result's
// Error field.
func (c *Comparator) CompareImages(image1, image2 image.Image) types.ComparisonResult {
	return <-c.CompareAsync(image1, image2)
}

// CompareAsync queues a comparison behind earlier submissions and returns
// a channel for its result. Abandoning the channel does not cancel the
// comparison.
func (c *Comparator) CompareAsync(image1, image2 image.Image) <-chan types.ComparisonResult {
	return Submit(c.exec, func() types.ComparisonResult {
		return c.compare(func() (*imageprocessor.GrayImage, *imageprocessor.GrayImage, error) {
			g1, err := imageprocessor.NewGrayImageFromImage(image1)
			if err != nil {
				return nil, nil, fmt.Errorf("first image: %w", err)
			}
			g2, err := imageprocessor.NewGrayImageFromImage(image2)
			if err != nil {
				g1.Close()
				return nil, nil, fmt.Errorf("second image: %w", err)
			}
			return g1, g2, nil
		})
	})
}

// CompareFiles loads both files through the loader registry and compares
// them.
func (c *Comparator) CompareFiles(capturePath, referencePath string) types.ComparisonResult {
	return Run(c.exec, func() types.ComparisonResult {
		return c.compare(func() (*imageprocessor.GrayImage, *imageprocessor.GrayImage, error) {
			g1, err := imageprocessor.LoadImage(capturePath)
			if err != nil {
				return nil, nil, err
			}
			g2, err := imageprocessor.LoadImage(referencePath)
			if err != nil {
				g1.Close()
				return nil, nil, err
			}
			return g1, g2, nil
		})
	})
}

// compare must run on the executor.
func (c *Comparator) compare(ingest func() (*imageprocessor.GrayImage, *imageprocessor.GrayImage, error)) types.ComparisonResult {
	cmp := &comparison{tuning: c.tuning}
	defer cmp.release()

	return cmp.run(ingest)
}

// state is a step of a single comparison.
type state int

const (
	stateInit state = iota
	stateClassified
	statePreprocessed
	stateSegmentsExtracted
	stateFeaturesDetected
	stateMatched
	stateScored
	stateDegraded
)

func (s state) String() string {
	switch s {
	case stateInit:
		return "init"
	case stateClassified:
		return "classified"
	case statePreprocessed:
		return "preprocessed"
	case stateSegmentsExtracted:
		return "segments_extracted"
	case stateFeaturesDetected:
		return "features_detected"
	case stateMatched:
		return "matched"
	case stateScored:
		return "scored"
	case stateDegraded:
		return "degraded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// comparison carries the intermediate images of one run.
type comparison struct {
	tuning imageprocessor.Tuning
	state  state
	result types.ComparisonResult

	gray1, gray2 *imageprocessor.GrayImage
	pre1, pre2   *imageprocessor.GrayImage
	seg1, seg2   *imageprocessor.GrayImage
	v1, v2       imageprocessor.RenderVerdict
}

func (c *comparison) advance(next state, fields map[string]interface{}) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	fields["from"] = c.state.String()
	logging.Event("comparator", next.String(), fields)
	c.state = next
}

func (c *comparison) release() {
	for _, img := range []*imageprocessor.GrayImage{c.gray1, c.gray2, c.pre1, c.pre2, c.seg1, c.seg2} {
		img.Close()
	}
}

// degrade ends the run with a zero score, keeping any signal already known.
func (c *comparison) degrade(reason string) types.ComparisonResult {
	c.advance(stateDegraded, map[string]interface{}{"reason": reason})
	c.result.Score = 0
	c.result.Matches = 0
	c.result.SpatialScore = 0
	c.result.Error = reason
	return c.result
}

func errorMessage(err error) string {
	if errors.Is(err, imageprocessor.ErrNoFeatures) {
		return MsgNoFeatures
	}
	return opencvErrPrefix + err.Error()
}

func (c *comparison) run(ingest func() (*imageprocessor.GrayImage, *imageprocessor.GrayImage, error)) (result types.ComparisonResult) {
	defer func() {
		if r := recover(); r != nil {
			logging.LogError("comparison panicked in state %s: %v", c.state, r)
			if err, ok := r.(error); ok {
				result = c.degrade(errorMessage(err))
				return
			}
			result = c.degrade(MsgUnknownError)
		}
	}()

	t := c.tuning

	var err error
	c.gray1, c.gray2, err = ingest()
	if err != nil {
		return c.degrade(errorMessage(err))
	}

	c.v1 = imageprocessor.IsDigitalRender(c.gray1, t)
	c.v2 = imageprocessor.IsDigitalRender(c.gray2, t)
	c.result.IsRender1 = c.v1.IsRendered()
	c.result.IsRender2 = c.v2.IsRendered()
	bothRendered := imageprocessor.PairVerdict(c.v1, c.v2).IsRendered()
	c.advance(stateClassified, map[string]interface{}{
		"isRender1": c.result.IsRender1,
		"isRender2": c.result.IsRender2,
	})

	if c.pre1, err = imageprocessor.PreprocessImage(c.gray1, c.v1, t); err != nil {
		return c.degrade(errorMessage(err))
	}
	if c.pre2, err = imageprocessor.PreprocessImage(c.gray2, c.v2, t); err != nil {
		return c.degrade(errorMessage(err))
	}
	c.advance(statePreprocessed, nil)

	if c.seg1, err = imageprocessor.ExtractLCDSegments(c.pre1, c.v1, t); err != nil {
		return c.degrade(errorMessage(err))
	}
	if c.seg2, err = imageprocessor.ExtractLCDSegments(c.pre2, c.v2, t); err != nil {
		return c.degrade(errorMessage(err))
	}

	structural, err := imageprocessor.StructuralSimilarity(c.pre1, c.pre2, c.seg1, c.seg2, c.v1, c.v2, t)
	if err != nil {
		return c.degrade(errorMessage(err))
	}
	c.result.StructuralSimilarity = structural
	c.advance(stateSegmentsExtracted, map[string]interface{}{"structural": structural})

	f1, err := imageprocessor.DetectFeatures(c.pre1, c.seg1, c.v1, t)
	if err != nil {
		return c.degrade(errorMessage(err))
	}
	f2, err := imageprocessor.DetectFeatures(c.pre2, c.seg2, c.v2, t)
	if err != nil {
		return c.degrade(errorMessage(err))
	}
	if f1.Empty() || f2.Empty() {
		return c.degrade(errorMessage(imageprocessor.ErrNoFeatures))
	}
	c.advance(stateFeaturesDetected, map[string]interface{}{
		"features1": f1.Len(),
		"features2": f2.Len(),
	})

	knn := imageprocessor.MatchFeatures(f1, f2, t.KNeighbours)
	matches := imageprocessor.FilterMatches(knn, imageprocessor.RatioThreshold(c.v1, c.v2, t))
	c.result.Matches = len(matches)
	c.advance(stateMatched, map[string]interface{}{"matches": len(matches)})

	c.result.SpatialScore = imageprocessor.SpatialScore(f1.Keypoints, matches, c.gray1.Width(), c.gray1.Height(), t)

	quality := QualityScore(matches, bothRendered, t)
	quantity := QuantityScore(len(matches), bothRendered, t)
	c.result.Score = CombineScore(structural, quantity, quality, bothRendered, t)

	c.advance(stateScored, map[string]interface{}{
		"score":    c.result.Score,
		"quality":  quality,
		"quantity": quantity,
		"spatial":  c.result.SpatialScore,
	})
	return c.result
}
