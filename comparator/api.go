package comparator

import (
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"lcdmatch/imageprocessor"
	"lcdmatch/logging"
	"lcdmatch/types"
)

var (
	defaultMu         sync.Mutex
	defaultComparator *Comparator
	defaultTuning     = imageprocessor.DefaultTuning()
)

// SetDefaultTuning replaces the constants used by the package level
// functions. It has no effect once the default comparator exists.
func SetDefaultTuning(t imageprocessor.Tuning) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultTuning = t
}

// Default returns the process wide comparator, creating it on first use.
// It is never closed.
func Default() *Comparator {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultComparator == nil {
		defaultComparator = New(defaultTuning)
	}
	return defaultComparator
}

// CompareImages compares a capture with a reference on the default
// comparator.
func CompareImages(image1, image2 image.Image) types.ComparisonResult {
	return Default().CompareImages(image1, image2)
}

// IsDigitalRender classifies img on the default comparator.
func IsDigitalRender(img image.Image) bool {
	return Default().IsDigitalRender(img)
}

// PreprocessImage runs the preprocessing branch chosen by isRender.
func PreprocessImage(img image.Image, isRender bool) (image.Image, error) {
	return Default().PreprocessImage(img, isRender)
}

// ExtractLCDSegments returns the binary segment mask of img.
func ExtractLCDSegments(img image.Image, isRender bool) (image.Image, error) {
	return Default().ExtractLCDSegments(img, isRender)
}

// CalculateStructuralSimilarity scores two images and their masks.
func CalculateStructuralSimilarity(image1, image2, segments1, segments2 image.Image) float64 {
	return Default().CalculateStructuralSimilarity(image1, image2, segments1, segments2)
}

// IsDigitalRender reports whether img looks like a clean digital render.
// Failures count as not rendered.
func (c *Comparator) IsDigitalRender(img image.Image) bool {
	_, verdict, err := c.ClassifyRender(img)
	if err != nil {
		return false
	}
	return verdict.IsRendered()
}

// Classification is the outcome of a queued render classification.
type Classification struct {
	Stats   imageprocessor.RenderStats
	Verdict imageprocessor.RenderVerdict
	Err     error
}

// ClassifyRender returns the measurements behind the render verdict.
func (c *Comparator) ClassifyRender(img image.Image) (imageprocessor.RenderStats, imageprocessor.RenderVerdict, error) {
	o := <-c.ClassifyAsync(img)
	return o.Stats, o.Verdict, o.Err
}

// ClassifyAsync queues a render classification behind earlier submissions
// and returns a channel for its outcome.
func (c *Comparator) ClassifyAsync(img image.Image) <-chan Classification {
	return Submit(c.exec, func() (o Classification) {
		defer recoverInto(&o.Err)

		gray, err := imageprocessor.NewGrayImageFromImage(img)
		if err != nil {
			return Classification{Err: err}
		}
		defer gray.Close()

		stats, err := imageprocessor.MeasureRender(gray, c.tuning)
		if err != nil {
			return Classification{Verdict: imageprocessor.Photographed, Err: err}
		}
		return Classification{Stats: stats, Verdict: stats.Verdict(c.tuning)}
	})
}

// Grayscale converts img the way comparisons ingest it.
func (c *Comparator) Grayscale(img image.Image) (image.Image, error) {
	return c.transform(img, func(g *imageprocessor.GrayImage) (*imageprocessor.GrayImage, error) {
		return g.Clone(), nil
	})
}

// PreprocessImage runs the preprocessing branch chosen by isRender.
func (c *Comparator) PreprocessImage(img image.Image, isRender bool) (image.Image, error) {
	return c.transform(img, func(g *imageprocessor.GrayImage) (*imageprocessor.GrayImage, error) {
		return imageprocessor.PreprocessImage(g, imageprocessor.VerdictOf(isRender), c.tuning)
	})
}

// ExtractLCDSegments returns the binary segment mask of img.
func (c *Comparator) ExtractLCDSegments(img image.Image, isRender bool) (image.Image, error) {
	return c.transform(img, func(g *imageprocessor.GrayImage) (*imageprocessor.GrayImage, error) {
		return imageprocessor.ExtractLCDSegments(g, imageprocessor.VerdictOf(isRender), c.tuning)
	})
}

func (c *Comparator) transform(img image.Image, fn func(*imageprocessor.GrayImage) (*imageprocessor.GrayImage, error)) (image.Image, error) {
	type outcome struct {
		img *image.Gray
		err error
	}

	o := Run(c.exec, func() (o outcome) {
		defer recoverInto(&o.err)

		gray, err := imageprocessor.NewGrayImageFromImage(img)
		if err != nil {
			return outcome{err: err}
		}
		defer gray.Close()

		out, err := fn(gray)
		if err != nil {
			return outcome{err: err}
		}
		defer out.Close()
		return outcome{img: out.ToImage()}
	})
	if o.err != nil {
		return nil, o.err
	}
	return o.img, nil
}

// CalculateStructuralSimilarity scores two preprocessed images and their
// masks. Having no verdicts to go on, it classifies image1 and image2
// itself. Failures score 0.
func (c *Comparator) CalculateStructuralSimilarity(image1, image2, segments1, segments2 image.Image) float64 {
	return Run(c.exec, func() (score float64) {
		defer func() {
			if r := recover(); r != nil {
				logging.LogWarning("structural similarity panicked: %v", r)
				score = 0
			}
		}()

		var imgs [4]*imageprocessor.GrayImage
		defer func() {
			for _, g := range imgs {
				g.Close()
			}
		}()
		for i, src := range []image.Image{image1, image2, segments1, segments2} {
			g, err := imageprocessor.NewGrayImageFromImage(src)
			if err != nil {
				logging.LogWarning("structural similarity input %d: %v", i+1, err)
				return 0
			}
			imgs[i] = g
		}

		v1 := imageprocessor.IsDigitalRender(imgs[0], c.tuning)
		v2 := imageprocessor.IsDigitalRender(imgs[1], c.tuning)
		s, err := imageprocessor.StructuralSimilarity(imgs[0], imgs[1], imgs[2], imgs[3], v1, v2, c.tuning)
		if err != nil {
			logging.LogWarning("structural similarity failed: %v", err)
			return 0
		}
		return s
	})
}

// Describe loads a reference file and fills in its size, render verdict
// and fingerprints.
func (c *Comparator) Describe(path string) (types.ReferenceInfo, error) {
	type outcome struct {
		info types.ReferenceInfo
		err  error
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return types.ReferenceInfo{}, fmt.Errorf("cannot stat %s: %w", path, err)
	}

	o := Run(c.exec, func() (o outcome) {
		defer recoverInto(&o.err)

		gray, err := imageprocessor.LoadImage(path)
		if err != nil {
			return outcome{err: err}
		}
		defer gray.Close()

		avgHash, err := imageprocessor.ComputeAverageHash(gray)
		if err != nil {
			return outcome{err: fmt.Errorf("average hash for %s: %w", path, err)}
		}
		pHash, err := imageprocessor.ComputePerceptualHash(gray)
		if err != nil {
			return outcome{err: fmt.Errorf("perceptual hash for %s: %w", path, err)}
		}

		return outcome{info: types.ReferenceInfo{
			Path:           path,
			Format:         string(imageprocessor.GetFileFormat(path)),
			Width:          gray.Width(),
			Height:         gray.Height(),
			IsRender:       imageprocessor.IsDigitalRender(gray, c.tuning).IsRendered(),
			AverageHash:    avgHash,
			PerceptualHash: pHash,
		}}
	})
	if o.err != nil {
		return types.ReferenceInfo{}, o.err
	}

	o.info.Size = fileInfo.Size()
	o.info.ModifiedAt = fileInfo.ModTime().Format(time.RFC3339)
	return o.info, nil
}

// Fingerprint computes the average and perceptual hashes of img.
func (c *Comparator) Fingerprint(img image.Image) (avgHash, pHash uint64, err error) {
	type outcome struct {
		avg, p uint64
		err    error
	}

	o := Run(c.exec, func() (o outcome) {
		defer recoverInto(&o.err)

		gray, err := imageprocessor.NewGrayImageFromImage(img)
		if err != nil {
			return outcome{err: err}
		}
		defer gray.Close()

		if o.avg, o.err = imageprocessor.ComputeAverageHash(gray); o.err != nil {
			return o
		}
		o.p, o.err = imageprocessor.ComputePerceptualHash(gray)
		return o
	})
	return o.avg, o.p, o.err
}

// recoverInto turns a panic into an error. It must be deferred directly.
func recoverInto(err *error) {
	if r := recover(); r != nil {
		if e, ok := r.(error); ok {
			*err = fmt.Errorf("%s%w", opencvErrPrefix, e)
			return
		}
		*err = fmt.Errorf("%s: %v", MsgUnknownError, r)
	}
}
