package imageprocessor

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// BranchTuning holds the constants that differ between rendered and
// photographed inputs.
type BranchTuning struct {
	// Preprocessing
	ClipLimit float64 `toml:"clip_limit"`

	// Segmentation
	MorphKernel int `toml:"morph_kernel"`

	// ORB detector
	PyramidLevels int `toml:"pyramid_levels"`
	EdgeThreshold int `toml:"edge_threshold"`
	PatchSize     int `toml:"patch_size"`
	FastThreshold int `toml:"fast_threshold"`

	// Structural similarity weights
	OrigWeight float64 `toml:"orig_weight"`
	SegWeight  float64 `toml:"seg_weight"`
	HistWeight float64 `toml:"hist_weight"`

	// Score composition
	RatioThreshold   float64 `toml:"ratio_threshold"`
	MaxDistance      float64 `toml:"max_distance"`
	ExpectedFraction float64 `toml:"expected_fraction"`
	StructuralWeight float64 `toml:"structural_weight"`
	QuantityWeight   float64 `toml:"quantity_weight"`
	QualityWeight    float64 `toml:"quality_weight"`
	ScoreExponent    float64 `toml:"score_exponent"`
	BonusThreshold   float64 `toml:"bonus_threshold"`
}

// Tuning is the single table of empirically tuned constants used by every
// stage of the comparison pipeline. Rendered applies when both images of a
// pair are digital renders (or, for single-image stages, when that image is);
// Photographed applies otherwise.
type Tuning struct {
	// Render classifier
	CannyLow         float32 `toml:"canny_low"`
	CannyHigh        float32 `toml:"canny_high"`
	NoiseBlurKernel  int     `toml:"noise_blur_kernel"`
	MinEdgeSharpness float64 `toml:"min_edge_sharpness"`
	MaxNoiseStd      float64 `toml:"max_noise_std"`
	MinHistStd       float64 `toml:"min_hist_std"`

	// Preprocessing
	TileGrid          int     `toml:"tile_grid"`
	LaplacianKernel   int     `toml:"laplacian_kernel"`
	EqualizedWeight   float64 `toml:"equalized_weight"`
	EdgeWeight        float64 `toml:"edge_weight"`
	DenoiseStrength   float32 `toml:"denoise_strength"`
	DenoiseTemplate   int     `toml:"denoise_template"`
	DenoiseSearch     int     `toml:"denoise_search"`
	UnsharpAmount     float64 `toml:"unsharp_amount"`
	UnsharpBlurWeight float64 `toml:"unsharp_blur_weight"`
	UnsharpSigma      float64 `toml:"unsharp_sigma"`

	// Segmentation
	GlobalThreshold   float32 `toml:"global_threshold"`
	AdaptiveBlockSize int     `toml:"adaptive_block_size"`
	AdaptiveOffset    float32 `toml:"adaptive_offset"`
	MedianKernel      int     `toml:"median_kernel"`

	// Feature detection and matching
	MaxFeatures  int     `toml:"max_features"`
	ScaleFactor  float32 `toml:"scale_factor"`
	KNeighbours  int     `toml:"k_neighbours"`
	QualitySlice int     `toml:"quality_slice"`

	// Spatial analysis
	FineGrid             int     `toml:"fine_grid"`
	CoarseGrid           int     `toml:"coarse_grid"`
	FineCoverageWeight   float64 `toml:"fine_coverage_weight"`
	CoarseCoverageWeight float64 `toml:"coarse_coverage_weight"`
	FineEvennessWeight   float64 `toml:"fine_evenness_weight"`
	CoarseEvennessWeight float64 `toml:"coarse_evenness_weight"`
	AlignmentWeight      float64 `toml:"alignment_weight"`

	// Score composition
	BonusMultiplier float64 `toml:"bonus_multiplier"`

	Rendered     BranchTuning `toml:"rendered"`
	Photographed BranchTuning `toml:"photographed"`
}

// DefaultTuning returns the calibrated constants.
func DefaultTuning() Tuning {
	return Tuning{
		CannyLow:         100,
		CannyHigh:        200,
		NoiseBlurKernel:  5,
		MinEdgeSharpness: 0.10,
		MaxNoiseStd:      10,
		MinHistStd:       1000,

		TileGrid:          8,
		LaplacianKernel:   3,
		EqualizedWeight:   0.8,
		EdgeWeight:        0.2,
		DenoiseStrength:   10,
		DenoiseTemplate:   7,
		DenoiseSearch:     21,
		UnsharpAmount:     1.5,
		UnsharpBlurWeight: -0.5,
		UnsharpSigma:      3,

		GlobalThreshold:   127,
		AdaptiveBlockSize: 25,
		AdaptiveOffset:    15,
		MedianKernel:      5,

		MaxFeatures:  3000,
		ScaleFactor:  1.1,
		KNeighbours:  2,
		QualitySlice: 100,

		FineGrid:             8,
		CoarseGrid:           4,
		FineCoverageWeight:   0.3,
		CoarseCoverageWeight: 0.2,
		FineEvennessWeight:   0.2,
		CoarseEvennessWeight: 0.1,
		AlignmentWeight:      0.2,

		BonusMultiplier: 1.3,

		Rendered: BranchTuning{
			ClipLimit:        2.0,
			MorphKernel:      3,
			PyramidLevels:    8,
			EdgeThreshold:    10,
			PatchSize:        15,
			FastThreshold:    10,
			OrigWeight:       0.2,
			SegWeight:        0.6,
			HistWeight:       0.2,
			RatioThreshold:   0.80,
			MaxDistance:      80,
			ExpectedFraction: 0.05,
			StructuralWeight: 0.5,
			QuantityWeight:   0.3,
			QualityWeight:    0.2,
			ScoreExponent:    0.6,
			BonusThreshold:   75,
		},
		Photographed: BranchTuning{
			ClipLimit:        3.0,
			MorphKernel:      5,
			PyramidLevels:    12,
			EdgeThreshold:    15,
			PatchSize:        21,
			FastThreshold:    20,
			OrigWeight:       0.4,
			SegWeight:        0.4,
			HistWeight:       0.2,
			RatioThreshold:   0.85,
			MaxDistance:      100,
			ExpectedFraction: 0.03,
			StructuralWeight: 0.4,
			QuantityWeight:   0.35,
			QualityWeight:    0.25,
			ScoreExponent:    0.7,
			BonusThreshold:   65,
		},
	}
}

// Branch selects the constants for a verdict.
func (t Tuning) Branch(v RenderVerdict) BranchTuning {
	if v.IsRendered() {
		return t.Rendered
	}
	return t.Photographed
}

// PairBranch selects the constants for a comparison: the rendered table only
// applies when both images are renders.
func (t Tuning) PairBranch(v1, v2 RenderVerdict) BranchTuning {
	return t.Branch(PairVerdict(v1, v2))
}

// LoadTuning reads a TOML file and applies it on top of DefaultTuning, so a
// file only needs to name the constants it changes.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	if _, err := toml.DecodeFile(path, &t); err != nil {
		return Tuning{}, fmt.Errorf("failed to decode tuning file %s: %w", path, err)
	}

	if err := t.Validate(); err != nil {
		return Tuning{}, fmt.Errorf("invalid tuning file %s: %w", path, err)
	}
	return t, nil
}

// Validate rejects tables that would make OpenCV calls fail.
func (t Tuning) Validate() error {
	if t.NoiseBlurKernel <= 0 || t.NoiseBlurKernel%2 == 0 {
		return fmt.Errorf("noise_blur_kernel must be a positive odd number, got %d", t.NoiseBlurKernel)
	}
	if t.AdaptiveBlockSize < 3 || t.AdaptiveBlockSize%2 == 0 {
		return fmt.Errorf("adaptive_block_size must be an odd number >= 3, got %d", t.AdaptiveBlockSize)
	}
	if t.MedianKernel < 3 || t.MedianKernel%2 == 0 {
		return fmt.Errorf("median_kernel must be an odd number >= 3, got %d", t.MedianKernel)
	}
	if t.DenoiseTemplate%2 == 0 || t.DenoiseSearch%2 == 0 {
		return fmt.Errorf("denoise windows must be odd, got %d/%d", t.DenoiseTemplate, t.DenoiseSearch)
	}
	if t.TileGrid <= 0 || t.FineGrid <= 0 || t.CoarseGrid <= 0 {
		return fmt.Errorf("grid sizes must be positive")
	}
	if t.MaxFeatures <= 0 {
		return fmt.Errorf("max_features must be positive, got %d", t.MaxFeatures)
	}
	if t.KNeighbours < 2 {
		return fmt.Errorf("k_neighbours must be at least 2 for the ratio test, got %d", t.KNeighbours)
	}
	if t.ScaleFactor <= 1 {
		return fmt.Errorf("scale_factor must be greater than 1, got %f", t.ScaleFactor)
	}

	for name, b := range map[string]BranchTuning{"rendered": t.Rendered, "photographed": t.Photographed} {
		if b.MorphKernel <= 0 {
			return fmt.Errorf("%s.morph_kernel must be positive, got %d", name, b.MorphKernel)
		}
		if b.PyramidLevels <= 0 || b.PatchSize <= 0 {
			return fmt.Errorf("%s: pyramid_levels and patch_size must be positive", name)
		}
		if b.RatioThreshold <= 0 || b.RatioThreshold > 1 {
			return fmt.Errorf("%s.ratio_threshold must be in (0,1], got %f", name, b.RatioThreshold)
		}
		if b.MaxDistance <= 0 || b.ExpectedFraction <= 0 {
			return fmt.Errorf("%s: max_distance and expected_fraction must be positive", name)
		}
		if b.ScoreExponent <= 0 {
			return fmt.Errorf("%s.score_exponent must be positive, got %f", name, b.ScoreExponent)
		}
	}
	return nil
}
