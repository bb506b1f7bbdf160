package types

// ComparisonResult is the outcome of comparing a capture with a reference.
// Error is set only when the comparison degraded, in which case Score and
// Matches are zero.
type ComparisonResult struct {
	Score                float64 `json:"score"`
	Matches              int     `json:"matches"`
	StructuralSimilarity float64 `json:"structuralSimilarity"`
	SpatialScore         float64 `json:"spatialScore"`
	IsRender1            bool    `json:"isRender1"`
	IsRender2            bool    `json:"isRender2"`
	Error                string  `json:"error,omitempty"`
}

// Degraded reports whether the comparison ended early.
func (r ComparisonResult) Degraded() bool {
	return r.Error != ""
}

// ReferenceInfo holds a registered reference pattern and its fingerprints
type ReferenceInfo struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Path           string `json:"path"`
	Group          string `json:"group"`
	Format         string `json:"format"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Size           int64  `json:"size"`
	IsRender       bool   `json:"is_render"`
	AverageHash    uint64 `json:"average_hash"`
	PerceptualHash uint64 `json:"perceptual_hash"`
	ModifiedAt     string `json:"modified_at"`
	RegisteredAt   string `json:"registered_at"`
}

// ReferenceMatch pairs a reference with the result of comparing a capture
// against it
type ReferenceMatch struct {
	Name   string           `json:"name"`
	Path   string           `json:"path"`
	Group  string           `json:"group"`
	Result ComparisonResult `json:"result"`
}
