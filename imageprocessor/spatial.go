package imageprocessor

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// occupancyGrid counts matched query keypoints per cell.
type occupancyGrid struct {
	size  int
	cells []float64
}

func newOccupancyGrid(size int) *occupancyGrid {
	return &occupancyGrid{size: size, cells: make([]float64, size*size)}
}

func (g *occupancyGrid) add(x, y float64, width, height int) {
	col := cellIndex(x, width, g.size)
	row := cellIndex(y, height, g.size)
	g.cells[row*g.size+col]++
}

func cellIndex(v float64, extent, cells int) int {
	i := int(v / float64(extent) * float64(cells))
	if i < 0 {
		return 0
	}
	if i >= cells {
		return cells - 1
	}
	return i
}

// coverage is the fraction of cells holding at least one match.
func (g *occupancyGrid) coverage() float64 {
	occupied := 0
	for _, c := range g.cells {
		if c > 0 {
			occupied++
		}
	}
	return float64(occupied) / float64(len(g.cells))
}

// evenness is one minus the coefficient of variation of the occupied cells.
func (g *occupancyGrid) evenness() float64 {
	occupied := make([]float64, 0, len(g.cells))
	for _, c := range g.cells {
		if c > 0 {
			occupied = append(occupied, c)
		}
	}
	if len(occupied) == 0 {
		return 0
	}
	return 1 - coefficientOfVariation(occupied)
}

// alignment rewards matches lined up along rows or columns of the grid.
func (g *occupancyGrid) alignment() float64 {
	rows := make([]float64, g.size)
	cols := make([]float64, g.size)
	for r := 0; r < g.size; r++ {
		for c := 0; c < g.size; c++ {
			v := g.cells[r*g.size+c]
			rows[r] += v
			cols[c] += v
		}
	}

	variation := coefficientOfVariation(rows)
	if cv := coefficientOfVariation(cols); cv < variation {
		variation = cv
	}
	if variation > 1 {
		return 0
	}
	return 1 - variation
}

func coefficientOfVariation(values []float64) float64 {
	mean, std := stat.PopMeanStdDev(values, nil)
	if mean == 0 {
		return 0
	}
	return std / mean
}

// SpatialScore rates how evenly the matched query keypoints cover an image of
// the given size. It is 0 when there are no matches.
func SpatialScore(keypoints []Keypoint, matches []Match, width, height int, t Tuning) float64 {
	if len(matches) == 0 || width <= 0 || height <= 0 {
		return 0
	}

	fine := newOccupancyGrid(t.FineGrid)
	coarse := newOccupancyGrid(t.CoarseGrid)
	for _, m := range matches {
		if m.QueryIdx < 0 || m.QueryIdx >= len(keypoints) {
			continue
		}
		kp := keypoints[m.QueryIdx]
		fine.add(kp.X, kp.Y, width, height)
		coarse.add(kp.X, kp.Y, width, height)
	}

	score := t.FineCoverageWeight*fine.coverage() +
		t.CoarseCoverageWeight*coarse.coverage() +
		t.FineEvennessWeight*fine.evenness() +
		t.CoarseEvennessWeight*coarse.evenness() +
		t.AlignmentWeight*coarse.alignment()

	return Clamp01(score)
}

// Clamp01 limits v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
