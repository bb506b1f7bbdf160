package imageprocessor

import (
	"sort"

	"github.com/steakknife/hamming"
)

// Match pairs a query feature with a train feature.
type Match struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// MatchFeatures finds, for every query descriptor, the k closest train
// descriptors by Hamming distance in ascending order. Equal distances keep
// the lower train index first.
func MatchFeatures(query, train FeatureSet, k int) [][]Match {
	if query.Empty() || train.Empty() || k <= 0 {
		return nil
	}

	result := make([][]Match, len(query.Descriptors))
	for qi := range query.Descriptors {
		q := query.Descriptors[qi][:]
		best := make([]Match, 0, k+1)

		for ti := range train.Descriptors {
			d := float64(hamming.Bytes(q, train.Descriptors[ti][:]))
			if len(best) == k && d >= best[k-1].Distance {
				continue
			}

			pos := len(best)
			for pos > 0 && best[pos-1].Distance > d {
				pos--
			}
			best = append(best, Match{})
			copy(best[pos+1:], best[pos:])
			best[pos] = Match{QueryIdx: qi, TrainIdx: ti, Distance: d}
			if len(best) > k {
				best = best[:k]
			}
		}
		result[qi] = best
	}
	return result
}

// FilterMatches applies the ratio test: the nearest neighbour survives only
// when it is closer than ratio times the second nearest. Queries with fewer
// than two candidates are dropped. Survivors are sorted by distance.
func FilterMatches(knn [][]Match, ratio float64) []Match {
	good := make([]Match, 0, len(knn))
	for _, candidates := range knn {
		if len(candidates) < 2 {
			continue
		}
		if candidates[0].Distance < ratio*candidates[1].Distance {
			good = append(good, candidates[0])
		}
	}

	sort.SliceStable(good, func(i, j int) bool {
		return good[i].Distance < good[j].Distance
	})
	return good
}

// RatioThreshold returns the ratio test constant for a pair of verdicts.
func RatioThreshold(v1, v2 RenderVerdict, t Tuning) float64 {
	return t.PairBranch(v1, v2).RatioThreshold
}
