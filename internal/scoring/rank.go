package scoring

import (
	"fmt"
	"math"
	"sort"

	"gofactor/domain/experiment"
)

// FactorScores is an immutable set of per-factor scores in factor order.
type FactorScores struct {
	names  []string
	values []float64
}

// NewFactorScores copies names and values into a score set.
func NewFactorScores(names []string, values []float64) (FactorScores, error) {
	if len(names) != len(values) {
		return FactorScores{}, fmt.Errorf("%d factors but %d scores", len(names), len(values))
	}
	return FactorScores{
		names:  append([]string(nil), names...),
		values: append([]float64(nil), values...),
	}, nil
}

// Len returns the number of factors.
func (s FactorScores) Len() int {
	return len(s.names)
}

// Rank orders the scores. The sort is stable, so equal scores keep factor
// order. NaN scores go last in both directions.
func Rank(scores FactorScores, descending bool) experiment.Ranking {
	out := make(experiment.Ranking, len(scores.names))
	for i := range scores.names {
		out[i] = experiment.FactorScore{Factor: scores.names[i], Score: scores.values[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Score, out[j].Score
		if math.IsNaN(a) || math.IsNaN(b) {
			return !math.IsNaN(a) && math.IsNaN(b)
		}
		if descending {
			return a > b
		}
		return a < b
	})
	return out
}
