package univariate

import (
	"fmt"

	"gofactor/ports"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FClassif is the one-way ANOVA F test of each feature across the classes of y.
type FClassif struct{}

// NewFClassif creates a new ANOVA F test for classification
func NewFClassif() *FClassif {
	return &FClassif{}
}

// Name returns the score function name
func (f *FClassif) Name() string {
	return NameFClassification
}

// Evaluate performs the test for every column of X
func (f *FClassif) Evaluate(X mat.Matrix, y []float64) ([]ports.TestResult, error) {
	rows, cols, err := checkInput(X, y)
	if err != nil {
		return nil, err
	}
	labels, classes := classIndex(y)
	k := len(classes)
	if k < 2 {
		return nil, fmt.Errorf("%w: ANOVA needs at least two classes, got %d", ErrDegenerate, k)
	}
	if rows <= k {
		return nil, fmt.Errorf("%w: %d samples for %d classes", ErrDegenerate, rows, k)
	}

	counts := make([]float64, k)
	for _, l := range labels {
		counts[l]++
	}

	dfBetween := float64(k - 1)
	dfWithin := float64(rows - k)
	fDist := distuv.F{D1: dfBetween, D2: dfWithin}

	results := make([]ports.TestResult, cols)
	sums := make([]float64, k)
	for j := 0; j < cols; j++ {
		for c := range sums {
			sums[c] = 0
		}
		grand := 0.0
		for i := 0; i < rows; i++ {
			v := X.At(i, j)
			sums[labels[i]] += v
			grand += v
		}
		grandMean := grand / float64(rows)

		ssBetween := 0.0
		for c := 0; c < k; c++ {
			d := sums[c]/counts[c] - grandMean
			ssBetween += counts[c] * d * d
		}
		ssWithin := 0.0
		for i := 0; i < rows; i++ {
			d := X.At(i, j) - sums[labels[i]]/counts[labels[i]]
			ssWithin += d * d
		}
		if ssWithin == 0 {
			return nil, fmt.Errorf("%w: column %d has zero within-class variance", ErrDegenerate, j)
		}

		stat := (ssBetween / dfBetween) / (ssWithin / dfWithin)
		results[j] = ports.TestResult{
			Statistic: stat,
			PValue:    fDist.Survival(stat),
		}
	}
	return results, nil
}
