package univariate

import (
	"fmt"

	"gofactor/ports"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Chi2 computes the chi-square statistic between each non-negative feature
// and the class. The contingency table is built from per-class feature sums
// rather than counts, so features are treated as frequencies.
type Chi2 struct{}

// NewChi2 creates a new chi-square test
func NewChi2() *Chi2 {
	return &Chi2{}
}

// Name returns the score function name
func (c *Chi2) Name() string {
	return NameChi2
}

// Evaluate performs the test for every column of X
func (c *Chi2) Evaluate(X mat.Matrix, y []float64) ([]ports.TestResult, error) {
	rows, cols, err := checkInput(X, y)
	if err != nil {
		return nil, err
	}
	labels, classes := classIndex(y)
	k := len(classes)
	if k < 2 {
		return nil, fmt.Errorf("%w: chi2 needs at least two classes, got %d", ErrDegenerate, k)
	}

	classCount := make([]float64, k)
	for _, l := range labels {
		classCount[l]++
	}

	// observed[class][feature]
	observed := mat.NewDense(k, cols, nil)
	featureTotal := make([]float64, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			if v < 0 {
				return nil, fmt.Errorf("%w: X[%d,%d]=%g", ErrNegative, i, j, v)
			}
			observed.Set(labels[i], j, observed.At(labels[i], j)+v)
			featureTotal[j] += v
		}
	}

	chiDist := distuv.ChiSquared{K: float64(k - 1)}
	results := make([]ports.TestResult, cols)
	for j := 0; j < cols; j++ {
		if featureTotal[j] == 0 {
			return nil, fmt.Errorf("%w: column %d sums to zero", ErrDegenerate, j)
		}
		chiSq := 0.0
		for cl := 0; cl < k; cl++ {
			expected := classCount[cl] / float64(rows) * featureTotal[j]
			diff := observed.At(cl, j) - expected
			chiSq += diff * diff / expected
		}
		results[j] = ports.TestResult{
			Statistic: chiSq,
			PValue:    chiDist.Survival(chiSq),
		}
	}
	return results, nil
}
