package univariate

import (
	"fmt"
	"math"

	"gofactor/ports"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// FRegression tests each feature with a univariate linear regression on a
// continuous target. F = r²/(1-r²)·(n-2) with (1, n-2) degrees of freedom.
type FRegression struct{}

// NewFRegression creates a new regression F test
func NewFRegression() *FRegression {
	return &FRegression{}
}

// Name returns the score function name
func (f *FRegression) Name() string {
	return NameFRegression
}

// Evaluate performs the test for every column of X
func (f *FRegression) Evaluate(X mat.Matrix, y []float64) ([]ports.TestResult, error) {
	rows, cols, err := checkInput(X, y)
	if err != nil {
		return nil, err
	}
	if rows < 3 {
		return nil, fmt.Errorf("%w: regression F test needs at least 3 samples, got %d", ErrDegenerate, rows)
	}
	if stat.Variance(y, nil) == 0 {
		return nil, fmt.Errorf("%w: target has zero variance", ErrDegenerate)
	}

	df := float64(rows - 2)
	fDist := distuv.F{D1: 1, D2: df}
	col := make([]float64, rows)
	results := make([]ports.TestResult, cols)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		if stat.Variance(col, nil) == 0 {
			return nil, fmt.Errorf("%w: column %d has zero variance", ErrDegenerate, j)
		}
		r := stat.Correlation(col, y, nil)
		r2 := r * r
		var fStat float64
		if r2 >= 1 {
			fStat = math.Inf(1)
		} else {
			fStat = r2 / (1 - r2) * df
		}
		p := 0.0
		if !math.IsInf(fStat, 1) {
			p = fDist.Survival(fStat)
		}
		results[j] = ports.TestResult{
			Statistic: fStat,
			PValue:    p,
		}
	}
	return results, nil
}
