// Package univariate implements the column-wise statistical tests used to
// score factors one at a time: chi-square, ANOVA F for classification and
// the F test of a univariate linear regression.
package univariate

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gofactor/ports"

	"gonum.org/v1/gonum/mat"
)

// Score function names accepted by ByName.
const (
	NameChi2            = "chi2"
	NameFClassification = "f_classification"
	NameFRegression     = "f_regression"
)

var (
	// ErrDegenerate is returned when a column or target cannot support the test.
	ErrDegenerate = errors.New("degenerate input")
	// ErrNonFinite is returned when X or y contain NaN or Inf.
	ErrNonFinite = errors.New("non-finite input")
	// ErrDimension is returned when y does not align with the rows of X.
	ErrDimension = errors.New("dimension mismatch")
	// ErrNegative is returned when chi2 sees a negative feature value.
	ErrNegative = errors.New("negative values in chi2 input")
)

// ByName acts as the factory for the univariate tests.
func ByName(name string) (ports.UnivariateTest, bool) {
	switch name {
	case NameChi2:
		return NewChi2(), true
	case NameFClassification:
		return NewFClassif(), true
	case NameFRegression:
		return NewFRegression(), true
	default:
		return nil, false
	}
}

// Names lists the available score functions.
func Names() []string {
	return []string{NameFClassification, NameChi2, NameFRegression}
}

func checkInput(X mat.Matrix, y []float64) (rows, cols int, err error) {
	rows, cols = X.Dims()
	if rows != len(y) {
		return 0, 0, fmt.Errorf("%w: X has %d rows, y has %d", ErrDimension, rows, len(y))
	}
	if rows == 0 {
		return 0, 0, fmt.Errorf("%w: no samples", ErrDegenerate)
	}
	for _, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, 0, fmt.Errorf("%w: target", ErrNonFinite)
		}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, 0, fmt.Errorf("%w: X[%d,%d]", ErrNonFinite, i, j)
			}
		}
	}
	return rows, cols, nil
}

// classIndex maps each target value to a class index, classes sorted.
func classIndex(y []float64) (labels []int, classes []float64) {
	seen := make(map[float64]bool)
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	pos := make(map[float64]int, len(classes))
	for i, c := range classes {
		pos[c] = i
	}
	labels = make([]int, len(y))
	for i, v := range y {
		labels[i] = pos[v]
	}
	return labels, classes
}
