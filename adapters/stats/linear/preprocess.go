// Package linear implements the penalized linear models behind stability
// selection: the least-angle regression lasso path, its cross-validated
// calibration, L1-penalized logistic regression and the randomized
// resampling procedure that turns them into selection frequencies.
package linear

import (
	"errors"
	"fmt"
	"math"

	"gofactor/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDegenerate is returned when the data cannot support a fit.
	ErrDegenerate = errors.New("degenerate input")
	// ErrNonFinite is returned when X or y contain NaN or Inf.
	ErrNonFinite = errors.New("non-finite input")
	// ErrDimension is returned when y does not align with the rows of X.
	ErrDimension = errors.New("dimension mismatch")
	// ErrInvalidParams is returned for unusable settings.
	ErrInvalidParams = fmt.Errorf("linear: %w", ports.ErrInvalidParams)
)

func checkFinite(X mat.Matrix, y []float64) error {
	rows, cols := X.Dims()
	if rows != len(y) {
		return fmt.Errorf("%w: X has %d rows, y has %d", ErrDimension, rows, len(y))
	}
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: y[%d]", ErrNonFinite, i)
		}
	}
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: X[%d,%d]", ErrNonFinite, i, j)
			}
		}
	}
	return nil
}

// centerNormalize returns a copy of X with each column centered and scaled
// to unit L2 norm, plus the column means and norms. Constant columns keep a
// norm of 1 and end up all zero.
func centerNormalize(X mat.Matrix) (*mat.Dense, []float64, []float64) {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, cols, nil)
	means := make([]float64, cols)
	norms := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, X)
		mean, _ := stats.Mean(col)
		sd, _ := stats.StandardDeviationPopulation(col)
		norm := sd * math.Sqrt(float64(rows))
		if norm == 0 || math.IsNaN(norm) {
			norm = 1
		}
		means[j] = mean
		norms[j] = norm
		for i := 0; i < rows; i++ {
			out.Set(i, j, (col[i]-mean)/norm)
		}
	}
	return out, means, norms
}

// center returns y minus its mean, and the mean.
func center(y []float64) ([]float64, float64) {
	mean, _ := stats.Mean(y)
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = v - mean
	}
	return out, mean
}

// centerColumns centers the columns of X in place.
func centerColumns(X *mat.Dense) {
	rows, cols := X.Dims()
	for j := 0; j < cols; j++ {
		sum := 0.0
		for i := 0; i < rows; i++ {
			sum += X.At(i, j)
		}
		mean := sum / float64(rows)
		for i := 0; i < rows; i++ {
			X.Set(i, j, X.At(i, j)-mean)
		}
	}
}

// selectRows copies the rows of X and y whose index is in rows.
func selectRows(X mat.Matrix, y []float64, rows []int) (*mat.Dense, []float64) {
	_, cols := X.Dims()
	out := mat.NewDense(len(rows), cols, nil)
	ys := make([]float64, len(rows))
	for k, i := range rows {
		for j := 0; j < cols; j++ {
			out.Set(k, j, X.At(i, j))
		}
		ys[k] = y[i]
	}
	return out, ys
}

// scaleColumns multiplies column j of X by weights[j] in place.
func scaleColumns(X *mat.Dense, weights []float64) {
	rows, cols := X.Dims()
	for j := 0; j < cols; j++ {
		if weights[j] == 1 {
			continue
		}
		for i := 0; i < rows; i++ {
			X.Set(i, j, X.At(i, j)*weights[j])
		}
	}
}
