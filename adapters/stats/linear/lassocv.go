package linear

import (
	"fmt"
	"math"
	"sort"

	"gofactor/ports"

	"gonum.org/v1/gonum/mat"
)

// DefaultFolds is the number of cross-validation folds used to calibrate
// the stability selection penalty grid.
const DefaultFolds = 6

const maxCVAlphas = 1000

// LassoLarsCV cross-validates the lasso LARS path and refits it on the full
// data. It calibrates the penalty range for randomized lasso.
type LassoLarsCV struct {
	MaxIter int
}

var _ ports.PathCalibrator = (*LassoLarsCV)(nil)

// NewLassoLarsCV creates a calibrator with the default iteration bound
func NewLassoLarsCV() *LassoLarsCV {
	return &LassoLarsCV{MaxIter: 500}
}

// CVResult is the outcome of a cross-validated lasso fit.
type CVResult struct {
	// AlphaMax is the first knot of the full-data path, the smallest
	// penalty at which every coefficient is zero.
	AlphaMax float64
	// BestAlpha minimizes the mean held-out squared error.
	BestAlpha float64
	// CVAlphas and MSE trace the cross-validation curve, alphas ascending.
	CVAlphas []float64
	MSE      []float64
	// Path is the full-data path down to BestAlpha.
	Path *Path
}

// Calibrate returns the strongest penalty of the full-data lasso path after
// cross-validation.
func (c *LassoLarsCV) Calibrate(X mat.Matrix, y []float64, folds int) (float64, error) {
	res, err := c.Fit(X, y, folds)
	if err != nil {
		return 0, err
	}
	return res.AlphaMax, nil
}

type foldFit struct {
	path  *Path
	means []float64
	norms []float64
	yMean float64
	testX *mat.Dense
	testY []float64
}

// mse returns the held-out mean squared error of the fold model at alpha.
func (f *foldFit) mse(alpha float64) float64 {
	coef := f.path.At(alpha)
	rows, cols := f.testX.Dims()
	sum := 0.0
	for i := 0; i < rows; i++ {
		pred := f.yMean
		for j := 0; j < cols; j++ {
			if coef[j] != 0 {
				pred += (f.testX.At(i, j) - f.means[j]) / f.norms[j] * coef[j]
			}
		}
		r := pred - f.testY[i]
		sum += r * r
	}
	return sum / float64(rows)
}

// Fit runs k-fold cross-validation over contiguous folds, selects the
// penalty with the lowest mean held-out error and refits the full path.
func (c *LassoLarsCV) Fit(X mat.Matrix, y []float64, folds int) (*CVResult, error) {
	if folds < 2 {
		return nil, fmt.Errorf("%w: need at least 2 folds, got %d", ErrInvalidParams, folds)
	}
	if err := checkFinite(X, y); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if p == 0 {
		return nil, fmt.Errorf("%w: no features", ErrDegenerate)
	}
	if n < folds {
		return nil, fmt.Errorf("%w: cannot split %d samples into %d folds", ErrDegenerate, n, folds)
	}

	fits := make([]*foldFit, 0, folds)
	for _, split := range kFold(n, folds) {
		train, test := split[0], split[1]
		if len(train) < 2 {
			return nil, fmt.Errorf("%w: fold training set has %d samples", ErrDegenerate, len(train))
		}
		trX, trY := selectRows(X, y, train)
		teX, teY := selectRows(X, y, test)
		xn, means, norms := centerNormalize(trX)
		yc, yMean := center(trY)
		path, err := LassoPath(xn, yc, 0, c.MaxIter)
		if err != nil {
			return nil, fmt.Errorf("fold path: %w", err)
		}
		fits = append(fits, &foldFit{path: path, means: means, norms: norms, yMean: yMean, testX: teX, testY: teY})
	}

	alphas := mergeAlphas(fits)
	mse := make([]float64, 0, len(alphas))
	kept := make([]float64, 0, len(alphas))
	for _, a := range alphas {
		total := 0.0
		for _, f := range fits {
			total += f.mse(a)
		}
		m := total / float64(len(fits))
		if math.IsNaN(m) || math.IsInf(m, 0) {
			continue
		}
		kept = append(kept, a)
		mse = append(mse, m)
	}
	if len(kept) == 0 {
		return nil, fmt.Errorf("%w: cross-validation produced no finite error", ErrDegenerate)
	}
	best := 0
	for i := range mse {
		if mse[i] < mse[best] {
			best = i
		}
	}

	xn, _, _ := centerNormalize(X)
	yc, _ := center(y)
	full, err := LassoPath(xn, yc, kept[best], c.MaxIter)
	if err != nil {
		return nil, fmt.Errorf("full path: %w", err)
	}
	if full.Alphas[0] <= pathTol {
		return nil, fmt.Errorf("%w: no factor correlates with the target", ErrDegenerate)
	}
	return &CVResult{
		AlphaMax:  full.Alphas[0],
		BestAlpha: kept[best],
		CVAlphas:  kept,
		MSE:       mse,
		Path:      full,
	}, nil
}

// kFold splits 0..n-1 into k contiguous folds, the first n%k folds one
// sample larger. Each element is {train, test}.
func kFold(n, k int) [][2][]int {
	out := make([][2][]int, 0, k)
	start := 0
	for f := 0; f < k; f++ {
		size := n / k
		if f < n%k {
			size++
		}
		test := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for i := 0; i < n; i++ {
			if i >= start && i < start+size {
				test = append(test, i)
			} else {
				train = append(train, i)
			}
		}
		out = append(out, [2][]int{train, test})
		start += size
	}
	return out
}

// mergeAlphas returns the sorted unique knots of all fold paths, thinned
// to at most maxCVAlphas values.
func mergeAlphas(fits []*foldFit) []float64 {
	seen := make(map[float64]bool)
	var all []float64
	for _, f := range fits {
		for _, a := range f.path.Alphas {
			if !seen[a] {
				seen[a] = true
				all = append(all, a)
			}
		}
	}
	sort.Float64s(all)
	stride := len(all) / maxCVAlphas
	if stride <= 1 {
		return all
	}
	thinned := make([]float64, 0, maxCVAlphas+1)
	for i := 0; i < len(all); i += stride {
		thinned = append(thinned, all[i])
	}
	return thinned
}
