package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// selectEpsilon is the magnitude above which a coefficient counts as selected.
const selectEpsilon = 10 * 2.220446049250313e-16

// LogisticL1 fits an L1-penalized logistic regression with an unpenalized
// intercept by accelerated proximal gradient (FISTA). The objective is
// Σ logloss + (1/C)‖w‖₁, so larger C means weaker regularization.
type LogisticL1 struct {
	C       float64
	MaxIter int
	Tol     float64
}

// NewLogisticL1 creates a solver with inverse regularization strength c
func NewLogisticL1(c float64) *LogisticL1 {
	return &LogisticL1{C: c, MaxIter: 1000, Tol: 1e-6}
}

// FitBinary fits a model for targets in {0,1} and returns the weights and
// intercept.
func (l *LogisticL1) FitBinary(X *mat.Dense, t []float64) ([]float64, float64, error) {
	n, p := X.Dims()
	if n != len(t) {
		return nil, 0, fmt.Errorf("%w: X has %d rows, y has %d", ErrDimension, n, len(t))
	}
	if l.C <= 0 {
		return nil, 0, fmt.Errorf("%w: C must be positive, got %g", ErrInvalidParams, l.C)
	}
	lipschitz, err := logisticLipschitz(X)
	if err != nil {
		return nil, 0, err
	}
	step := 1 / lipschitz
	shrink := step / l.C

	w := make([]float64, p)
	b := 0.0
	yw := make([]float64, p)
	yb := 0.0
	tk := 1.0

	z := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)
	grad := mat.NewVecDense(p, nil)
	ywVec := mat.NewVecDense(p, yw)
	for iter := 0; iter < l.MaxIter; iter++ {
		z.MulVec(X, ywVec)
		gb := 0.0
		for i := 0; i < n; i++ {
			r := sigmoid(z.AtVec(i)+yb) - t[i]
			resid.SetVec(i, r)
			gb += r
		}
		grad.MulVec(X.T(), resid)

		delta := 0.0
		nb := yb - step*gb
		nw := make([]float64, p)
		for j := 0; j < p; j++ {
			nw[j] = softThreshold(yw[j]-step*grad.AtVec(j), shrink)
			delta = math.Max(delta, math.Abs(nw[j]-w[j]))
		}
		delta = math.Max(delta, math.Abs(nb-b))

		tNext := (1 + math.Sqrt(1+4*tk*tk)) / 2
		mom := (tk - 1) / tNext
		for j := 0; j < p; j++ {
			yw[j] = nw[j] + mom*(nw[j]-w[j])
		}
		yb = nb + mom*(nb-b)
		w, b, tk = nw, nb, tNext

		if delta < l.Tol {
			break
		}
	}
	return w, b, nil
}

// Selected reports, per feature, whether any one-vs-rest model over the
// classes of y keeps a non-zero coefficient. Two classes fit a single model.
func (l *LogisticL1) Selected(X *mat.Dense, y []float64) ([]bool, error) {
	_, p := X.Dims()
	classes := distinct(y)
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: logistic regression needs two classes, got %d", ErrDegenerate, len(classes))
	}
	targets := classes
	if len(classes) == 2 {
		targets = classes[1:]
	}
	selected := make([]bool, p)
	t := make([]float64, len(y))
	for _, c := range targets {
		for i, v := range y {
			if v == c {
				t[i] = 1
			} else {
				t[i] = 0
			}
		}
		w, _, err := l.FitBinary(X, t)
		if err != nil {
			return nil, err
		}
		for j, v := range w {
			if math.Abs(v) > selectEpsilon {
				selected[j] = true
			}
		}
	}
	return selected, nil
}

// logisticLipschitz bounds the gradient's Lipschitz constant by
// 0.25·λmax([X 1]ᵀ[X 1]).
func logisticLipschitz(X *mat.Dense) (float64, error) {
	n, p := X.Dims()
	aug := mat.NewDense(n, p+1, nil)
	aug.Slice(0, n, 0, p).(*mat.Dense).Copy(X)
	for i := 0; i < n; i++ {
		aug.Set(i, p, 1)
	}
	var gram mat.SymDense
	gram.SymOuterK(1, aug.T())
	var eig mat.EigenSym
	if ok := eig.Factorize(&gram, false); !ok {
		return 0, fmt.Errorf("%w: eigendecomposition failed", ErrDegenerate)
	}
	maxEig := 0.0
	for _, v := range eig.Values(nil) {
		if v > maxEig {
			maxEig = v
		}
	}
	if maxEig <= 0 {
		return 0, fmt.Errorf("%w: zero design matrix", ErrDegenerate)
	}
	return 0.25 * maxEig, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softThreshold(x, t float64) float64 {
	switch {
	case x > t:
		return x - t
	case x < -t:
		return x + t
	default:
		return 0
	}
}
