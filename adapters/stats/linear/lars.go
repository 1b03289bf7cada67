package linear

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const pathTol = 1e-12

// Path is a lasso regularization path computed by least-angle regression.
// Alphas decrease strictly along the path; Coefs[k] holds the coefficients
// at Alphas[k]. Alpha is expressed as max|Xᵀr|/n, matching the lasso
// objective (1/2n)‖y-Xw‖² + α‖w‖₁.
type Path struct {
	Alphas []float64
	Coefs  [][]float64
}

// LassoPath computes the lasso path of centered data by least-angle
// regression with the lasso modification (variables leave the active set
// when their coefficient crosses zero). The path stops at alphaMin,
// interpolating the last segment so the final knot sits exactly on it.
// maxIter bounds the number of knots; zero means 500.
func LassoPath(X *mat.Dense, y []float64, alphaMin float64, maxIter int) (*Path, error) {
	n, p := X.Dims()
	if n != len(y) {
		return nil, fmt.Errorf("%w: X has %d rows, y has %d", ErrDimension, n, len(y))
	}
	if n == 0 || p == 0 {
		return nil, fmt.Errorf("%w: empty matrix %dx%d", ErrDegenerate, n, p)
	}
	if maxIter <= 0 {
		maxIter = 500
	}
	nf := float64(n)

	cov := make([]float64, p)
	yv := mat.NewVecDense(n, y)
	covVec := mat.NewVecDense(p, cov)
	covVec.MulVec(X.T(), yv)

	beta := make([]float64, p)
	active := make([]int, 0, p)
	signs := make([]float64, 0, p)
	isActive := make([]bool, p)

	path := &Path{}
	record := func(c float64) {
		path.Alphas = append(path.Alphas, c/nf)
		path.Coefs = append(path.Coefs, append([]float64(nil), beta...))
	}

	j, cMax := argmaxAbs(cov, isActive)
	record(cMax)
	if cMax <= pathTol || j < 0 {
		return path, nil
	}
	if cMax/nf <= alphaMin {
		return path, nil
	}
	active = append(active, j)
	signs = append(signs, sign(cov[j]))
	isActive[j] = true

	u := mat.NewVecDense(n, nil)
	a := mat.NewVecDense(p, nil)
	for iter := 0; iter < maxIter; iter++ {
		w, aa, err := equiangular(X, active, signs)
		if err != nil {
			if len(path.Alphas) > 1 {
				// collinear addition, keep the path computed so far
				return path, nil
			}
			return nil, err
		}

		// u = Σ signs·w·x_A, a = Xᵀu
		u.Zero()
		for k, col := range active {
			u.AddScaledVec(u, signs[k]*w[k], X.ColView(col))
		}
		a.MulVec(X.T(), u)

		gammaHat := cMax / aa
		for k := 0; k < p; k++ {
			if isActive[k] {
				continue
			}
			ak := a.AtVec(k)
			if g := (cMax - cov[k]) / (aa - ak); g > pathTol && g < gammaHat {
				gammaHat = g
			}
			if g := (cMax + cov[k]) / (aa + ak); g > pathTol && g < gammaHat {
				gammaHat = g
			}
		}

		gamma := gammaHat
		drop := -1
		for k, col := range active {
			d := signs[k] * w[k]
			if d == 0 {
				continue
			}
			if g := -beta[col] / d; g > pathTol && g < gamma {
				gamma = g
				drop = k
			}
		}

		final := false
		next := cMax - gamma*aa
		if next/nf <= alphaMin {
			gamma = (cMax - alphaMin*nf) / aa
			next = alphaMin * nf
			drop = -1
			final = true
		}

		for k, col := range active {
			beta[col] += gamma * signs[k] * w[k]
		}
		for k := 0; k < p; k++ {
			cov[k] -= gamma * a.AtVec(k)
		}
		cMax = next

		if drop >= 0 {
			col := active[drop]
			beta[col] = 0
			isActive[col] = false
			active = append(active[:drop], active[drop+1:]...)
			signs = append(signs[:drop], signs[drop+1:]...)
		}
		record(cMax)
		if final || cMax <= pathTol {
			break
		}
		if drop >= 0 {
			if len(active) == 0 {
				break
			}
			continue
		}
		k, c := argmaxAbs(cov, isActive)
		if k < 0 || c <= pathTol {
			// every variable is active; the last step reached zero correlation
			break
		}
		if len(active) >= n-1 {
			break
		}
		active = append(active, k)
		signs = append(signs, sign(cov[k]))
		isActive[k] = true
	}
	if last := len(path.Alphas) - 1; last > 0 && path.Alphas[last] < alphaMin {
		path.Alphas[last] = alphaMin
	}
	return path, nil
}

// equiangular solves G w = 1 for the signed active Gram matrix and
// returns the normalized direction weights and A_A = (1ᵀG⁻¹1)^(-1/2).
func equiangular(X *mat.Dense, active []int, signs []float64) ([]float64, float64, error) {
	m := len(active)
	g := mat.NewSymDense(m, nil)
	for i := 0; i < m; i++ {
		ci := X.ColView(active[i])
		for j := i; j < m; j++ {
			cj := X.ColView(active[j])
			g.SetSym(i, j, signs[i]*signs[j]*mat.Dot(ci, cj))
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(g); !ok {
		return nil, 0, fmt.Errorf("%w: active set Gram matrix is singular", ErrDegenerate)
	}
	ones := mat.NewVecDense(m, nil)
	for i := 0; i < m; i++ {
		ones.SetVec(i, 1)
	}
	var w mat.VecDense
	if err := chol.SolveVecTo(&w, ones); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrDegenerate, err)
	}
	s := mat.Sum(&w)
	if s <= 0 || math.IsNaN(s) {
		return nil, 0, fmt.Errorf("%w: non-positive equiangular norm", ErrDegenerate)
	}
	aa := 1 / math.Sqrt(s)
	out := make([]float64, m)
	for i := range out {
		out[i] = w.AtVec(i) * aa
	}
	return out, aa, nil
}

// At returns the coefficients at alpha by linear interpolation between
// knots. Above the first knot all coefficients are zero; below the last
// knot the last coefficients apply.
func (p *Path) At(alpha float64) []float64 {
	last := len(p.Alphas) - 1
	out := make([]float64, len(p.Coefs[0]))
	if alpha >= p.Alphas[0] {
		copy(out, p.Coefs[0])
		return out
	}
	if alpha <= p.Alphas[last] {
		copy(out, p.Coefs[last])
		return out
	}
	for k := 0; k < last; k++ {
		hi, lo := p.Alphas[k], p.Alphas[k+1]
		if alpha <= hi && alpha >= lo {
			t := 0.0
			if hi > lo {
				t = (hi - alpha) / (hi - lo)
			}
			for j := range out {
				out[j] = p.Coefs[k][j] + t*(p.Coefs[k+1][j]-p.Coefs[k][j])
			}
			return out
		}
	}
	copy(out, p.Coefs[last])
	return out
}

func argmaxAbs(v []float64, skip []bool) (int, float64) {
	best, bestVal := -1, -1.0
	for i, x := range v {
		if skip[i] {
			continue
		}
		if a := math.Abs(x); a > bestVal {
			best, bestVal = i, a
		}
	}
	if best < 0 {
		return -1, 0
	}
	return best, bestVal
}

func sign(x float64) float64 {
	if x < 0 {
		return -1
	}
	return 1
}
