package linear

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"gofactor/ports"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// orthonormalDesign has two centered, orthogonal, unit-norm columns, so the
// lasso solution is a soft threshold of Xᵀy.
func orthonormalDesign() (*mat.Dense, []float64) {
	X := mat.NewDense(4, 2, []float64{
		0.5, 0.5,
		-0.5, 0.5,
		0.5, -0.5,
		-0.5, -0.5,
	})
	y := make([]float64, 4)
	for i := 0; i < 4; i++ {
		y[i] = 3*X.At(i, 0) + X.At(i, 1)
	}
	return X, y
}

func signalData(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y[i] = 2*X.At(i, 0) + 0.1*rng.NormFloat64()
	}
	return X, y
}

func classData(n int, seed int64) (*mat.Dense, []float64) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		if X.At(i, 0)+0.1*rng.NormFloat64() > 0 {
			y[i] = 1
		}
	}
	return X, y
}

func TestLassoPath_OrthonormalKnots(t *testing.T) {
	X, y := orthonormalDesign()

	path, err := LassoPath(X, y, 0, 0)
	if err != nil {
		t.Fatalf("LassoPath failed: %v", err)
	}

	want := []float64{0.75, 0.25, 0}
	if len(path.Alphas) != len(want) {
		t.Fatalf("Expected %d knots, got %d (%v)", len(want), len(path.Alphas), path.Alphas)
	}
	for k := range want {
		if math.Abs(path.Alphas[k]-want[k]) > 1e-9 {
			t.Errorf("Expected alpha[%d] = %g, got %g", k, want[k], path.Alphas[k])
		}
	}
	for j, c := range path.Coefs[0] {
		if c != 0 {
			t.Errorf("Expected zero coefficient %d at the first knot, got %g", j, c)
		}
	}
	last := path.Coefs[len(path.Coefs)-1]
	if math.Abs(last[0]-3) > 1e-9 || math.Abs(last[1]-1) > 1e-9 {
		t.Errorf("Expected least-squares coefficients [3 1], got %v", last)
	}
}

func TestLassoPath_StopsAtAlphaMin(t *testing.T) {
	X, y := orthonormalDesign()

	path, err := LassoPath(X, y, 0.5, 0)
	if err != nil {
		t.Fatalf("LassoPath failed: %v", err)
	}

	last := len(path.Alphas) - 1
	if math.Abs(path.Alphas[last]-0.5) > 1e-12 {
		t.Errorf("Expected path to end at 0.5, got %g", path.Alphas[last])
	}
	if math.Abs(path.Coefs[last][0]-1) > 1e-9 || path.Coefs[last][1] != 0 {
		t.Errorf("Expected coefficients [1 0] at alpha 0.5, got %v", path.Coefs[last])
	}
}

func TestPath_At(t *testing.T) {
	X, y := orthonormalDesign()
	path, err := LassoPath(X, y, 0, 0)
	if err != nil {
		t.Fatalf("LassoPath failed: %v", err)
	}

	tests := []struct {
		alpha float64
		want  []float64
	}{
		{alpha: 2, want: []float64{0, 0}},
		{alpha: 0.5, want: []float64{1, 0}},
		{alpha: 0.25, want: []float64{2, 0}},
		{alpha: 0.125, want: []float64{2.5, 0.5}},
		{alpha: -1, want: []float64{3, 1}},
	}
	for _, tt := range tests {
		got := path.At(tt.alpha)
		for j := range tt.want {
			if math.Abs(got[j]-tt.want[j]) > 1e-9 {
				t.Errorf("At(%g): expected %v, got %v", tt.alpha, tt.want, got)
				break
			}
		}
	}
}

func TestKFold_ContiguousSizes(t *testing.T) {
	splits := kFold(10, 6)
	if len(splits) != 6 {
		t.Fatalf("Expected 6 folds, got %d", len(splits))
	}

	wantSizes := []int{2, 2, 2, 2, 1, 1}
	next := 0
	for f, split := range splits {
		train, test := split[0], split[1]
		if len(test) != wantSizes[f] {
			t.Errorf("Fold %d: expected %d test rows, got %d", f, wantSizes[f], len(test))
		}
		if len(train)+len(test) != 10 {
			t.Errorf("Fold %d: train and test should cover all rows", f)
		}
		for _, i := range test {
			if i != next {
				t.Errorf("Fold %d: expected contiguous index %d, got %d", f, next, i)
			}
			next++
		}
	}
}

func TestLassoLarsCV_Errors(t *testing.T) {
	cv := NewLassoLarsCV()

	single := mat.NewDense(1, 2, []float64{1, 2})
	if _, err := cv.Fit(single, []float64{1}, DefaultFolds); !errors.Is(err, ErrDegenerate) {
		t.Errorf("Expected ErrDegenerate for one sample, got %v", err)
	}

	X, y := signalData(20, 1)
	if _, err := cv.Fit(X, y, 1); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for one fold, got %v", err)
	}

	constant := make([]float64, 20)
	if _, err := cv.Fit(X, constant, DefaultFolds); !errors.Is(err, ErrDegenerate) {
		t.Errorf("Expected ErrDegenerate for a constant target, got %v", err)
	}
}

func TestLassoLarsCV_AlphaMaxIsFirstKnot(t *testing.T) {
	X, y := signalData(60, 2)

	res, err := NewLassoLarsCV().Fit(X, y, DefaultFolds)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	xn, _, _ := centerNormalize(X)
	yc, _ := center(y)
	want := 0.0
	col := make([]float64, 60)
	for j := 0; j < 3; j++ {
		mat.Col(col, j, xn)
		dot := 0.0
		for i := range col {
			dot += col[i] * yc[i]
		}
		want = math.Max(want, math.Abs(dot)/60)
	}

	if math.Abs(res.AlphaMax-want) > 1e-9 {
		t.Errorf("Expected AlphaMax %g, got %g", want, res.AlphaMax)
	}
	if res.BestAlpha > res.AlphaMax {
		t.Errorf("Expected BestAlpha <= AlphaMax, got %g > %g", res.BestAlpha, res.AlphaMax)
	}
	if len(res.CVAlphas) != len(res.MSE) {
		t.Errorf("Expected one MSE per alpha, got %d and %d", len(res.CVAlphas), len(res.MSE))
	}

	alpha, err := NewLassoLarsCV().Calibrate(X, y, DefaultFolds)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	if alpha != res.AlphaMax {
		t.Errorf("Expected Calibrate to return AlphaMax %g, got %g", res.AlphaMax, alpha)
	}
}

func TestLogisticL1_SelectsSignal(t *testing.T) {
	X, y := classData(200, 3)

	sel, err := NewLogisticL1(1).Selected(X, y)
	if err != nil {
		t.Fatalf("Selected failed: %v", err)
	}
	if !sel[0] {
		t.Errorf("Expected signal feature to be selected, got %v", sel)
	}

	if _, _, err := NewLogisticL1(0).FitBinary(X, y); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("Expected ErrInvalidParams for C=0, got %v", err)
	}
	if _, err := NewLogisticL1(1).Selected(X, make([]float64, 200)); !errors.Is(err, ErrDegenerate) {
		t.Errorf("Expected ErrDegenerate for one class, got %v", err)
	}
}

func lassoParams(alphas []float64, workers int) ports.StabilityParams {
	return ports.StabilityParams{
		Penalty:        ports.PenaltyLasso,
		Alphas:         alphas,
		Scaling:        0.5,
		SampleFraction: 0.75,
		Resamplings:    40,
		Seed:           11,
		Workers:        workers,
	}
}

func TestSelector_LassoRanksSignalFirst(t *testing.T) {
	X, y := signalData(80, 4)
	alpha0, err := NewLassoLarsCV().Calibrate(X, y, DefaultFolds)
	if err != nil {
		t.Fatalf("Calibrate failed: %v", err)
	}
	grid := floats.Span(make([]float64, 6), alpha0, 0.1*alpha0)

	model, err := NewSelector().Fit(context.Background(), X, y, lassoParams(grid, 4))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	scores := model.Scores()
	if scores[0] < 0.99 {
		t.Errorf("Expected signal feature to be always selected, got %g", scores[0])
	}
	for j := 1; j < 3; j++ {
		if scores[j] > scores[0] {
			t.Errorf("Expected noise feature %d below signal, got %g > %g", j, scores[j], scores[0])
		}
	}
	if len(model.Path()) != len(grid) {
		t.Errorf("Expected one path row per alpha, got %d", len(model.Path()))
	}
	for _, row := range model.Path() {
		for j, v := range row {
			if v < 0 || v > 1 || v > scores[j] {
				t.Errorf("Path frequency %g out of range for feature %d", v, j)
			}
		}
	}
}

func TestSelector_DeterministicAcrossWorkers(t *testing.T) {
	X, y := signalData(50, 5)
	grid := []float64{0.5, 0.2, 0.05}

	a, err := NewSelector().Fit(context.Background(), X, y, lassoParams(grid, 1))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	b, err := NewSelector().Fit(context.Background(), X, y, lassoParams(grid, 8))
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	sa, sb := a.Scores(), b.Scores()
	for j := range sa {
		if sa[j] != sb[j] {
			t.Errorf("Feature %d: expected identical scores, got %g and %g", j, sa[j], sb[j])
		}
	}
}

func TestSelector_Logistic(t *testing.T) {
	X, y := classData(200, 6)
	params := ports.StabilityParams{
		Penalty:        ports.PenaltyLogistic,
		C:              1,
		Scaling:        0.5,
		SampleFraction: 0.75,
		Resamplings:    20,
		Seed:           3,
	}

	model, err := NewSelector().Fit(context.Background(), X, y, params)
	if err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if s := model.Scores(); s[0] < 0.8 {
		t.Errorf("Expected signal feature selected in most resamplings, got %g", s[0])
	}

	if _, err := NewSelector().Fit(context.Background(), X, make([]float64, 200), params); !errors.Is(err, ErrDegenerate) {
		t.Errorf("Expected ErrDegenerate for one class, got %v", err)
	}
}

func TestDrawResamplings_Weights(t *testing.T) {
	for _, scaling := range []float64{0.2, 0.5, 1} {
		params := ports.StabilityParams{Scaling: scaling, SampleFraction: 0.75, Resamplings: 50, Seed: 9}
		seen := map[float64]int{}
		for _, job := range drawResamplings(10, 8, params) {
			for _, w := range job.weights {
				seen[w]++
			}
		}
		if len(seen) != 2 || seen[1] == 0 || seen[1-scaling] == 0 {
			t.Errorf("Expected weights drawn from {1, %g} with scaling %g, got %v", 1-scaling, scaling, seen)
		}
	}
}

func TestSelector_InvalidParams(t *testing.T) {
	X, y := signalData(20, 7)
	base := lassoParams([]float64{0.1}, 1)

	tests := []struct {
		name   string
		mutate func(p *ports.StabilityParams)
	}{
		{"zero scaling", func(p *ports.StabilityParams) { p.Scaling = 0 }},
		{"scaling above one", func(p *ports.StabilityParams) { p.Scaling = 1.5 }},
		{"zero fraction", func(p *ports.StabilityParams) { p.SampleFraction = 0 }},
		{"no resamplings", func(p *ports.StabilityParams) { p.Resamplings = 0 }},
		{"empty grid", func(p *ports.StabilityParams) { p.Alphas = nil }},
		{"negative alpha", func(p *ports.StabilityParams) { p.Alphas = []float64{-1} }},
		{"logistic without C", func(p *ports.StabilityParams) { p.Penalty = ports.PenaltyLogistic; p.C = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := base
			tt.mutate(&params)
			if _, err := NewSelector().Fit(context.Background(), X, y, params); !errors.Is(err, ErrInvalidParams) {
				t.Errorf("Expected ErrInvalidParams, got %v", err)
			}
		})
	}
}
