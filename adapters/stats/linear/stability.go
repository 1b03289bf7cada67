package linear

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"gofactor/ports"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Selector runs stability selection: a penalized linear model is refit on
// random subsamples with randomly rescaled features, and each feature is
// scored by how often it keeps a non-zero coefficient.
type Selector struct {
	MaxIter int
}

var _ ports.StabilityLearner = (*Selector)(nil)

// NewSelector creates a stability selector
func NewSelector() *Selector {
	return &Selector{MaxIter: 500}
}

// Result holds selection frequencies, per alpha and aggregated.
type Result struct {
	scores []float64
	path   [][]float64
}

var _ ports.StabilityModel = (*Result)(nil)

// Scores returns the highest selection frequency of each feature across
// the penalty grid.
func (r *Result) Scores() []float64 {
	return append([]float64(nil), r.scores...)
}

// Path returns selection frequencies indexed [alpha][feature].
func (r *Result) Path() [][]float64 {
	out := make([][]float64, len(r.path))
	for i, row := range r.path {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// resampling is one randomized refit, drawn before any work starts so the
// outcome only depends on the seed.
type resampling struct {
	weights []float64
	rows    []int
}

// Fit runs params.Resamplings randomized fits.
func (s *Selector) Fit(ctx context.Context, X mat.Matrix, y []float64, params ports.StabilityParams) (ports.StabilityModel, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	if err := checkFinite(X, y); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return nil, fmt.Errorf("%w: empty matrix %dx%d", ErrDegenerate, n, p)
	}
	if params.Penalty == ports.PenaltyLogistic && len(distinct(y)) < 2 {
		return nil, fmt.Errorf("%w: target has a single class", ErrDegenerate)
	}

	xn, _, _ := centerNormalize(X)
	jobs := drawResamplings(n, p, params)

	grid := params.Alphas
	if params.Penalty == ports.PenaltyLogistic {
		grid = []float64{params.C}
	}
	minAlpha := math.Inf(1)
	for _, a := range grid {
		minAlpha = math.Min(minAlpha, a)
	}

	selections := make([][][]bool, len(jobs))
	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for r := range jobs {
		r := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			var err error
			if params.Penalty == ports.PenaltyLogistic {
				selections[r], err = s.logisticRun(xn, y, jobs[r], params.C)
			} else {
				selections[r], err = s.lassoRun(xn, y, jobs[r], grid, minAlpha)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	path := make([][]float64, len(grid))
	for a := range grid {
		path[a] = make([]float64, p)
	}
	for _, sel := range selections {
		for a, row := range sel {
			for j, on := range row {
				if on {
					path[a][j]++
				}
			}
		}
	}
	scores := make([]float64, p)
	for a := range path {
		for j := range path[a] {
			path[a][j] /= float64(len(jobs))
			scores[j] = math.Max(scores[j], path[a][j])
		}
	}
	return &Result{scores: scores, path: path}, nil
}

func validateParams(params ports.StabilityParams) error {
	if params.Scaling <= 0 || params.Scaling > 1 {
		return fmt.Errorf("%w: scaling must be in (0,1], got %g", ErrInvalidParams, params.Scaling)
	}
	if params.SampleFraction <= 0 || params.SampleFraction > 1 {
		return fmt.Errorf("%w: sample fraction must be in (0,1], got %g", ErrInvalidParams, params.SampleFraction)
	}
	if params.Resamplings < 1 {
		return fmt.Errorf("%w: resamplings must be positive, got %d", ErrInvalidParams, params.Resamplings)
	}
	switch params.Penalty {
	case ports.PenaltyLasso:
		if len(params.Alphas) == 0 {
			return fmt.Errorf("%w: empty alpha grid", ErrInvalidParams)
		}
		for _, a := range params.Alphas {
			if a < 0 || math.IsNaN(a) || math.IsInf(a, 0) {
				return fmt.Errorf("%w: alpha %g", ErrInvalidParams, a)
			}
		}
	case ports.PenaltyLogistic:
		if params.C <= 0 {
			return fmt.Errorf("%w: C must be positive, got %g", ErrInvalidParams, params.C)
		}
	default:
		return fmt.Errorf("%w: unknown penalty %d", ErrInvalidParams, params.Penalty)
	}
	return nil
}

// drawResamplings draws, per resampling, the feature weights (1 or
// 1-scaling with equal probability) and then the row mask (each row kept
// with probability sampleFraction).
func drawResamplings(n, p int, params ports.StabilityParams) []resampling {
	rng := rand.New(rand.NewSource(params.Seed))
	jobs := make([]resampling, params.Resamplings)
	for r := range jobs {
		weights := make([]float64, p)
		for j := range weights {
			weights[j] = 1 - params.Scaling*float64(rng.Intn(2))
		}
		rows := make([]int, 0, int(float64(n)*params.SampleFraction)+1)
		for i := 0; i < n; i++ {
			if rng.Float64() < params.SampleFraction {
				rows = append(rows, i)
			}
		}
		jobs[r] = resampling{weights: weights, rows: rows}
	}
	return jobs
}

func (s *Selector) lassoRun(X *mat.Dense, y []float64, job resampling, grid []float64, minAlpha float64) ([][]bool, error) {
	_, p := X.Dims()
	out := make([][]bool, len(grid))
	for a := range out {
		out[a] = make([]bool, p)
	}
	if len(job.rows) < 2 {
		return out, nil
	}
	xs, ys := selectRows(X, y, job.rows)
	centerColumns(xs)
	yc, _ := center(ys)
	scaleColumns(xs, job.weights)

	path, err := LassoPath(xs, yc, minAlpha, s.MaxIter)
	if err != nil {
		return nil, err
	}
	for a, alpha := range grid {
		for j, c := range path.At(alpha) {
			out[a][j] = c != 0
		}
	}
	return out, nil
}

func (s *Selector) logisticRun(X *mat.Dense, y []float64, job resampling, c float64) ([][]bool, error) {
	_, p := X.Dims()
	out := [][]bool{make([]bool, p)}
	if len(job.rows) < 2 {
		return out, nil
	}
	xs, ys := selectRows(X, y, job.rows)
	if len(distinct(ys)) < 2 {
		return out, nil
	}
	scaleColumns(xs, job.weights)
	sel, err := NewLogisticL1(c).Selected(xs, ys)
	if err != nil {
		return nil, err
	}
	out[0] = sel
	return out, nil
}

func distinct(y []float64) []float64 {
	seen := make(map[float64]bool)
	var out []float64
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Float64s(out)
	return out
}
