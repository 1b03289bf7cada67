package scoring

import (
	"sort"

	"gofactor/domain/experiment"
	apperrors "gofactor/internal/errors"

	"gonum.org/v1/gonum/mat"
)

// Problem is an encoded design and resolved target, ready for a scorer.
type Problem struct {
	Factors []string
	X       *mat.Dense
	Y       []float64
	Mode    experiment.Mode
}

// NewProblem validates the design, resolves the outcome and encodes the
// factors.
func NewProblem(results experiment.Results, spec experiment.OutcomeSpec) (*Problem, error) {
	if err := results.Design.Validate(); err != nil {
		return nil, apperrors.WithCode(apperrors.CodeInvalidArgument, err)
	}
	y, mode, err := ResolveOutcome(results.Outcomes, spec)
	if err != nil {
		return nil, err
	}
	return &Problem{
		Factors: results.Design.Factors(),
		X:       Encode(results.Design),
		Y:       y,
		Mode:    mode,
	}, nil
}

// check reports problems that no engine could fit.
func (p *Problem) check() error {
	if p.X == nil {
		return apperrors.ComputationError("design has no factors or no runs", nil)
	}
	rows, cols := p.X.Dims()
	if cols != len(p.Factors) {
		return apperrors.InvalidArgumentf("%d factor names for %d columns", len(p.Factors), cols)
	}
	if rows != len(p.Y) {
		return apperrors.ComputationError("target does not align with the design",
			apperrors.InvalidArgumentf("design has %d runs, target has %d values", rows, len(p.Y)))
	}
	return nil
}

// canonical returns X with its columns ordered by factor name, and perm
// such that canonical column k is column perm[k] of X. Engines see the same
// matrix whatever the design's column order, so seeded results do not
// depend on it.
func (p *Problem) canonical() (*mat.Dense, []int) {
	perm := make([]int, len(p.Factors))
	for i := range perm {
		perm[i] = i
	}
	sort.Slice(perm, func(a, b int) bool { return p.Factors[perm[a]] < p.Factors[perm[b]] })

	rows, cols := p.X.Dims()
	out := mat.NewDense(rows, cols, nil)
	col := make([]float64, rows)
	for k, j := range perm {
		mat.Col(col, j, p.X)
		out.SetCol(k, col)
	}
	return out, perm
}

// restore maps per-column values of the canonical matrix back to factor
// order.
func restore(perm []int, values []float64) []float64 {
	out := make([]float64, len(values))
	for k, j := range perm {
		out[j] = values[k]
	}
	return out
}

func (p *Problem) scores(values []float64) (FactorScores, error) {
	s, err := NewFactorScores(p.Factors, values)
	if err != nil {
		return FactorScores{}, apperrors.ComputationError("engine returned the wrong number of scores", err)
	}
	return s, nil
}
