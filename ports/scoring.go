package ports

import (
	"context"
	"errors"

	"gonum.org/v1/gonum/mat"
)

// ErrInvalidParams is wrapped by engines when a setting, rather than the
// data, makes a fit impossible.
var ErrInvalidParams = errors.New("invalid parameters")

// TestResult is the outcome of a univariate test for one factor.
type TestResult struct {
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
}

// UnivariateTest evaluates a statistical test column-wise against a target.
type UnivariateTest interface {
	Name() string
	// Evaluate returns one result per column of X, in column order.
	Evaluate(X mat.Matrix, y []float64) ([]TestResult, error)
}

// ForestParams is the fully resolved configuration handed to a forest learner.
type ForestParams struct {
	Classification  bool
	Trees           int
	Criterion       string
	MaxFeatures     string
	MaxDepth        int // 0 means unbounded
	MinSamplesSplit int
	MinSamplesLeaf  int
	Bootstrap       bool
	OOBScore        bool
	Seed            int64
	Workers         int
}

// ForestModel is a fitted tree ensemble.
type ForestModel interface {
	// Importances returns one normalized importance per feature, summing to 1.
	Importances() []float64
	// OOBScore returns the out-of-bag score when it was computed.
	OOBScore() (float64, bool)
	Predict(row []float64) float64
	NumTrees() int
}

// ForestLearner fits a classification or regression forest.
type ForestLearner interface {
	Fit(ctx context.Context, X mat.Matrix, y []float64, params ForestParams) (ForestModel, error)
}

// PenaltyKind selects the regularized model used inside stability selection.
type PenaltyKind int

const (
	PenaltyLasso PenaltyKind = iota
	PenaltyLogistic
)

// StabilityParams is the fully resolved configuration for stability selection.
type StabilityParams struct {
	Penalty PenaltyKind
	// Alphas is the penalty grid for PenaltyLasso.
	Alphas []float64
	// C is the inverse regularization strength for PenaltyLogistic.
	C              float64
	Scaling        float64
	SampleFraction float64
	Resamplings    int
	Seed           int64
	Workers        int
}

// StabilityModel holds the selection frequencies of a stability run.
type StabilityModel interface {
	// Scores returns one selection frequency in [0,1] per feature.
	Scores() []float64
	// Path returns per-alpha frequencies, indexed [alpha][feature].
	Path() [][]float64
}

// StabilityLearner runs randomized resampling of a penalized linear model.
type StabilityLearner interface {
	Fit(ctx context.Context, X mat.Matrix, y []float64, params StabilityParams) (StabilityModel, error)
}

// PathCalibrator determines the strongest useful penalty of a lasso path
// by cross-validation.
type PathCalibrator interface {
	Calibrate(X mat.Matrix, y []float64, folds int) (alphaMax float64, err error)
}
