package scoring

import (
	"context"
	"time"

	"gofactor/adapters/stats/linear"
	"gofactor/domain/experiment"
	"gofactor/internal"
	apperrors "gofactor/internal/errors"
	"gofactor/ports"

	"gonum.org/v1/gonum/floats"
)

const (
	// CalibrationFolds is the number of cross-validation folds used to find
	// the strongest useful lasso penalty.
	CalibrationFolds = 6
	// AlphaGridSize is the number of penalties in the randomized lasso grid.
	AlphaGridSize = 6
	// AlphaGridRatio is the weakest penalty of the grid relative to the
	// calibrated one.
	AlphaGridRatio = 0.1
	// LogisticC is the inverse penalty used for categorical targets.
	LogisticC = 1.0
)

// StabilityConfig holds the caller's stability selection settings.
type StabilityConfig struct {
	Scaling        float64 `json:"scaling" yaml:"scaling" validate:"gt=0,lte=1"`
	SampleFraction float64 `json:"sample_fraction" yaml:"sample_fraction" validate:"gt=0,lte=1"`
	Resamplings    int     `json:"n_resampling" yaml:"n_resampling" validate:"gte=1"`
	RandomState    *int64  `json:"random_state,omitempty" yaml:"random_state,omitempty"`
	Workers        int     `json:"workers" yaml:"workers" validate:"gte=0"`
}

// DefaultStabilityConfig returns 200 resamplings of three quarters of the
// runs with penalties halved at random.
func DefaultStabilityConfig() StabilityConfig {
	return StabilityConfig{
		Scaling:        0.5,
		SampleFraction: 0.75,
		Resamplings:    200,
	}
}

// Validate checks the settings.
func (c StabilityConfig) Validate() error {
	switch {
	case !(c.Scaling > 0 && c.Scaling <= 1):
		return apperrors.InvalidArgumentf("scaling must be in (0,1], got %g", c.Scaling)
	case !(c.SampleFraction > 0 && c.SampleFraction <= 1):
		return apperrors.InvalidArgumentf("sample_fraction must be in (0,1], got %g", c.SampleFraction)
	case c.Resamplings < 1:
		return apperrors.InvalidArgumentf("n_resampling must be at least 1, got %d", c.Resamplings)
	case c.Workers < 0:
		return apperrors.InvalidArgumentf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// StabilityResult is a stability ranking with the selection path behind
// it. For categorical targets Alphas is empty and Frequencies has a single
// row.
type StabilityResult struct {
	Ranking experiment.Ranking
	// Alphas is the penalty grid, strongest first.
	Alphas []float64
	// Frequencies[a][j] is how often factor j was selected at Alphas[a],
	// in factor order.
	Frequencies [][]float64
}

// StabilityScorer ranks factors by stability selection.
type StabilityScorer struct {
	calibrator ports.PathCalibrator
	learner    ports.StabilityLearner
	logger     *internal.Logger
}

// NewStabilityScorer creates a stability scorer. Nil engines default to
// the built-in LARS calibrator and randomized selector.
func NewStabilityScorer(calibrator ports.PathCalibrator, learner ports.StabilityLearner, logger *internal.Logger) *StabilityScorer {
	if calibrator == nil {
		calibrator = linear.NewLassoLarsCV()
	}
	if learner == nil {
		learner = linear.NewSelector()
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &StabilityScorer{calibrator: calibrator, learner: learner, logger: logger.With("StabilityScorer")}
}

// Score returns the factors by descending selection frequency.
func (s *StabilityScorer) Score(ctx context.Context, p *Problem, cfg StabilityConfig) (experiment.Ranking, error) {
	res, err := s.Path(ctx, p, cfg)
	if err != nil {
		return nil, err
	}
	return res.Ranking, nil
}

// Path runs stability selection and keeps the per-penalty frequencies.
//
// Categorical targets use randomized L1 logistic regression. Continuous
// targets first calibrate the penalty range: a cross-validated LARS fit
// gives the strongest useful penalty alpha0, and the randomized lasso runs
// over a grid from alpha0 down to a tenth of it. A failed calibration
// aborts before any resampling.
func (s *StabilityScorer) Path(ctx context.Context, p *Problem, cfg StabilityConfig) (*StabilityResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := p.check(); err != nil {
		return nil, err
	}

	start := time.Now()
	X, perm := p.canonical()
	params := ports.StabilityParams{
		Scaling:        cfg.Scaling,
		SampleFraction: cfg.SampleFraction,
		Resamplings:    cfg.Resamplings,
		Seed:           seed(cfg.RandomState),
		Workers:        cfg.Workers,
	}

	var alphas []float64
	if p.Mode == experiment.ModeCategorical {
		params.Penalty = ports.PenaltyLogistic
		params.C = LogisticC
	} else {
		alpha0, err := s.calibrator.Calibrate(X, p.Y, CalibrationFolds)
		if err != nil {
			return nil, engineError("lasso path calibration failed", err)
		}
		alphas = floats.Span(make([]float64, AlphaGridSize), alpha0, AlphaGridRatio*alpha0)
		s.logger.Debug("calibrated alpha0=%.6g over %d folds", alpha0, CalibrationFolds)
		params.Penalty = ports.PenaltyLasso
		params.Alphas = alphas
	}

	model, err := s.learner.Fit(ctx, X, p.Y, params)
	if err != nil {
		return nil, engineError("stability selection failed", err)
	}
	scores, err := p.scores(restore(perm, model.Scores()))
	if err != nil {
		return nil, err
	}
	path := model.Path()
	freqs := make([][]float64, len(path))
	for a, row := range path {
		if len(row) != len(perm) {
			return nil, apperrors.ComputationError("stability path has the wrong width", nil)
		}
		freqs[a] = restore(perm, row)
	}

	s.logger.Info("%d resamplings (%s) in %v", cfg.Resamplings, p.Mode, time.Since(start))
	return &StabilityResult{
		Ranking:     Rank(scores, true),
		Alphas:      alphas,
		Frequencies: freqs,
	}, nil
}
