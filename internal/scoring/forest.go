package scoring

import (
	"context"
	"time"

	"gofactor/adapters/stats/forest"
	"gofactor/domain/experiment"
	"gofactor/internal"
	apperrors "gofactor/internal/errors"
	"gofactor/ports"
)

// ForestConfig holds the caller's forest settings.
type ForestConfig struct {
	Trees       int    `json:"trees" yaml:"trees" validate:"gte=1"`
	Criterion   string `json:"criterion" yaml:"criterion"`
	MaxFeatures string `json:"max_features" yaml:"max_features"`
	// MaxDepth of 0 grows trees until the leaves are pure.
	MaxDepth        int    `json:"max_depth" yaml:"max_depth" validate:"gte=0"`
	MinSamplesSplit int    `json:"min_samples_split" yaml:"min_samples_split" validate:"gte=2"`
	MinSamplesLeaf  int    `json:"min_samples_leaf" yaml:"min_samples_leaf" validate:"gte=1"`
	Bootstrap       bool   `json:"bootstrap" yaml:"bootstrap"`
	OOBScore        bool   `json:"oob_score" yaml:"oob_score"`
	RandomState     *int64 `json:"random_state,omitempty" yaml:"random_state,omitempty"`
	Workers         int    `json:"workers" yaml:"workers" validate:"gte=0"`
}

// DefaultForestConfig returns 250 fully grown trees on bootstrap samples
// with out-of-bag scoring and an unseeded generator.
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		Trees:           250,
		Criterion:       forest.CriterionGini,
		MaxFeatures:     "auto",
		MaxDepth:        0,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		OOBScore:        true,
	}
}

// Validate checks the numeric settings. The criterion is left to the
// engine because continuous mode replaces it.
func (c ForestConfig) Validate() error {
	switch {
	case c.Trees < 1:
		return apperrors.InvalidArgumentf("trees must be at least 1, got %d", c.Trees)
	case c.MaxDepth < 0:
		return apperrors.InvalidArgumentf("max_depth must not be negative, got %d", c.MaxDepth)
	case c.MinSamplesSplit < 2:
		return apperrors.InvalidArgumentf("min_samples_split must be at least 2, got %d", c.MinSamplesSplit)
	case c.MinSamplesLeaf < 1:
		return apperrors.InvalidArgumentf("min_samples_leaf must be at least 1, got %d", c.MinSamplesLeaf)
	case c.Workers < 0:
		return apperrors.InvalidArgumentf("workers must not be negative, got %d", c.Workers)
	}
	return nil
}

// ForestScorer ranks factors by random forest importance.
type ForestScorer struct {
	learner ports.ForestLearner
	logger  *internal.Logger
}

// NewForestScorer creates a forest scorer. A nil learner uses the built-in
// forest engine.
func NewForestScorer(learner ports.ForestLearner, logger *internal.Logger) *ForestScorer {
	if learner == nil {
		learner = forest.NewLearner()
	}
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &ForestScorer{learner: learner, logger: logger.With("ForestScorer")}
}

// Score fits a classifier or regressor depending on the mode and returns
// the factors by descending importance together with the fitted model.
func (s *ForestScorer) Score(ctx context.Context, p *Problem, cfg ForestConfig) (experiment.Ranking, ports.ForestModel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	if err := p.check(); err != nil {
		return nil, nil, err
	}
	params := s.resolve(p.Mode, cfg)

	start := time.Now()
	X, perm := p.canonical()
	model, err := s.learner.Fit(ctx, X, p.Y, params)
	if err != nil {
		return nil, nil, engineError("forest fit failed", err)
	}
	scores, err := p.scores(restore(perm, model.Importances()))
	if err != nil {
		return nil, nil, err
	}
	if oob, ok := model.OOBScore(); ok {
		s.logger.Info("fitted %d trees (%s, %s) in %v, oob score %.4f", model.NumTrees(), p.Mode, params.Criterion, time.Since(start), oob)
	} else {
		s.logger.Info("fitted %d trees (%s, %s) in %v", model.NumTrees(), p.Mode, params.Criterion, time.Since(start))
	}
	return Rank(scores, true), model, nil
}

// resolve maps the caller's settings to engine parameters. Continuous mode
// always splits on squared error, whatever criterion was asked for.
func (s *ForestScorer) resolve(mode experiment.Mode, cfg ForestConfig) ports.ForestParams {
	params := ports.ForestParams{
		Classification:  mode == experiment.ModeCategorical,
		Trees:           cfg.Trees,
		Criterion:       cfg.Criterion,
		MaxFeatures:     cfg.MaxFeatures,
		MaxDepth:        cfg.MaxDepth,
		MinSamplesSplit: cfg.MinSamplesSplit,
		MinSamplesLeaf:  cfg.MinSamplesLeaf,
		Bootstrap:       cfg.Bootstrap,
		OOBScore:        cfg.OOBScore,
		Seed:            seed(cfg.RandomState),
		Workers:         cfg.Workers,
	}
	if mode == experiment.ModeContinuous {
		if cfg.Criterion != "" && cfg.Criterion != forest.CriterionMSE {
			s.logger.Debug("continuous outcome, using %s instead of %s", forest.CriterionMSE, cfg.Criterion)
		}
		params.Criterion = forest.CriterionMSE
	}
	return params
}

func seed(state *int64) int64 {
	if state != nil {
		return *state
	}
	return time.Now().UnixNano()
}
