package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gofactor/domain/experiment"
	"gofactor/internal"
	apperrors "gofactor/internal/errors"
	"gofactor/internal/scoring"
	"gofactor/ports"

	"github.com/google/uuid"
)

// Strategy names a scoring strategy.
type Strategy string

const (
	StrategyUnivariate Strategy = "univariate"
	StrategyForest     Strategy = "forest"
	StrategyStability  Strategy = "stability"
)

// Strategies lists the available strategies.
func Strategies() []Strategy {
	return []Strategy{StrategyUnivariate, StrategyForest, StrategyStability}
}

// ParseStrategy resolves a strategy name, case-insensitively.
func ParseStrategy(name string) (Strategy, error) {
	s := Strategy(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range Strategies() {
		if s == known {
			return s, nil
		}
	}
	return "", apperrors.InvalidArgumentf("unknown strategy %q, expected one of %v", name, Strategies())
}

// FeatureScoringService exposes the three scoring entry points over an
// experiment and its outcomes.
type FeatureScoringService struct {
	univariate *scoring.UnivariateScorer
	forest     *scoring.ForestScorer
	stability  *scoring.StabilityScorer
	logger     *internal.Logger
}

type serviceOptions struct {
	logger     *internal.Logger
	tests      scoring.TestFactory
	forest     ports.ForestLearner
	calibrator ports.PathCalibrator
	selector   ports.StabilityLearner
}

// Option configures a FeatureScoringService.
type Option func(*serviceOptions)

// WithLogger sets the logger shared by the service and its scorers
func WithLogger(logger *internal.Logger) Option {
	return func(o *serviceOptions) { o.logger = logger }
}

// Quiet silences all logging
func Quiet() Option {
	return WithLogger(internal.Discard())
}

// WithTests replaces the univariate test factory
func WithTests(tests scoring.TestFactory) Option {
	return func(o *serviceOptions) { o.tests = tests }
}

// WithForestLearner replaces the forest engine
func WithForestLearner(learner ports.ForestLearner) Option {
	return func(o *serviceOptions) { o.forest = learner }
}

// WithStabilityEngines replaces the lasso path calibrator and the
// stability selection engine
func WithStabilityEngines(calibrator ports.PathCalibrator, learner ports.StabilityLearner) Option {
	return func(o *serviceOptions) {
		o.calibrator = calibrator
		o.selector = learner
	}
}

// NewFeatureScoringService creates the service. Engines default to the
// built-in implementations.
func NewFeatureScoringService(opts ...Option) *FeatureScoringService {
	o := &serviceOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = internal.NewDefaultLogger()
	}
	univariate := scoring.NewUnivariateScorer(o.logger)
	if o.tests != nil {
		univariate = scoring.NewUnivariateScorerWithTests(o.tests, o.logger)
	}
	return &FeatureScoringService{
		univariate: univariate,
		forest:     scoring.NewForestScorer(o.forest, o.logger),
		stability:  scoring.NewStabilityScorer(o.calibrator, o.selector, o.logger),
		logger:     o.logger.With("FeatureScoring"),
	}
}

// Univariate ranks factors by ascending p-value. scoreFunc is one of
// f_classification, chi2 or f_regression; it only applies to categorical
// outcomes.
func (s *FeatureScoringService) Univariate(ctx context.Context, results experiment.Results, outcome experiment.OutcomeSpec, scoreFunc string) (experiment.Ranking, error) {
	p, err := s.prepare(ctx, results, outcome)
	if err != nil {
		return nil, err
	}
	return s.univariate.Score(p, scoreFunc)
}

// Forest ranks factors by descending forest importance and returns the
// fitted model.
func (s *FeatureScoringService) Forest(ctx context.Context, results experiment.Results, outcome experiment.OutcomeSpec, cfg scoring.ForestConfig) (experiment.Ranking, ports.ForestModel, error) {
	p, err := s.prepare(ctx, results, outcome)
	if err != nil {
		return nil, nil, err
	}
	return s.forest.Score(ctx, p, cfg)
}

// Stability ranks factors by descending stability selection frequency.
func (s *FeatureScoringService) Stability(ctx context.Context, results experiment.Results, outcome experiment.OutcomeSpec, cfg scoring.StabilityConfig) (experiment.Ranking, error) {
	res, err := s.StabilityPath(ctx, results, outcome, cfg)
	if err != nil {
		return nil, err
	}
	return res.Ranking, nil
}

// StabilityPath is Stability with the per-penalty selection frequencies.
func (s *FeatureScoringService) StabilityPath(ctx context.Context, results experiment.Results, outcome experiment.OutcomeSpec, cfg scoring.StabilityConfig) (*scoring.StabilityResult, error) {
	p, err := s.prepare(ctx, results, outcome)
	if err != nil {
		return nil, err
	}
	return s.stability.Path(ctx, p, cfg)
}

func (s *FeatureScoringService) prepare(ctx context.Context, results experiment.Results, outcome experiment.OutcomeSpec) (*scoring.Problem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := scoring.NewProblem(results, outcome)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("%d runs x %d factors, outcome %s, %s mode", results.Design.Runs(), len(p.Factors), outcome, p.Mode)
	return p, nil
}

// ReportRequest selects a strategy and carries the settings of all of them;
// only the chosen strategy's settings are used.
type ReportRequest struct {
	Strategy  Strategy
	Results   experiment.Results
	Outcome   experiment.OutcomeSpec
	ScoreFunc string
	Forest    scoring.ForestConfig
	Stability scoring.StabilityConfig
}

// ScoreReport is the rendered result of one scoring run.
type ScoreReport struct {
	RunID     string             `json:"run_id"`
	Strategy  Strategy           `json:"strategy"`
	Outcome   string             `json:"outcome"`
	Mode      string             `json:"mode"`
	Direction string             `json:"direction"`
	Ranking   experiment.Ranking `json:"ranking"`
	OOBScore  *float64           `json:"oob_score,omitempty"`
	Alphas    []float64          `json:"alphas,omitempty"`
	RuntimeMs int64              `json:"runtime_ms"`
	CreatedAt time.Time          `json:"created_at"`
}

// Report runs the requested strategy and wraps the ranking with run
// metadata.
func (s *FeatureScoringService) Report(ctx context.Context, req ReportRequest) (*ScoreReport, error) {
	start := time.Now()
	report := &ScoreReport{
		RunID:     uuid.New().String(),
		Strategy:  req.Strategy,
		Outcome:   req.Outcome.String(),
		Direction: "descending",
		CreatedAt: start.UTC(),
	}

	p, err := s.prepare(ctx, req.Results, req.Outcome)
	if err != nil {
		return nil, err
	}
	report.Mode = p.Mode.String()

	switch req.Strategy {
	case StrategyUnivariate:
		report.Direction = "ascending"
		report.Ranking, err = s.univariate.Score(p, req.ScoreFunc)
	case StrategyForest:
		var model ports.ForestModel
		report.Ranking, model, err = s.forest.Score(ctx, p, req.Forest)
		if err == nil {
			if oob, ok := model.OOBScore(); ok {
				report.OOBScore = &oob
			}
		}
	case StrategyStability:
		var res *scoring.StabilityResult
		res, err = s.stability.Path(ctx, p, req.Stability)
		if err == nil {
			report.Ranking, report.Alphas = res.Ranking, res.Alphas
		}
	default:
		return nil, apperrors.InvalidArgumentf("unknown strategy %q", req.Strategy)
	}
	if err != nil {
		s.logger.Warn("run %s (%s) failed: %v", report.RunID, req.Strategy, err)
		return nil, err
	}

	report.RuntimeMs = time.Since(start).Milliseconds()
	s.logger.Info("run %s: %s over %d factors in %dms", report.RunID, req.Strategy, len(report.Ranking), report.RuntimeMs)
	return report, nil
}

// String renders the report as an aligned text table.
func (r *ScoreReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s scores for %s (%s, %s)\n", r.Strategy, r.Outcome, r.Mode, r.Direction)
	width := len("factor")
	for _, fs := range r.Ranking {
		if len(fs.Factor) > width {
			width = len(fs.Factor)
		}
	}
	fmt.Fprintf(&b, "%-4s %-*s %s\n", "rank", width, "factor", "score")
	for i, fs := range r.Ranking {
		fmt.Fprintf(&b, "%-4d %-*s %.6g\n", i+1, width, fs.Factor, fs.Score)
	}
	if r.OOBScore != nil {
		fmt.Fprintf(&b, "oob score: %.4f\n", *r.OOBScore)
	}
	return b.String()
}
