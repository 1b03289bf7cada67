package scoring

import (
	"context"
	"errors"
	"time"

	"gofactor/adapters/stats/univariate"
	"gofactor/domain/experiment"
	"gofactor/internal"
	apperrors "gofactor/internal/errors"
	"gofactor/ports"
)

// DefaultScoreFunc is used when no score function is requested.
const DefaultScoreFunc = univariate.NameFClassification

// TestFactory resolves a score function name to a test.
type TestFactory func(name string) (ports.UnivariateTest, bool)

// UnivariateScorer ranks factors by the p-value of a column-wise test.
type UnivariateScorer struct {
	tests  TestFactory
	logger *internal.Logger
}

// NewUnivariateScorer creates a scorer over the built-in tests. A nil
// logger logs to stderr at the LOG_LEVEL level.
func NewUnivariateScorer(logger *internal.Logger) *UnivariateScorer {
	return NewUnivariateScorerWithTests(univariate.ByName, logger)
}

// NewUnivariateScorerWithTests creates a scorer over a custom test factory
func NewUnivariateScorerWithTests(tests TestFactory, logger *internal.Logger) *UnivariateScorer {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	return &UnivariateScorer{tests: tests, logger: logger.With("UnivariateScorer")}
}

// Score returns the factors ordered by ascending p-value.
func (s *UnivariateScorer) Score(p *Problem, scoreFunc string) (experiment.Ranking, error) {
	results, _, err := s.Statistics(p, scoreFunc)
	if err != nil {
		return nil, err
	}
	pvalues := make([]float64, len(results))
	for i, r := range results {
		pvalues[i] = r.PValue
	}
	scores, err := p.scores(pvalues)
	if err != nil {
		return nil, err
	}
	return Rank(scores, false), nil
}

// Statistics runs the test selected for the problem's mode and returns the
// per-factor results in factor order along with the name of the test that
// actually ran. In continuous mode the regression F test always runs.
func (s *UnivariateScorer) Statistics(p *Problem, scoreFunc string) ([]ports.TestResult, string, error) {
	name := s.resolveTest(p.Mode, scoreFunc)
	test, ok := s.tests(name)
	if !ok {
		return nil, "", apperrors.InvalidArgumentf("unknown score function %q, expected one of %v", name, univariate.Names())
	}
	if err := p.check(); err != nil {
		return nil, "", err
	}

	start := time.Now()
	results, err := test.Evaluate(p.X, p.Y)
	if err != nil {
		return nil, "", engineError(test.Name()+" test failed", err)
	}
	if len(results) != len(p.Factors) {
		return nil, "", apperrors.ComputationError("test returned the wrong number of results", nil)
	}
	s.logger.Info("%s over %d factors in %v", test.Name(), len(results), time.Since(start))
	return results, test.Name(), nil
}

// resolveTest applies the mode override. It never rejects a request; an
// unknown name only fails in categorical mode, where it is actually used.
func (s *UnivariateScorer) resolveTest(mode experiment.Mode, requested string) string {
	if mode == experiment.ModeContinuous {
		if requested != "" && requested != univariate.NameFRegression {
			s.logger.Debug("continuous outcome, using %s instead of %s", univariate.NameFRegression, requested)
		}
		return univariate.NameFRegression
	}
	if requested == "" {
		return DefaultScoreFunc
	}
	return requested
}

// engineError classifies an engine failure. Settings the engine rejects
// are invalid arguments; everything else is a computation error.
func engineError(message string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, ports.ErrInvalidParams) {
		return &apperrors.AppError{Code: apperrors.CodeInvalidArgument, Message: message, Cause: err}
	}
	return apperrors.ComputationError(message, err)
}
