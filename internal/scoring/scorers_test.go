package scoring

import (
	"context"
	"math"
	"testing"

	"gofactor/adapters/stats/univariate"
	"gofactor/domain/experiment"
	"gofactor/internal"
	apperrors "gofactor/internal/errors"
	"gofactor/internal/testkit"
	"gofactor/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func generated(t *testing.T, runs int) experiment.Results {
	t.Helper()
	config := testkit.DefaultExperimentConfig()
	config.Runs = runs
	return testkit.NewExperimentGenerator(config).Generate()
}

func problem(t *testing.T, results experiment.Results, spec experiment.OutcomeSpec) *Problem {
	t.Helper()
	p, err := NewProblem(results, spec)
	require.NoError(t, err)
	return p
}

func classify() experiment.OutcomeSpec {
	return experiment.ByDerivation(experiment.Threshold(testkit.OutcomeResult, 3))
}

func seedPtr(v int64) *int64 { return &v }

func quiet() *internal.Logger { return internal.Discard() }

func TestNewProblem_Errors(t *testing.T) {
	results := generated(t, 10)

	_, err := NewProblem(results, experiment.ByName("missing_key"))
	assert.True(t, apperrors.IsKeyNotFound(err))

	dup := results
	dup.Design = experiment.NewDesign(results.Design.Columns[0], results.Design.Columns[0])
	_, err = NewProblem(dup, experiment.ByName(testkit.OutcomeResult))
	assert.True(t, apperrors.IsInvalidArgument(err), "expected InvalidArgument, got %v", err)
}

func TestUnivariateScorer_ContinuousOverridesRequestedTest(t *testing.T) {
	p := problem(t, generated(t, 60), experiment.ByName(testkit.OutcomeResult))
	scorer := NewUnivariateScorer(quiet())

	results, name, err := scorer.Statistics(p, univariate.NameChi2)
	require.NoError(t, err)
	assert.Equal(t, univariate.NameFRegression, name)

	want, err := univariate.NewFRegression().Evaluate(p.X, p.Y)
	require.NoError(t, err)
	for j := range want {
		assert.InDelta(t, want[j].Statistic, results[j].Statistic, 1e-9)
		assert.InDelta(t, want[j].PValue, results[j].PValue, 1e-12)
	}

	// unknown names are never rejected in continuous mode
	_, name, err = scorer.Statistics(p, "no_such_test")
	require.NoError(t, err)
	assert.Equal(t, univariate.NameFRegression, name)
}

func TestUnivariateScorer_RanksAscendingByPValue(t *testing.T) {
	p := problem(t, generated(t, 120), experiment.ByName(testkit.OutcomeResult))

	ranking, err := NewUnivariateScorer(quiet()).Score(p, "")
	require.NoError(t, err)

	require.Len(t, ranking, 4)
	assert.Equal(t, testkit.FactorSignal, ranking[0].Factor)
	for i := 1; i < len(ranking); i++ {
		assert.LessOrEqual(t, ranking[i-1].Score, ranking[i].Score)
	}
}

func TestUnivariateScorer_Categorical(t *testing.T) {
	p := problem(t, generated(t, 120), classify())
	scorer := NewUnivariateScorer(quiet())

	for _, name := range []string{"", univariate.NameFClassification, univariate.NameChi2} {
		_, used, err := scorer.Statistics(p, name)
		require.NoError(t, err, name)
		if name == "" {
			assert.Equal(t, DefaultScoreFunc, used)
		} else {
			assert.Equal(t, name, used)
		}
	}

	ranking, err := scorer.Score(p, univariate.NameFClassification)
	require.NoError(t, err)
	assert.Equal(t, testkit.FactorSignal, ranking[0].Factor)

	_, err = scorer.Score(p, "no_such_test")
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestUnivariateScorer_DegenerateColumnIsComputationError(t *testing.T) {
	results := experiment.Results{
		Design: experiment.NewDesign(
			experiment.Column{Name: "flat", Values: []any{1, 1, 1, 1}},
			experiment.Column{Name: "x", Values: []any{1, 2, 3, 4}},
		),
		Outcomes: experiment.Outcomes{"y": {1, 3, 2, 5}},
	}
	p := problem(t, results, experiment.ByName("y"))

	_, err := NewUnivariateScorer(quiet()).Score(p, "")
	assert.True(t, apperrors.IsComputationError(err), "expected ComputationError, got %v", err)
}

func TestScorers_LengthMismatchIsComputationError(t *testing.T) {
	results := generated(t, 20)
	results.Outcomes["short"] = []float64{1, 2, 3}
	p := problem(t, results, experiment.ByName("short"))

	_, err := NewUnivariateScorer(quiet()).Score(p, "")
	assert.True(t, apperrors.IsComputationError(err))

	_, _, err = NewForestScorer(nil, quiet()).Score(context.Background(), p, DefaultForestConfig())
	assert.True(t, apperrors.IsComputationError(err))

	_, err = NewStabilityScorer(nil, nil, quiet()).Score(context.Background(), p, DefaultStabilityConfig())
	assert.True(t, apperrors.IsComputationError(err))
}

func smallForest(seed int64) ForestConfig {
	cfg := DefaultForestConfig()
	cfg.Trees = 40
	cfg.RandomState = seedPtr(seed)
	return cfg
}

func TestForestScorer_ContinuousImportances(t *testing.T) {
	p := problem(t, generated(t, 150), experiment.ByName(testkit.OutcomeResult))
	cfg := smallForest(1)
	// overridden to squared error in continuous mode, never rejected
	cfg.Criterion = "entropy"

	ranking, model, err := NewForestScorer(nil, quiet()).Score(context.Background(), p, cfg)
	require.NoError(t, err)
	require.NotNil(t, model)

	sum := 0.0
	for i, fs := range ranking {
		sum += fs.Score
		if i > 0 {
			assert.GreaterOrEqual(t, ranking[i-1].Score, fs.Score)
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Equal(t, testkit.FactorSignal, ranking[0].Factor)
	assert.Equal(t, 40, model.NumTrees())

	oob, ok := model.OOBScore()
	assert.True(t, ok)
	assert.Greater(t, oob, 0.5)
}

func TestForestScorer_Categorical(t *testing.T) {
	p := problem(t, generated(t, 150), classify())

	ranking, _, err := NewForestScorer(nil, quiet()).Score(context.Background(), p, smallForest(2))
	require.NoError(t, err)
	assert.Equal(t, testkit.FactorSignal, ranking[0].Factor)
}

func TestForestScorer_SeededDeterminismAndPermutation(t *testing.T) {
	results := generated(t, 80)
	scorer := NewForestScorer(nil, quiet())

	first, _, err := scorer.Score(context.Background(), problem(t, results, experiment.ByName(testkit.OutcomeResult)), smallForest(7))
	require.NoError(t, err)
	second, _, err := scorer.Score(context.Background(), problem(t, results, experiment.ByName(testkit.OutcomeResult)), smallForest(7))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	permuted := results
	permuted.Design = testkit.PermuteColumns(results.Design, []int{2, 3, 1, 0})
	third, _, err := scorer.Score(context.Background(), problem(t, permuted, experiment.ByName(testkit.OutcomeResult)), smallForest(7))
	require.NoError(t, err)
	assert.Equal(t, first.AsMap(), third.AsMap())

	other, _, err := scorer.Score(context.Background(), problem(t, results, experiment.ByName(testkit.OutcomeResult)), smallForest(8))
	require.NoError(t, err)
	assert.ElementsMatch(t, first.Names(), other.Names())
}

func TestForestScorer_Errors(t *testing.T) {
	scorer := NewForestScorer(nil, quiet())
	p := problem(t, generated(t, 30), experiment.ByName(testkit.OutcomeResult))

	bad := smallForest(1)
	bad.Trees = 0
	_, _, err := scorer.Score(context.Background(), p, bad)
	assert.True(t, apperrors.IsInvalidArgument(err))

	badFeatures := smallForest(1)
	badFeatures.MaxFeatures = "plenty"
	_, _, err = scorer.Score(context.Background(), p, badFeatures)
	assert.True(t, apperrors.IsInvalidArgument(err), "expected InvalidArgument, got %v", err)

	tooBig := smallForest(1)
	tooBig.MinSamplesSplit = 100
	_, _, err = scorer.Score(context.Background(), p, tooBig)
	assert.True(t, apperrors.IsComputationError(err), "expected ComputationError, got %v", err)

	nan := generated(t, 30)
	nan.Outcomes[testkit.OutcomeResult][3] = math.NaN()
	_, _, err = scorer.Score(context.Background(), problem(t, nan, experiment.ByName(testkit.OutcomeResult)), smallForest(1))
	assert.True(t, apperrors.IsComputationError(err))
}

func smallStability(seed int64) StabilityConfig {
	cfg := DefaultStabilityConfig()
	cfg.Resamplings = 30
	cfg.RandomState = seedPtr(seed)
	return cfg
}

func TestStabilityScorer_ContinuousUsesCalibratedGrid(t *testing.T) {
	p := problem(t, generated(t, 100), experiment.ByName(testkit.OutcomeResult))

	res, err := NewStabilityScorer(nil, nil, quiet()).Path(context.Background(), p, smallStability(3))
	require.NoError(t, err)

	require.Len(t, res.Alphas, AlphaGridSize)
	assert.InDelta(t, AlphaGridRatio*res.Alphas[0], res.Alphas[AlphaGridSize-1], 1e-12)
	for i := 1; i < len(res.Alphas); i++ {
		assert.Less(t, res.Alphas[i], res.Alphas[i-1])
	}
	require.Len(t, res.Frequencies, AlphaGridSize)

	assert.Equal(t, testkit.FactorSignal, res.Ranking[0].Factor)
	assert.GreaterOrEqual(t, res.Ranking[0].Score, 0.9)
	for _, fs := range res.Ranking {
		assert.True(t, fs.Score >= 0 && fs.Score <= 1)
	}
}

func TestStabilityScorer_Categorical(t *testing.T) {
	p := problem(t, generated(t, 150), classify())

	res, err := NewStabilityScorer(nil, nil, quiet()).Path(context.Background(), p, smallStability(4))
	require.NoError(t, err)

	assert.Empty(t, res.Alphas)
	assert.Len(t, res.Frequencies, 1)
	assert.Equal(t, testkit.FactorSignal, res.Ranking[0].Factor)
}

func TestStabilityScorer_SeededDeterminismAndPermutation(t *testing.T) {
	results := generated(t, 60)
	scorer := NewStabilityScorer(nil, nil, quiet())
	spec := experiment.ByName(testkit.OutcomeResult)

	first, err := scorer.Score(context.Background(), problem(t, results, spec), smallStability(9))
	require.NoError(t, err)
	second, err := scorer.Score(context.Background(), problem(t, results, spec), smallStability(9))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	permuted := results
	permuted.Design = testkit.PermuteColumns(results.Design, []int{3, 1, 0, 2})
	third, err := scorer.Score(context.Background(), problem(t, permuted, spec), smallStability(9))
	require.NoError(t, err)
	assert.Equal(t, first.AsMap(), third.AsMap())
}

type countingLearner struct{ calls int }

func (c *countingLearner) Fit(context.Context, mat.Matrix, []float64, ports.StabilityParams) (ports.StabilityModel, error) {
	c.calls++
	return nil, nil
}

func TestStabilityScorer_SingleRunFailsInCalibration(t *testing.T) {
	results := experiment.Results{
		Design:   experiment.NewDesign(experiment.Column{Name: "a", Values: []any{0.3}}),
		Outcomes: experiment.Outcomes{"y": {1.5}},
	}
	learner := &countingLearner{}

	_, err := NewStabilityScorer(nil, learner, quiet()).Score(context.Background(), problem(t, results, experiment.ByName("y")), DefaultStabilityConfig())

	assert.True(t, apperrors.IsComputationError(err), "expected ComputationError, got %v", err)
	assert.Zero(t, learner.calls, "no resampling may run after a failed calibration")
}

func TestStabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *StabilityConfig)
	}{
		{"zero scaling", func(c *StabilityConfig) { c.Scaling = 0 }},
		{"scaling above one", func(c *StabilityConfig) { c.Scaling = 1.01 }},
		{"NaN fraction", func(c *StabilityConfig) { c.SampleFraction = math.NaN() }},
		{"fraction above one", func(c *StabilityConfig) { c.SampleFraction = 2 }},
		{"no resamplings", func(c *StabilityConfig) { c.Resamplings = 0 }},
		{"negative workers", func(c *StabilityConfig) { c.Workers = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultStabilityConfig()
			tt.mutate(&cfg)
			assert.True(t, apperrors.IsInvalidArgument(cfg.Validate()))
		})
	}

	edge := DefaultStabilityConfig()
	edge.Scaling, edge.SampleFraction = 1, 1
	assert.NoError(t, edge.Validate())
}
