package app

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"gofactor/domain/experiment"
	apperrors "gofactor/internal/errors"
	"gofactor/internal/scoring"
	"gofactor/internal/testkit"
	"gofactor/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// Mock implementations of the engine ports
type MockForestLearner struct {
	mock.Mock
}

func (m *MockForestLearner) Fit(ctx context.Context, X mat.Matrix, y []float64, params ports.ForestParams) (ports.ForestModel, error) {
	args := m.Called(ctx, X, y, params)
	model, _ := args.Get(0).(ports.ForestModel)
	return model, args.Error(1)
}

type MockForestModel struct {
	mock.Mock
}

func (m *MockForestModel) Importances() []float64 {
	return m.Called().Get(0).([]float64)
}

func (m *MockForestModel) OOBScore() (float64, bool) {
	args := m.Called()
	return args.Get(0).(float64), args.Bool(1)
}

func (m *MockForestModel) Predict(row []float64) float64 {
	return m.Called(row).Get(0).(float64)
}

func (m *MockForestModel) NumTrees() int {
	return m.Called().Int(0)
}

type MockPathCalibrator struct {
	mock.Mock
}

func (m *MockPathCalibrator) Calibrate(X mat.Matrix, y []float64, folds int) (float64, error) {
	args := m.Called(X, y, folds)
	return args.Get(0).(float64), args.Error(1)
}

type MockStabilityLearner struct {
	mock.Mock
}

func (m *MockStabilityLearner) Fit(ctx context.Context, X mat.Matrix, y []float64, params ports.StabilityParams) (ports.StabilityModel, error) {
	args := m.Called(ctx, X, y, params)
	model, _ := args.Get(0).(ports.StabilityModel)
	return model, args.Error(1)
}

type stubStabilityModel struct {
	scores []float64
	path   [][]float64
}

func (s stubStabilityModel) Scores() []float64 { return s.scores }
func (s stubStabilityModel) Path() [][]float64 { return s.path }

type MockUnivariateTest struct {
	mock.Mock
}

func (m *MockUnivariateTest) Name() string {
	return m.Called().String(0)
}

func (m *MockUnivariateTest) Evaluate(X mat.Matrix, y []float64) ([]ports.TestResult, error) {
	args := m.Called(X, y)
	results, _ := args.Get(0).([]ports.TestResult)
	return results, args.Error(1)
}

// abcResults has factors already in name order, so engine columns line up
// with design columns.
func abcResults() experiment.Results {
	return experiment.Results{
		Design: experiment.NewDesign(
			experiment.Column{Name: "a", Values: []any{0.1, 0.4, 0.3, 0.9, 0.5, 0.7}},
			experiment.Column{Name: "b", Values: []any{"x", "y", "x", "y", "z", "z"}},
			experiment.Column{Name: "c", Values: []any{3, 1, 2, 5, 4, 6}},
		),
		Outcomes: experiment.Outcomes{"Y": {1, 2, 3, 4, 5, 6}},
	}
}

func classifyY() experiment.OutcomeSpec {
	return experiment.ByDerivation(experiment.Threshold("Y", 3))
}

func TestFeatureScoringService_ForestContinuousForcesSquaredError(t *testing.T) {
	learner := new(MockForestLearner)
	model := new(MockForestModel)
	model.On("Importances").Return([]float64{0.2, 0.5, 0.3})
	model.On("OOBScore").Return(0.8, true)
	model.On("NumTrees").Return(10)
	learner.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(p ports.ForestParams) bool {
		return !p.Classification && p.Criterion == "mse" && p.Trees == 250 && p.Seed == 5
	})).Return(model, nil)

	svc := NewFeatureScoringService(Quiet(), WithForestLearner(learner))
	cfg := scoring.DefaultForestConfig()
	cfg.Criterion = "entropy"
	seed := int64(5)
	cfg.RandomState = &seed

	ranking, got, err := svc.Forest(context.Background(), abcResults(), experiment.ByName("Y"), cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "a"}, ranking.Names())
	assert.Same(t, model, got)
	learner.AssertExpectations(t)
}

func TestFeatureScoringService_ForestCategorical(t *testing.T) {
	learner := new(MockForestLearner)
	model := new(MockForestModel)
	model.On("Importances").Return([]float64{0.6, 0.1, 0.3})
	model.On("OOBScore").Return(0.0, false)
	model.On("NumTrees").Return(250)
	learner.On("Fit", mock.Anything, mock.Anything, []float64{0, 0, 0, 1, 1, 1}, mock.MatchedBy(func(p ports.ForestParams) bool {
		return p.Classification && p.Criterion == "gini"
	})).Return(model, nil)

	svc := NewFeatureScoringService(Quiet(), WithForestLearner(learner))

	ranking, _, err := svc.Forest(context.Background(), abcResults(), classifyY(), scoring.DefaultForestConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "b"}, ranking.Names())
	learner.AssertExpectations(t)
}

func TestFeatureScoringService_StabilityContinuousCalibratesGrid(t *testing.T) {
	calibrator := new(MockPathCalibrator)
	calibrator.On("Calibrate", mock.Anything, mock.Anything, 6).Return(2.0, nil)
	learner := new(MockStabilityLearner)
	learner.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(p ports.StabilityParams) bool {
		want := []float64{2, 1.64, 1.28, 0.92, 0.56, 0.2}
		if p.Penalty != ports.PenaltyLasso || len(p.Alphas) != len(want) {
			return false
		}
		for i := range want {
			if math.Abs(p.Alphas[i]-want[i]) > 1e-12 {
				return false
			}
		}
		return p.Scaling == 0.5 && p.SampleFraction == 0.75 && p.Resamplings == 200
	})).Return(stubStabilityModel{
		scores: []float64{0.9, 0.1, 0.4},
		path:   [][]float64{{0.9, 0.1, 0.4}},
	}, nil)

	svc := NewFeatureScoringService(Quiet(), WithStabilityEngines(calibrator, learner))

	res, err := svc.StabilityPath(context.Background(), abcResults(), experiment.ByName("Y"), scoring.DefaultStabilityConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "b"}, res.Ranking.Names())
	assert.Len(t, res.Alphas, 6)
	calibrator.AssertExpectations(t)
	learner.AssertExpectations(t)
}

func TestFeatureScoringService_StabilityCategoricalSkipsCalibration(t *testing.T) {
	calibrator := new(MockPathCalibrator)
	learner := new(MockStabilityLearner)
	learner.On("Fit", mock.Anything, mock.Anything, mock.Anything, mock.MatchedBy(func(p ports.StabilityParams) bool {
		return p.Penalty == ports.PenaltyLogistic && p.C == 1 && len(p.Alphas) == 0
	})).Return(stubStabilityModel{scores: []float64{1, 0, 0.5}, path: [][]float64{{1, 0, 0.5}}}, nil)

	svc := NewFeatureScoringService(Quiet(), WithStabilityEngines(calibrator, learner))

	ranking, err := svc.Stability(context.Background(), abcResults(), classifyY(), scoring.DefaultStabilityConfig())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "c", "b"}, ranking.Names())
	calibrator.AssertNotCalled(t, "Calibrate", mock.Anything, mock.Anything, mock.Anything)
}

func TestFeatureScoringService_CalibrationFailureAbortsBeforeResampling(t *testing.T) {
	calibrator := new(MockPathCalibrator)
	calibrator.On("Calibrate", mock.Anything, mock.Anything, 6).Return(0.0, errors.New("singular path"))
	learner := new(MockStabilityLearner)

	svc := NewFeatureScoringService(Quiet(), WithStabilityEngines(calibrator, learner))

	_, err := svc.Stability(context.Background(), abcResults(), experiment.ByName("Y"), scoring.DefaultStabilityConfig())
	assert.True(t, apperrors.IsComputationError(err))
	learner.AssertNotCalled(t, "Fit", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestFeatureScoringService_UnivariateUsesRequestedTestWhenCategorical(t *testing.T) {
	test := new(MockUnivariateTest)
	test.On("Name").Return("chi2")
	test.On("Evaluate", mock.Anything, mock.Anything).Return([]ports.TestResult{
		{Statistic: 1, PValue: 0.5},
		{Statistic: 9, PValue: 0.01},
		{Statistic: 3, PValue: 0.2},
	}, nil)
	var requested []string
	factory := func(name string) (ports.UnivariateTest, bool) {
		requested = append(requested, name)
		return test, true
	}

	svc := NewFeatureScoringService(Quiet(), WithTests(factory))

	ranking, err := svc.Univariate(context.Background(), abcResults(), classifyY(), "chi2")
	require.NoError(t, err)
	assert.Equal(t, experiment.Ranking{
		{Factor: "b", Score: 0.01},
		{Factor: "c", Score: 0.2},
		{Factor: "a", Score: 0.5},
	}, ranking)

	_, err = svc.Univariate(context.Background(), abcResults(), experiment.ByName("Y"), "chi2")
	require.NoError(t, err)
	assert.Equal(t, []string{"chi2", "f_regression"}, requested)
}

func TestFeatureScoringService_Errors(t *testing.T) {
	svc := NewFeatureScoringService(Quiet())

	_, err := svc.Univariate(context.Background(), abcResults(), experiment.ByName("missing_key"), "")
	assert.True(t, apperrors.IsKeyNotFound(err))

	spec, ok := experiment.FromAny(42)
	assert.False(t, ok)
	_, err = svc.Univariate(context.Background(), abcResults(), spec, "")
	assert.True(t, apperrors.IsInvalidArgument(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = svc.Forest(ctx, abcResults(), experiment.ByName("Y"), scoring.DefaultForestConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFeatureScoringService_Report(t *testing.T) {
	svc := NewFeatureScoringService(Quiet())
	config := testkit.DefaultExperimentConfig()
	config.Runs = 60
	results := testkit.NewExperimentGenerator(config).Generate()

	forestCfg := scoring.DefaultForestConfig()
	forestCfg.Trees = 20
	seed := int64(1)
	forestCfg.RandomState = &seed

	report, err := svc.Report(context.Background(), ReportRequest{
		Strategy: StrategyForest,
		Results:  results,
		Outcome:  experiment.ByName(testkit.OutcomeResult),
		Forest:   forestCfg,
	})
	require.NoError(t, err)

	_, err = uuid.Parse(report.RunID)
	assert.NoError(t, err)
	assert.Equal(t, "continuous", report.Mode)
	assert.Equal(t, "descending", report.Direction)
	assert.NotNil(t, report.OOBScore)
	assert.Len(t, report.Ranking, 4)
	assert.True(t, strings.Contains(report.String(), testkit.FactorSignal))

	univariate, err := svc.Report(context.Background(), ReportRequest{
		Strategy: StrategyUnivariate,
		Results:  results,
		Outcome:  experiment.ByName(testkit.OutcomeResult),
	})
	require.NoError(t, err)
	assert.Equal(t, "ascending", univariate.Direction)
	assert.NotEqual(t, report.RunID, univariate.RunID)

	_, err = svc.Report(context.Background(), ReportRequest{Strategy: "prim", Results: results, Outcome: experiment.ByName(testkit.OutcomeResult)})
	assert.True(t, apperrors.IsInvalidArgument(err))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Forest ")
	require.NoError(t, err)
	assert.Equal(t, StrategyForest, s)

	_, err = ParseStrategy("prim")
	assert.True(t, apperrors.IsInvalidArgument(err))
}
