package scoring

import (
	"errors"
	"testing"

	"gofactor/domain/experiment"
	apperrors "gofactor/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOutcomes() experiment.Outcomes {
	return experiment.Outcomes{
		"Y":    {1, 5, 3},
		"cost": {0.5, 0.1, 0.9},
	}
}

func TestResolveOutcome_ByNameIsContinuous(t *testing.T) {
	outcomes := sampleOutcomes()

	y, mode, err := ResolveOutcome(outcomes, experiment.ByName("Y"))
	require.NoError(t, err)

	assert.Equal(t, experiment.ModeContinuous, mode)
	assert.Equal(t, []float64{1, 5, 3}, y)

	y[0] = 100
	assert.Equal(t, 1.0, outcomes["Y"][0], "resolved target must be a copy")
}

func TestResolveOutcome_ByDerivationIsCategorical(t *testing.T) {
	y, mode, err := ResolveOutcome(sampleOutcomes(), experiment.ByDerivation(experiment.Threshold("Y", 2)))
	require.NoError(t, err)

	assert.Equal(t, experiment.ModeCategorical, mode)
	assert.Equal(t, []float64{0, 1, 1}, y)
}

func TestResolveOutcome_DerivationReturningContinuousValuesIsStillCategorical(t *testing.T) {
	identity := func(o experiment.Outcomes) ([]float64, error) { return o["cost"], nil }

	_, mode, err := ResolveOutcome(sampleOutcomes(), experiment.ByDerivation(identity))
	require.NoError(t, err)
	assert.Equal(t, experiment.ModeCategorical, mode)
}

func TestResolveOutcome_Errors(t *testing.T) {
	_, _, err := ResolveOutcome(sampleOutcomes(), experiment.ByName("missing_key"))
	assert.True(t, apperrors.IsKeyNotFound(err), "expected KeyNotFound, got %v", err)

	_, _, err = ResolveOutcome(sampleOutcomes(), experiment.OutcomeSpec{})
	assert.True(t, apperrors.IsInvalidArgument(err), "expected InvalidArgument, got %v", err)

	cause := errors.New("boom")
	failing := func(experiment.Outcomes) ([]float64, error) { return nil, cause }
	_, _, err = ResolveOutcome(sampleOutcomes(), experiment.ByDerivation(failing))
	assert.True(t, apperrors.IsInvalidArgument(err))
	assert.ErrorIs(t, err, cause)
}

func TestResolveOutcome_DerivationKeepsMissingOutcomeCode(t *testing.T) {
	_, mode, err := ResolveOutcome(sampleOutcomes(), experiment.ByDerivation(experiment.Threshold("profit", 1)))
	assert.Equal(t, experiment.ModeCategorical, mode)
	assert.True(t, apperrors.IsKeyNotFound(err), "expected KeyNotFound, got %v", err)
	assert.False(t, apperrors.IsInvalidArgument(err))
	assert.ErrorIs(t, err, experiment.ErrOutcomeNotFound)

	coded := func(experiment.Outcomes) ([]float64, error) {
		return nil, apperrors.ComputationError("cannot derive", nil)
	}
	_, _, err = ResolveOutcome(sampleOutcomes(), experiment.ByDerivation(coded))
	assert.Equal(t, apperrors.CodeComputationError, apperrors.GetCode(err))
}

func TestResolveAny(t *testing.T) {
	_, mode, err := ResolveAny(sampleOutcomes(), "Y")
	require.NoError(t, err)
	assert.Equal(t, experiment.ModeContinuous, mode)

	_, mode, err = ResolveAny(sampleOutcomes(), func(o experiment.Outcomes) []float64 { return o["Y"] })
	require.NoError(t, err)
	assert.Equal(t, experiment.ModeCategorical, mode)

	_, _, err = ResolveAny(sampleOutcomes(), 42)
	assert.True(t, apperrors.IsInvalidArgument(err), "expected InvalidArgument, got %v", err)

	_, _, err = ResolveAny(sampleOutcomes(), "missing_key")
	assert.True(t, apperrors.IsKeyNotFound(err))
}
