package scoring

import (
	"errors"

	"gofactor/domain/experiment"
	apperrors "gofactor/internal/errors"
)

// ResolveOutcome turns an outcome specification into a target vector and
// the scoring mode. A name selects an existing outcome and scores in
// continuous mode; a derivation scores in categorical mode. Lengths are not
// checked here.
func ResolveOutcome(outcomes experiment.Outcomes, spec experiment.OutcomeSpec) ([]float64, experiment.Mode, error) {
	if name, ok := spec.Name(); ok {
		values, found := outcomes[name]
		if !found {
			return nil, experiment.ModeContinuous, apperrors.KeyNotFound(name)
		}
		return append([]float64(nil), values...), experiment.ModeContinuous, nil
	}
	if derive, ok := spec.Derivation(); ok {
		y, err := derive(outcomes)
		if err != nil {
			code := apperrors.CodeInvalidArgument
			switch {
			case errors.Is(err, experiment.ErrOutcomeNotFound):
				code = apperrors.CodeKeyNotFound
			case apperrors.IsAppError(err):
				code = apperrors.GetCode(err)
			}
			return nil, experiment.ModeCategorical, &apperrors.AppError{
				Code:    code,
				Message: "outcome derivation failed",
				Cause:   err,
			}
		}
		return append([]float64(nil), y...), experiment.ModeCategorical, nil
	}
	return nil, experiment.ModeContinuous, apperrors.InvalidArgument("outcome must be a name or a derivation function")
}

// ResolveAny is ResolveOutcome for loosely typed specifications such as a
// bare string or function.
func ResolveAny(outcomes experiment.Outcomes, v any) ([]float64, experiment.Mode, error) {
	spec, ok := experiment.FromAny(v)
	if !ok {
		return nil, experiment.ModeContinuous, apperrors.InvalidArgumentf("unsupported outcome specification of type %T", v)
	}
	return ResolveOutcome(outcomes, spec)
}
