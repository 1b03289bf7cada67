package experiment

import (
	"errors"
	"fmt"
)

// Mode is the scoring regime resolved from an outcome specification.
type Mode int

const (
	// ModeContinuous scores against a regression-style target.
	ModeContinuous Mode = iota
	// ModeCategorical scores against class labels.
	ModeCategorical
)

func (m Mode) String() string {
	switch m {
	case ModeContinuous:
		return "continuous"
	case ModeCategorical:
		return "categorical"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// DeriveFunc computes a target vector from the full outcome mapping,
// typically assigning a class per run in the manner of PRIM.
type DeriveFunc func(Outcomes) ([]float64, error)

type specKind int

const (
	specNone specKind = iota
	specByName
	specByDerivation
)

// OutcomeSpec selects the scoring target. It is either a name of an
// existing outcome (continuous mode) or a derivation function
// (categorical mode). The zero value is neither.
type OutcomeSpec struct {
	kind   specKind
	name   string
	derive DeriveFunc
}

// ByName selects an existing outcome as a continuous target.
func ByName(name string) OutcomeSpec {
	return OutcomeSpec{kind: specByName, name: name}
}

// ByDerivation derives a categorical target from the outcomes.
func ByDerivation(fn DeriveFunc) OutcomeSpec {
	if fn == nil {
		return OutcomeSpec{}
	}
	return OutcomeSpec{kind: specByDerivation, derive: fn}
}

// FromAny converts a loosely typed value into an OutcomeSpec. Strings
// become ByName, derivation functions become ByDerivation. ok is false
// for any other type.
func FromAny(v any) (spec OutcomeSpec, ok bool) {
	switch t := v.(type) {
	case OutcomeSpec:
		return t, t.kind != specNone
	case string:
		return ByName(t), true
	case DeriveFunc:
		return ByDerivation(t), t != nil
	case func(Outcomes) ([]float64, error):
		return ByDerivation(t), t != nil
	case func(Outcomes) []float64:
		if t == nil {
			return OutcomeSpec{}, false
		}
		return ByDerivation(func(o Outcomes) ([]float64, error) { return t(o), nil }), true
	default:
		return OutcomeSpec{}, false
	}
}

// Name returns the outcome name for ByName specs.
func (s OutcomeSpec) Name() (string, bool) {
	return s.name, s.kind == specByName
}

// Derivation returns the derivation function for ByDerivation specs.
func (s OutcomeSpec) Derivation() (DeriveFunc, bool) {
	return s.derive, s.kind == specByDerivation
}

// IsValid reports whether the spec is one of the two variants.
func (s OutcomeSpec) IsValid() bool {
	return s.kind != specNone
}

func (s OutcomeSpec) String() string {
	switch s.kind {
	case specByName:
		return fmt.Sprintf("name(%s)", s.name)
	case specByDerivation:
		return "derivation"
	default:
		return "invalid"
	}
}

// ErrOutcomeNotFound is wrapped by derivations that reference an outcome
// the mapping does not contain.
var ErrOutcomeNotFound = errors.New("outcome not found")

// Threshold returns a derivation that labels a run 1 when the named
// outcome exceeds threshold and 0 otherwise. A missing outcome is an error.
func Threshold(outcome string, threshold float64) DeriveFunc {
	return func(o Outcomes) ([]float64, error) {
		values, ok := o[outcome]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrOutcomeNotFound, outcome)
		}
		y := make([]float64, len(values))
		for i, v := range values {
			if v > threshold {
				y[i] = 1
			}
		}
		return y, nil
	}
}
