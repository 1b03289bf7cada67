package api

import (
	"sort"

	"gofactor/app"
	"gofactor/domain/experiment"
	apperrors "gofactor/internal/errors"
	"gofactor/internal/scoring"
)

// ScoreRequest is the body of POST /v1/scores/:strategy. Exactly one of
// Outcome and Classify selects the target.
type ScoreRequest struct {
	Design      map[string][]any     `json:"design" binding:"required"`
	ColumnOrder []string             `json:"column_order"`
	Outcomes    map[string][]float64 `json:"outcomes" binding:"required"`
	Outcome     string               `json:"outcome"`
	Classify    *ClassifyRequest     `json:"classify"`
	ScoreFunc   string               `json:"score_func"`

	Forest    *scoring.ForestConfig    `json:"forest"`
	Stability *scoring.StabilityConfig `json:"stability"`
}

// ClassifyRequest derives a categorical target: runs whose outcome exceeds
// Threshold are class 1, the rest class 0.
type ClassifyRequest struct {
	Outcome   string  `json:"outcome" binding:"required"`
	Threshold float64 `json:"threshold"`
}

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status     string         `json:"status"`
	Version    string         `json:"version"`
	Strategies []app.Strategy `json:"strategies"`
}

func (r *ScoreRequest) outcomeSpec() (experiment.OutcomeSpec, error) {
	switch {
	case r.Outcome != "" && r.Classify != nil:
		return experiment.OutcomeSpec{}, apperrors.InvalidArgument("outcome and classify are mutually exclusive")
	case r.Outcome != "":
		return experiment.ByName(r.Outcome), nil
	case r.Classify != nil:
		return experiment.ByDerivation(experiment.Threshold(r.Classify.Outcome, r.Classify.Threshold)), nil
	default:
		return experiment.OutcomeSpec{}, apperrors.InvalidArgument("one of outcome or classify is required")
	}
}

// results builds the experiment. JSON objects are unordered, so without an
// explicit column order the factors are taken in name order.
func (r *ScoreRequest) results() (experiment.Results, error) {
	order := r.ColumnOrder
	if len(order) == 0 {
		order = make([]string, 0, len(r.Design))
		for name := range r.Design {
			order = append(order, name)
		}
		sort.Strings(order)
	} else if len(order) != len(r.Design) {
		return experiment.Results{}, apperrors.InvalidArgumentf("column_order names %d columns, design has %d", len(order), len(r.Design))
	}
	for _, name := range order {
		if _, ok := r.Design[name]; !ok {
			return experiment.Results{}, apperrors.InvalidArgumentf("column_order names unknown column %q", name)
		}
	}
	return experiment.Results{
		Design:   experiment.FromMap(r.Design, order),
		Outcomes: experiment.Outcomes(r.Outcomes),
	}, nil
}
