package testkit

import (
	"fmt"
	"math/rand"
	"strconv"

	"gofactor/domain/experiment"
)

// Factor and outcome names produced by the experiment generator.
const (
	FactorSignal  = "signal"
	FactorPolicy  = "policy"
	OutcomeResult = "response"
	OutcomeCost   = "cost"
)

// PolicyLevels are the categorical levels of the policy factor, in the
// order their effect on the response increases.
var PolicyLevels = []string{"low", "mid", "high"}

// ExperimentGeneratorConfig configures the synthetic experiment generator
type ExperimentGeneratorConfig struct {
	Runs         int     `json:"runs"`
	NoiseFactors int     `json:"noise_factors"`
	SignalWeight float64 `json:"signal_weight"`
	PolicyWeight float64 `json:"policy_weight"`
	NoiseLevel   float64 `json:"noise_level"`
	Seed         int64   `json:"seed"`
}

// DefaultExperimentConfig returns a design where the signal factor
// dominates, the policy factor matters less and the noise factors not at all.
func DefaultExperimentConfig() ExperimentGeneratorConfig {
	return ExperimentGeneratorConfig{
		Runs:         200,
		NoiseFactors: 2,
		SignalWeight: 5,
		PolicyWeight: 1,
		NoiseLevel:   0.1,
		Seed:         42,
	}
}

// ExperimentGenerator generates seeded experiment designs and outcomes
type ExperimentGenerator struct {
	config ExperimentGeneratorConfig
	rng    *rand.Rand
}

// NewExperimentGenerator creates a new experiment generator
func NewExperimentGenerator(config ExperimentGeneratorConfig) *ExperimentGenerator {
	return &ExperimentGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// NoiseFactor returns the name of the i-th noise factor, counting from 1.
func NoiseFactor(i int) string {
	return fmt.Sprintf("noise_%d", i)
}

// Generate draws one experiment. The response is
// SignalWeight·signal + PolicyWeight·rank(policy)/2 + NoiseLevel·N(0,1);
// the cost outcome depends on the noise factors only.
func (g *ExperimentGenerator) Generate() experiment.Results {
	n := g.config.Runs
	signal := make([]any, n)
	policy := make([]any, n)
	noise := make([][]any, g.config.NoiseFactors)
	for k := range noise {
		noise[k] = make([]any, n)
	}
	response := make([]float64, n)
	cost := make([]float64, n)

	for i := 0; i < n; i++ {
		s := g.rng.Float64()
		level := g.rng.Intn(len(PolicyLevels))
		signal[i] = s
		policy[i] = PolicyLevels[level]
		c := 0.0
		for k := range noise {
			v := g.rng.Float64()
			noise[k][i] = v
			c += v
		}
		response[i] = g.config.SignalWeight*s + g.config.PolicyWeight*float64(level)/2 + g.config.NoiseLevel*g.rng.NormFloat64()
		cost[i] = c + 0.01*g.rng.NormFloat64()
	}

	columns := []experiment.Column{
		{Name: FactorSignal, Values: signal},
		{Name: FactorPolicy, Values: policy},
	}
	for k := range noise {
		columns = append(columns, experiment.Column{Name: NoiseFactor(k + 1), Values: noise[k]})
	}
	return experiment.Results{
		Design:   experiment.NewDesign(columns...),
		Outcomes: experiment.Outcomes{OutcomeResult: response, OutcomeCost: cost},
	}
}

// Table renders an experiment as a header row plus string rows, the layout
// the spreadsheet loader reads. Outcomes follow the factors in the order
// given.
func Table(results experiment.Results, outcomes ...string) [][]string {
	header := append(results.Design.Factors(), outcomes...)
	table := [][]string{header}
	for i := 0; i < results.Design.Runs(); i++ {
		row := make([]string, 0, len(header))
		for _, c := range results.Design.Columns {
			row = append(row, cell(c.Values[i]))
		}
		for _, name := range outcomes {
			row = append(row, strconv.FormatFloat(results.Outcomes[name][i], 'g', -1, 64))
		}
		table = append(table, row)
	}
	return table
}

// PermuteColumns returns a copy of the design with its columns in the
// given order of indices.
func PermuteColumns(design experiment.Design, order []int) experiment.Design {
	cols := make([]experiment.Column, len(order))
	for i, j := range order {
		cols[i] = design.Columns[j]
	}
	return experiment.NewDesign(cols...)
}

func cell(v any) string {
	if f, ok := v.(float64); ok {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return fmt.Sprint(v)
}
