package testkit

import (
	"testing"
)

func TestExperimentGenerator_Basic(t *testing.T) {
	config := DefaultExperimentConfig()
	config.Runs = 20

	results := NewExperimentGenerator(config).Generate()

	if err := results.Design.Validate(); err != nil {
		t.Fatalf("Generated design is invalid: %v", err)
	}
	if got := results.Design.Runs(); got != 20 {
		t.Errorf("Expected 20 runs, got %d", got)
	}
	want := []string{FactorSignal, FactorPolicy, NoiseFactor(1), NoiseFactor(2)}
	for i, name := range results.Design.Factors() {
		if name != want[i] {
			t.Errorf("Expected factor %d to be %s, got %s", i, want[i], name)
		}
	}
	if len(results.Outcomes[OutcomeResult]) != 20 || len(results.Outcomes[OutcomeCost]) != 20 {
		t.Error("Expected one outcome value per run")
	}
}

func TestExperimentGenerator_Deterministic(t *testing.T) {
	a := NewExperimentGenerator(DefaultExperimentConfig()).Generate()
	b := NewExperimentGenerator(DefaultExperimentConfig()).Generate()

	for i, v := range a.Outcomes[OutcomeResult] {
		if b.Outcomes[OutcomeResult][i] != v {
			t.Fatalf("Run %d differs between identical seeds", i)
		}
	}
}

func TestTable(t *testing.T) {
	config := DefaultExperimentConfig()
	config.Runs = 3
	results := NewExperimentGenerator(config).Generate()

	table := Table(results, OutcomeResult)

	if len(table) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d", len(table))
	}
	if table[0][len(table[0])-1] != OutcomeResult {
		t.Errorf("Expected outcome column last, got %v", table[0])
	}
	if table[1][1] != results.Design.Columns[1].Values[0] {
		t.Errorf("Expected policy cell %v, got %s", results.Design.Columns[1].Values[0], table[1][1])
	}
}

func TestPermuteColumns(t *testing.T) {
	results := NewExperimentGenerator(DefaultExperimentConfig()).Generate()

	permuted := PermuteColumns(results.Design, []int{3, 0, 2, 1})

	if permuted.Columns[0].Name != NoiseFactor(2) || permuted.Columns[3].Name != FactorPolicy {
		t.Errorf("Unexpected column order %v", permuted.Factors())
	}
}
