package main

import (
	"fmt"

	"gofactor/adapters/excel"
	"gofactor/internal/testkit"

	"github.com/spf13/cobra"
)

func newGenerateCmd(c *cli) *cobra.Command {
	config := testkit.DefaultExperimentConfig()
	var out string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a synthetic experiment with a known signal",
		Long: `Write a synthetic experiment to an xlsx file. The response outcome is driven
by the signal factor, less so by the policy factor and not at all by the
noise factors; the cost outcome depends on the noise factors only.

Example: featurescore generate --out demo.xlsx --runs 500 && featurescore forest --design demo.xlsx --outcome response --outcome-columns response,cost`,
		RunE: func(cmd *cobra.Command, args []string) error {
			results := testkit.NewExperimentGenerator(config).Generate()
			rows := testkit.Table(results, testkit.OutcomeResult, testkit.OutcomeCost)
			if err := excel.WriteTable(out, c.config.Loader.Sheet, rows); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d runs x %d factors to %s\n", results.Design.Runs(), len(results.Design.Columns), out)
			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "experiment.xlsx", "Output xlsx file")
	cmd.Flags().IntVar(&config.Runs, "runs", config.Runs, "Number of runs")
	cmd.Flags().IntVar(&config.NoiseFactors, "noise-factors", config.NoiseFactors, "Number of noise factors")
	cmd.Flags().Float64Var(&config.NoiseLevel, "noise", config.NoiseLevel, "Standard deviation of the response noise")
	cmd.Flags().Int64Var(&config.Seed, "seed", config.Seed, "Random seed")
	return cmd
}
