package main

import (
	"encoding/json"
	"fmt"

	"gofactor/adapters/excel"
	"gofactor/app"
	"gofactor/domain/experiment"
	"gofactor/internal/errors"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// inputFlags locate the experiment and select the target.
type inputFlags struct {
	design         string
	outcomes       string
	outcome        string
	outcomeColumns []string
	ignore         []string
	sheet          string
	threshold      float64

	json    bool
	xlsxOut string
}

func (in *inputFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&in.design, "design", "", "xlsx or csv file with the design (and outcomes unless --outcomes is given)")
	flags.StringVar(&in.outcomes, "outcomes", "", "Separate xlsx or csv file with the outcomes")
	flags.StringVar(&in.outcome, "outcome", "", "Outcome to score against")
	flags.StringSliceVar(&in.outcomeColumns, "outcome-columns", nil, "Columns holding outcomes (defaults to the configured ones, else --outcome)")
	flags.StringSliceVar(&in.ignore, "ignore", nil, "Columns that are neither factors nor outcomes")
	flags.StringVar(&in.sheet, "sheet", "", "Worksheet to read from xlsx files")
	flags.Float64Var(&in.threshold, "classify-threshold", 0, "Classify runs by outcome > threshold instead of scoring the outcome itself")
	flags.BoolVar(&in.json, "json", false, "Print the report as JSON")
	flags.StringVar(&in.xlsxOut, "xlsx-out", "", "Also write the ranking to this xlsx file")
	_ = cobra.MarkFlagRequired(flags, "design")
	_ = cobra.MarkFlagRequired(flags, "outcome")
}

func (in *inputFlags) load(c *cli, flags *pflag.FlagSet) (experiment.Results, experiment.OutcomeSpec, error) {
	cfg := c.config.Loader
	if len(in.outcomeColumns) > 0 {
		cfg.Outcomes = in.outcomeColumns
	}
	if len(in.ignore) > 0 {
		cfg.Ignore = in.ignore
	}
	if in.sheet != "" {
		cfg.Sheet = in.sheet
	}
	if len(cfg.Outcomes) == 0 {
		cfg.Outcomes = []string{in.outcome}
	}
	loader := excel.NewLoader(cfg, c.logger)

	var (
		results experiment.Results
		err     error
	)
	if in.outcomes == "" {
		results, err = loader.LoadExperiment(in.design)
	} else {
		results.Design, err = loader.LoadDesign(in.design)
		if err == nil {
			results.Outcomes, err = loader.LoadOutcomes(in.outcomes)
		}
	}
	if err != nil {
		return experiment.Results{}, experiment.OutcomeSpec{}, err
	}

	spec := experiment.ByName(in.outcome)
	if flags.Changed("classify-threshold") {
		spec = experiment.ByDerivation(experiment.Threshold(in.outcome, in.threshold))
	}
	return results, spec, nil
}

func (in *inputFlags) emit(cmd *cobra.Command, report *app.ScoreReport) error {
	if in.json {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to encode report")
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		fmt.Fprint(cmd.OutOrStdout(), report.String())
	}
	if in.xlsxOut != "" {
		if err := excel.WriteRanking(in.xlsxOut, string(report.Strategy), report.Ranking); err != nil {
			return errors.Wrap(err, "failed to write ranking")
		}
	}
	return nil
}

func run(cmd *cobra.Command, c *cli, in *inputFlags, req app.ReportRequest) error {
	results, spec, err := in.load(c, cmd.Flags())
	if err != nil {
		return err
	}
	req.Results, req.Outcome = results, spec

	service := app.NewFeatureScoringService(app.WithLogger(c.logger))
	report, err := service.Report(cmd.Context(), req)
	if err != nil {
		return err
	}
	return in.emit(cmd, report)
}

func newUnivariateCmd(c *cli) *cobra.Command {
	in := &inputFlags{}
	var scoreFunc string

	cmd := &cobra.Command{
		Use:   "univariate",
		Short: "Rank factors by univariate test p-values (ascending)",
		Long: `Rank factors by the p-value of a univariate test against the outcome.

A named outcome is scored with f_regression; --score-func picks the test
(f_classification, chi2, f_regression) when --classify-threshold derives
classes.

Example: featurescore univariate --design runs.xlsx --outcome profit --classify-threshold 0 --score-func chi2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("score-func") {
				scoreFunc = c.config.Scoring.ScoreFunc
			}
			return run(cmd, c, in, app.ReportRequest{Strategy: app.StrategyUnivariate, ScoreFunc: scoreFunc})
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().StringVar(&scoreFunc, "score-func", "f_classification", "Univariate test for classified outcomes")
	return cmd
}

func newForestCmd(c *cli) *cobra.Command {
	in := &inputFlags{}
	var (
		trees, maxDepth, split, leaf, workers int
		criterion, maxFeatures                string
		noBootstrap, noOOB                    bool
		seed                                  int64
	)

	cmd := &cobra.Command{
		Use:   "forest",
		Short: "Rank factors by random forest importances (descending)",
		Long: `Rank factors by the impurity-based importances of a random forest. A named outcome grows regression trees (mse); classified outcomes
use --criterion.

Example: featurescore forest --design runs.xlsx --outcome profit --trees 500 --seed 42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Scoring.Forest
			flags := cmd.Flags()
			if flags.Changed("trees") {
				cfg.Trees = trees
			}
			if flags.Changed("criterion") {
				cfg.Criterion = criterion
			}
			if flags.Changed("max-features") {
				cfg.MaxFeatures = maxFeatures
			}
			if flags.Changed("max-depth") {
				cfg.MaxDepth = maxDepth
			}
			if flags.Changed("min-samples-split") {
				cfg.MinSamplesSplit = split
			}
			if flags.Changed("min-samples-leaf") {
				cfg.MinSamplesLeaf = leaf
			}
			if noBootstrap {
				cfg.Bootstrap = false
			}
			if noOOB {
				cfg.OOBScore = false
			}
			if flags.Changed("seed") {
				cfg.RandomState = &seed
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			return run(cmd, c, in, app.ReportRequest{Strategy: app.StrategyForest, Forest: cfg})
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().IntVar(&trees, "trees", 250, "Number of trees")
	cmd.Flags().StringVar(&criterion, "criterion", "gini", "Split criterion for classified outcomes: gini|entropy")
	cmd.Flags().StringVar(&maxFeatures, "max-features", "auto", "Features tried per split: auto|sqrt|log2|all, a count or a fraction")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "Maximum tree depth (0 grows until leaves are pure)")
	cmd.Flags().IntVar(&split, "min-samples-split", 2, "Minimum runs to split a node")
	cmd.Flags().IntVar(&leaf, "min-samples-leaf", 1, "Minimum runs in a leaf")
	cmd.Flags().BoolVar(&noBootstrap, "no-bootstrap", false, "Grow every tree on all runs")
	cmd.Flags().BoolVar(&noOOB, "no-oob", false, "Skip the out-of-bag score")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for a reproducible forest")
	cmd.Flags().IntVar(&workers, "workers", 0, "Trees grown in parallel (0 uses all CPUs)")
	return cmd
}

func newStabilityCmd(c *cli) *cobra.Command {
	in := &inputFlags{}
	var (
		scaling, fraction    float64
		resamplings, workers int
		seed                 int64
	)

	cmd := &cobra.Command{
		Use:   "stability",
		Short: "Rank factors by stability selection frequency (descending)",
		Long: `Rank factors by how often a randomized lasso (named outcomes) or randomized
L1 logistic regression (classified outcomes) selects them across random
subsamples of the runs.

Example: featurescore stability --design runs.csv --outcome profit --resamplings 500 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := c.config.Scoring.Stability
			flags := cmd.Flags()
			if flags.Changed("scaling") {
				cfg.Scaling = scaling
			}
			if flags.Changed("sample-fraction") {
				cfg.SampleFraction = fraction
			}
			if flags.Changed("resamplings") {
				cfg.Resamplings = resamplings
			}
			if flags.Changed("seed") {
				cfg.RandomState = &seed
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			return run(cmd, c, in, app.ReportRequest{Strategy: app.StrategyStability, Stability: cfg})
		},
	}

	in.register(cmd.Flags())
	cmd.Flags().Float64Var(&scaling, "scaling", 0.5, "Fraction by which a random half of the factors have their column weight reduced")
	cmd.Flags().Float64Var(&fraction, "sample-fraction", 0.75, "Fraction of runs in each subsample")
	cmd.Flags().IntVar(&resamplings, "resamplings", 200, "Number of subsamples")
	cmd.Flags().Int64Var(&seed, "seed", 0, "Random seed for reproducible subsamples")
	cmd.Flags().IntVar(&workers, "workers", 0, "Subsamples fitted in parallel (0 uses all CPUs)")
	return cmd
}
