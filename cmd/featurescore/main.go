package main

import (
	"fmt"
	"os"

	"gofactor/internal"
	"gofactor/internal/config"

	"github.com/spf13/cobra"
)

// cli carries what every subcommand needs once the root has loaded it.
type cli struct {
	profile string
	envFile string
	level   string

	config *config.Config
	logger *internal.Logger
}

func main() {
	c := &cli{}
	rootCmd := &cobra.Command{
		Use:   "featurescore",
		Short: "Rank the uncertain factors of an experiment by their influence on an outcome",
		Long: `featurescore ranks the factors of an experiment design by how much they
influence an outcome, using univariate tests, random forest importances or
randomized-lasso stability selection.

Experiments are read from xlsx or csv files with one column per factor or
outcome and one row per run.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	rootCmd.PersistentFlags().StringVar(&c.profile, "config", "", "YAML profile (defaults to $FEATURESCORE_PROFILE)")
	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "Environment file loaded before configuration")
	rootCmd.PersistentFlags().StringVar(&c.level, "log-level", "", "Log level: quiet|error|warn|info|debug")

	rootCmd.AddCommand(
		newUnivariateCmd(c),
		newForestCmd(c),
		newStabilityCmd(c),
		newServeCmd(c),
		newGenerateCmd(c),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(c.envFile); err != nil {
		return err
	}

	var err error
	if c.profile != "" {
		c.config, err = config.LoadProfile(c.profile)
	} else {
		c.config, err = config.Load()
	}
	if err != nil {
		return err
	}

	level := c.config.Logging.Level
	if c.level != "" {
		level = c.level
	}
	c.logger = internal.NewLogger(internal.ParseLevel(level), os.Stderr)
	c.logger.Debug("configuration loaded for %s", cmd.Name())
	return nil
}
