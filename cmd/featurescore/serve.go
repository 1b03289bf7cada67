package main

import (
	"os"
	"os/signal"
	"syscall"

	"gofactor/app"
	"gofactor/internal/api"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve feature scoring over HTTP",
		Long: `Serve feature scoring over HTTP.

Routes:
  POST /v1/scores/:strategy  score a posted experiment
  GET  /v1/strategies        list strategies
  GET  /healthz              health check
  GET  /metrics              Prometheus metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = c.config.Server.Port
			}
			gin.SetMode(c.config.Server.GinMode)

			service := app.NewFeatureScoringService(app.WithLogger(c.logger))
			server := api.NewServer(service, api.Defaults{
				ScoreFunc: c.config.Scoring.ScoreFunc,
				Forest:    c.config.Scoring.Forest,
				Stability: c.config.Scoring.Stability,
			}, c.logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return server.Run(ctx, ":"+port)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "Port to listen on")
	return cmd
}
