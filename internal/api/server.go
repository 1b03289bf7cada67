// Package api exposes feature scoring over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gofactor/app"
	"gofactor/internal"
	"gofactor/internal/scoring"

	"github.com/gin-gonic/gin"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Defaults fill the settings a request leaves out.
type Defaults struct {
	ScoreFunc string
	Forest    scoring.ForestConfig
	Stability scoring.StabilityConfig
}

// Server routes scoring requests to the feature scoring service.
type Server struct {
	router   *gin.Engine
	service  *app.FeatureScoringService
	defaults Defaults
	metrics  *Metrics
	logger   *internal.Logger
}

// NewServer creates the router with all routes registered.
func NewServer(service *app.FeatureScoringService, defaults Defaults, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.NewDefaultLogger()
	}
	s := &Server{
		router:   gin.New(),
		service:  service,
		defaults: defaults,
		metrics:  NewMetrics(),
		logger:   logger.With("API"),
	}
	s.router.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/v1")
	{
		v1.GET("/strategies", s.handleStrategies)
		v1.POST("/scores/:strategy", s.handleScore)
	}
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then drains in-flight
// requests for up to ten seconds.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
