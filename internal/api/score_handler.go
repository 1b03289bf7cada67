package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"gofactor/app"
	apperrors "gofactor/internal/errors"
	"gofactor/internal/scoring"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Version: Version, Strategies: app.Strategies()})
}

func (s *Server) handleStrategies(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"strategies": app.Strategies()})
}

// handleScore runs one strategy over the posted experiment and returns
// the score report.
func (s *Server) handleScore(c *gin.Context) {
	start := time.Now()

	strategy, err := app.ParseStrategy(c.Param("strategy"))
	if err != nil {
		// Unknown names share one label to bound metric cardinality.
		s.fail(c, "unknown", start, err)
		return
	}
	label := string(strategy)

	req := ScoreRequest{Forest: s.defaultForest(), Stability: s.defaultStability()}
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, label, start, apperrors.InvalidArgumentf("invalid request body: %v", err))
		return
	}
	// An explicit null replaces the pointer; fall back to the defaults.
	if req.Forest == nil {
		req.Forest = s.defaultForest()
	}
	if req.Stability == nil {
		req.Stability = s.defaultStability()
	}
	if req.ScoreFunc == "" {
		req.ScoreFunc = s.defaults.ScoreFunc
	}

	outcome, err := req.outcomeSpec()
	if err != nil {
		s.fail(c, label, start, err)
		return
	}
	results, err := req.results()
	if err != nil {
		s.fail(c, label, start, err)
		return
	}

	report, err := s.service.Report(c.Request.Context(), app.ReportRequest{
		Strategy:  strategy,
		Results:   results,
		Outcome:   outcome,
		ScoreFunc: req.ScoreFunc,
		Forest:    *req.Forest,
		Stability: *req.Stability,
	})
	if err != nil {
		s.fail(c, label, start, err)
		return
	}

	s.metrics.observe(label, "ok", time.Since(start))
	s.metrics.factors.Observe(float64(len(report.Ranking)))
	c.JSON(http.StatusOK, report)
}

// defaultForest returns a copy of the forest defaults that a request body
// can be decoded into without reaching the server's own seed.
func (s *Server) defaultForest() *scoring.ForestConfig {
	forest := s.defaults.Forest
	forest.RandomState = copySeed(forest.RandomState)
	return &forest
}

func (s *Server) defaultStability() *scoring.StabilityConfig {
	stability := s.defaults.Stability
	stability.RandomState = copySeed(stability.RandomState)
	return &stability
}

func copySeed(seed *int64) *int64 {
	if seed == nil {
		return nil
	}
	v := *seed
	return &v
}

func (s *Server) fail(c *gin.Context, strategy string, start time.Time, err error) {
	status := statusFor(err)
	s.metrics.observe(strategy, strconv.Itoa(status), time.Since(start))
	if status >= http.StatusInternalServerError {
		s.logger.Error("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	} else {
		s.logger.Debug("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: apperrors.GetCode(err)})
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case apperrors.IsInvalidArgument(err):
		return http.StatusBadRequest
	case apperrors.IsKeyNotFound(err):
		return http.StatusNotFound
	case apperrors.IsComputationError(err):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
