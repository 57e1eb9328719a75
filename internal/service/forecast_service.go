package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/poll-blend/internal/combiner"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/metrics"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/repository"
)

// credibleLevel is the mass of the interval returned with every forecast.
const credibleLevel = 0.95

// ForecastResponse is a posterior together with the run that produced it.
type ForecastResponse struct {
	models.ForecastResult
	RunID          uuid.UUID `json:"run_id"`
	Form           string    `json:"form"`
	IntervalLow    float64   `json:"interval_low"`
	IntervalHigh   float64   `json:"interval_high"`
	WinProbability float64   `json:"win_probability"`
}

// ForecastService answers live queries from stored fits.
type ForecastService struct {
	runs   repository.FitRunRepository
	cache  *ParameterCache
	logger *logrus.Entry
}

// NewForecastService creates a new forecast service
func NewForecastService(runs repository.FitRunRepository, cache *ParameterCache, log *logrus.Logger) *ForecastService {
	if log == nil {
		log = logger.Discard()
	}
	return &ForecastService{
		runs:   runs,
		cache:  cache,
		logger: log.WithField("component", "forecast"),
	}
}

// Forecast combines in with the parameters of run runID.
func (s *ForecastService) Forecast(ctx context.Context, runID uuid.UUID, in models.ForecastInput) (*ForecastResponse, error) {
	start := time.Now()
	run, err := s.run(ctx, runID)
	if err != nil {
		metrics.RecordForecast("error", time.Since(start).Seconds())
		return nil, err
	}
	return s.respond(run, in, start)
}

// ForecastActive combines in with the parameters of the active run.
func (s *ForecastService) ForecastActive(ctx context.Context, in models.ForecastInput) (*ForecastResponse, error) {
	start := time.Now()
	run, err := s.activeRun(ctx)
	if err != nil {
		metrics.RecordForecast("error", time.Since(start).Seconds())
		return nil, err
	}
	return s.respond(run, in, start)
}

// ForecastWith combines in with parameters the caller already holds, such
// as ones read from a parameter file.
func ForecastWith(params models.VarianceModelParameters, in models.ForecastInput) (*ForecastResponse, error) {
	start := time.Now()
	result, err := combiner.Combine(in, params)
	if err != nil {
		metrics.RecordForecast("invalid", time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordForecast("success", time.Since(start).Seconds())
	return newForecastResponse(uuid.Nil, params.Form, result), nil
}

func (s *ForecastService) respond(run models.FitRun, in models.ForecastInput, start time.Time) (*ForecastResponse, error) {
	// Samples are not persisted, so stored runs always forecast from the
	// point estimate.
	result, err := combiner.Combine(in, run.Parameters)
	if err != nil {
		metrics.RecordForecast("invalid", time.Since(start).Seconds())
		s.logger.WithError(err).WithFields(logrus.Fields{
			"run_id":           run.ID,
			"time_to_election": in.TimeToElection,
		}).Warn("Forecast rejected")
		return nil, err
	}
	metrics.RecordForecast("success", time.Since(start).Seconds())
	return newForecastResponse(run.ID, run.Parameters.Form, result), nil
}

func newForecastResponse(id uuid.UUID, form string, result models.ForecastResult) *ForecastResponse {
	low, high := result.Interval(credibleLevel)
	return &ForecastResponse{
		RunID:          id,
		Form:           form,
		ForecastResult: result,
		IntervalLow:    low,
		IntervalHigh:   high,
		WinProbability: result.ProbabilityAbove(0.5),
	}
}

func (s *ForecastService) run(ctx context.Context, id uuid.UUID) (models.FitRun, error) {
	if s.cache != nil {
		if run, ok := s.cache.Get(id); ok {
			return run, nil
		}
	}
	if s.runs == nil {
		return models.FitRun{}, fmt.Errorf("fit run %s: %w", id, models.ErrNotFound)
	}
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return models.FitRun{}, fmt.Errorf("failed to load fit run %s: %w", id, err)
	}
	if s.cache != nil {
		s.cache.Set(*run)
	}
	return *run, nil
}

func (s *ForecastService) activeRun(ctx context.Context) (models.FitRun, error) {
	if s.cache != nil {
		if run, ok := s.cache.GetActive(); ok {
			return run, nil
		}
	}
	if s.runs == nil {
		return models.FitRun{}, fmt.Errorf("active fit run: %w", models.ErrNotFound)
	}
	run, err := s.runs.GetActive(ctx)
	if err != nil {
		return models.FitRun{}, fmt.Errorf("failed to load active fit run: %w", err)
	}
	if s.cache != nil {
		s.cache.SetActive(*run)
	}
	return *run, nil
}
