// Package service wires the estimator, the combiner and persistence into
// the operations the CLI, the scheduler and the HTTP server call.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/poll-blend/internal/corpus"
	"github.com/yourusername/poll-blend/internal/estimator"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/metrics"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/repository"
)

// ErrJobRunning is returned by FitJob.Result before the job has finished.
var ErrJobRunning = errors.New("fit job still running")

// FitOutcome is a completed fit and, when persistence is configured, the
// stored run.
type FitOutcome struct {
	Result models.FitResult
	Run    *models.FitRun
}

// FitService runs the estimator and persists the result
type FitService struct {
	estimator    *estimator.Estimator
	runs         repository.FitRunRepository
	cache        *ParameterCache
	audit        *logger.AuditLogger
	logger       *logrus.Logger
	autoActivate bool
}

// NewFitService creates a new fit service. runs and cache may be nil, in
// which case fits are returned but not stored.
func NewFitService(
	est *estimator.Estimator,
	runs repository.FitRunRepository,
	cache *ParameterCache,
	autoActivate bool,
	log *logrus.Logger,
) *FitService {
	if log == nil {
		log = logger.Discard()
	}
	return &FitService{
		estimator:    est,
		runs:         runs,
		cache:        cache,
		audit:        logger.NewAuditLogger(log),
		logger:       log,
		autoActivate: autoActivate,
	}
}

// Fit estimates parameters from obs, stores the run and, with auto-activate
// on, makes it the run forecasts use.
func (s *FitService) Fit(ctx context.Context, obs []models.Observation) (*FitOutcome, error) {
	method := string(s.estimator.Options().Method)
	start := time.Now()

	result, err := s.estimator.Fit(ctx, obs)
	if err != nil {
		metrics.RecordFitRun(method, fitStatus(err), time.Since(start).Seconds())
		return nil, err
	}
	metrics.RecordFitRun(method, "success", time.Since(start).Seconds())
	for _, signal := range models.Signals {
		metrics.RecordFitWarnings(string(signal), len(result.Diagnostics(signal).Warnings))
	}

	outcome := &FitOutcome{Result: result}
	if s.runs == nil {
		return outcome, nil
	}

	run, err := models.NewFitRun(result)
	if err != nil {
		return nil, fmt.Errorf("failed to build fit run: %w", err)
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to store fit run: %w", err)
	}
	s.audit.LogRunStored(run.ID.String(), string(run.Method), run.Observations, run.LogLikelihood)
	outcome.Run = run

	if s.autoActivate {
		if err := s.Activate(ctx, run.ID, "fit"); err != nil {
			return outcome, err
		}
		run.Active = true
	}
	return outcome, nil
}

// FitFromSource loads the corpus from src and fits it.
func (s *FitService) FitFromSource(ctx context.Context, src corpus.Source) (*FitOutcome, error) {
	obs, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	s.logger.WithFields(logrus.Fields{
		"source":       src.Name(),
		"observations": len(obs),
	}).Info("Corpus loaded")
	return s.Fit(ctx, obs)
}

// Activate makes run id the one forecasts use.
func (s *FitService) Activate(ctx context.Context, id uuid.UUID, trigger string) error {
	if s.runs == nil {
		return fmt.Errorf("activating a run requires a fit run repository")
	}

	previous := ""
	if current, err := s.runs.GetActive(ctx); err == nil {
		previous = current.ID.String()
	} else if !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to read active fit run: %w", err)
	}

	if err := s.runs.Activate(ctx, id); err != nil {
		return fmt.Errorf("failed to activate fit run %s: %w", id, err)
	}
	if s.cache != nil {
		s.cache.InvalidateActive()
	}

	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to reload fit run %s: %w", id, err)
	}
	metrics.UpdateActiveFit(run.LogLikelihood, run.Observations)
	s.audit.LogRunActivated(id.String(), previous, trigger)
	return nil
}

// FitJob is a fit running in the background.
type FitJob struct {
	ID uuid.UUID

	done    chan struct{}
	mu      sync.Mutex
	outcome *FitOutcome
	err     error
}

// Done is closed when the job finishes.
func (j *FitJob) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job finishes or ctx is done.
func (j *FitJob) Wait(ctx context.Context) (*FitOutcome, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
		return j.Result()
	}
}

// Result returns the outcome without blocking.
func (j *FitJob) Result() (*FitOutcome, error) {
	select {
	case <-j.done:
	default:
		return nil, ErrJobRunning
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outcome, j.err
}

// FitAsync starts Fit in a goroutine. Cancelling ctx cancels the fit.
func (s *FitService) FitAsync(ctx context.Context, obs []models.Observation) *FitJob {
	job := &FitJob{ID: uuid.New(), done: make(chan struct{})}
	s.logger.WithField("job_id", job.ID).Debug("Fit job started")

	go func() {
		outcome, err := s.Fit(ctx, obs)
		job.mu.Lock()
		job.outcome, job.err = outcome, err
		job.mu.Unlock()
		close(job.done)
	}()
	return job
}

func fitStatus(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "failure"
}
