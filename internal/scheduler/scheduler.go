// Package scheduler refits the variance model on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/poll-blend/internal/corpus"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/service"
)

// Refitter is the part of the fit service the scheduler drives.
type Refitter interface {
	FitFromSource(ctx context.Context, src corpus.Source) (*service.FitOutcome, error)
}

// Scheduler manages scheduled refit jobs
type Scheduler struct {
	cron            *cron.Cron
	refitter        Refitter
	logger          *logrus.Entry
	mu              sync.RWMutex
	isRunning       bool
	jobIDs          []cron.EntryID
	jobTimeout      time.Duration
	gracefulTimeout time.Duration
}

// NewScheduler creates a new scheduler
func NewScheduler(refitter Refitter, log *logrus.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	return &Scheduler{
		cron:            cron.New(cron.WithLocation(time.UTC)),
		refitter:        refitter,
		logger:          log.WithField("component", "scheduler"),
		jobIDs:          make([]cron.EntryID, 0),
		jobTimeout:      time.Hour,
		gracefulTimeout: 30 * time.Second,
	}
}

// SetJobTimeout bounds how long one refit may run.
func (s *Scheduler) SetJobTimeout(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.jobTimeout = d
	}
}

// ScheduleRefit refits from src whenever cronExpression fires. A run still
// in progress when the next one is due causes that one to be skipped.
func (s *Scheduler) ScheduleRefit(cronExpression string, src corpus.Source) (cron.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return 0, fmt.Errorf("cannot schedule job while scheduler is running")
	}

	job := cron.NewChain(cron.SkipIfStillRunning(cron.DiscardLogger)).Then(cron.FuncJob(func() {
		s.RunRefit(context.Background(), src)
	}))

	entryID, err := s.cron.AddJob(cronExpression, job)
	if err != nil {
		return 0, fmt.Errorf("failed to add job: %w", err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.WithFields(logrus.Fields{
		"schedule": cronExpression,
		"source":   src.Name(),
	}).Info("Scheduled refit job")

	return entryID, nil
}

// RunRefit runs one refit now. Errors are logged, not returned, because a
// failed refit leaves the previous active run in place.
func (s *Scheduler) RunRefit(ctx context.Context, src corpus.Source) {
	s.mu.RLock()
	timeout := s.jobTimeout
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entry := s.logger.WithField("source", src.Name())
	entry.Info("Starting scheduled refit")

	outcome, err := s.refitter.FitFromSource(ctx, src)
	if err != nil {
		entry.WithError(err).Error("Scheduled refit failed")
		return
	}

	fields := logrus.Fields{
		"log_likelihood": outcome.Result.LogLikelihood(),
		"elections":      outcome.Result.Elections,
	}
	if outcome.Run != nil {
		fields["run_id"] = outcome.Run.ID
		fields["active"] = outcome.Run.Active
	}
	entry.WithFields(fields).Info("Scheduled refit completed")
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.WithField("jobs", len(s.jobIDs)).Info("Scheduler started")

	return nil
}

// Stop stops the scheduler and waits for running jobs, up to the graceful
// timeout.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	stopped := s.cron.Stop()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.gracefulTimeout)
	defer cancel()

	select {
	case <-stopped.Done():
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timed out waiting for running jobs: %w", ctx.Err())
	}
}

// IsRunning returns whether the scheduler is currently running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetNextRun returns the time of the next scheduled job run
func (s *Scheduler) GetNextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning || len(s.jobIDs) == 0 {
		return time.Time{}
	}

	nextRun := time.Time{}
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			if nextRun.IsZero() || entry.Next.Before(nextRun) {
				nextRun = entry.Next
			}
		}
	}

	return nextRun
}

// Entries returns information about scheduled entries
func (s *Scheduler) Entries() []cron.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]cron.Entry, 0, len(s.jobIDs))
	for _, jobID := range s.jobIDs {
		entry := s.cron.Entry(jobID)
		if entry.Valid() {
			entries = append(entries, entry)
		}
	}

	return entries
}

// RemoveJob removes a scheduled job
func (s *Scheduler) RemoveJob(jobID cron.EntryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot remove job while scheduler is running")
	}

	s.cron.Remove(jobID)
	for i, id := range s.jobIDs {
		if id == jobID {
			s.jobIDs = append(s.jobIDs[:i], s.jobIDs[i+1:]...)
			break
		}
	}
	s.logger.WithField("job_id", jobID).Info("Removed job")

	return nil
}
