package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/poll-blend/internal/corpus"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/repository"
	"github.com/yourusername/poll-blend/internal/validation"
)

// ImportStats tracks what one import did
type ImportStats struct {
	mu           sync.RWMutex
	Source       string
	Duration     time.Duration
	Observations int
	Elections    int
	Replaced     int64
	Inserted     int64
}

func (s *ImportStats) record(replaced, inserted int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Replaced += replaced
	s.Inserted += inserted
}

// String returns a formatted string representation of the stats
func (s *ImportStats) String() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fmt.Sprintf(
		"ImportStats{Source=%s, Observations=%d, Elections=%d, Replaced=%d, Inserted=%d, Duration=%v}",
		s.Source, s.Observations, s.Elections, s.Replaced, s.Inserted, s.Duration,
	)
}

// ImportService copies a corpus from a source into the observation table
type ImportService struct {
	repo   repository.ObservationRepository
	logger *logrus.Entry
}

// NewImportService creates a new import service
func NewImportService(repo repository.ObservationRepository, log *logrus.Logger) *ImportService {
	if log == nil {
		log = logger.Discard()
	}
	return &ImportService{repo: repo, logger: log.WithField("component", "import")}
}

// Import loads src and stores its observations. With replace set, stored
// observations of every election present in src are deleted first, so
// re-importing a corpus does not duplicate it.
func (s *ImportService) Import(ctx context.Context, src corpus.Source, replace bool) (*ImportStats, error) {
	start := time.Now()
	stats := &ImportStats{Source: src.Name()}

	obs, err := src.Load(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to load corpus: %w", err)
	}
	if len(obs) == 0 {
		return stats, fmt.Errorf("%w: source %s returned no observations", models.ErrInvalidInput, src.Name())
	}

	elections := validation.ElectionIDs(obs)
	stats.Observations = len(obs)
	stats.Elections = len(elections)

	if replace {
		for _, id := range elections {
			n, err := s.repo.DeleteElection(ctx, id)
			if err != nil {
				return stats, fmt.Errorf("failed to delete election %s: %w", id, err)
			}
			stats.record(n, 0)
		}
	}

	inserted, err := s.repo.InsertBatch(ctx, obs)
	if err != nil {
		return stats, fmt.Errorf("failed to insert observations: %w", err)
	}
	stats.record(0, inserted)
	stats.Duration = time.Since(start)

	s.logger.WithFields(logrus.Fields{
		"source":    stats.Source,
		"elections": stats.Elections,
		"inserted":  stats.Inserted,
		"replaced":  stats.Replaced,
	}).Info("Corpus imported")
	return stats, nil
}
