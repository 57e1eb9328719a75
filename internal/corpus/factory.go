package corpus

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/poll-blend/internal/config"
	"github.com/yourusername/poll-blend/internal/models"
)

// SourceType represents where the corpus comes from
type SourceType string

const (
	FileSourceType     SourceType = "file"
	HTTPSourceType     SourceType = "http"
	DatabaseSourceType SourceType = "database"
)

// ObservationLister is the part of the observation repository a database
// source needs.
type ObservationLister interface {
	List(ctx context.Context) ([]models.Observation, error)
}

// RepositorySource reads the corpus from the observation table.
type RepositorySource struct {
	repo ObservationLister
}

// NewRepositorySource creates a database-backed source.
func NewRepositorySource(repo ObservationLister) *RepositorySource {
	return &RepositorySource{repo: repo}
}

// Name returns the name of the source
func (s *RepositorySource) Name() string {
	return "database"
}

// Load lists and validates every stored observation.
func (s *RepositorySource) Load(ctx context.Context) ([]models.Observation, error) {
	obs, err := s.repo.List(ctx)
	if err != nil {
		return nil, newSourceError(s.Name(), ErrCodeServerError, "failed to list observations", err)
	}
	if err := Validate(obs); err != nil {
		return nil, newSourceError(s.Name(), ErrCodeInvalidData, "stored corpus failed validation", err)
	}
	return obs, nil
}

// Factory creates sources from the corpus config section
type Factory struct {
	cfg    config.CorpusConfig
	repo   ObservationLister
	logger *logrus.Logger
}

// NewFactory creates a new source factory. repo may be nil when the
// database is disabled.
func NewFactory(cfg config.CorpusConfig, repo ObservationLister, logger *logrus.Logger) *Factory {
	return &Factory{cfg: cfg, repo: repo, logger: logger}
}

// NewSource creates the configured source
func (f *Factory) NewSource() (Source, error) {
	format := Format(f.cfg.Format)
	switch SourceType(f.cfg.Source) {
	case FileSourceType, "":
		if f.cfg.Path == "" {
			return nil, fmt.Errorf("corpus path is required for file source")
		}
		return NewFileSource(f.cfg.Path, format), nil

	case HTTPSourceType:
		if f.cfg.URL == "" {
			return nil, fmt.Errorf("corpus url is required for http source")
		}
		httpCfg := DefaultHTTPClientConfig()
		if f.cfg.TimeoutSeconds > 0 {
			httpCfg.Timeout = time.Duration(f.cfg.TimeoutSeconds) * time.Second
		}
		if f.cfg.RetryAttempts > 0 {
			httpCfg.MaxRetries = f.cfg.RetryAttempts
		}
		if f.cfg.RateLimitPerSecond > 0 {
			httpCfg.RateLimit = f.cfg.RateLimitPerSecond
		}
		return NewHTTPSource(NewRateLimitedHTTPClient(httpCfg, f.logger), f.cfg.URL, format), nil

	case DatabaseSourceType:
		if f.repo == nil {
			return nil, fmt.Errorf("database source requires an observation repository")
		}
		return NewRepositorySource(f.repo), nil

	default:
		return nil, fmt.Errorf("unknown corpus source: %s", f.cfg.Source)
	}
}
