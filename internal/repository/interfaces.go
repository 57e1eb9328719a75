package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/yourusername/poll-blend/internal/models"
)

// ObservationRepository defines the interface for historical corpus access
type ObservationRepository interface {
	InsertBatch(ctx context.Context, obs []models.Observation) (int64, error)
	List(ctx context.Context) ([]models.Observation, error)
	ListByElection(ctx context.Context, electionID string) ([]models.Observation, error)
	Count(ctx context.Context) (int, error)
	DeleteElection(ctx context.Context, electionID string) (int64, error)
}

// FitRunRepository defines the interface for persisted fits
type FitRunRepository interface {
	Create(ctx context.Context, run *models.FitRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.FitRun, error)
	GetActive(ctx context.Context) (*models.FitRun, error)
	List(ctx context.Context, limit int) ([]*models.FitRun, error)
	// Activate marks id as the active run and deactivates every other run.
	Activate(ctx context.Context, id uuid.UUID) error
}
