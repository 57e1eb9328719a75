package repository

import (
	"fmt"

	"github.com/yourusername/poll-blend/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Observation ObservationRepository
	FitRun      FitRunRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Observation: NewPostgresObservationRepository(db),
		FitRun:      NewPostgresFitRunRepository(db),
	}, nil
}
