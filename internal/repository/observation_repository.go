package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/poll-blend/internal/database"
	"github.com/yourusername/poll-blend/internal/models"
)

var observationColumns = []string{
	"election_id", "time_to_election", "fundamentals_prediction", "polling_average", "actual_outcome",
}

// PostgresObservationRepository implements ObservationRepository for PostgreSQL
type PostgresObservationRepository struct {
	db *database.DB
}

// NewPostgresObservationRepository creates a new observation repository
func NewPostgresObservationRepository(db *database.DB) ObservationRepository {
	return &PostgresObservationRepository{db: db}
}

// InsertBatch copies observations into the table in one round trip.
func (r *PostgresObservationRepository) InsertBatch(ctx context.Context, obs []models.Observation) (int64, error) {
	if len(obs) == 0 {
		return 0, nil
	}

	rows := make([][]interface{}, len(obs))
	for i, o := range obs {
		rows[i] = []interface{}{
			o.ElectionID, o.TimeToElection, o.FundamentalsPrediction, o.PollingAverage, o.ActualOutcome,
		}
	}

	count, err := r.db.GetPool().CopyFrom(ctx, pgx.Identifier{"observations"}, observationColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to batch insert observations: %w", err)
	}
	if count != int64(len(obs)) {
		return count, fmt.Errorf("inserted %d rows, expected %d", count, len(obs))
	}
	return count, nil
}

// List returns the whole corpus ordered by election and descending time.
func (r *PostgresObservationRepository) List(ctx context.Context) ([]models.Observation, error) {
	query := `
		SELECT election_id, time_to_election, fundamentals_prediction, polling_average, actual_outcome
		FROM observations
		ORDER BY election_id ASC, time_to_election DESC, id ASC
	`
	return r.query(ctx, query)
}

// ListByElection returns one election's observations.
func (r *PostgresObservationRepository) ListByElection(ctx context.Context, electionID string) ([]models.Observation, error) {
	query := `
		SELECT election_id, time_to_election, fundamentals_prediction, polling_average, actual_outcome
		FROM observations
		WHERE election_id = $1
		ORDER BY time_to_election DESC, id ASC
	`
	return r.query(ctx, query, electionID)
}

func (r *PostgresObservationRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Observation, error) {
	rows, err := r.db.GetPool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	obs, err := pgx.CollectRows(rows, pgx.RowToStructByName[models.Observation])
	if err != nil {
		return nil, fmt.Errorf("failed to scan observations: %w", err)
	}
	return obs, nil
}

// Count returns the number of stored observations
func (r *PostgresObservationRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetPool().QueryRow(ctx, "SELECT COUNT(*) FROM observations").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return n, nil
}

// DeleteElection removes one election's observations, for re-imports.
func (r *PostgresObservationRepository) DeleteElection(ctx context.Context, electionID string) (int64, error) {
	tag, err := r.db.GetPool().Exec(ctx, "DELETE FROM observations WHERE election_id = $1", electionID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete observations: %w", err)
	}
	return tag.RowsAffected(), nil
}
