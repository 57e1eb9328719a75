package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/poll-blend/internal/database"
	"github.com/yourusername/poll-blend/internal/models"
)

const fitRunColumns = `
	id, method, form,
	fundamentals_intercept, fundamentals_slope, polling_intercept, polling_slope,
	log_likelihood, observations, elections, diagnostics, fitted_at, active, created_at
`

// PostgresFitRunRepository implements FitRunRepository for PostgreSQL
type PostgresFitRunRepository struct {
	db *database.DB
}

// NewPostgresFitRunRepository creates a new fit run repository
func NewPostgresFitRunRepository(db *database.DB) FitRunRepository {
	return &PostgresFitRunRepository{db: db}
}

// Create inserts a new fit run. Runs are always stored inactive; use
// Activate to make one current.
func (r *PostgresFitRunRepository) Create(ctx context.Context, run *models.FitRun) error {
	query := `
		INSERT INTO fit_runs (
			id, method, form,
			fundamentals_intercept, fundamentals_slope, polling_intercept, polling_slope,
			log_likelihood, observations, elections, diagnostics, fitted_at, active
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false)
		RETURNING created_at
	`

	p := run.Parameters
	diagnostics := run.Diagnostics
	if len(diagnostics) == 0 {
		diagnostics = []byte("{}")
	}
	err := r.db.GetPool().QueryRow(ctx, query,
		run.ID, string(run.Method), p.Form,
		p.Fundamentals.Intercept, p.Fundamentals.Slope, p.Polling.Intercept, p.Polling.Slope,
		run.LogLikelihood, run.Observations, run.Elections, diagnostics, run.FittedAt,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create fit run: %w", err)
	}
	run.Active = false
	return nil
}

// GetByID retrieves a fit run by ID
func (r *PostgresFitRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.FitRun, error) {
	query := `SELECT ` + fitRunColumns + ` FROM fit_runs WHERE id = $1`
	run, err := scanFitRun(r.db.GetPool().QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fit run: %w", err)
	}
	return run, nil
}

// GetActive retrieves the active fit run
func (r *PostgresFitRunRepository) GetActive(ctx context.Context) (*models.FitRun, error) {
	query := `SELECT ` + fitRunColumns + ` FROM fit_runs WHERE active = true`
	run, err := scanFitRun(r.db.GetPool().QueryRow(ctx, query))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active fit run: %w", err)
	}
	return run, nil
}

// List returns the most recent runs first
func (r *PostgresFitRunRepository) List(ctx context.Context, limit int) ([]*models.FitRun, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT ` + fitRunColumns + ` FROM fit_runs ORDER BY fitted_at DESC LIMIT $1`

	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query fit runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.FitRun
	for rows.Next() {
		run, err := scanFitRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fit run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Activate sets a run as active and deactivates the others
func (r *PostgresFitRunRepository) Activate(ctx context.Context, id uuid.UUID) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "UPDATE fit_runs SET active = false WHERE active AND id != $1", id); err != nil {
			return fmt.Errorf("failed to deactivate fit runs: %w", err)
		}
		tag, err := tx.Exec(ctx, "UPDATE fit_runs SET active = true WHERE id = $1", id)
		if err != nil {
			return fmt.Errorf("failed to activate fit run: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return models.ErrNotFound
		}
		return nil
	})
}

func scanFitRun(row pgx.Row) (*models.FitRun, error) {
	run := &models.FitRun{}
	p := &run.Parameters
	var method string
	err := row.Scan(
		&run.ID, &method, &p.Form,
		&p.Fundamentals.Intercept, &p.Fundamentals.Slope, &p.Polling.Intercept, &p.Polling.Slope,
		&run.LogLikelihood, &run.Observations, &run.Elections, &run.Diagnostics, &run.FittedAt, &run.Active, &run.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.Method = models.FitMethod(method)
	return run, nil
}
