// Package synthetic generates observation corpora from known variance
// parameters, for recovery checks and for exercising the pipeline without
// historical data.
package synthetic

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// Config describes a simulated corpus.
type Config struct {
	Elections         int
	PointsPerElection int
	MaxTime           float64
	Parameters        models.VarianceModelParameters
	// OutcomeLow and OutcomeHigh bound the uniformly drawn true shares.
	OutcomeLow  float64
	OutcomeHigh float64
	// FirstYear labels the first election; later ones follow every four
	// years so election ids sort chronologically.
	FirstYear int
	Seed      int64
}

// Simulate draws observations whose residuals are Gaussian with exactly the
// configured variance functions.
func Simulate(cfg Config) ([]models.Observation, error) {
	if cfg.Elections <= 0 || cfg.PointsPerElection <= 0 {
		return nil, fmt.Errorf("%w: elections and points per election must be positive", models.ErrInvalidInput)
	}
	if cfg.MaxTime <= 0 {
		return nil, fmt.Errorf("%w: max time must be positive", models.ErrInvalidInput)
	}
	if err := variance.ValidateParameters(cfg.Parameters, cfg.MaxTime); err != nil {
		return nil, err
	}
	form, err := variance.Lookup(cfg.Parameters.Form)
	if err != nil {
		return nil, err
	}
	if cfg.OutcomeLow == 0 && cfg.OutcomeHigh == 0 {
		cfg.OutcomeLow, cfg.OutcomeHigh = 0.44, 0.56
	}
	if cfg.FirstYear == 0 {
		cfg.FirstYear = 1948
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(seed))
	out := make([]models.Observation, 0, cfg.Elections*cfg.PointsPerElection)
	for e := 0; e < cfg.Elections; e++ {
		id := fmt.Sprintf("%d", cfg.FirstYear+4*e)
		truth := cfg.OutcomeLow + rng.Float64()*(cfg.OutcomeHigh-cfg.OutcomeLow)

		times := make([]float64, cfg.PointsPerElection)
		for i := range times {
			times[i] = math.Round(rng.Float64() * cfg.MaxTime)
		}
		sort.Sort(sort.Reverse(sort.Float64Slice(times)))

		for _, t := range times {
			sf := math.Sqrt(form.Variance(t, cfg.Parameters.Fundamentals))
			sp := math.Sqrt(form.Variance(t, cfg.Parameters.Polling))
			out = append(out, models.Observation{
				ElectionID:             id,
				TimeToElection:         t,
				FundamentalsPrediction: truth + sf*rng.NormFloat64(),
				PollingAverage:         truth + sp*rng.NormFloat64(),
				ActualOutcome:          truth,
			})
		}
	}
	return out, nil
}
