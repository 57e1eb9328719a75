package validation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/poll-blend/internal/estimator"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/models"
)

// WalkForwardResult holds one step per election that had enough history.
// Each step is fitted only on elections that sort before it.
type WalkForwardResult struct {
	Steps       []FoldResult `json:"steps"`
	Model       Scores       `json:"model"`
	Baseline    Scores       `json:"baseline"`
	Improvement float64      `json:"improvement"`
	Skipped     int          `json:"skipped"`
	// Consistency is the share of scored steps where the model beat the
	// baseline log score.
	Consistency float64 `json:"consistency"`
}

// WalkForward evaluates the model the way it would have been used live:
// each election is forecast from a fit on the elections before it.
func WalkForward(ctx context.Context, obs []models.Observation, opts Options, log *logrus.Logger) (*WalkForwardResult, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	vlog := logger.NewValidationLogger(log)

	ids := ElectionIDs(obs)
	if len(ids) <= opts.MinTrainElections {
		return nil, &models.InsufficientDataError{
			Count:    len(ids),
			Required: opts.MinTrainElections + 1,
			Reason:   "elections for walk-forward evaluation",
		}
	}
	est, err := estimator.New(opts.Estimator, log)
	if err != nil {
		return nil, err
	}

	byElection := make(map[string][]models.Observation, len(ids))
	for _, o := range obs {
		byElection[o.ElectionID] = append(byElection[o.ElectionID], o)
	}

	steps := make([]FoldResult, len(ids)-opts.MinTrainElections)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i := range steps {
		i := i
		target := opts.MinTrainElections + i
		g.Go(func() error {
			var train []models.Observation
			for _, id := range ids[:target] {
				train = append(train, byElection[id]...)
			}
			held := []string{ids[target]}

			r, err := evaluate(gctx, est, train, byElection[ids[target]], *opts.BaselineWeight)
			r.Fold = i
			r.Elections = held
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.Error = err.Error()
				vlog.LogFoldSkipped(i, held, err)
			} else {
				vlog.LogFoldScored(i, held, r.Model.Observations, r.Model.LogScore, r.BaselineScores.LogScore)
			}
			steps[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("walk-forward cancelled: %w", err)
	}

	result := &WalkForwardResult{Steps: steps}
	if err := aggregate(steps, &result.Model, &result.Baseline, &result.Skipped); err != nil {
		return nil, err
	}
	result.Improvement = result.Model.LogScore - result.Baseline.LogScore
	result.Consistency = consistency(steps)
	vlog.LogValidationCompleted("walk-forward", len(steps)-result.Skipped, result.Model.LogScore, result.Baseline.LogScore, result.Improvement)
	return result, nil
}

func consistency(steps []FoldResult) float64 {
	scored, wins := 0, 0
	for _, s := range steps {
		if s.Skipped() {
			continue
		}
		scored++
		if s.Model.LogScore > s.BaselineScores.LogScore {
			wins++
		}
	}
	if scored == 0 {
		return 0
	}
	return float64(wins) / float64(scored)
}
