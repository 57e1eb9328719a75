// Package validation scores the fitted variance model out of sample.
//
// Cross-validation holds out whole elections, fits the estimator on the
// rest, and scores the fused forecast of every held-out observation against
// a fixed-weight blend of the two signals.
package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/creasty/defaults"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/poll-blend/internal/combiner"
	"github.com/yourusername/poll-blend/internal/config"
	"github.com/yourusername/poll-blend/internal/estimator"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/models"
)

// Options configures cross-validation and walk-forward evaluation.
type Options struct {
	Strategy FoldStrategy `default:"by-election"`
	// Folds is only used by FoldKFold.
	Folds int `default:"5"`
	// BaselineWeight is the polling weight of the comparison blend. Nil
	// means 0.5; an explicit zero is a fundamentals-only baseline.
	BaselineWeight    *float64 `default:"0.5"`
	Parallelism       int      `default:"4"`
	MinTrainElections int      `default:"3"`
	Estimator         estimator.Options
}

// FromConfig maps the validation and estimator config sections onto Options.
func FromConfig(v config.ValidationConfig, e config.EstimatorConfig) Options {
	weight := v.BaselineWeight
	return Options{
		Strategy:          FoldStrategy(v.CrossValidationFoldStrategy),
		Folds:             v.Folds,
		BaselineWeight:    &weight,
		Parallelism:       v.Parallelism,
		MinTrainElections: v.MinTrainElections,
		Estimator:         estimator.FromConfig(e),
	}
}

func (o Options) withDefaults() (Options, error) {
	if err := defaults.Set(&o); err != nil {
		return o, fmt.Errorf("failed to apply validation defaults: %w", err)
	}
	if w := *o.BaselineWeight; w < 0 || w > 1 {
		return o, fmt.Errorf("%w: baseline weight %g outside [0, 1]", models.ErrInvalidInput, w)
	}
	if o.Parallelism < 1 {
		o.Parallelism = 1
	}
	return o, nil
}

// FoldResult is the outcome of one held-out fold.
type FoldResult struct {
	Fold              int                            `json:"fold"`
	Elections         []string                       `json:"elections"`
	TrainObservations int                            `json:"train_observations"`
	Parameters        models.VarianceModelParameters `json:"parameters"`
	Baseline          Baseline                       `json:"baseline"`
	Model             Scores                         `json:"model"`
	BaselineScores    Scores                         `json:"baseline_scores"`
	// Error is set when the fold could not be fitted and was skipped.
	Error string `json:"error,omitempty"`

	model, baseline predictions
}

// Skipped reports whether the fold was left out of the aggregate.
func (f FoldResult) Skipped() bool {
	return f.Error != ""
}

// Result aggregates every scored fold. The aggregate scores pool all
// held-out observations, so folds with more observations weigh more.
type Result struct {
	Strategy    FoldStrategy `json:"strategy"`
	Folds       []FoldResult `json:"folds"`
	Model       Scores       `json:"model"`
	Baseline    Scores       `json:"baseline"`
	Improvement float64      `json:"improvement"`
	Skipped     int          `json:"skipped"`
}

// CrossValidate fits and scores every fold of obs. A fold whose training set
// cannot be fitted is skipped and reported; cancellation and the failure of
// every fold are errors.
func CrossValidate(ctx context.Context, obs []models.Observation, opts Options, log *logrus.Logger) (*Result, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	vlog := logger.NewValidationLogger(log)

	folds, err := BuildFolds(obs, opts.Strategy, opts.Folds)
	if err != nil {
		return nil, err
	}
	est, err := estimator.New(opts.Estimator, log)
	if err != nil {
		return nil, err
	}

	results := make([]FoldResult, len(folds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, fold := range folds {
		i, fold := i, fold
		g.Go(func() error {
			r, err := evaluate(gctx, est, fold.Train, fold.Test, *opts.BaselineWeight)
			r.Fold = fold.Index
			r.Elections = fold.Elections
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.Error = err.Error()
				vlog.LogFoldSkipped(fold.Index, fold.Elections, err)
			} else {
				vlog.LogFoldScored(fold.Index, fold.Elections, r.Model.Observations, r.Model.LogScore, r.BaselineScores.LogScore)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("cross-validation cancelled: %w", err)
	}

	result := &Result{Strategy: opts.Strategy, Folds: results}
	if err := aggregate(results, &result.Model, &result.Baseline, &result.Skipped); err != nil {
		return nil, err
	}
	result.Improvement = result.Model.LogScore - result.Baseline.LogScore
	vlog.LogValidationCompleted(string(opts.Strategy), len(results)-result.Skipped, result.Model.LogScore, result.Baseline.LogScore, result.Improvement)
	return result, nil
}

// evaluate fits on train and scores the model and the baseline on test.
func evaluate(ctx context.Context, est *estimator.Estimator, train, test []models.Observation, baselineWeight float64) (FoldResult, error) {
	r := FoldResult{TrainObservations: len(train)}

	fit, err := est.Fit(ctx, train)
	if err != nil {
		return r, err
	}
	r.Parameters = fit.Parameters

	r.Baseline, err = FitBaseline(train, baselineWeight)
	if err != nil {
		return r, err
	}

	for _, o := range test {
		in := o.Input()
		f, err := combiner.Forecast(in, fit)
		if err != nil {
			return r, fmt.Errorf("election %q at t=%g: %w", o.ElectionID, o.TimeToElection, err)
		}
		r.model.add(f, o.ActualOutcome)
		r.baseline.add(r.Baseline.Forecast(in), o.ActualOutcome)
	}
	r.Model = r.model.score()
	r.BaselineScores = r.baseline.score()
	return r, nil
}

var errAllFoldsFailed = errors.New("every fold failed to fit")

func aggregate(folds []FoldResult, model, baseline *Scores, skipped *int) error {
	var pooledModel, pooledBaseline predictions
	var lastErr string
	for _, f := range folds {
		if f.Skipped() {
			*skipped++
			lastErr = f.Error
			continue
		}
		pooledModel.merge(f.model)
		pooledBaseline.merge(f.baseline)
	}
	if *skipped == len(folds) {
		return fmt.Errorf("%w: %d folds, last error: %s", errAllFoldsFailed, len(folds), lastErr)
	}
	*model = pooledModel.score()
	*baseline = pooledBaseline.score()
	return nil
}
