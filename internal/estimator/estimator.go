// Package estimator fits the variance model to historical observations.
//
// Each signal's residuals are treated as zero-mean Gaussian with the form's
// time-dependent variance, and the two signals are fitted independently.
// The MLE path maximizes the likelihood with Nelder-Mead; the MCMC path
// samples the posterior under a flat prior and reports the posterior mean.
// Both work in an unconstrained reparameterization in which every point is
// a valid variance function, so the search never proposes a non-positive
// variance.
package estimator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// minDistinctTimes is the hard floor below which the slope is not
// identifiable at all.
const minDistinctTimes = 2

// Estimator fits VarianceModelParameters. It is safe for concurrent use;
// every Fit call works on its own state.
type Estimator struct {
	opts Options
	log  *logger.FitLogger
}

// New creates an estimator. A nil logger discards output.
func New(opts Options, log *logrus.Logger) (*Estimator, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Estimator{opts: opts, log: logger.NewFitLogger(log)}, nil
}

// Options returns the effective options after defaults.
func (e *Estimator) Options() Options {
	return e.opts
}

// fitter holds the state of one Fit call.
type fitter struct {
	opts   Options
	form   variance.Form
	rep    variance.Reparameterizer
	anchor float64
	log    *logger.FitLogger
}

type signalFit struct {
	params      models.SignalParameters
	draws       []models.SignalParameters
	diagnostics models.SignalDiagnostics
}

// Fit estimates the variance parameters of both signals from obs.
func (e *Estimator) Fit(ctx context.Context, obs []models.Observation) (models.FitResult, error) {
	started := time.Now()
	result, err := e.fit(ctx, obs)
	if err != nil {
		e.log.LogFitFailed(string(e.opts.Method), len(obs), err)
		return models.FitResult{}, err
	}
	result.Duration = time.Since(started)
	e.log.LogFitCompleted(string(result.Method), len(obs), result.Elections, result.LogLikelihood(), result.Duration)
	return result, nil
}

func (e *Estimator) fit(ctx context.Context, obs []models.Observation) (models.FitResult, error) {
	if err := checkCorpus(obs); err != nil {
		return models.FitResult{}, err
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	form, err := variance.Lookup(e.opts.Form)
	if err != nil {
		return models.FitResult{}, err
	}
	rep, ok := form.(variance.Reparameterizer)
	if !ok {
		return models.FitResult{}, fmt.Errorf("%w: variance form %q cannot be estimated", models.ErrInvalidInput, form.Name())
	}

	data := make([]*series, len(models.Signals))
	for i, s := range models.Signals {
		data[i] = newSeries(s, obs)
	}
	if data[0].distinct < minDistinctTimes {
		return models.FitResult{}, &models.InsufficientDataError{
			Count:    data[0].distinct,
			Required: minDistinctTimes,
			Reason:   "distinct time points, the variance slope is not identifiable",
		}
	}

	f := &fitter{
		opts:   e.opts,
		form:   form,
		rep:    rep,
		anchor: math.Max(e.opts.TimeDomainMax, data[0].maxTime),
		log:    e.log,
	}

	fits := make([]signalFit, len(data))
	g, gctx := errgroup.WithContext(ctx)
	for i := range data {
		i := i
		g.Go(func() error {
			sf, err := f.fitSignal(gctx, data[i], i)
			if err != nil {
				return err
			}
			fits[i] = sf
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return models.FitResult{}, err
	}

	params := models.VarianceModelParameters{Form: form.Name()}
	for i, s := range models.Signals {
		params = params.With(s, fits[i].params)
	}
	if err := variance.ValidateParameters(params, e.opts.TimeDomainMax); err != nil {
		var ivm *models.InvalidVarianceModelError
		failure := &models.FitFailureError{Status: "outside operating domain", Err: err}
		if errors.As(err, &ivm) {
			failure.Signal = ivm.Signal
		}
		return models.FitResult{}, failure
	}

	result := models.FitResult{
		Method:       e.opts.Method,
		Parameters:   params,
		Fundamentals: fits[0].diagnostics,
		Polling:      fits[1].diagnostics,
		MinTime:      minTime(obs),
		MaxTime:      data[0].maxTime,
		Elections:    countElections(obs),
	}
	if e.opts.Method == models.MethodMCMC {
		result.Samples = pairDraws(form.Name(), fits[0].draws, fits[1].draws)
	}
	return result, nil
}

func (f *fitter) fitSignal(ctx context.Context, s *series, index int) (signalFit, error) {
	diag := models.SignalDiagnostics{
		Signal:        s.signal,
		Observations:  len(s.times),
		DistinctTimes: s.distinct,
	}
	if s.distinct < f.opts.MinObservationsPerSignal {
		diag.Warnings = append(diag.Warnings, sparseWarning(s.distinct, f.opts.MinObservationsPerSignal))
		f.log.LogSparseSignal(string(s.signal), s.distinct, f.opts.MinObservationsPerSignal)
	}

	opt, err := f.maximize(ctx, s)
	if err != nil {
		return signalFit{}, err
	}
	diag.Iterations = opt.iterations
	diag.FuncEvaluations = opt.evaluations
	diag.Status = opt.status
	diag.Restarts = opt.restarts
	diag.LogLikelihood = opt.logLikelihood
	f.log.LogSignalFit(string(s.signal), string(models.MethodMLE), opt.iterations, opt.evaluations, opt.logLikelihood, opt.status)

	if f.opts.Method != models.MethodMCMC {
		return signalFit{params: opt.params, diagnostics: diag}, nil
	}

	post, err := f.sample(ctx, s, opt.x, index)
	if err != nil {
		return signalFit{}, &models.FitFailureError{Signal: s.signal, Iterations: opt.iterations, Status: "sampling aborted", Err: err}
	}
	diag.AcceptanceRate = post.acceptanceRate
	diag.RHat = post.rHat
	diag.LogLikelihood = s.logLikelihood(f.form, post.mean)
	diag.Status = "sampled"
	if post.rHat > RHatThreshold {
		diag.Warnings = append(diag.Warnings, rHatWarning(post.rHat))
		f.log.LogConvergenceWarning(string(s.signal), post.rHat, post.acceptanceRate)
	}
	f.log.LogSignalFit(string(s.signal), string(models.MethodMCMC), len(post.draws), len(post.draws), diag.LogLikelihood, diag.Status)
	return signalFit{params: post.mean, draws: post.draws, diagnostics: diag}, nil
}

// checkCorpus rejects corpora no fit can use. Errors name the offending
// observation index.
func checkCorpus(obs []models.Observation) error {
	switch len(obs) {
	case 0:
		return &models.InsufficientDataError{Count: 0, Required: minDistinctTimes, Reason: "no observations"}
	case 1:
		return &models.InsufficientDataError{Count: 1, Required: minDistinctTimes, Reason: "a single observation cannot identify a variance"}
	}
	for i, o := range obs {
		if err := o.Check(); err != nil {
			return fmt.Errorf("observation %d (election %q): %w", i, o.ElectionID, err)
		}
	}
	return nil
}

// pairDraws joins draw i of each signal into one parameter sample.
func pairDraws(form string, fundamentals, polling []models.SignalParameters) []models.VarianceModelParameters {
	n := len(fundamentals)
	if len(polling) < n {
		n = len(polling)
	}
	out := make([]models.VarianceModelParameters, n)
	for i := 0; i < n; i++ {
		out[i] = models.VarianceModelParameters{Form: form, Fundamentals: fundamentals[i], Polling: polling[i]}
	}
	return out
}

func minTime(obs []models.Observation) float64 {
	m := math.Inf(1)
	for _, o := range obs {
		m = math.Min(m, o.TimeToElection)
	}
	return m
}

func countElections(obs []models.Observation) int {
	seen := make(map[string]struct{})
	for _, o := range obs {
		seen[o.ElectionID] = struct{}{}
	}
	return len(seen)
}
