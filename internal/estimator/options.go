package estimator

import (
	"fmt"
	"time"

	"github.com/creasty/defaults"

	"github.com/yourusername/poll-blend/internal/config"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// Options configures a fit. Zero fields take the values in the default tags.
type Options struct {
	// TimeDomainMax is the largest time-to-election the fitted variances
	// must stay valid for.
	TimeDomainMax float64 `default:"365"`
	// MinObservationsPerSignal is the number of distinct time points below
	// which a signal's fit is flagged as poorly identified.
	MinObservationsPerSignal int              `default:"5"`
	Tolerance                float64          `default:"1e-9"`
	MaxIterations            int              `default:"5000"`
	Method                   models.FitMethod `default:"mle"`
	Form                     string           `default:"linear"`
	Timeout                  time.Duration
	MCMC                     MCMCOptions
}

// MCMCOptions configures the random-walk Metropolis sampler.
type MCMCOptions struct {
	// Samples is the number of retained draws per chain.
	Samples     int     `default:"2000"`
	BurnIn      int     `default:"1000"`
	Chains      int     `default:"4"`
	Thin        int     `default:"1"`
	Seed        int64   `default:"1"`
	InitialStep float64 `default:"0.1"`
}

// FromConfig maps the estimator config section onto Options.
func FromConfig(cfg config.EstimatorConfig) Options {
	return Options{
		TimeDomainMax:            cfg.TimeDomainMax,
		MinObservationsPerSignal: cfg.MinObservationsPerSignal,
		Tolerance:                cfg.OptimizerTolerance,
		MaxIterations:            cfg.OptimizerMaxIterations,
		Method:                   models.FitMethod(cfg.Method),
		Form:                     cfg.VarianceForm,
		Timeout:                  cfg.FitTimeout(),
		MCMC: MCMCOptions{
			Samples:     cfg.MCMC.Samples,
			BurnIn:      cfg.MCMC.BurnIn,
			Chains:      cfg.MCMC.Chains,
			Thin:        cfg.MCMC.Thin,
			Seed:        cfg.MCMC.Seed,
			InitialStep: cfg.MCMC.InitialStep,
		},
	}
}

// withDefaults fills zero fields and rejects values no fit can run with.
func (o Options) withDefaults() (Options, error) {
	if err := defaults.Set(&o); err != nil {
		return o, fmt.Errorf("failed to apply estimator defaults: %w", err)
	}
	if err := defaults.Set(&o.MCMC); err != nil {
		return o, fmt.Errorf("failed to apply sampler defaults: %w", err)
	}

	switch o.Method {
	case models.MethodMLE, models.MethodMCMC:
	default:
		return o, fmt.Errorf("%w: unknown fit method %q", models.ErrInvalidInput, o.Method)
	}
	if _, err := variance.Lookup(o.Form); err != nil {
		return o, err
	}
	if o.TimeDomainMax <= 0 {
		return o, fmt.Errorf("%w: time domain max must be positive", models.ErrInvalidInput)
	}
	if o.Tolerance <= 0 || o.MaxIterations <= 0 {
		return o, fmt.Errorf("%w: optimizer tolerance and iteration budget must be positive", models.ErrInvalidInput)
	}
	if o.MinObservationsPerSignal < 2 {
		o.MinObservationsPerSignal = 2
	}
	if o.MCMC.Samples <= 1 || o.MCMC.Chains <= 0 || o.MCMC.Thin <= 0 || o.MCMC.BurnIn < 0 || o.MCMC.InitialStep <= 0 {
		return o, fmt.Errorf("%w: invalid sampler settings %+v", models.ErrInvalidInput, o.MCMC)
	}
	return o, nil
}
