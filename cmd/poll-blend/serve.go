package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/estimator"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/paramfile"
	"github.com/yourusername/poll-blend/internal/scheduler"
	"github.com/yourusername/poll-blend/internal/server"
	"github.com/yourusername/poll-blend/internal/service"
)

// staticForecaster serves forecasts from a parameter file. The file's run
// is the active run and the only one it knows.
type staticForecaster struct {
	runID  uuid.UUID
	params models.VarianceModelParameters
}

// newStaticForecaster loads the file at path and checks its variances stay
// positive over the configured domain as well as its own.
func newStaticForecaster(path string, domain float64) (*staticForecaster, error) {
	file, err := paramfile.ReadWithin(path, domain)
	if err != nil {
		return nil, err
	}
	f := &staticForecaster{params: file.Parameters}
	if id, err := uuid.Parse(file.RunID); err == nil {
		f.runID = id
	}
	return f, nil
}

func (f *staticForecaster) Forecast(ctx context.Context, runID uuid.UUID, in models.ForecastInput) (*service.ForecastResponse, error) {
	if f.runID == uuid.Nil || runID != f.runID {
		return nil, fmt.Errorf("fit run %s: %w", runID, models.ErrNotFound)
	}
	return f.ForecastActive(ctx, in)
}

func (f *staticForecaster) ForecastActive(_ context.Context, in models.ForecastInput) (*service.ForecastResponse, error) {
	resp, err := service.ForecastWith(f.params, in)
	if err != nil {
		return nil, err
	}
	resp.RunID = f.runID
	return resp, nil
}

func newServeCmd(a *app) *cobra.Command {
	var params string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forecasts over HTTP",
		Long: `Starts the forecast API with health, readiness and metrics endpoints.
Forecasts use --params when given, otherwise stored runs. With
scheduler.enabled the model is also refitted on the configured schedule.`,
		Example: `  poll-blend serve --params params.yaml
  poll-blend serve --config config/production.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd, params)
		},
	}
	cmd.Flags().StringVarP(&params, "params", "p", "", "Serve forecasts from this YAML parameter file")
	return cmd
}

func (a *app) runServe(cmd *cobra.Command, params string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	repos, err := a.repositories(ctx)
	if err != nil {
		return err
	}
	cache := service.NewParameterCache(a.cfg.Cache.CacheTTL(), a.cfg.Cache.CleanupInterval())

	srvCfg := server.Config{
		ServiceName:  a.cfg.App.Name,
		Version:      Version,
		Address:      a.cfg.Server.Address,
		ReadTimeout:  time.Duration(a.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(a.cfg.Server.WriteTimeoutSeconds) * time.Second,
		RateLimit:    a.cfg.Server.RateLimitPerSecond,
		RateBurst:    a.cfg.Server.RateLimitBurst,
		Logger:       a.log,
	}
	if a.cfg.Metrics.Enabled {
		srvCfg.MetricsPath = a.cfg.Metrics.Path
	}
	if a.db != nil {
		srvCfg.DB = a.db
	}
	if repos != nil {
		srvCfg.Runs = repos.FitRun
	}

	switch {
	case params != "":
		f, err := newStaticForecaster(params, a.cfg.Estimator.TimeDomainMax)
		if err != nil {
			return err
		}
		srvCfg.Forecaster = f
	case repos != nil:
		srvCfg.Forecaster = service.NewForecastService(repos.FitRun, cache, a.log)
	default:
		return fmt.Errorf("serve requires --params or the database")
	}

	if a.cfg.Scheduler.Enabled {
		sched, err := a.newRefitScheduler(ctx, cache)
		if err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				a.log.WithError(err).Error("Error stopping scheduler")
			}
		}()
		a.log.WithField("next_run", sched.GetNextRun()).Info("Refit scheduler started")
	}

	srv := server.NewServer(srvCfg)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	srv.SetReady(true)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		a.log.WithField("signal", sig).Info("Shutdown signal received")
	case <-ctx.Done():
	}

	srv.SetReady(false)
	if err := srv.Shutdown(); err != nil {
		a.log.WithError(err).Error("Error during server shutdown")
	}
	a.log.Info("poll-blend server shut down")
	return nil
}

// newRefitScheduler refits from the configured corpus on the configured
// schedule, storing every run and activating it when auto_activate is set.
func (a *app) newRefitScheduler(ctx context.Context, cache *service.ParameterCache) (*scheduler.Scheduler, error) {
	repos, err := a.requireRepositories(ctx, "scheduled refits")
	if err != nil {
		return nil, err
	}
	src, err := a.source(ctx, "", "")
	if err != nil {
		return nil, err
	}
	est, err := estimator.New(estimator.FromConfig(a.cfg.Estimator), a.log)
	if err != nil {
		return nil, err
	}

	fits := service.NewFitService(est, repos.FitRun, cache, a.cfg.Scheduler.AutoActivate, a.log)
	sched := scheduler.NewScheduler(fits, a.log)
	if timeout := a.cfg.Estimator.FitTimeout(); timeout > 0 {
		sched.SetJobTimeout(timeout)
	}
	if _, err := sched.ScheduleRefit(a.cfg.Scheduler.RefitSchedule, src); err != nil {
		return nil, err
	}
	a.log.WithFields(logrus.Fields{
		"schedule":      a.cfg.Scheduler.RefitSchedule,
		"auto_activate": a.cfg.Scheduler.AutoActivate,
	}).Info("Scheduled refits configured")
	return sched, nil
}
