package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/estimator"
	"github.com/yourusername/poll-blend/internal/logger"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/paramfile"
	"github.com/yourusername/poll-blend/internal/report"
	"github.com/yourusername/poll-blend/internal/repository"
	"github.com/yourusername/poll-blend/internal/service"
	"github.com/yourusername/poll-blend/internal/validation"
)

const fitProgressInterval = 15 * time.Second

type fitFlags struct {
	input    string
	format   string
	method   string
	form     string
	output   string
	weights  string
	noStore  bool
	activate bool
	asJSON   bool
}

func newFitCmd(a *app) *cobra.Command {
	f := &fitFlags{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Estimate the variance parameters from the historical corpus",
		Long: `Fits the variance functions of both signals by maximum likelihood or by
MCMC. With the database enabled the fit is stored as a run; --output also
writes it to a YAML parameter file.`,
		Example: `  poll-blend fit --input data/observations.csv --output params.yaml
  poll-blend fit --method mcmc --form exponential --activate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runFit(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Corpus CSV file (default: configured corpus source)")
	cmd.Flags().StringVar(&f.format, "format", "", "Corpus format: standard or raw (default: corpus.format)")
	cmd.Flags().StringVar(&f.method, "method", "", "Fit method: mle or mcmc (default: estimator.method)")
	cmd.Flags().StringVar(&f.form, "form", "", "Variance form: linear or exponential (default: estimator.variance_form)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Write the fitted parameters to this YAML file")
	cmd.Flags().StringVar(&f.weights, "weights-csv", "", "Write the polling weight the fit implies at each week to this CSV file")
	cmd.Flags().BoolVar(&f.noStore, "no-store", false, "Do not store the run even when the database is enabled")
	cmd.Flags().BoolVar(&f.activate, "activate", false, "Make the stored run the one forecasts use")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func (a *app) runFit(cmd *cobra.Command, f *fitFlags) error {
	ctx := cmd.Context()

	opts := estimator.FromConfig(a.cfg.Estimator)
	if f.method != "" {
		opts.Method = models.FitMethod(f.method)
	}
	if f.form != "" {
		opts.Form = f.form
	}
	est, err := estimator.New(opts, a.log)
	if err != nil {
		return err
	}

	var runs repository.FitRunRepository
	if !f.noStore {
		repos, err := a.repositories(ctx)
		if err != nil {
			return err
		}
		if repos != nil {
			runs = repos.FitRun
		}
	}
	if f.activate && runs == nil {
		return fmt.Errorf("--activate requires the database")
	}

	src, err := a.source(ctx, f.input, f.format)
	if err != nil {
		return err
	}

	obs, err := src.Load(ctx)
	if err != nil {
		return err
	}

	svc := service.NewFitService(est, runs, nil, f.activate, a.log)
	outcome, err := a.waitForFit(ctx, svc.FitAsync(ctx, obs))
	if err != nil {
		return err
	}

	if f.output != "" {
		file := paramfile.FromResult(outcome.Result, est.Options().TimeDomainMax)
		runID := ""
		if outcome.Run != nil {
			file = paramfile.FromRun(outcome.Run, est.Options().TimeDomainMax)
			runID = outcome.Run.ID.String()
		}
		if err := paramfile.Write(f.output, file); err != nil {
			return err
		}
		logger.NewAuditLogger(a.log).LogParameterFileWritten(f.output, runID)
	}
	if f.weights != "" {
		weights, err := validation.ImpliedWeights(outcome.Result.Parameters, weeklyHorizons(est.Options().TimeDomainMax))
		if err != nil {
			return err
		}
		if err := writeFile(f.weights, func(w io.Writer) error { return report.WriteWeightsCSV(w, weights) }); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, outcome)
	}
	fmt.Fprint(out, report.GenerateFitReport(outcome.Result))
	if outcome.Run != nil {
		state := "stored"
		if outcome.Run.Active {
			state = "stored and activated"
		}
		fmt.Fprintf(out, "\nRun %s %s\n", outcome.Run.ID, state)
	}
	if f.output != "" {
		fmt.Fprintf(out, "Parameters written to %s\n", f.output)
	}
	return nil
}

// waitForFit blocks until job finishes, logging while an MCMC fit is still
// sampling.
func (a *app) waitForFit(ctx context.Context, job *service.FitJob) (*service.FitOutcome, error) {
	ticker := time.NewTicker(fitProgressInterval)
	defer ticker.Stop()

	start := time.Now()
	for {
		select {
		case <-job.Done():
			return job.Result()
		case <-ticker.C:
			a.log.WithFields(logrus.Fields{
				"job_id":  job.ID,
				"elapsed": time.Since(start).Round(time.Second),
			}).Info("Fit still running")
		case <-ctx.Done():
			return job.Wait(context.Background())
		}
	}
}

func weeklyHorizons(tMax float64) []float64 {
	var horizons []float64
	for h := 0.0; h <= tMax; h += 7 {
		horizons = append(horizons, h)
	}
	return horizons
}
