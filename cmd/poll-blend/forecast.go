package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/report"
	"github.com/yourusername/poll-blend/internal/service"
)

type forecastFlags struct {
	params       string
	run          string
	time         float64
	fundamentals float64
	polling      float64
	asJSON       bool
}

func newForecastCmd(a *app) *cobra.Command {
	f := &forecastFlags{}
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Combine a fundamentals prediction and a polling average",
		Long: `Evaluates both variance functions at the given time to election and
returns the precision-weighted posterior. Parameters come from --params, from
the stored run --run, or from the active run.`,
		Example: `  poll-blend forecast --params params.yaml --days 30 --fundamentals 0.52 --polling 0.50`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runForecast(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.params, "params", "p", "", "YAML parameter file written by fit")
	cmd.Flags().StringVar(&f.run, "run", "", "Stored fit run id (default: the active run)")
	cmd.Flags().Float64Var(&f.time, "days", 0, "Days to election")
	cmd.Flags().Float64Var(&f.fundamentals, "fundamentals", 0, "Fundamentals prediction of the two-party share")
	cmd.Flags().Float64Var(&f.polling, "polling", 0, "Polling average of the two-party share")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the result as JSON")
	_ = cmd.MarkFlagRequired("days")
	_ = cmd.MarkFlagRequired("fundamentals")
	_ = cmd.MarkFlagRequired("polling")
	cmd.MarkFlagsMutuallyExclusive("params", "run")
	return cmd
}

func (a *app) runForecast(cmd *cobra.Command, f *forecastFlags) error {
	ctx := cmd.Context()
	in := models.ForecastInput{
		TimeToElection:         f.time,
		FundamentalsPrediction: f.fundamentals,
		PollingAverage:         f.polling,
	}

	var (
		resp *service.ForecastResponse
		err  error
	)
	switch {
	case f.params != "":
		fc, ferr := newStaticForecaster(f.params, a.cfg.Estimator.TimeDomainMax)
		if ferr != nil {
			return ferr
		}
		resp, err = fc.ForecastActive(ctx, in)

	default:
		repos, rerr := a.requireRepositories(ctx, "forecasting without --params")
		if rerr != nil {
			return rerr
		}
		svc := service.NewForecastService(repos.FitRun, nil, a.log)
		if f.run != "" {
			id, perr := uuid.Parse(f.run)
			if perr != nil {
				return fmt.Errorf("invalid run id %q: %w", f.run, perr)
			}
			resp, err = svc.Forecast(ctx, id, in)
		} else {
			resp, err = svc.ForecastActive(ctx, in)
		}
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(out, resp)
	}
	fmt.Fprint(out, report.GenerateForecastReport(resp))
	return nil
}
