package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/corpus"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/synthetic"
)

type simulateFlags struct {
	elections int
	points    int
	maxTime   float64
	firstYear int
	seed      int64
	output    string
	params    models.VarianceModelParameters
}

func newSimulateCmd(a *app) *cobra.Command {
	f := &simulateFlags{}
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Generate a synthetic corpus from known variance parameters",
		Long: `Draws observations whose fundamentals and polling errors are Gaussian with
the given variance functions. Useful for checking that fit recovers the
parameters and for trying the pipeline without historical data.`,
		Example: `  poll-blend simulate --elections 15 --points 20 --seed 7 -o synthetic.csv`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			obs, err := synthetic.Simulate(synthetic.Config{
				Elections:         f.elections,
				PointsPerElection: f.points,
				MaxTime:           f.maxTime,
				Parameters:        f.params,
				FirstYear:         f.firstYear,
				Seed:              f.seed,
			})
			if err != nil {
				return err
			}
			if f.output == "" {
				return corpus.Write(cmd.OutOrStdout(), obs)
			}
			return writeFile(f.output, func(w io.Writer) error { return corpus.Write(w, obs) })
		},
	}
	cmd.Flags().IntVar(&f.elections, "elections", 12, "Number of elections")
	cmd.Flags().IntVar(&f.points, "points", 20, "Observations per election")
	cmd.Flags().Float64Var(&f.maxTime, "max-time", 300, "Largest days-to-election drawn")
	cmd.Flags().IntVar(&f.firstYear, "first-year", 1948, "Year of the first election")
	cmd.Flags().Int64Var(&f.seed, "seed", 0, "Random seed (default: time based)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output CSV file (default: stdout)")
	cmd.Flags().StringVar(&f.params.Form, "form", "linear", "Variance form: linear or exponential")
	cmd.Flags().Float64Var(&f.params.Fundamentals.Intercept, "fundamentals-intercept", 0.0009, "Fundamentals variance intercept")
	cmd.Flags().Float64Var(&f.params.Fundamentals.Slope, "fundamentals-slope", 0, "Fundamentals variance slope")
	cmd.Flags().Float64Var(&f.params.Polling.Intercept, "polling-intercept", 0.00005, "Polling variance intercept")
	cmd.Flags().Float64Var(&f.params.Polling.Slope, "polling-slope", 0.00002, "Polling variance slope")
	return cmd
}
