package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/yourusername/poll-blend/internal/metrics"
	"github.com/yourusername/poll-blend/internal/report"
	"github.com/yourusername/poll-blend/internal/validation"
)

type validateFlags struct {
	input       string
	format      string
	strategy    string
	folds       int
	walkForward bool
	weightsCSV  string
	foldsCSV    string
	asJSON      bool
}

// validationOutput is what --json prints.
type validationOutput struct {
	CrossValidation *validation.Result            `json:"cross_validation"`
	WalkForward     *validation.WalkForwardResult `json:"walk_forward,omitempty"`
	Signals         validation.SignalErrors       `json:"signals"`
}

func newValidateCmd(a *app) *cobra.Command {
	f := &validateFlags{}
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Score the model on held-out elections against a fixed-weight blend",
		Long: `Refits the model with each fold of elections held out and scores the
held-out observations by predictive log density, RMSE and interval coverage.
The same scores are computed for a fixed-weight blend of the two signals.`,
		Example: `  poll-blend validate --input data/observations.csv --walk-forward
  poll-blend validate --strategy k-fold --folds 4 --weights-csv weights.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, f)
		},
	}
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Corpus CSV file (default: configured corpus source)")
	cmd.Flags().StringVar(&f.format, "format", "", "Corpus format: standard or raw (default: corpus.format)")
	cmd.Flags().StringVar(&f.strategy, "strategy", "", "Fold strategy: by-election or k-fold (default: validation.cross_validation_fold_strategy)")
	cmd.Flags().IntVar(&f.folds, "folds", 0, "Number of folds for k-fold (default: validation.folds)")
	cmd.Flags().BoolVar(&f.walkForward, "walk-forward", false, "Also run the expanding-window evaluation")
	cmd.Flags().StringVar(&f.weightsCSV, "weights-csv", "", "Write the per-horizon optimal polling weights to this CSV file")
	cmd.Flags().StringVar(&f.foldsCSV, "folds-csv", "", "Write per-fold scores to this CSV file")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, f *validateFlags) error {
	ctx := cmd.Context()

	src, err := a.source(ctx, f.input, f.format)
	if err != nil {
		return err
	}
	obs, err := src.Load(ctx)
	if err != nil {
		return err
	}

	opts := validation.FromConfig(a.cfg.Validation, a.cfg.Estimator)
	if f.strategy != "" {
		opts.Strategy = validation.FoldStrategy(f.strategy)
	}
	if f.folds > 0 {
		opts.Folds = f.folds
	}

	out := validationOutput{}
	out.CrossValidation, err = validation.CrossValidate(ctx, obs, opts, a.log)
	if err != nil {
		return err
	}
	metrics.RecordValidation("cross_validation", out.CrossValidation.Model.LogScore, out.CrossValidation.Baseline.LogScore)

	if f.walkForward {
		out.WalkForward, err = validation.WalkForward(ctx, obs, opts, a.log)
		if err != nil {
			return err
		}
		metrics.RecordValidation("walk_forward", out.WalkForward.Model.LogScore, out.WalkForward.Baseline.LogScore)
	}
	out.Signals = validation.SignalRMSE(obs, a.cfg.Validation.BaselineWeight)

	if f.weightsCSV != "" {
		weights, err := validation.OptimalWeights(obs, a.cfg.Validation.WeightGridStep)
		if err != nil {
			return err
		}
		if err := writeFile(f.weightsCSV, func(w io.Writer) error { return report.WriteWeightsCSV(w, weights) }); err != nil {
			return err
		}
	}
	if f.foldsCSV != "" {
		if err := writeFile(f.foldsCSV, func(w io.Writer) error { return report.WriteFoldsCSV(w, out.CrossValidation.Folds) }); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if f.asJSON {
		return writeJSON(w, out)
	}
	fmt.Fprint(w, report.GenerateValidationReport(out.CrossValidation))
	if out.WalkForward != nil {
		fmt.Fprintln(w)
		fmt.Fprint(w, report.GenerateWalkForwardReport(out.WalkForward))
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, report.GenerateSignalReport(out.Signals))
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return file.Close()
}
