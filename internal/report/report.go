// Package report formats fits, forecasts and validation results for the
// terminal and for spreadsheets.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/service"
	"github.com/yourusername/poll-blend/internal/validation"
)

// Fixed rounds x to places decimals. Non-finite values print as "n/a"
// because decimal cannot represent them.
func Fixed(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(x).StringFixed(places)
}

// Percent formats a share as a percentage with places decimals.
func Percent(x float64, places int32) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "n/a"
	}
	return decimal.NewFromFloat(x).Shift(2).StringFixed(places) + "%"
}

// Scientific formats small variances, which fixed notation would round to
// zero.
func Scientific(x float64) string {
	return strconv.FormatFloat(x, 'e', 4, 64)
}

// GenerateFitReport formats an estimator result for terminal output
func GenerateFitReport(result models.FitResult) string {
	var builder strings.Builder
	builder.WriteString("Fit Report\n")
	builder.WriteString("==========\n")
	builder.WriteString(fmt.Sprintf("Method: %s\n", result.Method))
	builder.WriteString(fmt.Sprintf("Variance form: %s\n", formName(result.Parameters.Form)))
	builder.WriteString(fmt.Sprintf("Elections: %d\n", result.Elections))
	builder.WriteString(fmt.Sprintf("Time range: %s to %s days\n", Fixed(result.MinTime, 0), Fixed(result.MaxTime, 0)))
	builder.WriteString(fmt.Sprintf("Log-likelihood: %s\n", Fixed(result.LogLikelihood(), 3)))
	if result.HasSamples() {
		builder.WriteString(fmt.Sprintf("Posterior samples: %d\n", len(result.Samples)))
	}
	builder.WriteString(fmt.Sprintf("Duration: %s\n", result.Duration.Round(time.Millisecond)))
	builder.WriteString("\n")

	for _, signal := range models.Signals {
		d := result.Diagnostics(signal)
		p := result.Parameters.For(signal)
		builder.WriteString(fmt.Sprintf("%s\n", signal))
		builder.WriteString(fmt.Sprintf("  intercept: %s\n", Scientific(p.Intercept)))
		builder.WriteString(fmt.Sprintf("  slope: %s\n", Scientific(p.Slope)))
		builder.WriteString(fmt.Sprintf("  observations: %d (%d distinct times)\n", d.Observations, d.DistinctTimes))
		builder.WriteString(fmt.Sprintf("  status: %s after %d iterations\n", d.Status, d.Iterations))
		if d.RHat > 0 {
			builder.WriteString(fmt.Sprintf("  r-hat: %s, acceptance: %s\n", Fixed(d.RHat, 3), Percent(d.AcceptanceRate, 1)))
		}
		for _, w := range d.Warnings {
			builder.WriteString(fmt.Sprintf("  warning: %s\n", w))
		}
	}
	return builder.String()
}

// GenerateForecastReport formats a forecast for terminal output
func GenerateForecastReport(resp *service.ForecastResponse) string {
	var builder strings.Builder
	builder.WriteString("Forecast\n")
	builder.WriteString("========\n")
	if resp.RunID != uuid.Nil {
		builder.WriteString(fmt.Sprintf("Run: %s\n", resp.RunID))
	}
	builder.WriteString(fmt.Sprintf("Days to election: %s\n", Fixed(resp.TimeToElection, 0)))
	builder.WriteString(fmt.Sprintf("Posterior mean: %s\n", Percent(resp.Mean, 2)))
	builder.WriteString(fmt.Sprintf("Posterior std dev: %s\n", Percent(resp.StdDev(), 2)))
	builder.WriteString(fmt.Sprintf("95%% interval: %s to %s\n", Percent(resp.IntervalLow, 2), Percent(resp.IntervalHigh, 2)))
	builder.WriteString(fmt.Sprintf("Win probability: %s\n", Percent(resp.WinProbability, 1)))
	builder.WriteString(fmt.Sprintf("Weights: fundamentals %s, polling %s\n",
		Percent(resp.FundamentalsWeight(), 1), Percent(resp.PollingWeight(), 1)))
	return builder.String()
}

// GenerateValidationReport formats a cross-validation result for terminal
// output
func GenerateValidationReport(result *validation.Result) string {
	var builder strings.Builder
	builder.WriteString("Cross-Validation Report\n")
	builder.WriteString("=======================\n")
	builder.WriteString(fmt.Sprintf("Strategy: %s\n", result.Strategy))
	builder.WriteString(fmt.Sprintf("Folds: %d (%d skipped)\n", len(result.Folds), result.Skipped))
	writeComparison(&builder, result.Model, result.Baseline, result.Improvement)
	builder.WriteString("\n")
	writeFolds(&builder, "fold", result.Folds)
	return builder.String()
}

// GenerateWalkForwardReport formats a walk-forward result for terminal
// output
func GenerateWalkForwardReport(result *validation.WalkForwardResult) string {
	var builder strings.Builder
	builder.WriteString("Walk-Forward Report\n")
	builder.WriteString("===================\n")
	builder.WriteString(fmt.Sprintf("Steps: %d (%d skipped)\n", len(result.Steps), result.Skipped))
	builder.WriteString(fmt.Sprintf("Consistency: %s of steps beat the baseline\n", Percent(result.Consistency, 1)))
	writeComparison(&builder, result.Model, result.Baseline, result.Improvement)
	builder.WriteString("\n")
	writeFolds(&builder, "step", result.Steps)
	return builder.String()
}

// GenerateSignalReport formats the single-signal and blend errors
func GenerateSignalReport(errs validation.SignalErrors) string {
	var builder strings.Builder
	builder.WriteString("Signal Errors\n")
	builder.WriteString("=============\n")
	builder.WriteString(fmt.Sprintf("Observations: %d\n", errs.Observations))
	builder.WriteString(fmt.Sprintf("Fundamentals RMSE: %s\n", Percent(errs.Fundamentals, 2)))
	builder.WriteString(fmt.Sprintf("Polling RMSE: %s\n", Percent(errs.Polling, 2)))
	builder.WriteString(fmt.Sprintf("Blend RMSE (polling weight %s): %s\n", Fixed(errs.PollingWeight, 2), Percent(errs.Blend, 2)))
	return builder.String()
}

func writeComparison(builder *strings.Builder, model, baseline validation.Scores, improvement float64) {
	builder.WriteString(fmt.Sprintf("%-10s %12s %10s %10s %10s %8s\n", "", "log score", "rmse", "mae", "90% cover", "n"))
	for _, row := range []struct {
		name   string
		scores validation.Scores
	}{{"model", model}, {"baseline", baseline}} {
		builder.WriteString(fmt.Sprintf("%-10s %12s %10s %10s %10s %8d\n",
			row.name,
			Fixed(row.scores.LogScore, 4),
			Percent(row.scores.RMSE, 2),
			Percent(row.scores.MAE, 2),
			Percent(row.scores.Coverage90, 1),
			row.scores.Observations,
		))
	}
	builder.WriteString(fmt.Sprintf("Improvement (log score): %s\n", Fixed(improvement, 4)))
}

func writeFolds(builder *strings.Builder, label string, folds []validation.FoldResult) {
	for _, f := range folds {
		name := fmt.Sprintf("%s %d [%s]", label, f.Fold, strings.Join(f.Elections, ","))
		if f.Skipped() {
			builder.WriteString(fmt.Sprintf("%s: skipped: %s\n", name, f.Error))
			continue
		}
		builder.WriteString(fmt.Sprintf("%s: model %s, baseline %s, n=%d\n",
			name, Fixed(f.Model.LogScore, 4), Fixed(f.BaselineScores.LogScore, 4), f.Model.Observations))
	}
}

// WriteFoldsCSV exports per-fold scores for spreadsheets
func WriteFoldsCSV(w io.Writer, folds []validation.FoldResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"fold", "elections", "train_observations", "test_observations",
		"model_log_score", "baseline_log_score", "model_rmse", "baseline_rmse", "error",
	}); err != nil {
		return err
	}
	for _, f := range folds {
		if err := cw.Write([]string{
			strconv.Itoa(f.Fold),
			strings.Join(f.Elections, ";"),
			strconv.Itoa(f.TrainObservations),
			strconv.Itoa(f.Model.Observations),
			Fixed(f.Model.LogScore, 6),
			Fixed(f.BaselineScores.LogScore, 6),
			Fixed(f.Model.RMSE, 6),
			Fixed(f.BaselineScores.RMSE, 6),
			f.Error,
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWeightsCSV exports the per-horizon optimal weights for spreadsheets
func WriteWeightsCSV(w io.Writer, weights []validation.HorizonWeight) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"horizon", "polling_weight", "rmse", "observations"}); err != nil {
		return err
	}
	for _, hw := range weights {
		if err := cw.Write([]string{
			Fixed(hw.Horizon, 0),
			Fixed(hw.PollingWeight, 2),
			Fixed(hw.RMSE, 6),
			strconv.Itoa(hw.Observations),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formName(form string) string {
	if form == "" {
		return "linear"
	}
	return form
}
