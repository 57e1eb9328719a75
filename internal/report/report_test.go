package report

import (
	"bytes"
	"encoding/csv"
	"math"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/service"
	"github.com/yourusername/poll-blend/internal/validation"
)

func TestRounding(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{Fixed(2.5, 0), "3"},
		{Fixed(0.12345, 3), "0.123"},
		{Fixed(-1.005, 1), "-1.0"},
		{Fixed(math.NaN(), 2), "n/a"},
		{Fixed(math.Inf(-1), 2), "n/a"},
		{Percent(0.504, 2), "50.40%"},
		{Percent(0.5, 1), "50.0%"},
		{Percent(math.Inf(1), 1), "n/a"},
		{Scientific(0.00008), "8.0000e-05"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.got)
	}
}

func TestGenerateFitReport(t *testing.T) {
	result := models.FitResult{
		Method: models.MethodMCMC,
		Parameters: models.VarianceModelParameters{
			Form:         "exponential",
			Fundamentals: models.SignalParameters{Intercept: 0.001, Slope: 0.002},
			Polling:      models.SignalParameters{Intercept: 0.0002, Slope: 0.01},
		},
		Samples:      make([]models.VarianceModelParameters, 40),
		Fundamentals: models.SignalDiagnostics{Signal: models.SignalFundamentals, Observations: 50, DistinctTimes: 3, LogLikelihood: 100, Status: "converged", RHat: 1.01, AcceptanceRate: 0.31, Warnings: []string{"only 3 distinct times"}},
		Polling:      models.SignalDiagnostics{Signal: models.SignalPolling, Observations: 50, DistinctTimes: 20, LogLikelihood: 120.5, Status: "converged"},
		MinTime:      0,
		MaxTime:      180,
		Elections:    10,
	}

	out := GenerateFitReport(result)
	assert.Contains(t, out, "Method: mcmc")
	assert.Contains(t, out, "Variance form: exponential")
	assert.Contains(t, out, "Log-likelihood: 220.500")
	assert.Contains(t, out, "Posterior samples: 40")
	assert.Contains(t, out, "Time range: 0 to 180 days")
	assert.Contains(t, out, "intercept: 1.0000e-03")
	assert.Contains(t, out, "r-hat: 1.010, acceptance: 31.0%")
	assert.Contains(t, out, "warning: only 3 distinct times")
	assert.Contains(t, out, "observations: 50 (20 distinct times)")
}

func TestGenerateForecastReport(t *testing.T) {
	resp, err := service.ForecastWith(models.VarianceModelParameters{
		Fundamentals: models.SignalParameters{Intercept: 0.0004},
		Polling:      models.SignalParameters{Intercept: 0.0001},
	}, models.ForecastInput{TimeToElection: 14, FundamentalsPrediction: 0.52, PollingAverage: 0.50})
	require.NoError(t, err)

	out := GenerateForecastReport(resp)
	assert.NotContains(t, out, "Run:")
	assert.Contains(t, out, "Days to election: 14")
	assert.Contains(t, out, "Posterior mean: 50.40%")
	assert.Contains(t, out, "Weights: fundamentals 20.0%, polling 80.0%")

	resp.RunID = uuid.New()
	assert.Contains(t, GenerateForecastReport(resp), "Run: "+resp.RunID.String())
}

func sampleFolds() []validation.FoldResult {
	return []validation.FoldResult{
		{
			Fold:              0,
			Elections:         []string{"2008"},
			TrainObservations: 90,
			Model:             validation.Scores{LogScore: 2.75, RMSE: 0.012, Observations: 10},
			BaselineScores:    validation.Scores{LogScore: 2.5, RMSE: 0.015, Observations: 10},
		},
		{
			Fold:      1,
			Elections: []string{"2012", "2016"},
			Error:     "insufficient data",
		},
	}
}

func TestGenerateValidationReport(t *testing.T) {
	result := &validation.Result{
		Strategy:    validation.FoldKFold,
		Folds:       sampleFolds(),
		Model:       validation.Scores{LogScore: 2.75, RMSE: 0.012, MAE: 0.01, Coverage90: 0.9, Observations: 10},
		Baseline:    validation.Scores{LogScore: 2.5, RMSE: 0.015, MAE: 0.012, Coverage90: 0.8, Observations: 10},
		Improvement: 0.25,
		Skipped:     1,
	}

	out := GenerateValidationReport(result)
	assert.Contains(t, out, "Strategy: k-fold")
	assert.Contains(t, out, "Folds: 2 (1 skipped)")
	assert.Contains(t, out, "Improvement (log score): 0.2500")
	assert.Contains(t, out, "fold 0 [2008]: model 2.7500, baseline 2.5000, n=10")
	assert.Contains(t, out, "fold 1 [2012,2016]: skipped: insufficient data")
}

func TestGenerateWalkForwardReport(t *testing.T) {
	out := GenerateWalkForwardReport(&validation.WalkForwardResult{
		Steps:       sampleFolds(),
		Consistency: 1,
		Skipped:     1,
	})
	assert.Contains(t, out, "Consistency: 100.0% of steps beat the baseline")
	assert.Contains(t, out, "step 0 [2008]")
}

func TestGenerateSignalReport(t *testing.T) {
	out := GenerateSignalReport(validation.SignalErrors{Fundamentals: 0.03, Polling: 0.02, Blend: 0.015, PollingWeight: 0.5, Observations: 120})
	assert.Contains(t, out, "Fundamentals RMSE: 3.00%")
	assert.Contains(t, out, "Blend RMSE (polling weight 0.50): 1.50%")
}

func TestWriteFoldsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFoldsCSV(&buf, sampleFolds()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "model_log_score", records[0][4])
	assert.Equal(t, []string{"0", "2008", "90", "10", "2.750000", "2.500000", "0.012000", "0.015000", ""}, records[1])
	assert.Equal(t, "2012;2016", records[2][1])
	assert.Equal(t, "insufficient data", records[2][8])
}

func TestWriteWeightsCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteWeightsCSV(&buf, []validation.HorizonWeight{
		{Horizon: 7, PollingWeight: 0.91, RMSE: 0.0123456, Observations: 40},
		{Horizon: 120, PollingWeight: 0.35, RMSE: 0.025, Observations: 200},
	}))
	assert.Equal(t, "horizon,polling_weight,rmse,observations\n7,0.91,0.012346,40\n120,0.35,0.025000,200\n", buf.String())
}
