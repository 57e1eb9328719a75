package validation

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/poll-blend/internal/estimator"
	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/synthetic"
	"github.com/yourusername/poll-blend/internal/variance"
)

// pollsSharpenTruth makes the polls far better than fundamentals near the
// election and far worse early on, so a fixed 50/50 blend is miscalibrated.
var pollsSharpenTruth = models.VarianceModelParameters{
	Form:         variance.FormLinear,
	Fundamentals: models.SignalParameters{Intercept: 0.0009, Slope: 0},
	Polling:      models.SignalParameters{Intercept: 0.00005, Slope: 0.00002},
}

func corpus(t *testing.T, elections, points int) []models.Observation {
	t.Helper()
	obs, err := synthetic.Simulate(synthetic.Config{
		Elections:         elections,
		PointsPerElection: points,
		MaxTime:           300,
		Parameters:        pollsSharpenTruth,
		Seed:              11,
	})
	require.NoError(t, err)
	return obs
}

func testOptions() Options {
	return Options{
		Parallelism: 4,
		Estimator:   estimator.Options{TimeDomainMax: 300},
	}
}

func TestBuildFoldsByElection(t *testing.T) {
	obs := corpus(t, 6, 10)

	folds, err := BuildFolds(obs, FoldByElection, 0)
	require.NoError(t, err)
	require.Len(t, folds, 6)

	ids := ElectionIDs(obs)
	for i, f := range folds {
		assert.Equal(t, []string{ids[i]}, f.Elections)
		assert.Len(t, f.Test, 10)
		assert.Len(t, f.Train, 50)
		for _, o := range f.Train {
			assert.NotEqual(t, ids[i], o.ElectionID, "held-out election leaked into training")
		}
	}
}

func TestBuildFoldsKFoldRoundRobin(t *testing.T) {
	obs := corpus(t, 5, 4)
	ids := ElectionIDs(obs)

	folds, err := BuildFolds(obs, FoldKFold, 2)
	require.NoError(t, err)
	require.Len(t, folds, 2)

	assert.Equal(t, []string{ids[0], ids[2], ids[4]}, folds[0].Elections)
	assert.Equal(t, []string{ids[1], ids[3]}, folds[1].Elections)
	assert.Len(t, folds[0].Test, 12)
	assert.Len(t, folds[1].Test, 8)

	for _, f := range folds {
		held := make(map[string]bool)
		for _, id := range f.Elections {
			held[id] = true
		}
		for _, o := range f.Test {
			assert.True(t, held[o.ElectionID])
		}
		for _, o := range f.Train {
			assert.False(t, held[o.ElectionID], "election %s split across train and test", o.ElectionID)
		}
	}
}

func TestBuildFoldsErrors(t *testing.T) {
	single := corpus(t, 1, 5)
	_, err := BuildFolds(single, FoldByElection, 0)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	obs := corpus(t, 3, 5)
	_, err = BuildFolds(obs, FoldKFold, 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = BuildFolds(obs, FoldKFold, 4)
	assert.ErrorIs(t, err, models.ErrInsufficientData)

	_, err = BuildFolds(obs, "leave-two-out", 2)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFitBaseline(t *testing.T) {
	train := []models.Observation{
		{ElectionID: "a", FundamentalsPrediction: 0.52, PollingAverage: 0.48, ActualOutcome: 0.49},
		{ElectionID: "b", FundamentalsPrediction: 0.50, PollingAverage: 0.54, ActualOutcome: 0.53},
	}

	b, err := FitBaseline(train, 0.5)
	require.NoError(t, err)
	assert.InDelta(t, (0.01*0.01+0.01*0.01)/2, b.Variance, 1e-15)

	f := b.Forecast(models.ForecastInput{TimeToElection: 3, FundamentalsPrediction: 0.6, PollingAverage: 0.4})
	assert.InDelta(t, 0.5, f.Mean, 1e-15)
	assert.Equal(t, 3.0, f.TimeToElection)

	fundamentalsOnly, err := FitBaseline(train, 0)
	require.NoError(t, err)
	assert.InDelta(t, (0.03*0.03+0.03*0.03)/2, fundamentalsOnly.Variance, 1e-15)

	_, err = FitBaseline(train, 1.5)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = FitBaseline(nil, 0.5)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestCrossValidateBeatsFixedBlend(t *testing.T) {
	obs := corpus(t, 20, 30)

	result, err := CrossValidate(context.Background(), obs, testOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, FoldByElection, result.Strategy)
	assert.Len(t, result.Folds, 20)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, len(obs), result.Model.Observations)
	assert.Equal(t, len(obs), result.Baseline.Observations)
	assert.GreaterOrEqual(t, result.Model.LogScore, result.Baseline.LogScore-0.05)
	assert.InDelta(t, result.Model.LogScore-result.Baseline.LogScore, result.Improvement, 1e-12)
	assert.Greater(t, result.Model.Coverage90, 0.8)

	for _, f := range result.Folds {
		assert.False(t, f.Skipped())
		assert.Len(t, f.Elections, 1)
		assert.NoError(t, variance.ValidateParameters(f.Parameters, 300))
	}
}

func TestCrossValidateKFold(t *testing.T) {
	obs := corpus(t, 9, 20)
	opts := testOptions()
	opts.Strategy = FoldKFold
	opts.Folds = 3

	result, err := CrossValidate(context.Background(), obs, opts, nil)
	require.NoError(t, err)
	assert.Len(t, result.Folds, 3)
	assert.Equal(t, len(obs), result.Model.Observations)
}

// flatElection has every observation at one time, so on its own it cannot
// identify a slope.
func flatElection(id string, n int, rng *rand.Rand) []models.Observation {
	out := make([]models.Observation, n)
	for i := range out {
		out[i] = models.Observation{
			ElectionID:             id,
			TimeToElection:         10,
			FundamentalsPrediction: 0.5 + 0.02*rng.NormFloat64(),
			PollingAverage:         0.5 + 0.01*rng.NormFloat64(),
			ActualOutcome:          0.5,
		}
	}
	return out
}

func spreadElection(id string, n int, rng *rand.Rand) []models.Observation {
	out := make([]models.Observation, n)
	for i := range out {
		out[i] = models.Observation{
			ElectionID:             id,
			TimeToElection:         float64(i * 5),
			FundamentalsPrediction: 0.5 + 0.02*rng.NormFloat64(),
			PollingAverage:         0.5 + 0.01*rng.NormFloat64(),
			ActualOutcome:          0.5,
		}
	}
	return out
}

func TestCrossValidateSkipsUnfittableFold(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	obs := append(flatElection("2000", 20, rng), spreadElection("2004", 40, rng)...)

	result, err := CrossValidate(context.Background(), obs, testOptions(), nil)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Folds, 2)
	assert.False(t, result.Folds[0].Skipped(), "training on 2004 should fit")
	assert.True(t, result.Folds[1].Skipped(), "training on 2000 alone has one distinct time")
	assert.Equal(t, 20, result.Model.Observations)
}

func TestCrossValidateAllFoldsFail(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	obs := append(flatElection("2000", 10, rng), flatElection("2004", 10, rng)...)

	_, err := CrossValidate(context.Background(), obs, testOptions(), nil)
	assert.ErrorIs(t, err, errAllFoldsFailed)
}

func TestCrossValidateCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CrossValidate(ctx, corpus(t, 4, 10), testOptions(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCrossValidateRejectsBadOptions(t *testing.T) {
	weight := 2.0
	opts := testOptions()
	opts.BaselineWeight = &weight

	_, err := CrossValidate(context.Background(), corpus(t, 3, 5), opts, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestWalkForward(t *testing.T) {
	obs := corpus(t, 8, 25)
	ids := ElectionIDs(obs)

	result, err := WalkForward(context.Background(), obs, testOptions(), nil)
	require.NoError(t, err)

	require.Len(t, result.Steps, 5)
	for i, step := range result.Steps {
		assert.Equal(t, []string{ids[3+i]}, step.Elections)
		assert.Equal(t, (3+i)*25, step.TrainObservations)
	}
	assert.Equal(t, 5*25, result.Model.Observations)
	assert.GreaterOrEqual(t, result.Consistency, 0.0)
	assert.LessOrEqual(t, result.Consistency, 1.0)

	_, err = WalkForward(context.Background(), corpus(t, 3, 5), testOptions(), nil)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestOptimalWeights(t *testing.T) {
	obs := []models.Observation{
		{ElectionID: "a", TimeToElection: 5, FundamentalsPrediction: 0.55, PollingAverage: 0.50, ActualOutcome: 0.50},
		{ElectionID: "b", TimeToElection: 100, FundamentalsPrediction: 0.50, PollingAverage: 0.56, ActualOutcome: 0.50},
	}

	weights, err := OptimalWeights(obs, 0.01)
	require.NoError(t, err)
	require.Len(t, weights, 2)

	assert.Equal(t, 5.0, weights[0].Horizon)
	assert.InDelta(t, 1.0, weights[0].PollingWeight, 1e-12)
	assert.InDelta(t, 0.0, weights[0].RMSE, 1e-12)
	assert.Equal(t, 1, weights[0].Observations)

	// Minimizes 0.05^2 (1-w)^2 + 0.06^2 w^2, whose optimum 0.4098 rounds
	// to 0.41 on the grid.
	assert.Equal(t, 100.0, weights[1].Horizon)
	assert.InDelta(t, 0.41, weights[1].PollingWeight, 1e-12)
	assert.Equal(t, 2, weights[1].Observations)

	_, err = OptimalWeights(obs, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	_, err = OptimalWeights(nil, 0.1)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestOptimalWeightsGroupsEqualHorizons(t *testing.T) {
	obs := corpus(t, 4, 10)
	weights, err := OptimalWeights(obs, 0.05)
	require.NoError(t, err)

	distinct := make(map[float64]bool)
	for _, o := range obs {
		distinct[o.TimeToElection] = true
	}
	assert.Len(t, weights, len(distinct))
	assert.Equal(t, len(obs), weights[len(weights)-1].Observations)
	for i := 1; i < len(weights); i++ {
		assert.Greater(t, weights[i].Horizon, weights[i-1].Horizon)
	}
}

func TestImpliedWeights(t *testing.T) {
	params := models.VarianceModelParameters{
		Fundamentals: models.SignalParameters{Intercept: 0.0004},
		Polling:      models.SignalParameters{Intercept: 0.0001, Slope: 0.000003},
	}

	weights, err := ImpliedWeights(params, []float64{0, 100})
	require.NoError(t, err)
	assert.InDelta(t, 0.8, weights[0].PollingWeight, 1e-12)
	assert.InDelta(t, 0.5, weights[1].PollingWeight, 1e-12)
}

func TestSignalRMSE(t *testing.T) {
	obs := []models.Observation{
		{ElectionID: "a", FundamentalsPrediction: 0.53, PollingAverage: 0.49, ActualOutcome: 0.50},
		{ElectionID: "b", FundamentalsPrediction: 0.47, PollingAverage: 0.51, ActualOutcome: 0.50},
	}

	got := SignalRMSE(obs, 0.25)
	assert.InDelta(t, 0.03, got.Fundamentals, 1e-12)
	assert.InDelta(t, 0.01, got.Polling, 1e-12)
	assert.InDelta(t, math.Abs(0.75*0.03-0.25*0.01), got.Blend, 1e-12)
	assert.Equal(t, 2, got.Observations)
}

func ExampleOptimalWeights() {
	obs := []models.Observation{
		{ElectionID: "2016", TimeToElection: 0, FundamentalsPrediction: 0.52, PollingAverage: 0.49, ActualOutcome: 0.49},
	}
	weights, _ := OptimalWeights(obs, 0.5)
	fmt.Println(weights[0].PollingWeight)
	// Output: 1
}
