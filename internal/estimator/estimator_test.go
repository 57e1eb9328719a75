package estimator

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/synthetic"
	"github.com/yourusername/poll-blend/internal/variance"
)

var linearTruth = models.VarianceModelParameters{
	Form:         variance.FormLinear,
	Fundamentals: models.SignalParameters{Intercept: 0.001, Slope: 0.00001},
	Polling:      models.SignalParameters{Intercept: 0.0004, Slope: 0.000005},
}

func simulate(t *testing.T, params models.VarianceModelParameters, elections, points int, seed int64) []models.Observation {
	t.Helper()
	obs, err := synthetic.Simulate(synthetic.Config{
		Elections:         elections,
		PointsPerElection: points,
		MaxTime:           300,
		Parameters:        params,
		Seed:              seed,
	})
	require.NoError(t, err)
	return obs
}

func newEstimator(t *testing.T, opts Options) *Estimator {
	t.Helper()
	est, err := New(opts, nil)
	require.NoError(t, err)
	return est
}

func TestNewAppliesDefaults(t *testing.T) {
	est := newEstimator(t, Options{})
	opts := est.Options()

	assert.Equal(t, 365.0, opts.TimeDomainMax)
	assert.Equal(t, 5, opts.MinObservationsPerSignal)
	assert.Equal(t, 1e-9, opts.Tolerance)
	assert.Equal(t, 5000, opts.MaxIterations)
	assert.Equal(t, models.MethodMLE, opts.Method)
	assert.Equal(t, variance.FormLinear, opts.Form)
	assert.Equal(t, 2000, opts.MCMC.Samples)
	assert.Equal(t, 4, opts.MCMC.Chains)
}

func TestNewRejectsUnknownSettings(t *testing.T) {
	_, err := New(Options{Method: "bootstrap"}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = New(Options{Form: "cubic"}, nil)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestFitInsufficientData(t *testing.T) {
	est := newEstimator(t, Options{})
	one := models.Observation{ElectionID: "2016", TimeToElection: 10, FundamentalsPrediction: 0.5, PollingAverage: 0.49, ActualOutcome: 0.51}

	tests := []struct {
		name string
		obs  []models.Observation
	}{
		{"empty", nil},
		{"single observation", []models.Observation{one}},
		{"one distinct time", []models.Observation{one, one, one}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := est.Fit(context.Background(), tt.obs)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInsufficientData))

			var ide *models.InsufficientDataError
			require.True(t, errors.As(err, &ide))
			assert.Equal(t, 2, ide.Required)
		})
	}
}

func TestFitRejectsInvalidObservation(t *testing.T) {
	obs := simulate(t, linearTruth, 2, 5, 1)
	obs[3].TimeToElection = -4

	_, err := newEstimator(t, Options{}).Fit(context.Background(), obs)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "observation 3")

	obs[3].TimeToElection = 4
	obs[7].PollingAverage = math.NaN()
	_, err = newEstimator(t, Options{}).Fit(context.Background(), obs)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	assert.Contains(t, err.Error(), "observation 7")
}

func TestFitRecoversLinearParameters(t *testing.T) {
	obs := simulate(t, linearTruth, 50, 100, 11)

	result, err := newEstimator(t, Options{}).Fit(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, models.MethodMLE, result.Method)
	assert.False(t, result.HasSamples())
	assert.Equal(t, 50, result.Elections)
	assert.InEpsilon(t, linearTruth.Fundamentals.Intercept, result.Parameters.Fundamentals.Intercept, 0.25)
	assert.InEpsilon(t, linearTruth.Fundamentals.Slope, result.Parameters.Fundamentals.Slope, 0.25)
	assert.InEpsilon(t, linearTruth.Polling.Intercept, result.Parameters.Polling.Intercept, 0.25)
	assert.InEpsilon(t, linearTruth.Polling.Slope, result.Parameters.Polling.Slope, 0.25)
	assert.NoError(t, variance.ValidateParameters(result.Parameters, 365))
	assert.Empty(t, result.Warnings())
}

func TestFitMaximizesLikelihood(t *testing.T) {
	obs := simulate(t, linearTruth, 10, 40, 5)

	result, err := newEstimator(t, Options{}).Fit(context.Background(), obs)
	require.NoError(t, err)

	atTruth, err := JointLogLikelihood(linearTruth, obs)
	require.NoError(t, err)
	atFit, err := JointLogLikelihood(result.Parameters, obs)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, atFit, atTruth-1e-6)
	assert.InDelta(t, atFit, result.LogLikelihood(), 1e-6)
	assert.Greater(t, result.Fundamentals.Iterations, 0)
	assert.NotEmpty(t, result.Polling.Status)
}

func TestFitEstimateTightensWithMoreData(t *testing.T) {
	est := newEstimator(t, Options{})
	errorAt := func(n int) float64 {
		worst := 0.0
		for seed := int64(1); seed <= 3; seed++ {
			result, err := est.Fit(context.Background(), simulate(t, linearTruth, n, 50, seed))
			require.NoError(t, err)
			for _, tt := range []float64{0, 150, 300} {
				got := variance.Linear{}.Variance(tt, result.Parameters.Polling)
				want := variance.Linear{}.Variance(tt, linearTruth.Polling)
				worst = math.Max(worst, math.Abs(got-want)/want)
			}
		}
		return worst
	}

	small, large := errorAt(4), errorAt(80)
	assert.Less(t, large, small)
	assert.Less(t, large, 0.25)
}

func TestFitExponentialForm(t *testing.T) {
	truth := models.VarianceModelParameters{
		Form:         variance.FormExponential,
		Fundamentals: models.SignalParameters{Intercept: 0.0005, Slope: 0.005},
		Polling:      models.SignalParameters{Intercept: 0.0001, Slope: 0.01},
	}
	obs := simulate(t, truth, 50, 100, 8)

	result, err := newEstimator(t, Options{Form: variance.FormExponential}).Fit(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, variance.FormExponential, result.Parameters.Form)
	assert.InEpsilon(t, truth.Fundamentals.Intercept, result.Parameters.Fundamentals.Intercept, 0.25)
	assert.InEpsilon(t, truth.Fundamentals.Slope, result.Parameters.Fundamentals.Slope, 0.25)
	assert.InEpsilon(t, truth.Polling.Intercept, result.Parameters.Polling.Intercept, 0.25)
	assert.InEpsilon(t, truth.Polling.Slope, result.Parameters.Polling.Slope, 0.25)
}

func TestFitSparseTimesWarnsButProceeds(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	var obs []models.Observation
	for i := 0; i < 90; i++ {
		tt := float64(100 * (i % 3))
		obs = append(obs, models.Observation{
			ElectionID:             "2020",
			TimeToElection:         tt,
			FundamentalsPrediction: 0.5 + math.Sqrt(0.001+0.00001*tt)*rng.NormFloat64(),
			PollingAverage:         0.5 + math.Sqrt(0.0002+0.00002*tt)*rng.NormFloat64(),
			ActualOutcome:          0.5,
		})
	}

	result, err := newEstimator(t, Options{MinObservationsPerSignal: 5}).Fit(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Fundamentals.DistinctTimes)
	assert.Len(t, result.Warnings(), 2)
	assert.Contains(t, result.Fundamentals.Warnings[0], "3 distinct time points")
}

func TestFitDegenerateResiduals(t *testing.T) {
	var obs []models.Observation
	for i := 0; i < 10; i++ {
		obs = append(obs, models.Observation{ElectionID: "2012", TimeToElection: float64(i * 10), FundamentalsPrediction: 0.52, PollingAverage: 0.52, ActualOutcome: 0.52})
	}

	_, err := newEstimator(t, Options{}).Fit(context.Background(), obs)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFitFailure)

	var ffe *models.FitFailureError
	require.True(t, errors.As(err, &ffe))
	assert.Equal(t, statusDegenerate, ffe.Status)
}

func TestFitHonoursCancellation(t *testing.T) {
	obs := simulate(t, linearTruth, 10, 40, 2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEstimator(t, Options{}).Fit(ctx, obs)
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrFitFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitMCMC(t *testing.T) {
	obs := simulate(t, linearTruth, 20, 100, 21)
	opts := Options{
		Method: models.MethodMCMC,
		MCMC:   MCMCOptions{Samples: 400, BurnIn: 600, Chains: 2, Seed: 5},
	}

	mle, err := newEstimator(t, Options{}).Fit(context.Background(), obs)
	require.NoError(t, err)
	first, err := newEstimator(t, opts).Fit(context.Background(), obs)
	require.NoError(t, err)
	second, err := newEstimator(t, opts).Fit(context.Background(), obs)
	require.NoError(t, err)

	assert.Equal(t, models.MethodMCMC, first.Method)
	require.Len(t, first.Samples, 800)
	assert.Equal(t, first.Parameters, second.Parameters, "same seed must reproduce")

	for _, s := range models.Signals {
		d := first.Diagnostics(s)
		assert.Greater(t, d.AcceptanceRate, 0.05)
		assert.Less(t, d.AcceptanceRate, 0.9)
		assert.Greater(t, d.RHat, 0.0)
		assert.Less(t, d.RHat, 1.5)

		for _, tt := range []float64{0, 300} {
			got := variance.Linear{}.Variance(tt, first.Parameters.For(s))
			want := variance.Linear{}.Variance(tt, mle.Parameters.For(s))
			assert.InEpsilon(t, want, got, 0.15, "signal %s t=%v", s, tt)
		}
	}
	for _, sample := range first.Samples {
		assert.NoError(t, variance.ValidateParameters(sample, 365))
	}
}

func TestLogLikelihoodMatchesFormula(t *testing.T) {
	obs := []models.Observation{
		{ElectionID: "a", TimeToElection: 0, FundamentalsPrediction: 0.52, PollingAverage: 0.50, ActualOutcome: 0.51},
		{ElectionID: "a", TimeToElection: 100, FundamentalsPrediction: 0.47, PollingAverage: 0.53, ActualOutcome: 0.51},
	}
	p := models.SignalParameters{Intercept: 0.001, Slope: 0.00002}

	want := 0.0
	for _, o := range obs {
		v := p.Intercept + p.Slope*o.TimeToElection
		r := o.FundamentalsPrediction - o.ActualOutcome
		want += -0.5*math.Log(2*math.Pi*v) - r*r/(2*v)
	}

	got := LogLikelihood(variance.Linear{}, models.SignalFundamentals, p, obs)
	assert.InDelta(t, want, got, 1e-12)

	bad := models.SignalParameters{Intercept: 0.001, Slope: -0.001}
	assert.True(t, math.IsInf(LogLikelihood(variance.Linear{}, models.SignalFundamentals, bad, obs), -1))
}

func TestSplitRHat(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	draw := func(shift float64) [][]float64 {
		out := make([][]float64, 2000)
		for i := range out {
			out[i] = []float64{rng.NormFloat64() + shift, rng.NormFloat64()}
		}
		return out
	}

	mixed := splitRHat([][][]float64{draw(0), draw(0), draw(0), draw(0)})
	assert.InDelta(t, 1.0, mixed, 0.02)

	stuck := splitRHat([][][]float64{draw(0), draw(0), draw(5), draw(5)})
	assert.Greater(t, stuck, RHatThreshold)

	assert.Equal(t, 0.0, splitRHat([][][]float64{{{1}, {2}}}))
}
