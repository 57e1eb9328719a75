package synthetic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/poll-blend/internal/models"
)

func TestSimulateShapeAndReproducibility(t *testing.T) {
	cfg := Config{
		Elections:         4,
		PointsPerElection: 10,
		MaxTime:           200,
		Parameters: models.VarianceModelParameters{
			Fundamentals: models.SignalParameters{Intercept: 0.0004, Slope: 0.00001},
			Polling:      models.SignalParameters{Intercept: 0.0001, Slope: 0.00002},
		},
		Seed: 42,
	}

	first, err := Simulate(cfg)
	require.NoError(t, err)
	second, err := Simulate(cfg)
	require.NoError(t, err)

	require.Len(t, first, 40)
	assert.Equal(t, first, second)
	assert.Equal(t, "1948", first[0].ElectionID)
	assert.Equal(t, "1960", first[39].ElectionID)
	for _, o := range first {
		assert.GreaterOrEqual(t, o.TimeToElection, 0.0)
		assert.LessOrEqual(t, o.TimeToElection, 200.0)
		assert.GreaterOrEqual(t, o.ActualOutcome, 0.44)
		assert.LessOrEqual(t, o.ActualOutcome, 0.56)
	}
}

func TestSimulateResidualVarianceMatches(t *testing.T) {
	cfg := Config{
		Elections:         50,
		PointsPerElection: 200,
		MaxTime:           1,
		Parameters: models.VarianceModelParameters{
			Fundamentals: models.SignalParameters{Intercept: 0.0009, Slope: 0},
			Polling:      models.SignalParameters{Intercept: 0.0001, Slope: 0},
		},
		Seed: 3,
	}
	obs, err := Simulate(cfg)
	require.NoError(t, err)

	rf := make([]float64, len(obs))
	rp := make([]float64, len(obs))
	for i, o := range obs {
		rf[i] = o.Residual(models.SignalFundamentals)
		rp[i] = o.Residual(models.SignalPolling)
	}
	assert.InEpsilon(t, 0.0009, stat.Variance(rf, nil), 0.05)
	assert.InEpsilon(t, 0.0001, stat.Variance(rp, nil), 0.05)
}

func TestSimulateRejectsInvalidParameters(t *testing.T) {
	_, err := Simulate(Config{
		Elections:         1,
		PointsPerElection: 1,
		MaxTime:           100,
		Parameters: models.VarianceModelParameters{
			Fundamentals: models.SignalParameters{Intercept: 0.001, Slope: -0.001},
			Polling:      models.SignalParameters{Intercept: 0.001},
		},
	})
	assert.ErrorIs(t, err, models.ErrInvalidVarianceModel)

	_, err = Simulate(Config{})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}
