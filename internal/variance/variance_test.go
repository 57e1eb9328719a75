package variance

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/poll-blend/internal/models"
)

func TestLinearVarianceIsExact(t *testing.T) {
	tests := []struct {
		name string
		a, b float64
		t    float64
	}{
		{"election day", 0.0004, 0.00001, 0},
		{"increasing", 0.0004, 0.00001, 120},
		{"decreasing", 0.01, -0.00002, 300},
		{"flat", 0.002, 0, 45.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := models.SignalParameters{Intercept: tt.a, Slope: tt.b}
			v, err := Compute(Linear{}, models.SignalFundamentals, tt.t, p)
			require.NoError(t, err)
			assert.InDelta(t, tt.a+tt.b*tt.t, v, 1e-15)
		})
	}
}

func TestLinearValidateChecksBothEnds(t *testing.T) {
	form := Linear{}

	err := form.Validate(models.SignalPolling, models.SignalParameters{Intercept: 0.01, Slope: -0.0001}, 200)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInvalidVarianceModel))

	var ivm *models.InvalidVarianceModelError
	require.True(t, errors.As(err, &ivm))
	assert.Equal(t, models.SignalPolling, ivm.Signal)
	assert.Equal(t, 200.0, ivm.Time)

	err = form.Validate(models.SignalPolling, models.SignalParameters{Intercept: 0, Slope: 0.001}, 200)
	require.Error(t, err)
	assert.True(t, errors.As(err, &ivm))
	assert.Equal(t, 0.0, ivm.Time)

	assert.NoError(t, form.Validate(models.SignalPolling, models.SignalParameters{Intercept: 0.01, Slope: -0.00004}, 200))
}

func TestComputeRejectsNonPositiveWithoutClamping(t *testing.T) {
	v, err := Compute(Linear{}, models.SignalFundamentals, 10, models.SignalParameters{Intercept: 0.001, Slope: -0.001})
	require.Error(t, err)
	assert.InDelta(t, -0.009, v, 1e-15)
	assert.True(t, errors.Is(err, models.ErrInvalidVarianceModel))
}

func TestExponentialValidate(t *testing.T) {
	form := Exponential{}

	assert.NoError(t, form.Validate(models.SignalFundamentals, models.SignalParameters{Intercept: 0.001, Slope: -0.01}, 300))
	assert.ErrorIs(t, form.Validate(models.SignalFundamentals, models.SignalParameters{Intercept: 0, Slope: 0.01}, 300), models.ErrInvalidVarianceModel)
	assert.ErrorIs(t, form.Validate(models.SignalFundamentals, models.SignalParameters{Intercept: -1, Slope: 0}, 300), models.ErrInvalidVarianceModel)
	assert.ErrorIs(t, form.Validate(models.SignalFundamentals, models.SignalParameters{Intercept: 1, Slope: 10}, 300), models.ErrInvalidVarianceModel)

	v := form.Variance(100, models.SignalParameters{Intercept: 0.002, Slope: -0.01})
	assert.InDelta(t, 0.002*math.Exp(-1), v, 1e-15)
}

func TestReparameterizationRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		form interface {
			Form
			Reparameterizer
		}
		p models.SignalParameters
	}{
		{"linear", Linear{}, models.SignalParameters{Intercept: 0.0004, Slope: 0.00002}},
		{"linear decreasing", Linear{}, models.SignalParameters{Intercept: 0.004, Slope: -0.00001}},
		{"exponential", Exponential{}, models.SignalParameters{Intercept: 0.0004, Slope: 0.003}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := tt.form.Unconstrained(tt.p, 365)
			require.NoError(t, err)
			back := tt.form.Constrained(x, 365)
			assert.InDelta(t, tt.p.Intercept, back.Intercept, 1e-12)
			assert.InDelta(t, tt.p.Slope, back.Slope, 1e-12)
		})
	}
}

func TestConstrainedLinearIsAlwaysValid(t *testing.T) {
	for _, x := range [][]float64{{-12, 3}, {2, -20}, {-5, -5}, {0, 0}} {
		p := Linear{}.Constrained(x, 250)
		assert.NoError(t, Linear{}.Validate(models.SignalFundamentals, p, 250), "x=%v", x)
	}
}

func TestLookup(t *testing.T) {
	form, err := Lookup("")
	require.NoError(t, err)
	assert.Equal(t, FormLinear, form.Name())

	form, err = Lookup(FormExponential)
	require.NoError(t, err)
	assert.Equal(t, FormExponential, form.Name())

	_, err = Lookup("quadratic")
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestValidateParameters(t *testing.T) {
	params := models.VarianceModelParameters{
		Fundamentals: models.SignalParameters{Intercept: 0.0009, Slope: 0.00001},
		Polling:      models.SignalParameters{Intercept: 0.0001, Slope: -0.000001},
	}
	assert.NoError(t, ValidateParameters(params, 90))

	err := ValidateParameters(params, 200)
	var ivm *models.InvalidVarianceModelError
	require.True(t, errors.As(err, &ivm))
	assert.Equal(t, models.SignalPolling, ivm.Signal)
}
