package paramfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

func testRun() *models.FitRun {
	return &models.FitRun{
		ID:     uuid.MustParse("0b4c5a8e-6f8b-4c71-9a55-0f5f0c3f6d21"),
		Method: models.MethodMLE,
		Parameters: models.VarianceModelParameters{
			Form:         variance.FormLinear,
			Fundamentals: models.SignalParameters{Intercept: 0.00095, Slope: 0.0000012},
			Polling:      models.SignalParameters{Intercept: 0.00004, Slope: 0.0000215},
		},
		LogLikelihood: 1543.25,
		Observations:  480,
		FittedAt:      time.Date(2024, 10, 1, 12, 30, 15, 999, time.UTC),
	}
}

func TestWriteRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "params.yaml")
	want := FromRun(testRun(), 365)

	require.NoError(t, Write(path, want))
	got, err := Read(path)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, time.Date(2024, 10, 1, 12, 30, 15, 0, time.UTC), got.FittedAt)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWrittenLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, Write(path, FromRun(testRun(), 365)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "run_id: 0b4c5a8e-6f8b-4c71-9a55-0f5f0c3f6d21\n")
	assert.Contains(t, text, "method: mle\n")
	assert.Contains(t, text, "form: linear\n")
	assert.Contains(t, text, "fundamentals:\n  intercept: 0.00095\n")
}

func TestReadHandWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`method: mcmc
fitted_at: 2020-10-01T00:00:00Z
time_domain_max: 200
log_likelihood: 10
observations: 50
fundamentals:
  intercept: 0.001
  slope: 0.00001
polling:
  intercept: 0.0002
  slope: 0.00003
`), 0o644))

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, variance.FormLinear, f.Parameters.Form, "form defaults to linear")
	assert.Equal(t, models.MethodMCMC, f.Method)
	assert.Empty(t, f.RunID)
	assert.Equal(t, 0.00003, f.Parameters.Polling.Slope)
}

func TestReadRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"unknown field", "method: mle\nalpha: 1\n", models.ErrInvalidInput},
		{"not yaml", "{{{", models.ErrInvalidInput},
		{"negative endpoint", "time_domain_max: 100\nfundamentals:\n  intercept: 0.001\n  slope: -0.0001\npolling:\n  intercept: 0.001\n", models.ErrInvalidVarianceModel},
		{"zero intercept", "fundamentals:\n  intercept: 0\npolling:\n  intercept: 0.001\n", models.ErrInvalidVarianceModel},
		{"missing time domain", "fundamentals:\n  intercept: 0.001\n  slope: -0.0001\npolling:\n  intercept: 0.001\n", models.ErrInvalidInput},
		{"zero time domain", "time_domain_max: 0\nfundamentals:\n  intercept: 0.001\npolling:\n  intercept: 0.001\n", models.ErrInvalidInput},
		{"negative time domain", "time_domain_max: -5\nfundamentals:\n  intercept: 0.001\npolling:\n  intercept: 0.001\n", models.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "params.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))
			_, err := Read(path)
			assert.ErrorIs(t, err, tt.target)
		})
	}

	_, err := Read(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReadWithinWidensDomain(t *testing.T) {
	// Positive over [0, 100] but negative from t=100 on.
	content := "time_domain_max: 100\nfundamentals:\n  intercept: 0.001\n  slope: -0.000009\npolling:\n  intercept: 0.001\n"
	path := filepath.Join(t.TempDir(), "params.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 100.0, f.TimeDomainMax)

	_, err = ReadWithin(path, 100)
	assert.NoError(t, err)

	_, err = ReadWithin(path, 365)
	var ivm *models.InvalidVarianceModelError
	require.True(t, errors.As(err, &ivm))
	assert.Equal(t, models.SignalFundamentals, ivm.Signal)
	assert.Equal(t, 365.0, ivm.Time)

	assert.ErrorIs(t, f.ValidateWithin(365), models.ErrInvalidVarianceModel)
	assert.NoError(t, f.ValidateWithin(50))
}

func TestWriteRefusesMissingDomain(t *testing.T) {
	f := FromRun(testRun(), 0)
	path := filepath.Join(t.TempDir(), "params.yaml")

	assert.ErrorIs(t, Write(path, f), models.ErrInvalidInput)
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteRefusesInvalid(t *testing.T) {
	f := FromRun(testRun(), 365)
	f.Parameters.Polling.Slope = -1
	path := filepath.Join(t.TempDir(), "params.yaml")

	assert.ErrorIs(t, Write(path, f), models.ErrInvalidVarianceModel)
	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFromResult(t *testing.T) {
	result := models.FitResult{
		Method:       models.MethodMLE,
		Parameters:   testRun().Parameters,
		Fundamentals: models.SignalDiagnostics{Observations: 300, LogLikelihood: 10},
		Polling:      models.SignalDiagnostics{Observations: 300, LogLikelihood: 5},
	}
	f := FromResult(result, 180)
	assert.Equal(t, 15.0, f.LogLikelihood)
	assert.Equal(t, 300, f.Observations)
	assert.Equal(t, 180.0, f.TimeDomainMax)
	assert.NoError(t, f.Validate())
}
