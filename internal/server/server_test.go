package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/service"
	"github.com/yourusername/poll-blend/internal/variance"
)

var knownParams = models.VarianceModelParameters{
	Form:         variance.FormLinear,
	Fundamentals: models.SignalParameters{Intercept: 0.0004},
	Polling:      models.SignalParameters{Intercept: 0.0001},
}

// fakeForecaster serves one known run and reports every other id as missing.
type fakeForecaster struct {
	runID uuid.UUID
}

func (f fakeForecaster) Forecast(_ context.Context, id uuid.UUID, in models.ForecastInput) (*service.ForecastResponse, error) {
	if id != f.runID {
		return nil, models.ErrNotFound
	}
	return f.ForecastActive(context.Background(), in)
}

func (f fakeForecaster) ForecastActive(_ context.Context, in models.ForecastInput) (*service.ForecastResponse, error) {
	resp, err := service.ForecastWith(knownParams, in)
	if err != nil {
		return nil, err
	}
	resp.RunID = f.runID
	return resp, nil
}

type fakeRuns struct {
	runs []*models.FitRun
	err  error
}

func (f fakeRuns) List(context.Context, int) ([]*models.FitRun, error) {
	return f.runs, f.err
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestServer(cfg Config) (*Server, *httptest.Server) {
	cfg.ServiceName = "poll-blend"
	srv := NewServer(cfg)
	return srv, httptest.NewServer(srv.Handler())
}

func postForecast(t *testing.T, url, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(url+"/forecast", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestForecastEndpoint(t *testing.T) {
	runID := uuid.New()
	_, ts := newTestServer(Config{Forecaster: fakeForecaster{runID: runID}})
	defer ts.Close()

	resp, data := postForecast(t, ts.URL, `{"time_to_election": 30, "fundamentals_prediction": 0.52, "polling_average": 0.50}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got service.ForecastResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, runID, got.RunID)
	assert.InDelta(t, 0.504, got.Mean, 1e-12)
	assert.InDelta(t, 0.00008, got.Variance, 1e-15)
	assert.InDelta(t, 0.0004, got.FundamentalsVariance, 1e-15)
	assert.Less(t, got.IntervalLow, got.IntervalHigh)
}

func TestForecastEndpointErrors(t *testing.T) {
	runID := uuid.New()
	_, ts := newTestServer(Config{Forecaster: fakeForecaster{runID: runID}})
	defer ts.Close()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"time_to_election": `, http.StatusBadRequest},
		{"unknown field", `{"horizon": 3}`, http.StatusBadRequest},
		{"negative time", `{"time_to_election": -1, "fundamentals_prediction": 0.5, "polling_average": 0.5}`, http.StatusUnprocessableEntity},
		{"share above one", `{"time_to_election": 1, "fundamentals_prediction": 52, "polling_average": 0.5}`, http.StatusUnprocessableEntity},
		{"bad run id", `{"run_id": "latest", "time_to_election": 1, "fundamentals_prediction": 0.5, "polling_average": 0.5}`, http.StatusUnprocessableEntity},
		{"unknown run", `{"run_id": "` + uuid.NewString() + `", "time_to_election": 1, "fundamentals_prediction": 0.5, "polling_average": 0.5}`, http.StatusNotFound},
		{"known run", `{"run_id": "` + runID.String() + `", "time_to_election": 1, "fundamentals_prediction": 0.5, "polling_average": 0.5}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := postForecast(t, ts.URL, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(data))
			if tt.status != http.StatusOK {
				var e ErrorResponse
				require.NoError(t, json.Unmarshal(data, &e))
				assert.NotEmpty(t, e.Error)
			}
		})
	}
}

func TestForecastEndpointMethodAndConfig(t *testing.T) {
	_, ts := newTestServer(Config{})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/forecast")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, _ = postForecast(t, ts.URL, `{}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestForecastRateLimit(t *testing.T) {
	_, ts := newTestServer(Config{
		Forecaster: fakeForecaster{runID: uuid.New()},
		RateLimit:  0.001,
		RateBurst:  2,
	})
	defer ts.Close()

	body := `{"time_to_election": 10, "fundamentals_prediction": 0.5, "polling_average": 0.5}`
	for i := 0; i < 2; i++ {
		resp, _ := postForecast(t, ts.URL, body)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp, _ := postForecast(t, ts.URL, body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHealthEndpoints(t *testing.T) {
	_, ts := newTestServer(Config{Version: "1.2.0"})
	defer ts.Close()

	for _, path := range []string{"/health", "/live"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		var body HealthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, "poll-blend", body.Service)
	}
}

func TestReadyEndpoint(t *testing.T) {
	srv, ts := newTestServer(Config{DB: fakePinger{}})
	defer ts.Close()

	ready := func() (int, ReadyResponse) {
		resp, err := http.Get(ts.URL + "/ready")
		require.NoError(t, err)
		defer resp.Body.Close()
		var body ReadyResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return resp.StatusCode, body
	}

	status, body := ready()
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "not_ready", body.Checks["service"])
	assert.Equal(t, "ok", body.Checks["database"])

	srv.SetReady(true)
	status, body = ready()
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body.Status)

	down, downTS := newTestServer(Config{DB: fakePinger{err: errors.New("connection refused")}})
	defer downTS.Close()
	down.SetReady(true)
	resp, err := http.Get(downTS.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRunsEndpoint(t *testing.T) {
	run := &models.FitRun{ID: uuid.New(), Method: models.MethodMLE, Parameters: knownParams, Active: true}
	_, ts := newTestServer(Config{Runs: fakeRuns{runs: []*models.FitRun{run}}})
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []models.FitRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.True(t, runs[0].Active)

	_, failing := newTestServer(Config{Runs: fakeRuns{err: errors.New("timeout")}})
	defer failing.Close()
	resp, err = http.Get(failing.URL + "/runs")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(Config{Forecaster: fakeForecaster{runID: uuid.New()}, MetricsPath: "/metrics"})
	defer ts.Close()

	postForecast(t, ts.URL, `{"time_to_election": 10, "fundamentals_prediction": 0.5, "polling_average": 0.5}`)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(data), "poll_blend_forecasts_total")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(models.ErrNotFound))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&models.DegenerateVarianceError{}))
	assert.Equal(t, http.StatusUnprocessableEntity, statusFor(&models.InvalidVarianceModelError{}))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}
