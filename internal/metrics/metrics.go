// Package metrics provides the Prometheus registry for fits, forecasts and
// validation runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "poll_blend"

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	FitRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fit_runs_total",
		Help:      "Total number of estimator runs by method and status",
	}, []string{"method", "status"})
	ForecastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forecasts_total",
		Help:      "Total number of forecasts by status",
	}, []string{"status"})
	FitWarningsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fit_warnings_total",
		Help:      "Total number of fit warnings by signal",
	}, []string{"signal"})
)

// Gauge metrics
var (
	ActiveFitLogLikelihood = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_fit_log_likelihood",
		Help:      "Joint log-likelihood of the active fit",
	})
	CorpusObservations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "corpus_observations",
		Help:      "Number of observations in the last fitted corpus",
	})
	ValidationLogScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "validation_log_score",
		Help:      "Mean held-out log predictive density by evaluation and predictor",
	}, []string{"evaluation", "predictor"})
	ValidationImprovement = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "validation_improvement",
		Help:      "Model minus baseline held-out log score by evaluation",
	}, []string{"evaluation"})
	ParameterCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "parameter_cache_hit_ratio",
		Help:      "Hit ratio of the fitted-parameter cache",
	})
)

// Histogram metrics
var (
	FitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "fit_duration_seconds",
		Help:      "Duration of estimator runs in seconds",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"method"})
	ForecastLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "forecast_latency_seconds",
		Help:      "Latency of forecast requests in seconds",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(FitRunsTotal)
		registry.MustRegister(ForecastsTotal)
		registry.MustRegister(FitWarningsTotal)

		registry.MustRegister(ActiveFitLogLikelihood)
		registry.MustRegister(CorpusObservations)
		registry.MustRegister(ValidationLogScore)
		registry.MustRegister(ValidationImprovement)
		registry.MustRegister(ParameterCacheHitRatio)

		registry.MustRegister(FitDuration)
		registry.MustRegister(ForecastLatency)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return InitRegistry()
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordFitRun records an estimator run.
// status should be one of: "success", "failure", "timeout"
func RecordFitRun(method, status string, durationSeconds float64) {
	FitRunsTotal.WithLabelValues(method, status).Inc()
	FitDuration.WithLabelValues(method).Observe(durationSeconds)
}

// RecordFitWarnings counts the warnings a fit raised for one signal.
func RecordFitWarnings(signal string, count int) {
	if count > 0 {
		FitWarningsTotal.WithLabelValues(signal).Add(float64(count))
	}
}

// RecordForecast records a forecast request.
func RecordForecast(status string, durationSeconds float64) {
	ForecastsTotal.WithLabelValues(status).Inc()
	ForecastLatency.Observe(durationSeconds)
}

// UpdateActiveFit updates the gauges describing the active fit.
func UpdateActiveFit(logLikelihood float64, observations int) {
	ActiveFitLogLikelihood.Set(logLikelihood)
	CorpusObservations.Set(float64(observations))
}

// RecordValidation updates the held-out score gauges.
// evaluation should be one of: "cross_validation", "walk_forward"
func RecordValidation(evaluation string, modelLogScore, baselineLogScore float64) {
	ValidationLogScore.WithLabelValues(evaluation, "model").Set(modelLogScore)
	ValidationLogScore.WithLabelValues(evaluation, "baseline").Set(baselineLogScore)
	ValidationImprovement.WithLabelValues(evaluation).Set(modelLogScore - baselineLogScore)
}

// UpdateCacheHitRatio updates the parameter cache hit ratio gauge.
func UpdateCacheHitRatio(ratio float64) {
	ParameterCacheHitRatio.Set(ratio)
}
