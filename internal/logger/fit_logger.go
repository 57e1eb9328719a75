package logger

import (
	"time"

	"github.com/sirupsen/logrus"
)

// FitLogger provides dedicated logging for parameter estimation.
type FitLogger struct {
	*logrus.Entry
}

// NewFitLogger creates a new fit logger.
func NewFitLogger(baseLogger *logrus.Logger) *FitLogger {
	return &FitLogger{
		Entry: baseLogger.WithField("component", "estimator"),
	}
}

// LogSignalFit logs the outcome of fitting one signal.
func (fl *FitLogger) LogSignalFit(signal, method string, iterations, evaluations int, logLikelihood float64, status string) {
	fl.WithFields(logrus.Fields{
		"signal":         signal,
		"method":         method,
		"iterations":     iterations,
		"evaluations":    evaluations,
		"log_likelihood": logLikelihood,
		"status":         status,
	}).Debug("Signal fit completed")
}

// LogSparseSignal warns that a signal has fewer distinct time points than
// configured; the fit still proceeds.
func (fl *FitLogger) LogSparseSignal(signal string, distinctTimes, required int) {
	fl.WithFields(logrus.Fields{
		"signal":         signal,
		"distinct_times": distinctTimes,
		"required":       required,
	}).Warn("Few distinct time points, variance slope is poorly identified")
}

// LogRestart logs an optimizer retry from a perturbed start.
func (fl *FitLogger) LogRestart(signal, status string, iterations int) {
	fl.WithFields(logrus.Fields{
		"signal":     signal,
		"status":     status,
		"iterations": iterations,
	}).Warn("Optimizer did not converge, retrying from perturbed start")
}

// LogConvergenceWarning logs poor MCMC mixing.
func (fl *FitLogger) LogConvergenceWarning(signal string, rHat, acceptanceRate float64) {
	fl.WithFields(logrus.Fields{
		"signal":          signal,
		"r_hat":           rHat,
		"acceptance_rate": acceptanceRate,
	}).Warn("Chains have not mixed")
}

// LogFitCompleted logs a finished fit.
func (fl *FitLogger) LogFitCompleted(method string, observations, elections int, logLikelihood float64, duration time.Duration) {
	fl.WithFields(logrus.Fields{
		"method":         method,
		"observations":   observations,
		"elections":      elections,
		"log_likelihood": logLikelihood,
		"duration_ms":    duration.Milliseconds(),
	}).Info("Variance model fitted")
}

// LogFitFailed logs a failed fit.
func (fl *FitLogger) LogFitFailed(method string, observations int, err error) {
	fl.WithFields(logrus.Fields{
		"method":       method,
		"observations": observations,
	}).WithError(err).Error("Variance model fit failed")
}
