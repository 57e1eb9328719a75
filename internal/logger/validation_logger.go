package logger

import (
	"github.com/sirupsen/logrus"
)

// ValidationLogger provides dedicated logging for out-of-sample evaluation.
type ValidationLogger struct {
	*logrus.Entry
}

// NewValidationLogger creates a new validation logger.
func NewValidationLogger(baseLogger *logrus.Logger) *ValidationLogger {
	return &ValidationLogger{
		Entry: baseLogger.WithField("component", "validation"),
	}
}

// LogFoldScored logs the scores of one held-out fold.
func (vl *ValidationLogger) LogFoldScored(fold int, elections []string, observations int, modelLogScore, baselineLogScore float64) {
	vl.WithFields(logrus.Fields{
		"fold":               fold,
		"elections":          elections,
		"observations":       observations,
		"model_log_score":    modelLogScore,
		"baseline_log_score": baselineLogScore,
	}).Debug("Fold scored")
}

// LogFoldSkipped logs a fold whose training set could not be fitted.
func (vl *ValidationLogger) LogFoldSkipped(fold int, elections []string, err error) {
	vl.WithFields(logrus.Fields{
		"fold":      fold,
		"elections": elections,
	}).WithError(err).Warn("Fold skipped")
}

// LogValidationCompleted logs aggregated cross-validation scores.
func (vl *ValidationLogger) LogValidationCompleted(strategy string, folds int, modelLogScore, baselineLogScore, improvement float64) {
	vl.WithFields(logrus.Fields{
		"strategy":           strategy,
		"folds":              folds,
		"model_log_score":    modelLogScore,
		"baseline_log_score": baselineLogScore,
		"improvement":        improvement,
	}).Info("Cross-validation completed")
}
