package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger records changes to which parameters serve forecasts.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogRunStored logs a persisted fit run.
func (al *AuditLogger) LogRunStored(runID, method string, observations int, logLikelihood float64) {
	al.WithFields(logrus.Fields{
		"run_id":         runID,
		"method":         method,
		"observations":   observations,
		"log_likelihood": logLikelihood,
	}).Info("Fit run stored")
}

// LogRunActivated logs a change of the active fit run.
func (al *AuditLogger) LogRunActivated(runID, previousRunID, trigger string) {
	al.WithFields(logrus.Fields{
		"run_id":          runID,
		"previous_run_id": previousRunID,
		"trigger":         trigger,
	}).Info("Active fit run changed")
}

// LogParameterFileWritten logs an exported parameter file.
func (al *AuditLogger) LogParameterFileWritten(path, runID string) {
	al.WithFields(logrus.Fields{
		"path":   path,
		"run_id": runID,
	}).Info("Parameter file written")
}
