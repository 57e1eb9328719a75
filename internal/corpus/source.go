// Package corpus loads the historical observations the estimator is fitted
// on, from a CSV file, an HTTP endpoint or the observation table.
package corpus

import (
	"context"
	"errors"
	"fmt"

	"github.com/yourusername/poll-blend/internal/models"
)

// Source provides a historical corpus.
type Source interface {
	// Load returns every observation the source holds.
	Load(ctx context.Context) ([]models.Observation, error)

	// Name identifies the source in logs and errors.
	Name() string
}

// Format selects the CSV column layout.
type Format string

const (
	// FormatStandard has one column per Observation field.
	FormatStandard Format = "standard"
	// FormatRaw has dated candidate percentages that are converted to a
	// two-party share and a days-to-election horizon.
	FormatRaw Format = "raw"
)

// SourceError represents a failure to load from a source
type SourceError struct {
	Source  string
	Code    string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s (%v)", e.Source, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Source, e.Code, e.Message)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeNotFound     = "not_found"
	ErrCodeInvalidData  = "invalid_data"
	ErrCodeNetworkError = "network_error"
	ErrCodeServerError  = "server_error"
)

// ErrCircuitOpen is returned while the HTTP client refuses requests after
// repeated failures.
var ErrCircuitOpen = errors.New("circuit breaker open")

func newSourceError(source, code, message string, err error) *SourceError {
	return &SourceError{Source: source, Code: code, Message: message, Err: err}
}
