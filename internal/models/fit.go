package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// FitMethod selects how the estimator produces parameters.
type FitMethod string

const (
	MethodMLE  FitMethod = "mle"
	MethodMCMC FitMethod = "mcmc"
)

// SignalDiagnostics describes how the fit of one signal went.
type SignalDiagnostics struct {
	Signal          Signal   `json:"signal"`
	Observations    int      `json:"observations"`
	DistinctTimes   int      `json:"distinct_times"`
	LogLikelihood   float64  `json:"log_likelihood"`
	Iterations      int      `json:"iterations"`
	FuncEvaluations int      `json:"func_evaluations"`
	Status          string   `json:"status"`
	Restarts        int      `json:"restarts"`
	AcceptanceRate  float64  `json:"acceptance_rate,omitempty"`
	RHat            float64  `json:"r_hat,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}

// FitResult is the estimator output. Parameters is always set; Samples is
// only populated by the MCMC path and Parameters is then their mean.
type FitResult struct {
	Method       FitMethod                 `json:"method"`
	Parameters   VarianceModelParameters   `json:"parameters"`
	Samples      []VarianceModelParameters `json:"samples,omitempty"`
	Fundamentals SignalDiagnostics         `json:"fundamentals"`
	Polling      SignalDiagnostics         `json:"polling"`
	MinTime      float64                   `json:"min_time"`
	MaxTime      float64                   `json:"max_time"`
	Elections    int                       `json:"elections"`
	Duration     time.Duration             `json:"duration"`
}

// HasSamples reports whether a posterior sample collection is attached.
func (r FitResult) HasSamples() bool {
	return len(r.Samples) > 0
}

// Diagnostics returns the diagnostics of one signal.
func (r FitResult) Diagnostics(s Signal) SignalDiagnostics {
	if s == SignalPolling {
		return r.Polling
	}
	return r.Fundamentals
}

// LogLikelihood is the joint log-likelihood at the point estimate.
func (r FitResult) LogLikelihood() float64 {
	return r.Fundamentals.LogLikelihood + r.Polling.LogLikelihood
}

// Warnings collects the warnings of both signals.
func (r FitResult) Warnings() []string {
	out := make([]string, 0, len(r.Fundamentals.Warnings)+len(r.Polling.Warnings))
	out = append(out, r.Fundamentals.Warnings...)
	out = append(out, r.Polling.Warnings...)
	return out
}

// FitRun is a persisted fit: the point estimate plus enough metadata to
// audit it later.
type FitRun struct {
	ID            uuid.UUID               `db:"id" json:"id"`
	Method        FitMethod               `db:"method" json:"method"`
	Parameters    VarianceModelParameters `json:"parameters"`
	LogLikelihood float64                 `db:"log_likelihood" json:"log_likelihood"`
	Observations  int                     `db:"observations" json:"observations"`
	Elections     int                     `db:"elections" json:"elections"`
	Diagnostics   json.RawMessage         `db:"diagnostics" json:"diagnostics"`
	FittedAt      time.Time               `db:"fitted_at" json:"fitted_at"`
	Active        bool                    `db:"active" json:"active"`
	CreatedAt     time.Time               `db:"created_at" json:"created_at"`
}

// NewFitRun wraps a fit result for persistence.
func NewFitRun(result FitResult) (*FitRun, error) {
	diagnostics, err := json.Marshal(struct {
		Fundamentals SignalDiagnostics `json:"fundamentals"`
		Polling      SignalDiagnostics `json:"polling"`
		MinTime      float64           `json:"min_time"`
		MaxTime      float64           `json:"max_time"`
		Samples      int               `json:"samples"`
	}{result.Fundamentals, result.Polling, result.MinTime, result.MaxTime, len(result.Samples)})
	if err != nil {
		return nil, err
	}
	return &FitRun{
		ID:            uuid.New(),
		Method:        result.Method,
		Parameters:    result.Parameters,
		LogLikelihood: result.LogLikelihood(),
		Observations:  result.Fundamentals.Observations,
		Elections:     result.Elections,
		Diagnostics:   diagnostics,
		FittedAt:      time.Now().UTC(),
	}, nil
}
