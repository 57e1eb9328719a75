package models

import (
	"fmt"
	"math"
)

// Signal identifies one of the two forecast inputs.
type Signal string

const (
	SignalFundamentals Signal = "fundamentals"
	SignalPolling      Signal = "polling"
)

// Signals lists both inputs in a stable order.
var Signals = []Signal{SignalFundamentals, SignalPolling}

// Observation is one historical data point: what each signal said at a given
// distance from the election, and what actually happened.
type Observation struct {
	ElectionID             string  `db:"election_id" json:"election_id" validate:"required"`
	TimeToElection         float64 `db:"time_to_election" json:"time_to_election" validate:"gte=0"`
	FundamentalsPrediction float64 `db:"fundamentals_prediction" json:"fundamentals_prediction" validate:"gte=0,lte=1"`
	PollingAverage         float64 `db:"polling_average" json:"polling_average" validate:"gte=0,lte=1"`
	ActualOutcome          float64 `db:"actual_outcome" json:"actual_outcome" validate:"gte=0,lte=1"`
}

// Value returns the signal's prediction for this observation.
func (o Observation) Value(s Signal) float64 {
	if s == SignalPolling {
		return o.PollingAverage
	}
	return o.FundamentalsPrediction
}

// Residual returns prediction minus outcome for the signal.
func (o Observation) Residual(s Signal) float64 {
	return o.Value(s) - o.ActualOutcome
}

// Check rejects values no variance model can use: non-finite numbers and
// negative times.
func (o Observation) Check() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"time_to_election", o.TimeToElection},
		{"fundamentals_prediction", o.FundamentalsPrediction},
		{"polling_average", o.PollingAverage},
		{"actual_outcome", o.ActualOutcome},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidInput, f.name)
		}
	}
	if o.TimeToElection < 0 {
		return fmt.Errorf("%w: time_to_election %g is negative", ErrInvalidInput, o.TimeToElection)
	}
	return nil
}

// ForecastInput is a single live query.
type ForecastInput struct {
	TimeToElection         float64 `json:"time_to_election" validate:"gte=0"`
	FundamentalsPrediction float64 `json:"fundamentals_prediction"`
	PollingAverage         float64 `json:"polling_average"`
}

// Input strips the outcome from an observation.
func (o Observation) Input() ForecastInput {
	return ForecastInput{
		TimeToElection:         o.TimeToElection,
		FundamentalsPrediction: o.FundamentalsPrediction,
		PollingAverage:         o.PollingAverage,
	}
}
