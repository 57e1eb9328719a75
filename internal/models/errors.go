package models

import (
	"errors"
	"fmt"
)

// Sentinel errors. The typed errors below match these through errors.Is.
var (
	ErrInvalidVarianceModel = errors.New("invalid variance model")
	ErrFitFailure           = errors.New("fit failure")
	ErrDegenerateVariance   = errors.New("degenerate variance")
	ErrInsufficientData     = errors.New("insufficient data")
	ErrInvalidInput         = errors.New("invalid input")
	ErrNotFound             = errors.New("record not found")
)

// InvalidVarianceModelError reports a parameter pair whose variance is not
// strictly positive (or not finite) at Time.
type InvalidVarianceModelError struct {
	Signal    Signal
	Form      string
	Intercept float64
	Slope     float64
	Time      float64
	Variance  float64
}

func (e *InvalidVarianceModelError) Error() string {
	return fmt.Sprintf("invalid variance model: %s %s variance is %g at t=%g (intercept=%g, slope=%g)",
		e.Signal, e.Form, e.Variance, e.Time, e.Intercept, e.Slope)
}

// Is matches ErrInvalidVarianceModel.
func (e *InvalidVarianceModelError) Is(target error) bool {
	return target == ErrInvalidVarianceModel
}

// FitFailureError reports an estimator run that could not produce usable
// parameters for Signal.
type FitFailureError struct {
	Signal     Signal
	Iterations int
	Status     string
	Err        error
}

func (e *FitFailureError) Error() string {
	msg := fmt.Sprintf("fit failure: %s after %d iterations (status %s)", e.Signal, e.Iterations, e.Status)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrFitFailure.
func (e *FitFailureError) Is(target error) bool {
	return target == ErrFitFailure
}

func (e *FitFailureError) Unwrap() error {
	return e.Err
}

// InsufficientDataError reports a corpus too small to identify the variance
// parameters. Signal is empty when the whole corpus is affected.
type InsufficientDataError struct {
	Signal   Signal
	Count    int
	Required int
	Reason   string
}

func (e *InsufficientDataError) Error() string {
	scope := "corpus"
	if e.Signal != "" {
		scope = string(e.Signal)
	}
	msg := fmt.Sprintf("insufficient data: %s has %d, need at least %d", scope, e.Count, e.Required)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	return msg
}

// Is matches ErrInsufficientData.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// DegenerateVarianceError reports a fusion of valid variances whose sum or
// product leaves the finite positive range.
type DegenerateVarianceError struct {
	Time                 float64
	FundamentalsVariance float64
	PollingVariance      float64
}

func (e *DegenerateVarianceError) Error() string {
	return fmt.Sprintf("degenerate variance at t=%g: fundamentals=%g polling=%g",
		e.Time, e.FundamentalsVariance, e.PollingVariance)
}

// Is matches ErrDegenerateVariance.
func (e *DegenerateVarianceError) Is(target error) bool {
	return target == ErrDegenerateVariance
}
