// Package variance maps time-to-election to the variance of a forecast signal.
//
// A Form is a pure function of t and a parameter pair. Forms never clamp: a
// non-positive variance anywhere on the operating domain is reported through
// Validate as a *models.InvalidVarianceModelError.
package variance

import (
	"fmt"
	"math"

	"github.com/yourusername/poll-blend/internal/models"
)

// Form names.
const (
	FormLinear      = "linear"
	FormExponential = "exponential"
)

// Form is a time-dependent variance function.
type Form interface {
	Name() string
	Variance(t float64, p models.SignalParameters) float64
	// Validate checks positivity over [0, tMax].
	Validate(signal models.Signal, p models.SignalParameters, tMax float64) error
}

// Reparameterizer maps parameters to an unconstrained space in which every
// point yields a variance that is positive on [0, anchor]. The estimator
// optimizes and samples in that space.
type Reparameterizer interface {
	Unconstrained(p models.SignalParameters, anchor float64) ([]float64, error)
	Constrained(x []float64, anchor float64) models.SignalParameters
}

// Lookup resolves a form by name. The empty name selects Linear.
func Lookup(name string) (Form, error) {
	switch name {
	case "", FormLinear:
		return Linear{}, nil
	case FormExponential:
		return Exponential{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown variance form %q", models.ErrInvalidInput, name)
	}
}

// Compute evaluates the form and fails instead of returning a non-positive
// or non-finite variance.
func Compute(form Form, signal models.Signal, t float64, p models.SignalParameters) (float64, error) {
	v := form.Variance(t, p)
	if !positive(v) {
		return v, invalid(form, signal, p, t, v)
	}
	return v, nil
}

// ValidateParameters validates both signals of a parameter bundle.
func ValidateParameters(params models.VarianceModelParameters, tMax float64) error {
	form, err := Lookup(params.Form)
	if err != nil {
		return err
	}
	for _, s := range models.Signals {
		if err := form.Validate(s, params.For(s), tMax); err != nil {
			return err
		}
	}
	return nil
}

// Linear is variance(t) = a + b*t.
type Linear struct{}

func (Linear) Name() string { return FormLinear }

func (Linear) Variance(t float64, p models.SignalParameters) float64 {
	return p.Intercept + p.Slope*t
}

// Validate checks both ends of the domain; a line positive at both ends is
// positive in between.
func (l Linear) Validate(signal models.Signal, p models.SignalParameters, tMax float64) error {
	if err := checkDomain(tMax); err != nil {
		return err
	}
	for _, t := range []float64{0, tMax} {
		if v := l.Variance(t, p); !positive(v) {
			return invalid(l, signal, p, t, v)
		}
	}
	return nil
}

// Unconstrained returns (log v(0), log v(anchor)).
func (l Linear) Unconstrained(p models.SignalParameters, anchor float64) ([]float64, error) {
	if anchor <= 0 {
		return nil, fmt.Errorf("%w: anchor must be positive, got %g", models.ErrInvalidInput, anchor)
	}
	v0, vA := l.Variance(0, p), l.Variance(anchor, p)
	if !positive(v0) {
		return nil, invalid(l, "", p, 0, v0)
	}
	if !positive(vA) {
		return nil, invalid(l, "", p, anchor, vA)
	}
	return []float64{math.Log(v0), math.Log(vA)}, nil
}

func (Linear) Constrained(x []float64, anchor float64) models.SignalParameters {
	v0, vA := math.Exp(x[0]), math.Exp(x[1])
	return models.SignalParameters{Intercept: v0, Slope: (vA - v0) / anchor}
}

// Exponential is variance(t) = a * exp(b*t), positive whenever a is.
type Exponential struct{}

func (Exponential) Name() string { return FormExponential }

func (Exponential) Variance(t float64, p models.SignalParameters) float64 {
	return p.Intercept * math.Exp(p.Slope*t)
}

func (e Exponential) Validate(signal models.Signal, p models.SignalParameters, tMax float64) error {
	if err := checkDomain(tMax); err != nil {
		return err
	}
	if !positive(p.Intercept) || math.IsNaN(p.Slope) || math.IsInf(p.Slope, 0) {
		return invalid(e, signal, p, 0, e.Variance(0, p))
	}
	// exp can still overflow or underflow at the far end.
	if v := e.Variance(tMax, p); !positive(v) {
		return invalid(e, signal, p, tMax, v)
	}
	return nil
}

// Unconstrained returns (log a, b*anchor). Scaling the rate by the anchor
// keeps both coordinates on a comparable scale.
func (e Exponential) Unconstrained(p models.SignalParameters, anchor float64) ([]float64, error) {
	if anchor <= 0 {
		return nil, fmt.Errorf("%w: anchor must be positive, got %g", models.ErrInvalidInput, anchor)
	}
	if !positive(p.Intercept) {
		return nil, invalid(e, "", p, 0, p.Intercept)
	}
	return []float64{math.Log(p.Intercept), p.Slope * anchor}, nil
}

func (Exponential) Constrained(x []float64, anchor float64) models.SignalParameters {
	return models.SignalParameters{Intercept: math.Exp(x[0]), Slope: x[1] / anchor}
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

func checkDomain(tMax float64) error {
	if tMax < 0 || math.IsNaN(tMax) || math.IsInf(tMax, 0) {
		return fmt.Errorf("%w: time domain max must be a finite non-negative number, got %g", models.ErrInvalidInput, tMax)
	}
	return nil
}

func invalid(form Form, signal models.Signal, p models.SignalParameters, t, v float64) error {
	return &models.InvalidVarianceModelError{
		Signal:    signal,
		Form:      form.Name(),
		Intercept: p.Intercept,
		Slope:     p.Slope,
		Time:      t,
		Variance:  v,
	}
}
