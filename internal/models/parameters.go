package models

// SignalParameters is the (intercept, slope) pair of one signal's variance
// function.
type SignalParameters struct {
	Intercept float64 `json:"intercept" yaml:"intercept"`
	Slope     float64 `json:"slope" yaml:"slope"`
}

// VarianceModelParameters holds the four fitted scalars and the name of the
// variance form they belong to. An empty Form means linear.
type VarianceModelParameters struct {
	Form         string           `json:"form" yaml:"form"`
	Fundamentals SignalParameters `json:"fundamentals" yaml:"fundamentals"`
	Polling      SignalParameters `json:"polling" yaml:"polling"`
}

// For returns the parameters of one signal.
func (p VarianceModelParameters) For(s Signal) SignalParameters {
	if s == SignalPolling {
		return p.Polling
	}
	return p.Fundamentals
}

// With returns a copy with the parameters of one signal replaced.
func (p VarianceModelParameters) With(s Signal, sp SignalParameters) VarianceModelParameters {
	if s == SignalPolling {
		p.Polling = sp
	} else {
		p.Fundamentals = sp
	}
	return p
}
