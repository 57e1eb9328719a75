package estimator

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// series is one signal's residual data in the layout the objective reads.
type series struct {
	signal    models.Signal
	times     []float64
	squared   []float64
	distinct  int
	maxTime   float64
	meanSqErr float64
}

func newSeries(signal models.Signal, obs []models.Observation) *series {
	s := &series{
		signal:  signal,
		times:   make([]float64, len(obs)),
		squared: make([]float64, len(obs)),
	}
	seen := make(map[float64]struct{}, len(obs))
	for i, o := range obs {
		r := o.Residual(signal)
		s.times[i] = o.TimeToElection
		s.squared[i] = r * r
		seen[o.TimeToElection] = struct{}{}
	}
	s.distinct = len(seen)
	if len(obs) > 0 {
		s.maxTime = floats.Max(s.times)
		s.meanSqErr = floats.Sum(s.squared) / float64(len(obs))
	}
	return s
}

// logLikelihood is the Gaussian log-likelihood of the residuals. It is -Inf
// when any variance is not a positive finite number.
func (s *series) logLikelihood(form variance.Form, p models.SignalParameters) float64 {
	ll := 0.0
	for i, t := range s.times {
		v := form.Variance(t, p)
		if !(v > 0) || math.IsInf(v, 1) {
			return math.Inf(-1)
		}
		ll += -0.5*math.Log(2*math.Pi*v) - s.squared[i]/(2*v)
	}
	return ll
}

// LogLikelihood returns sum[-0.5*log(2*pi*v(t)) - r^2/(2*v(t))] over the
// residuals r of one signal.
func LogLikelihood(form variance.Form, signal models.Signal, p models.SignalParameters, obs []models.Observation) float64 {
	return newSeries(signal, obs).logLikelihood(form, p)
}

// JointLogLikelihood adds the log-likelihoods of both signals.
func JointLogLikelihood(params models.VarianceModelParameters, obs []models.Observation) (float64, error) {
	form, err := variance.Lookup(params.Form)
	if err != nil {
		return 0, err
	}
	total := 0.0
	for _, s := range models.Signals {
		total += LogLikelihood(form, s, params.For(s), obs)
	}
	return total, nil
}
