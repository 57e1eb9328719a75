package models

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ForecastResult is the Gaussian posterior over the true vote share together
// with the input variances that produced it.
type ForecastResult struct {
	Mean                 float64 `json:"mean"`
	Variance             float64 `json:"variance"`
	FundamentalsVariance float64 `json:"fundamentals_variance"`
	PollingVariance      float64 `json:"polling_variance"`
	TimeToElection       float64 `json:"time_to_election"`
	Samples              int     `json:"samples,omitempty"`
}

// StdDev returns the posterior standard deviation.
func (r ForecastResult) StdDev() float64 {
	return math.Sqrt(r.Variance)
}

// FundamentalsWeight is the share of the posterior mean contributed by the
// fundamentals prediction.
func (r ForecastResult) FundamentalsWeight() float64 {
	total := r.FundamentalsVariance + r.PollingVariance
	if total == 0 {
		return 0
	}
	return r.PollingVariance / total
}

// PollingWeight is the share of the posterior mean contributed by the polling
// average.
func (r ForecastResult) PollingWeight() float64 {
	total := r.FundamentalsVariance + r.PollingVariance
	if total == 0 {
		return 0
	}
	return r.FundamentalsVariance / total
}

// Distribution returns the posterior as a gonum normal distribution.
func (r ForecastResult) Distribution() distuv.Normal {
	return distuv.Normal{Mu: r.Mean, Sigma: r.StdDev()}
}

// Interval returns the central credible interval holding level of the
// posterior mass.
func (r ForecastResult) Interval(level float64) (low, high float64) {
	d := r.Distribution()
	tail := (1 - level) / 2
	return d.Quantile(tail), d.Quantile(1 - tail)
}

// ProbabilityAbove returns the posterior probability that the true share
// exceeds threshold, e.g. 0.5 for winning the two-party vote.
func (r ForecastResult) ProbabilityAbove(threshold float64) float64 {
	return 1 - r.Distribution().CDF(threshold)
}
