package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/poll-blend/internal/models"
)

// coverageLevel is the credible interval level whose empirical coverage is
// reported.
const coverageLevel = 0.9

// Scores summarizes predictive accuracy over held-out observations.
type Scores struct {
	// LogScore is the mean log predictive density of the outcomes.
	LogScore     float64 `json:"log_score"`
	RMSE         float64 `json:"rmse"`
	MAE          float64 `json:"mae"`
	Coverage90   float64 `json:"coverage_90"`
	Observations int     `json:"observations"`
}

// predictions pairs forecasts with realized outcomes.
type predictions struct {
	forecasts []models.ForecastResult
	outcomes  []float64
}

func (p *predictions) add(f models.ForecastResult, outcome float64) {
	p.forecasts = append(p.forecasts, f)
	p.outcomes = append(p.outcomes, outcome)
}

func (p *predictions) merge(other predictions) {
	p.forecasts = append(p.forecasts, other.forecasts...)
	p.outcomes = append(p.outcomes, other.outcomes...)
}

func (p predictions) score() Scores {
	n := len(p.outcomes)
	if n == 0 {
		return Scores{}
	}
	logDensity := make([]float64, n)
	means := make([]float64, n)
	absErr := make([]float64, n)
	covered := 0
	for i, f := range p.forecasts {
		y := p.outcomes[i]
		logDensity[i] = f.Distribution().LogProb(y)
		means[i] = f.Mean
		absErr[i] = math.Abs(f.Mean - y)
		if low, high := f.Interval(coverageLevel); y >= low && y <= high {
			covered++
		}
	}
	return Scores{
		LogScore:     stat.Mean(logDensity, nil),
		RMSE:         floats.Distance(means, p.outcomes, 2) / math.Sqrt(float64(n)),
		MAE:          stat.Mean(absErr, nil),
		Coverage90:   float64(covered) / float64(n),
		Observations: n,
	}
}

// Baseline is a fixed-weight blend of the two signals with a constant
// predictive variance.
type Baseline struct {
	// PollingWeight is the weight on the polling average; the fundamentals
	// prediction gets the rest.
	PollingWeight float64 `json:"polling_weight"`
	Variance      float64 `json:"variance"`
}

// FitBaseline sets the baseline variance to the mean squared error of the
// blend on the training observations.
func FitBaseline(train []models.Observation, pollingWeight float64) (Baseline, error) {
	if pollingWeight < 0 || pollingWeight > 1 {
		return Baseline{}, fmt.Errorf("%w: baseline weight %g outside [0, 1]", models.ErrInvalidInput, pollingWeight)
	}
	if len(train) == 0 {
		return Baseline{}, &models.InsufficientDataError{Count: 0, Required: 1, Reason: "observations for the baseline"}
	}
	b := Baseline{PollingWeight: pollingWeight}
	sq := 0.0
	for _, o := range train {
		e := b.Blend(o.FundamentalsPrediction, o.PollingAverage) - o.ActualOutcome
		sq += e * e
	}
	b.Variance = sq / float64(len(train))
	if b.Variance == 0 {
		return Baseline{}, &models.DegenerateVarianceError{}
	}
	return b, nil
}

// Blend returns the weighted average of the two predictions.
func (b Baseline) Blend(fundamentals, polling float64) float64 {
	return (1-b.PollingWeight)*fundamentals + b.PollingWeight*polling
}

// Forecast returns the baseline predictive distribution for in.
func (b Baseline) Forecast(in models.ForecastInput) models.ForecastResult {
	return models.ForecastResult{
		Mean:           b.Blend(in.FundamentalsPrediction, in.PollingAverage),
		Variance:       b.Variance,
		TimeToElection: in.TimeToElection,
	}
}
