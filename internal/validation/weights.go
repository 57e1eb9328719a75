package validation

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/yourusername/poll-blend/internal/combiner"
	"github.com/yourusername/poll-blend/internal/models"
)

// HorizonWeight is the polling weight chosen for one time-to-election.
type HorizonWeight struct {
	Horizon       float64 `json:"horizon"`
	PollingWeight float64 `json:"polling_weight"`
	RMSE          float64 `json:"rmse,omitempty"`
	Observations  int     `json:"observations,omitempty"`
}

// OptimalWeights grid-searches, for every distinct horizon h, the fixed
// polling weight that minimizes the RMSE of the blend over observations with
// time-to-election at most h. Ties keep the smaller weight.
func OptimalWeights(obs []models.Observation, step float64) ([]HorizonWeight, error) {
	if !(step > 0) || step > 1 {
		return nil, fmt.Errorf("%w: weight grid step %g outside (0, 1]", models.ErrInvalidInput, step)
	}
	if len(obs) == 0 {
		return nil, &models.InsufficientDataError{Count: 0, Required: 1, Reason: "observations for the weight search"}
	}

	sorted := make([]models.Observation, len(obs))
	copy(sorted, obs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TimeToElection < sorted[j].TimeToElection })

	points := int(math.Round(1 / step))
	var out []HorizonWeight
	for end := 1; end <= len(sorted); end++ {
		if end < len(sorted) && sorted[end].TimeToElection == sorted[end-1].TimeToElection {
			continue
		}
		window := sorted[:end]
		best := HorizonWeight{Horizon: sorted[end-1].TimeToElection, RMSE: math.Inf(1), Observations: end}
		for k := 0; k <= points; k++ {
			w := float64(k) / float64(points)
			if rmse := blendRMSE(window, w); rmse < best.RMSE {
				best.PollingWeight = w
				best.RMSE = rmse
			}
		}
		out = append(out, best)
	}
	return out, nil
}

// ImpliedWeights returns the polling weight the fitted model gives at each
// horizon, Vf/(Vf+Vp).
func ImpliedWeights(params models.VarianceModelParameters, horizons []float64) ([]HorizonWeight, error) {
	out := make([]HorizonWeight, len(horizons))
	for i, h := range horizons {
		r, err := combiner.Combine(models.ForecastInput{TimeToElection: h}, params)
		if err != nil {
			return nil, err
		}
		out[i] = HorizonWeight{Horizon: h, PollingWeight: r.PollingWeight()}
	}
	return out, nil
}

// SignalErrors compares the historical accuracy of each signal and of a
// fixed-weight blend.
type SignalErrors struct {
	Fundamentals  float64 `json:"fundamentals_rmse"`
	Polling       float64 `json:"polling_rmse"`
	Blend         float64 `json:"blend_rmse"`
	PollingWeight float64 `json:"polling_weight"`
	Observations  int     `json:"observations"`
}

// SignalRMSE reports root mean squared errors over obs.
func SignalRMSE(obs []models.Observation, pollingWeight float64) SignalErrors {
	return SignalErrors{
		Fundamentals:  blendRMSE(obs, 0),
		Polling:       blendRMSE(obs, 1),
		Blend:         blendRMSE(obs, pollingWeight),
		PollingWeight: pollingWeight,
		Observations:  len(obs),
	}
}

func blendRMSE(obs []models.Observation, w float64) float64 {
	if len(obs) == 0 {
		return 0
	}
	blend := make([]float64, len(obs))
	actual := make([]float64, len(obs))
	for i, o := range obs {
		blend[i] = (1-w)*o.FundamentalsPrediction + w*o.PollingAverage
		actual[i] = o.ActualOutcome
	}
	return floats.Distance(blend, actual, 2) / math.Sqrt(float64(len(obs)))
}
