// Package combiner fuses the fundamentals prediction and the polling average
// into a Gaussian posterior over the true vote share.
//
// Both inputs are treated as independent Gaussian measurements of the same
// quantity, so the posterior is the precision-weighted mean with variance
// sf*sp/(sf+sp). Everything here is a pure function.
package combiner

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// Fused is the result of combining two Gaussian measurements.
type Fused struct {
	Mean     float64
	Variance float64
}

// Fuse combines prediction f with variance sf and prediction p with
// variance sp. Either variance non-positive or non-finite yields
// *models.InvalidVarianceModelError carrying only the signal and the
// offending variance; Combine adds the form, parameters and time. Valid
// variances whose fused result underflows or overflows yield
// *models.DegenerateVarianceError.
func Fuse(f, sf, p, sp float64) (Fused, error) {
	if err := checkVariance(models.SignalFundamentals, sf); err != nil {
		return Fused{}, err
	}
	if err := checkVariance(models.SignalPolling, sp); err != nil {
		return Fused{}, err
	}

	total := sf + sp
	if total == 0 || math.IsInf(total, 0) {
		return Fused{}, &models.DegenerateVarianceError{FundamentalsVariance: sf, PollingVariance: sp}
	}
	fused := Fused{
		Mean:     (sp*f + sf*p) / total,
		Variance: sf * sp / total,
	}
	if math.IsNaN(fused.Mean) || math.IsInf(fused.Mean, 0) || !(fused.Variance > 0) || math.IsInf(fused.Variance, 0) {
		return Fused{}, &models.DegenerateVarianceError{FundamentalsVariance: sf, PollingVariance: sp}
	}
	return fused, nil
}

// Combine evaluates both variance functions at the input's time and fuses
// the two predictions.
func Combine(in models.ForecastInput, params models.VarianceModelParameters) (models.ForecastResult, error) {
	form, err := variance.Lookup(params.Form)
	if err != nil {
		return models.ForecastResult{}, err
	}
	return CombineWithForm(in, params, form)
}

// CombineWithForm is Combine with an explicit variance form.
func CombineWithForm(in models.ForecastInput, params models.VarianceModelParameters, form variance.Form) (models.ForecastResult, error) {
	if err := checkInput(in); err != nil {
		return models.ForecastResult{}, err
	}

	t := in.TimeToElection
	sf := form.Variance(t, params.Fundamentals)
	sp := form.Variance(t, params.Polling)

	fused, err := Fuse(in.FundamentalsPrediction, sf, in.PollingAverage, sp)
	if err != nil {
		return models.ForecastResult{}, annotate(err, form, params, t)
	}
	return models.ForecastResult{
		Mean:                 fused.Mean,
		Variance:             fused.Variance,
		FundamentalsVariance: sf,
		PollingVariance:      sp,
		TimeToElection:       t,
	}, nil
}

// CombineSamples fuses the input under every posterior sample and returns
// the mixture: its mean is the average of the sample means and its variance
// follows the law of total variance. FundamentalsVariance and
// PollingVariance are sample averages.
func CombineSamples(in models.ForecastInput, samples []models.VarianceModelParameters) (models.ForecastResult, error) {
	if len(samples) == 0 {
		return models.ForecastResult{}, fmt.Errorf("%w: no posterior samples", models.ErrInvalidInput)
	}

	means := make([]float64, len(samples))
	variances := make([]float64, len(samples))
	var sf, sp float64
	for i, params := range samples {
		r, err := Combine(in, params)
		if err != nil {
			return models.ForecastResult{}, fmt.Errorf("sample %d: %w", i, err)
		}
		means[i] = r.Mean
		variances[i] = r.Variance
		sf += r.FundamentalsVariance
		sp += r.PollingVariance
	}

	n := float64(len(samples))
	mean, spread := stat.PopMeanVariance(means, nil)
	return models.ForecastResult{
		Mean:                 mean,
		Variance:             stat.Mean(variances, nil) + spread,
		FundamentalsVariance: sf / n,
		PollingVariance:      sp / n,
		TimeToElection:       in.TimeToElection,
		Samples:              len(samples),
	}, nil
}

// Forecast uses the posterior samples of a fit when it has them and the
// point estimate otherwise.
func Forecast(in models.ForecastInput, fit models.FitResult) (models.ForecastResult, error) {
	if fit.HasSamples() {
		return CombineSamples(in, fit.Samples)
	}
	return Combine(in, fit.Parameters)
}

func checkVariance(signal models.Signal, v float64) error {
	if v > 0 && !math.IsInf(v, 1) {
		return nil
	}
	return &models.InvalidVarianceModelError{Signal: signal, Variance: v}
}

func checkInput(in models.ForecastInput) error {
	values := []float64{in.TimeToElection, in.FundamentalsPrediction, in.PollingAverage}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: forecast input %+v is not finite", models.ErrInvalidInput, in)
		}
	}
	if in.TimeToElection < 0 {
		return fmt.Errorf("%w: time_to_election %g is negative", models.ErrInvalidInput, in.TimeToElection)
	}
	return nil
}

// annotate fills in the form context Fuse cannot know.
func annotate(err error, form variance.Form, params models.VarianceModelParameters, t float64) error {
	switch e := err.(type) {
	case *models.InvalidVarianceModelError:
		p := params.For(e.Signal)
		e.Form = form.Name()
		e.Intercept = p.Intercept
		e.Slope = p.Slope
		e.Time = t
	case *models.DegenerateVarianceError:
		e.Time = t
	}
	return err
}
