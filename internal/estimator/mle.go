package estimator

import (
	"context"
	"errors"
	"math"

	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"

	"github.com/yourusername/poll-blend/internal/models"
	"github.com/yourusername/poll-blend/internal/variance"
)

// restartOffset is added to each unconstrained coordinate, with alternating
// sign, before the single retry.
const restartOffset = 0.1

const statusDegenerate = "degenerate"

// optimum is the outcome of maximizing one signal's likelihood.
type optimum struct {
	x             []float64
	params        models.SignalParameters
	logLikelihood float64
	iterations    int
	evaluations   int
	status        string
	restarts      int
}

// contextConverger stops the optimizer once ctx is done.
type contextConverger struct {
	ctx   context.Context
	inner optimize.Converger
}

func (c *contextConverger) Init(dim int) {
	c.inner.Init(dim)
}

func (c *contextConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	return c.inner.Converged(loc)
}

func converged(status optimize.Status) bool {
	switch status {
	case optimize.Success, optimize.FunctionConvergence, optimize.MethodConverge,
		optimize.StepConvergence, optimize.GradientThreshold, optimize.FunctionThreshold:
		return true
	default:
		return false
	}
}

// maximize finds the maximum likelihood parameters of one signal with
// Nelder-Mead in the reparameterized space.
func (f *fitter) maximize(ctx context.Context, s *series) (optimum, error) {
	if s.meanSqErr == 0 {
		return optimum{}, &models.FitFailureError{
			Signal: s.signal,
			Status: statusDegenerate,
			Err:    errors.New("all residuals are zero, variance is not identifiable"),
		}
	}

	x0, err := f.rep.Unconstrained(f.startingPoint(s), f.anchor)
	if err != nil {
		return optimum{}, &models.FitFailureError{Signal: s.signal, Status: "invalid start", Err: err}
	}

	best, err := f.minimize(ctx, s, x0)
	if err != nil {
		return optimum{}, err
	}
	if !converged(best.Status) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return optimum{}, &models.FitFailureError{Signal: s.signal, Iterations: best.Stats.MajorIterations, Status: best.Status.String(), Err: ctxErr}
		}
		f.log.LogRestart(string(s.signal), best.Status.String(), best.Stats.MajorIterations)

		restart := perturb(x0, best.X)
		second, err := f.minimize(ctx, s, restart)
		if err != nil {
			return optimum{}, err
		}
		iterations := best.Stats.MajorIterations + second.Stats.MajorIterations
		evaluations := best.Stats.FuncEvaluations + second.Stats.FuncEvaluations
		if !converged(second.Status) {
			failure := &models.FitFailureError{Signal: s.signal, Iterations: iterations, Status: second.Status.String()}
			if ctxErr := ctx.Err(); ctxErr != nil {
				failure.Err = ctxErr
			}
			return optimum{}, failure
		}
		second.Stats.MajorIterations = iterations
		second.Stats.FuncEvaluations = evaluations
		return f.optimumFrom(s, second, 1), nil
	}
	return f.optimumFrom(s, best, 0), nil
}

func (f *fitter) minimize(ctx context.Context, s *series, x0 []float64) (*optimize.Result, error) {
	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			ll := s.logLikelihood(f.form, f.rep.Constrained(x, f.anchor))
			if math.IsNaN(ll) || math.IsInf(ll, -1) {
				return math.Inf(1)
			}
			return -ll
		},
	}
	settings := &optimize.Settings{
		MajorIterations: f.opts.MaxIterations,
		Converger: &contextConverger{
			ctx: ctx,
			inner: &optimize.FunctionConverge{
				Absolute:   f.opts.Tolerance,
				Relative:   f.opts.Tolerance,
				Iterations: 50,
			},
		},
	}

	result, err := optimize.Minimize(problem, x0, settings, &optimize.NelderMead{})
	if result == nil {
		if err == nil {
			err = errors.New("optimizer returned no result")
		}
		return nil, &models.FitFailureError{Signal: s.signal, Status: "optimizer error", Err: err}
	}
	// A non-nil error with a result carries a terminating status we inspect.
	return result, nil
}

func (f *fitter) optimumFrom(s *series, r *optimize.Result, restarts int) optimum {
	params := f.rep.Constrained(r.X, f.anchor)
	return optimum{
		x:             append([]float64(nil), r.X...),
		params:        params,
		logLikelihood: s.logLikelihood(f.form, params),
		iterations:    r.Stats.MajorIterations,
		evaluations:   r.Stats.FuncEvaluations,
		status:        r.Status.String(),
		restarts:      restarts,
	}
}

// startingPoint is a least-squares line through the squared residuals when
// it is positive over [0, anchor], otherwise the constant mean squared
// residual.
func (f *fitter) startingPoint(s *series) models.SignalParameters {
	v0, vA := s.meanSqErr, s.meanSqErr
	if s.distinct >= 2 {
		alpha, beta := stat.LinearRegression(s.times, s.squared, nil, false)
		end := alpha + beta*f.anchor
		if alpha > 0 && end > 0 && !math.IsNaN(beta) && !math.IsInf(end, 0) {
			v0, vA = alpha, end
		}
	}
	if f.form.Name() == variance.FormExponential {
		return models.SignalParameters{Intercept: v0, Slope: math.Log(vA/v0) / f.anchor}
	}
	return models.SignalParameters{Intercept: v0, Slope: (vA - v0) / f.anchor}
}

// perturb moves away from the best point of a failed attempt, or from the
// original start when that point is unusable.
func perturb(start, best []float64) []float64 {
	base := start
	if len(best) == len(start) {
		usable := true
		for _, v := range best {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				usable = false
			}
		}
		if usable {
			base = best
		}
	}
	out := make([]float64, len(base))
	for i, v := range base {
		if i%2 == 0 {
			out[i] = v + restartOffset
		} else {
			out[i] = v - restartOffset
		}
	}
	return out
}
