package estimator

import (
	"context"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/yourusername/poll-blend/internal/models"
)

const (
	// adaptWindow is the number of burn-in iterations between step-size
	// adjustments.
	adaptWindow = 50
	// startJitter is the scale of the noise added to the MLE to start each
	// chain.
	startJitter = 0.05
)

type chain struct {
	draws     [][]float64
	accepted  int
	proposals int
}

type posterior struct {
	draws          []models.SignalParameters
	mean           models.SignalParameters
	acceptanceRate float64
	rHat           float64
}

// sample draws from the posterior of one signal's parameters under a flat
// prior in the unconstrained space. Chains run concurrently and each has its
// own seeded source, so results are reproducible for a fixed seed.
func (f *fitter) sample(ctx context.Context, s *series, start []float64, signalIndex int) (posterior, error) {
	chains := make([]chain, f.opts.MCMC.Chains)

	g, gctx := errgroup.WithContext(ctx)
	for c := range chains {
		c := c
		seed := f.opts.MCMC.Seed + int64(100*signalIndex+c)
		g.Go(func() error {
			ch, err := f.runChain(gctx, s, start, seed)
			if err != nil {
				return err
			}
			chains[c] = ch
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return posterior{}, err
	}

	var post posterior
	accepted, proposals := 0, 0
	raw := make([][][]float64, len(chains))
	for c, ch := range chains {
		raw[c] = ch.draws
		accepted += ch.accepted
		proposals += ch.proposals
		for _, x := range ch.draws {
			post.draws = append(post.draws, f.rep.Constrained(x, f.anchor))
		}
	}
	if proposals > 0 {
		post.acceptanceRate = float64(accepted) / float64(proposals)
	}
	post.rHat = splitRHat(raw)
	post.mean = meanParameters(post.draws)
	return post, nil
}

func (f *fitter) runChain(ctx context.Context, s *series, start []float64, seed int64) (chain, error) {
	opts := f.opts.MCMC
	rng := rand.New(rand.NewSource(seed))
	logPost := func(x []float64) float64 {
		return s.logLikelihood(f.form, f.rep.Constrained(x, f.anchor))
	}

	x := make([]float64, len(start))
	for i := range start {
		x[i] = start[i] + startJitter*rng.NormFloat64()
	}
	lp := logPost(x)
	if math.IsNaN(lp) || math.IsInf(lp, -1) {
		copy(x, start)
		lp = logPost(x)
	}

	step := opts.InitialStep
	proposal := make([]float64, len(x))
	total := opts.BurnIn + opts.Samples*opts.Thin
	windowAccepted := 0
	out := chain{draws: make([][]float64, 0, opts.Samples)}

	for iter := 0; iter < total; iter++ {
		if iter%100 == 0 {
			if err := ctx.Err(); err != nil {
				return out, err
			}
		}

		for i := range x {
			proposal[i] = x[i] + step*rng.NormFloat64()
		}
		lpNew := logPost(proposal)
		accepted := false
		if !math.IsNaN(lpNew) && (lpNew >= lp || math.Log(rng.Float64()) < lpNew-lp) {
			copy(x, proposal)
			lp = lpNew
			accepted = true
		}

		if iter < opts.BurnIn {
			if accepted {
				windowAccepted++
			}
			if (iter+1)%adaptWindow == 0 {
				rate := float64(windowAccepted) / adaptWindow
				switch {
				case rate > 0.35:
					step *= 1.2
				case rate < 0.2:
					step *= 0.8
				}
				windowAccepted = 0
			}
			continue
		}

		out.proposals++
		if accepted {
			out.accepted++
		}
		if (iter-opts.BurnIn+1)%opts.Thin == 0 {
			out.draws = append(out.draws, append([]float64(nil), x...))
		}
	}
	return out, nil
}

func meanParameters(draws []models.SignalParameters) models.SignalParameters {
	if len(draws) == 0 {
		return models.SignalParameters{}
	}
	var sum models.SignalParameters
	for _, d := range draws {
		sum.Intercept += d.Intercept
		sum.Slope += d.Slope
	}
	n := float64(len(draws))
	return models.SignalParameters{Intercept: sum.Intercept / n, Slope: sum.Slope / n}
}
