package estimator

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// RHatThreshold is the split R-hat above which chains are reported as not
// mixed.
const RHatThreshold = 1.1

// splitRHat is the Gelman-Rubin statistic computed on chains split in half,
// maximized over coordinates. chains[c][i] is draw i of chain c. It returns
// 0 when there are too few draws to compute it.
func splitRHat(chains [][][]float64) float64 {
	if len(chains) == 0 || len(chains[0]) < 4 {
		return 0
	}
	n := len(chains[0]) / 2
	for _, ch := range chains {
		if len(ch)/2 < n {
			n = len(ch) / 2
		}
	}
	if n < 2 {
		return 0
	}
	dim := len(chains[0][0])

	worst := 0.0
	segment := make([]float64, n)
	for d := 0; d < dim; d++ {
		means := make([]float64, 0, 2*len(chains))
		variances := make([]float64, 0, 2*len(chains))
		for _, ch := range chains {
			for half := 0; half < 2; half++ {
				for i := 0; i < n; i++ {
					segment[i] = ch[half*n+i][d]
				}
				m, v := stat.MeanVariance(segment, nil)
				means = append(means, m)
				variances = append(variances, v)
			}
		}

		w := stat.Mean(variances, nil)
		if w == 0 {
			continue
		}
		b := float64(n) * stat.Variance(means, nil)
		varPlus := float64(n-1)/float64(n)*w + b/float64(n)
		worst = math.Max(worst, math.Sqrt(varPlus/w))
	}
	return worst
}

func sparseWarning(distinct, required int) string {
	return fmt.Sprintf("only %d distinct time points, %d recommended", distinct, required)
}

func rHatWarning(rHat float64) string {
	return fmt.Sprintf("split R-hat %.3f exceeds %.2f, chains have not mixed", rHat, RHatThreshold)
}
