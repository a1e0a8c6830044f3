package metastats

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/combin"
	"gonum.org/v1/gonum/stat/distuv"
)

// HypergeomCDF returns P(X <= k) for a hypergeometric variable X drawn from
// a population of populationSize with the given number of successes, over
// draws draws. Summed in log space to stay stable for large populations.
func HypergeomCDF(k, populationSize, successes, draws int) float64 {
	if populationSize <= 0 || draws <= 0 || successes < 0 {
		return 1
	}

	lo := draws + successes - populationSize

	if lo < 0 {
		lo = 0
	}

	if k < lo {
		return 0
	}

	hi := draws

	if successes < hi {
		hi = successes
	}

	if k > hi {
		k = hi
	}

	logDenom := combin.LogGeneralizedBinomial(float64(populationSize), float64(draws))
	total := 0.0

	for i := lo; i <= k; i++ {
		logProb := combin.LogGeneralizedBinomial(float64(successes), float64(i)) +
			combin.LogGeneralizedBinomial(float64(populationSize-successes), float64(draws-i)) -
			logDenom
		total += math.Exp(logProb)
	}

	if total > 1 {
		total = 1
	}

	return total
}

// SpearmanResult holds a rank correlation coefficient and its two-sided
// p-value from the t approximation.
type SpearmanResult struct {
	Rho    float64
	PValue float64
}

// Spearman computes the Spearman rank correlation between x and y. The
// second return value is false when the test is undefined: mismatched or
// too-short inputs, or a constant vector (a statistical edge case that
// should produce no shortcut edge rather than an error).
func Spearman(x, y []float64) (SpearmanResult, bool) {
	n := len(x)

	if n != len(y) || n < 3 {
		return SpearmanResult{}, false
	}

	rx, ok := ranks(x)

	if !ok {
		return SpearmanResult{}, false
	}

	ry, ok := ranks(y)

	if !ok {
		return SpearmanResult{}, false
	}

	rho := stat.Correlation(rx, ry, nil)

	if math.IsNaN(rho) {
		return SpearmanResult{}, false
	}

	if rho >= 1 || rho <= -1 {
		return SpearmanResult{Rho: rho, PValue: 0}, true
	}

	t := rho * math.Sqrt(float64(n-2)/(1-rho*rho))
	dist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(n - 2)}
	p := 2 * dist.CDF(-math.Abs(t))

	return SpearmanResult{Rho: rho, PValue: p}, true
}

// ranks assigns average ranks (ties share the mean of their positions).
// Returns false for constant input, where correlation is undefined.
func ranks(values []float64) ([]float64, bool) {
	n := len(values)
	order := make([]int, n)

	for i := range order {
		order[i] = i
	}

	sort.Slice(order, func(i, j int) bool {
		return values[order[i]] < values[order[j]]
	})

	out := make([]float64, n)
	constant := true

	for i := 0; i < n; {
		j := i

		for j+1 < n && values[order[j+1]] == values[order[i]] {
			j++
		}

		// Positions i..j hold ties; they all receive the average rank.
		rank := float64(i+j)/2 + 1

		for k := i; k <= j; k++ {
			out[order[k]] = rank
		}

		if i > 0 || j < n-1 {
			constant = false
		}

		i = j + 1
	}

	if constant {
		return nil, false
	}

	return out, true
}
