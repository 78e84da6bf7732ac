package envelope

import (
	"math"
	"sort"
)

// Quantile returns the p-quantile (0 <= p <= 1) of an ascending sorted
// slice using linear interpolation between order statistics at rank
// p*(n-1) (Hyndman-Fan type 7). It returns NaN for an empty slice.
func Quantile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 || math.IsNaN(p) {
		return math.NaN()
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[n-1]
	}

	h := p * float64(n-1)
	lo := int(math.Floor(h))
	hi := lo + 1
	if hi >= n {
		return sorted[lo]
	}
	frac := h - float64(lo)
	if frac == 0 {
		return sorted[lo]
	}
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}

// presentSorted gathers the non-missing values of v at the given rows and
// returns them in ascending order.
func presentSorted(values []float64, rows []int) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		if x := values[r]; !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	sort.Float64s(out)
	return out
}

// trimmedBounds returns [Q(quant), Q(1-quant)] of sorted. One value gives a
// zero-width interval; no values give missing bounds.
func trimmedBounds(sorted []float64, quant float64) (lower, upper float64) {
	switch len(sorted) {
	case 0:
		return math.NaN(), math.NaN()
	case 1:
		return sorted[0], sorted[0]
	}
	return Quantile(sorted, quant), Quantile(sorted, 1-quant)
}
