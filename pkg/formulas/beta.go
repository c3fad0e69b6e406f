package formulas

import "gonum.org/v1/gonum/stat"

// Beta computes the regression slope of asset returns against benchmark
// returns: Cov(asset, benchmark) / Var(benchmark). The two series are
// aligned on their most recent observations.
//
// Returns false when fewer than minObservations paired observations exist
// or when the benchmark variance is zero.
func Beta(asset, benchmark []float64, minObservations int) (float64, bool) {
	n := len(asset)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n < minObservations || n < 2 {
		return 0, false
	}

	a := asset[len(asset)-n:]
	b := benchmark[len(benchmark)-n:]

	variance := stat.Variance(b, nil)
	if variance == 0 {
		return 0, false
	}

	return stat.Covariance(a, b, nil) / variance, true
}
