package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Implied volatility solver parameters.
const (
	ivInitialGuess  = 0.3
	ivMaxIterations = 100
	ivPriceTol      = 1e-6
	ivSigmaLow      = 0.001
	ivSigmaHigh     = 5.0
	vegaFloor       = 1e-10
)

var stdNormal = distuv.Normal{Mu: 0, Sigma: 1}

// BSCallPrice prices a European call under Black-Scholes:
// C = S*Phi(d1) - K*exp(-r*t)*Phi(d2).
// Returns 0 for degenerate inputs (non-positive spot, strike, vol or tenor).
func BSCallPrice(s, k, r, sigma, t float64) float64 {
	if s <= 0 || k <= 0 || sigma <= 0 || t <= 0 {
		return 0
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	return s*stdNormal.CDF(d1) - k*math.Exp(-r*t)*stdNormal.CDF(d2)
}

// BSVega is the sensitivity of the call price to volatility,
// dC/dsigma = S*sqrt(t)*phi(d1).
func BSVega(s, k, r, sigma, t float64) float64 {
	if s <= 0 || k <= 0 || sigma <= 0 || t <= 0 {
		return 0
	}

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)

	return s * sqrtT * stdNormal.Prob(d1)
}

// ImpliedVol solves BSCallPrice(s, k, r, sigma, t) = targetPrice for sigma.
//
// Newton-Raphson from a fixed initial guess using the analytic vega; falls
// back to bisection over [0.001, 5.0] when a Newton step leaves that bracket
// or vega underflows. Returns false when the target price is outside the
// bracket's price range or the iteration budget is exhausted.
func ImpliedVol(targetPrice, s, k, r, t float64) (float64, bool) {
	if targetPrice <= 0 || s <= 0 || k <= 0 || t <= 0 {
		return 0, false
	}

	sigma := ivInitialGuess
	for i := 0; i < ivMaxIterations; i++ {
		price := BSCallPrice(s, k, r, sigma, t)
		diff := price - targetPrice
		if math.Abs(diff) < ivPriceTol {
			return sigma, true
		}

		vega := BSVega(s, k, r, sigma, t)
		if vega < vegaFloor {
			return bisectImpliedVol(targetPrice, s, k, r, t)
		}

		next := sigma - diff/vega
		if next <= ivSigmaLow || next >= ivSigmaHigh || math.IsNaN(next) {
			return bisectImpliedVol(targetPrice, s, k, r, t)
		}
		sigma = next
	}

	return 0, false
}

// bisectImpliedVol brackets sigma between ivSigmaLow and ivSigmaHigh.
// The call price is monotonically increasing in sigma, so a sign change
// of price-target across the bracket guarantees a root.
func bisectImpliedVol(targetPrice, s, k, r, t float64) (float64, bool) {
	lo, hi := ivSigmaLow, ivSigmaHigh

	fLo := BSCallPrice(s, k, r, lo, t) - targetPrice
	fHi := BSCallPrice(s, k, r, hi, t) - targetPrice
	if fLo > 0 || fHi < 0 {
		return 0, false
	}

	for i := 0; i < ivMaxIterations; i++ {
		mid := 0.5 * (lo + hi)
		fMid := BSCallPrice(s, k, r, mid, t) - targetPrice
		if math.Abs(fMid) < ivPriceTol {
			return mid, true
		}
		if fMid < 0 {
			lo = mid
		} else {
			hi = mid
		}
	}

	return 0.5 * (lo + hi), true
}
