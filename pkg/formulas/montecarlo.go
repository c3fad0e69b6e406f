package formulas

import (
	"math"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// MonteCarloVaR estimates dollar Value-at-Risk for a single position by
// simulating Gaussian log returns over the holding period.
//
// muDaily and sigmaDaily are the estimated daily log-return mean and
// standard deviation; they are scaled to the holding period as mu*h and
// sigma*sqrt(h). The VaR is read off the (1-confidence) percentile q of the
// simulated returns and expressed in dollars as
//
//	value * (1 - exp(q))
//
// floored at zero: a simulated gain at the cutoff percentile means no
// reported loss. The seed makes the draw reproducible for tests; callers
// wanting production behavior pass a fresh seed per request.
func MonteCarloVaR(value, muDaily, sigmaDaily, holdingDays float64, simulations int, confidence float64, seed uint64) float64 {
	if value <= 0 || simulations <= 0 || holdingDays <= 0 {
		return 0
	}
	if sigmaDaily < 0 || math.IsNaN(sigmaDaily) || math.IsNaN(muDaily) {
		return 0
	}

	muH := muDaily * holdingDays
	sigmaH := sigmaDaily * math.Sqrt(holdingDays)

	// Degenerate volatility estimate: the return is deterministic.
	if sigmaH == 0 {
		loss := value * (1 - math.Exp(muH))
		return math.Max(loss, 0)
	}

	normal := distuv.Normal{
		Mu:    muH,
		Sigma: sigmaH,
		Src:   rand.NewPCG(seed, seed),
	}

	draws := make([]float64, simulations)
	for i := range draws {
		draws[i] = normal.Rand()
	}
	sort.Float64s(draws)

	cutoff := int((1 - confidence) * float64(simulations))
	if cutoff < 0 {
		cutoff = 0
	}
	if cutoff >= simulations {
		cutoff = simulations - 1
	}

	loss := value * (1 - math.Exp(draws[cutoff]))
	return math.Max(loss, 0)
}
