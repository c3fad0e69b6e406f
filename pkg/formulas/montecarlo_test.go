package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMonteCarloVaR_NonNegative(t *testing.T) {
	tests := []struct {
		name  string
		mu    float64
		sigma float64
	}{
		{"typical equity", 0.0005, 0.015},
		{"strong uptrend", 0.01, 0.001},
		{"volatile loser", -0.002, 0.04},
		{"zero volatility gain", 0.01, 0},
		{"zero volatility loss", -0.01, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := MonteCarloVaR(18000, tt.mu, tt.sigma, 1, 5000, 0.95, 42)
			assert.GreaterOrEqual(t, v, 0.0)
			assert.False(t, math.IsNaN(v))
		})
	}
}

func TestMonteCarloVaR_DeterministicWithSeed(t *testing.T) {
	a := MonteCarloVaR(18000, 0.0003, 0.02, 1, 5000, 0.95, 7)
	b := MonteCarloVaR(18000, 0.0003, 0.02, 1, 5000, 0.95, 7)
	assert.Equal(t, a, b)
}

func TestMonteCarloVaR_StableAcrossSeeds(t *testing.T) {
	a := MonteCarloVaR(18000, 0.0003, 0.02, 1, 20000, 0.95, 1)
	b := MonteCarloVaR(18000, 0.0003, 0.02, 1, 20000, 0.95, 2)

	assert.Greater(t, a, 0.0)
	assert.InEpsilon(t, a, b, 0.05)
}

func TestMonteCarloVaR_ScalesWithValue(t *testing.T) {
	small := MonteCarloVaR(1000, 0.0, 0.02, 1, 5000, 0.95, 3)
	large := MonteCarloVaR(10000, 0.0, 0.02, 1, 5000, 0.95, 3)
	assert.InEpsilon(t, small*10, large, 1e-9)
}

func TestMonteCarloVaR_GrowsWithHoldingPeriod(t *testing.T) {
	oneDay := MonteCarloVaR(18000, 0.0, 0.02, 1, 5000, 0.95, 4)
	tenDays := MonteCarloVaR(18000, 0.0, 0.02, 10, 5000, 0.95, 4)
	assert.Greater(t, tenDays, oneDay)
}

func TestMonteCarloVaR_DegenerateInputs(t *testing.T) {
	assert.Equal(t, 0.0, MonteCarloVaR(0, 0.001, 0.02, 1, 5000, 0.95, 5))
	assert.Equal(t, 0.0, MonteCarloVaR(-100, 0.001, 0.02, 1, 5000, 0.95, 5))
	assert.Equal(t, 0.0, MonteCarloVaR(18000, 0.001, 0.02, 1, 0, 0.95, 5))
	assert.Equal(t, 0.0, MonteCarloVaR(18000, 0.001, -0.5, 1, 5000, 0.95, 5))
	assert.Equal(t, 0.0, MonteCarloVaR(18000, math.NaN(), 0.02, 1, 5000, 0.95, 5))
}
