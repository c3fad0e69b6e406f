package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeta_PerfectlyCorrelatedSeries(t *testing.T) {
	tests := []struct {
		name  string
		slope float64
	}{
		{"unit beta", 1.0},
		{"defensive", 0.5},
		{"leveraged", 2.3},
		{"inverse", -1.0},
	}

	bench := make([]float64, 60)
	for i := range bench {
		// Alternating, non-constant benchmark returns.
		bench[i] = 0.01 * float64(i%7-3)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := make([]float64, len(bench))
			for i, r := range bench {
				asset[i] = tt.slope * r
			}

			got, ok := Beta(asset, bench, 20)
			require.True(t, ok)
			assert.InDelta(t, tt.slope, got, 1e-9)
		})
	}
}

func TestBeta_TooFewObservations(t *testing.T) {
	asset := []float64{0.01, -0.02, 0.03}
	bench := []float64{0.01, 0.02, -0.01}

	_, ok := Beta(asset, bench, 20)
	assert.False(t, ok)
}

func TestBeta_ZeroBenchmarkVariance(t *testing.T) {
	asset := make([]float64, 30)
	bench := make([]float64, 30)
	for i := range asset {
		asset[i] = 0.01 * float64(i%3)
		bench[i] = 0.005 // flat benchmark
	}

	_, ok := Beta(asset, bench, 20)
	assert.False(t, ok)
}

func TestBeta_TailAlignment(t *testing.T) {
	// Benchmark is longer than the asset series; only the common tail counts.
	bench := make([]float64, 100)
	for i := range bench {
		bench[i] = 0.002 * float64(i%5-2)
	}

	asset := make([]float64, 40)
	for i := range asset {
		asset[i] = 1.5 * bench[len(bench)-40+i]
	}

	got, ok := Beta(asset, bench, 20)
	require.True(t, ok)
	assert.InDelta(t, 1.5, got, 1e-9)
}
