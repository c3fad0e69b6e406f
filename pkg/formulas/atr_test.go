package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syntheticOHLC(n int) (highs, lows, closes []float64) {
	highs = make([]float64, n)
	lows = make([]float64, n)
	closes = make([]float64, n)
	price := 100.0
	for i := 0; i < n; i++ {
		drift := 0.3 * float64(i%5-2)
		price += drift
		highs[i] = price + 1.0
		lows[i] = price - 1.0
		closes[i] = price
	}
	return highs, lows, closes
}

func TestTrueRanges(t *testing.T) {
	highs := []float64{0, 105, 103}
	lows := []float64{0, 99, 98}
	closes := []float64{100, 104, 99}

	tr := TrueRanges(highs, lows, closes)
	require.Len(t, tr, 2)

	// Day 1: max(105-99, |105-100|, |99-100|) = 6
	assert.InDelta(t, 6.0, tr[0], 1e-12)
	// Day 2: max(103-98, |103-104|, |98-104|) = 6
	assert.InDelta(t, 6.0, tr[1], 1e-12)
}

func TestATRSeries_WarmupAndNonNegative(t *testing.T) {
	const window = 14
	highs, lows, closes := syntheticOHLC(60)

	atr := ATRSeries(highs, lows, closes, window)
	require.Len(t, atr, 60)

	for i := 0; i < window; i++ {
		assert.True(t, math.IsNaN(atr[i]), "index %d should be warmup NaN", i)
	}
	for i := window; i < len(atr); i++ {
		require.False(t, math.IsNaN(atr[i]), "index %d", i)
		assert.GreaterOrEqual(t, atr[i], 0.0)
	}

	// Daily range is constant at 2.0 with small drifts, so ATR stays near it.
	assert.InDelta(t, 2.0, atr[len(atr)-1], 1.0)
}

func TestATRSeries_InsufficientHistory(t *testing.T) {
	highs, lows, closes := syntheticOHLC(14)
	assert.Nil(t, ATRSeries(highs, lows, closes, 14))

	highs, lows, closes = syntheticOHLC(15)
	assert.NotNil(t, ATRSeries(highs, lows, closes, 14))
}

func TestATRSeries_MismatchedLengths(t *testing.T) {
	highs, lows, closes := syntheticOHLC(30)
	assert.Nil(t, ATRSeries(highs[:29], lows, closes, 14))
}

func TestCloseProxyATRSeries(t *testing.T) {
	const window = 14
	closes := make([]float64, 50)
	price := 100.0
	for i := range closes {
		if i%2 == 0 {
			price += 1.0
		} else {
			price -= 0.5
		}
		closes[i] = price
	}

	atr := CloseProxyATRSeries(closes, window)
	require.Len(t, atr, 50)

	for i := 0; i < window; i++ {
		assert.True(t, math.IsNaN(atr[i]))
	}

	// Absolute close-to-close moves alternate between 1.0 and 0.5,
	// so the 14-period mean sits at 0.75.
	assert.InDelta(t, 0.75, atr[len(atr)-1], 0.05)
}

func TestCloseProxyATRSeries_InsufficientHistory(t *testing.T) {
	closes := make([]float64, 14)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	assert.Nil(t, CloseProxyATRSeries(closes, 14))
}
