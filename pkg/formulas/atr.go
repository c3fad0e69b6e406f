package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// TrueRanges computes the daily true range series.
// TR(t) = max(high-low, |high-prevClose|, |low-prevClose|), defined from t=1,
// so the result has len(closes)-1 entries.
func TrueRanges(highs, lows, closes []float64) []float64 {
	n := len(closes)
	if n < 2 || len(highs) != n || len(lows) != n {
		return nil
	}

	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		hl := highs[i] - lows[i]
		hc := math.Abs(highs[i] - closes[i-1])
		lc := math.Abs(lows[i] - closes[i-1])
		tr[i-1] = math.Max(hl, math.Max(hc, lc))
	}
	return tr
}

// ATRSeries computes the Average True Range over OHLC data using Wilder
// smoothing. The result is aligned with the input: entries before index
// `window` are NaN because the smoothing has not warmed up yet.
// Returns nil when the history is shorter than window+1 points.
func ATRSeries(highs, lows, closes []float64, window int) []float64 {
	n := len(closes)
	if window <= 0 || n < window+1 || len(highs) != n || len(lows) != n {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, window)
	out := make([]float64, n)
	for i := range atr {
		if i < window {
			out[i] = math.NaN()
		} else {
			out[i] = atr[i]
		}
	}
	return out
}

// CloseProxyATRSeries computes an ATR substitute from close prices alone,
// for instruments where no intraday range is available. The proxy true
// range is |close_t - close_{t-1}|, smoothed with a simple moving average.
// Alignment matches ATRSeries: NaN before index `window`, nil when the
// history is shorter than window+1 points.
func CloseProxyATRSeries(closes []float64, window int) []float64 {
	n := len(closes)
	if window <= 0 || n < window+1 {
		return nil
	}

	tr := make([]float64, n-1)
	for i := 1; i < n; i++ {
		tr[i-1] = math.Abs(closes[i] - closes[i-1])
	}

	sma := talib.Sma(tr, window)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if i < window {
			out[i] = math.NaN()
		} else {
			out[i] = sma[i-1]
		}
	}
	return out
}
