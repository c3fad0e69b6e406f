package recompute

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aristath/risksheet/pkg/formulas"
)

const dateLayout = "2006-01-02"

// computeRow derives every per-position metric that does not depend on the
// rest of the batch. Cross-sectional fields (weight, beta_weighted,
// weighted_expected_return) are filled by the aggregation pass afterwards.
func (s *Service) computeRow(pos Position, res fetchResult, benchReturns []float64, now time.Time, seed uint64) PositionMetrics {
	row := PositionMetrics{
		Ticker:      strings.ToUpper(strings.TrimSpace(pos.Ticker)),
		Shares:      pos.Shares,
		PriceBought: pos.PriceBought,
		DateBought:  pos.DateBought,
	}

	if res.err != nil {
		row.Error = res.err.Error()
		return row
	}
	snap := res.snapshot
	if snap == nil || len(snap.History) == 0 {
		row.Error = fmt.Sprintf("no market data for %s", row.Ticker)
		return row
	}

	closes := make([]float64, len(snap.History))
	highs := make([]float64, len(snap.History))
	lows := make([]float64, len(snap.History))
	hasRange := false
	for i, bar := range snap.History {
		closes[i] = bar.Close
		highs[i] = bar.High
		lows[i] = bar.Low
		if bar.High != 0 || bar.Low != 0 {
			hasRange = true
		}
	}

	currentPrice := snap.CurrentPrice
	if currentPrice <= 0 {
		currentPrice = closes[len(closes)-1]
	}
	if currentPrice <= 0 {
		row.Error = fmt.Sprintf("no current price for %s", row.Ticker)
		return row
	}
	row.CurrentPrice = ptr(currentPrice)

	valuePaid := pos.Shares * pos.PriceBought
	positionValue := pos.Shares * currentPrice
	row.ValuePaid = ptr(valuePaid)
	row.PositionValue = ptr(positionValue)

	pctChange := 0.0
	if valuePaid > 0 {
		pctChange = positionValue/valuePaid - 1
	}
	row.PctChange = ptr(pctChange)

	row.Sector = snap.Sector
	row.MarketCap = snap.MarketCap
	if snap.MarketCap != nil {
		row.CapFormatted = FormatMarketCap(*snap.MarketCap)
	}

	var boughtAt *time.Time
	if pos.DateBought != nil && *pos.DateBought != "" {
		if d, err := time.Parse(dateLayout, *pos.DateBought); err == nil {
			boughtAt = &d
		} else {
			s.log.Debug().Str("ticker", row.Ticker).Str("date_bought", *pos.DateBought).Msg("Unparseable purchase date, ignoring")
		}
	}
	if boughtAt != nil {
		days := int(now.Sub(*boughtAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		row.HoldingPeriod = days
	}

	s.applyATR(&row, pos, highs, lows, closes, hasRange, currentPrice, boughtAt, snap.History)

	returns := formulas.LogReturns(closes)

	if beta, ok := formulas.Beta(returns, benchReturns, s.cfg.MinBetaObservations); ok {
		row.Beta = ptr(beta)
		annualBench := formulas.AnnualizedMeanReturn(benchReturns)
		row.ExpectedReturn = ptr(s.cfg.RiskFreeRate + beta*(annualBench-s.cfg.RiskFreeRate))
	}

	if len(returns) >= 2 {
		if positionValue > 0 {
			mu := formulas.Mean(returns)
			sigma := formulas.StdDev(returns)
			row.VaR = ptr(formulas.MonteCarloVaR(positionValue, mu, sigma, s.cfg.VaRHoldingDays, s.cfg.VaRSimulations, s.cfg.VaRConfidence, seed))
		} else {
			row.VaR = ptr(0)
		}
	}

	s.applyImpliedVol(&row, returns, currentPrice)

	return row
}

// applyATR fills the ATR family of fields. History shorter than window+1
// leaves all of them null without failing the row.
func (s *Service) applyATR(row *PositionMetrics, pos Position, highs, lows, closes []float64, hasRange bool, currentPrice float64, boughtAt *time.Time, history []Bar) {
	var atrSeries []float64
	if hasRange {
		atrSeries = formulas.ATRSeries(highs, lows, closes, s.cfg.ATRWindow)
	} else {
		// Close-only feed: fall back to the close-to-close proxy.
		atrSeries = formulas.CloseProxyATRSeries(closes, s.cfg.ATRWindow)
	}
	if atrSeries == nil {
		return
	}

	if latest := atrSeries[len(atrSeries)-1]; !math.IsNaN(latest) {
		row.ATR = ptr(latest)
		row.CurrentTP = ptr(currentPrice + s.cfg.TakeProfitATRs*latest)
		row.CurrentSL = ptr(currentPrice - s.cfg.StopLossATRs*latest)
	}

	idx := entryIndex(history, boughtAt, s.cfg.ATRWindow)
	if idx < 0 || math.IsNaN(atrSeries[idx]) {
		return
	}

	entry := atrSeries[idx]
	row.EntryATR = ptr(entry)
	row.TakeProfit = ptr(pos.PriceBought + s.cfg.TakeProfitATRs*entry)
	row.StopLoss = ptr(pos.PriceBought - s.cfg.StopLossATRs*entry)
	if entry > 0 {
		row.NoATRs = ptr((currentPrice - pos.PriceBought) / entry)
	}
}

// applyImpliedVol solves for the at-the-money implied volatility. The
// target option price is a theoretical ATM call priced at the realized
// annualized volatility of the position's log returns; non-convergence
// leaves iv null without failing the row.
func (s *Service) applyImpliedVol(row *PositionMetrics, returns []float64, currentPrice float64) {
	if len(returns) < s.cfg.MinIVObservations {
		return
	}

	realized := formulas.AnnualizedVolatility(returns)
	if realized <= 0 {
		return
	}

	tenor := float64(s.cfg.IVTenorDays) / 365.0
	target := formulas.BSCallPrice(currentPrice, currentPrice, s.cfg.RiskFreeRate, realized, tenor)
	if target <= 0 {
		return
	}

	iv, ok := formulas.ImpliedVol(target, currentPrice, currentPrice, s.cfg.RiskFreeRate, tenor)
	if !ok {
		s.log.Debug().Str("ticker", row.Ticker).Float64("realized_vol", realized).Msg("Implied vol solver did not converge")
		return
	}
	row.IV = ptr(iv)
}

// entryIndex locates the history index whose ATR value represents the
// entry: the last bar on or before the purchase date, clamped into the
// warmed-up region when the purchase predates ATR coverage. A missing
// purchase date resolves to the most recent bar.
func entryIndex(history []Bar, boughtAt *time.Time, window int) int {
	last := len(history) - 1
	if last < 0 {
		return -1
	}
	if boughtAt == nil {
		return last
	}

	idx := -1
	for i, bar := range history {
		if bar.Date.After(*boughtAt) {
			break
		}
		idx = i
	}

	if idx < window {
		idx = window
	}
	if idx > last {
		idx = last
	}
	return idx
}

func ptr(v float64) *float64 {
	return &v
}
