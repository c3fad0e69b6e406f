package recompute

import (
	"fmt"
	"sort"
	"strings"
)

// Market-cap bucket thresholds, in dollars.
const (
	capMegaMin  = 100e9
	capLargeMin = 10e9
	capMidMin   = 2e9
	capSmallMin = 500e6
)

// applyWeights runs the cross-sectional pass: weight is each row's share
// of the summed position value over non-error rows with positive value.
// Error rows and zero-value rows get weight 0, which also zeroes their
// weighted derivatives. Returns the total invested value.
func applyWeights(rows []PositionMetrics) float64 {
	total := 0.0
	for i := range rows {
		r := &rows[i]
		if r.Error != "" || r.PositionValue == nil {
			continue
		}
		if *r.PositionValue > 0 {
			total += *r.PositionValue
		}
	}

	for i := range rows {
		r := &rows[i]
		r.Weight = 0
		if total > 0 && r.Error == "" && r.PositionValue != nil && *r.PositionValue > 0 {
			r.Weight = *r.PositionValue / total
		}
		if r.Beta != nil {
			r.BetaWeighted = ptr(*r.Beta * r.Weight)
		}
		if r.ExpectedReturn != nil {
			r.WeightedExpectedReturn = ptr(*r.ExpectedReturn * r.Weight)
		}
	}

	return total
}

// buildSectorAllocation groups non-error rows by sector and merges in the
// caller's target allocations and the benchmark's sector weights. Key
// matching is case- and separator-insensitive so "Financial Services"
// lines up with "financial_services".
func buildSectorAllocation(rows []PositionMetrics, targets, marketWeights map[string]float64, totalPortfolioValue float64) []SectorAllocationRow {
	type group struct {
		name  string
		count int
		value float64
	}
	groups := make(map[string]*group)

	for i := range rows {
		r := &rows[i]
		if r.Error != "" || r.PositionValue == nil {
			continue
		}
		name := r.Sector
		if name == "" {
			name = "Unknown"
		}
		key := normalizeSectorKey(name)
		g, ok := groups[key]
		if !ok {
			g = &group{name: name}
			groups[key] = g
		}
		g.count++
		g.value += *r.PositionValue
	}

	normTargets := normalizeSectorKeys(targets)
	normMarket := normalizeSectorKeys(marketWeights)

	out := make([]SectorAllocationRow, 0, len(groups))
	for key, g := range groups {
		row := SectorAllocationRow{
			Sector:        g.name,
			Count:         g.count,
			TotalValue:    g.value,
			SetAllocation: normTargets[key],
			MarketWeight:  normMarket[key],
		}
		if totalPortfolioValue > 0 {
			row.Weight = g.value / totalPortfolioValue
		}
		row.AllocationGoal = totalPortfolioValue * row.SetAllocation
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalValue != out[j].TotalValue {
			return out[i].TotalValue > out[j].TotalValue
		}
		return out[i].Sector < out[j].Sector
	})
	return out
}

// buildCapBuckets distributes non-error rows with a known market cap into
// the five size buckets plus a Total row. Pct accumulates position weights,
// so the Total row shows how much of the portfolio has cap coverage.
func buildCapBuckets(rows []PositionMetrics) []CapBucketRow {
	order := []string{CapMega, CapLarge, CapMid, CapSmall, CapMicro}
	counts := make(map[string]int, len(order))
	pcts := make(map[string]float64, len(order))
	totalCount := 0
	totalPct := 0.0

	for i := range rows {
		r := &rows[i]
		if r.Error != "" || r.MarketCap == nil {
			continue
		}
		cat := capCategory(*r.MarketCap)
		counts[cat]++
		pcts[cat] += r.Weight
		totalCount++
		totalPct += r.Weight
	}

	out := make([]CapBucketRow, 0, len(order)+1)
	for _, cat := range order {
		out = append(out, CapBucketRow{Category: cat, Count: counts[cat], Pct: pcts[cat]})
	}
	out = append(out, CapBucketRow{Category: CapTotal, Count: totalCount, Pct: totalPct})
	return out
}

func capCategory(marketCap float64) string {
	switch {
	case marketCap >= capMegaMin:
		return CapMega
	case marketCap >= capLargeMin:
		return CapLarge
	case marketCap >= capMidMin:
		return CapMid
	case marketCap >= capSmallMin:
		return CapSmall
	default:
		return CapMicro
	}
}

// FormatMarketCap renders a market cap as a short display label
// (2.95T, 184.33B, 750.00M).
func FormatMarketCap(v float64) string {
	switch {
	case v <= 0:
		return ""
	case v >= 1e12:
		return fmt.Sprintf("%.2fT", v/1e12)
	case v >= 1e9:
		return fmt.Sprintf("%.2fB", v/1e9)
	case v >= 1e6:
		return fmt.Sprintf("%.2fM", v/1e6)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

func normalizeSectorKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func normalizeSectorKeys(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[normalizeSectorKey(k)] = v
	}
	return out
}
