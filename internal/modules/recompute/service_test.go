package recompute

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	snapshots map[string]*MarketSnapshot
	errs      map[string]error
	delay     time.Duration
}

func (f *stubFetcher) FetchSnapshot(ctx context.Context, ticker string) (*MarketSnapshot, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.errs[ticker]; ok {
		return nil, err
	}
	if snap, ok := f.snapshots[ticker]; ok {
		return snap, nil
	}
	return nil, fmt.Errorf("ticker %s not found", ticker)
}

// syntheticBars builds a deterministic oscillating daily price path ending
// at the reference time.
func syntheticBars(n int, base float64, now time.Time) []Bar {
	bars := make([]Bar, n)
	price := base
	for i := 0; i < n; i++ {
		price *= 1 + 0.004*float64(i%5-2)
		bars[i] = Bar{
			Date:  now.AddDate(0, 0, i-n),
			Open:  price,
			High:  price * 1.01,
			Low:   price * 0.99,
			Close: price,
		}
	}
	return bars
}

func snapshotFor(ticker string, bars []Bar, sector string, marketCap float64) *MarketSnapshot {
	snap := &MarketSnapshot{
		Ticker:       ticker,
		History:      bars,
		CurrentPrice: bars[len(bars)-1].Close,
		Sector:       sector,
	}
	if marketCap > 0 {
		snap.MarketCap = &marketCap
	}
	return snap
}

func newTestService(f SnapshotFetcher, overrides ...func(*Config)) *Service {
	cfg := DefaultConfig()
	cfg.VaRSeed = 42
	for _, o := range overrides {
		o(&cfg)
	}
	return NewService(f, cfg, zerolog.Nop())
}

func TestRecompute_Scenario(t *testing.T) {
	now := time.Now()
	bars := syntheticBars(60, 150, now)
	snap := snapshotFor("AAPL", bars, "Technology", 2.8e12)
	snap.CurrentPrice = 180

	fetcher := &stubFetcher{snapshots: map[string]*MarketSnapshot{
		"AAPL": snap,
		"SPY":  snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
	}}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "aapl", Shares: 100, PriceBought: 150},
	}}, AggregationInputs{Cash: 1000})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)

	row := res.Rows[0]
	require.Empty(t, row.Error)
	assert.Equal(t, "AAPL", row.Ticker)
	require.NotNil(t, row.ValuePaid)
	require.NotNil(t, row.PositionValue)
	require.NotNil(t, row.PctChange)
	assert.InDelta(t, 15000, *row.ValuePaid, 1e-9)
	assert.InDelta(t, 18000, *row.PositionValue, 1e-9)
	assert.InDelta(t, 0.20, *row.PctChange, 1e-9)

	assert.InDelta(t, 1.0, row.Weight, 1e-9)
	assert.Equal(t, "Technology", row.Sector)
	assert.Equal(t, "2.80T", row.CapFormatted)

	require.NotNil(t, row.ATR)
	assert.GreaterOrEqual(t, *row.ATR, 0.0)
	require.NotNil(t, row.VaR)
	assert.GreaterOrEqual(t, *row.VaR, 0.0)
	require.NotNil(t, row.IV)
	assert.Greater(t, *row.IV, 0.0)

	assert.InDelta(t, 18000, res.Summary.TotalInvested, 1e-9)
	assert.InDelta(t, 19000, res.Summary.TotalPortfolioValue, 1e-9)
}

func TestRecompute_WeightSumInvariant(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{snapshots: map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
		"BBB": snapshotFor("BBB", syntheticBars(60, 120, now), "Healthcare", 40e9),
		"CCC": snapshotFor("CCC", syntheticBars(60, 12, now), "Energy", 3e9),
		"SPY": snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
	}}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 10, PriceBought: 45},
		{Ticker: "BBB", Shares: 5, PriceBought: 130},
		{Ticker: "CCC", Shares: 200, PriceBought: 10},
	}}, AggregationInputs{})
	require.NoError(t, err)

	sum := 0.0
	for _, row := range res.Rows {
		require.Empty(t, row.Error)
		sum += row.Weight
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRecompute_PartialFailure(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{
		snapshots: map[string]*MarketSnapshot{
			"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
			"BBB": snapshotFor("BBB", syntheticBars(60, 120, now), "Healthcare", 40e9),
			"CCC": snapshotFor("CCC", syntheticBars(60, 12, now), "Energy", 3e9),
			"SPY": snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
		},
		errs: map[string]error{"BBB": fmt.Errorf("ticker BBB not found")},
	}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 10, PriceBought: 45},
		{Ticker: "BBB", Shares: 5, PriceBought: 130},
		{Ticker: "CCC", Shares: 200, PriceBought: 10},
	}}, AggregationInputs{})
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)

	// Order preserved; only the bad row is flagged.
	assert.Empty(t, res.Rows[0].Error)
	assert.NotEmpty(t, res.Rows[1].Error)
	assert.Empty(t, res.Rows[2].Error)

	bad := res.Rows[1]
	assert.Nil(t, bad.PositionValue)
	assert.Nil(t, bad.VaR)
	assert.Nil(t, bad.Beta)
	assert.Zero(t, bad.Weight)

	// Weights and totals span the two good rows only.
	sum := 0.0
	total := 0.0
	for _, row := range res.Rows {
		if row.Error == "" {
			sum += row.Weight
			total += *row.PositionValue
		}
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.InDelta(t, total, res.Summary.TotalInvested, 1e-9)

	// Sector table covers only the surviving rows.
	sectors := make(map[string]int)
	for _, s := range res.SectorAllocation {
		sectors[s.Sector] = s.Count
	}
	assert.Equal(t, map[string]int{"Technology": 1, "Energy": 1}, sectors)
}

func TestRecompute_InsufficientHistory(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{snapshots: map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", syntheticBars(10, 50, now), "Technology", 150e9),
		"SPY": snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
	}}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 10, PriceBought: 45},
	}}, AggregationInputs{})
	require.NoError(t, err)

	row := res.Rows[0]
	require.Empty(t, row.Error)
	assert.NotNil(t, row.PositionValue)
	assert.Nil(t, row.ATR)
	assert.Nil(t, row.EntryATR)
	assert.Nil(t, row.TakeProfit)
	assert.Nil(t, row.StopLoss)
	assert.Nil(t, row.Beta, "9 paired observations are below the minimum")
	require.NotNil(t, row.VaR)
	assert.GreaterOrEqual(t, *row.VaR, 0.0)
}

func TestRecompute_BenchmarkUnavailable(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{
		snapshots: map[string]*MarketSnapshot{
			"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
		},
		errs: map[string]error{"SPY": fmt.Errorf("fetch timeout")},
	}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 10, PriceBought: 45},
	}}, AggregationInputs{})
	require.NoError(t, err)

	row := res.Rows[0]
	assert.Empty(t, row.Error)
	assert.Nil(t, row.Beta)
	assert.Nil(t, row.ExpectedReturn)
	assert.NotNil(t, row.PositionValue)
}

func TestRecompute_BetaAgainstScaledBenchmark(t *testing.T) {
	now := time.Now()
	benchBars := syntheticBars(120, 500, now)

	// Asset log returns are exactly twice the benchmark's.
	assetBars := make([]Bar, len(benchBars))
	for i, b := range benchBars {
		ratio := b.Close / benchBars[0].Close
		price := 100 * ratio * ratio
		assetBars[i] = Bar{Date: b.Date, Open: price, High: price * 1.01, Low: price * 0.99, Close: price}
	}

	fetcher := &stubFetcher{snapshots: map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", assetBars, "Technology", 150e9),
		"SPY": snapshotFor("SPY", benchBars, "", 0),
	}}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 1, PriceBought: 100},
	}}, AggregationInputs{})
	require.NoError(t, err)

	row := res.Rows[0]
	require.NotNil(t, row.Beta)
	assert.InDelta(t, 2.0, *row.Beta, 1e-6)
	require.NotNil(t, row.ExpectedReturn)
	require.NotNil(t, row.BetaWeighted)
	assert.InDelta(t, *row.Beta*row.Weight, *row.BetaWeighted, 1e-12)
}

func TestRecompute_DeterministicWithFixedSeed(t *testing.T) {
	now := time.Now()
	snapshots := map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
		"SPY": snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
	}
	req := Request{Rows: []Position{{Ticker: "AAA", Shares: 10, PriceBought: 45}}}

	svc := newTestService(&stubFetcher{snapshots: snapshots})
	first, err := svc.Recompute(context.Background(), req, AggregationInputs{})
	require.NoError(t, err)
	second, err := svc.Recompute(context.Background(), req, AggregationInputs{})
	require.NoError(t, err)

	a, b := first.Rows[0], second.Rows[0]
	assert.Equal(t, *a.ATR, *b.ATR)
	assert.Equal(t, *a.Beta, *b.Beta)
	assert.Equal(t, *a.IV, *b.IV)
	assert.Equal(t, a.Weight, b.Weight)
	assert.Equal(t, *a.VaR, *b.VaR)
}

func TestRecompute_VaRStableAcrossSeeds(t *testing.T) {
	now := time.Now()
	snapshots := map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
		"SPY": snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
	}
	req := Request{Rows: []Position{{Ticker: "AAA", Shares: 10, PriceBought: 45}}}

	run := func(seed uint64) float64 {
		svc := newTestService(&stubFetcher{snapshots: snapshots}, func(c *Config) {
			c.VaRSeed = seed
			c.VaRSimulations = 20000
		})
		res, err := svc.Recompute(context.Background(), req, AggregationInputs{})
		require.NoError(t, err)
		require.NotNil(t, res.Rows[0].VaR)
		return *res.Rows[0].VaR
	}

	a := run(1)
	b := run(2)

	// Deterministic fields aside, VaR only moves within simulation noise.
	assert.Greater(t, a, 0.0)
	assert.InEpsilon(t, a, b, 0.05)
}

func TestRecompute_EmptyRequest(t *testing.T) {
	svc := newTestService(&stubFetcher{})
	res, err := svc.Recompute(context.Background(), Request{}, AggregationInputs{Cash: 500})
	require.NoError(t, err)

	assert.Empty(t, res.Rows)
	assert.InDelta(t, 500.0, res.Summary.TotalPortfolioValue, 1e-9)
	assert.Zero(t, res.Summary.TotalInvested)

	// Cap table still renders all buckets plus the total row.
	require.Len(t, res.CapBuckets, 6)
	assert.Equal(t, CapTotal, res.CapBuckets[5].Category)
}

func TestRecompute_Cancellation(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{
		snapshots: map[string]*MarketSnapshot{
			"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
		},
		delay: 200 * time.Millisecond,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := newTestService(fetcher)
	_, err := svc.Recompute(ctx, Request{Rows: []Position{
		{Ticker: "AAA", Shares: 10, PriceBought: 45},
	}}, AggregationInputs{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRecompute_HoldingPeriodAndEntryATR(t *testing.T) {
	now := time.Now()
	bars := syntheticBars(90, 50, now)

	boughtDate := now.AddDate(0, 0, -30).Format(dateLayout)
	fetcher := &stubFetcher{snapshots: map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", bars, "Technology", 150e9),
		"SPY": snapshotFor("SPY", syntheticBars(90, 500, now), "", 0),
	}}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 10, PriceBought: 45, DateBought: &boughtDate},
	}}, AggregationInputs{})
	require.NoError(t, err)

	row := res.Rows[0]
	require.Empty(t, row.Error)
	assert.InDelta(t, 30, row.HoldingPeriod, 1)
	require.NotNil(t, row.EntryATR)
	require.NotNil(t, row.TakeProfit)
	require.NotNil(t, row.StopLoss)
	assert.InDelta(t, 45+2*(*row.EntryATR), *row.TakeProfit, 1e-9)
	assert.InDelta(t, 45-1*(*row.EntryATR), *row.StopLoss, 1e-9)

	require.NotNil(t, row.NoATRs)
	require.NotNil(t, row.CurrentPrice)
	assert.InDelta(t, (*row.CurrentPrice-45) / *row.EntryATR, *row.NoATRs, 1e-9)
}

func TestEntryIndex(t *testing.T) {
	now := time.Now().Truncate(24 * time.Hour)
	history := make([]Bar, 40)
	for i := range history {
		history[i] = Bar{Date: now.AddDate(0, 0, i-40)}
	}

	t.Run("nil date resolves to latest bar", func(t *testing.T) {
		assert.Equal(t, 39, entryIndex(history, nil, 14))
	})

	t.Run("date before coverage clamps to warmup boundary", func(t *testing.T) {
		old := now.AddDate(-1, 0, 0)
		assert.Equal(t, 14, entryIndex(history, &old, 14))
	})

	t.Run("date inside coverage finds preceding bar", func(t *testing.T) {
		d := now.AddDate(0, 0, -10)
		idx := entryIndex(history, &d, 14)
		assert.Equal(t, 30, idx)
	})

	t.Run("empty history", func(t *testing.T) {
		assert.Equal(t, -1, entryIndex(nil, nil, 14))
	})
}

func TestDistinctTickers(t *testing.T) {
	rows := []Position{
		{Ticker: "aapl"},
		{Ticker: " AAPL "},
		{Ticker: "msft"},
		{Ticker: ""},
	}
	got := distinctTickers(rows, "spy")
	assert.Equal(t, []string{"AAPL", "MSFT", "SPY"}, got)
}

func TestRecompute_ZeroShares(t *testing.T) {
	now := time.Now()
	fetcher := &stubFetcher{snapshots: map[string]*MarketSnapshot{
		"AAA": snapshotFor("AAA", syntheticBars(60, 50, now), "Technology", 150e9),
		"BBB": snapshotFor("BBB", syntheticBars(60, 80, now), "Energy", 5e9),
		"SPY": snapshotFor("SPY", syntheticBars(60, 500, now), "", 0),
	}}

	svc := newTestService(fetcher)
	res, err := svc.Recompute(context.Background(), Request{Rows: []Position{
		{Ticker: "AAA", Shares: 0, PriceBought: 45},
		{Ticker: "BBB", Shares: 10, PriceBought: 70},
	}}, AggregationInputs{})
	require.NoError(t, err)

	zero := res.Rows[0]
	require.Empty(t, zero.Error)
	assert.Zero(t, zero.Weight)
	require.NotNil(t, zero.VaR)
	assert.Zero(t, *zero.VaR)
	require.NotNil(t, zero.PctChange)
	assert.Zero(t, *zero.PctChange)

	assert.InDelta(t, 1.0, res.Rows[1].Weight, 1e-9)

	if math.Abs(res.Summary.TotalInvested-*res.Rows[1].PositionValue) > 1e-9 {
		t.Fatalf("total invested %f should equal the funded row's value %f",
			res.Summary.TotalInvested, *res.Rows[1].PositionValue)
	}
}
