package recompute

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/risksheet/pkg/formulas"
)

// Config holds the engine's fixed policies. Zero values are replaced with
// defaults by NewService, so callers only override what they care about.
type Config struct {
	BenchmarkTicker     string
	RiskFreeRate        float64
	ATRWindow           int
	TakeProfitATRs      float64
	StopLossATRs        float64
	VaRSimulations      int
	VaRConfidence       float64
	VaRHoldingDays      float64
	IVTenorDays         int
	MinBetaObservations int
	MinIVObservations   int
	FetchWorkers        int
	FetchTimeout        time.Duration
	VaRSeed             uint64 // 0 = fresh seed per request
}

// DefaultConfig returns the production policies.
func DefaultConfig() Config {
	return Config{
		BenchmarkTicker:     "SPY",
		RiskFreeRate:        0.0488,
		ATRWindow:           14,
		TakeProfitATRs:      2,
		StopLossATRs:        1,
		VaRSimulations:      5000,
		VaRConfidence:       0.95,
		VaRHoldingDays:      1,
		IVTenorDays:         30,
		MinBetaObservations: 20,
		MinIVObservations:   5,
		FetchWorkers:        8,
		FetchTimeout:        20 * time.Second,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.BenchmarkTicker == "" {
		c.BenchmarkTicker = d.BenchmarkTicker
	}
	if c.RiskFreeRate == 0 {
		c.RiskFreeRate = d.RiskFreeRate
	}
	if c.ATRWindow <= 0 {
		c.ATRWindow = d.ATRWindow
	}
	if c.TakeProfitATRs == 0 {
		c.TakeProfitATRs = d.TakeProfitATRs
	}
	if c.StopLossATRs == 0 {
		c.StopLossATRs = d.StopLossATRs
	}
	if c.VaRSimulations <= 0 {
		c.VaRSimulations = d.VaRSimulations
	}
	if c.VaRConfidence <= 0 || c.VaRConfidence >= 1 {
		c.VaRConfidence = d.VaRConfidence
	}
	if c.VaRHoldingDays <= 0 {
		c.VaRHoldingDays = d.VaRHoldingDays
	}
	if c.IVTenorDays <= 0 {
		c.IVTenorDays = d.IVTenorDays
	}
	if c.MinBetaObservations <= 0 {
		c.MinBetaObservations = d.MinBetaObservations
	}
	if c.MinIVObservations <= 0 {
		c.MinIVObservations = d.MinIVObservations
	}
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = d.FetchWorkers
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = d.FetchTimeout
	}
}

// Service is the recompute engine. It is stateless: every call fetches
// fresh market data, derives all metrics and returns; nothing survives
// between calls.
type Service struct {
	fetcher SnapshotFetcher
	now     func() time.Time
	log     zerolog.Logger
	cfg     Config
}

// NewService creates a recompute engine backed by the given market data
// gateway.
func NewService(fetcher SnapshotFetcher, cfg Config, log zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		fetcher: fetcher,
		now:     time.Now,
		log:     log.With().Str("module", "recompute").Logger(),
		cfg:     cfg,
	}
}

// Recompute runs the full pipeline for one request: bounded-parallel
// snapshot fetch, independent per-position calculators, then the
// cross-sectional aggregation pass. Output rows preserve request order.
// A single ticker's failure marks only its own row; the returned error is
// non-nil only when the whole call is cancelled.
func (s *Service) Recompute(ctx context.Context, req Request, inputs AggregationInputs) (*Result, error) {
	requestID := uuid.New().String()
	log := s.log.With().Str("request_id", requestID).Logger()
	started := time.Now()

	result := &Result{
		Rows:                []PositionMetrics{},
		MarketSectorWeights: inputs.MarketSectorWeights,
	}

	if len(req.Rows) == 0 {
		result.Summary = PortfolioSummary{Cash: inputs.Cash, TotalPortfolioValue: inputs.Cash}
		result.SectorAllocation = []SectorAllocationRow{}
		result.CapBuckets = buildCapBuckets(nil)
		return result, nil
	}

	tickers := distinctTickers(req.Rows, s.cfg.BenchmarkTicker)
	log.Info().Int("rows", len(req.Rows)).Int("tickers", len(tickers)).Msg("Recompute started")

	fetched := s.fetchAll(ctx, tickers)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	benchmark := strings.ToUpper(s.cfg.BenchmarkTicker)
	var benchReturns []float64
	if res, ok := fetched[benchmark]; ok && res.err == nil && res.snapshot != nil {
		closes := make([]float64, len(res.snapshot.History))
		for i, bar := range res.snapshot.History {
			closes[i] = bar.Close
		}
		benchReturns = formulas.LogReturns(closes)
	} else {
		log.Warn().Str("ticker", benchmark).Msg("Benchmark data unavailable, beta disabled for this request")
	}

	baseSeed := s.cfg.VaRSeed
	if baseSeed == 0 {
		baseSeed = uint64(time.Now().UnixNano())
	}

	now := s.now()
	rows := make([]PositionMetrics, len(req.Rows))

	// Per-position calculators share no mutable state, so they run in
	// parallel and join before the cross-sectional pass.
	var wg sync.WaitGroup
	for i := range req.Rows {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			pos := req.Rows[i]
			key := strings.ToUpper(strings.TrimSpace(pos.Ticker))
			rows[i] = s.computeRow(pos, fetched[key], benchReturns, now, baseSeed+uint64(i))
		}(i)
	}
	wg.Wait()

	totalInvested := applyWeights(rows)
	summary := PortfolioSummary{
		Cash:                inputs.Cash,
		TotalInvested:       totalInvested,
		TotalPortfolioValue: totalInvested + inputs.Cash,
	}

	result.Rows = rows
	result.Summary = summary
	result.SectorAllocation = buildSectorAllocation(rows, inputs.SectorTargets, inputs.MarketSectorWeights, summary.TotalPortfolioValue)
	result.CapBuckets = buildCapBuckets(rows)

	failed := 0
	for i := range rows {
		if rows[i].Error != "" {
			failed++
		}
	}
	log.Info().
		Int("rows", len(rows)).
		Int("failed", failed).
		Float64("total_invested", totalInvested).
		Dur("elapsed", time.Since(started)).
		Msg("Recompute finished")

	return result, nil
}
