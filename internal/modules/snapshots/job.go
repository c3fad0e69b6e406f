package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/risksheet/internal/modules/positions"
	"github.com/aristath/risksheet/internal/modules/recompute"
)

// Engine is the recompute surface the job needs.
type Engine interface {
	Recompute(ctx context.Context, req recompute.Request, inputs recompute.AggregationInputs) (*recompute.Result, error)
}

// Job recomputes the stored portfolio and records the resulting summary.
// It implements scheduler.Job.
type Job struct {
	positionsRepo       *positions.Repository
	snapshotsRepo       *Repository
	engine              Engine
	marketSectorWeights map[string]float64
	timeout             time.Duration
	log                 zerolog.Logger
}

// NewJob creates a new snapshot job
func NewJob(
	positionsRepo *positions.Repository,
	snapshotsRepo *Repository,
	engine Engine,
	marketSectorWeights map[string]float64,
	log zerolog.Logger,
) *Job {
	return &Job{
		positionsRepo:       positionsRepo,
		snapshotsRepo:       snapshotsRepo,
		engine:              engine,
		marketSectorWeights: marketSectorWeights,
		timeout:             10 * time.Minute,
		log:                 log.With().Str("job", "portfolio_snapshot").Logger(),
	}
}

// Name returns the job name
func (j *Job) Name() string {
	return "portfolio_snapshot"
}

// Run loads the stored portfolio, recomputes it and saves today's summary.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	stored, err := j.positionsRepo.GetAll()
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	cash, err := j.positionsRepo.GetCash()
	if err != nil {
		return fmt.Errorf("failed to load cash: %w", err)
	}

	targets, err := j.positionsRepo.GetSectorAllocations()
	if err != nil {
		return fmt.Errorf("failed to load sector allocations: %w", err)
	}

	req := recompute.Request{Rows: make([]recompute.Position, 0, len(stored))}
	for _, p := range stored {
		req.Rows = append(req.Rows, recompute.Position{
			Ticker:      p.Ticker,
			Shares:      p.Shares,
			PriceBought: p.PriceBought,
			DateBought:  p.DateBought,
		})
	}

	result, err := j.engine.Recompute(ctx, req, recompute.AggregationInputs{
		SectorTargets:       targets,
		MarketSectorWeights: j.marketSectorWeights,
		Cash:                cash,
	})
	if err != nil {
		return fmt.Errorf("recompute failed: %w", err)
	}

	var totalVaR float64
	var failed int
	for _, row := range result.Rows {
		if row.Error != "" {
			failed++
			continue
		}
		if row.VaR != nil {
			totalVaR += *row.VaR
		}
	}

	snap := Snapshot{
		Date:           time.Now().UTC().Format("2006-01-02"),
		TotalValue:     result.Summary.TotalPortfolioValue,
		Cash:           result.Summary.Cash,
		PortfolioValue: result.Summary.TotalInvested,
		TotalVaR:       totalVaR,
		PositionCount:  len(result.Rows),
		FailedCount:    failed,
	}
	if err := j.snapshotsRepo.Save(snap); err != nil {
		return err
	}

	j.log.Info().
		Str("date", snap.Date).
		Float64("total_value", snap.TotalValue).
		Float64("total_var", snap.TotalVaR).
		Int("positions", snap.PositionCount).
		Int("failed", snap.FailedCount).
		Msg("Portfolio snapshot recorded")

	return nil
}
