// Package yahoo implements the market data gateway over Yahoo Finance.
package yahoo

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/wnjoon/go-yfinance/pkg/models"
	"github.com/wnjoon/go-yfinance/pkg/ticker"

	"github.com/aristath/risksheet/internal/modules/recompute"
)

// Client fetches per-ticker market snapshots using the go-yfinance library.
// It is stateless and safe for concurrent use by the engine's fetch pool.
type Client struct {
	log zerolog.Logger
}

// New creates a new Yahoo Finance client
func New(log zerolog.Logger) *Client {
	return &Client{
		log: log.With().Str("client", "yahoo").Logger(),
	}
}

// FetchSnapshot implements recompute.SnapshotFetcher. The underlying
// library is synchronous, so the work runs in a goroutine and the context
// bounds how long the caller waits for it.
func (c *Client) FetchSnapshot(ctx context.Context, symbol string) (*recompute.MarketSnapshot, error) {
	type outcome struct {
		snapshot *recompute.MarketSnapshot
		err      error
	}
	done := make(chan outcome, 1)

	go func() {
		snap, err := c.fetch(symbol)
		done <- outcome{snapshot: snap, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch %s: %w", symbol, ctx.Err())
	case out := <-done:
		return out.snapshot, out.err
	}
}

func (c *Client) fetch(symbol string) (*recompute.MarketSnapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("empty symbol")
	}

	t, err := ticker.New(symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticker %s: %w", symbol, err)
	}
	defer t.Close()

	// Max history so old purchase dates stay inside ATR coverage.
	bars, err := t.History(models.HistoryParams{
		Period:     "max",
		Interval:   "1d",
		AutoAdjust: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get history for %s: %w", symbol, err)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no price history for %s", symbol)
	}

	snapshot := &recompute.MarketSnapshot{
		Ticker:  symbol,
		History: make([]recompute.Bar, 0, len(bars)),
	}
	for _, bar := range bars {
		snapshot.History = append(snapshot.History, recompute.Bar{
			Date:  bar.Date,
			Open:  bar.Open,
			High:  bar.High,
			Low:   bar.Low,
			Close: bar.Close,
		})
	}

	info, err := t.Info()
	if err != nil {
		// Profile data is optional; the last close still prices the position.
		c.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to get info, falling back to last close")
	} else if info != nil {
		if info.CurrentPrice > 0 {
			snapshot.CurrentPrice = info.CurrentPrice
		} else if info.RegularMarketPreviousClose > 0 {
			snapshot.CurrentPrice = info.RegularMarketPreviousClose
		}
		if info.MarketCap > 0 {
			marketCap := float64(info.MarketCap)
			snapshot.MarketCap = &marketCap
		}
		if info.Sector != "" {
			snapshot.Sector = info.Sector
		}
	}

	if snapshot.CurrentPrice <= 0 {
		snapshot.CurrentPrice = snapshot.History[len(snapshot.History)-1].Close
	}

	return snapshot, nil
}
