package recompute

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// SnapshotFetcher is the market data gateway contract. Implementations
// must honor the context and return an error for tickers that cannot be
// resolved; one ticker's failure never affects another.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, ticker string) (*MarketSnapshot, error)
}

// fetchResult pairs a ticker with its snapshot or failure.
type fetchResult struct {
	snapshot *MarketSnapshot
	err      error
	ticker   string
}

// distinctTickers returns the deduplicated, upper-cased ticker set of the
// request plus the benchmark, sorted for deterministic fetch order.
func distinctTickers(rows []Position, benchmark string) []string {
	seen := make(map[string]struct{}, len(rows)+1)

	add := func(t string) {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" {
			return
		}
		seen[t] = struct{}{}
	}

	for _, row := range rows {
		add(row.Ticker)
	}
	add(benchmark)

	tickers := make([]string, 0, len(seen))
	for t := range seen {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// fetchAll fans out snapshot fetches over a fixed-size worker pool.
// Each fetch runs under its own timeout derived from ctx, so a stalled
// ticker times out alone instead of blocking its siblings. The pool size
// is bounded to respect the gateway's rate limits.
func (s *Service) fetchAll(ctx context.Context, tickers []string) map[string]fetchResult {
	results := make(map[string]fetchResult, len(tickers))
	if len(tickers) == 0 {
		return results
	}

	workers := s.cfg.FetchWorkers
	if workers > len(tickers) {
		workers = len(tickers)
	}

	jobs := make(chan string, len(tickers))
	out := make(chan fetchResult, len(tickers))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ticker := range jobs {
				out <- s.fetchOne(ctx, ticker)
			}
		}()
	}

	for _, ticker := range tickers {
		jobs <- ticker
	}
	close(jobs)

	wg.Wait()
	close(out)

	for res := range out {
		results[res.ticker] = res
	}
	return results
}

func (s *Service) fetchOne(ctx context.Context, ticker string) fetchResult {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	snapshot, err := s.fetcher.FetchSnapshot(fetchCtx, ticker)
	if err != nil {
		s.log.Warn().Err(err).Str("ticker", ticker).Msg("Snapshot fetch failed")
		return fetchResult{ticker: ticker, err: err}
	}
	return fetchResult{ticker: ticker, snapshot: snapshot}
}
