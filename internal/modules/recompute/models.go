package recompute

import "time"

// Position is one input row of a recompute request. The engine only reads
// positions; identity is the ticker (one open position per ticker).
type Position struct {
	DateBought  *string `json:"date_bought,omitempty"` // YYYY-MM-DD
	Ticker      string  `json:"ticker"`
	Shares      float64 `json:"shares"`
	PriceBought float64 `json:"price_bought"`
}

// Bar is a single day of price history. High and Low may be zero when the
// source only provides closes; the ATR calculation falls back to a
// close-to-close proxy in that case.
type Bar struct {
	Date  time.Time
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// MarketSnapshot holds everything the engine needs about one ticker.
// Snapshots are produced fresh for every recompute call and never cached.
type MarketSnapshot struct {
	MarketCap    *float64
	Ticker       string
	Sector       string
	History      []Bar // ascending by date
	CurrentPrice float64
}

// PositionMetrics is the engine output for one input row. Pointer fields
// are null when the underlying quantity could not be computed; null never
// means zero. A non-empty Error marks the whole row unreliable.
type PositionMetrics struct {
	DateBought             *string  `json:"date_bought,omitempty"`
	CurrentPrice           *float64 `json:"current_price"`
	ValuePaid              *float64 `json:"value_paid"`
	PositionValue          *float64 `json:"position_value"`
	PctChange              *float64 `json:"pct_change"`
	ATR                    *float64 `json:"atr"`
	EntryATR               *float64 `json:"entry_atr"`
	NoATRs                 *float64 `json:"no_atrs"`
	TakeProfit             *float64 `json:"take_profit"`
	StopLoss               *float64 `json:"stop_loss"`
	CurrentTP              *float64 `json:"current_tp"`
	CurrentSL              *float64 `json:"current_sl"`
	Beta                   *float64 `json:"beta"`
	BetaWeighted           *float64 `json:"beta_weighted"`
	ExpectedReturn         *float64 `json:"expected_return"`
	WeightedExpectedReturn *float64 `json:"weighted_expected_return"`
	VaR                    *float64 `json:"var"`
	IV                     *float64 `json:"iv"`
	MarketCap              *float64 `json:"market_cap"`
	Ticker                 string   `json:"ticker"`
	Sector                 string   `json:"sector,omitempty"`
	CapFormatted           string   `json:"cap_formatted,omitempty"`
	Error                  string   `json:"error,omitempty"`
	Shares                 float64  `json:"shares"`
	PriceBought            float64  `json:"price_bought"`
	Weight                 float64  `json:"weight"`
	HoldingPeriod          int      `json:"holding_period"`
}

// Request is a recompute request: the engine derives everything else.
type Request struct {
	Rows []Position `json:"rows"`
}

// AggregationInputs carries caller-owned state the aggregator folds in.
// The engine never computes or persists any of it.
type AggregationInputs struct {
	SectorTargets       map[string]float64 // sector -> target fraction
	MarketSectorWeights map[string]float64 // benchmark sector -> weight
	Cash                float64
}

// PortfolioSummary is the cash/invested/total rollup.
type PortfolioSummary struct {
	Cash                float64 `json:"cash"`
	TotalInvested       float64 `json:"total_invested"`
	TotalPortfolioValue float64 `json:"total_portfolio_value"`
}

// SectorAllocationRow is one row of the sector table.
type SectorAllocationRow struct {
	Sector         string  `json:"sector"`
	Count          int     `json:"count"`
	TotalValue     float64 `json:"total_value"`
	Weight         float64 `json:"weight"`
	SetAllocation  float64 `json:"set_allocation"`
	AllocationGoal float64 `json:"allocation_goal"`
	MarketWeight   float64 `json:"market_weight"`
}

// Market-cap bucket categories, largest first.
const (
	CapMega  = "Mega"
	CapLarge = "Large"
	CapMid   = "Mid"
	CapSmall = "Small"
	CapMicro = "Micro"
	CapTotal = "Total"
)

// CapBucketRow is one row of the market-cap distribution table.
type CapBucketRow struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Pct      float64 `json:"pct"`
}

// Result is the full engine response. Rows preserve request order and length.
type Result struct {
	MarketSectorWeights map[string]float64    `json:"market_sector_weights"`
	Rows                []PositionMetrics     `json:"rows"`
	SectorAllocation    []SectorAllocationRow `json:"sector_allocation"`
	CapBuckets          []CapBucketRow        `json:"cap_buckets"`
	Summary             PortfolioSummary      `json:"summary"`
}
