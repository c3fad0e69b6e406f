package positions

// Position is a stored portfolio holding. DateBought is nil for legacy
// rows imported without a purchase date.
type Position struct {
	DateBought  *string `json:"date_bought"`
	Ticker      string  `json:"ticker"`
	Shares      float64 `json:"shares"`
	PriceBought float64 `json:"price_bought"`
}

// SectorAllocation is a per-sector target weight set by the user.
type SectorAllocation struct {
	Sector     string  `json:"sector"`
	Allocation float64 `json:"allocation"`
}
