// Package snapshots records daily portfolio summaries so value and risk
// can be charted over time.
package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Snapshot is one recorded portfolio summary.
type Snapshot struct {
	Date           string  `json:"date"`
	TotalValue     float64 `json:"total_value"`
	Cash           float64 `json:"cash"`
	PortfolioValue float64 `json:"portfolio_value"`
	TotalVaR       float64 `json:"total_var"`
	PositionCount  int     `json:"position_count"`
	FailedCount    int     `json:"failed_count"`
}

// Repository handles snapshot persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshots repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// InitSchema creates the snapshots table if it does not exist.
func (r *Repository) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		date TEXT PRIMARY KEY,
		total_value REAL NOT NULL,
		cash REAL NOT NULL,
		portfolio_value REAL NOT NULL,
		total_var REAL NOT NULL,
		position_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize snapshots schema: %w", err)
	}
	return nil
}

// Save inserts or replaces the snapshot for its date. One row per day so
// reruns overwrite instead of duplicating.
func (r *Repository) Save(s Snapshot) error {
	_, err := r.db.Exec(`
		INSERT INTO snapshots (date, total_value, cash, portfolio_value, total_var, position_count, failed_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET
			total_value = excluded.total_value,
			cash = excluded.cash,
			portfolio_value = excluded.portfolio_value,
			total_var = excluded.total_var,
			position_count = excluded.position_count,
			failed_count = excluded.failed_count,
			created_at = excluded.created_at
	`, s.Date, s.TotalValue, s.Cash, s.PortfolioValue, s.TotalVaR, s.PositionCount, s.FailedCount,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", s.Date, err)
	}

	r.log.Debug().Str("date", s.Date).Float64("total_value", s.TotalValue).Msg("Snapshot saved")
	return nil
}

// GetHistory returns snapshots in date order, newest last. A limit of 0
// returns everything.
func (r *Repository) GetHistory(limit int) ([]Snapshot, error) {
	query := `
		SELECT date, total_value, cash, portfolio_value, total_var, position_count, failed_count
		FROM snapshots
		ORDER BY date
	`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = r.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = r.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot history: %w", err)
	}
	defer rows.Close()

	var result []Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.Date, &s.TotalValue, &s.Cash, &s.PortfolioValue, &s.TotalVaR, &s.PositionCount, &s.FailedCount); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return result, nil
}
