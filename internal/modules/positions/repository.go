package positions

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Repository handles positions, cash and sector allocation persistence.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new positions repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "positions").Logger(),
	}
}

// InitSchema creates the tables if they do not exist.
func (r *Repository) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS positions (
		ticker TEXT PRIMARY KEY,
		shares REAL NOT NULL,
		price_bought REAL NOT NULL,
		date_bought TEXT
	);
	CREATE TABLE IF NOT EXISTS cash (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		amount REAL NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS sector_allocations (
		sector TEXT PRIMARY KEY,
		allocation REAL NOT NULL
	);
	INSERT OR IGNORE INTO cash (id, amount) VALUES (1, 0);
	`
	if _, err := r.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize positions schema: %w", err)
	}
	return nil
}

// GetAll returns all stored positions ordered by ticker.
func (r *Repository) GetAll() ([]Position, error) {
	rows, err := r.db.Query(`
		SELECT ticker, shares, price_bought, date_bought
		FROM positions
		ORDER BY ticker
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get positions: %w", err)
	}
	defer rows.Close()

	var result []Position
	for rows.Next() {
		var p Position
		var dateBought sql.NullString
		if err := rows.Scan(&p.Ticker, &p.Shares, &p.PriceBought, &dateBought); err != nil {
			return nil, fmt.Errorf("failed to scan position row: %w", err)
		}
		if dateBought.Valid {
			d := dateBought.String
			p.DateBought = &d
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}

	return result, nil
}

// Upsert inserts or replaces a position keyed by ticker.
func (r *Repository) Upsert(p Position) error {
	ticker := strings.ToUpper(strings.TrimSpace(p.Ticker))
	if ticker == "" {
		return fmt.Errorf("ticker must not be empty")
	}

	var dateBought interface{}
	if p.DateBought != nil {
		dateBought = *p.DateBought
	}

	_, err := r.db.Exec(`
		INSERT INTO positions (ticker, shares, price_bought, date_bought)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			shares = excluded.shares,
			price_bought = excluded.price_bought,
			date_bought = excluded.date_bought
	`, ticker, p.Shares, p.PriceBought, dateBought)
	if err != nil {
		return fmt.Errorf("failed to upsert position %s: %w", ticker, err)
	}

	r.log.Debug().Str("ticker", ticker).Float64("shares", p.Shares).Msg("Position saved")
	return nil
}

// Delete removes a position by ticker. Returns sql.ErrNoRows when the
// ticker is not stored.
func (r *Repository) Delete(ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))

	res, err := r.db.Exec("DELETE FROM positions WHERE ticker = ?", ticker)
	if err != nil {
		return fmt.Errorf("failed to delete position %s: %w", ticker, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result for %s: %w", ticker, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	r.log.Debug().Str("ticker", ticker).Msg("Position deleted")
	return nil
}

// GetCash returns the stored cash balance.
func (r *Repository) GetCash() (float64, error) {
	var amount float64
	err := r.db.QueryRow("SELECT amount FROM cash WHERE id = 1").Scan(&amount)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get cash: %w", err)
	}
	return amount, nil
}

// SetCash stores the cash balance.
func (r *Repository) SetCash(amount float64) error {
	_, err := r.db.Exec(`
		INSERT INTO cash (id, amount) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET amount = excluded.amount
	`, amount)
	if err != nil {
		return fmt.Errorf("failed to set cash: %w", err)
	}
	return nil
}

// GetSectorAllocations returns all sector targets keyed by sector name.
func (r *Repository) GetSectorAllocations() (map[string]float64, error) {
	rows, err := r.db.Query("SELECT sector, allocation FROM sector_allocations")
	if err != nil {
		return nil, fmt.Errorf("failed to get sector allocations: %w", err)
	}
	defer rows.Close()

	result := make(map[string]float64)
	for rows.Next() {
		var sector string
		var allocation float64
		if err := rows.Scan(&sector, &allocation); err != nil {
			return nil, fmt.Errorf("failed to scan sector allocation row: %w", err)
		}
		result[sector] = allocation
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sector allocations: %w", err)
	}

	return result, nil
}

// UpsertSectorAllocation stores a sector target weight.
func (r *Repository) UpsertSectorAllocation(sector string, allocation float64) error {
	sector = strings.TrimSpace(sector)
	if sector == "" {
		return fmt.Errorf("sector must not be empty")
	}

	_, err := r.db.Exec(`
		INSERT INTO sector_allocations (sector, allocation) VALUES (?, ?)
		ON CONFLICT(sector) DO UPDATE SET allocation = excluded.allocation
	`, sector, allocation)
	if err != nil {
		return fmt.Errorf("failed to upsert sector allocation %s: %w", sector, err)
	}
	return nil
}
