package positions

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/risksheet/internal/database"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()

	db, err := database.New(database.Config{
		Path: filepath.Join(t.TempDir(), "portfolio.db"),
		Name: "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewRepository(db.Conn(), zerolog.Nop())
	require.NoError(t, repo.InitSchema())
	return repo
}

func TestRepository_PositionsCRUD(t *testing.T) {
	repo := newTestRepo(t)

	date := "2024-03-15"
	require.NoError(t, repo.Upsert(Position{Ticker: "aapl", Shares: 10, PriceBought: 150, DateBought: &date}))
	require.NoError(t, repo.Upsert(Position{Ticker: "XOM", Shares: 5, PriceBought: 100}))

	all, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Ticker ordering and uppercasing.
	assert.Equal(t, "AAPL", all[0].Ticker)
	assert.Equal(t, "XOM", all[1].Ticker)
	require.NotNil(t, all[0].DateBought)
	assert.Equal(t, date, *all[0].DateBought)
	assert.Nil(t, all[1].DateBought)

	// Upsert replaces the existing row.
	require.NoError(t, repo.Upsert(Position{Ticker: "AAPL", Shares: 20, PriceBought: 155}))
	all, err = repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.InDelta(t, 20, all[0].Shares, 1e-12)
	assert.Nil(t, all[0].DateBought)

	require.NoError(t, repo.Delete("aapl"))
	all, err = repo.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "XOM", all[0].Ticker)
}

func TestRepository_DeleteMissing(t *testing.T) {
	repo := newTestRepo(t)

	err := repo.Delete("NOPE")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRepository_UpsertEmptyTicker(t *testing.T) {
	repo := newTestRepo(t)

	assert.Error(t, repo.Upsert(Position{Ticker: "  ", Shares: 1, PriceBought: 1}))
}

func TestRepository_Cash(t *testing.T) {
	repo := newTestRepo(t)

	amount, err := repo.GetCash()
	require.NoError(t, err)
	assert.Zero(t, amount)

	require.NoError(t, repo.SetCash(2500.50))
	amount, err = repo.GetCash()
	require.NoError(t, err)
	assert.InDelta(t, 2500.50, amount, 1e-12)

	require.NoError(t, repo.SetCash(1000))
	amount, err = repo.GetCash()
	require.NoError(t, err)
	assert.InDelta(t, 1000, amount, 1e-12)
}

func TestRepository_SectorAllocations(t *testing.T) {
	repo := newTestRepo(t)

	require.NoError(t, repo.UpsertSectorAllocation("Technology", 0.4))
	require.NoError(t, repo.UpsertSectorAllocation("Energy", 0.1))
	require.NoError(t, repo.UpsertSectorAllocation("Technology", 0.5))

	got, err := repo.GetSectorAllocations()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Technology": 0.5, "Energy": 0.1}, got)

	assert.Error(t, repo.UpsertSectorAllocation("", 0.2))
}
