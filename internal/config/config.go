package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/aristath/risksheet/internal/modules/recompute"
)

// Config holds application configuration
type Config struct {
	DataDir  string
	LogLevel string
	Port     int
	DevMode  bool

	// Engine policies
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
	VaRSeed             uint64

	// Scheduled snapshots
	SnapshotsEnabled bool
	SnapshotSchedule string

	// Optional JSON file overriding the built-in benchmark sector weights
	MarketSectorWeightsPath string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		DataDir:  getEnv("DATA_DIR", "./data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Port:     getEnvAsInt("PORT", 8000),
		DevMode:  getEnvAsBool("DEV_MODE", false),

		BenchmarkTicker:     getEnv("BENCHMARK_TICKER", "SPY"),
		RiskFreeRate:        getEnvAsFloat("RISK_FREE_RATE", 0.0488),
		ATRWindow:           getEnvAsInt("ATR_WINDOW", 14),
		TakeProfitATRs:      getEnvAsFloat("TAKE_PROFIT_ATRS", 2),
		StopLossATRs:        getEnvAsFloat("STOP_LOSS_ATRS", 1),
		VaRSimulations:      getEnvAsInt("VAR_SIMULATIONS", 5000),
		VaRConfidence:       getEnvAsFloat("VAR_CONFIDENCE", 0.95),
		VaRHoldingDays:      getEnvAsFloat("VAR_HOLDING_DAYS", 1),
		IVTenorDays:         getEnvAsInt("IV_TENOR_DAYS", 30),
		MinBetaObservations: getEnvAsInt("MIN_BETA_OBSERVATIONS", 20),
		MinIVObservations:   getEnvAsInt("MIN_IV_OBSERVATIONS", 5),
		FetchWorkers:        getEnvAsInt("FETCH_WORKERS", 8),
		FetchTimeout:        time.Duration(getEnvAsInt("FETCH_TIMEOUT_SECONDS", 20)) * time.Second,
		VaRSeed:             uint64(getEnvAsInt("VAR_SEED", 0)),

		SnapshotsEnabled: getEnvAsBool("SNAPSHOTS_ENABLED", true),
		SnapshotSchedule: getEnv("SNAPSHOT_SCHEDULE", "0 0 22 * * MON-FRI"),

		MarketSectorWeightsPath: getEnv("MARKET_SECTOR_WEIGHTS_PATH", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.BenchmarkTicker == "" {
		return fmt.Errorf("benchmark ticker must not be empty")
	}
	if c.VaRConfidence <= 0 || c.VaRConfidence >= 1 {
		return fmt.Errorf("var confidence must be in (0, 1), got %f", c.VaRConfidence)
	}
	if c.FetchWorkers <= 0 {
		return fmt.Errorf("fetch workers must be positive, got %d", c.FetchWorkers)
	}
	return nil
}

// EngineConfig maps the application configuration onto the recompute
// engine's policies.
func (c *Config) EngineConfig() recompute.Config {
	return recompute.Config{
		BenchmarkTicker:     c.BenchmarkTicker,
		RiskFreeRate:        c.RiskFreeRate,
		ATRWindow:           c.ATRWindow,
		TakeProfitATRs:      c.TakeProfitATRs,
		StopLossATRs:        c.StopLossATRs,
		VaRSimulations:      c.VaRSimulations,
		VaRConfidence:       c.VaRConfidence,
		VaRHoldingDays:      c.VaRHoldingDays,
		IVTenorDays:         c.IVTenorDays,
		MinBetaObservations: c.MinBetaObservations,
		MinIVObservations:   c.MinIVObservations,
		FetchWorkers:        c.FetchWorkers,
		FetchTimeout:        c.FetchTimeout,
		VaRSeed:             c.VaRSeed,
	}
}

// MarketSectorWeights returns the benchmark sector weight table used to
// fill market_weight in the sector allocation view. Yahoo's funds data is
// not exposed by the Go client, so the table is configuration: either the
// JSON file named by MARKET_SECTOR_WEIGHTS_PATH or a built-in snapshot of
// S&P 500 sector weights.
func (c *Config) MarketSectorWeights() (map[string]float64, error) {
	if c.MarketSectorWeightsPath == "" {
		return defaultMarketSectorWeights(), nil
	}

	data, err := os.ReadFile(c.MarketSectorWeightsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read market sector weights: %w", err)
	}

	weights := make(map[string]float64)
	if err := json.Unmarshal(data, &weights); err != nil {
		return nil, fmt.Errorf("failed to parse market sector weights: %w", err)
	}
	return weights, nil
}

func defaultMarketSectorWeights() map[string]float64 {
	return map[string]float64{
		"technology":             0.32,
		"financial_services":     0.14,
		"consumer_cyclical":      0.105,
		"communication_services": 0.095,
		"healthcare":             0.095,
		"industrials":            0.085,
		"consumer_defensive":     0.055,
		"energy":                 0.035,
		"utilities":              0.025,
		"real_estate":            0.022,
		"basic_materials":        0.02,
	}
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getEnvAsInt gets environment variable as int with fallback
func getEnvAsInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsFloat gets environment variable as float64 with fallback
func getEnvAsFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvAsBool gets environment variable as bool with fallback
func getEnvAsBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
