package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port      int
	DevMode   bool
	LogLevel  string
	CachePath string
	CacheTTL  time.Duration

	// Scenario catalog file for stress testing.
	ScenarioFile string

	// Market data hygiene.
	MinObservations    int
	MaxFillGap         int
	TradingDaysPerYear int

	// Risk engine defaults applied when a request omits them.
	DefaultBenchmark    string
	DefaultSeed         int64
	DefaultLookbackDays int
	DefaultBacktestDays int
	DefaultSimulations  int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnvAsInt("PORT", 8001),
		DevMode:             getEnvAsBool("DEV_MODE", false),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CachePath:           getEnv("CACHE_PATH", "./data/price_cache.db"),
		CacheTTL:            getEnvAsDuration("CACHE_TTL", time.Hour),
		ScenarioFile:        getEnv("SCENARIO_FILE", "./config/scenarios.yaml"),
		MinObservations:     getEnvAsInt("MIN_OBSERVATIONS", 60),
		MaxFillGap:          getEnvAsInt("MAX_FILL_GAP", 2),
		TradingDaysPerYear:  getEnvAsInt("TRADING_DAYS_PER_YEAR", 252),
		DefaultBenchmark:    getEnv("DEFAULT_BENCHMARK", "SPY"),
		DefaultSeed:         int64(getEnvAsInt("DEFAULT_SEED", 42)),
		DefaultLookbackDays: getEnvAsInt("DEFAULT_LOOKBACK_DAYS", 250),
		DefaultBacktestDays: getEnvAsInt("DEFAULT_BACKTEST_DAYS", 250),
		DefaultSimulations:  getEnvAsInt("DEFAULT_SIMULATIONS", 10000),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.CachePath == "" {
		return fmt.Errorf("CACHE_PATH is required")
	}
	if c.TradingDaysPerYear <= 0 {
		return fmt.Errorf("TRADING_DAYS_PER_YEAR must be positive")
	}
	if c.MinObservations < 2 {
		return fmt.Errorf("MIN_OBSERVATIONS must be at least 2")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
