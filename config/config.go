package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/zap/zapcore"

	"tradehook/internal/adapters/logger" // for level parsing
)

// Store driver names accepted in STORE_DRIVER.
const (
	StoreDriverFile   = "file"
	StoreDriverSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Webhook
	WebhookSecret string // Shared secret checked against the ?secret= query parameter
	ListenAddr    string

	// Trading parameters
	RiskFraction  decimal.Decimal // Fraction of the quote balance spent per BUY (e.g., 0.05)
	QuoteCurrency string          // Currency the balance check and PnL are denominated in

	// Storage
	StoreDriver  string // "file" or "sqlite"
	OpenLogPath  string // Flat-file ledger of open positions
	CloseLogPath string // Flat-file history of closed trades
	DBPath       string // SQLite database (STORE_DRIVER=sqlite)

	// Logging
	LogLevel zapcore.Level

	// Shutdown
	ShutdownTimeout time.Duration
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	if cfg.APIKey == "" {
		errs = append(errs, "BINANCE_API_KEY must be set")
	}
	if cfg.SecretKey == "" {
		errs = append(errs, "BINANCE_API_SECRET must be set")
	}

	// Webhook
	cfg.WebhookSecret = getEnv("WEBHOOK_SECRET", "")
	if cfg.WebhookSecret == "" {
		errs = append(errs, "WEBHOOK_SECRET must be set")
	}
	cfg.ListenAddr = getEnv("LISTEN_ADDR", ":8080")

	// Trading parameters
	riskStr := getEnv("RISK_FRACTION", "0.05")
	risk, err := decimal.NewFromString(riskStr)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_FRACTION %q: %v", riskStr, err))
	} else if risk.Sign() <= 0 || risk.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		errs = append(errs, "RISK_FRACTION must be strictly between 0 and 1")
	} else {
		cfg.RiskFraction = risk
	}

	cfg.QuoteCurrency = strings.ToUpper(getEnv("QUOTE_CURRENCY", "USD"))
	if cfg.QuoteCurrency == "" {
		errs = append(errs, "QUOTE_CURRENCY must be set")
	}

	// Storage
	cfg.StoreDriver = strings.ToLower(getEnv("STORE_DRIVER", StoreDriverFile))
	if cfg.StoreDriver != StoreDriverFile && cfg.StoreDriver != StoreDriverSQLite {
		errs = append(errs, fmt.Sprintf("STORE_DRIVER must be %q or %q", StoreDriverFile, StoreDriverSQLite))
	}
	cfg.OpenLogPath = getEnv("OPEN_LOG_PATH", "./data/OPEN.log")
	cfg.CloseLogPath = getEnv("CLOSE_LOG_PATH", "./data/CLOSE.log")
	cfg.DBPath = getEnv("DB_PATH", "./data/executor.db")

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Shutdown
	shutdownSeconds := getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)
	if shutdownSeconds <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT_SECONDS must be positive")
	}
	cfg.ShutdownTimeout = time.Duration(shutdownSeconds) * time.Second

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env var helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
