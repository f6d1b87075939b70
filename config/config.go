package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"stockpilot/internal/adapters/logger"
)

// Brokerage backends selectable via BROKER.
const (
	BrokerKIS    = "kis"
	BrokerAlpaca = "alpaca"
)

// Config holds all application configuration.
type Config struct {
	// Brokerage selection
	Broker    string // "kis" or "alpaca"
	AccountID string // Logical account identifier used across storage and logs

	// KIS API
	KISBaseURL     string
	KISAppKey      string
	KISAppSecret   string
	KISAccountNo   string // CANO, the 8-digit account number
	KISProductCode string // ACNT_PRDT_CD, usually "01"
	KISVirtual     bool   // Paper trading endpoints and TR IDs

	// Alpaca API
	AlpacaAPIKey    string
	AlpacaAPISecret string
	AlpacaBaseURL   string

	// Scheduling
	BuyInterval  time.Duration
	SellInterval time.Duration
	DryRun       bool

	// Research
	LookbackDays int // Price history window for indicator snapshots

	// Database
	DBPath string

	// Notifications
	SlackWebhookURL string // Empty disables Slack delivery

	// Logging
	LogBackend string // "zap" or "std"
	LogLevel   logger.LogLevel
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var errs []string

	cfg.Broker = strings.ToLower(getEnv("BROKER", BrokerKIS))
	switch cfg.Broker {
	case BrokerKIS:
		cfg.KISVirtual = getEnvAsBool("KIS_VIRTUAL", true) // Default to paper trading for safety
		defaultBase := "https://openapi.koreainvestment.com:9443"
		if cfg.KISVirtual {
			defaultBase = "https://openapivts.koreainvestment.com:29443"
		}
		cfg.KISBaseURL = getEnv("KIS_BASE_URL", defaultBase)
		cfg.KISAppKey = getEnv("KIS_APP_KEY", "")
		cfg.KISAppSecret = getEnv("KIS_APP_SECRET", "")
		cfg.KISAccountNo = getEnv("KIS_ACCOUNT_NO", "")
		cfg.KISProductCode = getEnv("KIS_PRODUCT_CODE", "01")

		if cfg.KISAppKey == "" {
			errs = append(errs, "KIS_APP_KEY must be set")
		}
		if cfg.KISAppSecret == "" {
			errs = append(errs, "KIS_APP_SECRET must be set")
		}
		if cfg.KISAccountNo == "" {
			errs = append(errs, "KIS_ACCOUNT_NO must be set")
		}
	case BrokerAlpaca:
		cfg.AlpacaAPIKey = getEnv("ALPACA_API_KEY", "")
		cfg.AlpacaAPISecret = getEnv("ALPACA_API_SECRET", "")
		cfg.AlpacaBaseURL = getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets")

		if cfg.AlpacaAPIKey == "" {
			errs = append(errs, "ALPACA_API_KEY must be set")
		}
		if cfg.AlpacaAPISecret == "" {
			errs = append(errs, "ALPACA_API_SECRET must be set")
		}
	default:
		errs = append(errs, fmt.Sprintf("BROKER must be %q or %q, got %q", BrokerKIS, BrokerAlpaca, cfg.Broker))
	}

	cfg.AccountID = getEnv("ACCOUNT_ID", cfg.KISAccountNo)
	if cfg.AccountID == "" {
		errs = append(errs, "ACCOUNT_ID must be set")
	}

	buyIntervalSeconds := getEnvAsInt("BUY_INTERVAL_SECONDS", 60)
	if buyIntervalSeconds <= 0 {
		errs = append(errs, "BUY_INTERVAL_SECONDS must be positive")
	}
	cfg.BuyInterval = time.Duration(buyIntervalSeconds) * time.Second

	sellIntervalSeconds := getEnvAsInt("SELL_INTERVAL_SECONDS", 60)
	if sellIntervalSeconds <= 0 {
		errs = append(errs, "SELL_INTERVAL_SECONDS must be positive")
	}
	cfg.SellInterval = time.Duration(sellIntervalSeconds) * time.Second

	cfg.DryRun = getEnvAsBool("DRY_RUN", false)

	cfg.LookbackDays = getEnvAsInt("LOOKBACK_DAYS", 120)
	if cfg.LookbackDays <= 0 {
		errs = append(errs, "LOOKBACK_DAYS must be positive")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/stockpilot.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	cfg.SlackWebhookURL = getEnv("SLACK_WEBHOOK_URL", "")

	cfg.LogBackend = getEnv("LOG_BACKEND", "zap")
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

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
