package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr        string
	DatabaseURL string
	AdminToken  string
	ProposalTTL time.Duration
	Market      MarketConfig
}

type MarketConfig struct {
	MinInterval  time.Duration
	MaxInterval  time.Duration
	InitialPrice int64
	MaxChange    int64
	MinBuyPrice  int64
}

type WorkerConfig struct {
	DatabaseURL string
	Market      MarketConfig
}

type BotConfig struct {
	Token       string
	Prefix      string
	DatabaseURL string
	ProposalTTL time.Duration
	Market      MarketConfig
}

type CLIConfig struct {
	APIBaseURL string
	Account    string
}

func loadMarketFromEnv() MarketConfig {
	return MarketConfig{
		MinInterval:  envDurationDefault("HOARD_STOCK_MIN_INTERVAL", 120*time.Second),
		MaxInterval:  envDurationDefault("HOARD_STOCK_MAX_INTERVAL", 300*time.Second),
		InitialPrice: envInt64Default("HOARD_STOCK_INITIAL_PRICE", 100_000),
		MaxChange:    envInt64Default("HOARD_STOCK_MAX_CHANGE", 30_000),
		MinBuyPrice:  envInt64Default("HOARD_STOCK_MIN_BUY_PRICE", 10_000),
	}
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("HOARD_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:  strings.TrimSpace(os.Getenv("HOARD_ADMIN_TOKEN")),
		ProposalTTL: envDurationDefault("HOARD_PROPOSAL_TTL", 30*time.Second),
		Market:      loadMarketFromEnv(),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	cfg := WorkerConfig{
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		Market:      loadMarketFromEnv(),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.Market.MaxInterval < cfg.Market.MinInterval {
		return cfg, fmt.Errorf("HOARD_STOCK_MAX_INTERVAL must be >= HOARD_STOCK_MIN_INTERVAL")
	}
	return cfg, nil
}

func LoadBotFromEnv() (BotConfig, error) {
	cfg := BotConfig{
		Token:       strings.TrimSpace(os.Getenv("HOARD_DISCORD_TOKEN")),
		Prefix:      envDefault("HOARD_PREFIX", ","),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		ProposalTTL: envDurationDefault("HOARD_PROPOSAL_TTL", 30*time.Second),
		Market:      loadMarketFromEnv(),
	}
	if cfg.Token == "" {
		return cfg, fmt.Errorf("HOARD_DISCORD_TOKEN is required")
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("HRD_API_BASE_URL", "http://localhost:8080"), "/"),
		Account:    strings.TrimSpace(os.Getenv("HOARD_ACCOUNT")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}
