package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"server"`
	Telemetry struct {
		ModelUUID string `yaml:"model_uuid"`
	} `yaml:"telemetry"`
	Market struct {
		CoinMarketCapAPIKey string        `yaml:"coinmarketcap_api_key"`
		PollInterval        time.Duration `yaml:"poll_interval"`
		BootstrapWindow     time.Duration `yaml:"bootstrap_window"`
		FetchRetries        int           `yaml:"fetch_retries"`
	} `yaml:"market"`
	Ledger struct {
		InitialBalance float64 `yaml:"initial_balance"`
	} `yaml:"ledger"`
	Database struct {
		SQLitePath    string `yaml:"sqlite_path"`
		RetentionDays int    `yaml:"retention_days"`
		RetentionCron string `yaml:"retention_cron"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("MODEL_UUID"); v != "" {
		cfg.Telemetry.ModelUUID = v
	}
	if v := os.Getenv("COIN_MARKET_CAP_API_KEY"); v != "" {
		cfg.Market.CoinMarketCapAPIKey = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("INITIAL_BALANCE"); v != "" {
		if b, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Ledger.InitialBalance = b
		}
	}

	// Defaults
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":14533"
	}
	if cfg.Telemetry.ModelUUID == "" {
		cfg.Telemetry.ModelUUID = "cfaa456f-9a45-4e46-adac-38f9f809ce5b"
	}
	if cfg.Market.PollInterval == 0 {
		cfg.Market.PollInterval = 66 * time.Second
	}
	if cfg.Market.BootstrapWindow == 0 {
		cfg.Market.BootstrapWindow = 6 * time.Hour
	}
	if cfg.Market.FetchRetries == 0 {
		cfg.Market.FetchRetries = 3
	}
	if cfg.Ledger.InitialBalance == 0 {
		cfg.Ledger.InitialBalance = 1000
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/tradepulse.db"
	}
	if cfg.Database.RetentionDays == 0 {
		cfg.Database.RetentionDays = 30
	}
	if cfg.Database.RetentionCron == "" {
		cfg.Database.RetentionCron = "0 0 4 * * *"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Telemetry.ModelUUID == "" {
		return fmt.Errorf("telemetry.model_uuid is required")
	}
	if c.Market.PollInterval <= 0 {
		return fmt.Errorf("market.poll_interval must be positive")
	}
	if c.Ledger.InitialBalance <= 0 {
		return fmt.Errorf("ledger.initial_balance must be positive")
	}
	if c.Database.RetentionDays < 0 {
		return fmt.Errorf("database.retention_days must not be negative")
	}
	return nil
}
