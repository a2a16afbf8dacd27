// Package config loads the engine's YAML configuration with environment
// overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all engine settings. Sensitive values (database and
// Redis URLs) can be overridden through the environment after load.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Engine struct {
		Currency      string `yaml:"currency"`
		FeeAccountID  string `yaml:"fee_account_id"`
		MaxOpenOrders int    `yaml:"max_open_orders"`
		MaxNotional   string `yaml:"max_notional"`

		// Accounts registered with the engine at startup. In production
		// the banking platform provisions these; the list exists for
		// standalone and development deployments.
		Accounts []SeedAccount `yaml:"accounts"`
	} `yaml:"engine"`

	Database struct {
		URL      string `yaml:"url"`
		RedisURL string `yaml:"redis_url"`
		CacheTTL int    `yaml:"cache_ttl_sec"`
	} `yaml:"database"`

	Logging struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"logging"`
}

// SeedAccount describes one ledger account to create at startup.
type SeedAccount struct {
	AccountID      string `yaml:"account_id"`
	OwnerID        string `yaml:"owner_id"`
	OpeningBalance string `yaml:"opening_balance"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Engine.Currency = "EUR"
	cfg.Engine.FeeAccountID = "acc-engine-fees"
	cfg.Engine.MaxOpenOrders = 100
	cfg.Database.CacheTTL = 30
	cfg.Logging.Level = "info"
	return cfg
}

// Load reads and parses the configuration file, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if len(c.Engine.Currency) != 3 {
		return fmt.Errorf("invalid currency code: %q", c.Engine.Currency)
	}
	if c.Engine.FeeAccountID == "" {
		return fmt.Errorf("fee account id is required")
	}
	if c.Engine.MaxOpenOrders < 0 {
		return fmt.Errorf("max open orders must not be negative")
	}
	return nil
}

// overrideWithEnv applies environment variables on top of file values.
func overrideWithEnv(cfg *Config) {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Database.RedisURL = redisURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
