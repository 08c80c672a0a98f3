package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// YAMLConfig is the service configuration file layout.
type YAMLConfig struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Data struct {
		DBPath        string `yaml:"db_path"`
		PremiumWindow int    `yaml:"premium_window_hours"`
	} `yaml:"data"`

	Backtest struct {
		InitialCash   float64 `yaml:"initial_cash"`
		BrokerageRate float64 `yaml:"brokerage_rate"`
		LotSize       int     `yaml:"lot_size"`
	} `yaml:"backtest"`
}

// Config is the resolved service configuration.
type Config struct {
	// HTTP service port
	Port int

	// SQLite market data store path
	DBPath string

	// Lookup tolerance around a date for option premium quotes
	PremiumWindow time.Duration

	// Run defaults applied when a request leaves them unset
	InitialCash   float64
	BrokerageRate float64
	LotSize       int
}

// DefaultConfig carries sensible NIFTY defaults.
var DefaultConfig = Config{
	Port:          19528,
	DBPath:        "niftybt.db",
	PremiumWindow: 24 * time.Hour,
	InitialCash:   1_000_000,
	BrokerageRate: 0.001,
	LotSize:       75,
}

// LoadFromFile loads the service configuration from a YAML file,
// filling gaps from DefaultConfig.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var yamlConfig YAMLConfig
	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	config := DefaultConfig

	if yamlConfig.Server.Port > 0 {
		config.Port = yamlConfig.Server.Port
	}
	if yamlConfig.Data.DBPath != "" {
		config.DBPath = yamlConfig.Data.DBPath
	}
	if yamlConfig.Data.PremiumWindow > 0 {
		config.PremiumWindow = time.Duration(yamlConfig.Data.PremiumWindow) * time.Hour
	}
	if yamlConfig.Backtest.InitialCash > 0 {
		config.InitialCash = yamlConfig.Backtest.InitialCash
	}
	if yamlConfig.Backtest.BrokerageRate > 0 {
		config.BrokerageRate = yamlConfig.Backtest.BrokerageRate
	}
	if yamlConfig.Backtest.LotSize > 0 {
		config.LotSize = yamlConfig.Backtest.LotSize
	}

	return &config, nil
}

// GetConfig resolves configuration with precedence:
// environment > config file > defaults.
func GetConfig(configPath string) *Config {
	config := DefaultConfig

	if configPath != "" {
		if cfg, err := LoadFromFile(configPath); err == nil {
			config = *cfg
		} else {
			fmt.Printf("warning: cannot load config file %s: %v\n", configPath, err)
		}
	}

	if db := os.Getenv("NIFTYBT_DB"); db != "" {
		config.DBPath = db
	}
	if port := os.Getenv("NIFTYBT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 {
			config.Port = p
		}
	}

	return &config
}
