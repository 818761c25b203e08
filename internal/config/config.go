// Package config provides configuration management for the binary options engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperrors "updown-core/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Feed       FeedConfig       `mapstructure:"feed"`
	Ledger     LedgerConfig     `mapstructure:"ledger"`
	Settlement SettlementConfig `mapstructure:"settlement"`
	Store      StoreConfig      `mapstructure:"store"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// FeedConfig holds price feed connection configuration.
type FeedConfig struct {
	URL         string        `mapstructure:"url"`
	ProductID   string        `mapstructure:"product_id"`
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	StaleAfter  time.Duration `mapstructure:"stale_after"`
	HistorySize int           `mapstructure:"history_size"`
}

// LedgerConfig holds external ledger client configuration.
type LedgerConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	AuthToken string        `mapstructure:"auth_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// SettlementConfig holds settlement recorder configuration.
type SettlementConfig struct {
	ArchiveEnabled bool `mapstructure:"archive_enabled"`
}

// StoreConfig holds settlement archive storage configuration.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	File    bool   `mapstructure:"file"`
	Path    string `mapstructure:"path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/updown-core"
	}
	return filepath.Join(home, ".config", "updown-core")
}

// Default returns the default configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".config", "updown-core")
	return &Config{
		Feed: FeedConfig{
			URL:         "wss://ws-feed.exchange.coinbase.com",
			ProductID:   "BTC-USD",
			MaxRetries:  5,
			BaseDelay:   time.Second,
			StaleAfter:  30 * time.Second,
			HistorySize: 1000,
		},
		Ledger: LedgerConfig{
			BaseURL: "http://localhost:8080",
			Timeout: 10 * time.Second,
		},
		Settlement: SettlementConfig{
			ArchiveEnabled: true,
		},
		Store: StoreConfig{
			Path: filepath.Join(base, "settlements.db"),
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    true,
			Path:    filepath.Join(base, "logs", "engine.log"),
		},
	}
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
// Environment variables prefixed with UPDOWN_ override file values.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	v.SetEnvPrefix("UPDOWN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("loading config.toml: %w", err)
		}
		// No config file is fine, defaults and env apply.
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := Default()

	v.SetDefault("feed.url", def.Feed.URL)
	v.SetDefault("feed.product_id", def.Feed.ProductID)
	v.SetDefault("feed.max_retries", def.Feed.MaxRetries)
	v.SetDefault("feed.base_delay", def.Feed.BaseDelay)
	v.SetDefault("feed.stale_after", def.Feed.StaleAfter)
	v.SetDefault("feed.history_size", def.Feed.HistorySize)

	v.SetDefault("ledger.base_url", def.Ledger.BaseURL)
	v.SetDefault("ledger.auth_token", "")
	v.SetDefault("ledger.timeout", def.Ledger.Timeout)

	v.SetDefault("settlement.archive_enabled", def.Settlement.ArchiveEnabled)
	v.SetDefault("store.path", def.Store.Path)

	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.console", def.Logging.Console)
	v.SetDefault("logging.file", def.Logging.File)
	v.SetDefault("logging.path", def.Logging.Path)
}

// Validate checks the configuration for invalid values. Every failure
// wraps ErrConfigInvalid so callers can distinguish bad configuration
// from load errors.
func (c *Config) Validate() error {
	if c.Feed.URL == "" {
		return fmt.Errorf("%w: feed.url must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.Feed.ProductID == "" {
		return fmt.Errorf("%w: feed.product_id must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.Feed.MaxRetries < 1 {
		return fmt.Errorf("%w: feed.max_retries must be at least 1, got %d", apperrors.ErrConfigInvalid, c.Feed.MaxRetries)
	}
	if c.Feed.BaseDelay <= 0 {
		return fmt.Errorf("%w: feed.base_delay must be positive, got %s", apperrors.ErrConfigInvalid, c.Feed.BaseDelay)
	}
	if c.Feed.StaleAfter <= 0 {
		return fmt.Errorf("%w: feed.stale_after must be positive, got %s", apperrors.ErrConfigInvalid, c.Feed.StaleAfter)
	}
	if c.Feed.HistorySize < 1 {
		return fmt.Errorf("%w: feed.history_size must be at least 1, got %d", apperrors.ErrConfigInvalid, c.Feed.HistorySize)
	}
	if c.Ledger.BaseURL == "" {
		return fmt.Errorf("%w: ledger.base_url must not be empty", apperrors.ErrConfigInvalid)
	}
	if c.Ledger.Timeout <= 0 {
		return fmt.Errorf("%w: ledger.timeout must be positive, got %s", apperrors.ErrConfigInvalid, c.Ledger.Timeout)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: logging.level must be one of debug/info/warn/error, got %q", apperrors.ErrConfigInvalid, c.Logging.Level)
	}
	return nil
}
