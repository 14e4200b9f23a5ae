// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Scrape  ScrapeConfig  `mapstructure:"scrape"`
	Catalog CatalogConfig `mapstructure:"catalog"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// ScrapeConfig governs pipeline and fetcher behavior.
type ScrapeConfig struct {
	Concurrency     int    `mapstructure:"concurrency"`
	UserAgent       string `mapstructure:"user_agent"`
	DelayMs         int    `mapstructure:"delay_ms"`
	TimeoutSeconds  int    `mapstructure:"timeout_seconds"`
	ParseTimeoutSec int    `mapstructure:"parse_timeout_seconds"`
}

// CatalogConfig governs the catalog feed indexer.
type CatalogConfig struct {
	PageSize       int `mapstructure:"page_size"`
	PageDelayMs    int `mapstructure:"page_delay_ms"`
	RetryAttempts  int `mapstructure:"retry_attempts"`
	RetryBackoffMs int `mapstructure:"retry_backoff_ms"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SKUSCRAPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("scrape.concurrency", 4)
	v.SetDefault("scrape.user_agent", "skuscraper/0.1")
	v.SetDefault("scrape.delay_ms", 250)
	v.SetDefault("scrape.timeout_seconds", 40)
	v.SetDefault("scrape.parse_timeout_seconds", 30)
	v.SetDefault("catalog.page_size", 250)
	v.SetDefault("catalog.page_delay_ms", 100)
	v.SetDefault("catalog.retry_attempts", 3)
	v.SetDefault("catalog.retry_backoff_ms", 2000)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.TimeoutSeconds <= 0 {
		return fmt.Errorf("scrape.timeout_seconds must be > 0")
	}
	if c.Catalog.PageSize <= 0 || c.Catalog.PageSize > 250 {
		return fmt.Errorf("catalog.page_size must be in 1..250")
	}
	return nil
}

// FetchTimeout converts the fetch timeout knob into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Scrape.TimeoutSeconds) * time.Second
}

// ParseTimeout converts the parse timeout knob into a duration.
func (c Config) ParseTimeout() time.Duration {
	return time.Duration(c.Scrape.ParseTimeoutSec) * time.Second
}

// ScrapeDelay converts the inter-request delay knob into a duration.
func (c Config) ScrapeDelay() time.Duration {
	return time.Duration(c.Scrape.DelayMs) * time.Millisecond
}

// CatalogPageDelay converts the feed page delay knob into a duration.
func (c Config) CatalogPageDelay() time.Duration {
	return time.Duration(c.Catalog.PageDelayMs) * time.Millisecond
}

// CatalogRetryBackoff converts the feed retry backoff knob into a duration.
func (c Config) CatalogRetryBackoff() time.Duration {
	return time.Duration(c.Catalog.RetryBackoffMs) * time.Millisecond
}
