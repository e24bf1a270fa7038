// Copyright 2025 Agentic World, LLC (Sherin Thomas)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	TMDB     TMDBConfig     `mapstructure:"tmdb"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// DatabaseConfig holds SQLite settings
type DatabaseConfig struct {
	// Path to the database file. Empty means ~/.streamsnake/streamsnake.db
	Path string `mapstructure:"path"`
}

// CrawlConfig holds discovery run settings
type CrawlConfig struct {
	Sites           []string `mapstructure:"sites"`
	RequestDelayMs  int      `mapstructure:"request_delay_ms"`
	MaxItemsPerSite int      `mapstructure:"max_items_per_site"`
	MaxPages        int      `mapstructure:"max_pages"`
	ScrollAttempts  int      `mapstructure:"scroll_attempts"`
	RescrapeStale   bool     `mapstructure:"rescrape_stale"`
	SiteConcurrency int      `mapstructure:"site_concurrency"`
	Headless        bool     `mapstructure:"headless"`
	PageTimeoutSecs int      `mapstructure:"page_timeout_secs"`
	UserAgent       string   `mapstructure:"user_agent"`
	FailedItemsPath string   `mapstructure:"failed_items_path"`
}

// TMDBConfig holds TMDB API settings for the vidsrc adapter
type TMDBConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	Enabled    bool     `mapstructure:"enabled"`
	Pages      int      `mapstructure:"pages"`
	MediaTypes []string `mapstructure:"media_types"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	// File enables a rotating log file alongside stderr when set.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

var cfg *Config

// Load reads configuration from file and environment variables
func Load() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/streamsnake")

	setDefaults()

	viper.SetEnvPrefix("STREAMSNAKE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Bind nested keys explicitly; AutomaticEnv alone doesn't reach them
	// through Unmarshal. TMDB_API_KEY is accepted unprefixed for
	// compatibility with the usual deployment env.
	viper.BindEnv("database.path")
	viper.BindEnv("crawl.request_delay_ms")
	viper.BindEnv("crawl.max_items_per_site")
	viper.BindEnv("crawl.max_pages")
	viper.BindEnv("crawl.scroll_attempts")
	viper.BindEnv("crawl.rescrape_stale")
	viper.BindEnv("crawl.site_concurrency")
	viper.BindEnv("crawl.headless")
	viper.BindEnv("crawl.page_timeout_secs")
	viper.BindEnv("crawl.user_agent")
	viper.BindEnv("crawl.failed_items_path")
	viper.BindEnv("tmdb.api_key")
	viper.BindEnv("tmdb.enabled")
	viper.BindEnv("tmdb.pages")
	viper.BindEnv("logging.level")
	viper.BindEnv("logging.format")
	viper.BindEnv("logging.file")
	if key := os.Getenv("TMDB_API_KEY"); key != "" {
		viper.Set("tmdb.api_key", key)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

// Get returns the current configuration
func Get() *Config {
	if cfg == nil {
		return &Config{}
	}
	return cfg
}

func setDefaults() {
	viper.SetDefault("crawl.sites", []string{"goojara", "sflix", "1flix", "123movies"})
	viper.SetDefault("crawl.request_delay_ms", 1000)
	viper.SetDefault("crawl.max_items_per_site", 0)
	viper.SetDefault("crawl.max_pages", 50)
	viper.SetDefault("crawl.scroll_attempts", 10)
	viper.SetDefault("crawl.rescrape_stale", true)
	viper.SetDefault("crawl.site_concurrency", 2)
	viper.SetDefault("crawl.headless", true)
	viper.SetDefault("crawl.page_timeout_secs", 30)
	viper.SetDefault("crawl.failed_items_path", "failed_items.json")

	viper.SetDefault("tmdb.enabled", false)
	viper.SetDefault("tmdb.pages", 1)
	viper.SetDefault("tmdb.media_types", []string{"movie", "series"})

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.max_size_mb", 20)
	viper.SetDefault("logging.max_backups", 3)
}

func validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validFormats := map[string]bool{"json": true, "text": true}

	if cfg.Logging.Level != "" && !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	if cfg.Logging.Format != "" && !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}
	if cfg.TMDB.Enabled && strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		return fmt.Errorf("tmdb.api_key is required when tmdb.enabled is true")
	}
	if cfg.Crawl.RequestDelayMs < 0 {
		return fmt.Errorf("crawl.request_delay_ms must not be negative")
	}
	if cfg.Crawl.ScrollAttempts < 0 {
		return fmt.Errorf("crawl.scroll_attempts must not be negative")
	}
	return nil
}
