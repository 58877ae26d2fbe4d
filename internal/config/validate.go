package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	if err := ValidateURL(cfg.WordPress.BaseURL); err != nil {
		return fmt.Errorf("wordpress.base_url: %w", err)
	}
	if cfg.WordPress.PerPage < 1 || cfg.WordPress.PerPage > 100 {
		return fmt.Errorf("wordpress.per_page must be 1-100, got %d", cfg.WordPress.PerPage)
	}
	if cfg.WordPress.Timeout <= 0 {
		return fmt.Errorf("wordpress.timeout must be > 0")
	}
	if cfg.WordPress.CacheTTL < 0 {
		return fmt.Errorf("wordpress.cache_ttl must be >= 0")
	}

	if cfg.Mongo.URI != "" && cfg.Mongo.Database == "" {
		return fmt.Errorf("mongo.database is required when mongo.uri is set")
	}
	if cfg.Mongo.Collection == "" {
		return fmt.Errorf("mongo.collection must not be empty")
	}

	if cfg.Scraper.Timeout <= 0 {
		return fmt.Errorf("scraper.timeout must be > 0")
	}
	if cfg.Scraper.MaxBodySize <= 0 {
		return fmt.Errorf("scraper.max_body_size must be > 0")
	}
	if cfg.Scraper.RatePerSecond < 0 {
		return fmt.Errorf("scraper.rate_per_second must be >= 0")
	}
	if cfg.Scraper.RespectRobots && cfg.Scraper.RobotsTTL <= 0 {
		return fmt.Errorf("scraper.robots_ttl must be > 0 when respect_robots is set")
	}
	for i, src := range cfg.Scraper.Sources {
		if src.Name == "" {
			return fmt.Errorf("scraper.sources[%d].name must not be empty", i)
		}
		if err := ValidateURL(src.URL); err != nil {
			return fmt.Errorf("scraper.sources[%d].url: %w", i, err)
		}
		if src.Base != "" {
			if err := ValidateURL(src.Base); err != nil {
				return fmt.Errorf("scraper.sources[%d].base: %w", i, err)
			}
		}
		if src.Fetcher != "" && src.Fetcher != "http" && src.Fetcher != "browser" {
			return fmt.Errorf("scraper.sources[%d].fetcher must be 'http' or 'browser', got %q", i, src.Fetcher)
		}
	}

	if cfg.Scheduler.Enabled {
		if err := ValidateSchedule(cfg.Scheduler.Cron); err != nil {
			return fmt.Errorf("scheduler.cron: %w", err)
		}
	}
	if cfg.Scheduler.InitialDelay < 0 {
		return fmt.Errorf("scheduler.initial_delay must be >= 0")
	}

	if cfg.Aggregator.ExcerptLength < 1 {
		return fmt.Errorf("aggregator.excerpt_length must be >= 1, got %d", cfg.Aggregator.ExcerptLength)
	}
	if cfg.Pagination.DefaultLimit < 1 {
		return fmt.Errorf("pagination.default_limit must be >= 1")
	}
	if cfg.Pagination.MaxLimit < cfg.Pagination.DefaultLimit {
		return fmt.Errorf("pagination.max_limit must be >= pagination.default_limit")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	return nil
}

// ValidateSchedule accepts either a Go duration ("6h") or a standard
// five-field cron expression ("0 */6 * * *").
func ValidateSchedule(spec string) error {
	if spec == "" {
		return fmt.Errorf("schedule must not be empty")
	}
	if d, err := time.ParseDuration(spec); err == nil {
		if d <= 0 {
			return fmt.Errorf("interval must be > 0, got %s", d)
		}
		return nil
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

// ValidateURL checks that a URL string is an absolute http(s) URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
