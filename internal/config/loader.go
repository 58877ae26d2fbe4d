package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envAliases binds the plain environment variables the service has always
// understood, in addition to the NEWSBLEND_ prefixed ones.
var envAliases = map[string][]string{
	"mongo.uri":            {"NEWSBLEND_MONGO_URI", "MONGODB_URI"},
	"mongo.database":       {"NEWSBLEND_MONGO_DATABASE", "MONGODB_DB_NAME"},
	"wordpress.base_url":   {"NEWSBLEND_WORDPRESS_BASE_URL", "WP_API"},
	"scheduler.cron":       {"NEWSBLEND_SCHEDULER_CRON", "SCRAPE_CRON"},
	"scheduler.scrape_key": {"NEWSBLEND_SCHEDULER_SCRAPE_KEY", "SCRAPE_KEY"},
	"server.port":          {"NEWSBLEND_SERVER_PORT", "PORT"},
}

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("NEWSBLEND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("newsblend")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".newsblend"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.cors_origin", cfg.Server.CORSOrigin)

	v.SetDefault("wordpress.base_url", cfg.WordPress.BaseURL)
	v.SetDefault("wordpress.per_page", cfg.WordPress.PerPage)
	v.SetDefault("wordpress.timeout", cfg.WordPress.Timeout)
	v.SetDefault("wordpress.cache_ttl", cfg.WordPress.CacheTTL)

	v.SetDefault("mongo.uri", cfg.Mongo.URI)
	v.SetDefault("mongo.database", cfg.Mongo.Database)
	v.SetDefault("mongo.collection", cfg.Mongo.Collection)
	v.SetDefault("mongo.connect_timeout", cfg.Mongo.ConnectTimeout)
	v.SetDefault("mongo.query_timeout", cfg.Mongo.QueryTimeout)

	v.SetDefault("scraper.timeout", cfg.Scraper.Timeout)
	v.SetDefault("scraper.user_agents", cfg.Scraper.UserAgents)
	v.SetDefault("scraper.max_body_size", cfg.Scraper.MaxBodySize)
	v.SetDefault("scraper.rate_per_second", cfg.Scraper.RatePerSecond)
	v.SetDefault("scraper.min_title_length", cfg.Scraper.MinTitleLength)
	v.SetDefault("scraper.fallback_min_len", cfg.Scraper.FallbackMinLen)
	v.SetDefault("scraper.fallback_path", cfg.Scraper.FallbackPath)
	v.SetDefault("scraper.respect_robots", cfg.Scraper.RespectRobots)
	v.SetDefault("scraper.robots_ttl", cfg.Scraper.RobotsTTL)
	v.SetDefault("scraper.sources", cfg.Scraper.Sources)

	v.SetDefault("scheduler.enabled", cfg.Scheduler.Enabled)
	v.SetDefault("scheduler.cron", cfg.Scheduler.Cron)
	v.SetDefault("scheduler.initial_delay", cfg.Scheduler.InitialDelay)
	v.SetDefault("scheduler.scrape_key", cfg.Scheduler.ScrapeKey)

	v.SetDefault("aggregator.seed_enabled", cfg.Aggregator.SeedEnabled)
	v.SetDefault("aggregator.seed_source", cfg.Aggregator.SeedSource)
	v.SetDefault("aggregator.excerpt_length", cfg.Aggregator.ExcerptLength)
	v.SetDefault("aggregator.store_limit", cfg.Aggregator.StoreLimit)

	v.SetDefault("pagination.default_limit", cfg.Pagination.DefaultLimit)
	v.SetDefault("pagination.max_limit", cfg.Pagination.MaxLimit)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
