package config

import (
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for newsblend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"     yaml:"server"`
	WordPress  WordPressConfig  `mapstructure:"wordpress"  yaml:"wordpress"`
	Mongo      MongoConfig      `mapstructure:"mongo"      yaml:"mongo"`
	Scraper    ScraperConfig    `mapstructure:"scraper"    yaml:"scraper"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"  yaml:"scheduler"`
	Aggregator AggregatorConfig `mapstructure:"aggregator" yaml:"aggregator"`
	Pagination PaginationConfig `mapstructure:"pagination" yaml:"pagination"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// ServerConfig controls the HTTP boundary.
type ServerConfig struct {
	Port            int           `mapstructure:"port"             yaml:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"    yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	CORSOrigin      string        `mapstructure:"cors_origin"      yaml:"cors_origin"`
}

// WordPressConfig controls the upstream WordPress client.
type WordPressConfig struct {
	BaseURL  string        `mapstructure:"base_url"  yaml:"base_url"`
	PerPage  int           `mapstructure:"per_page"  yaml:"per_page"`
	Timeout  time.Duration `mapstructure:"timeout"   yaml:"timeout"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" yaml:"cache_ttl"`
}

// MongoConfig controls the news store connection. An empty URI selects the
// in-memory store.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"             yaml:"uri"`
	Database       string        `mapstructure:"database"        yaml:"database"`
	Collection     string        `mapstructure:"collection"      yaml:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"   yaml:"query_timeout"`
}

// ScraperConfig controls the HTML scraper.
type ScraperConfig struct {
	Timeout        time.Duration  `mapstructure:"timeout"          yaml:"timeout"`
	UserAgents     []string       `mapstructure:"user_agents"      yaml:"user_agents"`
	MaxBodySize    int64          `mapstructure:"max_body_size"    yaml:"max_body_size"`
	RatePerSecond  float64        `mapstructure:"rate_per_second"  yaml:"rate_per_second"`
	MinTitleLength int            `mapstructure:"min_title_length" yaml:"min_title_length"`
	FallbackMinLen int            `mapstructure:"fallback_min_len" yaml:"fallback_min_len"`
	FallbackPath   string         `mapstructure:"fallback_path"    yaml:"fallback_path"`
	RespectRobots  bool           `mapstructure:"respect_robots"   yaml:"respect_robots"`
	RobotsTTL      time.Duration  `mapstructure:"robots_ttl"       yaml:"robots_ttl"`
	Sources        []SourceConfig `mapstructure:"sources"          yaml:"sources"`
}

// SourceConfig is one HTML news listing to scrape.
type SourceConfig struct {
	Name    string `mapstructure:"name"    yaml:"name"`
	URL     string `mapstructure:"url"     yaml:"url"`
	Base    string `mapstructure:"base"    yaml:"base"`
	Fetcher string `mapstructure:"fetcher" yaml:"fetcher"` // http, browser
}

// SchedulerConfig controls periodic scraping.
type SchedulerConfig struct {
	Enabled      bool          `mapstructure:"enabled"       yaml:"enabled"`
	Cron         string        `mapstructure:"cron"          yaml:"cron"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	ScrapeKey    string        `mapstructure:"scrape_key"    yaml:"scrape_key"`
}

// AggregatorConfig controls the combined feed.
type AggregatorConfig struct {
	SeedEnabled   bool   `mapstructure:"seed_enabled"   yaml:"seed_enabled"`
	SeedSource    string `mapstructure:"seed_source"    yaml:"seed_source"`
	ExcerptLength int    `mapstructure:"excerpt_length" yaml:"excerpt_length"`
	StoreLimit    int    `mapstructure:"store_limit"    yaml:"store_limit"`
}

// PaginationConfig controls the paginated news endpoint.
type PaginationConfig struct {
	DefaultLimit int `mapstructure:"default_limit" yaml:"default_limit"`
	MaxLimit     int `mapstructure:"max_limit"     yaml:"max_limit"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            5000,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigin:      "*",
		},
		WordPress: WordPressConfig{
			BaseURL:  "https://public-api.wordpress.com/wp/v2/sites/firstproduc.wordpress.com",
			PerPage:  100,
			Timeout:  10 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		Mongo: MongoConfig{
			Database:       "newsblend",
			Collection:     "news",
			ConnectTimeout: 10 * time.Second,
			QueryTimeout:   10 * time.Second,
		},
		Scraper: ScraperConfig{
			Timeout: 10 * time.Second,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			RatePerSecond:  2,
			MinTitleLength: 5,
			FallbackMinLen: 10,
			FallbackPath:   "/news/",
			RobotsTTL:      24 * time.Hour,
			Sources: []SourceConfig{
				{
					Name:    "Stadt Dortmund",
					URL:     "https://www.dortmund.de/de/leben_in_dortmund/medien/aktuelle_nachrichten/index.html",
					Base:    "https://www.dortmund.de",
					Fetcher: "http",
				},
			},
		},
		Scheduler: SchedulerConfig{
			Enabled:      true,
			Cron:         "0 */6 * * *",
			InitialDelay: 10 * time.Second,
		},
		Aggregator: AggregatorConfig{
			SeedEnabled:   true,
			SeedSource:    "Stadt Dortmund",
			ExcerptLength: 100,
		},
		Pagination: PaginationConfig{
			DefaultLimit: 10,
			MaxLimit:     100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}
