package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/IshaanNene/newsblend/internal/aggregator"
	"github.com/IshaanNene/newsblend/internal/api"
	"github.com/IshaanNene/newsblend/internal/config"
	"github.com/IshaanNene/newsblend/internal/observability"
	"github.com/IshaanNene/newsblend/internal/paginator"
	"github.com/IshaanNene/newsblend/internal/scheduler"
	"github.com/IshaanNene/newsblend/internal/scraper"
	"github.com/IshaanNene/newsblend/internal/storage"
	"github.com/IshaanNene/newsblend/internal/wordpress"
)

var (
	cfgFile string
	envFile string
	verbose bool
	dryRun  bool
	format  string
	output  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "newsblend",
		Short: "WordPress and city news aggregator",
		Long: `newsblend merges posts from a WordPress REST API with news scraped from
municipal websites and stored in MongoDB, and serves the combined feed
over HTTP.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadEnv(envFile)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv reads a dotenv file into the process environment. A missing file
// is not an error.
func loadEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the scrape scheduler",
		RunE:  runServe,
	}
}

// scrapeCmd creates the "scrape" subcommand.
func scrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one scrape pass and exit",
		Long:  "Scrape every configured source once and upsert the items into the store, or print them with --dry-run.",
		RunE:  runScrape,
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "export scraped items instead of storing them")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "dry-run export format: json, jsonl, csv")
	cmd.Flags().StringVarP(&output, "output", "o", "", "dry-run output file (default stdout)")
	return cmd
}

// loadConfig loads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore connects to MongoDB when a URI is configured and falls back to
// the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.NewsStore, error) {
	if cfg.Mongo.URI == "" {
		logger.Warn("no MongoDB URI configured, using in-memory store")
		return storage.NewMemoryStore(logger), nil
	}
	store, err := storage.NewMongoStore(ctx, &cfg.Mongo, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// runServe wires every component and serves until SIGINT or SIGTERM.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	// Metrics
	reg := observability.NewRegistry()
	metrics := observability.NewMetrics(reg)

	// Upstream and scraper
	wp := wordpress.NewClient(&cfg.WordPress, logger)
	scr := scraper.New(&cfg.Scraper, logger, scraper.WithMetrics(metrics))
	defer scr.Close()

	// Scheduler
	sched := scheduler.New(&cfg.Scheduler, scr, store, logger, scheduler.WithMetrics(metrics))
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	// Aggregator
	aggOpts := []aggregator.Option{aggregator.WithMetrics(metrics)}
	if cfg.Aggregator.SeedEnabled {
		seed, err := aggregator.DefaultSeed()
		if err != nil {
			return fmt.Errorf("load seed news: %w", err)
		}
		aggOpts = append(aggOpts, aggregator.WithSeed(seed))
	}
	agg := aggregator.New(&cfg.Aggregator, wp, store, logger, aggOpts...)

	srv := api.NewServer(cfg, api.Deps{
		Content:        agg,
		Pages:          paginator.New(&cfg.Pagination, store),
		Store:          store,
		Scraper:        scr,
		Scheduler:      sched,
		WordPress:      wp,
		Metrics:        metrics,
		MetricsHandler: observability.Handler(reg),
	}, logger)

	logger.Info("newsblend starting",
		"version", config.Version,
		"port", cfg.Server.Port,
		"store", store.Name(),
		"sources", len(scr.Sources()),
		"scheduler", cfg.Scheduler.Enabled,
	)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("received signal, shutting down...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// runScrape executes a single scrape pass.
func runScrape(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := setupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scr := scraper.New(&cfg.Scraper, logger)
	defer scr.Close()

	if dryRun {
		return exportScrape(ctx, scr, logger)
	}

	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	start := time.Now()
	result, err := scheduler.New(&cfg.Scheduler, scr, store, logger).ScrapeNow(ctx)
	if err != nil {
		return fmt.Errorf("scrape: %w", err)
	}

	fmt.Printf("\n✅ Scrape complete in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("   Scraped:    %d\n", result.Scraped)
	fmt.Printf("   Inserted:   %d\n", result.Inserted)
	fmt.Printf("   Duplicates: %d\n", result.Duplicates)
	fmt.Printf("   Failed:     %d\n", result.Failed)
	fmt.Printf("   Store:      %s\n", store.Name())
	return nil
}

// exportScrape scrapes every source and writes the items to the output
// file or stdout.
func exportScrape(ctx context.Context, scr *scraper.Scraper, logger *slog.Logger) error {
	w := os.Stdout
	if output != "" {
		if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	exp, err := storage.NewExporter(format, w, logger)
	if err != nil {
		return err
	}
	items := scr.ScrapeAll(ctx)
	if err := exp.Export(items); err != nil {
		return err
	}
	if output != "" {
		logger.Info("items exported", "path", output, "format", exp.Name(), "items", len(items))
	}
	return nil
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("newsblend %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			fmt.Printf("Server:\n")
			fmt.Printf("  Port:              %d\n", cfg.Server.Port)
			fmt.Printf("  CORS Origin:       %s\n", cfg.Server.CORSOrigin)
			fmt.Printf("\nWordPress:\n")
			fmt.Printf("  Base URL:          %s\n", cfg.WordPress.BaseURL)
			fmt.Printf("  Cache TTL:         %s\n", cfg.WordPress.CacheTTL)
			fmt.Printf("\nStore:\n")
			if cfg.Mongo.URI != "" {
				fmt.Printf("  Backend:           mongodb\n")
				fmt.Printf("  Database:          %s\n", cfg.Mongo.Database)
				fmt.Printf("  Collection:        %s\n", cfg.Mongo.Collection)
			} else {
				fmt.Printf("  Backend:           memory\n")
			}
			fmt.Printf("\nScraper:\n")
			fmt.Printf("  Rate:              %.1f req/s\n", cfg.Scraper.RatePerSecond)
			for _, src := range cfg.Scraper.Sources {
				fmt.Printf("  Source:            %s (%s) %s\n", src.Name, src.Fetcher, src.URL)
			}
			fmt.Printf("\nScheduler:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Scheduler.Enabled)
			fmt.Printf("  Schedule:          %s\n", cfg.Scheduler.Cron)
			fmt.Printf("  Scrape Key:        %v\n", cfg.Scheduler.ScrapeKey != "")
			fmt.Printf("\nMetrics:\n")
			fmt.Printf("  Enabled:           %v\n", cfg.Metrics.Enabled)
			fmt.Printf("  Path:              %s\n", cfg.Metrics.Path)
			return nil
		},
	}
}

// setupLogger creates a structured logger from the logging config. The
// verbose flag forces debug level.
func setupLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Logging.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Logging.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}
