package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aevon-lab/pricewatch/internal/core/classify"
	corecfg "github.com/aevon-lab/pricewatch/internal/core/config"
	"github.com/aevon-lab/pricewatch/internal/core/storage"
	"github.com/aevon-lab/pricewatch/internal/core/storage/csvlog"
	"github.com/aevon-lab/pricewatch/internal/core/storage/postgres"
	"github.com/aevon-lab/pricewatch/internal/crawl"
	"github.com/aevon-lab/pricewatch/internal/fetcher/httpfetch"
	"github.com/aevon-lab/pricewatch/internal/fetcher/rodfetch"
	"github.com/aevon-lab/pricewatch/internal/migrations"
	"github.com/aevon-lab/pricewatch/internal/notify"
	"github.com/aevon-lab/pricewatch/internal/projection"
	"github.com/aevon-lab/pricewatch/internal/server"
	"github.com/aevon-lab/pricewatch/internal/traversal"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "pricewatch.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single crawl and exit")
	flag.Parse()

	// 0. Initialize Logger
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := run(*configPath, *once); err != nil {
		slog.Error("Exiting with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete")
}

func run(configPath string, once bool) error {
	// 1. Load Configuration
	cfg, err := corecfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Log.Level)})))
	slog.Info("Loaded config",
		"store", cfg.Store.Type,
		"fetcher", cfg.Crawl.Fetcher,
		"sources", len(cfg.Catalog),
		"interval", cfg.Crawl.Interval,
		"telegram", cfg.Notifier.Telegram.Enabled(),
	)
	for _, src := range cfg.Catalog {
		slog.Debug("Catalog source", "name", src.Name, "url", src.URL, "fingerprint", src.Fingerprint)
	}

	// 2. Initialize History Store
	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Initialize Page Fetcher
	var fetcher traversal.PageFetcher
	switch cfg.Crawl.Fetcher {
	case "http":
		fetcher = httpfetch.New(httpfetch.Config{
			UserAgent:      cfg.Browser.UserAgent,
			RequestTimeout: cfg.Crawl.FetchTimeout,
		})
	default:
		browser := rodfetch.New(rodfetch.Config{
			RemoteURL:      cfg.Browser.RemoteURL,
			Headless:       cfg.Browser.Headless,
			UserAgent:      cfg.Browser.UserAgent,
			ViewportWidth:  cfg.Browser.ViewportWidth,
			ViewportHeight: cfg.Browser.ViewportHeight,
			SettleDelay:    cfg.Browser.SettleDelay,
			BlockResources: cfg.Browser.BlockResources,
		})
		defer func() {
			if err := browser.Close(); err != nil {
				slog.Warn("Failed to close browser", "error", err)
			}
		}()
		fetcher = browser
	}

	controller := traversal.NewController(fetcher, traversal.Options{
		FetchTimeout:   cfg.Crawl.FetchTimeout,
		ListingTimeout: cfg.Crawl.ListingTimeout,
		MaxScrollSteps: cfg.Crawl.MaxScrollSteps,
		MaxPages:       cfg.Crawl.MaxPages,
	})

	// 4. Initialize Notifiers
	notifiers := notify.Multi{notify.Log{}}
	if cfg.Notifier.Telegram.Enabled() {
		tg, err := notify.NewTelegram(notify.TelegramConfig{
			Token:        cfg.Notifier.Telegram.Token,
			ChatID:       cfg.Notifier.Telegram.ChatID,
			DashboardURL: cfg.Notifier.Telegram.DashboardURL,
		})
		if err != nil {
			return fmt.Errorf("init telegram notifier: %w", err)
		}
		notifiers = append(notifiers, tg)
	} else {
		slog.Info("Telegram notifier disabled, alerts go to the log only")
	}

	// 5. Initialize Crawl Runner
	monthWindow := cfg.Crawl.MonthWindowSpec()
	runner := crawl.NewRunner(cfg.Catalog, controller, store, notifiers, crawl.Options{
		SourceDelayMin: cfg.Crawl.SourceDelayMin,
		SourceDelayMax: cfg.Crawl.SourceDelayMax,
		Classify: classify.Options{
			MonthWindow: monthWindow,
			AlertOnRise: cfg.Notifier.AlertOnRise,
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		report, err := runner.Run(ctx)
		if err != nil {
			return err
		}
		slog.Info("Single run complete",
			"run_id", report.RunID,
			"observations", report.Observations,
			"failed_sources", report.FailedSources(),
			"alerts_sent", report.AlertsSent,
		)
		return nil
	}

	// 6. Start Services
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return crawl.NewScheduler(cfg.Crawl.Interval, runner).Start(gctx)
	})

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Addr(), store, cfg.Server.Mode)
		projection.NewService(store, monthWindow).RegisterRoutes(srv.Engine)
		g.Go(func() error {
			return srv.Run(gctx)
		})
	} else {
		slog.Info("HTTP server disabled by config")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// openStore returns the configured history store and a func releasing it.
func openStore(cfg *corecfg.Config) (storage.HistoryStore, func(), error) {
	if cfg.Store.Type != "postgres" {
		slog.Info("Using CSV history log", "path", cfg.Store.CSVPath)
		return csvlog.New(cfg.Store.CSVPath), func() {}, nil
	}

	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize database: %w", err)
	}

	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("run database migrations: %w", err)
	}

	adapter, err := postgres.NewAdapter(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return adapter, func() {
		if err := adapter.Close(); err != nil {
			slog.Warn("Failed to close database", "error", err)
		}
	}, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
