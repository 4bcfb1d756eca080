package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aevon-lab/pricewatch/internal/core/catalog"
	"github.com/aevon-lab/pricewatch/internal/core/pricestats"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "PRICEWATCH_"

// Config represents the top-level application config plus the resolved catalog sources.
type Config struct {
	Log      LogConfig      `koanf:"log"`
	Server   ServerConfig   `koanf:"server"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Crawl    CrawlConfig    `koanf:"crawl"`
	Browser  BrowserConfig  `koanf:"browser"`
	Notifier NotifierConfig `koanf:"notifier"`

	// Sources is the inline catalog list of the config file.
	Sources []catalog.Source `koanf:"sources"`

	// Catalog is populated by Load: inline sources followed by crawl.catalog_dir files.
	Catalog []catalog.Source `koanf:"-"`
}

type LogConfig struct {
	Level string `koanf:"level"` // debug | info | warn | error
}

type ServerConfig struct {
	Enabled bool   `koanf:"enabled"`
	Port    int    `koanf:"port"`
	Host    string `koanf:"host"`
	Mode    string `koanf:"mode"` // debug | release
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StoreConfig struct {
	Type    string `koanf:"type"` // csv | postgres
	CSVPath string `koanf:"csv_path"`
}

type DatabaseConfig struct {
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

type CrawlConfig struct {
	Interval       time.Duration `koanf:"interval"`
	CatalogDir     string        `koanf:"catalog_dir"`
	RequireSources bool          `koanf:"require_sources"`
	Fetcher        string        `koanf:"fetcher"` // rod | http
	SourceDelayMin time.Duration `koanf:"source_delay_min"`
	SourceDelayMax time.Duration `koanf:"source_delay_max"`
	FetchTimeout   time.Duration `koanf:"fetch_timeout"`
	ListingTimeout time.Duration `koanf:"listing_timeout"`
	MaxScrollSteps int           `koanf:"max_scroll_steps"`
	MaxPages       int           `koanf:"max_pages"`
	MonthWindow    string        `koanf:"month_window"` // parsed and validated on startup
}

// MonthWindowSpec returns the parsed crawl.month_window. Validate guarantees it parses.
func (c CrawlConfig) MonthWindowSpec() pricestats.WindowSpec {
	w, err := pricestats.ParseWindowSize(c.MonthWindow)
	if err != nil {
		return pricestats.WindowSpec{Size: 30 * 24 * time.Hour}
	}
	return w
}

type BrowserConfig struct {
	RemoteURL      string        `koanf:"remote_url"`
	Headless       bool          `koanf:"headless"`
	UserAgent      string        `koanf:"user_agent"`
	ViewportWidth  int           `koanf:"viewport_width"`
	ViewportHeight int           `koanf:"viewport_height"`
	SettleDelay    time.Duration `koanf:"settle_delay"`
	BlockResources []string      `koanf:"block_resources"` // images | fonts | media | stylesheets
}

type NotifierConfig struct {
	AlertOnRise bool           `koanf:"alert_on_rise"`
	Telegram    TelegramConfig `koanf:"telegram"`
}

type TelegramConfig struct {
	Token        string `koanf:"token"`
	ChatID       string `koanf:"chat_id"`
	DashboardURL string `koanf:"dashboard_url"`
}

// Enabled reports whether Telegram delivery is configured.
func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != ""
}

func (c *Config) Validate() error {
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log.level %q (must be debug, info, warn or error)", c.Log.Level)
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			return fmt.Errorf("invalid server.port %d (must be 1-65535)", c.Server.Port)
		}
		if strings.TrimSpace(c.Server.Host) == "" {
			return fmt.Errorf("server.host is required")
		}
		if c.Server.Mode != "debug" && c.Server.Mode != "release" {
			return fmt.Errorf("invalid server.mode %q (must be debug or release)", c.Server.Mode)
		}
	}

	switch c.Store.Type {
	case "csv":
		if strings.TrimSpace(c.Store.CSVPath) == "" {
			return fmt.Errorf("store.csv_path is required for store.type csv")
		}
	case "postgres":
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("database.dsn is required for store.type postgres")
		}
		if c.Database.MaxOpenConns <= 0 {
			return fmt.Errorf("database.max_open_conns must be > 0")
		}
		if c.Database.MaxIdleConns <= 0 {
			return fmt.Errorf("database.max_idle_conns must be > 0")
		}
	default:
		return fmt.Errorf("unsupported store.type %q", c.Store.Type)
	}

	if c.Crawl.Interval <= 0 {
		return fmt.Errorf("crawl.interval must be > 0")
	}
	if c.Crawl.Fetcher != "rod" && c.Crawl.Fetcher != "http" {
		return fmt.Errorf("unsupported crawl.fetcher %q (must be rod or http)", c.Crawl.Fetcher)
	}
	if c.Crawl.SourceDelayMin < 0 || c.Crawl.SourceDelayMax < c.Crawl.SourceDelayMin {
		return fmt.Errorf("invalid crawl source delay [%s, %s]", c.Crawl.SourceDelayMin, c.Crawl.SourceDelayMax)
	}
	if c.Crawl.FetchTimeout <= 0 || c.Crawl.ListingTimeout <= 0 {
		return fmt.Errorf("crawl.fetch_timeout and crawl.listing_timeout must be > 0")
	}
	if c.Crawl.MaxScrollSteps <= 0 {
		return fmt.Errorf("crawl.max_scroll_steps must be > 0")
	}
	if c.Crawl.MaxPages <= 0 {
		return fmt.Errorf("crawl.max_pages must be > 0")
	}
	if _, err := pricestats.ParseWindowSize(c.Crawl.MonthWindow); err != nil {
		return fmt.Errorf("invalid crawl.month_window %q: %w", c.Crawl.MonthWindow, err)
	}

	if c.Browser.ViewportWidth <= 0 || c.Browser.ViewportHeight <= 0 {
		return fmt.Errorf("browser viewport must be positive, got %dx%d", c.Browser.ViewportWidth, c.Browser.ViewportHeight)
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must be >= 0")
	}

	tg := c.Notifier.Telegram
	if (tg.Token == "") != (tg.ChatID == "") {
		return fmt.Errorf("notifier.telegram.token and notifier.telegram.chat_id must be set together")
	}

	return nil
}

// Load parses config from file + env, validates it, then loads the catalog sources.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"log.level":                 "info",
		"server.enabled":            true,
		"server.port":               8080,
		"server.host":               "0.0.0.0",
		"server.mode":               "release",
		"store.type":                "csv",
		"store.csv_path":            "price_history.csv",
		"database.dsn":              "",
		"database.max_open_conns":   5,
		"database.max_idle_conns":   5,
		"database.auto_migrate":     true,
		"crawl.interval":            "24h",
		"crawl.catalog_dir":         "./config/catalogs",
		"crawl.require_sources":     true,
		"crawl.fetcher":             "rod",
		"crawl.source_delay_min":    "2s",
		"crawl.source_delay_max":    "5s",
		"crawl.fetch_timeout":       "30s",
		"crawl.listing_timeout":     "15s",
		"crawl.max_scroll_steps":    20,
		"crawl.max_pages":           50,
		"crawl.month_window":        "30d",
		"browser.remote_url":        "",
		"browser.headless":          true,
		"browser.user_agent":        "",
		"browser.viewport_width":    1920,
		"browser.viewport_height":   1080,
		"browser.settle_delay":      "1500ms",
		"browser.block_resources":   []string{"fonts", "media"},
		"notifier.alert_on_rise":    false,
		"notifier.telegram.token":   "",
		"notifier.telegram.chat_id": "",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// Deployments that predate the prefixed names export the bot settings bare.
	if v := os.Getenv("TELEGRAM_TOKEN"); v != "" && k.String("notifier.telegram.token") == "" {
		k.Set("notifier.telegram.token", v)
	}
	if v := os.Getenv("CHAT_ID"); v != "" && k.String("notifier.telegram.chat_id") == "" {
		k.Set("notifier.telegram.chat_id", v)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repo, err := catalog.NewStaticSourceRepository(cfg.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to load inline sources: %w", err)
	}
	if strings.TrimSpace(cfg.Crawl.CatalogDir) != "" {
		dirRepo, err := catalog.NewFileSystemSourceRepository(cfg.Crawl.CatalogDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load catalog sources: %w", err)
		}
		if err := repo.Merge(dirRepo); err != nil {
			return nil, fmt.Errorf("failed to load catalog sources: %w", err)
		}
	}
	cfg.Catalog = repo.Sources()
	if cfg.Crawl.RequireSources && len(cfg.Catalog) == 0 {
		return nil, fmt.Errorf("no catalog sources found inline or in %q", cfg.Crawl.CatalogDir)
	}

	return &cfg, nil
}
