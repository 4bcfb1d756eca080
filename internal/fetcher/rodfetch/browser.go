// Package rodfetch is a PageFetcher backed by headless Chrome through go-rod, for catalogs
// that render listings client-side and load more of them on scroll.
package rodfetch

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of an external Chrome.
	// Empty launches a local Chrome via launcher.
	RemoteURL string

	Headless       bool
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int

	// SettleDelay is how long Extend waits after each scroll step for lazy content.
	SettleDelay time.Duration

	// BlockResources lists resource types to drop (fonts, media, stylesheets, images).
	BlockResources []string
}

func (c *Config) defaults() {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = 1920
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = 1080
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = 1500 * time.Millisecond
	}
}

// session owns the Chrome process and the single tab every traversal shares.
type session struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	page    *rod.Page
}

func (s *session) open() (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.page != nil {
		return s.page, nil
	}

	var wsURL string
	if s.cfg.RemoteURL != "" {
		wsURL = s.cfg.RemoteURL
		slog.Info("[Browser] Connecting to remote chrome", "url", wsURL)
	} else {
		l := launcher.New().Headless(s.cfg.Headless)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		s.lnch = l
		slog.Info("[Browser] Launched local chrome", "url", wsURL, "headless", s.cfg.Headless)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		s.cleanupLocked()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	s.browser = b

	page, err := s.browser.Page(proto.TargetCreateTarget{URL: ""})
	if err != nil {
		s.cleanupLocked()
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.cfg.ViewportWidth,
		Height:            s.cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		slog.Warn("[Browser] Set viewport failed", "error", err)
	}
	if s.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: s.cfg.UserAgent}); err != nil {
			slog.Warn("[Browser] Set user agent failed", "error", err)
		}
	}
	if len(s.cfg.BlockResources) > 0 {
		applyResourceBlocking(page, s.cfg.BlockResources)
	}

	s.page = page
	return page, nil
}

func (s *session) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cleanupLocked()
}

func (s *session) cleanupLocked() error {
	var firstErr error
	if s.browser != nil {
		if err := s.browser.Close(); err != nil {
			firstErr = fmt.Errorf("browser: close: %w", err)
		}
		s.browser = nil
	}
	if s.lnch != nil {
		s.lnch.Kill()
		s.lnch = nil
	}
	s.page = nil
	return firstErr
}

// applyResourceBlocking drops requests for the configured resource types.
func applyResourceBlocking(page *rod.Page, types []string) {
	blockSet := make(map[string]bool, len(types))
	for _, t := range types {
		blockSet[strings.ToLower(t)] = true
	}

	router := page.HijackRequests()
	router.MustAdd("*", func(ctx *rod.Hijack) {
		if shouldBlock(blockSet, string(ctx.Request.Type())) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
			return
		}
		ctx.ContinueRequest(&proto.FetchContinueRequest{})
	})

	go router.Run()
}

func shouldBlock(blockSet map[string]bool, resType string) bool {
	lower := strings.ToLower(resType)

	switch lower {
	case "image":
		return blockSet["images"]
	case "font":
		return blockSet["fonts"]
	case "media":
		return blockSet["media"]
	case "stylesheet":
		return blockSet["stylesheets"]
	}

	return blockSet[lower]
}
