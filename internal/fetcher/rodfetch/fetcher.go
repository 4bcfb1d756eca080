package rodfetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/catalog"
	"github.com/aevon-lab/pricewatch/internal/fetcher/extract"
	"github.com/aevon-lab/pricewatch/internal/traversal"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

const readyProbeTimeout = 2 * time.Second

// Fetcher drives one Chrome tab. Chrome is started on the first Navigate and reused
// for every source until Close.
type Fetcher struct {
	cfg     Config
	session *session
	page    *rod.Page
	src     catalog.Source
}

// New creates a browser fetcher. No browser is started until the first Navigate.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	return &Fetcher{cfg: cfg, session: &session{cfg: cfg}}
}

// Close shuts Chrome down.
func (f *Fetcher) Close() error {
	f.page = nil
	return f.session.close()
}

func (f *Fetcher) Navigate(ctx context.Context, src catalog.Source) error {
	page, err := f.session.open()
	if err != nil {
		return err
	}
	f.page = page
	f.src = src

	p := page.Context(ctx)
	if err := p.Navigate(src.URL); err != nil {
		return fmt.Errorf("navigate %s: %w", src.URL, err)
	}
	if err := p.WaitLoad(); err != nil {
		slog.Warn("[Browser] Wait load failed", "url", src.URL, "error", err)
	}
	return nil
}

// WaitForListings waits for the first card. A page that finished loading without
// any card before the deadline is an empty catalog, not a failure.
func (f *Fetcher) WaitForListings(ctx context.Context) error {
	if f.page == nil {
		return fmt.Errorf("no page open")
	}
	_, err := f.page.Context(ctx).Element(f.src.Selectors.Item)
	if err == nil {
		return nil
	}
	if ctx.Err() == nil {
		return fmt.Errorf("wait for %q: %w", f.src.Selectors.Item, err)
	}

	res, evalErr := f.page.Timeout(readyProbeTimeout).Eval(`() => document.readyState`)
	if evalErr == nil && res.Value.Str() == "complete" {
		return traversal.ErrNoListings
	}
	return err
}

func (f *Fetcher) ContentSize(ctx context.Context) (int64, error) {
	if f.page == nil {
		return 0, fmt.Errorf("no page open")
	}
	res, err := f.page.Context(ctx).Eval(`() => document.body ? document.body.scrollHeight : 0`)
	if err != nil {
		return 0, fmt.Errorf("content size: %w", err)
	}
	return int64(res.Value.Int()), nil
}

// Extend scrolls to the bottom and waits SettleDelay for lazy content to arrive.
func (f *Fetcher) Extend(ctx context.Context) error {
	if f.page == nil {
		return fmt.Errorf("no page open")
	}
	if _, err := f.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return sleep(ctx, f.cfg.SettleDelay)
}

func (f *Fetcher) Listings(ctx context.Context) ([]v1.RawListing, error) {
	if f.page == nil {
		return nil, fmt.Errorf("no page open")
	}
	html, err := f.page.Context(ctx).HTML()
	if err != nil {
		return nil, fmt.Errorf("read dom: %w", err)
	}
	doc, err := extract.Parse([]byte(html))
	if err != nil {
		return nil, err
	}
	return extract.Listings(doc, f.src.Selectors), nil
}

// NextPage clicks the next-page control when it is present, visible and enabled.
func (f *Fetcher) NextPage(ctx context.Context) (bool, error) {
	if f.page == nil || f.src.Selectors.NextPage == "" {
		return false, nil
	}
	p := f.page.Context(ctx)

	has, el, err := p.Has(f.src.Selectors.NextPage)
	if err != nil {
		return false, fmt.Errorf("find next page control: %w", err)
	}
	if !has {
		return false, nil
	}
	if !interactable(el) {
		slog.Debug("[Browser] Next page control not interactable", "source", f.src.Name)
		return false, nil
	}

	navigates := false
	if href, err := el.Attribute("href"); err == nil && href != nil {
		h := strings.TrimSpace(*href)
		navigates = h != "" && !strings.HasPrefix(h, "#") && !strings.HasPrefix(strings.ToLower(h), "javascript:")
	}

	if navigates {
		wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false, fmt.Errorf("click next page: %w", err)
		}
		wait()
	} else {
		if err := el.Context(ctx).Click(proto.InputMouseButtonLeft, 1); err != nil {
			return false, fmt.Errorf("click next page: %w", err)
		}
		if err := sleep(ctx, f.cfg.SettleDelay); err != nil {
			return false, err
		}
	}
	return true, ctx.Err()
}

func interactable(el *rod.Element) bool {
	if v, err := el.Attribute("disabled"); err == nil && v != nil {
		return false
	}
	if v, err := el.Attribute("aria-disabled"); err == nil && v != nil && *v == "true" {
		return false
	}
	if v, err := el.Attribute("class"); err == nil && v != nil {
		for _, c := range strings.Fields(*v) {
			if c == "disabled" {
				return false
			}
		}
	}
	visible, err := el.Visible()
	return err == nil && visible
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
