// Package httpfetch is a PageFetcher for catalogs that render server-side: every page
// is one GET and pagination follows the next-page link.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/PuerkitoBio/goquery"
	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/catalog"
	"github.com/aevon-lab/pricewatch/internal/fetcher/extract"
	"github.com/aevon-lab/pricewatch/internal/traversal"
)

const (
	defaultRequestTimeout = 30 * time.Second
	maxBodyBytes          = 10 << 20
)

// Config configures the HTTP fetcher.
type Config struct {
	UserAgent      string
	RequestTimeout time.Duration

	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Fetcher holds the current page of one traversal. Not safe for concurrent use.
type Fetcher struct {
	client    *http.Client
	userAgent string

	src     catalog.Source
	pageURL *url.URL
	doc     *goquery.Document
	size    int64
}

// New creates an HTTP fetcher.
func New(cfg Config) *Fetcher {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Fetcher{client: client, userAgent: cfg.UserAgent}
}

func (f *Fetcher) Navigate(ctx context.Context, src catalog.Source) error {
	f.src = src
	f.doc = nil
	u, err := url.Parse(src.URL)
	if err != nil {
		return fmt.Errorf("parse source url: %w", err)
	}
	return f.load(ctx, u)
}

func (f *Fetcher) WaitForListings(_ context.Context) error {
	if f.doc == nil {
		return fmt.Errorf("no page loaded")
	}
	if extract.Count(f.doc, f.src.Selectors) == 0 {
		return traversal.ErrNoListings
	}
	return nil
}

// ContentSize is the byte length of the page. Static pages never grow, so one extend
// step always stabilizes.
func (f *Fetcher) ContentSize(_ context.Context) (int64, error) {
	return f.size, nil
}

// Extend is a no-op: a static page has nothing more to load.
func (f *Fetcher) Extend(ctx context.Context) error {
	return ctx.Err()
}

func (f *Fetcher) Listings(_ context.Context) ([]v1.RawListing, error) {
	if f.doc == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	return extract.Listings(f.doc, f.src.Selectors), nil
}

func (f *Fetcher) NextPage(ctx context.Context) (bool, error) {
	if f.doc == nil {
		return false, nil
	}
	href, ok := extract.NextPageHref(f.doc, f.src.Selectors)
	if !ok {
		return false, nil
	}
	ref, err := url.Parse(href)
	if err != nil {
		slog.Warn("[HTTPFetcher] Ignoring unparseable next-page link", "source", f.src.Name, "href", href)
		return false, nil
	}
	next := f.pageURL.ResolveReference(ref)
	next.Fragment = ""
	if next.String() == f.pageURL.String() {
		return false, nil
	}
	if err := f.load(ctx, next); err != nil {
		return false, err
	}
	return true, nil
}

func (f *Fetcher) load(ctx context.Context, u *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", u, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", u, err)
	}
	doc, err := extract.Parse(body)
	if err != nil {
		return err
	}

	f.pageURL = u
	f.doc = doc
	f.size = int64(len(body))
	slog.Debug("[HTTPFetcher] Page loaded", "source", f.src.Name, "url", u.String(), "bytes", len(body))
	return nil
}
