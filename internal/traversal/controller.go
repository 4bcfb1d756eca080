// Package traversal enumerates every listing of one catalog source, scrolling each page
// until its content stops growing and following pagination until it runs out.
package traversal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/catalog"
)

var (
	// ErrFetchTimeout is returned when one fetcher call exceeds its deadline.
	ErrFetchTimeout = errors.New("fetch timed out")

	// ErrNoListings is returned by PageFetcher.WaitForListings when the page holds no listing cards.
	ErrNoListings = errors.New("no listings on page")
)

// State is a traversal state.
type State string

const (
	StateStart       State = "start"
	StateLoading     State = "loading"
	StateStabilizing State = "stabilizing"
	StateNextPage    State = "next_page"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// PageFetcher is the page session a traversal drives. One fetcher is one session;
// callers never use it from two traversals at once.
type PageFetcher interface {
	// Navigate opens the first page of the source.
	Navigate(ctx context.Context, src catalog.Source) error

	// WaitForListings blocks until listing cards are present. Returns ErrNoListings
	// when the page rendered without any.
	WaitForListings(ctx context.Context) error

	// ContentSize is the probe compared between scroll steps.
	ContentSize(ctx context.Context) (int64, error)

	// Extend asks the page for more content (one scroll step) and waits for it to settle.
	Extend(ctx context.Context) error

	// Listings extracts every card currently on the page.
	Listings(ctx context.Context) ([]v1.RawListing, error)

	// NextPage activates the next-page control. Returns false when there is none
	// or it cannot be interacted with.
	NextPage(ctx context.Context) (bool, error)
}

// Options bound a traversal.
type Options struct {
	FetchTimeout   time.Duration
	ListingTimeout time.Duration
	MaxScrollSteps int
	MaxPages       int
}

// DefaultOptions returns the bounds used when none are configured.
func DefaultOptions() Options {
	return Options{
		FetchTimeout:   30 * time.Second,
		ListingTimeout: 15 * time.Second,
		MaxScrollSteps: 20,
		MaxPages:       50,
	}
}

// Result is everything one traversal discovered. A failed traversal keeps the listings
// collected before the failure.
type Result struct {
	Source   string
	State    State
	Listings []v1.RawListing
	Pages    int
	Err      error
}

// Controller drives a PageFetcher through the traversal state machine.
type Controller struct {
	fetcher PageFetcher
	opts    Options
}

// NewController creates a controller. Zero option fields fall back to DefaultOptions.
func NewController(fetcher PageFetcher, opts Options) *Controller {
	d := DefaultOptions()
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = d.FetchTimeout
	}
	if opts.ListingTimeout <= 0 {
		opts.ListingTimeout = d.ListingTimeout
	}
	if opts.MaxScrollSteps <= 0 {
		opts.MaxScrollSteps = d.MaxScrollSteps
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = d.MaxPages
	}
	return &Controller{fetcher: fetcher, opts: opts}
}

// Traverse enumerates src. It always terminates: scrolling is bounded by MaxScrollSteps,
// pagination by MaxPages, and a page that adds nothing new ends the traversal.
func (c *Controller) Traverse(ctx context.Context, src catalog.Source) Result {
	res := Result{Source: src.Name, State: StateStart}
	seen := make(map[string]struct{})
	page := 1
	state := StateLoading

	fail := func(err error) Result {
		res.State = StateFailed
		res.Err = err
		slog.Warn("[Traversal] Source failed",
			"source", src.Name,
			"page", page,
			"listings", len(res.Listings),
			"error", err)
		return res
	}
	done := func(reason string) Result {
		res.State = StateDone
		slog.Info("[Traversal] Source exhausted",
			"source", src.Name,
			"pages", res.Pages,
			"listings", len(res.Listings),
			"reason", reason)
		return res
	}

	for {
		res.State = state
		switch state {
		case StateLoading:
			if page == 1 {
				if err := c.call(ctx, c.opts.FetchTimeout, "navigate", func(ctx context.Context) error {
					return c.fetcher.Navigate(ctx, src)
				}); err != nil {
					return fail(err)
				}
			}
			err := c.call(ctx, c.opts.ListingTimeout, "wait for listings", c.fetcher.WaitForListings)
			if errors.Is(err, ErrNoListings) {
				return done("no listings")
			}
			if err != nil {
				return fail(err)
			}
			res.Pages = page
			state = StateStabilizing

		case StateStabilizing:
			if err := c.stabilize(ctx); err != nil {
				return fail(err)
			}
			var listings []v1.RawListing
			if err := c.call(ctx, c.opts.FetchTimeout, "extract listings", func(ctx context.Context) error {
				var err error
				listings, err = c.fetcher.Listings(ctx)
				return err
			}); err != nil {
				return fail(err)
			}

			added := 0
			for _, l := range listings {
				key := l.Key()
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				res.Listings = append(res.Listings, l)
				added++
			}
			slog.Debug("[Traversal] Page extracted",
				"source", src.Name,
				"page", page,
				"found", len(listings),
				"added", added)

			if added == 0 {
				return done("page added no new listings")
			}
			if page >= c.opts.MaxPages {
				return done("max pages reached")
			}
			state = StateNextPage

		case StateNextPage:
			var advanced bool
			if err := c.call(ctx, c.opts.FetchTimeout, "next page", func(ctx context.Context) error {
				var err error
				advanced, err = c.fetcher.NextPage(ctx)
				return err
			}); err != nil {
				return fail(err)
			}
			if !advanced {
				return done("no next page")
			}
			page++
			state = StateLoading

		default:
			return fail(fmt.Errorf("unexpected traversal state %q", state))
		}
	}
}

// stabilize extends the page until two consecutive size probes agree or the step
// budget runs out.
func (c *Controller) stabilize(ctx context.Context) error {
	prev, err := c.probe(ctx)
	if err != nil {
		return err
	}
	for step := 0; step < c.opts.MaxScrollSteps; step++ {
		if err := c.call(ctx, c.opts.FetchTimeout, "extend", c.fetcher.Extend); err != nil {
			return err
		}
		cur, err := c.probe(ctx)
		if err != nil {
			return err
		}
		if cur == prev {
			return nil
		}
		prev = cur
	}
	slog.Debug("[Traversal] Scroll budget exhausted before content settled", "steps", c.opts.MaxScrollSteps)
	return nil
}

func (c *Controller) probe(ctx context.Context) (int64, error) {
	var size int64
	err := c.call(ctx, c.opts.FetchTimeout, "content size", func(ctx context.Context) error {
		var err error
		size, err = c.fetcher.ContentSize(ctx)
		return err
	})
	return size, err
}

// call runs one fetcher operation under its own deadline. A deadline hit becomes
// ErrFetchTimeout; cancellation of the parent context is passed through.
func (c *Controller) call(ctx context.Context, timeout time.Duration, op string, fn func(context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(callCtx)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s: %v", ErrFetchTimeout, op, timeout, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
