// Package notify delivers alert-worthy classifications to people.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aevon-lab/pricewatch/internal/core/classify"
	"golang.org/x/sync/errgroup"
)

// Alert is one decision handed to the alert path.
type Alert struct {
	RunID    string
	Decision classify.Decision
}

// Notifier delivers alerts. Delivery failures are reported to the caller, which
// logs them; they never fail a crawl run.
type Notifier interface {
	Deliver(ctx context.Context, alert Alert) error
}

// Log writes alerts to the structured log. It is the notifier used when no
// transport is configured.
type Log struct{}

func (Log) Deliver(_ context.Context, alert Alert) error {
	d := alert.Decision
	slog.Info("[Notifier] Alert",
		"run_id", alert.RunID,
		"kind", d.Kind,
		"source", d.Observation.Source,
		"identifier", d.Observation.Identifier,
		"name", d.Observation.Name,
		"price", d.Observation.Price.String(),
		"previous_price", d.PreviousPrice.String(),
		"savings", d.Savings().String(),
		"link", d.Observation.Link)
	return nil
}

// Multi fans one alert out to every notifier concurrently.
type Multi []Notifier

func (m Multi) Deliver(ctx context.Context, alert Alert) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for i, n := range m {
		g.Go(func() error {
			if err := n.Deliver(ctx, alert); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("notifier %d: %w", i, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}
