// Package classify decides, per fresh observation, what kind of price change occurred
// relative to the observation history.
package classify

import (
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/pricestats"
	"github.com/aevon-lab/pricewatch/internal/projection"
	"github.com/shopspring/decimal"
)

// Kind is the outcome of classifying one observation.
type Kind string

const (
	KindFirstRunSeen Kind = "FIRST_RUN_SEEN"
	KindNew          Kind = "NEW"
	KindAllTimeLow   Kind = "ALL_TIME_LOW"
	KindMonthLow     Kind = "MONTH_LOW"
	KindPriceDrop    Kind = "PRICE_DROP"
	KindPriceRise    Kind = "PRICE_RISE"
	KindUnchanged    Kind = "UNCHANGED"
)

// Kinds lists every kind in priority order.
var Kinds = []Kind{
	KindFirstRunSeen,
	KindNew,
	KindAllTimeLow,
	KindMonthLow,
	KindPriceDrop,
	KindPriceRise,
	KindUnchanged,
}

// Alerts reports whether the kind is alert-worthy by default.
// PRICE_RISE is opt-in through Options.AlertOnRise.
func (k Kind) Alerts() bool {
	switch k {
	case KindNew, KindAllTimeLow, KindMonthLow, KindPriceDrop:
		return true
	default:
		return false
	}
}

// Decision is a classified observation together with the reference prices it was
// compared against. Reference prices are zero when there was nothing to compare.
type Decision struct {
	Kind          Kind
	Observation   v1.Observation
	PreviousPrice decimal.Decimal
	AllTimeMin    decimal.Decimal
	MonthMin      decimal.Decimal
	Alert         bool
}

// Savings is the drop from the previous price, zero when the price did not drop.
func (d Decision) Savings() decimal.Decimal {
	if !d.PreviousPrice.IsPositive() || !d.Observation.Price.LessThan(d.PreviousPrice) {
		return decimal.Zero
	}
	return d.PreviousPrice.Sub(d.Observation.Price)
}

// Options tune which decisions alert.
type Options struct {
	MonthWindow pricestats.WindowSpec
	AlertOnRise bool
}

// Classifier compares fresh observations against one run's history.
// It is not safe for concurrent use; a run classifies sequentially.
type Classifier struct {
	history  *projection.History
	firstRun bool
	opts     Options
}

// New creates a classifier over history. Whether this is the first run ever is
// decided here, from the history as loaded, and never changes afterwards.
func New(history *projection.History, opts Options) *Classifier {
	if opts.MonthWindow.Size <= 0 {
		opts.MonthWindow = pricestats.WindowSpec{Size: 30 * 24 * time.Hour}
	}
	return &Classifier{
		history:  history,
		firstRun: history.Empty(),
		opts:     opts,
	}
}

// FirstRun reports whether the history was empty when the classifier was created.
func (c *Classifier) FirstRun() bool {
	return c.firstRun
}

// Classify produces exactly one decision for obs, then folds obs into the history so a
// repeat of the same identifier later in the run compares against it.
func (c *Classifier) Classify(obs v1.Observation) Decision {
	d := c.decide(obs)
	// Nothing alerts during the first run, not even a repeat that lowers its own price.
	d.Alert = !c.firstRun && (d.Kind.Alerts() || (d.Kind == KindPriceRise && c.opts.AlertOnRise))
	c.history.Observe(obs)
	return d
}

func (c *Classifier) decide(obs v1.Observation) Decision {
	d := Decision{Kind: KindUnchanged, Observation: obs}

	if obs.PriceUnknown || !obs.Price.IsPositive() {
		return d
	}

	if !c.history.Known(obs.Identifier) {
		if c.firstRun {
			d.Kind = KindFirstRunSeen
		} else {
			d.Kind = KindNew
		}
		return d
	}

	series := c.history.Series(obs.Identifier)
	d.AllTimeMin = series.AllTimeMin()
	monthMin, ok := series.MinSince(c.opts.MonthWindow.Since(obs.ObservedAt))
	if !ok {
		monthMin = obs.Price
	}
	d.MonthMin = monthMin
	last, hasLast := series.LastKnown()
	if hasLast {
		d.PreviousPrice = last
	}

	switch {
	case d.AllTimeMin.IsPositive() && obs.Price.LessThan(d.AllTimeMin):
		d.Kind = KindAllTimeLow
	case obs.Price.LessThan(monthMin):
		d.Kind = KindMonthLow
	case hasLast && obs.Price.LessThan(last):
		d.Kind = KindPriceDrop
	case hasLast && obs.Price.GreaterThan(last):
		d.Kind = KindPriceRise
	}
	return d
}
