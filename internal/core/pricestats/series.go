package pricestats

import (
	"time"

	"github.com/shopspring/decimal"
)

// Point is one recorded price at one instant.
type Point struct {
	At    time.Time
	Price decimal.Decimal
}

// Series holds the recorded prices of one item in log order.
// Zero prices are the "unavailable" sentinel and never take part in minimums.
type Series []Point

// Reduce folds every positive price at or after since through the named operator.
// ok is false when no price qualified.
func (s Series) Reduce(op string, since time.Time) (value decimal.Decimal, ok bool) {
	agg, found := Operators[op]
	if !found {
		return decimal.Zero, false
	}
	for _, p := range s {
		if !p.Price.IsPositive() || p.At.Before(since) {
			continue
		}
		if !ok {
			value = agg.Initial(p.Price)
			ok = true
			continue
		}
		value = agg.Apply(value, p.Price)
	}
	return value, ok
}

// AllTimeMin returns the lowest positive price ever recorded, or zero.
func (s Series) AllTimeMin() decimal.Decimal {
	v, _ := s.Reduce(OpMin, time.Time{})
	return v
}

// MinSince returns the lowest positive price recorded at or after since.
func (s Series) MinSince(since time.Time) (decimal.Decimal, bool) {
	return s.Reduce(OpMin, since)
}

// LastKnown returns the most recent positive price. Later points win ties on time.
func (s Series) LastKnown() (decimal.Decimal, bool) {
	var (
		last  Point
		found bool
	)
	for _, p := range s {
		if !p.Price.IsPositive() {
			continue
		}
		if !found || !p.At.Before(last.At) {
			last = p
			found = true
		}
	}
	return last.Price, found
}
