package projection

import (
	"sort"
	"time"

	"github.com/aevon-lab/pricewatch/internal/core/pricestats"
	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// convertToPoints lists every recorded price in time order, unavailable prices included.
func convertToPoints(series pricestats.Series) []PricePoint {
	points := make([]PricePoint, 0, len(series))
	for _, p := range series {
		points = append(points, PricePoint{ObservedAt: p.At, Price: p.Price})
	}
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].ObservedAt.Before(points[j].ObservedAt)
	})
	return points
}

// rollupToDay groups recorded prices into daily buckets from the first to the last
// observed day, folding each bucket through the operator.
// Unavailable prices are skipped; a day without a usable price has a zero value.
func rollupToDay(series pricestats.Series, operator string) []AggregateValue {
	if len(series) == 0 {
		return nil
	}
	agg := pricestats.Operators[operator]

	// Timestamps are UTC, so truncating to 24h lands on midnight.
	dailyBuckets := make(map[time.Time][]pricestats.Point)
	first, last := series[0].At, series[0].At
	for _, p := range series {
		dayStart := pricestats.BucketFor(p.At, day)
		dailyBuckets[dayStart] = append(dailyBuckets[dayStart], p)
		if p.At.Before(first) {
			first = p.At
		}
		if p.At.After(last) {
			last = p.At
		}
	}

	var results []AggregateValue
	currentDay := pricestats.BucketFor(first, day)
	endDayExclusive := pricestats.BucketFor(last, day).Add(day)

	for currentDay.Before(endDayExclusive) {
		value := decimal.Zero
		count := int64(0)
		initialized := false

		for _, p := range dailyBuckets[currentDay] {
			if !p.Price.IsPositive() {
				continue
			}
			if !initialized {
				value = agg.Initial(p.Price)
				initialized = true
			} else {
				value = agg.Apply(value, p.Price)
			}
			count++
		}

		results = append(results, AggregateValue{
			WindowStart:      currentDay,
			WindowEnd:        currentDay.Add(day),
			Value:            value,
			ObservationCount: count,
		})

		currentDay = currentDay.Add(day)
	}

	return results
}
