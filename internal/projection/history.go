package projection

import (
	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/pricestats"
)

// History is the in-memory view of the observation log: the latest observation per
// identifier, the set of identifiers ever seen and each identifier's price series.
// It is rebuilt from the full log at the start of every run and never shared across runs.
type History struct {
	latest map[string]v1.Observation
	series map[string]pricestats.Series
	order  []string
	empty  bool
}

// Build derives the history from log rows in log order.
// Rows without an identifier cannot be keyed and are dropped.
func Build(rows []v1.Observation) *History {
	h := &History{
		latest: make(map[string]v1.Observation),
		series: make(map[string]pricestats.Series),
	}
	for _, obs := range rows {
		if obs.Identifier == "" {
			continue
		}
		h.Observe(obs)
	}
	h.empty = len(h.latest) == 0
	return h
}

// Observe folds one observation into the view. The projection keeps the row with the
// latest timestamp; on equal timestamps the later call wins.
func (h *History) Observe(obs v1.Observation) {
	cur, seen := h.latest[obs.Identifier]
	if !seen {
		h.order = append(h.order, obs.Identifier)
	}
	if !seen || !obs.ObservedAt.Before(cur.ObservedAt) {
		h.latest[obs.Identifier] = obs
	}
	h.series[obs.Identifier] = append(h.series[obs.Identifier], pricestats.Point{
		At:    obs.ObservedAt,
		Price: obs.Price,
	})
}

// Empty reports whether the log held no keyed rows when the history was built.
// Observations folded in later do not change it.
func (h *History) Empty() bool {
	return h.empty
}

// Known reports whether the identifier has ever been observed.
func (h *History) Known(identifier string) bool {
	_, ok := h.latest[identifier]
	return ok
}

// Latest returns the most recent observation of an identifier.
func (h *History) Latest(identifier string) (v1.Observation, bool) {
	obs, ok := h.latest[identifier]
	return obs, ok
}

// Series returns the recorded prices of an identifier in log order.
func (h *History) Series(identifier string) pricestats.Series {
	return h.series[identifier]
}

// Identifiers returns every known identifier in first-seen order.
func (h *History) Identifiers() []string {
	out := make([]string, len(h.order))
	copy(out, h.order)
	return out
}

// Len is the size of the known identifier set.
func (h *History) Len() int {
	return len(h.latest)
}
