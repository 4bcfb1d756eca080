package projection

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aevon-lab/pricewatch/internal/core/pricestats"
	"github.com/aevon-lab/pricewatch/internal/core/storage"
	"github.com/shopspring/decimal"
)

const (
	GranularityRaw = "raw"
	GranularityDay = "1d"
)

var (
	// ErrInvalidQuery marks request validation errors that should return HTTP 400.
	ErrInvalidQuery = errors.New("invalid history query")

	// ErrItemNotFound is returned for identifiers that never appeared in the log.
	ErrItemNotFound = errors.New("item not found")
)

// Service is the read-only presenter over the observation log.
// Every query rebuilds the History from a fresh Load; nothing is cached.
type Service struct {
	store       storage.HistoryStore
	monthWindow pricestats.WindowSpec
	nowFn       func() time.Time
}

// NewService creates a new presenter service.
func NewService(store storage.HistoryStore, monthWindow pricestats.WindowSpec) *Service {
	return &Service{
		store:       store,
		monthWindow: monthWindow,
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *Service) load(ctx context.Context) (*History, *storage.LoadResult, error) {
	result, err := s.store.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load history: %w", err)
	}
	return Build(result.Observations), result, nil
}

// ListItems returns the latest observation of every item, optionally limited to one source.
func (s *Service) ListItems(ctx context.Context, source string) (*ItemsResponse, error) {
	history, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	since := s.monthWindow.Since(s.nowFn())
	items := make([]ItemView, 0, history.Len())
	for _, id := range history.Identifiers() {
		latest, _ := history.Latest(id)
		if source != "" && latest.Source != source {
			continue
		}
		series := history.Series(id)
		monthMin, _ := series.MinSince(since)
		items = append(items, ItemView{
			Identifier: id,
			Source:     latest.Source,
			Name:       latest.Name,
			Price:      latest.Price,
			PriceKnown: latest.HasPrice(),
			Link:       latest.Link,
			Image:      latest.Image,
			LastSeen:   latest.ObservedAt,
			AllTimeMin: series.AllTimeMin(),
			MonthMin:   monthMin,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Source != items[j].Source {
			return items[i].Source < items[j].Source
		}
		return items[i].Name < items[j].Name
	})

	return &ItemsResponse{Count: len(items), Items: items}, nil
}

// ItemHistory returns the recorded prices of one item, raw or rolled up per day.
func (s *Service) ItemHistory(ctx context.Context, req HistoryQueryRequest) (*HistoryQueryResponse, error) {
	req, err := normalizeHistoryRequest(req)
	if err != nil {
		return nil, err
	}

	history, _, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	latest, ok := history.Latest(req.Identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, req.Identifier)
	}

	resp := &HistoryQueryResponse{
		Identifier:  req.Identifier,
		Name:        latest.Name,
		Granularity: req.Granularity,
	}
	series := history.Series(req.Identifier)
	switch req.Granularity {
	case GranularityRaw:
		resp.Points = convertToPoints(series)
	case GranularityDay:
		resp.Operator = req.Operator
		resp.Values = rollupToDay(series, req.Operator)
	}
	return resp, nil
}

// Summary returns the dashboard headline figures.
func (s *Service) Summary(ctx context.Context) (*SummaryResponse, error) {
	history, result, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	resp := &SummaryResponse{
		ItemsTracked: history.Len(),
		AveragePrice: decimal.Zero,
		Sources:      make(map[string]int),
		CorruptRows:  len(result.Corrupt),
	}

	total := decimal.Zero
	for _, id := range history.Identifiers() {
		latest, _ := history.Latest(id)
		resp.Sources[latest.Source]++
		if latest.ObservedAt.After(resp.LastUpdate) {
			resp.LastUpdate = latest.ObservedAt
		}
		if latest.HasPrice() {
			resp.PricedItems++
			total = total.Add(latest.Price)
		}
	}
	if resp.PricedItems > 0 {
		resp.AveragePrice = total.Div(decimal.NewFromInt(int64(resp.PricedItems))).Round(2)
	}
	return resp, nil
}

func normalizeHistoryRequest(req HistoryQueryRequest) (HistoryQueryRequest, error) {
	req.Identifier = strings.TrimSpace(req.Identifier)
	if req.Identifier == "" {
		return req, invalidQueryf("identifier is required")
	}

	req.Granularity = strings.ToLower(strings.TrimSpace(req.Granularity))
	if req.Granularity == "" {
		req.Granularity = GranularityRaw
	}
	if req.Granularity != GranularityRaw && req.Granularity != GranularityDay {
		return req, invalidQueryf("unsupported granularity %q (want %s or %s)", req.Granularity, GranularityRaw, GranularityDay)
	}

	req.Operator = strings.ToLower(strings.TrimSpace(req.Operator))
	if req.Operator == "" {
		req.Operator = pricestats.OpMin
	}
	if !pricestats.ValidOperator(req.Operator) {
		return req, invalidQueryf("unsupported operator %q", req.Operator)
	}
	return req, nil
}

func invalidQueryf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
