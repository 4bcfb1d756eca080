package projection

import (
	"time"

	"github.com/shopspring/decimal"
)

// ItemView is one row of GET /v1/items: the latest observation of an item plus its minimums.
type ItemView struct {
	Identifier string          `json:"identifier"`
	Source     string          `json:"source"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	PriceKnown bool            `json:"price_known"`
	Link       string          `json:"link"`
	Image      string          `json:"image,omitempty"`
	LastSeen   time.Time       `json:"last_seen"`
	AllTimeMin decimal.Decimal `json:"all_time_min"`
	MonthMin   decimal.Decimal `json:"month_min"`
}

// ItemsResponse represents the response for the item listing.
type ItemsResponse struct {
	Count int        `json:"count"`
	Items []ItemView `json:"items"`
}

// HistoryQueryRequest represents the query parameters for an item's price history.
type HistoryQueryRequest struct {
	Identifier  string `uri:"identifier" binding:"required"`
	Granularity string `form:"granularity"` // default: "raw"
	Operator    string `form:"op"`          // default: "min", only used for rolled-up granularities
}

// PricePoint is one raw observation in a history response.
type PricePoint struct {
	ObservedAt time.Time       `json:"observed_at"`
	Price      decimal.Decimal `json:"price"`
}

// AggregateValue represents a single rolled-up data point in the response.
type AggregateValue struct {
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	Value            decimal.Decimal `json:"value"`
	ObservationCount int64           `json:"observation_count"`
}

// HistoryQueryResponse represents the response for an item's price history.
// Points is set for raw granularity, Values for rolled-up ones.
type HistoryQueryResponse struct {
	Identifier  string           `json:"identifier"`
	Name        string           `json:"name"`
	Granularity string           `json:"granularity"`
	Operator    string           `json:"operator,omitempty"`
	Points      []PricePoint     `json:"points,omitempty"`
	Values      []AggregateValue `json:"values,omitempty"`
}

// SummaryResponse holds the dashboard headline figures.
type SummaryResponse struct {
	ItemsTracked int             `json:"items_tracked"`
	PricedItems  int             `json:"priced_items"`
	AveragePrice decimal.Decimal `json:"average_price"`
	LastUpdate   time.Time       `json:"last_update"`
	Sources      map[string]int  `json:"sources"`
	CorruptRows  int             `json:"corrupt_rows"`
}
