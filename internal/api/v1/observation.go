package v1

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Observation is one row of the history log: one timestamped price for one item
// from one catalog source. Observations are immutable once created.
type Observation struct {
	// ObservedAt is the run timestamp. Every observation of one crawl run shares it.
	ObservedAt time.Time `json:"observed_at"`

	// Source is the catalog source name (the "brand" column of the log).
	Source string `json:"source"`

	// Name is the display name. It can repeat or change and is never used as a key.
	Name string `json:"name"`

	// Price is zero when the price was unavailable. Zero is a sentinel, never a real price.
	Price decimal.Decimal `json:"price"`

	// Identifier is the stable item key: the source SKU if present, else the canonical link.
	Identifier string `json:"identifier"`

	// Link is the absolute item URL.
	Link string `json:"link"`

	// Image is the absolute image URL, empty when the listing had none.
	Image string `json:"image,omitempty"`

	// PriceUnknown marks an unresolvable price. Not persisted: loaded rows derive it from Price.
	PriceUnknown bool `json:"-"`
}

// Validate ensures the observation can be persisted and keyed.
func (o *Observation) Validate() error {
	if o.ObservedAt.IsZero() {
		return fmt.Errorf("observed_at is required")
	}
	if o.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if o.Price.IsNegative() {
		return fmt.Errorf("price must be >= 0, got %s", o.Price)
	}
	return nil
}

// HasPrice reports whether the observation carries a usable price.
func (o *Observation) HasPrice() bool {
	return !o.PriceUnknown && o.Price.IsPositive()
}

// RawListing is the field bag extracted from one catalog card before normalization.
type RawListing struct {
	IdentifierRaw string `json:"identifier_raw"`
	TitleRaw      string `json:"title_raw"`
	PriceTextRaw  string `json:"price_text_raw"`
	LinkRaw       string `json:"link_raw"`
	ImageRaw      string `json:"image_raw"`
}

// Key returns the value used to deduplicate listings within one traversal.
func (r RawListing) Key() string {
	if r.IdentifierRaw != "" {
		return "id:" + r.IdentifierRaw
	}
	return "link:" + r.LinkRaw
}
