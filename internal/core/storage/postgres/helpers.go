package postgres

import (
	"database/sql"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
	"github.com/aevon-lab/pricewatch/internal/core/storage"
	"github.com/shopspring/decimal"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// scanObservationRow scans one log row. A row that scans but does not hold a usable
// observation is returned as a *storage.RowError so Load can skip it.
func scanObservationRow(row scanner) (v1.Observation, error) {
	var (
		seq        int64
		observedAt sql.NullTime
		source     sql.NullString
		name       sql.NullString
		price      sql.NullString
		identifier sql.NullString
		link       sql.NullString
		image      sql.NullString
	)

	if err := row.Scan(&seq, &observedAt, &source, &name, &price, &identifier, &link, &image); err != nil {
		return v1.Observation{}, fmt.Errorf("failed to scan observation row: %w", err)
	}

	line := int(seq)
	if !observedAt.Valid {
		return v1.Observation{}, &storage.RowError{Line: line, Reason: "missing timestamp"}
	}
	if !price.Valid {
		return v1.Observation{}, &storage.RowError{Line: line, Reason: "missing price"}
	}
	value, err := decimal.NewFromString(price.String)
	if err != nil {
		return v1.Observation{}, &storage.RowError{Line: line, Reason: fmt.Sprintf("unparseable price %q", price.String)}
	}
	if value.IsNegative() {
		return v1.Observation{}, &storage.RowError{Line: line, Reason: fmt.Sprintf("negative price %s", value)}
	}

	obs := v1.Observation{
		ObservedAt:   observedAt.Time.UTC().Truncate(time.Second),
		Source:       source.String,
		Name:         name.String,
		Price:        value,
		Identifier:   identifier.String,
		Link:         link.String,
		Image:        image.String,
		PriceUnknown: value.IsZero(),
	}
	if obs.Identifier == "" {
		obs.Identifier = obs.Link
	}
	return obs, nil
}
