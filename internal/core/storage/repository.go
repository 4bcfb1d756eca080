package storage

import (
	"context"
	"errors"
	"fmt"

	v1 "github.com/aevon-lab/pricewatch/internal/api/v1"
)

// ErrWriteFailed is returned when a batch could not be durably appended.
// Nothing from the batch is left behind, so the batch may be retried.
var ErrWriteFailed = errors.New("history write failed")

// Schema versions of the persisted log, resolved once per load.
const (
	SchemaV0 = 0 // date,name,price,url
	SchemaV1 = 1 // date,brand,name,price,sku,link
	SchemaV2 = 2 // date,brand,name,price,identifier,link,image
)

// RowError describes one persisted row that could not be read.
// Corrupt rows are reported, never fatal to a load.
type RowError struct {
	Line   int
	Reason string
}

func (e RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.Line, e.Reason)
}

// LoadResult is the tolerant view of the persisted log.
type LoadResult struct {
	// Observations are the readable rows in log order. Rows whose identifier could not be
	// derived keep an empty Identifier; the projection drops them.
	Observations []v1.Observation

	// Corrupt lists rows that were skipped.
	Corrupt []RowError

	// SchemaVersion is the layout the log was written with.
	SchemaVersion int
}

// HistoryStore is the append-only observation log.
type HistoryStore interface {
	// Load reads the whole log, skipping and reporting rows that fail to parse.
	Load(ctx context.Context) (*LoadResult, error)

	// Append adds every observation of the batch, or none of them.
	// Failures wrap ErrWriteFailed. Existing rows are never touched.
	Append(ctx context.Context, observations []v1.Observation) error

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
