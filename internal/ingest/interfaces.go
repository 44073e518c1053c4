// Package ingest implements the concurrent ingestion core: the vendor client
// contract, the two vendor implementations (weather stations and air-quality
// devices), per-vendor payload flattening, and the fetch scheduler that runs
// the entity-by-day task set under a global concurrency bound.
package ingest

import (
	"context"
	"time"

	"envistream/internal/types"
)

// VendorClient is the capability contract every upstream implementation must
// satisfy: authenticate once per run, enumerate entities, and fetch one
// entity's observations for one calendar day. Range fetching is owned by the
// FetchScheduler, which drives FetchDay across the entity-by-day task set.
type VendorClient interface {
	// Name returns the vendor identifier used in logs and metrics.
	Name() types.Vendor

	// Authenticate acquires whatever credentials subsequent FetchDay calls
	// need. It is called exactly once per run, before any task is submitted,
	// and never concurrently with FetchDay. Vendors without a token step
	// return nil. A returned error is fatal for the whole run.
	Authenticate(ctx context.Context) error

	// ListEntities returns the static configured entity list. No network call.
	ListEntities() []types.Entity

	// FetchDay retrieves all observations for one entity within
	// [day 00:00, day+1 00:00) UTC. A day with zero valid rows is not an
	// error; it returns an empty slice. Errors are classified AppErrors so
	// the scheduler can distinguish transient from permanent failures.
	FetchDay(ctx context.Context, entityID string, day time.Time) ([]types.RawObservation, error)
}
