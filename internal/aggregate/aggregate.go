// Package aggregate turns the raw, irregularly-timestamped record stream into
// fixed hourly summaries and validates the result against per-vendor schema
// contracts.
//
// The implementation keeps the null-handling and uniqueness invariants
// explicit: a running (sum, count) pair per metric column per (entity, hour
// bucket), finalized to the arithmetic mean at the end. A column whose window
// contained only nulls finalizes to null, never zero; downstream
// health-threshold logic depends on that distinction.
package aggregate

import (
	"sort"
	"time"

	"envistream/internal/types"
)

// DefaultBucketWidth is the standard aggregation granularity.
const DefaultBucketWidth = time.Hour

// groupKey identifies one output row.
type groupKey struct {
	entityID string
	bucket   time.Time
}

// runningCell accumulates one metric column within one group. A cell with
// count == 0 was reported by the vendor but carried only nulls.
type runningCell struct {
	sum   float64
	count int
}

// accumulator collects raw rows for one (entity, hour bucket) group.
type accumulator struct {
	cells map[string]*runningCell
	meta  map[string]string
}

// Aggregate groups raw rows by entity, floors each row's timestamp to the
// start of its bucketWidth window, and computes the per-column arithmetic
// mean with nulls excluded. Identifier and meta columns are never averaged;
// the group's first observed value is carried through instead.
//
// Output rows are keyed by (entity_id, hour_bucket) and unique per key by
// construction. Records are sorted by entity then bucket so downstream
// consumers see a deterministic order regardless of fetch completion order.
func Aggregate(batch types.RawBatch, bucketWidth time.Duration) types.Table {
	if bucketWidth <= 0 {
		bucketWidth = DefaultBucketWidth
	}

	groups := make(map[groupKey]*accumulator)

	for _, row := range batch.Rows {
		if row.EntityID == "" || row.Timestamp.IsZero() {
			continue
		}

		key := groupKey{
			entityID: row.EntityID,
			bucket:   types.HourBucket(row.Timestamp, bucketWidth),
		}

		acc, ok := groups[key]
		if !ok {
			acc = &accumulator{
				cells: make(map[string]*runningCell),
				meta:  make(map[string]string),
			}
			groups[key] = acc
		}

		for name, value := range row.Values {
			cell, ok := acc.cells[name]
			if !ok {
				cell = &runningCell{}
				acc.cells[name] = cell
			}
			if value != nil {
				cell.sum += *value
				cell.count++
			}
		}

		for name, value := range row.Meta {
			if _, ok := acc.meta[name]; !ok {
				acc.meta[name] = value
			}
		}
	}

	records := make([]types.AggregatedRecord, 0, len(groups))
	for key, acc := range groups {
		means := make(map[string]*float64, len(acc.cells))
		for name, cell := range acc.cells {
			if cell.count == 0 {
				means[name] = nil
				continue
			}
			mean := cell.sum / float64(cell.count)
			means[name] = &mean
		}

		records = append(records, types.AggregatedRecord{
			EntityID: key.entityID,
			Bucket:   key.bucket,
			Means:    means,
			Meta:     acc.meta,
		})
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].EntityID != records[j].EntityID {
			return records[i].EntityID < records[j].EntityID
		}
		return records[i].Bucket.Before(records[j].Bucket)
	})

	return types.Table{Records: records}
}
