package types

import (
	"sort"
	"time"
)

// Vendor identifies which upstream API an entity belongs to.
type Vendor string

const (
	// VendorWeather is the multi-station weather history API.
	VendorWeather Vendor = "weather"
	// VendorAirQuality is the multi-device air-quality telemetry API.
	VendorAirQuality Vendor = "air_quality"
)

// Entity is a station (weather) or device (air-quality) being polled.
// Entities are enumerated once per fetch run from static configuration and
// treated as read-only input by the ingestion core.
type Entity struct {
	ID     string   `json:"id" validate:"required"`
	Name   string   `json:"name"`
	Lat    *float64 `json:"lat,omitempty" validate:"omitempty,min=-90,max=90"`
	Lon    *float64 `json:"lon,omitempty" validate:"omitempty,min=-180,max=180"`
	Vendor Vendor   `json:"vendor"`
}

// RawObservation is one timestamped reading for one entity, pre-aggregation.
//
// Invariants: Timestamp is always tz-aware UTC; EntityID is never empty.
// Values maps metric name to a numeric reading; a nil value records an
// explicit null (the vendor reported the field but carried no number), which
// must stay distinguishable from zero through aggregation.
type RawObservation struct {
	EntityID  string
	Timestamp time.Time
	Values    map[string]*float64
	Meta      map[string]string
}

// RawBatch is the union of rows from all successful fetch tasks in one run,
// together with task-level success/failure counters for reporting.
//
// An empty batch is a distinguishable "no data" result, not an error: callers
// decide whether zero rows is expected (future dates, offline stations) or a
// problem.
type RawBatch struct {
	Rows           []RawObservation
	TasksSucceeded int
	TasksFailed    int
}

// Empty reports whether the batch contains no rows.
func (b RawBatch) Empty() bool {
	return len(b.Rows) == 0
}

// HourBucket floors a timestamp to the start of its bucketWidth window in UTC.
// The default bucket width is one hour; every aggregated record's bucket is
// produced by this function, which guarantees top-of-the-hour alignment.
func HourBucket(ts time.Time, bucketWidth time.Duration) time.Time {
	return ts.UTC().Truncate(bucketWidth)
}

// AggregatedRecord is one (entity, hour bucket) output row with one mean
// value per metric column. A nil mean records a window where every
// contributing raw value was null.
type AggregatedRecord struct {
	EntityID string              `json:"entity_id"`
	Bucket   time.Time           `json:"hour_bucket_utc"`
	Means    map[string]*float64 `json:"means"`
	Meta     map[string]string   `json:"meta,omitempty"`
}

// Table is the core's output artifact: aggregated records keyed by
// (entity_id, hour_bucket), unique per key by construction.
type Table struct {
	Records []AggregatedRecord
}

// Empty reports whether the table contains no records.
func (t Table) Empty() bool {
	return len(t.Records) == 0
}

// Lookup returns the record for the given entity and bucket, if present.
func (t Table) Lookup(entityID string, bucket time.Time) (*AggregatedRecord, bool) {
	for i := range t.Records {
		if t.Records[i].EntityID == entityID && t.Records[i].Bucket.Equal(bucket) {
			return &t.Records[i], true
		}
	}
	return nil, false
}

// MetricColumns returns the sorted union of metric column names across all
// records. Useful for downstream consumers that need a stable header row.
func (t Table) MetricColumns() []string {
	seen := make(map[string]struct{})
	for i := range t.Records {
		for name := range t.Records[i].Means {
			seen[name] = struct{}{}
		}
	}
	cols := make([]string, 0, len(seen))
	for name := range seen {
		cols = append(cols, name)
	}
	sort.Strings(cols)
	return cols
}

// ColumnType is the semantic type a schema contract declares for a column.
type ColumnType string

const (
	ColumnFloat64   ColumnType = "float64"
	ColumnFloat32   ColumnType = "float32"
	ColumnString    ColumnType = "string"
	ColumnObject    ColumnType = "object"
	ColumnTimestamp ColumnType = "timestamp"
)

// Normalize collapses equivalent column types for contract comparison:
// 32-bit and 64-bit floats are interchangeable, as are string and the
// generic object type.
func (c ColumnType) Normalize() ColumnType {
	switch c {
	case ColumnFloat32:
		return ColumnFloat64
	case ColumnObject:
		return ColumnString
	default:
		return c
	}
}

// Compatible reports whether two column types are equivalent under
// normalization.
func (c ColumnType) Compatible(other ColumnType) bool {
	return c.Normalize() == other.Normalize()
}

// SchemaContract declares the expected column/type layout of an aggregated
// table plus the subset of "critical" columns with a minimum non-null
// coverage fraction. Contracts are static, versioned per vendor, and never
// mutated by the core.
type SchemaContract struct {
	Vendor   Vendor
	Columns  map[string]ColumnType
	Critical map[string]float64
}

// TypeMismatch records a column whose runtime type is incompatible with the
// contract's declared type.
type TypeMismatch struct {
	Column string
	Want   ColumnType
	Got    ColumnType
}

// CoverageFinding records a critical column whose non-null coverage fell
// below the contract threshold.
type CoverageFinding struct {
	Column    string
	Coverage  float64
	Threshold float64
}

// ValidationReport is the advisory result of checking a table against a
// schema contract. It never mutates the table; callers decide whether to
// reject, warn, or proceed.
type ValidationReport struct {
	MissingColumns []string
	ExtraColumns   []string
	TypeMismatches []TypeMismatch
	LowCoverage    []CoverageFinding
}

// Valid reports whether the table satisfied every contract check.
// Extra columns are tolerated and do not fail validation.
func (r ValidationReport) Valid() bool {
	return len(r.MissingColumns) == 0 && len(r.TypeMismatches) == 0 && len(r.LowCoverage) == 0
}
