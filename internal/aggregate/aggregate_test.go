package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envistream/internal/types"
)

func fp(v float64) *float64 { return &v }

func ts(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func row(entityID, at string, values map[string]*float64) types.RawObservation {
	return types.RawObservation{
		EntityID:  entityID,
		Timestamp: ts(at),
		Values:    values,
	}
}

func TestAggregateHourlyMean(t *testing.T) {
	batch := types.RawBatch{Rows: []types.RawObservation{
		row("ENT01", "2026-08-01T10:05:00Z", map[string]*float64{types.ColTempAvg: fp(10)}),
		row("ENT01", "2026-08-01T10:20:00Z", map[string]*float64{types.ColTempAvg: fp(20)}),
		row("ENT01", "2026-08-01T10:50:00Z", map[string]*float64{types.ColTempAvg: fp(30)}),
	}}

	table := Aggregate(batch, time.Hour)
	require.Len(t, table.Records, 1)

	rec := table.Records[0]
	assert.Equal(t, "ENT01", rec.EntityID)
	assert.Equal(t, ts("2026-08-01T10:00:00Z"), rec.Bucket)
	require.NotNil(t, rec.Means[types.ColTempAvg])
	assert.InDelta(t, 20.0, *rec.Means[types.ColTempAvg], 1e-9)
}

func TestAggregateNullExclusion(t *testing.T) {
	// One null and two values: the null is excluded from the mean, it does
	// not drag it toward zero.
	batch := types.RawBatch{Rows: []types.RawObservation{
		row("ENT01", "2026-08-01T10:05:00Z", map[string]*float64{types.ColHumidityAvg: fp(60)}),
		row("ENT01", "2026-08-01T10:25:00Z", map[string]*float64{types.ColHumidityAvg: nil}),
		row("ENT01", "2026-08-01T10:45:00Z", map[string]*float64{types.ColHumidityAvg: fp(80)}),
	}}

	table := Aggregate(batch, time.Hour)
	require.Len(t, table.Records, 1)

	mean := table.Records[0].Means[types.ColHumidityAvg]
	require.NotNil(t, mean)
	assert.InDelta(t, 70.0, *mean, 1e-9)
}

func TestAggregateAllNullColumnStaysNull(t *testing.T) {
	batch := types.RawBatch{Rows: []types.RawObservation{
		row("ENT01", "2026-08-01T10:05:00Z", map[string]*float64{
			types.ColTempAvg:        fp(18),
			types.ColSolarRadiation: nil,
		}),
		row("ENT01", "2026-08-01T10:35:00Z", map[string]*float64{
			types.ColTempAvg:        fp(22),
			types.ColSolarRadiation: nil,
		}),
	}}

	table := Aggregate(batch, time.Hour)
	require.Len(t, table.Records, 1)

	means := table.Records[0].Means
	require.Contains(t, means, types.ColSolarRadiation)
	assert.Nil(t, means[types.ColSolarRadiation])
	require.NotNil(t, means[types.ColTempAvg])
	assert.InDelta(t, 20.0, *means[types.ColTempAvg], 1e-9)
}

func TestAggregateNoRowForEmptyHours(t *testing.T) {
	// Observations at 10:xx and 13:xx only; hours 11 and 12 produce no rows.
	batch := types.RawBatch{Rows: []types.RawObservation{
		row("ENT01", "2026-08-01T10:10:00Z", map[string]*float64{types.ColTempAvg: fp(10)}),
		row("ENT01", "2026-08-01T13:10:00Z", map[string]*float64{types.ColTempAvg: fp(14)}),
	}}

	table := Aggregate(batch, time.Hour)
	require.Len(t, table.Records, 2)
	assert.Equal(t, ts("2026-08-01T10:00:00Z"), table.Records[0].Bucket)
	assert.Equal(t, ts("2026-08-01T13:00:00Z"), table.Records[1].Bucket)
}

func TestAggregateGroupKeyUniquenessAndOrder(t *testing.T) {
	batch := types.RawBatch{Rows: []types.RawObservation{
		row("ENT02", "2026-08-01T11:10:00Z", map[string]*float64{types.ColTempAvg: fp(1)}),
		row("ENT01", "2026-08-01T11:40:00Z", map[string]*float64{types.ColTempAvg: fp(2)}),
		row("ENT01", "2026-08-01T10:15:00Z", map[string]*float64{types.ColTempAvg: fp(3)}),
		row("ENT01", "2026-08-01T10:45:00Z", map[string]*float64{types.ColTempAvg: fp(4)}),
	}}

	table := Aggregate(batch, time.Hour)
	require.Len(t, table.Records, 3)

	seen := make(map[string]bool)
	for _, rec := range table.Records {
		key := rec.EntityID + rec.Bucket.Format(time.RFC3339)
		assert.False(t, seen[key], "duplicate group %s", key)
		seen[key] = true
	}

	assert.Equal(t, "ENT01", table.Records[0].EntityID)
	assert.Equal(t, ts("2026-08-01T10:00:00Z"), table.Records[0].Bucket)
	assert.Equal(t, "ENT01", table.Records[1].EntityID)
	assert.Equal(t, ts("2026-08-01T11:00:00Z"), table.Records[1].Bucket)
	assert.Equal(t, "ENT02", table.Records[2].EntityID)
}

func TestAggregateMetaFirstObservedWins(t *testing.T) {
	first := row("ENT01", "2026-08-01T10:05:00Z", map[string]*float64{types.ColTempAvg: fp(10)})
	first.Meta = map[string]string{types.MetaEntityName: "Rooftop North", types.MetaQCStatus: "1"}
	second := row("ENT01", "2026-08-01T10:35:00Z", map[string]*float64{types.ColTempAvg: fp(20)})
	second.Meta = map[string]string{types.MetaEntityName: "Renamed Later"}

	table := Aggregate(types.RawBatch{Rows: []types.RawObservation{first, second}}, time.Hour)
	require.Len(t, table.Records, 1)

	assert.Equal(t, "Rooftop North", table.Records[0].Meta[types.MetaEntityName])
	assert.Equal(t, "1", table.Records[0].Meta[types.MetaQCStatus])
}

func TestAggregateSkipsUnusableRows(t *testing.T) {
	batch := types.RawBatch{Rows: []types.RawObservation{
		{EntityID: "", Timestamp: ts("2026-08-01T10:05:00Z"), Values: map[string]*float64{types.ColTempAvg: fp(10)}},
		{EntityID: "ENT01", Values: map[string]*float64{types.ColTempAvg: fp(10)}},
	}}

	table := Aggregate(batch, time.Hour)
	assert.True(t, table.Empty())
}

func TestAggregateEmptyBatch(t *testing.T) {
	table := Aggregate(types.RawBatch{}, time.Hour)
	assert.True(t, table.Empty())
	assert.NotNil(t, table.Records)
}

func TestAggregateDefaultBucketWidth(t *testing.T) {
	batch := types.RawBatch{Rows: []types.RawObservation{
		row("ENT01", "2026-08-01T10:59:59Z", map[string]*float64{types.ColTempAvg: fp(10)}),
	}}

	table := Aggregate(batch, 0)
	require.Len(t, table.Records, 1)
	assert.Equal(t, ts("2026-08-01T10:00:00Z"), table.Records[0].Bucket)
}

func TestAggregateNonUTCTimestampsShareBucket(t *testing.T) {
	est := time.FixedZone("EST", -5*60*60)
	batch := types.RawBatch{Rows: []types.RawObservation{
		{
			EntityID:  "ENT01",
			Timestamp: time.Date(2026, 8, 1, 5, 30, 0, 0, est),
			Values:    map[string]*float64{types.ColTempAvg: fp(10)},
		},
		row("ENT01", "2026-08-01T10:45:00Z", map[string]*float64{types.ColTempAvg: fp(20)}),
	}}

	table := Aggregate(batch, time.Hour)
	require.Len(t, table.Records, 1)
	assert.Equal(t, ts("2026-08-01T10:00:00Z"), table.Records[0].Bucket)
	assert.InDelta(t, 15.0, *table.Records[0].Means[types.ColTempAvg], 1e-9)
}
