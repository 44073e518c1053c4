package telemetry

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"envistream/internal/ingest"
	"envistream/internal/types"
)

// fakeCloudWatch captures PutMetricData inputs and optionally fails.
type fakeCloudWatch struct {
	inputs []*cloudwatch.PutMetricDataInput
	err    error
}

func (f *fakeCloudWatch) PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error) {
	f.inputs = append(f.inputs, params)
	if f.err != nil {
		return nil, f.err
	}
	return &cloudwatch.PutMetricDataOutput{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func datumByName(t *testing.T, data []cwtypes.MetricDatum, name string) cwtypes.MetricDatum {
	t.Helper()
	for _, d := range data {
		if d.MetricName != nil && *d.MetricName == name {
			return d
		}
	}
	t.Fatalf("metric %q not found", name)
	return cwtypes.MetricDatum{}
}

func TestPublishRunStats(t *testing.T) {
	cw := &fakeCloudWatch{}
	p := NewCloudWatchPublisher(cw, discardLogger())

	p.PublishRunStats(context.Background(), types.VendorWeather, ingest.RunStats{
		RunID:          "run-123",
		TasksSucceeded: 9,
		TasksFailed:    3,
		Rows:           216,
		Duration:       90 * time.Second,
	})

	require.Len(t, cw.inputs, 1)
	input := cw.inputs[0]
	require.NotNil(t, input.Namespace)
	assert.Equal(t, types.MetricNamespace, *input.Namespace)
	require.Len(t, input.MetricData, 5)

	succeeded := datumByName(t, input.MetricData, types.MetricTasksSucceeded)
	assert.Equal(t, 9.0, *succeeded.Value)
	failed := datumByName(t, input.MetricData, types.MetricTasksFailed)
	assert.Equal(t, 3.0, *failed.Value)
	rows := datumByName(t, input.MetricData, types.MetricRowsCollected)
	assert.Equal(t, 216.0, *rows.Value)
	duration := datumByName(t, input.MetricData, types.MetricRunDuration)
	assert.Equal(t, 90.0, *duration.Value)
	assert.Equal(t, cwtypes.StandardUnitSeconds, duration.Unit)
	empty := datumByName(t, input.MetricData, types.MetricEmptyBatch)
	assert.Equal(t, 0.0, *empty.Value)

	for _, d := range input.MetricData {
		require.Len(t, d.Dimensions, 1)
		assert.Equal(t, types.DimVendor, *d.Dimensions[0].Name)
		assert.Equal(t, string(types.VendorWeather), *d.Dimensions[0].Value)
	}
}

func TestPublishRunStatsEmptyBatchFlag(t *testing.T) {
	cw := &fakeCloudWatch{}
	p := NewCloudWatchPublisher(cw, discardLogger())

	p.PublishRunStats(context.Background(), types.VendorAirQuality, ingest.RunStats{
		RunID:          "run-456",
		TasksSucceeded: 4,
		Rows:           0,
	})

	require.Len(t, cw.inputs, 1)
	empty := datumByName(t, cw.inputs[0].MetricData, types.MetricEmptyBatch)
	assert.Equal(t, 1.0, *empty.Value)
}

func TestPublishRunStatsSwallowsClientErrors(t *testing.T) {
	cw := &fakeCloudWatch{err: errors.New("throttled")}
	p := NewCloudWatchPublisher(cw, discardLogger())

	// Must not panic or propagate; a lost metric never fails a run.
	p.PublishRunStats(context.Background(), types.VendorWeather, ingest.RunStats{RunID: "run-789"})
	assert.Len(t, cw.inputs, 1)
}

func TestNoopPublisher(t *testing.T) {
	var p ingest.MetricPublisher = NoopPublisher{}
	p.PublishRunStats(context.Background(), types.VendorWeather, ingest.RunStats{})
}
