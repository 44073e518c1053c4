// Package telemetry publishes fetch-run metrics to AWS CloudWatch.
package telemetry

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"envistream/internal/ingest"
	"envistream/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// CloudWatchPublisher implements ingest.MetricPublisher by emitting run
// counters to CloudWatch under the Envistream namespace.
//
// Metrics emitted per run, all with the Vendor dimension:
//   - FetchTasksSucceeded / FetchTasksFailed
//   - RowsCollected
//   - FetchRunDurationSeconds
//   - EmptyBatch (1 when the run produced zero rows)
type CloudWatchPublisher struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// Compile-time assertion that CloudWatchPublisher implements MetricPublisher.
var _ ingest.MetricPublisher = (*CloudWatchPublisher)(nil)

// NewCloudWatchPublisher creates a publisher targeting the standard metric
// namespace.
func NewCloudWatchPublisher(client CloudWatchClient, logger *slog.Logger) *CloudWatchPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &CloudWatchPublisher{
		client:    client,
		namespace: types.MetricNamespace,
		logger:    logger,
	}
}

// PublishRunStats emits the counters for one completed run. Publish failures
// are logged, never propagated: a lost metric must not fail a run that
// fetched data successfully.
func (p *CloudWatchPublisher) PublishRunStats(ctx context.Context, vendor types.Vendor, stats ingest.RunStats) {
	dims := []cwtypes.Dimension{
		{
			Name:  aws.String(types.DimVendor),
			Value: aws.String(string(vendor)),
		},
	}

	emptyBatch := 0.0
	if stats.Rows == 0 {
		emptyBatch = 1.0
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(p.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(types.MetricTasksSucceeded),
				Value:      aws.Float64(float64(stats.TasksSucceeded)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(types.MetricTasksFailed),
				Value:      aws.Float64(float64(stats.TasksFailed)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(types.MetricRowsCollected),
				Value:      aws.Float64(float64(stats.Rows)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(types.MetricRunDuration),
				Value:      aws.Float64(stats.Duration.Seconds()),
				Unit:       cwtypes.StandardUnitSeconds,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(types.MetricEmptyBatch),
				Value:      aws.Float64(emptyBatch),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}

	if _, err := p.client.PutMetricData(ctx, input); err != nil {
		p.logger.ErrorContext(ctx, "failed to publish run stats",
			"error", err,
			"vendor", string(vendor),
			"run_id", stats.RunID,
		)
	}
}

// NoopPublisher discards all metrics. Used for local development and tests
// where no CloudWatch endpoint is configured.
type NoopPublisher struct{}

// Compile-time assertion that NoopPublisher implements MetricPublisher.
var _ ingest.MetricPublisher = (*NoopPublisher)(nil)

// PublishRunStats discards the stats.
func (NoopPublisher) PublishRunStats(context.Context, types.Vendor, ingest.RunStats) {}
