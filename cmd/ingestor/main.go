// Package main is the entrypoint for the telemetry ingestor.
//
// The ingestor runs one fetch-aggregate-validate cycle per invocation: it
// pulls the configured day range from both vendor APIs (weather stations and
// air-quality devices), folds the raw observations into hourly per-entity
// means, checks each table against its vendor schema contract, and emits the
// tables as JSON on stdout for downstream consumers.
//
// This file handles dependency wiring and delegates all business logic to the
// internal packages.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"

	"envistream/internal/aggregate"
	"envistream/internal/config"
	"envistream/internal/external"
	"envistream/internal/ingest"
	"envistream/internal/telemetry"
	"envistream/internal/types"
)

func main() {
	var (
		startFlag = flag.String("start", "", "first day to fetch (YYYY-MM-DD, default: yesterday)")
		endFlag   = flag.String("end", "", "last day to fetch, inclusive (YYYY-MM-DD, default: start)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	startDay, endDay, err := resolveDayRange(*startFlag, *endFlag)
	if err != nil {
		logger.Error("invalid day range", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("ingestor starting",
		"environment", cfg.Environment,
		"start_day", startDay.Format(time.DateOnly),
		"end_day", endDay.Format(time.DateOnly),
		"concurrency", cfg.Fetch.Concurrency,
	)

	httpClient := &http.Client{}
	retryPolicy := external.RetryPolicy{
		MaxAttempts:   cfg.Fetch.MaxAttempts,
		BackoffFactor: cfg.Fetch.BackoffFactor,
		MaxWait:       cfg.Fetch.MaxBackoff,
	}

	var metrics ingest.MetricPublisher = telemetry.NoopPublisher{}
	if cfg.Metrics.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Metrics.Region))
		if err != nil {
			logger.Error("failed to load AWS SDK config", "error", err)
			os.Exit(1)
		}
		metrics = telemetry.NewCloudWatchPublisher(cloudwatch.NewFromConfig(awsCfg), logger)
	}

	scheduler := ingest.NewFetchScheduler(ingest.FetchSchedulerConfig{
		Concurrency: cfg.Fetch.Concurrency,
		Retry:       retryPolicy,
		Metrics:     metrics,
		Logger:      logger,
	})

	weatherClient := ingest.NewWeatherClient(
		external.NewExecutor(httpClient, "weather-history", cfg.Fetch.UserAgent,
			external.WithTimeout(cfg.Fetch.CallTimeout)),
		ingest.WeatherClientConfig{
			BaseURL:  cfg.Weather.BaseURL,
			APIKey:   cfg.Weather.APIKey,
			Units:    cfg.Weather.Units,
			Stations: cfg.Weather.Stations,
			Logger:   logger,
		},
	)

	airQualityClient := ingest.NewAirQualityClient(
		external.NewExecutor(httpClient, "air-quality-telemetry", cfg.Fetch.UserAgent,
			external.WithTimeout(cfg.Fetch.CallTimeout)),
		ingest.AirQualityClientConfig{
			BaseURL:      cfg.AirQuality.BaseURL,
			TokenURL:     cfg.AirQuality.TokenURL,
			ClientID:     cfg.AirQuality.ClientID,
			ClientSecret: cfg.AirQuality.ClientSecret,
			Devices:      cfg.AirQuality.Devices,
			Logger:       logger,
		},
	)

	output := json.NewEncoder(os.Stdout)
	exitCode := 0

	pipelines := []struct {
		client   ingest.VendorClient
		contract types.SchemaContract
	}{
		{client: weatherClient, contract: aggregate.WeatherContract()},
		{client: airQualityClient, contract: aggregate.AirQualityContract()},
	}

	for _, p := range pipelines {
		table, err := runPipeline(ctx, logger, scheduler, p.client, p.contract, startDay, endDay)
		if err != nil {
			// Fatal conditions only: failed authentication or caller bugs.
			// Partial task failures never surface here.
			logger.Error("pipeline failed",
				"vendor", string(p.client.Name()),
				"error", err,
			)
			exitCode = 1
			continue
		}
		if err := output.Encode(vendorOutput{Vendor: p.client.Name(), Table: table}); err != nil {
			logger.Error("failed to encode output table",
				"vendor", string(p.client.Name()),
				"error", err,
			)
			exitCode = 1
		}
	}

	os.Exit(exitCode)
}

// vendorOutput is the stdout envelope for one vendor's aggregated table.
type vendorOutput struct {
	Vendor types.Vendor `json:"vendor"`
	Table  types.Table  `json:"table"`
}

// runPipeline executes fetch, aggregation, and validation for one vendor.
func runPipeline(
	ctx context.Context,
	logger *slog.Logger,
	scheduler *ingest.FetchScheduler,
	client ingest.VendorClient,
	contract types.SchemaContract,
	startDay, endDay time.Time,
) (types.Table, error) {
	batch, err := scheduler.Run(ctx, client, startDay, endDay)
	if err != nil {
		return types.Table{}, err
	}

	if batch.Empty() {
		logger.WarnContext(ctx, "fetch run produced no data",
			"vendor", string(client.Name()),
			"tasks_failed", batch.TasksFailed,
		)
		return types.Table{}, nil
	}

	table := aggregate.Aggregate(batch, aggregate.DefaultBucketWidth)

	report := aggregate.Validate(table, contract)
	if !report.Valid() {
		logger.WarnContext(ctx, "schema validation findings",
			"vendor", string(client.Name()),
			"missing_columns", report.MissingColumns,
			"type_mismatches", len(report.TypeMismatches),
			"low_coverage", report.LowCoverage,
		)
	}
	if len(report.ExtraColumns) > 0 {
		logger.InfoContext(ctx, "table carries columns outside the contract",
			"vendor", string(client.Name()),
			"extra_columns", report.ExtraColumns,
		)
	}

	logger.InfoContext(ctx, "pipeline complete",
		"vendor", string(client.Name()),
		"records", len(table.Records),
		"metric_columns", len(table.MetricColumns()),
	)

	return table, nil
}

// resolveDayRange parses the start/end flags, defaulting to yesterday.
func resolveDayRange(startFlag, endFlag string) (time.Time, time.Time, error) {
	yesterday := time.Now().UTC().Truncate(24 * time.Hour).Add(-24 * time.Hour)

	start := yesterday
	if startFlag != "" {
		parsed, err := time.Parse(time.DateOnly, startFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -start: %w", err)
		}
		start = parsed.UTC()
	}

	end := start
	if endFlag != "" {
		parsed, err := time.Parse(time.DateOnly, endFlag)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -end: %w", err)
		}
		end = parsed.UTC()
	}

	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end day %s precedes start day %s", end.Format(time.DateOnly), start.Format(time.DateOnly))
	}

	return start, end, nil
}

// parseLogLevel maps the config level string to a slog level, defaulting to
// info on unknown values.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
