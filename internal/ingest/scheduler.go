package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"envistream/internal/external"
	"envistream/internal/types"
)

// DefaultConcurrency is the default global bound on in-flight HTTP calls per
// run. It is deliberately small to respect third-party rate limits.
const DefaultConcurrency = 5

// MetricPublisher records fetch-run statistics. Implementations must not
// block the run on publish failures; a lost metric is preferable to a lost
// batch.
type MetricPublisher interface {
	// PublishRunStats emits the task and row counters for a completed run.
	PublishRunStats(ctx context.Context, vendor types.Vendor, stats RunStats)
}

// RunStats summarizes one completed fetch run for metrics and logging.
type RunStats struct {
	RunID          string
	TasksSucceeded int
	TasksFailed    int
	Rows           int
	Duration       time.Duration
}

// fetchTask is the unit of concurrent work: one (entity, calendar day) pair.
// Exactly one HTTP request (plus retries) corresponds to one task.
type fetchTask struct {
	entity types.Entity
	day    time.Time
}

// FetchSchedulerConfig holds the configuration for creating a FetchScheduler.
type FetchSchedulerConfig struct {
	Concurrency int
	Retry       external.RetryPolicy
	Metrics     MetricPublisher
	Logger      *slog.Logger
}

// FetchScheduler builds the full cartesian product of entities and days in
// range as fetch tasks and runs them under a global concurrency bound,
// collecting partial results as they complete. Ordering across tasks is
// irrelevant: aggregation groups by entity and time bucket regardless of
// arrival order.
type FetchScheduler struct {
	concurrency int
	retry       external.RetryPolicy
	metrics     MetricPublisher
	logger      *slog.Logger
}

// NewFetchScheduler creates a FetchScheduler with the given configuration.
func NewFetchScheduler(cfg FetchSchedulerConfig) *FetchScheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	retry := cfg.Retry
	if retry.MaxAttempts == 0 {
		retry = external.DefaultRetryPolicy()
	}
	return &FetchScheduler{
		concurrency: concurrency,
		retry:       retry,
		metrics:     cfg.Metrics,
		logger:      logger,
	}
}

// Run fetches all observations for every (entity, day) pair in
// [startDay, endDay] (inclusive calendar-day range) and returns their union.
//
// Failure semantics:
//   - Invalid date range or empty entity list: hard error (caller bug).
//   - Failed authentication: hard error, no task is submitted (fail-fast).
//   - A task that exhausts its retries: dropped with a logged warning; it
//     never aborts sibling tasks.
//   - Zero successful rows: an explicitly-empty batch, not an error.
func (s *FetchScheduler) Run(ctx context.Context, client VendorClient, startDay, endDay time.Time) (types.RawBatch, error) {
	start := startDay.UTC().Truncate(24 * time.Hour)
	end := endDay.UTC().Truncate(24 * time.Hour)
	if end.Before(start) {
		return types.RawBatch{}, types.NewAppError(
			types.ErrCodeValidationDateRange,
			fmt.Sprintf("end day %s precedes start day %s", end.Format(time.DateOnly), start.Format(time.DateOnly)),
			nil,
		)
	}

	entities := client.ListEntities()
	if len(entities) == 0 {
		return types.RawBatch{}, types.NewAppError(
			types.ErrCodeValidationNoEntities,
			fmt.Sprintf("vendor %s has no configured entities", client.Name()),
			nil,
		)
	}

	runID := uuid.NewString()
	ctx = types.WithRunID(ctx, runID)
	began := time.Now()

	logger := s.logger.With(
		"vendor", string(client.Name()),
		"run_id", runID,
	)

	// Acquire credentials once, before any task exists. A failure here
	// cancels the whole run for this client.
	if err := client.Authenticate(ctx); err != nil {
		logger.ErrorContext(ctx, "authentication failed; cancelling run", "error", err)
		return types.RawBatch{}, err
	}

	var tasks []fetchTask
	for _, entity := range entities {
		for day := start; !day.After(end); day = day.Add(24 * time.Hour) {
			tasks = append(tasks, fetchTask{entity: entity, day: day})
		}
	}

	logger.InfoContext(ctx, "fetch run starting",
		"entities", len(entities),
		"days", len(tasks)/len(entities),
		"tasks", len(tasks),
		"concurrency", s.concurrency,
	)

	// All tasks are submitted at once; SetLimit bounds how many execute
	// simultaneously. The mutex-guarded sink is the only shared mutable
	// state besides the errgroup's limiter.
	var (
		mu        sync.Mutex
		rows      []types.RawObservation
		succeeded int
		failed    int
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, task := range tasks {
		task := task

		g.Go(func() error {
			var taskRows []types.RawObservation
			err := external.Retry(gCtx, s.retry, func(attemptCtx context.Context) error {
				fetched, fetchErr := client.FetchDay(attemptCtx, task.entity.ID, task.day)
				if fetchErr != nil {
					return fetchErr
				}
				taskRows = fetched
				return nil
			})
			if err != nil {
				logger.WarnContext(gCtx, "fetch task dropped",
					"entity_id", task.entity.ID,
					"day", task.day.Format(time.DateOnly),
					"error", err,
				)
				mu.Lock()
				failed++
				mu.Unlock()
				// Failures are data at this layer, not errors: returning nil
				// keeps sibling tasks running.
				return nil
			}

			mu.Lock()
			rows = append(rows, taskRows...)
			succeeded++
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Tasks swallow their own failures; the only error path left is
		// context cancellation.
		return types.RawBatch{}, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"fetch run aborted",
			err,
		)
	}

	stats := RunStats{
		RunID:          runID,
		TasksSucceeded: succeeded,
		TasksFailed:    failed,
		Rows:           len(rows),
		Duration:       time.Since(began),
	}

	if s.metrics != nil {
		s.metrics.PublishRunStats(ctx, client.Name(), stats)
	}

	logger.InfoContext(ctx, "fetch run complete",
		"tasks_succeeded", succeeded,
		"tasks_failed", failed,
		"rows", len(rows),
		"duration_ms", stats.Duration.Milliseconds(),
	)

	return types.RawBatch{
		Rows:           rows,
		TasksSucceeded: succeeded,
		TasksFailed:    failed,
	}, nil
}
