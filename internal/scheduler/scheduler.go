// Package scheduler owns the durable job registry and the tick loop
// that fires due jobs, applies retry policy, and records outcomes.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/config"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/events"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/ingest"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/trigger"
)

// gaugeRefreshTicks spaces out the per-asset-type gauge refresh; the
// counts come from the store and need not be recomputed every second.
const gaugeRefreshTicks = 15

// Errors surfaced to the API layer.
var (
	// ErrJobInFlight is returned when a manual trigger races an
	// execution already running for the same job.
	ErrJobInFlight = errors.New("job execution already in flight")

	// ErrPoolSaturated is returned when no worker slot is free.
	ErrPoolSaturated = errors.New("worker pool saturated")

	// ErrInvalidJob wraps job definition validation failures so the
	// API layer can answer 400 instead of 500.
	ErrInvalidJob = errors.New("invalid job definition")
)

// ingestEngine runs one collection and never returns a Go error.
type ingestEngine interface {
	Ingest(ctx context.Context, req ingest.Request) ingest.Outcome
}

// jobStore is the persistence surface for job definitions.
type jobStore interface {
	Create(ctx context.Context, job *domain.ScheduledJob) error
	GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error)
	List(ctx context.Context, status string, limit, offset int) ([]*domain.ScheduledJob, error)
	ListForStartup(ctx context.Context) ([]*domain.ScheduledJob, error)
	DueJobs(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error)
	Update(ctx context.Context, job *domain.ScheduledJob) error
	UpdateRunState(ctx context.Context, job *domain.ScheduledJob) error
	Delete(ctx context.Context, id string) error
	CountByStatus(ctx context.Context) (map[string]int, error)
	CountByStatusAndType(ctx context.Context) (map[string]map[string]int, error)
}

// executionStore is the persistence surface for execution history.
type executionStore interface {
	Create(ctx context.Context, exec *domain.JobExecution) error
	Finish(ctx context.Context, exec *domain.JobExecution) error
	ListByJob(ctx context.Context, jobID string, limit int) ([]*domain.JobExecution, error)
	RecoverAbandoned(ctx context.Context, olderThan time.Time) (int64, error)
	Stats(ctx context.Context) (total, completedToday, failedToday int64, avgDurationMs float64, err error)
}

// Scheduler is the single-leader scheduling engine.
type Scheduler struct {
	jobs      jobStore
	execs     executionStore
	engine    ingestEngine
	evaluator *trigger.Evaluator
	bus       *events.Bus
	metrics   *Metrics
	cfg       config.SchedulerConfig

	// collectorTimeout bounds a collector call; also the staleness
	// threshold for abandoned-execution recovery.
	collectorTimeout time.Duration

	logger logger.Interface
	now    func() time.Time

	mu       sync.Mutex
	inFlight map[string]bool
	workers  chan struct{}
	wg       sync.WaitGroup

	// runCtx is the scheduler's lifecycle context, set at Start.
	// Manual triggers execute on it so a run is never tied to the
	// lifetime of the HTTP request that fired it.
	runCtx context.Context
}

// New wires a scheduler.
func New(
	jobs jobStore,
	execs executionStore,
	engine ingestEngine,
	evaluator *trigger.Evaluator,
	bus *events.Bus,
	metrics *Metrics,
	cfg config.SchedulerConfig,
	collectorTimeout time.Duration,
	log logger.Interface,
) *Scheduler {
	return &Scheduler{
		jobs:             jobs,
		execs:            execs,
		engine:           engine,
		evaluator:        evaluator,
		bus:              bus,
		metrics:          metrics,
		cfg:              cfg,
		collectorTimeout: collectorTimeout,
		logger:           log.WithComponent("scheduler"),
		now:              time.Now,
		inFlight:         make(map[string]bool),
		workers:          make(chan struct{}, cfg.WorkerPoolSize),
		runCtx:           context.Background(),
	}
}

// Start recovers abandoned executions, reloads the job registry, and
// launches the tick loop. The loop stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.runCtx = ctx
	s.mu.Unlock()

	now := s.now().UTC()

	recovered, err := s.execs.RecoverAbandoned(ctx, now.Add(-s.collectorTimeout))
	if err != nil {
		return err
	}
	if recovered > 0 {
		s.logger.Warn("recovered abandoned executions", "count", recovered)
	}

	jobs, err := s.jobs.ListForStartup(ctx)
	if err != nil {
		return err
	}
	for _, job := range jobs {
		if restoreErr := s.restoreJob(ctx, job, now); restoreErr != nil {
			s.logger.Error("failed to restore job", "job_id", job.ID, "error", restoreErr)
		}
	}
	s.logger.Info("job registry loaded", "jobs", len(jobs))

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// restoreJob recomputes a loaded job's schedule. Jobs due while the
// process was down keep their stored next_run_at and fire immediately
// (at-least-once). Pending jobs are promoted to active.
func (s *Scheduler) restoreJob(ctx context.Context, job *domain.ScheduledJob, now time.Time) error {
	if job.Status == domain.JobStatusPaused {
		return nil
	}

	changed := job.Status == domain.JobStatusPending
	job.Status = domain.JobStatusActive

	if job.NextRunAt == nil {
		if next, ok := s.evaluator.InitialFire(job, now); ok {
			job.NextRunAt = &next
		} else {
			job.Status = domain.JobStatusCompleted
			job.NextRunAt = nil
		}
		changed = true
	}

	if !changed {
		return nil
	}
	return s.jobs.UpdateRunState(ctx, job)
}

// run is the tick loop. It never performs network I/O; due jobs are
// handed to the bounded worker pool.
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	tick := 0
	s.refreshGauges(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatchDue(ctx)
			tick++
			if tick%gaugeRefreshTicks == 0 {
				s.refreshGauges(ctx)
			}
		}
	}
}

func (s *Scheduler) dispatchDue(ctx context.Context) {
	due, err := s.jobs.DueJobs(ctx, s.now().UTC())
	if err != nil {
		s.logger.Error("failed to query due jobs", "error", err)
		return
	}

	for _, job := range due {
		if dispatchErr := s.dispatch(ctx, job); dispatchErr != nil {
			// In-flight or saturated: the job stays due and is retried
			// next tick.
			continue
		}
	}
}

// dispatch hands a job to a worker, guaranteeing at most one
// concurrent execution per job ID.
func (s *Scheduler) dispatch(ctx context.Context, job *domain.ScheduledJob) error {
	s.mu.Lock()
	if s.inFlight[job.ID] {
		s.mu.Unlock()
		return ErrJobInFlight
	}
	select {
	case s.workers <- struct{}{}:
	default:
		s.mu.Unlock()
		return ErrPoolSaturated
	}
	s.inFlight[job.ID] = true
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, job.ID)
			s.mu.Unlock()
			<-s.workers
			s.wg.Done()
		}()
		s.execute(ctx, job)
	}()

	return nil
}

// execute runs attempts for one fire of a job, applying the retry
// policy between failed attempts.
func (s *Scheduler) execute(ctx context.Context, job *domain.ScheduledJob) {
	assetType := string(job.AssetType)

	for attempt := 1; ; attempt++ {
		exec := &domain.JobExecution{
			ID:        uuid.NewString(),
			JobID:     job.ID,
			Status:    domain.ExecutionStatusRunning,
			StartedAt: s.now().UTC(),
			Attempt:   attempt,
		}
		if err := s.execs.Create(ctx, exec); err != nil {
			s.logger.Error("failed to record execution", "job_id", job.ID, "error", err)
			return
		}
		s.bus.Publish(events.JobUpdate(job.ID, domain.ExecutionStatusRunning,
			map[string]any{"attempt": attempt}))

		outcome := s.engine.Ingest(ctx, s.requestFor(job))
		seconds := float64(outcome.ExecutionTimeMs) / 1e3

		if outcome.Status != ingest.OutcomeFailed {
			s.finishExecution(ctx, exec, domain.ExecutionStatusCompleted, &outcome, nil)
			s.metrics.JobExecutionsTotal.WithLabelValues(
				domain.ExecutionStatusCompleted, assetType, "").Inc()
			s.metrics.JobDurationSeconds.WithLabelValues(
				assetType, domain.ExecutionStatusCompleted).Observe(seconds)

			s.advance(ctx, job, true)
			s.bus.Publish(events.JobUpdate(job.ID, job.Status, map[string]any{
				"records_collected": outcome.RecordsCollected,
				"collection_status": outcome.Status,
			}))
			return
		}

		category := outcome.Err.Category
		if category.Retriable() && attempt <= job.MaxRetries {
			s.finishExecution(ctx, exec, domain.ExecutionStatusRetrying, &outcome, outcome.Err)
			s.metrics.JobExecutionsTotal.WithLabelValues(
				domain.ExecutionStatusRetrying, assetType, string(category)).Inc()
			s.metrics.JobRetriesTotal.WithLabelValues(job.ID, assetType).Inc()

			delay := retryDelay(job, attempt)
			s.logger.Warn("attempt failed, retrying",
				"job_id", job.ID,
				"attempt", attempt,
				"category", string(category),
				"retry_in", delay.String())
			s.bus.Publish(events.JobUpdate(job.ID, domain.ExecutionStatusRetrying,
				map[string]any{"attempt": attempt, "retry_in_seconds": delay.Seconds()}))

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		s.finishExecution(ctx, exec, domain.ExecutionStatusFailed, &outcome, outcome.Err)
		s.metrics.JobExecutionsTotal.WithLabelValues(
			domain.ExecutionStatusFailed, assetType, string(category)).Inc()
		s.metrics.JobDurationSeconds.WithLabelValues(
			assetType, domain.ExecutionStatusFailed).Observe(seconds)

		s.advance(ctx, job, false)
		s.bus.Publish(events.JobUpdate(job.ID, job.Status, map[string]any{
			"error_category": string(category),
			"attempts":       attempt,
		}))
		return
	}
}

// requestFor builds the ingestion request. Start/End pass through as
// stored; the engine computes the relative window at call time when
// they are absent.
func (s *Scheduler) requestFor(job *domain.ScheduledJob) ingest.Request {
	return ingest.Request{
		Symbol:          job.Symbol,
		AssetType:       job.AssetType,
		Start:           job.StartDate,
		End:             job.EndDate,
		CollectorKwargs: job.CollectorKwargs,
	}
}

func (s *Scheduler) finishExecution(
	ctx context.Context,
	exec *domain.JobExecution,
	status string,
	outcome *ingest.Outcome,
	failure *domain.IngestError,
) {
	completed := s.now().UTC()
	exec.Status = status
	exec.CompletedAt = &completed
	exec.LogID = outcome.LogID
	exec.ExecutionTimeMs = &outcome.ExecutionTimeMs
	if failure != nil {
		msg := failure.Error()
		category := string(failure.Category)
		exec.ErrorMessage = &msg
		exec.ErrorCategory = &category
	}

	if err := s.execs.Finish(ctx, exec); err != nil {
		s.logger.Error("failed to finalize execution", "execution_id", exec.ID, "error", err)
	}
}

// advance moves the job past this fire: last_run_at is set, and
// next_run_at comes from the trigger. Failures never block future
// runs of a recurring trigger; only one-shot jobs go to failed.
func (s *Scheduler) advance(ctx context.Context, job *domain.ScheduledJob, succeeded bool) {
	now := s.now().UTC()
	job.LastRunAt = &now

	if !succeeded && job.IsOneShot() {
		job.Status = domain.JobStatusFailed
		job.NextRunAt = nil
	} else if next, ok := s.evaluator.NextFire(job, now); ok {
		job.Status = domain.JobStatusActive
		job.NextRunAt = &next
	} else {
		job.Status = domain.JobStatusCompleted
		job.NextRunAt = nil
	}

	if err := s.jobs.UpdateRunState(ctx, job); err != nil {
		s.logger.Error("failed to advance job", "job_id", job.ID, "error", err)
		return
	}
	s.metrics.JobsTotal.WithLabelValues(job.Status, string(job.AssetType)).Inc()
}

// retryDelay is retry_delay * backoff^(attempt-1).
func retryDelay(job *domain.ScheduledJob, attempt int) time.Duration {
	seconds := float64(job.RetryDelaySeconds) * math.Pow(job.RetryBackoffMultiplier, float64(attempt-1))
	return time.Duration(seconds * float64(time.Second))
}

// CreateJob registers a new job. Defaults are applied, the trigger is
// validated, and the first fire time is computed immediately.
func (s *Scheduler) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	// Zero max_retries and retry_delay_seconds are valid explicit
	// choices; the API layer maps absent fields to the defaults. A
	// zero multiplier is never meaningful and is replaced.
	if job.RetryBackoffMultiplier == 0 {
		job.RetryBackoffMultiplier = domain.DefaultRetryBackoff
	}

	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if err := s.evaluator.Validate(job); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	// The creating process is also the scheduler, so new jobs go
	// straight to active; pending is reserved for rows inserted while
	// the daemon is down, which restoreJob promotes at startup.
	if next, ok := s.evaluator.InitialFire(job, now); ok {
		job.Status = domain.JobStatusActive
		job.NextRunAt = &next
	} else {
		job.Status = domain.JobStatusCompleted
		job.NextRunAt = nil
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		return err
	}

	s.metrics.JobsTotal.WithLabelValues(job.Status, string(job.AssetType)).Inc()
	s.bus.Publish(events.JobUpdate(job.ID, job.Status, nil))
	s.logger.Info("job created",
		"job_id", job.ID,
		"symbol", job.Symbol,
		"asset_type", string(job.AssetType),
		"trigger_type", string(job.TriggerType))
	return nil
}

// UpdateJob persists edited job fields and recomputes the schedule
// when the job remains active.
func (s *Scheduler) UpdateJob(ctx context.Context, job *domain.ScheduledJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	if err := s.evaluator.Validate(job); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if job.Status == domain.JobStatusActive {
		if next, ok := s.evaluator.NextFire(job, s.now().UTC()); ok {
			job.NextRunAt = &next
		} else {
			job.Status = domain.JobStatusCompleted
			job.NextRunAt = nil
		}
	}

	return s.jobs.Update(ctx, job)
}

// GetJob fetches one job.
func (s *Scheduler) GetJob(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	return s.jobs.GetByID(ctx, id)
}

// ListJobs lists jobs with optional status filter.
func (s *Scheduler) ListJobs(ctx context.Context, status string, limit, offset int) ([]*domain.ScheduledJob, error) {
	return s.jobs.List(ctx, status, limit, offset)
}

// DeleteJob removes a job and its history.
func (s *Scheduler) DeleteJob(ctx context.Context, id string) error {
	return s.jobs.Delete(ctx, id)
}

// Executions returns a job's execution history, newest first.
func (s *Scheduler) Executions(ctx context.Context, jobID string, limit int) ([]*domain.JobExecution, error) {
	if _, err := s.jobs.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.execs.ListByJob(ctx, jobID, limit)
}

// Trigger fires a job immediately, bypassing next_run_at but honoring
// the in-flight exclusion. ctx scopes only the lookup; the execution
// itself runs on the scheduler's lifecycle context and survives the
// caller's request ending.
func (s *Scheduler) Trigger(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	runCtx := s.runCtx
	s.mu.Unlock()
	return s.dispatch(runCtx, job)
}

// Pause suspends scheduling for a job and clears next_run_at.
func (s *Scheduler) Pause(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	job.Status = domain.JobStatusPaused
	job.NextRunAt = nil
	if err := s.jobs.UpdateRunState(ctx, job); err != nil {
		return nil, err
	}

	s.metrics.JobsTotal.WithLabelValues(job.Status, string(job.AssetType)).Inc()
	s.bus.Publish(events.JobUpdate(job.ID, job.Status, nil))
	return job, nil
}

// Resume reactivates a paused job. Missed fires are skipped: the next
// run is computed from now, with no catch-up.
func (s *Scheduler) Resume(ctx context.Context, jobID string) (*domain.ScheduledJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if next, ok := s.evaluator.InitialFire(job, s.now().UTC()); ok {
		job.Status = domain.JobStatusActive
		job.NextRunAt = &next
	} else {
		job.Status = domain.JobStatusCompleted
		job.NextRunAt = nil
	}
	if err := s.jobs.UpdateRunState(ctx, job); err != nil {
		return nil, err
	}

	s.metrics.JobsTotal.WithLabelValues(job.Status, string(job.AssetType)).Inc()
	s.bus.Publish(events.JobUpdate(job.ID, job.Status, nil))
	return job, nil
}

// Stats aggregates job and execution counters.
func (s *Scheduler) Stats(ctx context.Context) (*domain.SchedulerStats, error) {
	counts, err := s.jobs.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	total, completedToday, failedToday, avgMs, err := s.execs.Stats(ctx)
	if err != nil {
		return nil, err
	}

	stats := &domain.SchedulerStats{
		ActiveJobs:      counts[domain.JobStatusActive],
		PausedJobs:      counts[domain.JobStatusPaused],
		PendingJobs:     counts[domain.JobStatusPending],
		CompletedJobs:   counts[domain.JobStatusCompleted],
		FailedJobs:      counts[domain.JobStatusFailed],
		TotalExecutions: total,
		CompletedToday:  completedToday,
		FailedToday:     failedToday,
		AvgDurationMs:   avgMs,
	}
	for _, n := range counts {
		stats.TotalJobs += n
	}
	if finished := completedToday + failedToday; finished > 0 {
		stats.SuccessRate = float64(completedToday) / float64(finished) * 100
	}

	return stats, nil
}

// refreshGauges updates the per-asset-type job gauges. Called only
// from the tick loop.
func (s *Scheduler) refreshGauges(ctx context.Context) {
	counts, err := s.jobs.CountByStatusAndType(ctx)
	if err != nil {
		s.logger.Error("failed to refresh gauges", "error", err)
		return
	}

	s.metrics.ActiveJobs.Reset()
	s.metrics.PendingJobs.Reset()
	s.metrics.FailedJobs.Reset()

	for assetType, n := range counts[domain.JobStatusActive] {
		s.metrics.ActiveJobs.WithLabelValues(assetType).Set(float64(n))
	}
	for assetType, n := range counts[domain.JobStatusPending] {
		s.metrics.PendingJobs.WithLabelValues(assetType).Set(float64(n))
	}
	for assetType, n := range counts[domain.JobStatusFailed] {
		s.metrics.FailedJobs.WithLabelValues(assetType).Set(float64(n))
	}
}

// Stop waits for in-flight workers up to the shutdown grace period,
// then abandons them. Abandoned executions are finalized on the next
// startup.
func (s *Scheduler) Stop() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped cleanly")
	case <-time.After(s.cfg.ShutdownGrace):
		s.logger.Warn("shutdown grace elapsed, abandoning in-flight executions")
	}
}
