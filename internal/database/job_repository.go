package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

const jobColumns = `
	id, symbol, asset_type, trigger_type, trigger_config,
	start_date, end_date, collector_kwargs, status,
	max_retries, retry_delay_seconds, retry_backoff_multiplier,
	created_at, updated_at, last_run_at, next_run_at
`

// JobRepository handles database operations for scheduled jobs.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository creates a new job repository.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create inserts a new job. Returns domain.ErrDuplicateJobID when the
// ID is already taken.
func (r *JobRepository) Create(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
		INSERT INTO scheduled_jobs (
			id, symbol, asset_type, trigger_type, trigger_config,
			start_date, end_date, collector_kwargs, status,
			max_retries, retry_delay_seconds, retry_backoff_multiplier, next_run_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		job.ID,
		job.Symbol,
		job.AssetType,
		job.TriggerType,
		&job.TriggerConfig,
		job.StartDate,
		job.EndDate,
		&job.CollectorKwargs,
		job.Status,
		job.MaxRetries,
		job.RetryDelaySeconds,
		job.RetryBackoffMultiplier,
		job.NextRunAt,
	).Scan(&job.CreatedAt, &job.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return domain.ErrDuplicateJobID
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID. Returns domain.ErrJobNotFound
// when no row exists.
func (r *JobRepository) GetByID(ctx context.Context, id string) (*domain.ScheduledJob, error) {
	var job domain.ScheduledJob
	query := `SELECT ` + jobColumns + ` FROM scheduled_jobs WHERE id = $1`

	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// List retrieves jobs with optional status filtering, newest first.
func (r *JobRepository) List(ctx context.Context, status string, limit, offset int) ([]*domain.ScheduledJob, error) {
	var jobs []*domain.ScheduledJob
	var query string
	var args []any

	if status != "" {
		query = `SELECT ` + jobColumns + `
			FROM scheduled_jobs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		args = []any{status, limit, offset}
	} else {
		query = `SELECT ` + jobColumns + `
			FROM scheduled_jobs
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2`
		args = []any{limit, offset}
	}

	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*domain.ScheduledJob{}
	}

	return jobs, nil
}

// ListForStartup loads jobs the scheduler owns at boot: everything
// not yet completed or terminally failed.
func (r *JobRepository) ListForStartup(ctx context.Context) ([]*domain.ScheduledJob, error) {
	var jobs []*domain.ScheduledJob
	query := `SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE status IN ($1, $2, $3)
		ORDER BY created_at`

	err := r.db.SelectContext(ctx, &jobs, query,
		domain.JobStatusActive, domain.JobStatusPending, domain.JobStatusPaused)
	if err != nil {
		return nil, fmt.Errorf("failed to load jobs for startup: %w", err)
	}

	return jobs, nil
}

// DueJobs returns active jobs whose next_run_at has arrived.
func (r *JobRepository) DueJobs(ctx context.Context, now time.Time) ([]*domain.ScheduledJob, error) {
	var jobs []*domain.ScheduledJob
	query := `SELECT ` + jobColumns + `
		FROM scheduled_jobs
		WHERE status = $1 AND next_run_at IS NOT NULL AND next_run_at <= $2
		ORDER BY next_run_at`

	if err := r.db.SelectContext(ctx, &jobs, query, domain.JobStatusActive, now); err != nil {
		return nil, fmt.Errorf("failed to list due jobs: %w", err)
	}

	return jobs, nil
}

// Update rewrites a job's mutable definition fields.
func (r *JobRepository) Update(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
		UPDATE scheduled_jobs
		SET symbol = $1, asset_type = $2, trigger_type = $3, trigger_config = $4,
		    start_date = $5, end_date = $6, collector_kwargs = $7, status = $8,
		    max_retries = $9, retry_delay_seconds = $10, retry_backoff_multiplier = $11,
		    last_run_at = $12, next_run_at = $13, updated_at = NOW()
		WHERE id = $14
	`

	result, err := r.db.ExecContext(
		ctx,
		query,
		job.Symbol,
		job.AssetType,
		job.TriggerType,
		&job.TriggerConfig,
		job.StartDate,
		job.EndDate,
		&job.CollectorKwargs,
		job.Status,
		job.MaxRetries,
		job.RetryDelaySeconds,
		job.RetryBackoffMultiplier,
		job.LastRunAt,
		job.NextRunAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	return requireRow(result, job.ID)
}

// UpdateRunState atomically persists a job's status, last_run_at and
// next_run_at after an execution attempt.
func (r *JobRepository) UpdateRunState(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
		UPDATE scheduled_jobs
		SET status = $1, last_run_at = $2, next_run_at = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, job.Status, job.LastRunAt, job.NextRunAt, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job run state: %w", err)
	}

	return requireRow(result, job.ID)
}

// Delete removes a job and, via cascading foreign keys, its execution
// history.
func (r *JobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scheduled_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return requireRow(result, id)
}

// CountByStatus returns job counts grouped by status.
func (r *JobRepository) CountByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM scheduled_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", scanErr)
		}
		counts[status] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate job counts: %w", rowsErr)
	}

	return counts, nil
}

// CountByStatusAndType returns job counts grouped by status and asset
// type, for the per-asset-type gauges.
func (r *JobRepository) CountByStatusAndType(ctx context.Context) (map[string]map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, asset_type, COUNT(*) FROM scheduled_jobs GROUP BY status, asset_type`)
	if err != nil {
		return nil, fmt.Errorf("failed to count jobs by type: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]map[string]int)
	for rows.Next() {
		var status, assetType string
		var count int
		if scanErr := rows.Scan(&status, &assetType, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan job count: %w", scanErr)
		}
		if counts[status] == nil {
			counts[status] = make(map[string]int)
		}
		counts[status][assetType] = count
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate job counts: %w", rowsErr)
	}

	return counts, nil
}

// requireRow converts a zero-rows-affected result into ErrJobNotFound.
func requireRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return nil
}
