package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

const executionColumns = `
	id, job_id, log_id, status, started_at, completed_at,
	error_message, error_category, execution_time_ms, attempt, created_at
`

// ExecutionRepository handles database operations for job executions.
type ExecutionRepository struct {
	db *sqlx.DB
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(db *sqlx.DB) *ExecutionRepository {
	return &ExecutionRepository{db: db}
}

// Create inserts an execution row in running state before the attempt
// begins, so a crash mid-run still leaves a durable record.
func (r *ExecutionRepository) Create(ctx context.Context, exec *domain.JobExecution) error {
	query := `
		INSERT INTO job_executions (id, job_id, status, started_at, attempt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		exec.ID, exec.JobID, exec.Status, exec.StartedAt, exec.Attempt,
	).Scan(&exec.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create execution: %w", err)
	}

	return nil
}

// Finish moves an execution to its terminal (or retrying) status,
// recording the outcome and timing.
func (r *ExecutionRepository) Finish(ctx context.Context, exec *domain.JobExecution) error {
	query := `
		UPDATE job_executions
		SET status = $1, completed_at = $2, log_id = $3,
		    error_message = $4, error_category = $5, execution_time_ms = $6
		WHERE id = $7
	`

	result, err := r.db.ExecContext(
		ctx, query,
		exec.Status, exec.CompletedAt, exec.LogID,
		exec.ErrorMessage, exec.ErrorCategory, exec.ExecutionTimeMs,
		exec.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish execution: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("execution not found: %s", exec.ID)
	}

	return nil
}

// ListByJob returns executions for a job, newest first.
func (r *ExecutionRepository) ListByJob(ctx context.Context, jobID string, limit int) ([]*domain.JobExecution, error) {
	var executions []*domain.JobExecution
	query := `SELECT ` + executionColumns + `
		FROM job_executions
		WHERE job_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	if err := r.db.SelectContext(ctx, &executions, query, jobID, limit); err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	if executions == nil {
		executions = []*domain.JobExecution{}
	}

	return executions, nil
}

// RecoverAbandoned finalizes executions left in running state by a
// previous process, marking them failed. Returns the number of rows
// recovered.
func (r *ExecutionRepository) RecoverAbandoned(ctx context.Context, olderThan time.Time) (int64, error) {
	query := `
		UPDATE job_executions
		SET status = $1, completed_at = NOW(),
		    error_message = 'execution abandoned at restart', error_category = $2
		WHERE status = $3 AND started_at < $4
	`

	result, err := r.db.ExecContext(
		ctx, query,
		domain.ExecutionStatusFailed, string(domain.ErrorCategoryUnknown),
		domain.ExecutionStatusRunning, olderThan,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to recover abandoned executions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// Stats aggregates execution counters for the stats endpoint.
func (r *ExecutionRepository) Stats(ctx context.Context) (total, completedToday, failedToday int64, avgDurationMs float64, err error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = $1 AND completed_at >= date_trunc('day', NOW())) AS completed_today,
			COUNT(*) FILTER (WHERE status = $2 AND completed_at >= date_trunc('day', NOW())) AS failed_today,
			COALESCE(AVG(execution_time_ms), 0) AS avg_duration_ms
		FROM job_executions
	`

	row := r.db.QueryRowContext(ctx, query, domain.ExecutionStatusCompleted, domain.ExecutionStatusFailed)
	if scanErr := row.Scan(&total, &completedToday, &failedToday, &avgDurationMs); scanErr != nil {
		return 0, 0, 0, 0, fmt.Errorf("failed to aggregate execution stats: %w", scanErr)
	}

	return total, completedToday, failedToday, avgDurationMs, nil
}
