package domain

import (
	"time"
)

// Execution statuses.
const (
	ExecutionStatusRunning   = "running"
	ExecutionStatusCompleted = "completed"
	ExecutionStatusFailed    = "failed"
	ExecutionStatusRetrying  = "retrying"
)

// JobExecution represents a single attempt to run a scheduled job.
// Retries yield distinct executions. Rows are never mutated after
// reaching a terminal status.
type JobExecution struct {
	ID    string `db:"id"     json:"execution_id"`
	JobID string `db:"job_id" json:"job_id"`

	// LogID links to the CollectionLog written for this attempt, when
	// the collector was actually invoked.
	LogID *int64 `db:"log_id" json:"log_id,omitempty"`

	Status string `db:"status" json:"execution_status"`

	StartedAt   time.Time  `db:"started_at"   json:"started_at"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`

	ErrorMessage  *string `db:"error_message"  json:"error_message,omitempty"`
	ErrorCategory *string `db:"error_category" json:"error_category,omitempty"`

	ExecutionTimeMs *int64 `db:"execution_time_ms" json:"execution_time_ms,omitempty"`

	// Attempt is 1-based; retries increment it.
	Attempt int `db:"attempt" json:"attempt"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// SchedulerStats represents aggregate scheduler statistics.
type SchedulerStats struct {
	TotalJobs       int     `json:"total_jobs"`
	ActiveJobs      int     `json:"active_jobs"`
	PausedJobs      int     `json:"paused_jobs"`
	PendingJobs     int     `json:"pending_jobs"`
	CompletedJobs   int     `json:"completed_jobs"`
	FailedJobs      int     `json:"failed_jobs"`
	TotalExecutions int64   `json:"total_executions"`
	CompletedToday  int64   `json:"completed_today"`
	FailedToday     int64   `json:"failed_today"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDurationMs   float64 `json:"average_duration_ms"`
}
