package api

import (
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// CreateJobRequest is the POST /api/scheduler/jobs body.
type CreateJobRequest struct {
	Symbol        string         `json:"symbol"         binding:"required"`
	AssetType     string         `json:"asset_type"     binding:"required"`
	TriggerType   string         `json:"trigger_type"   binding:"required"`
	TriggerConfig map[string]any `json:"trigger_config" binding:"required"`

	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	CollectorKwargs map[string]any `json:"collector_kwargs,omitempty"`
	AssetMetadata   map[string]any `json:"asset_metadata,omitempty"`

	JobID                  string   `json:"job_id,omitempty"`
	MaxRetries             *int     `json:"max_retries,omitempty"`
	RetryDelaySeconds      *int     `json:"retry_delay_seconds,omitempty"`
	RetryBackoffMultiplier *float64 `json:"retry_backoff_multiplier,omitempty"`
}

// toJob builds the domain job. Absent retry fields get the documented
// defaults; explicit values pass through, including zero.
func (r *CreateJobRequest) toJob() *domain.ScheduledJob {
	job := &domain.ScheduledJob{
		ID:              r.JobID,
		Symbol:          r.Symbol,
		AssetType:       domain.AssetType(r.AssetType),
		TriggerType:     domain.TriggerType(r.TriggerType),
		TriggerConfig:   r.TriggerConfig,
		StartDate:       r.StartDate,
		EndDate:         r.EndDate,
		CollectorKwargs: r.CollectorKwargs,

		MaxRetries:             domain.DefaultMaxRetries,
		RetryDelaySeconds:      domain.DefaultRetryDelaySeconds,
		RetryBackoffMultiplier: domain.DefaultRetryBackoff,
	}
	if r.MaxRetries != nil {
		job.MaxRetries = *r.MaxRetries
	}
	if r.RetryDelaySeconds != nil {
		job.RetryDelaySeconds = *r.RetryDelaySeconds
	}
	if r.RetryBackoffMultiplier != nil {
		job.RetryBackoffMultiplier = *r.RetryBackoffMultiplier
	}
	return job
}

// UpdateJobRequest is the PATCH /api/scheduler/jobs/{id} body. Only
// present fields are applied.
type UpdateJobRequest struct {
	Symbol          *string        `json:"symbol,omitempty"`
	TriggerConfig   map[string]any `json:"trigger_config,omitempty"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	CollectorKwargs map[string]any `json:"collector_kwargs,omitempty"`

	MaxRetries             *int     `json:"max_retries,omitempty"`
	RetryDelaySeconds      *int     `json:"retry_delay_seconds,omitempty"`
	RetryBackoffMultiplier *float64 `json:"retry_backoff_multiplier,omitempty"`
}

// apply merges the patch into an existing job.
func (r *UpdateJobRequest) apply(job *domain.ScheduledJob) {
	if r.Symbol != nil {
		job.Symbol = *r.Symbol
	}
	if r.TriggerConfig != nil {
		job.TriggerConfig = r.TriggerConfig
	}
	if r.StartDate != nil {
		job.StartDate = r.StartDate
	}
	if r.EndDate != nil {
		job.EndDate = r.EndDate
	}
	if r.CollectorKwargs != nil {
		job.CollectorKwargs = r.CollectorKwargs
	}
	if r.MaxRetries != nil {
		job.MaxRetries = *r.MaxRetries
	}
	if r.RetryDelaySeconds != nil {
		job.RetryDelaySeconds = *r.RetryDelaySeconds
	}
	if r.RetryBackoffMultiplier != nil {
		job.RetryBackoffMultiplier = *r.RetryBackoffMultiplier
	}
}

// ValidateParamsRequest is the POST /api/collectors/validate body.
type ValidateParamsRequest struct {
	AssetType string         `json:"asset_type" binding:"required"`
	Symbol    string         `json:"symbol"     binding:"required"`
	Kwargs    map[string]any `json:"kwargs,omitempty"`
}
