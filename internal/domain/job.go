package domain

import (
	"errors"
	"fmt"
	"time"
)

// TriggerType distinguishes calendar (cron) from fixed-interval jobs.
type TriggerType string

// Supported trigger types.
const (
	TriggerTypeCron     TriggerType = "cron"
	TriggerTypeInterval TriggerType = "interval"
)

// Job statuses.
const (
	JobStatusPending   = "pending"
	JobStatusActive    = "active"
	JobStatusPaused    = "paused"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Retry policy defaults.
const (
	DefaultMaxRetries        = 3
	DefaultRetryDelaySeconds = 60
	DefaultRetryBackoff      = 2.0
	MaxJobIDLength           = 255
	MaxSymbolLength          = 100
)

// CronConfig is the field-wise cron trigger configuration. Each set
// field is a wildcard (*), a literal, a comma-list, or a step (*/n).
// Unset fields follow standard cron-field defaulting relative to the
// smallest set field.
type CronConfig struct {
	Year      string `json:"year,omitempty"`
	Month     string `json:"month,omitempty"`
	Day       string `json:"day,omitempty"`
	Week      string `json:"week,omitempty"`
	DayOfWeek string `json:"day_of_week,omitempty"`
	Hour      string `json:"hour,omitempty"`
	Minute    string `json:"minute,omitempty"`
	Second    string `json:"second,omitempty"`
}

// IntervalConfig is the fixed-interval trigger configuration. Missing
// fields count as zero; the summed period must be positive.
type IntervalConfig struct {
	Weeks   int `json:"weeks,omitempty"`
	Days    int `json:"days,omitempty"`
	Hours   int `json:"hours,omitempty"`
	Minutes int `json:"minutes,omitempty"`
	Seconds int `json:"seconds,omitempty"`

	// ExecuteNow forces an immediate first fire regardless of the
	// job's start_date.
	ExecuteNow bool `json:"execute_now,omitempty"`
}

// Period returns the summed interval duration.
func (c IntervalConfig) Period() time.Duration {
	const hoursPerDay = 24
	const daysPerWeek = 7
	return time.Duration(c.Weeks)*daysPerWeek*hoursPerDay*time.Hour +
		time.Duration(c.Days)*hoursPerDay*time.Hour +
		time.Duration(c.Hours)*time.Hour +
		time.Duration(c.Minutes)*time.Minute +
		time.Duration(c.Seconds)*time.Second
}

// ErrZeroInterval is returned when an interval config sums to zero.
var ErrZeroInterval = errors.New("interval must be positive")

// Validate checks the interval configuration.
func (c IntervalConfig) Validate() error {
	if c.Period() <= 0 {
		return ErrZeroInterval
	}
	return nil
}

// ScheduledJob is a durable job definition. Each job collects market
// data for one (symbol, asset_type) on a cron or interval schedule.
type ScheduledJob struct {
	ID          string      `db:"id"           json:"job_id"`
	Symbol      string      `db:"symbol"       json:"symbol"`
	AssetType   AssetType   `db:"asset_type"   json:"asset_type"`
	TriggerType TriggerType `db:"trigger_type" json:"trigger_type"`

	// TriggerConfig holds the CronConfig or IntervalConfig shape
	// depending on TriggerType.
	TriggerConfig JSONBMap `db:"trigger_config" json:"trigger_config"`

	// StartDate/EndDate override the collection window. When absent
	// the window is computed fresh at execution time.
	StartDate *time.Time `db:"start_date" json:"start_date,omitempty"`
	EndDate   *time.Time `db:"end_date"   json:"end_date,omitempty"`

	CollectorKwargs JSONBMap `db:"collector_kwargs" json:"collector_kwargs,omitempty"`

	Status string `db:"status" json:"status"`

	MaxRetries             int     `db:"max_retries"              json:"max_retries"`
	RetryDelaySeconds      int     `db:"retry_delay_seconds"      json:"retry_delay_seconds"`
	RetryBackoffMultiplier float64 `db:"retry_backoff_multiplier" json:"retry_backoff_multiplier"`

	CreatedAt time.Time  `db:"created_at"  json:"created_at"`
	UpdatedAt time.Time  `db:"updated_at"  json:"updated_at"`
	LastRunAt *time.Time `db:"last_run_at" json:"last_run_at,omitempty"`
	NextRunAt *time.Time `db:"next_run_at" json:"next_run_at,omitempty"`
}

// CronTrigger decodes the trigger config as a cron field record.
func (j *ScheduledJob) CronTrigger() (CronConfig, error) {
	var cfg CronConfig
	if err := decodeJSONBMap(j.TriggerConfig, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid cron trigger config: %w", err)
	}
	return cfg, nil
}

// IntervalTrigger decodes the trigger config as an interval record.
func (j *ScheduledJob) IntervalTrigger() (IntervalConfig, error) {
	var cfg IntervalConfig
	if err := decodeJSONBMap(j.TriggerConfig, &cfg); err != nil {
		return cfg, fmt.Errorf("invalid interval trigger config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// IsOneShot reports whether the job's trigger has a bounded end: an
// interval trigger with end_date set, which stops firing once the
// next fire time would exceed it.
func (j *ScheduledJob) IsOneShot() bool {
	return j.TriggerType == TriggerTypeInterval && j.EndDate != nil
}

// Validate checks the structural invariants of a job definition.
func (j *ScheduledJob) Validate() error {
	if j.Symbol == "" {
		return errors.New("symbol is required")
	}
	if len(j.Symbol) > MaxSymbolLength {
		return fmt.Errorf("symbol exceeds %d characters", MaxSymbolLength)
	}
	if len(j.ID) > MaxJobIDLength {
		return fmt.Errorf("job_id exceeds %d characters", MaxJobIDLength)
	}
	if !j.AssetType.IsValid() {
		return fmt.Errorf("unknown asset_type: %s", j.AssetType)
	}
	switch j.TriggerType {
	case TriggerTypeCron:
		if _, err := j.CronTrigger(); err != nil {
			return err
		}
	case TriggerTypeInterval:
		if _, err := j.IntervalTrigger(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trigger_type: %s", j.TriggerType)
	}
	if j.StartDate != nil && j.EndDate != nil && j.EndDate.Before(*j.StartDate) {
		return errors.New("end_date must not precede start_date")
	}
	if j.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if j.RetryDelaySeconds < 0 {
		return errors.New("retry_delay_seconds must not be negative")
	}
	return nil
}
