package domain

import (
	"time"
)

// Collection log statuses.
const (
	CollectionStatusSuccess = "success"
	CollectionStatusPartial = "partial"
	CollectionStatusEmpty   = "empty"
	CollectionStatusFailed  = "failed"
)

// CollectionLog records one collector invocation and its outcome.
// One row is written per invocation that actually consulted the
// upstream API, plus an `empty` row when the incremental tracker
// short-circuits the call.
type CollectionLog struct {
	ID            int64     `db:"id"             json:"log_id"`
	AssetID       int64     `db:"asset_id"       json:"asset_id"`
	CollectorType string    `db:"collector_type" json:"collector_type"`
	StartDate     time.Time `db:"start_date"     json:"start_date"`
	EndDate       time.Time `db:"end_date"       json:"end_date"`

	RecordsCollected int    `db:"records_collected" json:"records_collected"`
	Status           string `db:"status"            json:"status"`

	ErrorMessage    *string `db:"error_message"     json:"error_message,omitempty"`
	ExecutionTimeMs *int64  `db:"execution_time_ms" json:"execution_time_ms,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
