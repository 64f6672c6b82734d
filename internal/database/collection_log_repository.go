package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// CollectionLogRepository handles database operations for collection
// logs.
type CollectionLogRepository struct {
	db *sqlx.DB
}

// NewCollectionLogRepository creates a new collection log repository.
func NewCollectionLogRepository(db *sqlx.DB) *CollectionLogRepository {
	return &CollectionLogRepository{db: db}
}

// Create inserts a collection log row and populates its ID.
func (r *CollectionLogRepository) Create(ctx context.Context, log *domain.CollectionLog) error {
	query := `
		INSERT INTO collection_logs (
			asset_id, collector_type, start_date, end_date,
			records_collected, status, error_message, execution_time_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx, query,
		log.AssetID, log.CollectorType, log.StartDate, log.EndDate,
		log.RecordsCollected, log.Status, log.ErrorMessage, log.ExecutionTimeMs,
	).Scan(&log.ID, &log.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection log: %w", err)
	}

	return nil
}

// List returns recent collection logs, newest first. An empty status
// means no filter.
func (r *CollectionLogRepository) List(ctx context.Context, status string, limit int) ([]*domain.CollectionLog, error) {
	var logs []*domain.CollectionLog
	var query string
	var args []any

	if status != "" {
		query = `
			SELECT id, asset_id, collector_type, start_date, end_date,
			       records_collected, status, error_message, execution_time_ms, created_at
			FROM collection_logs
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2`
		args = []any{status, limit}
	} else {
		query = `
			SELECT id, asset_id, collector_type, start_date, end_date,
			       records_collected, status, error_message, execution_time_ms, created_at
			FROM collection_logs
			ORDER BY created_at DESC
			LIMIT $1`
		args = []any{limit}
	}

	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list collection logs: %w", err)
	}

	if logs == nil {
		logs = []*domain.CollectionLog{}
	}

	return logs, nil
}
