package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// TimeSeriesRepository writes canonical rows into the per-asset-type
// time-series tables and answers coverage queries for the incremental
// tracker.
type TimeSeriesRepository struct {
	db *sqlx.DB
}

// NewTimeSeriesRepository creates a new time-series repository.
func NewTimeSeriesRepository(db *sqlx.DB) *TimeSeriesRepository {
	return &TimeSeriesRepository{db: db}
}

// Upsert writes rows into the named table inside one transaction,
// overwriting on (asset_id, time) conflicts so re-collection is
// idempotent. Returns the number of rows written.
func (r *TimeSeriesRepository) Upsert(ctx context.Context, table string, rows []domain.SeriesRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	query, err := upsertQuery(table)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	written := 0
	for i := range rows {
		if _, execErr := tx.ExecContext(ctx, query, upsertArgs(table, &rows[i])...); execErr != nil {
			tx.Rollback()
			return 0, fmt.Errorf("failed to upsert row into %s: %w", table, execErr)
		}
		written++
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", commitErr)
	}

	return written, nil
}

// MaxTime returns the latest stored timestamp for the asset in the
// named table, or (zero, false) when no rows exist yet.
func (r *TimeSeriesRepository) MaxTime(ctx context.Context, table string, assetID int64) (time.Time, bool, error) {
	if !validTable(table) {
		return time.Time{}, false, fmt.Errorf("unknown time-series table: %s", table)
	}

	var maxTime sql.NullTime
	query := fmt.Sprintf(`SELECT MAX(time) FROM %s WHERE asset_id = $1`, table)

	if err := r.db.QueryRowContext(ctx, query, assetID).Scan(&maxTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("failed to query max time for %s: %w", table, err)
	}

	if !maxTime.Valid {
		return time.Time{}, false, nil
	}

	return maxTime.Time, true, nil
}

func validTable(table string) bool {
	switch table {
	case domain.TableMarketData, domain.TableForexRates, domain.TableBondRates, domain.TableEconomicData:
		return true
	default:
		return false
	}
}

func upsertQuery(table string) (string, error) {
	switch table {
	case domain.TableMarketData:
		return `
			INSERT INTO market_data (time, asset_id, open, high, low, close, volume)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (asset_id, time) DO UPDATE
			SET open = EXCLUDED.open, high = EXCLUDED.high, low = EXCLUDED.low,
			    close = EXCLUDED.close, volume = EXCLUDED.volume`, nil
	case domain.TableForexRates:
		return `
			INSERT INTO forex_rates (time, asset_id, rate)
			VALUES ($1, $2, $3)
			ON CONFLICT (asset_id, time) DO UPDATE SET rate = EXCLUDED.rate`, nil
	case domain.TableBondRates:
		return `
			INSERT INTO bond_rates (time, asset_id, rate)
			VALUES ($1, $2, $3)
			ON CONFLICT (asset_id, time) DO UPDATE SET rate = EXCLUDED.rate`, nil
	case domain.TableEconomicData:
		return `
			INSERT INTO economic_data (time, asset_id, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (asset_id, time) DO UPDATE SET value = EXCLUDED.value`, nil
	default:
		return "", fmt.Errorf("unknown time-series table: %s", table)
	}
}

func upsertArgs(table string, row *domain.SeriesRow) []any {
	switch table {
	case domain.TableMarketData:
		return []any{row.Time, row.AssetID, row.Open, row.High, row.Low, row.Close, row.Volume}
	case domain.TableForexRates, domain.TableBondRates:
		return []any{row.Time, row.AssetID, row.Rate}
	default:
		return []any{row.Time, row.AssetID, row.Value}
	}
}
