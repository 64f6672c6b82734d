package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// AssetRepository handles database operations for assets.
type AssetRepository struct {
	db *sqlx.DB
}

// NewAssetRepository creates a new asset repository.
func NewAssetRepository(db *sqlx.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// GetOrCreate idempotently resolves (symbol, asset_type) to an asset,
// creating the row on first sight. Metadata is merged on
// re-resolution: new keys added, existing keys overwritten.
func (r *AssetRepository) GetOrCreate(
	ctx context.Context,
	symbol string,
	assetType domain.AssetType,
	metadata domain.JSONBMap,
) (*domain.Asset, error) {
	existing, err := r.getBySymbol(ctx, symbol, assetType)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to look up asset: %w", err)
	}

	if existing != nil {
		if len(metadata) == 0 {
			return existing, nil
		}
		existing.Metadata = existing.Metadata.Merge(metadata)
		if updateErr := r.updateMetadata(ctx, existing); updateErr != nil {
			return nil, updateErr
		}
		return existing, nil
	}

	// Upsert by (symbol, asset_type) so concurrent first sights of the
	// same asset resolve to one row.
	query := `
		INSERT INTO assets (symbol, asset_type, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (symbol, asset_type)
		DO UPDATE SET metadata = assets.metadata || EXCLUDED.metadata, updated_at = NOW()
		RETURNING id, symbol, asset_type, metadata, created_at, updated_at
	`

	meta := metadata
	if meta == nil {
		meta = domain.JSONBMap{}
	}

	var asset domain.Asset
	if err := r.db.GetContext(ctx, &asset, query, symbol, assetType, &meta); err != nil {
		return nil, fmt.Errorf("failed to create asset: %w", err)
	}

	return &asset, nil
}

// GetByID retrieves an asset by its surrogate ID.
func (r *AssetRepository) GetByID(ctx context.Context, id int64) (*domain.Asset, error) {
	var asset domain.Asset
	query := `
		SELECT id, symbol, asset_type, metadata, created_at, updated_at
		FROM assets
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &asset, query, id); err != nil {
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return &asset, nil
}

func (r *AssetRepository) getBySymbol(
	ctx context.Context, symbol string, assetType domain.AssetType,
) (*domain.Asset, error) {
	var asset domain.Asset
	query := `
		SELECT id, symbol, asset_type, metadata, created_at, updated_at
		FROM assets
		WHERE symbol = $1 AND asset_type = $2
	`
	if err := r.db.GetContext(ctx, &asset, query, symbol, assetType); err != nil {
		return nil, err
	}
	return &asset, nil
}

func (r *AssetRepository) updateMetadata(ctx context.Context, asset *domain.Asset) error {
	query := `UPDATE assets SET metadata = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, &asset.Metadata, asset.ID); err != nil {
		return fmt.Errorf("failed to update asset metadata: %w", err)
	}
	return nil
}
