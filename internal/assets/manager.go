// Package assets resolves (symbol, asset_type) pairs to persistent
// asset rows.
package assets

import (
	"context"
	"fmt"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

// repository is the persistence surface the manager needs.
type repository interface {
	GetOrCreate(ctx context.Context, symbol string, assetType domain.AssetType, metadata domain.JSONBMap) (*domain.Asset, error)
	GetByID(ctx context.Context, id int64) (*domain.Asset, error)
}

// Manager provides idempotent asset resolution with persistence-error
// classification.
type Manager struct {
	repo   repository
	logger logger.Interface
}

// NewManager creates an asset manager.
func NewManager(repo repository, log logger.Interface) *Manager {
	return &Manager{repo: repo, logger: log}
}

// Resolve returns the asset row for (symbol, assetType), creating it
// on first sight and merging metadata on re-resolution.
func (m *Manager) Resolve(
	ctx context.Context,
	symbol string,
	assetType domain.AssetType,
	metadata domain.JSONBMap,
) (*domain.Asset, error) {
	if symbol == "" {
		return nil, domain.NewIngestError(domain.ErrorCategoryValidation, "symbol is required", nil)
	}
	if !assetType.IsValid() {
		return nil, domain.NewIngestError(
			domain.ErrorCategoryValidation,
			fmt.Sprintf("unknown asset type: %s", assetType),
			nil,
		)
	}

	asset, err := m.repo.GetOrCreate(ctx, symbol, assetType, metadata)
	if err != nil {
		m.logger.Error("failed to resolve asset",
			"symbol", symbol,
			"asset_type", string(assetType),
			"error", err)
		return nil, domain.NewIngestError(domain.ErrorCategoryPersistence, "failed to resolve asset", err)
	}

	return asset, nil
}

// Get retrieves an asset by ID.
func (m *Manager) Get(ctx context.Context, id int64) (*domain.Asset, error) {
	asset, err := m.repo.GetByID(ctx, id)
	if err != nil {
		return nil, domain.NewIngestError(domain.ErrorCategoryPersistence, "failed to get asset", err)
	}
	return asset, nil
}
