// Package domain provides domain models used across the application.
package domain

import (
	"time"
)

// AssetType identifies the class of a tradeable or observable series.
type AssetType string

// Supported asset types.
const (
	AssetTypeStock             AssetType = "stock"
	AssetTypeForex             AssetType = "forex"
	AssetTypeCrypto            AssetType = "crypto"
	AssetTypeBond              AssetType = "bond"
	AssetTypeCommodity         AssetType = "commodity"
	AssetTypeEconomicIndicator AssetType = "economic_indicator"
)

// allAssetTypes is the closed set of valid asset types.
var allAssetTypes = map[AssetType]struct{}{
	AssetTypeStock:             {},
	AssetTypeForex:             {},
	AssetTypeCrypto:            {},
	AssetTypeBond:              {},
	AssetTypeCommodity:         {},
	AssetTypeEconomicIndicator: {},
}

// IsValid reports whether t is one of the supported asset types.
func (t AssetType) IsValid() bool {
	_, ok := allAssetTypes[t]
	return ok
}

// AssetTypes returns all supported asset types.
func AssetTypes() []AssetType {
	return []AssetType{
		AssetTypeStock,
		AssetTypeForex,
		AssetTypeCrypto,
		AssetTypeBond,
		AssetTypeCommodity,
		AssetTypeEconomicIndicator,
	}
}

// TargetTable returns the time-series table canonical rows for this
// asset type are written to.
func (t AssetType) TargetTable() string {
	switch t {
	case AssetTypeForex:
		return "forex_rates"
	case AssetTypeBond:
		return "bond_rates"
	case AssetTypeEconomicIndicator:
		return "economic_data"
	case AssetTypeStock, AssetTypeCrypto, AssetTypeCommodity:
		return "market_data"
	default:
		return "market_data"
	}
}

// Asset represents a series identified by (symbol, asset_type).
// Assets are created on first reference by any job and never deleted.
type Asset struct {
	ID        int64     `db:"id"         json:"id"`
	Symbol    string    `db:"symbol"     json:"symbol"`
	AssetType AssetType `db:"asset_type" json:"asset_type"`
	Metadata  JSONBMap  `db:"metadata"   json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
