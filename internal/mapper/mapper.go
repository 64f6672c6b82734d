// Package mapper transforms collector output into canonical rows for
// the per-asset-type time-series tables.
package mapper

import (
	"fmt"
	"sort"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// ohlcColumns are required for market_data mapping.
var ohlcColumns = []string{"open", "high", "low", "close"}

// Map rewrites a collector frame into canonical rows for the asset
// type's target table. Empty input yields empty output. Missing
// required columns yield an error wrapping domain.ErrMapping.
func Map(assetType domain.AssetType, assetID int64, points []domain.DataPoint) (string, []domain.SeriesRow, error) {
	table := assetType.TargetTable()
	if len(points) == 0 {
		return table, nil, nil
	}

	rows := make([]domain.SeriesRow, 0, len(points))
	for i := range points {
		row, err := mapPoint(assetType, assetID, &points[i])
		if err != nil {
			return table, nil, err
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })
	return table, rows, nil
}

func mapPoint(assetType domain.AssetType, assetID int64, p *domain.DataPoint) (domain.SeriesRow, error) {
	row := domain.SeriesRow{Time: p.Time.UTC(), AssetID: assetID}

	switch assetType {
	case domain.AssetTypeStock, domain.AssetTypeCrypto, domain.AssetTypeCommodity:
		for _, col := range ohlcColumns {
			if _, ok := p.Values[col]; !ok {
				return row, fmt.Errorf("%w: missing required column %q for %s", domain.ErrMapping, col, assetType)
			}
		}
		row.Open = floatPtr(p.Values["open"])
		row.High = floatPtr(p.Values["high"])
		row.Low = floatPtr(p.Values["low"])
		row.Close = floatPtr(p.Values["close"])
		if v, ok := p.Values["volume"]; ok {
			row.Volume = floatPtr(v)
		}

	case domain.AssetTypeForex:
		rate, ok := pickColumn(p.Values, "rate")
		if !ok {
			rate, ok = singleColumn(p.Values)
		}
		if !ok {
			return row, fmt.Errorf("%w: no rate column for forex", domain.ErrMapping)
		}
		row.Rate = floatPtr(rate)

	case domain.AssetTypeBond:
		rate, ok := pickColumn(p.Values, "value", "rate")
		if !ok {
			return row, fmt.Errorf("%w: no value/rate column for bond", domain.ErrMapping)
		}
		row.Rate = floatPtr(rate)

	case domain.AssetTypeEconomicIndicator:
		v, ok := pickColumn(p.Values, "value")
		if !ok {
			return row, fmt.Errorf("%w: no value column for economic indicator", domain.ErrMapping)
		}
		row.Value = floatPtr(v)

	default:
		return row, fmt.Errorf("%w: unsupported asset type %s", domain.ErrMapping, assetType)
	}

	return row, nil
}

// pickColumn returns the first of the named columns present.
func pickColumn(values map[string]float64, names ...string) (float64, bool) {
	for _, name := range names {
		if v, ok := values[name]; ok {
			return v, true
		}
	}
	return 0, false
}

// singleColumn returns the value when exactly one column exists, the
// forex single-price-column case.
func singleColumn(values map[string]float64) (float64, bool) {
	if len(values) != 1 {
		return 0, false
	}
	for _, v := range values {
		return v, true
	}
	return 0, false
}

func floatPtr(v float64) *float64 {
	return &v
}
