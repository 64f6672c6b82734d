package domain

import (
	"time"
)

// DataPoint is one timestamped observation from a collector, with
// collector-specific columns.
type DataPoint struct {
	Time   time.Time
	Values map[string]float64
}

// SeriesRow is a canonical row destined for one of the time-series
// tables. Only the columns of the target table are set.
type SeriesRow struct {
	Time    time.Time
	AssetID int64

	// market_data columns.
	Open   *float64
	High   *float64
	Low    *float64
	Close  *float64
	Volume *float64

	// forex_rates / bond_rates column.
	Rate *float64

	// economic_data column.
	Value *float64
}

// Time-series table names.
const (
	TableMarketData   = "market_data"
	TableForexRates   = "forex_rates"
	TableBondRates    = "bond_rates"
	TableEconomicData = "economic_data"
)
