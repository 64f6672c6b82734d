// Package tracker narrows requested collection windows to the portion
// not yet covered by stored data, so recurring jobs only fetch the
// trailing gap.
package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

// coverageStore answers "what is the latest stored timestamp" per
// asset and table.
type coverageStore interface {
	MaxTime(ctx context.Context, table string, assetID int64) (time.Time, bool, error)
}

// Tracker computes effective collection windows from stored coverage.
type Tracker struct {
	store coverageStore
}

// New creates a tracker backed by the given coverage store.
func New(store coverageStore) *Tracker {
	return &Tracker{store: store}
}

// Window is the narrowed collection range. Empty means stored data
// already covers the request and no upstream call is needed.
type Window struct {
	Start time.Time
	End   time.Time
	Empty bool
}

// Narrow shrinks [start, end] against stored coverage for the asset.
// Data on disk only ever grows forward, so only the trailing gap is
// re-fetched: the window start advances past the latest stored point.
func (t *Tracker) Narrow(
	ctx context.Context,
	assetType domain.AssetType,
	assetID int64,
	start, end time.Time,
) (Window, error) {
	table := assetType.TargetTable()

	maxTime, found, err := t.store.MaxTime(ctx, table, assetID)
	if err != nil {
		return Window{}, fmt.Errorf("failed to narrow collection window: %w", err)
	}

	if !found {
		return Window{Start: start, End: end}, nil
	}

	if !maxTime.Before(end) {
		return Window{Empty: true}, nil
	}

	next := maxTime.Add(time.Second)
	if next.After(start) {
		start = next
	}

	return Window{Start: start, End: end}, nil
}
