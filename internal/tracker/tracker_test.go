package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

type fakeStore struct {
	maxTime time.Time
	found   bool
	err     error

	gotTable string
	gotAsset int64
}

func (f *fakeStore) MaxTime(_ context.Context, table string, assetID int64) (time.Time, bool, error) {
	f.gotTable = table
	f.gotAsset = assetID
	return f.maxTime, f.found, f.err
}

func TestNarrowNoStoredData(t *testing.T) {
	store := &fakeStore{found: false}
	tr := New(store)

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	w, err := tr.Narrow(context.Background(), domain.AssetTypeStock, 7, start, end)
	require.NoError(t, err)
	assert.False(t, w.Empty)
	assert.Equal(t, start, w.Start)
	assert.Equal(t, end, w.End)
	assert.Equal(t, "market_data", store.gotTable)
	assert.Equal(t, int64(7), store.gotAsset)
}

func TestNarrowFullyCovered(t *testing.T) {
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{found: true, maxTime: end}
	tr := New(store)

	w, err := tr.Narrow(context.Background(), domain.AssetTypeForex, 1,
		end.Add(-72*time.Hour), end)
	require.NoError(t, err)
	assert.True(t, w.Empty)
}

func TestNarrowTrailingGap(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	covered := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	tr := New(&fakeStore{found: true, maxTime: covered})

	w, err := tr.Narrow(context.Background(), domain.AssetTypeCrypto, 3, start, end)
	require.NoError(t, err)
	assert.False(t, w.Empty)
	assert.Equal(t, covered.Add(time.Second), w.Start)
	assert.Equal(t, end, w.End)
}

func TestNarrowCoverageBeforeStart(t *testing.T) {
	start := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	covered := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	tr := New(&fakeStore{found: true, maxTime: covered})

	w, err := tr.Narrow(context.Background(), domain.AssetTypeBond, 3, start, end)
	require.NoError(t, err)
	assert.Equal(t, start, w.Start, "coverage older than the window leaves the start alone")
}

func TestNarrowStoreError(t *testing.T) {
	boom := errors.New("connection reset")
	tr := New(&fakeStore{err: boom})

	_, err := tr.Narrow(context.Background(), domain.AssetTypeStock, 1,
		time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, boom)
}
