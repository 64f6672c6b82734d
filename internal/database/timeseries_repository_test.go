package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/database"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

func f64(v float64) *float64 { return &v }

func TestTimeSeriesRepository_Upsert(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	day2 := day1.Add(24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO market_data").
		WithArgs(day1, int64(7), 10.0, 12.0, 9.0, 11.0, 5000.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO market_data").
		WithArgs(day2, int64(7), 11.0, 13.0, 10.0, 12.0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rows := []domain.SeriesRow{
		{Time: day1, AssetID: 7, Open: f64(10), High: f64(12), Low: f64(9), Close: f64(11), Volume: f64(5000)},
		{Time: day2, AssetID: 7, Open: f64(11), High: f64(13), Low: f64(10), Close: f64(12)},
	}

	written, err := repo.Upsert(context.Background(), domain.TableMarketData, rows)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if written != 2 {
		t.Errorf("expected 2 rows written, got %d", written)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTimeSeriesRepository_Upsert_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	day1 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO forex_rates").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	rows := []domain.SeriesRow{{Time: day1, AssetID: 1, Rate: f64(1.08)}}

	if _, err := repo.Upsert(context.Background(), domain.TableForexRates, rows); err == nil {
		t.Fatal("expected error from failed insert")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestTimeSeriesRepository_Upsert_EmptyRows(t *testing.T) {
	db, _ := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	written, err := repo.Upsert(context.Background(), domain.TableMarketData, nil)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if written != 0 {
		t.Errorf("expected 0 rows written, got %d", written)
	}
}

func TestTimeSeriesRepository_Upsert_UnknownTable(t *testing.T) {
	db, _ := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	rows := []domain.SeriesRow{{Time: time.Now(), AssetID: 1}}
	if _, err := repo.Upsert(context.Background(), "users", rows); err == nil {
		t.Fatal("expected error for unknown table")
	}
}

func TestTimeSeriesRepository_MaxTime(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	latest := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT MAX\\(time\\) FROM market_data").
		WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(latest))

	got, found, err := repo.MaxTime(context.Background(), domain.TableMarketData, 7)
	if err != nil {
		t.Fatalf("MaxTime() error = %v", err)
	}
	if !found {
		t.Fatal("expected found=true")
	}
	if !got.Equal(latest) {
		t.Errorf("expected %v, got %v", latest, got)
	}
}

func TestTimeSeriesRepository_MaxTime_NoData(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	// MAX over an empty table yields a NULL row.
	mock.ExpectQuery("SELECT MAX\\(time\\) FROM bond_rates").
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(nil))

	_, found, err := repo.MaxTime(context.Background(), domain.TableBondRates, 3)
	if err != nil {
		t.Fatalf("MaxTime() error = %v", err)
	}
	if found {
		t.Error("expected found=false for empty table")
	}
}

func TestTimeSeriesRepository_MaxTime_UnknownTable(t *testing.T) {
	db, _ := newMockDB(t)
	repo := database.NewTimeSeriesRepository(db)

	if _, _, err := repo.MaxTime(context.Background(), "scheduled_jobs", 1); err == nil {
		t.Fatal("expected error for unknown table")
	}
}
