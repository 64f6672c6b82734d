package database_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/database"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

func TestExecutionRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewExecutionRepository(db)

	started := time.Now()
	mock.ExpectQuery("INSERT INTO job_executions").
		WithArgs("exec-1", "job-1", domain.ExecutionStatusRunning, started, 1).
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(started))

	exec := &domain.JobExecution{
		ID:        "exec-1",
		JobID:     "job-1",
		Status:    domain.ExecutionStatusRunning,
		StartedAt: started,
		Attempt:   1,
	}

	if err := repo.Create(context.Background(), exec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if !exec.CreatedAt.Equal(started) {
		t.Errorf("expected created_at backfilled, got %v", exec.CreatedAt)
	}
}

func TestExecutionRepository_Finish(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewExecutionRepository(db)

	completed := time.Now()
	logID := int64(99)
	durationMs := int64(1532)

	mock.ExpectExec("UPDATE job_executions").
		WithArgs(domain.ExecutionStatusCompleted, completed, logID, nil, nil, durationMs, "exec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	exec := &domain.JobExecution{
		ID:              "exec-1",
		Status:          domain.ExecutionStatusCompleted,
		CompletedAt:     &completed,
		LogID:           &logID,
		ExecutionTimeMs: &durationMs,
	}

	if err := repo.Finish(context.Background(), exec); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestExecutionRepository_Finish_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewExecutionRepository(db)

	mock.ExpectExec("UPDATE job_executions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	exec := &domain.JobExecution{ID: "missing", Status: domain.ExecutionStatusFailed}
	if err := repo.Finish(context.Background(), exec); err == nil {
		t.Fatal("expected error for unknown execution")
	}
}

func TestExecutionRepository_RecoverAbandoned(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewExecutionRepository(db)

	cutoff := time.Now().Add(-5 * time.Minute)
	mock.ExpectExec("UPDATE job_executions").
		WithArgs(
			domain.ExecutionStatusFailed, string(domain.ErrorCategoryUnknown),
			domain.ExecutionStatusRunning, cutoff,
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	recovered, err := repo.RecoverAbandoned(context.Background(), cutoff)
	if err != nil {
		t.Fatalf("RecoverAbandoned() error = %v", err)
	}
	if recovered != 2 {
		t.Errorf("expected 2 recovered executions, got %d", recovered)
	}
}

func TestExecutionRepository_ListByJob_EmptyIsNotNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewExecutionRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM job_executions").
		WithArgs("job-1", 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "job_id", "log_id", "status", "started_at", "completed_at",
			"error_message", "error_category", "execution_time_ms", "attempt", "created_at",
		}))

	executions, err := repo.ListByJob(context.Background(), "job-1", 20)
	if err != nil {
		t.Fatalf("ListByJob() error = %v", err)
	}
	if executions == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestExecutionRepository_Stats(t *testing.T) {
	db, mock := newMockDB(t)
	repo := database.NewExecutionRepository(db)

	mock.ExpectQuery("SELECT").
		WithArgs(domain.ExecutionStatusCompleted, domain.ExecutionStatusFailed).
		WillReturnRows(
			sqlmock.NewRows([]string{"total", "completed_today", "failed_today", "avg_duration_ms"}).
				AddRow(120, 10, 2, 842.5),
		)

	total, completedToday, failedToday, avgMs, err := repo.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if total != 120 || completedToday != 10 || failedToday != 2 || avgMs != 842.5 {
		t.Errorf("unexpected stats: %d %d %d %f", total, completedToday, failedToday, avgMs)
	}
}
