package trigger

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
)

func cronJob(cfg map[string]any) *domain.ScheduledJob {
	return &domain.ScheduledJob{
		ID:            "job-1",
		Symbol:        "AAPL",
		AssetType:     domain.AssetTypeStock,
		TriggerType:   domain.TriggerTypeCron,
		TriggerConfig: domain.JSONBMap(cfg),
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func intervalJob(cfg map[string]any) *domain.ScheduledJob {
	return &domain.ScheduledJob{
		ID:            "job-2",
		Symbol:        "BTC",
		AssetType:     domain.AssetTypeCrypto,
		TriggerType:   domain.TriggerTypeInterval,
		TriggerConfig: domain.JSONBMap(cfg),
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestEvaluatorNextFireCron(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	job := cronJob(map[string]any{"hour": "9", "minute": "30"})

	next, ok := eval.NextFire(job, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 2, 2, 9, 30, 0, 0, time.UTC), next)
}

func TestEvaluatorCronSkipsFiresBeforeStartDate(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	job := cronJob(map[string]any{"hour": "9", "minute": "30"})
	job.StartDate = &start

	next, ok := eval.NextFire(job, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 6, 1, 9, 30, 0, 0, time.UTC), next)
}

func TestEvaluatorCronSuppressedAfterEndDate(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	job := cronJob(map[string]any{"hour": "9", "minute": "30"})
	job.EndDate = &end

	_, ok := eval.NextFire(job, time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestEvaluatorNextFireInterval(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	job := intervalJob(map[string]any{"hours": 1})

	after := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	next, ok := eval.NextFire(job, after)
	require.True(t, ok)
	assert.Equal(t, after.Add(time.Hour), next)
}

func TestEvaluatorIntervalBasesOnStartDate(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	job := intervalJob(map[string]any{"days": 1})
	job.StartDate = &start

	// Before the start date the period anchors on it.
	next, ok := eval.NextFire(job, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC))
	require.True(t, ok)
	assert.Equal(t, start.Add(24*time.Hour), next)
}

func TestEvaluatorIntervalOneShotEnd(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	end := time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC)
	job := intervalJob(map[string]any{"days": 1})
	job.EndDate = &end

	// Next fire would land past end_date: the trigger is exhausted.
	_, ok := eval.NextFire(job, time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestEvaluatorInitialFireExecuteNow(t *testing.T) {
	eval := NewEvaluator(time.UTC)
	start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	job := intervalJob(map[string]any{"hours": 1, "execute_now": true})
	job.StartDate = &start

	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	next, ok := eval.InitialFire(job, now)
	require.True(t, ok)
	assert.Equal(t, now, next, "execute_now fires immediately regardless of start_date")
}

func TestEvaluatorValidate(t *testing.T) {
	eval := NewEvaluator(time.UTC)

	assert.NoError(t, eval.Validate(cronJob(map[string]any{"hour": "9"})))
	assert.NoError(t, eval.Validate(intervalJob(map[string]any{"minutes": 5})))

	assert.Error(t, eval.Validate(cronJob(map[string]any{"hour": "99"})))
	assert.Error(t, eval.Validate(intervalJob(map[string]any{})), "zero interval is invalid")

	bad := cronJob(nil)
	bad.TriggerType = "weekly"
	assert.Error(t, eval.Validate(bad))
}
