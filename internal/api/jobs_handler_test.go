package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/scheduler"
)

type fakeScheduler struct {
	jobs        map[string]*domain.ScheduledJob
	createErr   error
	triggerErr  error
	executions  []*domain.JobExecution
	statsResult *domain.SchedulerStats
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{jobs: make(map[string]*domain.ScheduledJob)}
}

func (f *fakeScheduler) CreateJob(_ context.Context, job *domain.ScheduledJob) error {
	if f.createErr != nil {
		return f.createErr
	}
	if job.ID == "" {
		job.ID = "generated-id"
	}
	if _, ok := f.jobs[job.ID]; ok {
		return domain.ErrDuplicateJobID
	}
	job.Status = domain.JobStatusActive
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeScheduler) GetJob(_ context.Context, id string) (*domain.ScheduledJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return job, nil
}

func (f *fakeScheduler) ListJobs(_ context.Context, _ string, _, _ int) ([]*domain.ScheduledJob, error) {
	out := []*domain.ScheduledJob{}
	for _, job := range f.jobs {
		out = append(out, job)
	}
	return out, nil
}

func (f *fakeScheduler) UpdateJob(_ context.Context, job *domain.ScheduledJob) error {
	if _, ok := f.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	f.jobs[job.ID] = job
	return nil
}

func (f *fakeScheduler) DeleteJob(_ context.Context, id string) error {
	if _, ok := f.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	delete(f.jobs, id)
	return nil
}

func (f *fakeScheduler) Trigger(_ context.Context, id string) error {
	if f.triggerErr != nil {
		return f.triggerErr
	}
	if _, ok := f.jobs[id]; !ok {
		return domain.ErrJobNotFound
	}
	return nil
}

func (f *fakeScheduler) Pause(_ context.Context, id string) (*domain.ScheduledJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	job.Status = domain.JobStatusPaused
	return job, nil
}

func (f *fakeScheduler) Resume(_ context.Context, id string) (*domain.ScheduledJob, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	job.Status = domain.JobStatusActive
	return job, nil
}

func (f *fakeScheduler) Executions(_ context.Context, jobID string, _ int) ([]*domain.JobExecution, error) {
	if _, ok := f.jobs[jobID]; !ok {
		return nil, domain.ErrJobNotFound
	}
	return f.executions, nil
}

func (f *fakeScheduler) Stats(_ context.Context) (*domain.SchedulerStats, error) {
	return f.statsResult, nil
}

func newJobsRouter(sched Scheduler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	handler := NewJobsHandler(sched)

	jobs := router.Group("/api/scheduler/jobs")
	jobs.POST("", handler.CreateJob)
	jobs.GET("", handler.ListJobs)
	jobs.GET("/:id", handler.GetJob)
	jobs.PATCH("/:id", handler.UpdateJob)
	jobs.DELETE("/:id", handler.DeleteJob)
	jobs.POST("/:id/trigger", handler.TriggerJob)
	jobs.POST("/:id/pause", handler.PauseJob)
	jobs.POST("/:id/resume", handler.ResumeJob)
	jobs.GET("/:id/executions", handler.ListExecutions)
	router.GET("/api/scheduler/stats", handler.Stats)

	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func validCreateBody() map[string]any {
	return map[string]any{
		"symbol":         "AAPL",
		"asset_type":     "stock",
		"trigger_type":   "interval",
		"trigger_config": map[string]any{"hours": 1},
	}
}

func TestCreateJobEndpoint(t *testing.T) {
	sched := newFakeScheduler()
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", validCreateBody())

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var job domain.ScheduledJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "generated-id", job.ID)
	assert.Equal(t, "AAPL", job.Symbol)
	assert.Equal(t, domain.JobStatusActive, job.Status)
}

func TestCreateJobMissingFields(t *testing.T) {
	router := newJobsRouter(newFakeScheduler())

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", map[string]any{"symbol": "AAPL"})

	require.Equal(t, http.StatusBadRequest, w.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, CodeValidation, body.Error.Code)
	assert.NotEmpty(t, body.Error.Details, "binding failures carry field details")
}

func TestCreateJobRetryFieldDefaults(t *testing.T) {
	sched := newFakeScheduler()
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", validCreateBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	job := sched.jobs["generated-id"]
	require.NotNil(t, job)
	assert.Equal(t, domain.DefaultMaxRetries, job.MaxRetries)
	assert.Equal(t, domain.DefaultRetryDelaySeconds, job.RetryDelaySeconds)
	assert.Equal(t, domain.DefaultRetryBackoff, job.RetryBackoffMultiplier)
}

func TestCreateJobExplicitZeroRetries(t *testing.T) {
	sched := newFakeScheduler()
	router := newJobsRouter(sched)

	body := validCreateBody()
	body["max_retries"] = 0
	body["retry_delay_seconds"] = 0

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	job := sched.jobs["generated-id"]
	require.NotNil(t, job)
	assert.Equal(t, 0, job.MaxRetries, "an explicit zero is not coerced to the default")
	assert.Equal(t, 0, job.RetryDelaySeconds)
}

func TestCreateJobInvalidDefinition(t *testing.T) {
	sched := newFakeScheduler()
	sched.createErr = scheduler.ErrInvalidJob
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", validCreateBody())

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, CodeValidation, errorCode(t, w))
}

func TestCreateJobDuplicate(t *testing.T) {
	sched := newFakeScheduler()
	router := newJobsRouter(sched)

	body := validCreateBody()
	body["job_id"] = "job-1"
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", body).Code)

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs", body)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeDuplicate, errorCode(t, w))
}

func TestGetJobNotFound(t *testing.T) {
	router := newJobsRouter(newFakeScheduler())

	w := doJSON(t, router, http.MethodGet, "/api/scheduler/jobs/missing", nil)

	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, CodeNotFound, errorCode(t, w))
}

func TestListJobsEnvelope(t *testing.T) {
	sched := newFakeScheduler()
	sched.jobs["job-1"] = &domain.ScheduledJob{ID: "job-1", Symbol: "AAPL"}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodGet, "/api/scheduler/jobs", nil)

	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Jobs  []*domain.ScheduledJob `json:"jobs"`
		Count int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Count)
	require.Len(t, body.Jobs, 1)
}

func TestUpdateJobPatch(t *testing.T) {
	sched := newFakeScheduler()
	sched.jobs["job-1"] = &domain.ScheduledJob{
		ID:            "job-1",
		Symbol:        "AAPL",
		AssetType:     domain.AssetTypeStock,
		TriggerType:   domain.TriggerTypeInterval,
		TriggerConfig: domain.JSONBMap{"hours": 1},
		MaxRetries:    3,
	}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodPatch, "/api/scheduler/jobs/job-1", map[string]any{
		"max_retries": 5,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 5, sched.jobs["job-1"].MaxRetries)
	assert.Equal(t, "AAPL", sched.jobs["job-1"].Symbol, "absent fields are left alone")
}

func TestDeleteJob(t *testing.T) {
	sched := newFakeScheduler()
	sched.jobs["job-1"] = &domain.ScheduledJob{ID: "job-1"}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodDelete, "/api/scheduler/jobs/job-1", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, router, http.MethodDelete, "/api/scheduler/jobs/job-1", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerJobConflicts(t *testing.T) {
	sched := newFakeScheduler()
	sched.jobs["job-1"] = &domain.ScheduledJob{ID: "job-1"}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs/job-1/trigger", nil)
	require.Equal(t, http.StatusOK, w.Code)

	sched.triggerErr = scheduler.ErrJobInFlight
	w = doJSON(t, router, http.MethodPost, "/api/scheduler/jobs/job-1/trigger", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeConflict, errorCode(t, w))

	sched.triggerErr = scheduler.ErrPoolSaturated
	w = doJSON(t, router, http.MethodPost, "/api/scheduler/jobs/job-1/trigger", nil)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestPauseResumeEndpoints(t *testing.T) {
	sched := newFakeScheduler()
	sched.jobs["job-1"] = &domain.ScheduledJob{ID: "job-1", Status: domain.JobStatusActive}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodPost, "/api/scheduler/jobs/job-1/pause", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var job domain.ScheduledJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, domain.JobStatusPaused, job.Status)

	w = doJSON(t, router, http.MethodPost, "/api/scheduler/jobs/job-1/resume", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, domain.JobStatusActive, job.Status)
}

func TestListExecutionsEndpoint(t *testing.T) {
	started := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	sched := newFakeScheduler()
	sched.jobs["job-1"] = &domain.ScheduledJob{ID: "job-1"}
	sched.executions = []*domain.JobExecution{
		{ID: "exec-1", JobID: "job-1", Status: domain.ExecutionStatusCompleted, StartedAt: started, Attempt: 1},
	}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodGet, "/api/scheduler/jobs/job-1/executions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Executions []*domain.JobExecution `json:"executions"`
		Count      int                    `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "exec-1", body.Executions[0].ID)

	w = doJSON(t, router, http.MethodGet, "/api/scheduler/jobs/missing/executions", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestStatsEndpoint(t *testing.T) {
	sched := newFakeScheduler()
	sched.statsResult = &domain.SchedulerStats{TotalJobs: 4, ActiveJobs: 3, SuccessRate: 92.5}
	router := newJobsRouter(sched)

	w := doJSON(t, router, http.MethodGet, "/api/scheduler/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var stats domain.SchedulerStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 4, stats.TotalJobs)
	assert.InDelta(t, 92.5, stats.SuccessRate, 0.001)
}
