package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/domain"
	"github.com/jonesrussell/north-cloud/market-scheduler/internal/scheduler"
)

const (
	defaultLimit  = 50
	defaultOffset = 0
)

// Scheduler is the job-control surface the handlers need.
type Scheduler interface {
	CreateJob(ctx context.Context, job *domain.ScheduledJob) error
	GetJob(ctx context.Context, id string) (*domain.ScheduledJob, error)
	ListJobs(ctx context.Context, status string, limit, offset int) ([]*domain.ScheduledJob, error)
	UpdateJob(ctx context.Context, job *domain.ScheduledJob) error
	DeleteJob(ctx context.Context, id string) error
	Trigger(ctx context.Context, id string) error
	Pause(ctx context.Context, id string) (*domain.ScheduledJob, error)
	Resume(ctx context.Context, id string) (*domain.ScheduledJob, error)
	Executions(ctx context.Context, jobID string, limit int) ([]*domain.JobExecution, error)
	Stats(ctx context.Context) (*domain.SchedulerStats, error)
}

// JobsHandler handles job-related HTTP requests.
type JobsHandler struct {
	scheduler Scheduler
}

// NewJobsHandler creates a jobs handler.
func NewJobsHandler(sched Scheduler) *JobsHandler {
	return &JobsHandler{scheduler: sched}
}

// CreateJob handles POST /api/scheduler/jobs.
func (h *JobsHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, CodeValidation, "invalid request body", err.Error())
		return
	}

	job := req.toJob()
	if err := h.scheduler.CreateJob(c.Request.Context(), job); err != nil {
		h.respondJobError(c, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

// ListJobs handles GET /api/scheduler/jobs.
func (h *JobsHandler) ListJobs(c *gin.Context) {
	status := c.Query("status")
	limit := intQuery(c, "limit", defaultLimit)
	offset := intQuery(c, "offset", defaultOffset)

	jobs, err := h.scheduler.ListJobs(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, "failed to list jobs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// GetJob handles GET /api/scheduler/jobs/:id.
func (h *JobsHandler) GetJob(c *gin.Context) {
	job, err := h.scheduler.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// UpdateJob handles PATCH /api/scheduler/jobs/:id.
func (h *JobsHandler) UpdateJob(c *gin.Context) {
	var req UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, CodeValidation, "invalid request body", err.Error())
		return
	}

	job, err := h.scheduler.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondJobError(c, err)
		return
	}

	req.apply(job)
	if err := h.scheduler.UpdateJob(c.Request.Context(), job); err != nil {
		h.respondJobError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// DeleteJob handles DELETE /api/scheduler/jobs/:id.
func (h *JobsHandler) DeleteJob(c *gin.Context) {
	if err := h.scheduler.DeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		h.respondJobError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TriggerJob handles POST /api/scheduler/jobs/:id/trigger.
func (h *JobsHandler) TriggerJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.scheduler.Trigger(c.Request.Context(), id); err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "triggered": true})
}

// PauseJob handles POST /api/scheduler/jobs/:id/pause.
func (h *JobsHandler) PauseJob(c *gin.Context) {
	job, err := h.scheduler.Pause(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ResumeJob handles POST /api/scheduler/jobs/:id/resume.
func (h *JobsHandler) ResumeJob(c *gin.Context) {
	job, err := h.scheduler.Resume(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondJobError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListExecutions handles GET /api/scheduler/jobs/:id/executions.
func (h *JobsHandler) ListExecutions(c *gin.Context) {
	limit := intQuery(c, "limit", defaultLimit)

	executions, err := h.scheduler.Executions(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.respondJobError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"executions": executions, "count": len(executions)})
}

// Stats handles GET /api/scheduler/stats.
func (h *JobsHandler) Stats(c *gin.Context) {
	stats, err := h.scheduler.Stats(c.Request.Context())
	if err != nil {
		respondError(c, http.StatusInternalServerError, CodeInternal, "failed to aggregate stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondJobError maps scheduler errors to API error responses.
func (h *JobsHandler) respondJobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrJobNotFound):
		respondError(c, http.StatusNotFound, CodeNotFound, "job not found")
	case errors.Is(err, domain.ErrDuplicateJobID):
		respondError(c, http.StatusConflict, CodeDuplicate, "job_id already exists")
	case errors.Is(err, scheduler.ErrJobInFlight):
		respondError(c, http.StatusConflict, CodeConflict, "job execution already in flight")
	case errors.Is(err, scheduler.ErrPoolSaturated):
		respondError(c, http.StatusConflict, CodeConflict, "worker pool saturated, try again")
	case errors.Is(err, scheduler.ErrInvalidJob):
		respondError(c, http.StatusBadRequest, CodeValidation, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, CodeInternal, "internal error")
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(name, strconv.Itoa(fallback)))
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
