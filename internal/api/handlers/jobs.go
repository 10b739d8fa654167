package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dinehub/printrouter/internal/core"
	"github.com/dinehub/printrouter/internal/db"
)

type JobStatsResponse struct {
	Pending   int `json:"pending"`
	Printing  int `json:"printing"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

type JobHandler struct {
	jobs       *db.JobOperations
	tracker    *core.Tracker
	dispatcher *core.Dispatcher
}

func NewJobHandler(store *db.Store, tracker *core.Tracker, dispatcher *core.Dispatcher) *JobHandler {
	return &JobHandler{
		jobs:       store.Jobs,
		tracker:    tracker,
		dispatcher: dispatcher,
	}
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	filter := db.JobFilter{
		OrderID:   c.Query("order_id"),
		PrinterID: c.Query("printer_id"),
		Status:    c.Query("status"),
	}
	if v := c.Query("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil {
			filter.Offset = offset
		}
	}

	records, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve jobs",
		})
		return
	}

	jobs := make([]*core.Job, 0, len(records))
	for _, rec := range records {
		job, err := core.JobFromRecord(rec)
		if err != nil {
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "decode_error",
				Message: "Failed to decode job record",
			})
			return
		}
		jobs = append(jobs, job)
	}

	c.JSON(http.StatusOK, jobs)
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.tracker.Job(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, core.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Job not found",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve job",
		})
		return
	}

	c.JSON(http.StatusOK, job)
}

// RetryJob resets a failed job to pending and re-enqueues it. Retries are
// always operator-initiated; nothing retries automatically.
func (h *JobHandler) RetryJob(c *gin.Context) {
	job, err := h.tracker.Retry(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, core.ErrJobNotFound):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "not_found",
				Message: "Job not found",
			})
		case errors.Is(err, core.ErrJobNotFailed):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "invalid_state",
				Message: "Only failed jobs can be retried",
			})
		case errors.Is(err, core.ErrRetryLimitReached):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "retry_limit_reached",
				Message: err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "database_error",
				Message: "Failed to retry job",
			})
		}
		return
	}

	h.dispatcher.Enqueue(job.ID)
	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) GetStats(c *gin.Context) {
	counts, err := h.jobs.CountByStatus(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to count jobs",
		})
		return
	}

	stats := JobStatsResponse{
		Pending:   counts[string(core.JobStatusPending)],
		Printing:  counts[string(core.JobStatusPrinting)],
		Completed: counts[string(core.JobStatusCompleted)],
		Failed:    counts[string(core.JobStatusFailed)],
	}
	stats.Total = stats.Pending + stats.Printing + stats.Completed + stats.Failed

	c.JSON(http.StatusOK, stats)
}
