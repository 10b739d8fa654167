package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/dinehub/printrouter/internal/config"
	"github.com/dinehub/printrouter/internal/core"
	"github.com/dinehub/printrouter/internal/db"
)

func setupJobsAPI(t *testing.T) (*gin.Engine, *db.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := db.Open(db.Config{Path: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := core.NewTracker(store, 5, log)
	dispatcher := core.NewDispatcher(store, tracker, config.DispatchConfig{
		Timeout:     time.Second,
		WorkerCount: 1,
		Simulate:    true,
	}, log)

	handler := NewJobHandler(store, tracker, dispatcher)

	engine := gin.New()
	engine.GET("/api/jobs", handler.ListJobs)
	engine.GET("/api/jobs/stats", handler.GetStats)
	engine.GET("/api/jobs/:id", handler.GetJob)
	engine.POST("/api/jobs/:id/retry", handler.RetryJob)
	return engine, store
}

func seedJobRecord(t *testing.T, store *db.Store, id, status string, retryCount int) {
	t.Helper()
	require.NoError(t, store.Jobs.CreateJobs(context.Background(), []*db.PrintJob{{
		ID:           id,
		OrderID:      "o1",
		PrinterID:    "p1",
		ItemsJSON:    `[{"id":"i1","name":"Burger","quantity":1}]`,
		Template:     "kitchen-order",
		Status:       status,
		RetryCount:   retryCount,
		MetadataJSON: "{}",
	}}))
}

func getJSON(engine *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestGetJobEndpoint(t *testing.T) {
	engine, store := setupJobsAPI(t)
	seedJobRecord(t, store, "j1", "pending", 0)

	w := getJSON(engine, "/api/jobs/j1")
	require.Equal(t, http.StatusOK, w.Code)

	var job core.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.Equal(t, "j1", job.ID)
	require.Equal(t, core.JobStatusPending, job.Status)

	w = getJSON(engine, "/api/jobs/missing")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListJobsEndpointFilters(t *testing.T) {
	engine, store := setupJobsAPI(t)
	seedJobRecord(t, store, "j1", "pending", 0)
	seedJobRecord(t, store, "j2", "failed", 1)

	w := getJSON(engine, "/api/jobs?status=failed")
	require.Equal(t, http.StatusOK, w.Code)

	var jobs []core.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	require.Equal(t, "j2", jobs[0].ID)
}

func TestRetryJobEndpoint(t *testing.T) {
	engine, store := setupJobsAPI(t)
	seedJobRecord(t, store, "j1", "failed", 1)
	seedJobRecord(t, store, "j2", "completed", 0)
	seedJobRecord(t, store, "j3", "failed", 5)

	w := postJSON(engine, "/api/jobs/j1/retry", "")
	require.Equal(t, http.StatusOK, w.Code)

	var job core.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.Equal(t, core.JobStatusPending, job.Status)
	require.Equal(t, 1, job.RetryCount)

	// Completed jobs stay completed.
	w = postJSON(engine, "/api/jobs/j2/retry", "")
	require.Equal(t, http.StatusConflict, w.Code)

	// The retry cap refuses further attempts.
	w = postJSON(engine, "/api/jobs/j3/retry", "")
	require.Equal(t, http.StatusConflict, w.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "retry_limit_reached", resp.Error)

	w = postJSON(engine, "/api/jobs/missing/retry", "")
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestJobStatsEndpoint(t *testing.T) {
	engine, store := setupJobsAPI(t)
	seedJobRecord(t, store, "j1", "pending", 0)
	seedJobRecord(t, store, "j2", "completed", 0)
	seedJobRecord(t, store, "j3", "completed", 0)
	seedJobRecord(t, store, "j4", "failed", 1)

	w := getJSON(engine, "/api/jobs/stats")
	require.Equal(t, http.StatusOK, w.Code)

	var stats JobStatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	require.Equal(t, 1, stats.Pending)
	require.Equal(t, 2, stats.Completed)
	require.Equal(t, 1, stats.Failed)
	require.Equal(t, 4, stats.Total)
}
