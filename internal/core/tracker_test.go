package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dinehub/printrouter/internal/db"
)

func seedJob(t *testing.T, store *db.Store, job *Job) {
	t.Helper()
	rec, err := job.record()
	require.NoError(t, err)
	require.NoError(t, store.Jobs.CreateJobs(context.Background(), []*db.PrintJob{rec}))
}

func newJob(id string) *Job {
	return &Job{
		ID:        id,
		OrderID:   "o1",
		PrinterID: "p1",
		Items:     []OrderItem{{ID: "i1", Name: "Steak", Quantity: 1}},
		Template:  TemplateKitchenOrder,
		Status:    JobStatusPending,
		Metadata:  map[string]any{},
		CreatedAt: time.Now().UTC(),
	}
}

func TestTrackerJobNotFound(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())

	_, err := tracker.Job(context.Background(), "missing")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestTrackerLifecycle(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())
	ctx := context.Background()

	seedJob(t, store, newJob("j1"))

	ok, err := tracker.MarkPrinting(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = tracker.MarkCompleted(ctx, "j1")
	require.NoError(t, err)
	require.True(t, ok)

	job, err := tracker.Job(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, JobStatusCompleted, job.Status)
	require.NotNil(t, job.CompletedAt)

	// Terminal states are sticky against further transitions.
	ok, err = tracker.MarkPrinting(ctx, "j1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTrackerUpdateMissingJobNoOp(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())

	err := tracker.Update(context.Background(), "missing", func(j *Job) {
		j.ErrorMessage = "whatever"
	})
	require.NoError(t, err)
}

func TestTrackerUpdateRejectsTerminalChange(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())
	ctx := context.Background()

	job := newJob("j1")
	job.Status = JobStatusCompleted
	seedJob(t, store, job)

	err := tracker.Update(ctx, "j1", func(j *Job) {
		j.Status = JobStatusPending
	})
	require.ErrorIs(t, err, ErrTerminalState)
}

func TestTrackerUpdateRejectsRetryDecrease(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())
	ctx := context.Background()

	job := newJob("j1")
	job.RetryCount = 2
	seedJob(t, store, job)

	err := tracker.Update(ctx, "j1", func(j *Job) {
		j.RetryCount = 1
	})
	require.Error(t, err)

	got, err := tracker.Job(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, 2, got.RetryCount)
}

func TestTrackerRetryOnlyFailedJobs(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())
	ctx := context.Background()

	seedJob(t, store, newJob("j1"))

	_, err := tracker.Retry(ctx, "j1")
	require.ErrorIs(t, err, ErrJobNotFailed)

	_, err = tracker.Retry(ctx, "missing")
	require.ErrorIs(t, err, ErrJobNotFound)
}

func TestTrackerRetryResetsFailedJob(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())
	ctx := context.Background()

	job := newJob("j1")
	job.Status = JobStatusFailed
	job.ErrorMessage = "connection refused"
	job.RetryCount = 1
	seedJob(t, store, job)

	retried, err := tracker.Retry(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, JobStatusPending, retried.Status)
	require.Empty(t, retried.ErrorMessage)
	require.Equal(t, 1, retried.RetryCount)
}

func TestTrackerRetryCap(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 5, testLogger())
	ctx := context.Background()

	job := newJob("j1")
	job.Status = JobStatusFailed
	job.RetryCount = 5
	seedJob(t, store, job)

	_, err := tracker.Retry(ctx, "j1")
	require.ErrorIs(t, err, ErrRetryLimitReached)
}

func TestTrackerRetryUncapped(t *testing.T) {
	store := openTestStore(t)
	tracker := NewTracker(store, 0, testLogger())
	ctx := context.Background()

	job := newJob("j1")
	job.Status = JobStatusFailed
	job.RetryCount = 50
	seedJob(t, store, job)

	retried, err := tracker.Retry(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, JobStatusPending, retried.Status)
}
