package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dinehub/printrouter/internal/db"
)

// Tracker owns job lifecycle reads and guarded writes. Status transitions are
// single-writer: the dispatch path advances a job through the Mark methods,
// whose status preconditions live in SQL, and nothing ever moves a job out of
// a terminal state except an explicit Retry.
type Tracker struct {
	jobs       *db.JobOperations
	maxRetries int
	log        *slog.Logger
}

func NewTracker(store *db.Store, maxRetries int, log *slog.Logger) *Tracker {
	return &Tracker{
		jobs:       store.Jobs,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Job is an idempotent read; polling a terminal job never changes it.
func (t *Tracker) Job(ctx context.Context, id string) (*Job, error) {
	rec, err := t.jobs.GetJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return JobFromRecord(rec)
}

// Update applies mutator to the job and writes the record back. It no-ops
// when the job no longer exists (for example, concurrently deleted by an
// administrator) instead of raising. Status changes out of a terminal state
// and retry-count decreases are rejected.
func (t *Tracker) Update(ctx context.Context, id string, mutator func(*Job)) error {
	rec, err := t.jobs.GetJobByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	job, err := JobFromRecord(rec)
	if err != nil {
		return err
	}

	prevStatus := job.Status
	prevRetries := job.RetryCount

	mutator(job)

	if prevStatus.Terminal() && job.Status != prevStatus {
		return ErrTerminalState
	}
	if job.RetryCount < prevRetries {
		return fmt.Errorf("retry count may not decrease (%d -> %d)", prevRetries, job.RetryCount)
	}

	updated, err := job.record()
	if err != nil {
		return err
	}

	_, err = t.jobs.SaveJob(ctx, updated)
	return err
}

func (t *Tracker) MarkPrinting(ctx context.Context, id string) (bool, error) {
	return t.jobs.MarkPrinting(ctx, id)
}

func (t *Tracker) MarkCompleted(ctx context.Context, id string) (bool, error) {
	return t.jobs.MarkCompleted(ctx, id)
}

func (t *Tracker) MarkFailed(ctx context.Context, id, cause string) (bool, error) {
	return t.jobs.MarkFailed(ctx, id, cause)
}

// Retry resets a failed job to pending for a fresh dispatch attempt. The job
// record is reused and its retry count is preserved; the count only grows,
// and once it reaches the configured cap further retries are refused.
func (t *Tracker) Retry(ctx context.Context, id string) (*Job, error) {
	job, err := t.Job(ctx, id)
	if err != nil {
		return nil, err
	}

	if job.Status != JobStatusFailed {
		return nil, ErrJobNotFailed
	}
	if t.maxRetries > 0 && job.RetryCount >= t.maxRetries {
		return nil, fmt.Errorf("%w: %d attempts", ErrRetryLimitReached, job.RetryCount)
	}

	ok, err := t.jobs.ResetForRetry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost a race with another writer; treat like a missing job.
		return nil, ErrJobNotFailed
	}

	t.log.Info("job queued for retry", "job_id", id, "retry_count", job.RetryCount)
	return t.Job(ctx, id)
}
