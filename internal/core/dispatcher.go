package core

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dinehub/printrouter/internal/config"
	"github.com/dinehub/printrouter/internal/db"
)

// Dispatcher executes print jobs asynchronously. Job creation and job
// execution are decoupled: the router enqueues and returns, and callers
// observe progress by polling. Every attempt passes through the printing
// state and is bounded by the configured timeout so a hung port can never
// leave a job in printing forever.
type Dispatcher struct {
	store     *db.Store
	tracker   *Tracker
	backends  map[string]Backend
	simulated Backend
	simulate  bool
	timeout   time.Duration
	workers   int
	notifiers []Notifier
	log       *slog.Logger

	jobCh  chan string
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

func NewDispatcher(store *db.Store, tracker *Tracker, cfg config.DispatchConfig, log *slog.Logger) *Dispatcher {
	workers := cfg.WorkerCount
	if workers < 1 {
		workers = 2
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Dispatcher{
		store:   store,
		tracker: tracker,
		backends: map[string]Backend{
			db.TransportNetwork: NewNetworkBackend(timeout),
			db.TransportSerial:  NewSerialBackend(cfg.SerialBaudRate),
			db.TransportSpooler: NewSpoolerBackend(cfg.SpoolerCommand),
		},
		simulated: NewSimulatedBackend(nil, nil),
		simulate:  cfg.Simulate,
		timeout:   timeout,
		workers:   workers,
		log:       log,
		jobCh:     make(chan string, 256),
		stopCh:    make(chan struct{}),
	}
}

// UseBackend replaces the backend for a transport. Tests and operators with
// exotic hardware hook in here.
func (d *Dispatcher) UseBackend(transport string, b Backend) {
	d.backends[transport] = b
}

// UseSimulatedBackend replaces the simulation seam.
func (d *Dispatcher) UseSimulatedBackend(b Backend) {
	d.simulated = b
}

func (d *Dispatcher) AddNotifier(n Notifier) {
	d.notifiers = append(d.notifiers, n)
}

func (d *Dispatcher) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	if err := d.recoverJobs(); err != nil {
		return err
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
	return nil
}

func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()
}

// recoverJobs returns crashed printing jobs to pending and re-enqueues
// everything pending, so a restart resumes where the process died.
func (d *Dispatcher) recoverJobs() error {
	ctx := context.Background()

	recovered, err := d.store.Jobs.RecoverPrinting(ctx)
	if err != nil {
		return fmt.Errorf("failed to recover in-flight jobs: %w", err)
	}
	if recovered > 0 {
		d.log.Warn("recovered in-flight jobs", "count", recovered)
	}

	ids, err := d.store.Jobs.ListJobIDsByStatus(ctx, string(JobStatusPending))
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}
	for _, id := range ids {
		d.Enqueue(id)
	}
	return nil
}

func (d *Dispatcher) Enqueue(jobID string) {
	select {
	case d.jobCh <- jobID:
	default:
		d.log.Warn("dispatch queue full, job will be picked up on restart", "job_id", jobID)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			return
		case jobID := <-d.jobCh:
			d.process(jobID)
		}
	}
}

func (d *Dispatcher) process(jobID string) {
	ctx := context.Background()

	job, err := d.tracker.Job(ctx, jobID)
	if err != nil {
		if !errors.Is(err, ErrJobNotFound) {
			d.log.Error("failed to load job", "job_id", jobID, "error", err)
		}
		return
	}
	if job.Status != JobStatusPending {
		return
	}

	// The printing state must be observable to pollers even when the backend
	// is effectively synchronous.
	ok, err := d.tracker.MarkPrinting(ctx, jobID)
	if err != nil {
		d.log.Error("failed to mark job printing", "job_id", jobID, "error", err)
		return
	}
	if !ok {
		return
	}
	job.Status = JobStatusPrinting
	d.notify(EventJobStarted, job)

	printer, backend, err := d.resolve(ctx, job)
	if err != nil {
		d.fail(ctx, job, err.Error())
		return
	}

	d.log.Info("dispatching job",
		"job_id", job.ID,
		"printer", printer.Name,
		"backend", backend.Name())

	if err := d.attempt(job, printer, backend); err != nil {
		d.fail(ctx, job, err.Error())
		return
	}

	if _, err := d.tracker.MarkCompleted(ctx, job.ID); err != nil {
		d.log.Error("failed to mark job completed", "job_id", job.ID, "error", err)
		return
	}
	job.Status = JobStatusCompleted
	d.notify(EventJobCompleted, job)
}

// attempt runs the backend under the dispatch timeout. A backend that never
// returns counts as failed; its goroutine is abandoned once the deadline
// passes and its eventual result is discarded.
func (d *Dispatcher) attempt(job *Job, printer *Printer, backend Backend) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- backend.Print(ctx, job, printer)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("dispatch timed out after %s on printer %s", d.timeout, printer.Name)
	}
}

func (d *Dispatcher) resolve(ctx context.Context, job *Job) (*Printer, Backend, error) {
	rec, err := d.store.Printers.GetPrinterByID(ctx, job.PrinterID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, fmt.Errorf("%w: %s", ErrPrinterNotFound, job.PrinterID)
		}
		return nil, nil, err
	}
	printer := printerFromRecord(rec)

	if d.simulate {
		return printer, d.simulated, nil
	}

	backend, ok := d.backends[printer.Transport]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownTransport, printer.Transport)
	}
	return printer, backend, nil
}

func (d *Dispatcher) fail(ctx context.Context, job *Job, cause string) {
	ok, err := d.tracker.MarkFailed(ctx, job.ID, cause)
	if err != nil {
		d.log.Error("failed to mark job failed", "job_id", job.ID, "error", err)
		return
	}
	if !ok {
		return
	}

	d.log.Warn("job dispatch failed", "job_id", job.ID, "cause", cause)

	job.Status = JobStatusFailed
	job.ErrorMessage = cause
	job.RetryCount++
	d.notify(EventJobFailed, job)
}

func (d *Dispatcher) notify(event string, job *Job) {
	for _, n := range d.notifiers {
		n.JobEvent(event, job)
	}
}
