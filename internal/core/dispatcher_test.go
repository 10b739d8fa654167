package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dinehub/printrouter/internal/config"
	"github.com/dinehub/printrouter/internal/db"
)

type stubBackend struct {
	mu    sync.Mutex
	err   error
	block chan struct{}
	calls int
}

func (b *stubBackend) Name() string { return "stub" }

func (b *stubBackend) Print(ctx context.Context, job *Job, printer *Printer) error {
	b.mu.Lock()
	b.calls++
	b.mu.Unlock()
	if b.block != nil {
		<-b.block
	}
	return b.err
}

func (b *stubBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) JobEvent(event string, job *Job) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *recordingNotifier) seen() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newTestDispatcher(t *testing.T, store *db.Store, backend Backend, timeout time.Duration) (*Dispatcher, *recordingNotifier) {
	t.Helper()
	tracker := NewTracker(store, 5, testLogger())
	d := NewDispatcher(store, tracker, config.DispatchConfig{
		Timeout:     timeout,
		WorkerCount: 1,
		Simulate:    true,
	}, testLogger())
	d.UseSimulatedBackend(backend)

	notifier := &recordingNotifier{}
	d.AddNotifier(notifier)
	return d, notifier
}

func TestDispatcherCompletesJob(t *testing.T) {
	store := openTestStore(t)
	addPrinter(t, store, "p1", "Kitchen", true)
	seedJob(t, store, newJob("j1"))

	backend := &stubBackend{}
	d, notifier := newTestDispatcher(t, store, backend, time.Second)

	d.process("j1")

	job, err := store.Jobs.GetJobByID(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "completed", job.Status)
	require.NotNil(t, job.CompletedAt)
	require.Equal(t, 1, backend.callCount())
	require.Equal(t, []string{EventJobStarted, EventJobCompleted}, notifier.seen())
}

func TestDispatcherFailsJobOnBackendError(t *testing.T) {
	store := openTestStore(t)
	addPrinter(t, store, "p1", "Kitchen", true)
	seedJob(t, store, newJob("j1"))

	backend := &stubBackend{err: errors.New("out of paper")}
	d, notifier := newTestDispatcher(t, store, backend, time.Second)

	d.process("j1")

	job, err := store.Jobs.GetJobByID(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "failed", job.Status)
	require.Equal(t, "out of paper", job.ErrorMessage)
	require.Equal(t, 1, job.RetryCount)
	require.Equal(t, []string{EventJobStarted, EventJobFailed}, notifier.seen())
}

func TestDispatcherTimesOutHungBackend(t *testing.T) {
	store := openTestStore(t)
	addPrinter(t, store, "p1", "Kitchen", true)
	seedJob(t, store, newJob("j1"))

	backend := &stubBackend{block: make(chan struct{})}
	defer close(backend.block)

	d, notifier := newTestDispatcher(t, store, backend, 50*time.Millisecond)

	d.process("j1")

	job, err := store.Jobs.GetJobByID(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "failed", job.Status)
	require.Contains(t, job.ErrorMessage, "dispatch timed out")
	require.Equal(t, []string{EventJobStarted, EventJobFailed}, notifier.seen())
}

func TestDispatcherSkipsNonPendingJob(t *testing.T) {
	store := openTestStore(t)
	addPrinter(t, store, "p1", "Kitchen", true)

	job := newJob("j1")
	job.Status = JobStatusCompleted
	seedJob(t, store, job)

	backend := &stubBackend{}
	d, notifier := newTestDispatcher(t, store, backend, time.Second)

	d.process("j1")

	require.Zero(t, backend.callCount())
	require.Empty(t, notifier.seen())
}

func TestDispatcherFailsJobForMissingPrinter(t *testing.T) {
	store := openTestStore(t)
	seedJob(t, store, newJob("j1"))

	backend := &stubBackend{}
	d, _ := newTestDispatcher(t, store, backend, time.Second)

	d.process("j1")

	job, err := store.Jobs.GetJobByID(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "failed", job.Status)
	require.Contains(t, job.ErrorMessage, "printer not found")
	require.Zero(t, backend.callCount())
}

func TestDispatcherRecoversInFlightJobsOnStart(t *testing.T) {
	store := openTestStore(t)
	addPrinter(t, store, "p1", "Kitchen", true)
	seedJob(t, store, newJob("j1"))

	ok, err := store.Jobs.MarkPrinting(context.Background(), "j1")
	require.NoError(t, err)
	require.True(t, ok)

	backend := &stubBackend{}
	d, _ := newTestDispatcher(t, store, backend, time.Second)

	require.NoError(t, d.Start())
	defer d.Stop()

	require.Eventually(t, func() bool {
		job, err := store.Jobs.GetJobByID(context.Background(), "j1")
		return err == nil && job.Status == "completed"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatcherUnknownTransport(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Printers.CreatePrinter(context.Background(), &db.Printer{
		ID: "p1", Name: "Odd", Address: "x", Port: 1, Transport: "carrier-pigeon",
		IsActive: true, CategoriesJSON: "[]",
	}))
	seedJob(t, store, newJob("j1"))

	tracker := NewTracker(store, 5, testLogger())
	d := NewDispatcher(store, tracker, config.DispatchConfig{
		Timeout:     time.Second,
		WorkerCount: 1,
		Simulate:    false,
	}, testLogger())

	d.process("j1")

	job, err := store.Jobs.GetJobByID(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "failed", job.Status)
	require.Contains(t, job.ErrorMessage, "no backend for printer transport")
}
